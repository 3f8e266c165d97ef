package people

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spachava753/stayconnected/identity"
)

// ImportStatus is the per-record outcome of Import.
type ImportStatus string

const (
	// ImportAdded means the record was new and has been written.
	ImportAdded ImportStatus = "added"
	// ImportDuplicate means the key was already known or stored.
	ImportDuplicate ImportStatus = "duplicate"
	// ImportInvalid means no key could be resolved for the record.
	ImportInvalid ImportStatus = "invalid"
	// ImportFailed means the record was new but the write failed, or it
	// repeats a key from earlier in the batch whose write failed.
	ImportFailed ImportStatus = "failed"
)

// ImportInput is the batch import request.
//
// Existing is the caller-owned set of keys already stored for UserID. Import
// adds the keys it writes and leaves failed keys out, so the same set can be
// passed to a retry. A nil Existing is treated as empty.
type ImportInput struct {
	UserID   string
	Drafts   []Draft
	Existing KeySet
}

// ImportResult reports the outcome for one draft, aligned with
// ImportInput.Drafts.
type ImportResult struct {
	Draft  Draft
	Key    string
	Status ImportStatus
	Err    error
}

// ImportOutput summarizes a batch import.
//
// Skipped counts duplicates only. Invalid and failed records are counted
// separately so callers can tell partial success from total failure.
type ImportOutput struct {
	Results []ImportResult
	Added   int
	Skipped int
	Invalid int
	Failed  int
}

// Err joins the write failures of the batch, or returns nil when every new
// record was written.
func (o ImportOutput) Err() error {
	var errs []error
	for _, r := range o.Results {
		if r.Status == ImportFailed {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}

// Import reconciles drafts against the existing keys and writes only the new
// ones. Existing records are never overwritten.
//
// Keys are partitioned synchronously before any write is issued. A key that
// repeats within the batch is a duplicate of its first occurrence. New records
// are written concurrently and in no particular order.
func (b *Book) Import(ctx context.Context, input ImportInput) (ImportOutput, error) {
	if err := requireUser(input.UserID); err != nil {
		return ImportOutput{}, err
	}
	existing := input.Existing
	if existing == nil {
		existing = KeySet{}
	}

	out := ImportOutput{Results: make([]ImportResult, len(input.Drafts))}
	pending := make([]int, 0, len(input.Drafts))
	// first maps a key written by this batch to the draft that writes it.
	first := make(map[string]int, len(input.Drafts))
	repeats := map[int]int{}
	for i, d := range input.Drafts {
		res := ImportResult{Draft: d}
		key, err := identity.Resolve(identity.Candidate{Name: d.Name, Email: d.Email, Phone: d.Phone})
		switch {
		case err != nil:
			res.Status = ImportInvalid
			res.Err = newError(ErrorCodeInvalidInput, err, "draft %d", i)
		case existing.Has(key):
			res.Key = key
			res.Status = ImportDuplicate
			if j, ok := first[key]; ok {
				repeats[i] = j
			}
		default:
			res.Key = key
			existing[key] = struct{}{}
			first[key] = i
			pending = append(pending, i)
		}
		out.Results[i] = res
	}

	now := b.now().UTC()
	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for _, i := range pending {
		g.Go(func() error {
			res := &out.Results[i]
			created, err := b.store.Create(ctx, input.UserID, draftPerson(res.Key, res.Draft, now))
			switch {
			case err != nil:
				res.Status = ImportFailed
				res.Err = persistenceError(err, "writing %q", res.Key)
			case !created:
				res.Status = ImportDuplicate
			default:
				res.Status = ImportAdded
			}
			return nil
		})
	}
	_ = g.Wait()

	// A repeat shares the fate of its first occurrence when that write failed.
	for i, j := range repeats {
		if out.Results[j].Status == ImportFailed {
			out.Results[i].Status = ImportFailed
			out.Results[i].Err = out.Results[j].Err
		}
	}

	for _, res := range out.Results {
		switch res.Status {
		case ImportAdded:
			out.Added++
		case ImportDuplicate:
			out.Skipped++
		case ImportInvalid:
			out.Invalid++
		case ImportFailed:
			out.Failed++
			delete(existing, res.Key)
			b.log.Warn("import write failed", zap.String("user_id", input.UserID), zap.String("key", res.Key), zap.Error(res.Err))
		}
	}
	b.log.Info("import finished",
		zap.String("user_id", input.UserID),
		zap.Int("added", out.Added),
		zap.Int("skipped", out.Skipped),
		zap.Int("invalid", out.Invalid),
		zap.Int("failed", out.Failed),
	)
	return out, nil
}

// ImportFrom requests access to src, fetches up to the import limit and
// imports the drafts. A refused permission returns an error matching
// ErrPermissionDenied; calling ImportFrom again retries the request.
func (b *Book) ImportFrom(ctx context.Context, src Source, input ImportInput) (ImportOutput, error) {
	if err := requireUser(input.UserID); err != nil {
		return ImportOutput{}, err
	}
	if err := src.RequestAccess(ctx); err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			b.log.Info("import source access denied", zap.Error(err))
		}
		return ImportOutput{}, err
	}
	drafts, err := src.Fetch(ctx, b.importLimit)
	if err != nil {
		return ImportOutput{}, err
	}
	if len(drafts) > b.importLimit {
		drafts = drafts[:b.importLimit]
	}
	input.Drafts = slices.Concat(input.Drafts, drafts)
	if len(input.Drafts) > b.importLimit {
		input.Drafts = input.Drafts[:b.importLimit]
	}
	return b.Import(ctx, input)
}

// draftPerson builds the stored record for a newly imported draft.
func draftPerson(key string, d Draft, now time.Time) Person {
	return Person{
		Key:          key,
		Name:         firstNonEmpty(d.Name, d.Email, d.Phone, "Unknown"),
		Nickname:     strings.TrimSpace(d.Nickname),
		Phone:        identity.NormalizePhone(d.Phone),
		Email:        identity.NormalizeEmail(d.Email),
		Birthday:     strings.TrimSpace(d.Birthday),
		Relationship: RelationshipFriends,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
