package people

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/spachava753/stayconnected/identity"
)

const (
	// DefaultImportLimit caps how many drafts ImportFrom fetches per run.
	DefaultImportLimit = 200
	// DefaultConcurrency bounds concurrent writes during Import.
	DefaultConcurrency = 8
)

// Book manages one store of people.
type Book struct {
	store       Store
	log         *zap.Logger
	validate    *validator.Validate
	now         func() time.Time
	importLimit int
	concurrency int
}

// Option configures a Book.
type Option func(*Book)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(b *Book) {
		if l != nil {
			b.log = l
		}
	}
}

// WithClock overrides time.Now for CreatedAt/UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(b *Book) {
		if now != nil {
			b.now = now
		}
	}
}

// WithImportLimit sets the per-run fetch cap for ImportFrom.
func WithImportLimit(n int) Option {
	return func(b *Book) {
		if n > 0 {
			b.importLimit = n
		}
	}
}

// WithConcurrency bounds concurrent Create calls during Import.
func WithConcurrency(n int) Option {
	return func(b *Book) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// New returns a Book backed by store.
func New(store Store, opts ...Option) *Book {
	b := &Book{
		store:       store,
		log:         zap.NewNop(),
		validate:    newValidator(),
		now:         time.Now,
		importLimit: DefaultImportLimit,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	mustRegister(v, "relationship", func(fl validator.FieldLevel) bool {
		return Relationship(fl.Field().String()).Valid()
	})
	return v
}

// mustRegister adds a custom validation tag and panics if the tag is
// rejected, so a bad tag fails at construction instead of at first use.
func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("people: registering %q validation: %v", tag, err))
	}
}

// PersonInput is the write model for Upsert.
//
// When Key is set it is used as the storage key. Otherwise the key is
// resolved from Email, Phone and Name.
type PersonInput struct {
	Key          string
	Name         string `validate:"required"`
	Nickname     string
	Phone        string
	Email        string
	Birthday     string
	Relationship Relationship `validate:"omitempty,relationship"`
	Notes        string       `validate:"max=1000"`
}

// PersonPatch edits an existing person. Nil fields mean "no change".
type PersonPatch struct {
	Nickname     *string
	Relationship *Relationship
	Notes        *string
}

// Upsert writes a person, merging into any existing record under the same
// key. Email and phone are normalized and the name is trimmed before writing.
func (b *Book) Upsert(ctx context.Context, userID string, in PersonInput) (Person, error) {
	if err := requireUser(userID); err != nil {
		return Person{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = identity.NormalizeEmail(in.Email)
	in.Phone = identity.NormalizePhone(in.Phone)
	if err := b.validate.Struct(in); err != nil {
		return Person{}, newError(ErrorCodeInvalidInput, err, "contact %q", in.Name)
	}

	key, err := identity.Resolve(identity.Candidate{ID: in.Key, Name: in.Name, Email: in.Email, Phone: in.Phone})
	if err != nil {
		return Person{}, newError(ErrorCodeInvalidInput, err, "contact %q", in.Name)
	}

	now := b.now().UTC()
	p := Person{
		Key:          key,
		Name:         in.Name,
		Nickname:     strings.TrimSpace(in.Nickname),
		Phone:        in.Phone,
		Email:        in.Email,
		Birthday:     strings.TrimSpace(in.Birthday),
		Relationship: in.Relationship,
		Notes:        in.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	b.log.Debug("upsert person", zap.String("user_id", userID), zap.String("key", key))
	stored, err := b.store.Put(ctx, userID, p)
	if err != nil {
		return Person{}, persistenceError(err, "writing %q", key)
	}
	return stored, nil
}

// Update applies a patch to an existing person.
func (b *Book) Update(ctx context.Context, userID string, key string, patch PersonPatch) (Person, error) {
	if err := requireUser(userID); err != nil {
		return Person{}, err
	}
	p, err := b.Get(ctx, userID, key)
	if err != nil {
		return Person{}, err
	}
	if patch.Nickname != nil {
		p.Nickname = strings.TrimSpace(*patch.Nickname)
	}
	if patch.Relationship != nil {
		if !patch.Relationship.Valid() {
			return Person{}, newError(ErrorCodeInvalidInput, nil, "unknown relationship %q", *patch.Relationship)
		}
		p.Relationship = *patch.Relationship
	}
	if patch.Notes != nil {
		if len([]rune(*patch.Notes)) > MaxNotesLength {
			return Person{}, newError(ErrorCodeInvalidInput, nil, "notes exceed %d characters", MaxNotesLength)
		}
		p.Notes = *patch.Notes
	}
	p.UpdatedAt = b.now().UTC()

	stored, err := b.store.Put(ctx, userID, p)
	if err != nil {
		return Person{}, persistenceError(err, "updating %q", key)
	}
	return stored, nil
}

// Get returns one person.
func (b *Book) Get(ctx context.Context, userID string, key string) (Person, error) {
	if err := requireUser(userID); err != nil {
		return Person{}, err
	}
	p, err := b.store.Get(ctx, userID, key)
	if err != nil {
		return Person{}, persistenceError(err, "reading %q", key)
	}
	return p, nil
}

// Delete removes one person.
func (b *Book) Delete(ctx context.Context, userID string, key string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if err := b.store.Delete(ctx, userID, key); err != nil {
		return persistenceError(err, "deleting %q", key)
	}
	b.log.Info("deleted person", zap.String("user_id", userID), zap.String("key", key))
	return nil
}

// List returns every stored person, ordered by name.
func (b *Book) List(ctx context.Context, userID string) ([]Person, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	persons, err := b.store.List(ctx, userID)
	if err != nil {
		return nil, persistenceError(err, "listing")
	}
	return persons, nil
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return newError(ErrorCodeInvalidInput, nil, "user id is required")
	}
	return nil
}

// persistenceError passes typed people errors through and wraps anything else
// as ErrorCodePersistence.
func persistenceError(err error, format string, args ...any) error {
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return newError(ErrorCodePersistence, err, format, args...)
}
