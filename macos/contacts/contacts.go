package contacts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spachava753/stayconnected/internal/osascript"
	"github.com/spachava753/stayconnected/people"
)

// ErrUnsupportedPlatform is returned when the contacts backend is unavailable on
// the current OS/runtime.
var ErrUnsupportedPlatform = errors.New("contacts: unsupported platform")

// AuthStatus describes Contacts permission state for the current process.
type AuthStatus string

const (
	// AuthStatusDenied indicates the user denied access.
	AuthStatusDenied AuthStatus = "denied"
	// AuthStatusAuthorized indicates Contacts access is granted.
	AuthStatusAuthorized AuthStatus = "authorized"
)

// noYear is the year Contacts stores for birthdays entered without one.
const noYear = 1604

// Source reads people from the Contacts app. It implements people.Source.
type Source struct {
	run osascript.Runner
	log *zap.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.log = l
		}
	}
}

// WithRunner replaces the script runner.
func WithRunner(r osascript.Runner) Option {
	return func(s *Source) {
		if r != nil {
			s.run = r
		}
	}
}

// New returns a Source backed by the platform script runner.
func New(opts ...Option) *Source {
	s := &Source{run: defaultRunner, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var countScript = []string{
	`tell application "Contacts"`,
	`return count of people`,
	`end tell`,
}

// AuthorizationStatus probes Contacts access. The first probe may show the
// system permission prompt.
func (s *Source) AuthorizationStatus(ctx context.Context) (AuthStatus, error) {
	_, err := s.run(ctx, countScript, nil)
	switch {
	case err == nil:
		return AuthStatusAuthorized, nil
	case osascript.IsNotAuthorized(err):
		return AuthStatusDenied, nil
	default:
		return "", fmt.Errorf("contacts: probing access failed: %w", err)
	}
}

// RequestAccess asks for Contacts access. A refusal returns an error matching
// people.ErrPermissionDenied.
func (s *Source) RequestAccess(ctx context.Context) error {
	status, err := s.AuthorizationStatus(ctx)
	if err != nil {
		return err
	}
	if status != AuthStatusAuthorized {
		s.log.Info("contacts access refused")
		return &people.Error{Code: people.ErrorCodePermissionDenied, Message: "contacts access refused"}
	}
	return nil
}

var fetchScript = []string{
	`on run argv`,
	`set maxCount to (item 1 of argv) as integer`,
	`set oldDelimiters to AppleScript's text item delimiters`,
	`set AppleScript's text item delimiters to "\n"`,
	`tell application "Contacts"`,
	`set ps to people`,
	`set total to count of ps`,
	`if maxCount > 0 and maxCount < total then set total to maxCount`,
	`set rows to {}`,
	`repeat with i from 1 to total`,
	`set p to item i of ps`,
	`set n to ""`,
	`set nn to ""`,
	`set ph to ""`,
	`set em to ""`,
	`set bd to ""`,
	`try`,
	`set n to name of p`,
	`if n is missing value then set n to ""`,
	`end try`,
	`try`,
	`set nn to nickname of p`,
	`if nn is missing value then set nn to ""`,
	`end try`,
	`try`,
	`if (count of phones of p) > 0 then set ph to value of first phone of p`,
	`end try`,
	`try`,
	`if (count of emails of p) > 0 then set em to value of first email of p`,
	`end try`,
	`try`,
	`set d to birth date of p`,
	`if d is not missing value then set bd to ((year of d) as text) & "-" & (((month of d) as integer) as text) & "-" & ((day of d) as text)`,
	`end try`,
	`set end of rows to ((id of p) & "|||" & n & "|||" & nn & "|||" & ph & "|||" & em & "|||" & bd)`,
	`end repeat`,
	`set outputText to rows as text`,
	`end tell`,
	`set AppleScript's text item delimiters to oldDelimiters`,
	`return outputText`,
	`end run`,
}

// Fetch returns up to limit contacts as drafts, keeping the first phone and
// email of each. A non-positive limit fetches everything.
func (s *Source) Fetch(ctx context.Context, limit int) ([]people.Draft, error) {
	out, err := s.run(ctx, fetchScript, []string{strconv.Itoa(max(limit, 0))})
	if osascript.IsNotAuthorized(err) {
		return nil, &people.Error{Code: people.ErrorCodePermissionDenied, Message: "contacts access refused", Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("contacts: reading contacts failed: %w", err)
	}
	drafts := parseDrafts(out)
	s.log.Debug("fetched contacts", zap.Int("count", len(drafts)))
	return drafts, nil
}

func parseDrafts(out string) []people.Draft {
	rows := osascript.SplitRows(out, 6)
	drafts := make([]people.Draft, 0, len(rows))
	for _, row := range rows {
		drafts = append(drafts, people.Draft{
			SourceID: row[0],
			Name:     row[1],
			Nickname: row[2],
			Phone:    row[3],
			Email:    row[4],
			Birthday: formatBirthday(row[5]),
		})
	}
	return drafts
}

// formatBirthday turns "y-m-d" into YYYY-MM-DD. Birthdays saved without a
// year get 0000.
func formatBirthday(raw string) string {
	parts := strings.Split(strings.TrimSpace(raw), "-")
	if len(parts) != 3 {
		return ""
	}
	nums := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return ""
		}
		nums[i] = n
	}
	year, month, day := nums[0], nums[1], nums[2]
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return ""
	}
	if year == noYear || year <= 0 {
		year = 0
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}
