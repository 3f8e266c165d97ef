package people

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode classifies people errors.
type ErrorCode string

const (
	// ErrorCodeInvalidInput indicates a record without a usable identity or
	// failing field validation.
	ErrorCodeInvalidInput ErrorCode = "invalid_input"
	// ErrorCodePermissionDenied indicates the import source refused access.
	ErrorCodePermissionDenied ErrorCode = "permission_denied"
	// ErrorCodePersistence indicates a storage write or read failure.
	ErrorCodePersistence ErrorCode = "persistence"
	// ErrorCodeNotFound indicates a referenced person does not exist.
	ErrorCodeNotFound ErrorCode = "not_found"
)

var (
	// ErrInvalidInput matches errors with ErrorCodeInvalidInput.
	ErrInvalidInput = &Error{Code: ErrorCodeInvalidInput}
	// ErrPermissionDenied matches errors with ErrorCodePermissionDenied.
	ErrPermissionDenied = &Error{Code: ErrorCodePermissionDenied}
	// ErrPersistence matches errors with ErrorCodePersistence.
	ErrPersistence = &Error{Code: ErrorCodePersistence}
	// ErrNotFound matches errors with ErrorCodeNotFound.
	ErrNotFound = &Error{Code: ErrorCodeNotFound}
)

// Error is a typed package error. Err carries the underlying cause, if any.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error returns the formatted error message.
func (e *Error) Error() string {
	if e == nil {
		return "people: <nil>"
	}
	msg := fmt.Sprintf("people: %s", e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if e == nil || !errors.As(target, &other) || other == nil {
		return false
	}
	return e.Code == other.Code
}

func newError(code ErrorCode, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// Relationship describes how the user knows a person.
type Relationship string

const (
	RelationshipFriends     Relationship = "Friends"
	RelationshipCloseFriend Relationship = "Close Friend"
	RelationshipFamily      Relationship = "Family"
	RelationshipRomantic    Relationship = "Romantic"
	RelationshipStudyBuddy  Relationship = "Study Buddy"
	RelationshipColleague   Relationship = "Colleague"
	RelationshipNeighbor    Relationship = "Neighbor"
)

// Relationships lists every Relationship in display order.
var Relationships = []Relationship{
	RelationshipFriends,
	RelationshipCloseFriend,
	RelationshipFamily,
	RelationshipRomantic,
	RelationshipStudyBuddy,
	RelationshipColleague,
	RelationshipNeighbor,
}

// Valid reports whether r is one of Relationships.
func (r Relationship) Valid() bool {
	for _, known := range Relationships {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRelationship matches s case-insensitively against Relationships.
func ParseRelationship(s string) (Relationship, error) {
	s = strings.TrimSpace(s)
	for _, known := range Relationships {
		if strings.EqualFold(s, string(known)) {
			return known, nil
		}
	}
	return "", newError(ErrorCodeInvalidInput, nil, "unknown relationship %q", s)
}

// MaxNotesLength caps Person.Notes in characters.
const MaxNotesLength = 1000

// Person is a stored contact keyed by the identity package's storage key.
//
// Email and Phone are stored normalized. Birthday is "YYYY-MM-DD", with a
// "0000" year when the source does not know it.
type Person struct {
	Key          string
	Name         string
	Nickname     string
	Phone        string
	Email        string
	Birthday     string
	Relationship Relationship
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayName returns the trimmed nickname when set, else the name.
func (p Person) DisplayName() string {
	if nick := strings.TrimSpace(p.Nickname); nick != "" {
		return nick
	}
	return p.Name
}

// Draft is a raw record from an import source.
//
// SourceID is the source's own identifier. It is informational and does not
// participate in key resolution during Import.
type Draft struct {
	SourceID string
	Name     string
	Nickname string
	Phone    string
	Email    string
	Birthday string
}

// KeySet is a caller-owned set of storage keys used to detect duplicates.
type KeySet map[string]struct{}

// Keys builds a KeySet from stored persons, typically the latest snapshot of
// a subscription.
func Keys(persons []Person) KeySet {
	set := make(KeySet, len(persons))
	for _, p := range persons {
		set[p.Key] = struct{}{}
	}
	return set
}

// Has reports whether key is in the set.
func (s KeySet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Store persists people scoped by user id.
//
// Create inserts only when the key is absent and reports whether it wrote.
// Put merges p into the stored record, keeping CreatedAt of an existing one.
// Get and Delete return ErrNotFound for missing keys. List is ordered by name.
// Watch emits the user's full list, ordered by name, immediately and after
// every change, until ctx is done.
type Store interface {
	Create(ctx context.Context, userID string, p Person) (bool, error)
	Put(ctx context.Context, userID string, p Person) (Person, error)
	Get(ctx context.Context, userID string, key string) (Person, error)
	Delete(ctx context.Context, userID string, key string) error
	List(ctx context.Context, userID string) ([]Person, error)
	Watch(ctx context.Context, userID string) (<-chan []Person, error)
}

// Source provides raw records from a device or account.
//
// RequestAccess returns an error matching ErrPermissionDenied when the user
// refuses access. Fetch returns at most limit drafts when limit > 0.
type Source interface {
	RequestAccess(ctx context.Context) error
	Fetch(ctx context.Context, limit int) ([]Draft, error)
}
