package identity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
)

const (
	// PrefixEmail tags keys resolved from an email address.
	PrefixEmail = "email:"
	// PrefixPhone tags keys resolved from a phone number.
	PrefixPhone = "phone:"
	// PrefixName tags keys resolved from a name hash.
	PrefixName = "name:"
)

// ErrorCode classifies resolution errors.
type ErrorCode string

const (
	// ErrorCodeInvalidInput indicates the candidate carries no usable identity
	// signal.
	ErrorCodeInvalidInput ErrorCode = "invalid_input"
)

// ErrInvalidInput matches any *Error with ErrorCodeInvalidInput via errors.Is.
var ErrInvalidInput = &Error{Code: ErrorCodeInvalidInput}

// Error is a typed resolution error.
type Error struct {
	Code    ErrorCode
	Message string
}

// Error returns the formatted error message.
func (e *Error) Error() string {
	if e == nil {
		return "identity: <nil>"
	}
	if e.Message == "" {
		return fmt.Sprintf("identity: %s", e.Code)
	}
	return fmt.Sprintf("identity: %s: %s", e.Code, e.Message)
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) || other == nil || e == nil {
		return false
	}
	return e.Code == other.Code
}

// Candidate is a contact record as received from an import source, prior to
// identity resolution.
type Candidate struct {
	ID    string
	Name  string
	Email string
	Phone string
}

// Branch names the signal a key was resolved from.
type Branch string

const (
	BranchID    Branch = "id"
	BranchEmail Branch = "email"
	BranchPhone Branch = "phone"
	BranchName  Branch = "name"
)

// Resolve maps a candidate to its storage key.
//
// It fails with ErrorCodeInvalidInput only when the candidate has no id,
// email or phone and its name is blank.
func Resolve(c Candidate) (string, error) {
	if id := strings.TrimSpace(c.ID); id != "" {
		return id, nil
	}
	if email := NormalizeEmail(c.Email); email != "" {
		return PrefixEmail + email, nil
	}
	if phone := NormalizePhone(c.Phone); phone != "" {
		return PrefixPhone + phone, nil
	}
	name := NormalizeName(c.Name)
	if name == "" {
		return "", &Error{Code: ErrorCodeInvalidInput, Message: "name is required when id, email and phone are absent"}
	}
	return PrefixName + Hash(name), nil
}

// BranchOf classifies a key produced by Resolve.
func BranchOf(key string) Branch {
	switch {
	case strings.HasPrefix(key, PrefixEmail):
		return BranchEmail
	case strings.HasPrefix(key, PrefixPhone):
		return BranchPhone
	case strings.HasPrefix(key, PrefixName):
		return BranchName
	default:
		return BranchID
	}
}

// NormalizeEmail trims and lowercases an email address. It does not validate
// format.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizePhone strips every character that is not a decimal digit.
func NormalizePhone(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// NormalizeName trims, collapses internal whitespace runs to a single space
// and lowercases. The result is for hashing only, never for display.
func NormalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Hash is a 31-multiplier string hash accumulated over UTF-16 code units in
// wrapping int32 arithmetic, returned as the base-36 absolute value.
func Hash(s string) string {
	var h int32
	for _, unit := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(unit)
	}
	return absBase36(h)
}

// absBase36 widens before negating so math.MinInt32 stays positive.
func absBase36(h int32) string {
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 36)
}
