package contacts

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nalgeon/be"

	"github.com/spachava753/stayconnected/internal/osascript"
	"github.com/spachava753/stayconnected/people"
	"github.com/spachava753/stayconnected/store"
)

type scriptCall struct {
	lines []string
	args  []string
}

func fakeRunner(out string, err error, calls *[]scriptCall) osascript.Runner {
	return func(ctx context.Context, lines []string, args []string) (string, error) {
		*calls = append(*calls, scriptCall{lines: lines, args: args})
		return out, err
	}
}

func row(fields ...string) string {
	return strings.Join(fields, osascript.FieldSep)
}

func lines(rows ...string) string {
	return strings.Join(rows, "\n") + "\n"
}

var refused = &osascript.Error{
	Code:   osascript.CodeNotAuthorized,
	Output: "execution error: Not authorized to send Apple events to Contacts. (-1743)",
	Err:    errors.New("exit status 1"),
}

func TestFetch(t *testing.T) {
	var calls []scriptCall
	out := lines(
		row("ABC:ABPerson", "Karen Ram", "Kay", "+1 (732) 801-7003", "karen@example.com", "1990-3-7"),
		row("DEF:ABPerson", "Ram Joolukuntla", "", "+12103792244", "", ""),
		row("GHI:ABPerson", "", "", "", "noname@example.com", "1604-12-25"),
	)
	s := New(WithRunner(fakeRunner(out, nil, &calls)))

	drafts, err := s.Fetch(context.Background(), 200)
	be.Err(t, err, nil)
	be.Equal(t, len(calls), 1)
	be.Equal(t, calls[0].args, []string{"200"})
	be.Equal(t, drafts, []people.Draft{
		{SourceID: "ABC:ABPerson", Name: "Karen Ram", Nickname: "Kay", Phone: "+1 (732) 801-7003", Email: "karen@example.com", Birthday: "1990-03-07"},
		{SourceID: "DEF:ABPerson", Name: "Ram Joolukuntla", Phone: "+12103792244"},
		{SourceID: "GHI:ABPerson", Email: "noname@example.com", Birthday: "0000-12-25"},
	})
}

func TestFetchPermissionDenied(t *testing.T) {
	var calls []scriptCall
	s := New(WithRunner(fakeRunner("", refused, &calls)))

	_, err := s.Fetch(context.Background(), 10)
	be.Err(t, err, people.ErrPermissionDenied)
}

func TestFetchFailure(t *testing.T) {
	var calls []scriptCall
	boom := &osascript.Error{Code: -600, Output: "Application isn't running. (-600)", Err: errors.New("exit status 1")}
	s := New(WithRunner(fakeRunner("", boom, &calls)))

	_, err := s.Fetch(context.Background(), 10)
	be.Err(t, err, boom)
	be.Equal(t, errors.Is(err, people.ErrPermissionDenied), false)
}

func TestRequestAccess(t *testing.T) {
	var calls []scriptCall
	s := New(WithRunner(fakeRunner("42", nil, &calls)))
	status, err := s.AuthorizationStatus(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, status, AuthStatusAuthorized)
	be.Err(t, s.RequestAccess(context.Background()), nil)

	s = New(WithRunner(fakeRunner("", refused, &calls)))
	status, err = s.AuthorizationStatus(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, status, AuthStatusDenied)
	be.Err(t, s.RequestAccess(context.Background()), people.ErrPermissionDenied)
}

func TestImportFromContacts(t *testing.T) {
	var calls []scriptCall
	out := lines(
		row("A", "Karen Ram", "", "+17328017003", "", ""),
		row("B", "Karen Ram", "", "+1 732 801 7003", "", ""),
	)
	s := New(WithRunner(fakeRunner(out, nil, &calls)))
	db, err := store.Open(store.MemoryPath)
	be.Err(t, err, nil)
	defer db.Close()
	book := people.New(db)

	res, err := book.ImportFrom(context.Background(), s, people.ImportInput{UserID: "u1"})
	be.Err(t, err, nil)
	be.Equal(t, res.Added, 1)
	be.Equal(t, res.Skipped, 1)
}

func TestFormatBirthday(t *testing.T) {
	tests := map[string]string{
		"1990-3-7":   "1990-03-07",
		"2001-12-31": "2001-12-31",
		"1604-2-29":  "0000-02-29",
		"":           "",
		"1990-13-1":  "",
		"garbage":    "",
		"1990-x-1":   "",
	}
	for in, want := range tests {
		be.Equal(t, formatBirthday(in), want)
	}
}
