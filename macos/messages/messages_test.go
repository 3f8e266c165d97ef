package messages

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nalgeon/be"

	"github.com/spachava753/stayconnected/internal/osascript"
	"github.com/spachava753/stayconnected/people"
)

const chatSchema = `
CREATE TABLE chat (ROWID INTEGER PRIMARY KEY, chat_identifier TEXT, service_name TEXT, display_name TEXT);
CREATE TABLE handle (ROWID INTEGER PRIMARY KEY, id TEXT, uncanonicalized_id TEXT);
CREATE TABLE message (ROWID INTEGER PRIMARY KEY, date INTEGER, is_empty INTEGER);
CREATE TABLE chat_message_join (chat_id INTEGER, message_id INTEGER);
CREATE TABLE chat_handle_join (chat_id INTEGER, handle_id INTEGER);
`

// appleNanos converts t to the Messages date column format.
func appleNanos(t time.Time) int64 {
	return (t.Unix()-appleReferenceUnix)*int64(time.Second) + int64(t.Nanosecond())
}

func writeChatDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.db")
	db, err := sql.Open("sqlite3", path)
	be.Err(t, err, nil)
	defer db.Close()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stmts := []struct {
		query string
		args  []any
	}{
		{chatSchema, nil},
		{`INSERT INTO chat VALUES (1, '+17328017003', 'iMessage', ''), (2, 'ram@example.com', 'iMessage', ''), (3, 'chat123456', 'iMessage', 'Book Club'), (4, '+15550000000', 'SMS', '')`, nil},
		{`INSERT INTO handle VALUES (1, '+17328017003', '+1 (732) 801-7003'), (2, 'ram@example.com', NULL), (3, '+12103792244', NULL)`, nil},
		{`INSERT INTO chat_handle_join VALUES (1, 1), (2, 2), (3, 3), (3, 1)`, nil},
		{`INSERT INTO message VALUES (1, ?, 0), (2, ?, 0), (3, ?, 0), (4, ?, 0), (5, ?, 1)`, []any{
			appleNanos(base), appleNanos(base.Add(time.Hour)), appleNanos(base.Add(2 * time.Hour)), appleNanos(base.Add(3 * time.Hour)), appleNanos(base.Add(4 * time.Hour)),
		}},
		{`INSERT INTO chat_message_join VALUES (1, 1), (1, 2), (2, 3), (3, 4), (4, 5)`, nil},
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt.query, stmt.args...)
		be.Err(t, err, nil)
	}
	return path
}

func fixedRunner(out string, err error) osascript.Runner {
	return func(context.Context, []string, []string) (string, error) {
		return out, err
	}
}

func TestCorrespondents(t *testing.T) {
	path := writeChatDB(t)
	names := "iMessage;-;+17328017003|||+17328017003|||Karen Ram\niMessage;+;chat123456||||||\n"
	src := New(WithPath(path), WithRunner(fixedRunner(names, nil)))

	list, err := src.Correspondents(context.Background(), 10)
	be.Err(t, err, nil)
	// The group chat and the chat with only an empty message are left out.
	be.Equal(t, len(list), 2)

	be.Equal(t, list[0].ChatIdentifier, "ram@example.com")
	be.Equal(t, list[0].Name, "")
	be.Equal(t, list[0].MessageCount, 1)

	be.Equal(t, list[1].ChatID, "any;-;+17328017003")
	be.Equal(t, list[1].Handle, "+1 (732) 801-7003")
	be.Equal(t, list[1].Name, "Karen Ram")
	be.Equal(t, list[1].MessageCount, 2)
	be.Equal(t, list[1].LastMessage, time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC))
}

func TestFetchDrafts(t *testing.T) {
	path := writeChatDB(t)
	src := New(WithPath(path), WithRunner(fixedRunner("", errors.New("no messages app"))))

	drafts, err := src.Fetch(context.Background(), 10)
	be.Err(t, err, nil)
	be.Equal(t, drafts, []people.Draft{
		{SourceID: "any;-;ram@example.com", Email: "ram@example.com"},
		{SourceID: "any;-;+17328017003", Phone: "+1 (732) 801-7003"},
	})
}

func TestFetchLimit(t *testing.T) {
	path := writeChatDB(t)
	src := New(WithPath(path), WithRunner(fixedRunner("", nil)))

	drafts, err := src.Fetch(context.Background(), 1)
	be.Err(t, err, nil)
	be.Equal(t, len(drafts), 1)
	be.Equal(t, drafts[0].Email, "ram@example.com")
}

func TestRequestAccess(t *testing.T) {
	src := New(WithPath(writeChatDB(t)))
	be.Err(t, src.RequestAccess(context.Background()), nil)

	missing := New(WithPath(filepath.Join(t.TempDir(), "missing.db")))
	err := missing.RequestAccess(context.Background())
	be.Err(t, err, os.ErrNotExist)
	be.Equal(t, errors.Is(err, people.ErrPermissionDenied), false)
}

func TestRequestAccessDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions do not apply to root")
	}
	dir := filepath.Join(t.TempDir(), "locked")
	be.Err(t, os.Mkdir(dir, 0o700), nil)
	path := filepath.Join(dir, "chat.db")
	be.Err(t, os.WriteFile(path, nil, 0o600), nil)
	be.Err(t, os.Chmod(dir, 0o000), nil)
	t.Cleanup(func() { os.Chmod(dir, 0o700) })

	err := New(WithPath(path)).RequestAccess(context.Background())
	be.Err(t, err, people.ErrPermissionDenied)
}

func TestMergeCorrespondentsPrefersMessagesNames(t *testing.T) {
	stats := []chatStat{
		{ChatIdentifier: "+15551234567", Handle: "+15551234567", DisplayName: "Old Name", LastMessageRaw: "2"},
		{ChatIdentifier: "+15551234567", Handle: "+15551234567", LastMessageRaw: "1"},
		{ChatIdentifier: "chat999", Handle: "+15550001111", DisplayName: "Team", LastMessageRaw: "3"},
	}
	participants := []chatParticipant{{ChatID: "SMS;-;+15551234567", Handle: "+15551234567", Name: "New Name"}}

	list := mergeCorrespondents(stats, participants, 10)
	be.Equal(t, len(list), 1)
	be.Equal(t, list[0].Name, "New Name")
}

func TestParseChatIdentifier(t *testing.T) {
	be.Equal(t, parseChatIdentifier("any;-;+15551234567"), "+15551234567")
	be.Equal(t, parseChatIdentifier("any;+;chat123"), "chat123")
	be.Equal(t, parseChatIdentifier(""), "")
}

func TestNormalizeHandle(t *testing.T) {
	be.Equal(t, normalizeHandle("+12105551212(smsft)"), "+12105551212")
	be.Equal(t, normalizeHandle(" test@example.com "), "test@example.com")
}

func TestIsGroupChat(t *testing.T) {
	be.True(t, isGroupChat("iMessage;+;chat123", "chat123"))
	be.True(t, isGroupChat("", "chat123456"))
	be.Equal(t, isGroupChat("", "+15551234567"), false)
	be.Equal(t, isGroupChat("", "chatty@example.com"), false)
}
