package messages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/spachava753/stayconnected/identity"
	"github.com/spachava753/stayconnected/internal/osascript"
	"github.com/spachava753/stayconnected/people"
)

const (
	messagesDBRelativePath = "Library/Messages/chat.db"
	appleReferenceUnix     = int64(978307200) // 2001-01-01T00:00:00Z
)

// ErrUnsupportedPlatform is returned by the Messages.app name lookup outside
// macOS.
var ErrUnsupportedPlatform = errors.New("messages: unsupported platform")

// Correspondent is someone the user has a one-on-one Messages chat with.
type Correspondent struct {
	ChatID         string
	ChatIdentifier string
	Handle         string
	Name           string
	Service        string
	LastMessage    time.Time
	MessageCount   int
}

// Source reads correspondents from the local Messages database. It
// implements people.Source.
type Source struct {
	path string
	run  osascript.Runner
	log  *zap.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithPath reads the chat database at path instead of the user's own.
func WithPath(path string) Option {
	return func(s *Source) {
		s.path = path
	}
}

// WithRunner replaces the script runner used to look up contact names in
// Messages.app.
func WithRunner(r osascript.Runner) Option {
	return func(s *Source) {
		if r != nil {
			s.run = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.log = l
		}
	}
}

// New returns a Source for the current user's chat database.
func New(opts ...Option) *Source {
	s := &Source{run: defaultRunner, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestAccess checks that the chat database can be read. Without Full
// Disk Access the error matches people.ErrPermissionDenied.
func (s *Source) RequestAccess(ctx context.Context) error {
	db, err := s.open(ctx)
	if err != nil {
		return err
	}
	return db.Close()
}

// Fetch returns the most recent one-on-one correspondents as drafts.
func (s *Source) Fetch(ctx context.Context, limit int) ([]people.Draft, error) {
	list, err := s.Correspondents(ctx, limit)
	if err != nil {
		return nil, err
	}
	drafts := make([]people.Draft, 0, len(list))
	for _, c := range list {
		if d, ok := draftFor(c); ok {
			drafts = append(drafts, d)
		}
	}
	s.log.Debug("fetched correspondents", zap.Int("count", len(drafts)))
	return drafts, nil
}

// Correspondents lists one-on-one chats, newest first, enriched with
// contact names from Messages.app when it is reachable.
func (s *Source) Correspondents(ctx context.Context, limit int) ([]Correspondent, error) {
	if limit <= 0 {
		limit = 50
	}

	stats, err := s.listChatStats(ctx, max(limit*4, 200))
	if err != nil {
		return nil, err
	}
	participants, err := s.listChatParticipants(ctx)
	if err != nil {
		s.log.Debug("messages name lookup unavailable", zap.Error(err))
	}
	return mergeCorrespondents(stats, participants, limit), nil
}

type chatStat struct {
	ChatIdentifier        string
	Service               string
	DisplayName           string
	Handle                string
	UncanonicalizedHandle string
	LastMessageRaw        string
	MessageCount          int
}

type chatParticipant struct {
	ChatID string
	Handle string
	Name   string
}

func mergeCorrespondents(stats []chatStat, participants []chatParticipant, limit int) []Correspondent {
	nameByIdentifier := make(map[string]string, len(participants))
	nameByHandle := make(map[string]string, len(participants))
	for _, p := range participants {
		if isGroupChat(p.ChatID, parseChatIdentifier(p.ChatID)) || p.Name == "" {
			continue
		}
		nameByIdentifier[parseChatIdentifier(p.ChatID)] = p.Name
		if p.Handle != "" {
			nameByHandle[p.Handle] = p.Name
		}
	}

	out := make([]Correspondent, 0, len(stats))
	seen := map[string]struct{}{}
	for _, stat := range stats {
		if stat.ChatIdentifier == "" || isGroupChat("", stat.ChatIdentifier) {
			continue
		}
		if _, ok := seen[stat.ChatIdentifier]; ok {
			continue
		}
		seen[stat.ChatIdentifier] = struct{}{}

		handle := normalizeHandle(firstNonEmpty(stat.UncanonicalizedHandle, stat.Handle, stat.ChatIdentifier))
		out = append(out, Correspondent{
			ChatID:         buildChatID(stat.ChatIdentifier),
			ChatIdentifier: stat.ChatIdentifier,
			Handle:         handle,
			Name:           firstNonEmpty(nameByIdentifier[stat.ChatIdentifier], nameByHandle[handle], nameByHandle[stat.Handle], stat.DisplayName),
			Service:        stat.Service,
			LastMessage:    appleNanoToTime(stat.LastMessageRaw),
			MessageCount:   stat.MessageCount,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LastMessage.Equal(out[j].LastMessage) {
			return out[i].ChatIdentifier < out[j].ChatIdentifier
		}
		return out[i].LastMessage.After(out[j].LastMessage)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func draftFor(c Correspondent) (people.Draft, bool) {
	d := people.Draft{SourceID: c.ChatID, Name: c.Name}
	switch {
	case strings.Contains(c.Handle, "@"):
		d.Email = c.Handle
	case identity.NormalizePhone(c.Handle) != "":
		d.Phone = c.Handle
	default:
		return people.Draft{}, false
	}
	return d, true
}

func (s *Source) listChatStats(ctx context.Context, limit int) ([]chatStat, error) {
	const query = `
WITH message_stats AS (
	SELECT
		cmj.chat_id AS chat_id,
		MAX(m.date) AS last_date,
		COUNT(m.ROWID) AS message_count
	FROM chat_message_join cmj
	JOIN message m ON m.ROWID = cmj.message_id
	WHERE COALESCE(m.is_empty, 0) = 0
	GROUP BY cmj.chat_id
), first_handle AS (
	SELECT chat_id, MIN(handle_id) AS handle_id
	FROM chat_handle_join
	GROUP BY chat_id
)
SELECT
	COALESCE(c.chat_identifier, ''),
	COALESCE(c.service_name, ''),
	COALESCE(c.display_name, ''),
	COALESCE(h.id, ''),
	COALESCE(h.uncanonicalized_id, ''),
	COALESCE(ms.last_date, 0),
	COALESCE(ms.message_count, 0)
FROM chat c
JOIN message_stats ms ON ms.chat_id = c.ROWID
LEFT JOIN first_handle fh ON fh.chat_id = c.ROWID
LEFT JOIN handle h ON h.ROWID = fh.handle_id
ORDER BY ms.last_date DESC
LIMIT ?;
`
	records, err := s.query(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	stats := make([]chatStat, 0, len(records))
	for _, row := range records {
		if len(row) < 7 {
			continue
		}
		count, _ := strconv.Atoi(row[6])
		stats = append(stats, chatStat{
			ChatIdentifier:        row[0],
			Service:               row[1],
			DisplayName:           row[2],
			Handle:                row[3],
			UncanonicalizedHandle: row[4],
			LastMessageRaw:        row[5],
			MessageCount:          count,
		})
	}
	return stats, nil
}

var participantsScript = []string{
	`set oldDelimiters to AppleScript's text item delimiters`,
	`set AppleScript's text item delimiters to "\n"`,
	`tell application "Messages"`,
	`set rows to {}`,
	`repeat with c in chats`,
	`set cid to id of c`,
	`set h to ""`,
	`set n to ""`,
	`try`,
	`set ps to participants of c`,
	`if (count of ps) = 1 then`,
	`set p to first item of ps`,
	`set h to handle of p`,
	`set n to full name of p`,
	`end if`,
	`end try`,
	`set end of rows to (cid & "|||" & h & "|||" & n)`,
	`end repeat`,
	`set outputText to rows as text`,
	`end tell`,
	`set AppleScript's text item delimiters to oldDelimiters`,
	`return outputText`,
}

func (s *Source) listChatParticipants(ctx context.Context) ([]chatParticipant, error) {
	out, err := s.run(ctx, participantsScript, nil)
	if err != nil {
		return nil, err
	}
	rows := osascript.SplitRows(out, 3)
	participants := make([]chatParticipant, 0, len(rows))
	for _, row := range rows {
		participants = append(participants, chatParticipant{ChatID: row[0], Handle: row[1], Name: row[2]})
	}
	return participants, nil
}

func (s *Source) query(ctx context.Context, query string, args ...any) ([][]string, error) {
	db, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("messages: sqlite query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("messages: reading sqlite columns failed: %w", err)
	}

	records := make([][]string, 0, 64)
	for rows.Next() {
		values := make([]any, len(columns))
		valuePointers := make([]any, len(columns))
		for i := range values {
			valuePointers[i] = &values[i]
		}
		if err := rows.Scan(valuePointers...); err != nil {
			return nil, fmt.Errorf("messages: scanning sqlite row failed: %w", err)
		}

		record := make([]string, len(columns))
		for i, value := range values {
			switch typed := value.(type) {
			case nil:
				record[i] = ""
			case []byte:
				record[i] = string(typed)
			default:
				record[i] = fmt.Sprint(typed)
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messages: iterating sqlite rows failed: %w", err)
	}
	return records, nil
}

// open opens the chat database read-only.
func (s *Source) open(ctx context.Context) (*sql.DB, error) {
	dbPath, err := s.dbPath()
	if err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", strings.ReplaceAll(dbPath, " ", "%20"))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("messages: opening sqlite database failed: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		if isAccessDenied(err) {
			return nil, accessDenied(dbPath, err)
		}
		return nil, fmt.Errorf("messages: connecting to sqlite database failed: %w", err)
	}
	return db, nil
}

func (s *Source) dbPath() (string, error) {
	path := s.path
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("messages: unable to resolve home directory: %w", err)
		}
		path = filepath.Join(home, messagesDBRelativePath)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return "", accessDenied(path, err)
		}
		return "", fmt.Errorf("messages: chat database unavailable at %s: %w", path, err)
	}
	return path, nil
}

func isAccessDenied(err error) bool {
	if errors.Is(err, os.ErrPermission) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrCantOpen || sqliteErr.Code == sqlite3.ErrAuth || sqliteErr.Code == sqlite3.ErrPerm
	}
	return false
}

func accessDenied(path string, err error) error {
	return &people.Error{
		Code:    people.ErrorCodePermissionDenied,
		Message: fmt.Sprintf("reading %s needs Full Disk Access", path),
		Err:     err,
	}
}

func isGroupChat(chatID string, identifier string) bool {
	if strings.Contains(chatID, ";+;") {
		return true
	}
	return strings.HasPrefix(identifier, "chat") && !strings.Contains(identifier, "@")
}

func appleNanoToTime(raw string) time.Time {
	nanos, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || nanos <= 0 {
		return time.Time{}
	}
	sec := nanos / int64(time.Second)
	nsec := nanos % int64(time.Second)
	return time.Unix(appleReferenceUnix+sec, nsec).UTC()
}

func parseChatIdentifier(chatID string) string {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return ""
	}
	parts := strings.Split(chatID, ";")
	return parts[len(parts)-1]
}

func buildChatID(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return ""
	}
	return "any;-;" + identifier
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// normalizeHandle strips service suffixes such as "(smsft)".
func normalizeHandle(handle string) string {
	handle = strings.TrimSpace(handle)
	if i := strings.Index(handle, "("); i > 0 && strings.HasSuffix(handle, ")") {
		handle = strings.TrimSpace(handle[:i])
	}
	return handle
}
