package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spachava753/stayconnected/people"
)

const contactColumns = `key, name, nickname, phone, email, birthday, relationship, notes, created_at, updated_at`

// watcher holds the latest undelivered snapshot for one Watch call.
type watcher struct {
	ch chan []people.Person
}

// Create inserts p unless the key is already stored for userID.
func (s *Store) Create(ctx context.Context, userID string, p people.Person) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO contacts (user_id, `+contactColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, key) DO NOTHING;`,
		userID, p.Key, p.Name, p.Nickname, p.Phone, p.Email, p.Birthday, string(p.Relationship), p.Notes,
		toUnix(p.CreatedAt), toUnix(p.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("store: inserting contact %q failed: %w", p.Key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: reading insert result failed: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	s.notify(ctx, userID)
	return true, nil
}

// Put merges p into the stored record. CreatedAt of an existing record is
// kept.
func (s *Store) Put(ctx context.Context, userID string, p people.Person) (people.Person, error) {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO contacts (user_id, `+contactColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, key) DO UPDATE SET
	name = excluded.name,
	nickname = excluded.nickname,
	phone = excluded.phone,
	email = excluded.email,
	birthday = excluded.birthday,
	relationship = excluded.relationship,
	notes = excluded.notes,
	updated_at = excluded.updated_at;`,
		userID, p.Key, p.Name, p.Nickname, p.Phone, p.Email, p.Birthday, string(p.Relationship), p.Notes,
		toUnix(p.CreatedAt), toUnix(p.UpdatedAt),
	)
	if err != nil {
		return people.Person{}, fmt.Errorf("store: upserting contact %q failed: %w", p.Key, err)
	}
	stored, err := s.Get(ctx, userID, p.Key)
	if err != nil {
		return people.Person{}, err
	}
	s.notify(ctx, userID)
	return stored, nil
}

// Get returns one stored person.
func (s *Store) Get(ctx context.Context, userID string, key string) (people.Person, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE user_id = ? AND key = ?;`, userID, key)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return people.Person{}, &people.Error{Code: people.ErrorCodeNotFound, Message: fmt.Sprintf("contact %q", key)}
	}
	if err != nil {
		return people.Person{}, fmt.Errorf("store: reading contact %q failed: %w", key, err)
	}
	return p, nil
}

// Delete removes one person and, by cascade, their plans.
func (s *Store) Delete(ctx context.Context, userID string, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE user_id = ? AND key = ?;`, userID, key)
	if err != nil {
		return fmt.Errorf("store: deleting contact %q failed: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: reading delete result failed: %w", err)
	}
	if n == 0 {
		return &people.Error{Code: people.ErrorCodeNotFound, Message: fmt.Sprintf("contact %q", key)}
	}
	s.notify(ctx, userID)
	return nil
}

// List returns the user's people ordered by name.
func (s *Store) List(ctx context.Context, userID string) ([]people.Person, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE user_id = ? ORDER BY name ASC, key ASC;`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: listing contacts failed: %w", err)
	}
	defer rows.Close()

	out := make([]people.Person, 0, 64)
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scanning contact row failed: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating contact rows failed: %w", err)
	}
	return out, nil
}

// Watch returns a channel that receives the user's current people right
// away and again after every write for that user. A slow reader only sees
// the latest snapshot. The channel is closed when ctx is done.
func (s *Store) Watch(ctx context.Context, userID string) (<-chan []people.Person, error) {
	w := &watcher{ch: make(chan []people.Person, 1)}

	s.mu.Lock()
	initial, err := s.List(ctx, userID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.watchers[userID] == nil {
		s.watchers[userID] = map[*watcher]struct{}{}
	}
	s.watchers[userID][w] = struct{}{}
	w.ch <- initial
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers[userID], w)
		if len(s.watchers[userID]) == 0 {
			delete(s.watchers, userID)
		}
		close(w.ch)
		s.mu.Unlock()
	}()
	return w.ch, nil
}

// Refresh pushes a fresh snapshot to the user's watchers. Use it to pick up
// writes made through another connection or process.
func (s *Store) Refresh(ctx context.Context, userID string) {
	s.notify(ctx, userID)
}

// notify pushes a fresh snapshot to every watcher of userID. Snapshots are
// read and delivered under s.mu so watchers never see an older list after a
// newer one.
func (s *Store) notify(ctx context.Context, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.watchers[userID]) == 0 {
		return
	}
	snapshot, err := s.List(context.WithoutCancel(ctx), userID)
	if err != nil {
		s.log.Warn("watch snapshot failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	for w := range s.watchers[userID] {
		select {
		case <-w.ch:
		default:
		}
		w.ch <- snapshot
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (people.Person, error) {
	var (
		p                  people.Person
		relationship       string
		createdAt, updated int64
	)
	err := row.Scan(&p.Key, &p.Name, &p.Nickname, &p.Phone, &p.Email, &p.Birthday, &relationship, &p.Notes, &createdAt, &updated)
	if err != nil {
		return people.Person{}, err
	}
	p.Relationship = people.Relationship(relationship)
	p.CreatedAt = fromUnix(createdAt)
	p.UpdatedAt = fromUnix(updated)
	return p, nil
}
