package store

import (
	"context"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/spachava753/stayconnected/plans"
)

// InsertPlan stores a plan. The contact must already be stored for userID.
func (s *Store) InsertPlan(ctx context.Context, userID string, p plans.Plan) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO plans (id, user_id, contact_key, starts_at, duration_minutes, location, notes, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);`,
		p.ID, userID, p.ContactKey, toUnix(p.StartsAt), int64(p.Duration/time.Minute), p.Location, p.Notes, toUnix(p.CreatedAt),
	)
	if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
		return &plans.Error{Code: plans.ErrorCodeNotFound, Message: fmt.Sprintf("contact %q", p.ContactKey)}
	}
	if err != nil {
		return fmt.Errorf("store: inserting plan %q failed: %w", p.ID, err)
	}
	return nil
}

// ListPlans returns the user's plans ordered by start time.
func (s *Store) ListPlans(ctx context.Context, userID string) ([]plans.Plan, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, contact_key, starts_at, duration_minutes, location, notes, created_at
FROM plans WHERE user_id = ? ORDER BY starts_at ASC, id ASC;`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: listing plans failed: %w", err)
	}
	defer rows.Close()

	out := make([]plans.Plan, 0, 16)
	for rows.Next() {
		var (
			p                 plans.Plan
			startsAt, created int64
			durationMinutes   int64
		)
		if err := rows.Scan(&p.ID, &p.ContactKey, &startsAt, &durationMinutes, &p.Location, &p.Notes, &created); err != nil {
			return nil, fmt.Errorf("store: scanning plan row failed: %w", err)
		}
		p.StartsAt = fromUnix(startsAt)
		p.Duration = time.Duration(durationMinutes) * time.Minute
		p.CreatedAt = fromUnix(created)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating plan rows failed: %w", err)
	}
	return out, nil
}

// DeletePlan removes one plan.
func (s *Store) DeletePlan(ctx context.Context, userID string, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE user_id = ? AND id = ?;`, userID, id)
	if err != nil {
		return fmt.Errorf("store: deleting plan %q failed: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: reading delete result failed: %w", err)
	}
	if n == 0 {
		return &plans.Error{Code: plans.ErrorCodeNotFound, Message: fmt.Sprintf("plan %q", id)}
	}
	return nil
}
