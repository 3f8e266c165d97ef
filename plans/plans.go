// Package plans schedules one-on-one meetings with stored people.
package plans

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MinDuration is the shortest plan.
	MinDuration = 15 * time.Minute
	// MaxDuration is the longest plan.
	MaxDuration = 240 * time.Minute
	// DurationStep is the granularity of plan durations.
	DurationStep = 15 * time.Minute
)

// ErrorCode classifies plan errors.
type ErrorCode string

const (
	ErrorCodeInvalidInput ErrorCode = "invalid_input"
	ErrorCodeNotFound     ErrorCode = "not_found"
	ErrorCodePersistence  ErrorCode = "persistence"
)

var (
	// ErrInvalidInput matches errors with ErrorCodeInvalidInput.
	ErrInvalidInput = &Error{Code: ErrorCodeInvalidInput}
	// ErrNotFound matches errors with ErrorCodeNotFound.
	ErrNotFound = &Error{Code: ErrorCodeNotFound}
	// ErrPersistence matches errors with ErrorCodePersistence.
	ErrPersistence = &Error{Code: ErrorCodePersistence}
)

// Error is a typed package error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error returns the formatted error message.
func (e *Error) Error() string {
	if e == nil {
		return "plans: <nil>"
	}
	msg := fmt.Sprintf("plans: %s", e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

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

// Plan is one scheduled meeting with a stored person.
type Plan struct {
	ID         string
	ContactKey string
	StartsAt   time.Time
	Duration   time.Duration
	Location   string
	Notes      string
	CreatedAt  time.Time
}

// EndsAt returns StartsAt + Duration.
func (p Plan) EndsAt() time.Time {
	return p.StartsAt.Add(p.Duration)
}

// PlanInput is the request for Schedule.
type PlanInput struct {
	ContactKey      string    `validate:"required"`
	StartsAt        time.Time `validate:"required"`
	DurationMinutes int       `validate:"min=15,max=240,quarterhour"`
	Location        string    `validate:"max=200"`
	Notes           string    `validate:"max=1000"`
}

// Store persists plans scoped by user id.
//
// InsertPlan returns ErrNotFound when ContactKey does not name a stored
// person. ListPlans returns plans ordered by StartsAt ascending.
type Store interface {
	InsertPlan(ctx context.Context, userID string, p Plan) error
	ListPlans(ctx context.Context, userID string) ([]Plan, error)
	DeletePlan(ctx context.Context, userID string, id string) error
}

// DurationOptions lists the selectable durations in minutes.
func DurationOptions() []int {
	out := make([]int, 0, int(MaxDuration/DurationStep))
	for d := MinDuration; d <= MaxDuration; d += DurationStep {
		out = append(out, int(d/time.Minute))
	}
	return out
}

// Planner schedules and lists plans.
type Planner struct {
	store    Store
	log      *zap.Logger
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Planner) {
		if l != nil {
			p.log = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) {
		if now != nil {
			p.now = now
		}
	}
}

// New returns a Planner backed by store.
func New(store Store, opts ...Option) *Planner {
	p := &Planner{
		store:    store,
		log:      zap.NewNop(),
		validate: newValidator(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation("quarterhour", func(fl validator.FieldLevel) bool {
		return fl.Field().Int()%int64(DurationStep/time.Minute) == 0
	})
	if err != nil {
		panic(fmt.Sprintf("plans: registering quarterhour validation: %v", err))
	}
	return v
}

// Schedule validates and stores a new plan.
func (p *Planner) Schedule(ctx context.Context, userID string, in PlanInput) (Plan, error) {
	if strings.TrimSpace(userID) == "" {
		return Plan{}, &Error{Code: ErrorCodeInvalidInput, Message: "user id is required"}
	}
	in.ContactKey = strings.TrimSpace(in.ContactKey)
	in.Location = strings.TrimSpace(in.Location)
	if err := p.validate.Struct(in); err != nil {
		return Plan{}, &Error{Code: ErrorCodeInvalidInput, Err: err}
	}

	plan := Plan{
		ID:         p.newID(),
		ContactKey: in.ContactKey,
		StartsAt:   in.StartsAt.UTC(),
		Duration:   time.Duration(in.DurationMinutes) * time.Minute,
		Location:   in.Location,
		Notes:      in.Notes,
		CreatedAt:  p.now().UTC(),
	}
	if err := p.store.InsertPlan(ctx, userID, plan); err != nil {
		return Plan{}, wrap(err, "inserting plan for %q", plan.ContactKey)
	}
	p.log.Info("scheduled plan",
		zap.String("user_id", userID),
		zap.String("plan_id", plan.ID),
		zap.String("contact_key", plan.ContactKey),
		zap.Time("starts_at", plan.StartsAt),
	)
	return plan, nil
}

// Upcoming returns plans that have not ended yet, soonest first.
func (p *Planner) Upcoming(ctx context.Context, userID string) ([]Plan, error) {
	all, err := p.store.ListPlans(ctx, userID)
	if err != nil {
		return nil, wrap(err, "listing plans")
	}
	now := p.now()
	out := make([]Plan, 0, len(all))
	for _, plan := range all {
		if plan.EndsAt().After(now) {
			out = append(out, plan)
		}
	}
	return out, nil
}

// History returns plans that have ended, most recent first.
func (p *Planner) History(ctx context.Context, userID string) ([]Plan, error) {
	all, err := p.store.ListPlans(ctx, userID)
	if err != nil {
		return nil, wrap(err, "listing plans")
	}
	now := p.now()
	out := make([]Plan, 0, len(all))
	for _, plan := range all {
		if !plan.EndsAt().After(now) {
			out = append(out, plan)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartsAt.After(out[j].StartsAt) })
	return out, nil
}

// Cancel deletes a plan.
func (p *Planner) Cancel(ctx context.Context, userID string, id string) error {
	if err := p.store.DeletePlan(ctx, userID, id); err != nil {
		return wrap(err, "deleting plan %q", id)
	}
	p.log.Info("cancelled plan", zap.String("user_id", userID), zap.String("plan_id", id))
	return nil
}

func wrap(err error, format string, args ...any) error {
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return &Error{Code: ErrorCodePersistence, Message: fmt.Sprintf(format, args...), Err: err}
}
