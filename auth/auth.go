// Package auth provides local anonymous and email/password sign-in with
// identity-change notifications.
//
// Local mirrors the lifecycle the rest of the module relies on: callers
// ensure someone is signed in (anonymously if needed) before touching
// user-scoped data, and subscriptions re-bind when OnChange reports a new
// identity.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spachava753/stayconnected/identity"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

var (
	// ErrInvalidCredentials is returned when email or password do not match.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrEmailTaken is returned by SignUp when the email already has an account.
	ErrEmailTaken = errors.New("auth: email already registered")
	// ErrNotSignedIn is returned when an operation needs a current user.
	ErrNotSignedIn = errors.New("auth: no user signed in")
	// ErrWeakPassword is returned by SignUp for short passwords.
	ErrWeakPassword = errors.New("auth: password too short")
	// ErrUserNotFound is returned by Credentials lookups for unknown users.
	ErrUserNotFound = errors.New("auth: user not found")
)

// User is a signed-in identity.
type User struct {
	ID        string
	Email     string
	Anonymous bool
}

// Credentials persists accounts and the last signed-in user.
//
// CreateUser returns ErrEmailTaken for a duplicate email. UserByEmail and
// LoadSession return ErrUserNotFound when nothing matches. SaveSession with
// an empty id clears the session.
type Credentials interface {
	CreateUser(ctx context.Context, u User, passwordHash string) error
	UserByEmail(ctx context.Context, email string) (User, string, error)
	SaveSession(ctx context.Context, userID string) error
	LoadSession(ctx context.Context) (User, error)
}

// Local is a Credentials-backed authenticator.
type Local struct {
	creds Credentials
	log   *zap.Logger
	cost  int

	// changeMu orders identity changes and their delivery to listeners.
	// Listeners must not sign in or out from inside the callback.
	changeMu sync.Mutex

	mu        sync.Mutex
	current   *User
	listeners map[uint64]func(*User)
	nextID    uint64
}

// Option configures Local.
type Option func(*Local)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Local) {
		if l != nil {
			a.log = l
		}
	}
}

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) Option {
	return func(a *Local) {
		a.cost = cost
	}
}

// NewLocal returns an authenticator with nobody signed in.
func NewLocal(creds Credentials, opts ...Option) *Local {
	a := &Local{
		creds:     creds,
		log:       zap.NewNop(),
		cost:      bcrypt.DefaultCost,
		listeners: map[uint64]func(*User){},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Restore syncs the current user with the persisted session, picking up
// sign-ins and sign-outs made by other processes. Listeners are notified
// only when the user changes.
func (a *Local) Restore(ctx context.Context) error {
	a.changeMu.Lock()
	defer a.changeMu.Unlock()

	var next *User
	u, err := a.creds.LoadSession(ctx)
	switch {
	case errors.Is(err, ErrUserNotFound):
	case err != nil:
		return err
	default:
		next = &u
	}

	a.mu.Lock()
	same := (a.current == nil && next == nil) || (a.current != nil && next != nil && *a.current == *next)
	a.mu.Unlock()
	if same {
		return nil
	}
	a.setLocked(next)
	return nil
}

// Current returns the signed-in user.
func (a *Local) Current() (User, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return User{}, false
	}
	return *a.current, true
}

// RequireUID returns the current user id or ErrNotSignedIn.
func (a *Local) RequireUID() (string, error) {
	u, ok := a.Current()
	if !ok {
		return "", ErrNotSignedIn
	}
	return u.ID, nil
}

// EnsureSignedIn returns the current user id, signing in anonymously when
// nobody is signed in.
func (a *Local) EnsureSignedIn(ctx context.Context) (string, error) {
	if u, ok := a.Current(); ok {
		return u.ID, nil
	}
	u, err := a.SignInAnonymously(ctx)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

// SignInAnonymously creates a fresh anonymous user and signs it in.
func (a *Local) SignInAnonymously(ctx context.Context) (User, error) {
	u := User{ID: uuid.NewString(), Anonymous: true}
	if err := a.creds.CreateUser(ctx, u, ""); err != nil {
		return User{}, err
	}
	if err := a.persist(ctx, &u); err != nil {
		return User{}, err
	}
	a.log.Info("signed in anonymously", zap.String("user_id", u.ID))
	return u, nil
}

// SignUp registers an email account and signs it in.
func (a *Local) SignUp(ctx context.Context, email string, password string) (User, error) {
	email = identity.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return User{}, ErrInvalidCredentials
	}
	if len(password) < MinPasswordLength {
		return User{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return User{}, err
	}
	u := User{ID: uuid.NewString(), Email: email}
	if err := a.creds.CreateUser(ctx, u, string(hash)); err != nil {
		return User{}, err
	}
	if err := a.persist(ctx, &u); err != nil {
		return User{}, err
	}
	a.log.Info("signed up", zap.String("user_id", u.ID))
	return u, nil
}

// SignIn verifies an email account and signs it in.
func (a *Local) SignIn(ctx context.Context, email string, password string) (User, error) {
	u, hash, err := a.creds.UserByEmail(ctx, identity.NormalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if err := a.persist(ctx, &u); err != nil {
		return User{}, err
	}
	a.log.Info("signed in", zap.String("user_id", u.ID))
	return u, nil
}

// SignOut clears the current user.
func (a *Local) SignOut(ctx context.Context) error {
	if err := a.persist(ctx, nil); err != nil {
		return err
	}
	a.log.Info("signed out")
	return nil
}

// OnChange registers fn for identity changes and calls it once with the
// current user (nil when signed out). Calls to fn never overlap and arrive
// in the order the changes happened. The returned func unregisters fn.
func (a *Local) OnChange(fn func(*User)) func() {
	a.changeMu.Lock()
	defer a.changeMu.Unlock()

	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	current := a.current
	a.mu.Unlock()

	fn(current)
	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

func (a *Local) persist(ctx context.Context, u *User) error {
	id := ""
	if u != nil {
		id = u.ID
	}
	a.changeMu.Lock()
	defer a.changeMu.Unlock()
	if err := a.creds.SaveSession(ctx, id); err != nil {
		return err
	}
	a.setLocked(u)
	return nil
}

// setLocked swaps the current user and notifies listeners. a.changeMu must
// be held.
func (a *Local) setLocked(u *User) {
	a.mu.Lock()
	if u != nil {
		copied := *u
		u = &copied
	}
	a.current = u
	fns := make([]func(*User), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
}
