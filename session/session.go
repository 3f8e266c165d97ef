// Package session keeps a live people subscription bound to whoever is
// signed in.
//
// A Binder listens for identity changes and, on each one, cancels the
// previous subscription before opening a new one for the new user. Every
// subscription carries a generation number; snapshots from an older
// generation are dropped, so a reader never sees the previous user's people
// after a change.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spachava753/stayconnected/auth"
	"github.com/spachava753/stayconnected/people"
)

// ErrAlreadyRunning is returned when Run is called on a Binder that has
// already been started.
var ErrAlreadyRunning = errors.New("session: binder already running")

// State is the binder's position in its lifecycle.
type State int

const (
	// Unauthenticated means nobody is signed in and nothing is subscribed.
	Unauthenticated State = iota
	// Authenticating means a user is known but the first snapshot for them
	// has not arrived yet.
	Authenticating
	// Subscribed means snapshots for the current user are flowing.
	Subscribed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Subscribed:
		return "subscribed"
	default:
		return "unknown"
	}
}

// Authenticator reports identity changes. OnChange must call fn with the
// current user right away and again after every change. The returned func
// unregisters fn.
type Authenticator interface {
	OnChange(fn func(*auth.User)) func()
}

// Watcher opens a people subscription for one user. The channel must be
// closed once ctx is done.
type Watcher interface {
	Watch(ctx context.Context, userID string) (<-chan []people.Person, error)
}

// Status describes the binder at one moment.
type Status struct {
	State      State
	UserID     string
	Generation uint64
	// Err is the last subscribe failure for the current generation.
	Err error
}

// Snapshot is one delivery of the signed-in user's people. A sign-out
// delivers an empty snapshot with an empty UserID.
type Snapshot struct {
	UserID     string
	People     []people.Person
	Generation uint64
}

// Binder rebinds a Watcher subscription on every identity change.
type Binder struct {
	auth    Authenticator
	watcher Watcher
	log     *zap.Logger

	// mailbox holds at most one pending wakeup; pending is the newest
	// identity, so a burst of changes collapses into one rebind.
	mailbox chan struct{}
	pmu     sync.Mutex
	pending *auth.User

	mu      sync.Mutex
	status  Status
	out     chan Snapshot
	started bool
}

// Option configures a Binder.
type Option func(*Binder)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Binder) {
		if l != nil {
			b.log = l
		}
	}
}

// New returns a Binder. Call Run to start it.
func New(a Authenticator, w Watcher, opts ...Option) *Binder {
	b := &Binder{
		auth:    a,
		watcher: w,
		log:     zap.NewNop(),
		mailbox: make(chan struct{}, 1),
		out:     make(chan Snapshot, 1),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Snapshots returns the delivery channel. It holds only the latest
// snapshot and is closed when Run returns.
func (b *Binder) Snapshots() <-chan Snapshot {
	return b.out
}

// Status returns the current status.
func (b *Binder) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// subscription is one live Watch and the goroutine forwarding it.
type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *subscription) stop() {
	if s == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Run follows identity changes until ctx is done. At most one subscription
// is live at any time.
func (b *Binder) Run(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return ErrAlreadyRunning
	}
	b.started = true
	b.mu.Unlock()

	unregister := b.auth.OnChange(b.enqueue)
	var current *subscription
	defer func() {
		unregister()
		current.stop()
		b.mu.Lock()
		close(b.out)
		b.mu.Unlock()
		b.log.Debug("binder stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.mailbox:
		}

		b.pmu.Lock()
		user := b.pending
		b.pmu.Unlock()

		current.stop()
		current = b.bind(ctx, user)
	}
}

func (b *Binder) enqueue(u *auth.User) {
	b.pmu.Lock()
	if u != nil {
		copied := *u
		u = &copied
	}
	b.pending = u
	b.pmu.Unlock()

	select {
	case b.mailbox <- struct{}{}:
	default:
	}
}

// bind starts the next generation for user. The previous subscription must
// already be stopped.
func (b *Binder) bind(ctx context.Context, user *auth.User) *subscription {
	b.mu.Lock()
	// An unread snapshot belongs to the previous identity.
	select {
	case <-b.out:
	default:
	}
	gen := b.status.Generation + 1
	if user == nil {
		b.status = Status{State: Unauthenticated, Generation: gen}
		b.publishLocked(Snapshot{Generation: gen})
		b.mu.Unlock()
		b.log.Debug("unbound", zap.Uint64("generation", gen))
		return nil
	}
	b.status = Status{State: Authenticating, UserID: user.ID, Generation: gen}
	b.mu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	ch, err := b.watcher.Watch(subCtx, user.ID)
	if err != nil {
		cancel()
		b.mu.Lock()
		if b.status.Generation == gen {
			b.status.Err = err
		}
		b.mu.Unlock()
		b.log.Warn("subscribe failed", zap.String("user_id", user.ID), zap.Uint64("generation", gen), zap.Error(err))
		return nil
	}
	b.log.Debug("bound", zap.String("user_id", user.ID), zap.Uint64("generation", gen))

	sub := &subscription{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		for list := range ch {
			b.deliver(gen, user.ID, list)
		}
	}()
	return sub
}

func (b *Binder) deliver(gen uint64, userID string, list []people.Person) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status.Generation != gen {
		b.log.Debug("dropped stale snapshot", zap.String("user_id", userID), zap.Uint64("generation", gen))
		return
	}
	b.status.State = Subscribed
	b.publishLocked(Snapshot{UserID: userID, People: list, Generation: gen})
}

// publishLocked replaces any unread snapshot with s. b.mu must be held.
func (b *Binder) publishLocked(s Snapshot) {
	select {
	case <-b.out:
	default:
	}
	b.out <- s
}
