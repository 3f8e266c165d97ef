package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nalgeon/be"
	"go.uber.org/goleak"

	"github.com/spachava753/stayconnected/auth"
	"github.com/spachava753/stayconnected/people"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAuth struct {
	mu      sync.Mutex
	current *auth.User
	fns     map[int]func(*auth.User)
	next    int
}

func newFakeAuth(u *auth.User) *fakeAuth {
	return &fakeAuth{current: u, fns: map[int]func(*auth.User){}}
}

func (f *fakeAuth) OnChange(fn func(*auth.User)) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.fns[id] = fn
	current := f.current
	f.mu.Unlock()

	fn(current)
	return func() {
		f.mu.Lock()
		delete(f.fns, id)
		f.mu.Unlock()
	}
}

func (f *fakeAuth) set(u *auth.User) {
	f.mu.Lock()
	f.current = u
	fns := make([]func(*auth.User), 0, len(f.fns))
	for _, fn := range f.fns {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(u)
	}
}

type fakeWatcher struct {
	mu    sync.Mutex
	data  map[string][]people.Person
	feeds map[string]chan []people.Person
	fail  error
	live  int
	max   int
	opens int
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{data: map[string][]people.Person{}, feeds: map[string]chan []people.Person{}}
}

func (w *fakeWatcher) Watch(ctx context.Context, userID string) (<-chan []people.Person, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		return nil, w.fail
	}
	w.opens++
	w.live++
	if w.live > w.max {
		w.max = w.live
	}
	ch := make(chan []people.Person, 1)
	ch <- w.data[userID]
	w.feeds[userID] = ch
	go func() {
		<-ctx.Done()
		w.mu.Lock()
		w.live--
		if w.feeds[userID] == ch {
			delete(w.feeds, userID)
		}
		close(ch)
		w.mu.Unlock()
	}()
	return ch, nil
}

// push replaces userID's people and delivers them to an open feed.
func (w *fakeWatcher) push(userID string, list []people.Person) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data[userID] = list
	if ch, ok := w.feeds[userID]; ok {
		select {
		case <-ch:
		default:
		}
		ch <- list
	}
}

func (w *fakeWatcher) failWith(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fail = err
}

func (w *fakeWatcher) stats() (live, max, opens int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.live, w.max, w.opens
}

func user(id string) *auth.User {
	return &auth.User{ID: id}
}

func named(names ...string) []people.Person {
	out := make([]people.Person, len(names))
	for i, n := range names {
		out[i] = people.Person{Key: "name:" + n, Name: n}
	}
	return out
}

func start(t *testing.T, b *Binder) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- b.Run(ctx) }()
	return func() {
		cancel()
		be.Err(t, <-errc, nil)
	}
}

// waitFor reads snapshots until match returns true.
func waitFor(t *testing.T, b *Binder, match func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s, ok := <-b.Snapshots():
			if !ok {
				t.Fatal("snapshots closed")
			}
			if match(s) {
				return s
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func forUser(id string) func(Snapshot) bool {
	return func(s Snapshot) bool { return s.UserID == id }
}

func TestBinderFollowsIdentity(t *testing.T) {
	a := newFakeAuth(user("u1"))
	w := newFakeWatcher()
	w.data["u1"] = named("Ana")
	w.data["u2"] = named("Bea", "Cy")
	b := New(a, w)
	stop := start(t, b)

	s := waitFor(t, b, forUser("u1"))
	be.Equal(t, len(s.People), 1)
	be.Equal(t, b.Status().State, Subscribed)

	w.push("u1", named("Ana", "Dee"))
	s = waitFor(t, b, func(s Snapshot) bool { return len(s.People) == 2 })
	be.Equal(t, s.UserID, "u1")

	a.set(user("u2"))
	s = waitFor(t, b, forUser("u2"))
	be.Equal(t, s.People[0].Name, "Bea")
	st := b.Status()
	be.Equal(t, st.UserID, "u2")
	be.Equal(t, st.Generation, s.Generation)

	a.set(nil)
	s = waitFor(t, b, forUser(""))
	be.Equal(t, len(s.People), 0)
	be.Equal(t, b.Status().State, Unauthenticated)

	stop()
	live, max, _ := w.stats()
	be.Equal(t, live, 0)
	be.Equal(t, max, 1)

	_, ok := <-b.Snapshots()
	be.Equal(t, ok, false)
}

func TestBinderChurnKeepsOneSubscription(t *testing.T) {
	a := newFakeAuth(nil)
	w := newFakeWatcher()
	for i := range 5 {
		id := fmt.Sprintf("u%d", i)
		w.data[id] = named(id)
	}
	w.data["final"] = named("Final")
	b := New(a, w)
	stop := start(t, b)

	for i := range 200 {
		a.set(user(fmt.Sprintf("u%d", i%5)))
		if i%7 == 0 {
			a.set(nil)
		}
	}
	a.set(user("final"))

	s := waitFor(t, b, forUser("final"))
	be.Equal(t, s.People[0].Name, "Final")
	be.Equal(t, b.Status().UserID, "final")

	stop()
	live, max, opens := w.stats()
	be.Equal(t, live, 0)
	be.Equal(t, max, 1)
	be.True(t, opens >= 1)
}

func TestBinderDropsStaleGeneration(t *testing.T) {
	b := New(newFakeAuth(nil), newFakeWatcher())
	b.status = Status{State: Subscribed, UserID: "u2", Generation: 2}

	b.deliver(1, "u1", named("Old"))
	select {
	case s := <-b.out:
		t.Fatalf("unexpected snapshot %+v", s)
	default:
	}

	b.deliver(2, "u2", named("New"))
	s := <-b.out
	be.Equal(t, s.UserID, "u2")
	be.Equal(t, s.People[0].Name, "New")
}

// waitStatus polls Status until match returns true.
func waitStatus(t *testing.T, b *Binder, match func(Status) bool) Status {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		st := b.Status()
		if match(st) {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for status, last %+v", st)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBinderDiscardsUnreadSnapshotOnSwitch(t *testing.T) {
	a := newFakeAuth(user("alice"))
	w := newFakeWatcher()
	w.data["alice"] = []people.Person{{Key: "email:alice-secret@example.com", Name: "Private"}}
	b := New(a, w)
	stop := start(t, b)

	// alice's snapshot is published but never read.
	waitStatus(t, b, func(st Status) bool { return st.State == Subscribed && st.UserID == "alice" })

	w.failWith(errors.New("offline"))
	a.set(user("bob"))
	st := waitStatus(t, b, func(st Status) bool { return st.UserID == "bob" && st.Err != nil })
	be.Equal(t, st.State, Authenticating)

	select {
	case s := <-b.Snapshots():
		t.Fatalf("got snapshot for %q after switching to bob: %+v", s.UserID, s.People)
	default:
	}
	stop()
}

func TestBinderSubscribeFailure(t *testing.T) {
	boom := errors.New("disk gone")
	w := newFakeWatcher()
	w.fail = boom
	b := New(newFakeAuth(user("u1")), w)
	stop := start(t, b)

	deadline := time.Now().Add(2 * time.Second)
	for b.Status().Err == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	st := b.Status()
	be.Err(t, st.Err, boom)
	be.Equal(t, st.State, Authenticating)
	be.Equal(t, st.UserID, "u1")
	stop()
}

func TestBinderRunOnce(t *testing.T) {
	b := New(newFakeAuth(nil), newFakeWatcher())
	stop := start(t, b)
	waitFor(t, b, forUser(""))

	be.Err(t, b.Run(context.Background()), ErrAlreadyRunning)
	stop()
}

func TestStateString(t *testing.T) {
	be.Equal(t, Unauthenticated.String(), "unauthenticated")
	be.Equal(t, Authenticating.String(), "authenticating")
	be.Equal(t, Subscribed.String(), "subscribed")
	be.Equal(t, State(9).String(), "unknown")
}
