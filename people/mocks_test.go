package people

import (
	"context"
	"sort"
	"sync"
)

// memStore is an in-memory Store with per-key write failures.
type memStore struct {
	mu      sync.Mutex
	data    map[string]map[string]Person
	fail    map[string]error
	creates int
}

func newMemStore() *memStore {
	return &memStore{data: map[string]map[string]Person{}, fail: map[string]error{}}
}

func (m *memStore) Create(_ context.Context, userID string, p Person) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if err := m.fail[p.Key]; err != nil {
		return false, err
	}
	rows := m.rows(userID)
	if _, ok := rows[p.Key]; ok {
		return false, nil
	}
	rows[p.Key] = p
	return true, nil
}

func (m *memStore) Put(_ context.Context, userID string, p Person) (Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail[p.Key]; err != nil {
		return Person{}, err
	}
	rows := m.rows(userID)
	if old, ok := rows[p.Key]; ok {
		p.CreatedAt = old.CreatedAt
	}
	rows[p.Key] = p
	return p, nil
}

func (m *memStore) Get(_ context.Context, userID string, key string) (Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows(userID)[key]
	if !ok {
		return Person{}, &Error{Code: ErrorCodeNotFound, Message: key}
	}
	return p, nil
}

func (m *memStore) Delete(_ context.Context, userID string, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.rows(userID)
	if _, ok := rows[key]; !ok {
		return &Error{Code: ErrorCodeNotFound, Message: key}
	}
	delete(rows, key)
	return nil
}

func (m *memStore) List(_ context.Context, userID string) ([]Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Person, 0, len(m.data[userID]))
	for _, p := range m.data[userID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) Watch(ctx context.Context, userID string) (<-chan []Person, error) {
	ch := make(chan []Person, 1)
	list, _ := m.List(ctx, userID)
	ch <- list
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (m *memStore) rows(userID string) map[string]Person {
	rows, ok := m.data[userID]
	if !ok {
		rows = map[string]Person{}
		m.data[userID] = rows
	}
	return rows
}

// fakeSource is a Source with scripted responses.
type fakeSource struct {
	accessErr error
	drafts    []Draft
	requests  int
	limit     int
}

func (f *fakeSource) RequestAccess(context.Context) error {
	f.requests++
	return f.accessErr
}

func (f *fakeSource) Fetch(_ context.Context, limit int) ([]Draft, error) {
	f.limit = limit
	return f.drafts, nil
}
