package progress

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/nihongo/internal/database"
	"github.com/example/nihongo/pkg/models"
)

type memLocalStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	writes int
}

func newMemLocalStore() *memLocalStore {
	return &memLocalStore{data: map[string][]byte{}}
}

func (s *memLocalStore) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memLocalStore) SetMany(entries map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range entries {
		s.data[k] = v
	}
	s.writes++
	return nil
}

func (s *memLocalStore) Remove(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *memLocalStore) set(t *testing.T, key string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	s.mu.Lock()
	s.data[key] = data
	s.mu.Unlock()
}

func (s *memLocalStore) kanji(t *testing.T) []string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[KeyLearnedKanji]
	if !ok {
		return nil
	}
	var set models.CharSet
	require.NoError(t, json.Unmarshal(raw, &set))
	return set.Sorted()
}

func (s *memLocalStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

type putCall struct {
	userID   string
	progress models.CloudProgress
}

type fakeCloud struct {
	mu     sync.Mutex
	docs   map[string]models.CloudDocument
	getErr error
	gate   chan struct{} // when set, Get blocks until it is closed
	gets   int
	puts   []putCall

	// slowPut, when set, holds the next Put until it is closed
	slowPut     chan struct{}
	putsStarted int
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{docs: map[string]models.CloudDocument{}}
}

func (c *fakeCloud) Get(ctx context.Context, userID string) (*models.CloudDocument, error) {
	c.mu.Lock()
	c.gets++
	gate := c.gate
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	doc, ok := c.docs[userID]
	if !ok {
		return nil, database.ErrDocumentNotFound
	}
	return &doc, nil
}

func (c *fakeCloud) Put(ctx context.Context, userID string, progress models.CloudProgress) error {
	c.mu.Lock()
	c.putsStarted++
	slow := c.slowPut
	c.slowPut = nil
	c.mu.Unlock()

	if slow != nil {
		select {
		case <-slow:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts = append(c.puts, putCall{userID: userID, progress: progress})
	c.docs[userID] = models.CloudDocument{Progress: progress, LastUpdated: time.Now()}
	return nil
}

func (c *fakeCloud) putCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.puts)
}

func (c *fakeCloud) started() (puts, gets int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.putsStarted, c.gets
}

func (c *fakeCloud) storedKanji(userID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.docs[userID].Progress.LearnedKanji
}

func (c *fakeCloud) lastPut() putCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puts[len(c.puts)-1]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

const testWindow = 40 * time.Millisecond

func newTestEngine(t *testing.T, local LocalStore, cloud CloudStore, clock *fakeClock) *Engine {
	t.Helper()
	cfg := Config{
		DebounceWindow: testWindow,
		CloudTimeout:   time.Second,
		Location:       time.UTC,
	}
	if clock != nil {
		cfg.Clock = clock.Now
	}
	e := New(local, cloud, nil, cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		e.Close(ctx)
	})
	return e
}

func waitForState(t *testing.T, e *Engine, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return e.State() == want }, time.Second, 2*time.Millisecond,
		"engine never reached %s", want)
}
