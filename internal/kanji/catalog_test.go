package kanji

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/nihongo/pkg/models"
)

type fakeSource struct {
	mu      sync.Mutex
	list    []models.Kanji
	err     error
	calls   int
	release chan struct{}
}

func (s *fakeSource) All(ctx context.Context) ([]models.Kanji, error) {
	s.mu.Lock()
	s.calls++
	release := s.release
	s.mu.Unlock()
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.list, s.err
}

func (s *fakeSource) Search(_ context.Context, query string) ([]models.Kanji, error) {
	for _, k := range s.list {
		if k.Character == query || k.Meaning == query {
			return []models.Kanji{{Character: k.Character}}, nil
		}
	}
	return nil, nil
}

func (s *fakeSource) Detail(_ context.Context, character string) (*models.Kanji, error) {
	for _, k := range s.list {
		if k.Character == character {
			k := k
			return &k, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type memStore struct {
	mu      sync.Mutex
	entries map[string]models.Kanji
}

func newMemStore(entries ...models.Kanji) *memStore {
	s := &memStore{entries: map[string]models.Kanji{}}
	for _, k := range entries {
		s.entries[k.Character] = k
	}
	return s
}

func (s *memStore) GetAll(context.Context) ([]models.Kanji, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Kanji
	for _, k := range s.entries {
		out = append(out, k)
	}
	return out, nil
}

func (s *memStore) Search(_ context.Context, query string) ([]models.Kanji, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Kanji
	for _, k := range s.entries {
		if k.Character == query || k.Meaning == query {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *memStore) UpsertMany(_ context.Context, entries []models.Kanji) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range entries {
		s.entries[k.Character] = k
	}
	return len(entries), 0, nil
}

var sample = []models.Kanji{
	{Character: "一", Meaning: "one", Grade: 1},
	{Character: "水", Meaning: "water", Grade: 1},
	{Character: "海", Meaning: "sea", Grade: 2},
	{Character: "雪", Meaning: "snow", Grade: 2},
	{Character: "湖", Meaning: "lake", Grade: 3},
	{Character: "貿", Meaning: "trade", Grade: 5},
}

func TestCatalogCachesListing(t *testing.T) {
	source := &fakeSource{list: sample}
	store := newMemStore()
	c := NewCatalog(source, store, time.Minute, nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.clock = func() time.Time { return now }

	ctx := context.Background()
	_, err := c.All(ctx)
	require.NoError(t, err)
	_, err = c.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, source.callCount())

	stored, _ := store.GetAll(ctx)
	assert.Len(t, stored, len(sample))

	now = now.Add(2 * time.Minute)
	_, err = c.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, source.callCount())
}

func TestCatalogSharesConcurrentFetch(t *testing.T) {
	source := &fakeSource{list: sample, release: make(chan struct{})}
	c := NewCatalog(source, nil, time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			list, err := c.All(context.Background())
			assert.NoError(t, err)
			assert.Len(t, list, len(sample))
		}()
	}
	require.Eventually(t, func() bool { return source.callCount() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(source.release)
	wg.Wait()

	assert.Equal(t, 1, source.callCount())
}

func TestCatalogSharedFetchSurvivesCancelledCaller(t *testing.T) {
	source := &fakeSource{list: sample, release: make(chan struct{})}
	c := NewCatalog(source, nil, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.All(ctx)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return source.callCount() == 1 }, time.Second, time.Millisecond)

	type result struct {
		list []models.Kanji
		err  error
	}
	second := make(chan result, 1)
	go func() {
		list, err := c.All(context.Background())
		second <- result{list, err}
	}()
	time.Sleep(10 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(source.release)
	res := <-second
	require.NoError(t, res.err)
	assert.Len(t, res.list, len(sample))
	assert.Equal(t, 1, source.callCount())
}

func TestCatalogFallsBackToDeviceStore(t *testing.T) {
	source := &fakeSource{err: errors.New("offline")}
	c := NewCatalog(source, newMemStore(sample...), time.Minute, nil)

	list, err := c.ByGrade(context.Background(), 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"海", "雪"}, Characters(list))
}

func TestCatalogWithoutSources(t *testing.T) {
	c := NewCatalog(nil, nil, 0, nil)
	_, err := c.All(context.Background())
	assert.ErrorIs(t, err, ErrNoSource)

	c = NewCatalog(&fakeSource{err: errors.New("offline")}, newMemStore(), 0, nil)
	_, err = c.All(context.Background())
	assert.Error(t, err)
}

func TestCatalogByLevel(t *testing.T) {
	c := NewCatalog(&fakeSource{list: sample}, nil, 0, nil)
	ctx := context.Background()

	n5, err := c.ByLevel(ctx, models.LevelN5)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"一", "水", "海", "雪"}, Characters(n5))

	n3, err := c.ByLevel(ctx, models.LevelN3)
	require.NoError(t, err)
	assert.Equal(t, []string{"貿"}, Characters(n3))

	mixed, err := c.ByLevel(ctx, models.LevelMixed)
	require.NoError(t, err)
	assert.Len(t, mixed, len(sample))

	_, err = c.ByLevel(ctx, "N1")
	assert.Error(t, err)
}

func TestCatalogLookup(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(models.Kanji{Character: "一", Meaning: "one", Grade: 1})
	source := &fakeSource{list: sample}
	c := NewCatalog(source, store, 0, nil)

	k, err := c.Lookup(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, "一", k.Character)

	k, err = c.Lookup(ctx, "snow")
	require.NoError(t, err)
	assert.Equal(t, "雪", k.Character)
	hits, _ := store.Search(ctx, "雪")
	assert.Len(t, hits, 1, "looked up kanji are kept on the device")

	_, err = c.Lookup(ctx, "dragon")
	assert.ErrorIs(t, err, ErrNotFound)
}
