package kanji

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/example/nihongo/pkg/models"
)

// ErrNoSource is returned when neither the API nor the device catalog has data
var ErrNoSource = errors.New("no kanji source available")

// DefaultCacheTTL is how long the full listing is served from memory
const DefaultCacheTTL = time.Hour

// FetchTimeout bounds a shared refresh of the full listing
const FetchTimeout = 30 * time.Second

// Source fetches kanji from a remote provider
type Source interface {
	All(ctx context.Context) ([]models.Kanji, error)
	Search(ctx context.Context, query string) ([]models.Kanji, error)
	Detail(ctx context.Context, character string) (*models.Kanji, error)
}

// Store persists kanji on the device
type Store interface {
	GetAll(ctx context.Context) ([]models.Kanji, error)
	Search(ctx context.Context, query string) ([]models.Kanji, error)
	UpsertMany(ctx context.Context, entries []models.Kanji) (created, updated int, err error)
}

// LevelGrades maps a JLPT level to the school grades its kanji are taught in
func LevelGrades(level models.Level) []int {
	switch level {
	case models.LevelN5:
		return []int{1, 2}
	case models.LevelN4:
		return []int{3, 4}
	case models.LevelN3:
		return []int{5, 6}
	case models.LevelMixed:
		return []int{1, 2, 3, 4, 5, 6}
	}
	return nil
}

// Catalog serves kanji lists from memory, the API and the device store,
// in that order. Either source or store may be nil.
type Catalog struct {
	source Source
	store  Store
	ttl    time.Duration
	clock  func() time.Time
	logger logrus.FieldLogger
	group  singleflight.Group

	mu        sync.RWMutex
	cached    []models.Kanji
	fetchedAt time.Time
}

// NewCatalog creates a catalog
func NewCatalog(source Source, store Store, ttl time.Duration, logger logrus.FieldLogger) *Catalog {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Catalog{
		source: source,
		store:  store,
		ttl:    ttl,
		clock:  time.Now,
		logger: logger,
	}
}

// All returns every known kanji
func (c *Catalog) All(ctx context.Context) ([]models.Kanji, error) {
	c.mu.RLock()
	if c.cached != nil && c.clock().Sub(c.fetchedAt) < c.ttl {
		list := append([]models.Kanji(nil), c.cached...)
		c.mu.RUnlock()
		return list, nil
	}
	c.mu.RUnlock()

	// The refresh is shared, so it must outlive the caller that started it
	ch := c.group.DoChan("all", func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), FetchTimeout)
		defer cancel()
		return c.refresh(fetchCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return append([]models.Kanji(nil), res.Val.([]models.Kanji)...), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the in-memory listing
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

func (c *Catalog) refresh(ctx context.Context) ([]models.Kanji, error) {
	var sourceErr error
	if c.source != nil {
		list, err := c.source.All(ctx)
		if err == nil && len(list) > 0 {
			c.remember(ctx, list)
			c.setCache(list)
			return list, nil
		}
		sourceErr = err
		c.logger.WithError(err).Warn("Failed to fetch kanji from API, using device catalog")
	}

	if c.store != nil {
		list, err := c.store.GetAll(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read device catalog")
		}
		if len(list) > 0 {
			c.setCache(list)
			return list, nil
		}
	}

	if sourceErr != nil {
		return nil, errors.Wrap(sourceErr, "failed to fetch kanji")
	}
	return nil, ErrNoSource
}

func (c *Catalog) setCache(list []models.Kanji) {
	c.mu.Lock()
	c.cached = list
	c.fetchedAt = c.clock()
	c.mu.Unlock()
}

func (c *Catalog) remember(ctx context.Context, list []models.Kanji) {
	if c.store == nil {
		return
	}
	created, updated, err := c.store.UpsertMany(ctx, list)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to store kanji on device")
		return
	}
	c.logger.WithFields(logrus.Fields{"created": created, "updated": updated}).Debug("Device catalog refreshed")
}

// ByGrade returns the kanji taught in a school grade
func (c *Catalog) ByGrade(ctx context.Context, grade int) ([]models.Kanji, error) {
	all, err := c.All(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(all, func(k models.Kanji, _ int) bool { return k.Grade == grade }), nil
}

// ByLevel returns the kanji of a JLPT level
func (c *Catalog) ByLevel(ctx context.Context, level models.Level) ([]models.Kanji, error) {
	grades := LevelGrades(level)
	if grades == nil {
		return nil, errors.Errorf("unknown level %q", level)
	}
	all, err := c.All(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(all, func(k models.Kanji, _ int) bool { return lo.Contains(grades, k.Grade) }), nil
}

// Characters returns just the characters of the given entries
func Characters(entries []models.Kanji) []string {
	return lo.Map(entries, func(k models.Kanji, _ int) string { return k.Character })
}

// Lookup finds the best match for a character or English word. The device
// catalog is consulted first; the API is searched and the top hit's detail
// fetched otherwise.
func (c *Catalog) Lookup(ctx context.Context, query string) (*models.Kanji, error) {
	if c.store != nil {
		hits, err := c.store.Search(ctx, query)
		if err != nil {
			c.logger.WithError(err).Warn("Failed to search device catalog")
		}
		if len(hits) > 0 && hits[0].Meaning != "" {
			return &hits[0], nil
		}
	}

	if c.source == nil {
		if c.store == nil {
			return nil, ErrNoSource
		}
		return nil, ErrNotFound
	}

	hits, err := c.source.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, ErrNotFound
	}

	detail, err := c.source.Detail(ctx, hits[0].Character)
	if err != nil {
		return nil, err
	}
	if detail.Grade > 0 {
		c.remember(ctx, []models.Kanji{*detail})
	}
	return detail, nil
}
