// Package progress keeps a device's learning progress and synchronizes it
// with the signed-in user's cloud document.
package progress

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/example/nihongo/internal/auth"
	"github.com/example/nihongo/internal/database"
	"github.com/example/nihongo/internal/merge"
	"github.com/example/nihongo/pkg/models"
)

var (
	// ErrNotLoaded is returned by mutations issued before Load
	ErrNotLoaded = errors.New("progress not loaded")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("progress engine closed")
)

// LocalStore is the device key/value storage the snapshot is persisted to
type LocalStore interface {
	Get(key string) ([]byte, bool, error)
	SetMany(entries map[string][]byte) error
	Remove(keys ...string) error
}

// CloudStore holds one progress document per user. Get returns
// database.ErrDocumentNotFound when the user has none.
type CloudStore interface {
	Get(ctx context.Context, userID string) (*models.CloudDocument, error)
	Put(ctx context.Context, userID string, progress models.CloudProgress) error
}

// State is the sync state of an engine
type State int

const (
	StateUninitialized State = iota
	StateLocalLoaded
	StateSyncing
	StateSynced
	StateLoggedOut
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLocalLoaded:
		return "local_loaded"
	case StateSyncing:
		return "syncing"
	case StateSynced:
		return "synced"
	case StateLoggedOut:
		return "logged_out"
	}
	return "unknown"
}

// Config tunes sync timing
type Config struct {
	// DebounceWindow is how long cloud writes wait for further mutations
	DebounceWindow time.Duration
	// CloudTimeout bounds every cloud read and write
	CloudTimeout time.Duration
	// Location decides where "today" starts for streaks and daily stats
	Location *time.Location
	// Clock returns the current time
	Clock func() time.Time
}

// DefaultConfig returns the default sync configuration
func DefaultConfig() Config {
	return Config{
		DebounceWindow: 2 * time.Second,
		CloudTimeout:   10 * time.Second,
		Location:       time.Local,
		Clock:          time.Now,
	}
}

// Engine owns the in-memory progress snapshot of one device
type Engine struct {
	local  LocalStore
	cloud  CloudStore
	logger logrus.FieldLogger
	cfg    Config
	pusher *debouncer

	mu         sync.Mutex
	snap       models.ProgressSnapshot
	state      State
	auth       *auth.Tracker
	loaded     chan struct{}
	isLoaded   bool
	closed     bool
	epoch      uint64 // bumped whenever pending cloud work must be discarded
	lastQuizID int64

	// writing holds one token per cloud call, so reads and writes never overlap
	writing  chan struct{}
	inflight sync.WaitGroup
}

// New creates an engine. cloud may be nil, in which case progress never
// leaves the device.
func New(local LocalStore, cloud CloudStore, logger logrus.FieldLogger, cfg Config) *Engine {
	defaults := DefaultConfig()
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = defaults.DebounceWindow
	}
	if cfg.CloudTimeout <= 0 {
		cfg.CloudTimeout = defaults.CloudTimeout
	}
	if cfg.Location == nil {
		cfg.Location = defaults.Location
	}
	if cfg.Clock == nil {
		cfg.Clock = defaults.Clock
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	return &Engine{
		local:   local,
		cloud:   cloud,
		logger:  logger,
		cfg:     cfg,
		pusher:  newDebouncer(cfg.DebounceWindow),
		snap:    models.NewProgressSnapshot(),
		auth:    auth.NewTracker(),
		loaded:  make(chan struct{}),
		writing: make(chan struct{}, 1),
	}
}

// Load reads the snapshot from the local store. It is synchronous and
// runs once; later calls are no-ops.
func (e *Engine) Load() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.isLoaded {
		return nil
	}

	e.snap = decodeSnapshot(e.local, e.logger)
	e.lastQuizID = maxQuizID(e.snap.QuizHistory)
	e.isLoaded = true
	e.state = StateLocalLoaded
	close(e.loaded)

	e.logger.WithFields(logrus.Fields{
		"kanji":   e.snap.LearnedKanji.Len(),
		"quizzes": len(e.snap.QuizHistory),
	}).Debug("Local progress loaded")

	if current := e.auth.Current(); current.IsAuthenticated() {
		e.startSyncLocked(current.UserID)
	}
	return nil
}

// IsLoaded reports whether Load has completed
func (e *Engine) IsLoaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isLoaded
}

// Loaded is closed once Load has completed
func (e *Engine) Loaded() <-chan struct{} {
	return e.loaded
}

// State returns the current sync state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// IsSyncing reports whether a cloud read is in flight
func (e *Engine) IsSyncing() bool {
	return e.State() == StateSyncing
}

// AuthStatus returns the last auth status the engine has seen
func (e *Engine) AuthStatus() auth.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.auth.Current()
}

// Snapshot returns a deep copy of the current progress
func (e *Engine) Snapshot() models.ProgressSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap.Clone()
}

// HandleAuth feeds an identity provider status change into the engine
func (e *Engine) HandleAuth(status auth.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	t := e.auth.Advance(status)
	log := e.logger.WithFields(logrus.Fields{
		"previous": t.Previous.String(),
		"current":  t.Current.String(),
	})

	switch {
	case t.LoggedOut():
		log.Info("Signed out, clearing device progress")
		e.wipeLocked()
	case t.SwitchedUser():
		log.Info("Signed in as a different user, clearing device progress")
		e.wipeLocked()
		if e.isLoaded {
			e.startSyncLocked(t.Current.UserID)
		}
	case t.LoggedIn():
		log.Debug("Signed in")
		if e.isLoaded {
			e.startSyncLocked(t.Current.UserID)
		}
	}
}

// Flush performs a pending cloud write immediately
func (e *Engine) Flush(ctx context.Context) {
	e.pusher.Flush(ctx)
}

// Close flushes the pending cloud write, stops the engine and waits for
// in-flight cloud calls until ctx is done.
func (e *Engine) Close(ctx context.Context) error {
	e.pusher.Flush(ctx)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.epoch++
	e.pusher.Cancel()
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for cloud sync")
	}
}

// wipeLocked forgets everything the previous user left on the device
func (e *Engine) wipeLocked() {
	e.pusher.Cancel()
	e.epoch++
	e.snap = models.NewProgressSnapshot()
	e.lastQuizID = 0
	if err := e.local.Remove(StorageKeys...); err != nil {
		e.logger.WithError(err).Error("Failed to clear local progress")
	}
	if e.isLoaded {
		e.state = StateLoggedOut
	}
}

func (e *Engine) startSyncLocked(userID string) {
	if e.cloud == nil {
		e.logger.Debug("No cloud store configured, keeping progress on device")
		return
	}

	e.pusher.Cancel()
	e.state = StateSyncing
	epoch := e.epoch

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()

		// a write still in flight finishes before the read starts
		e.writing <- struct{}{}
		defer func() { <-e.writing }()

		if !e.isCurrent(epoch) {
			e.logger.WithField("user_id", userID).Debug("Skipping cloud sync for a stale sign-in")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.CloudTimeout)
		defer cancel()

		doc, err := e.cloud.Get(ctx, userID)
		e.finishSync(epoch, userID, doc, err)
	}()
}

func (e *Engine) isCurrent(epoch uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.closed && epoch == e.epoch
}

func (e *Engine) finishSync(epoch uint64, userID string, doc *models.CloudDocument, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	log := e.logger.WithField("user_id", userID)
	if e.closed || epoch != e.epoch || e.state != StateSyncing {
		log.Debug("Discarding stale cloud sync result")
		return
	}

	switch {
	case err == nil && doc != nil:
		merged := merge.Merge(&e.snap, merge.FromCloud(doc.Progress))
		e.snap = merged
		if id := maxQuizID(merged.QuizHistory); id > e.lastQuizID {
			e.lastQuizID = id
		}
		e.persistLocked()
		e.state = StateSynced
		e.scheduleCloudWriteLocked()
		log.WithField("kanji", merged.LearnedKanji.Len()).Info("Progress merged with cloud")
	case err == nil || errors.Is(err, database.ErrDocumentNotFound):
		e.state = StateSynced
		e.scheduleCloudWriteLocked()
		log.Info("No cloud progress yet, uploading device progress")
	default:
		// cloud writes stay off until the next sign-in
		e.state = StateLocalLoaded
		log.WithError(err).Warn("Failed to load cloud progress, keeping device progress")
	}
}

// mutate applies fn to the snapshot and, when it reports a change,
// persists locally and schedules a cloud write.
func (e *Engine) mutate(fn func(p *models.ProgressSnapshot) (bool, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if !e.isLoaded {
		return ErrNotLoaded
	}

	changed, err := fn(&e.snap)
	if err != nil || !changed {
		return err
	}

	e.persistLocked()
	e.scheduleCloudWriteLocked()
	return nil
}

func (e *Engine) persistLocked() {
	entries, err := encodeSnapshot(e.snap)
	if err == nil {
		err = e.local.SetMany(entries)
	}
	if err != nil {
		e.logger.WithError(err).Error("Failed to save progress on device")
	}
}

func (e *Engine) scheduleCloudWriteLocked() {
	if e.cloud == nil || e.state != StateSynced || !e.auth.Current().IsAuthenticated() {
		return
	}
	epoch := e.epoch
	e.pusher.Schedule(func(ctx context.Context) {
		e.pushToCloud(ctx, epoch)
	})
}

// pushToCloud waits for any earlier cloud call and only then takes the
// snapshot, so the newest progress is always the last write to land.
func (e *Engine) pushToCloud(ctx context.Context, epoch uint64) {
	select {
	case e.writing <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-e.writing }()

	e.mu.Lock()
	current := e.auth.Current()
	if e.closed || epoch != e.epoch || e.state != StateSynced || !current.IsAuthenticated() {
		e.mu.Unlock()
		return
	}
	progress := merge.ToCloud(e.snap)
	e.inflight.Add(1)
	e.mu.Unlock()
	defer e.inflight.Done()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.CloudTimeout)
	defer cancel()

	log := e.logger.WithField("user_id", current.UserID)
	if err := e.cloud.Put(ctx, current.UserID, progress); err != nil {
		log.WithError(err).Warn("Failed to save progress to cloud")
		return
	}
	log.Debug("Progress saved to cloud")
}

func maxQuizID(history []models.QuizResult) int64 {
	var top int64
	for _, r := range history {
		if r.ID > top {
			top = r.ID
		}
	}
	return top
}
