package scheduler

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/nihongo/internal/progress"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *memStore) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) SetMany(entries map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range entries {
		s.data[k] = v
	}
	return nil
}

func (s *memStore) Remove(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

type learners []Learner

func (l learners) Learners() []Learner { return l }

type recordingNotifier struct {
	sent map[int64]int
	fail map[int64]bool
}

func (n *recordingNotifier) SendStreakReminder(chatID int64, streak int) error {
	if n.fail[chatID] {
		return errors.New("blocked by user")
	}
	n.sent[chatID] = streak
	return nil
}

func engineAt(t *testing.T, now *time.Time, studied ...time.Time) *progress.Engine {
	t.Helper()
	e := progress.New(&memStore{data: map[string][]byte{}}, nil, nil, progress.Config{
		Location: time.UTC,
		Clock:    func() time.Time { return *now },
	})
	require.NoError(t, e.Load())

	current := *now
	for i, at := range studied {
		*now = at
		require.NoError(t, e.MarkLearned(string(rune('一'+i))))
	}
	*now = current
	return e
}

func TestSendReminders(t *testing.T) {
	today := time.Date(2024, 3, 10, 19, 0, 0, 0, time.UTC)
	now := today
	yesterday := today.AddDate(0, 0, -1)

	atRisk := engineAt(t, &now, yesterday.AddDate(0, 0, -1), yesterday)
	studiedToday := engineAt(t, &now, yesterday, today)
	lapsed := engineAt(t, &now, today.AddDate(0, 0, -5))
	blocked := engineAt(t, &now, yesterday)
	notLoaded := progress.New(&memStore{data: map[string][]byte{}}, nil, nil, progress.Config{})

	notifier := &recordingNotifier{sent: map[int64]int{}, fail: map[int64]bool{4: true}}
	s := New(learners{
		{ChatID: 1, Progress: atRisk},
		{ChatID: 2, Progress: studiedToday},
		{ChatID: 3, Progress: lapsed},
		{ChatID: 4, Progress: blocked},
		{ChatID: 5, Progress: notLoaded},
		{ChatID: 6},
	}, notifier, Config{Hour: 19, Location: time.UTC}, nil)

	assert.Equal(t, 1, s.SendReminders())
	assert.Equal(t, map[int64]int{1: 2}, notifier.sent)
}

func TestNewClampsHour(t *testing.T) {
	s := New(learners{}, &recordingNotifier{}, Config{Hour: 42}, nil)
	assert.Equal(t, DefaultReminderHour, s.hour)
}

func TestStartAndStop(t *testing.T) {
	s := New(learners{}, &recordingNotifier{}, Config{Hour: 3, Location: time.UTC}, nil)
	require.NoError(t, s.Start())
	s.Stop()
}
