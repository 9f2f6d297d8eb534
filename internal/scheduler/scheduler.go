// Package scheduler runs the daily streak reminder.
package scheduler

import (
	"fmt"
	"io"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/example/nihongo/internal/progress"
)

// DefaultReminderHour is when reminders go out when no hour is configured
const DefaultReminderHour = 19

// Learner is somebody who may receive a reminder
type Learner struct {
	ChatID   int64
	Progress *progress.Engine
}

// Directory lists the learners known to the application
type Directory interface {
	Learners() []Learner
}

// Notifier interface for sending notifications
type Notifier interface {
	SendStreakReminder(chatID int64, streak int) error
}

// Config configures the scheduler
type Config struct {
	Hour     int
	Location *time.Location
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	directory Directory
	notifier  Notifier
	hour      int
	logger    logrus.FieldLogger
}

// New creates a new scheduler instance
func New(directory Directory, notifier Notifier, cfg Config, logger logrus.FieldLogger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Hour < 0 || cfg.Hour > 23 {
		cfg.Hour = DefaultReminderHour
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(cfg.Location),
		directory: directory,
		notifier:  notifier,
		hour:      cfg.Hour,
		logger:    logger,
	}
}

// Start schedules the daily reminder and runs the scheduler in the background
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(1).Day().At(fmt.Sprintf("%02d:00", s.hour)).Do(s.SendReminders)
	if err != nil {
		return errors.Wrap(err, "failed to schedule reminders")
	}
	s.scheduler.StartAsync()
	s.logger.WithField("hour", s.hour).Info("Streak reminders scheduled")
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// SendReminders notifies learners whose streak ends unless they study today.
// It returns the number of reminders sent.
func (s *Scheduler) SendReminders() int {
	sent := 0
	for _, learner := range s.directory.Learners() {
		if learner.Progress == nil || !learner.Progress.IsLoaded() {
			continue
		}
		streak := learner.Progress.StreakAtRisk()
		if streak == 0 {
			continue
		}

		log := s.logger.WithFields(logrus.Fields{"chat_id": learner.ChatID, "streak": streak})
		if err := s.notifier.SendStreakReminder(learner.ChatID, streak); err != nil {
			log.WithError(err).Warn("Failed to send streak reminder")
			continue
		}
		log.Debug("Streak reminder sent")
		sent++
	}
	return sent
}
