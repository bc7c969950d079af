package scheduler

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/getsentry/raven-go"

	"github.com/notekeep/notekeep-backend/models"
)

// contentStore yields the items eligible to be announced.
type contentStore interface {
	AnnounceableContent() ([]models.ContentItem, error)
}

// dispatcher wraps the batch dispatcher's fan-out call.
type dispatcher interface {
	SendToAll(context.Context, models.Message) (int, int, error)
}

// Title used for every scheduled reminder.
const reminderTitle = "📝 Daily Knowledge Reminder"

// Default firing time: 13:30 UTC, which is 7 PM India time.
const (
	defaultHour   = 13
	defaultMinute = 30
)

// Scheduler fires one reminder per day at a fixed UTC wall-clock time,
// cycling round-robin through the announceable content. Construct one
// instance in the composition root and share it; Start and Stop are the
// process lifecycle hooks.
type Scheduler struct {
	Store      contentStore
	Dispatcher dispatcher
	// Hour and Minute are the daily firing time, in UTC.
	Hour   int
	Minute int

	// cursor advances once per firing and is reduced modulo the current
	// candidate count at selection time only, so it may grow without
	// bound across the process lifetime. It is deliberately not
	// persisted: a restart starts over at the first candidate.
	cursor uint64

	stop    chan struct{}
	running bool

	// nowOverride is used to pin the clock during testing.
	nowOverride func() time.Time
}

// MakeSchedulerFromEnv builds a Scheduler firing daily at
// REMINDER_HOUR:REMINDER_MINUTE UTC, defaulting to 13:30.
func MakeSchedulerFromEnv(store contentStore, d dispatcher) (*Scheduler, error) {
	hour, err := envInt("REMINDER_HOUR", defaultHour)
	if err != nil {
		return nil, err
	}
	minute, err := envInt("REMINDER_MINUTE", defaultMinute)
	if err != nil {
		return nil, err
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("reminder time %02d:%02d is not a valid time of day", hour, minute)
	}
	return &Scheduler{Store: store, Dispatcher: d, Hour: hour, Minute: minute}, nil
}

func envInt(varName string, defaultValue int) (int, error) {
	envVar := os.Getenv(varName)
	if len(envVar) == 0 {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(envVar)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s must be an integer: %v", varName, err)
	}
	return value, nil
}

func (s *Scheduler) now() time.Time {
	if s.nowOverride != nil {
		return s.nowOverride()
	}
	return time.Now()
}

// untilNextFiring returns the wait until the next occurrence of
// Hour:Minute UTC.
func (s *Scheduler) untilNextFiring() time.Duration {
	now := s.now().UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.Hour, s.Minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

// Start registers the daily timer and begins firing. Starting an
// already-running scheduler is a no-op.
func (s *Scheduler) Start() {
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	go s.run(s.stop)
	log.Printf("[scheduler] started, daily reminder at %02d:%02d UTC", s.Hour, s.Minute)
}

// Stop cancels future firings; a firing already in flight completes.
// Missed firings are not replayed on restart. Stopping a stopped
// scheduler is a no-op.
func (s *Scheduler) Stop() {
	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
	log.Printf("[scheduler] stopped")
}

// run is the timer loop. A single goroutine drives all firings, so two
// firings can never overlap.
func (s *Scheduler) run(stop chan struct{}) {
	for {
		select {
		case <-time.After(s.untilNextFiring()):
			s.fire()
		case <-stop:
			return
		}
	}
}

// fire sends one reminder. Failures are logged and reported; nothing
// propagates, so the next scheduled firing always happens.
func (s *Scheduler) fire() {
	items, err := s.Store.AnnounceableContent()
	if err != nil {
		log.Printf("[scheduler] could not load content: %v", err)
		raven.CaptureError(err, map[string]string{"component": "scheduler"})
		return
	}
	if len(items) == 0 {
		log.Printf("[scheduler] no announceable content, skipping this cycle")
		return
	}

	// Round-robin selection.
	selected := items[s.cursor%uint64(len(items))]
	s.cursor++

	msg := models.Message{
		Title: reminderTitle,
		Body:  selected.Summary,
		Data: map[string]interface{}{
			"noteId": selected.ID,
			"action": "view_note",
			"url":    fmt.Sprintf("/note/%d", selected.ID),
		},
	}
	sent, failed, err := s.Dispatcher.SendToAll(context.Background(), msg)
	if err != nil {
		log.Printf("[scheduler] dispatch failed: %v", err)
		raven.CaptureError(err, map[string]string{"component": "scheduler"})
		return
	}
	log.Printf("[scheduler] reminder for note %d sent: %d successful, %d failed",
		selected.ID, sent, failed)
}
