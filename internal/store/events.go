package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/Aarzish/study-planner/internal/model"
)

type EventAPI interface {
	ListEvents(ctx context.Context) ([]model.Event, error)
	ListEventsForDate(ctx context.Context, date model.Date) ([]model.Event, error)
	CreateEvent(ctx context.Context, event model.NewEvent) (model.Event, error)
	DeleteEvent(ctx context.Context, id model.ID) error
	DeletePastEvents(ctx context.Context) error
}

// EventStore keeps two views of the user's events: the ones on the current
// date and all of them.
type EventStore struct {
	api   EventAPI
	locks *keyedLock
	ops   sync.RWMutex

	mu   sync.RWMutex
	date model.Date
	seq  uint64 // bumped by every LoadDate and Reset
	gen  uint64 // bumped by Reset only
	day  []model.Event
	all  []model.Event
}

func NewEventStore(api EventAPI) *EventStore {
	return &EventStore{api: api, locks: newKeyedLock()}
}

// LoadDate makes date current and fetches its events. If another date
// becomes current before the response arrives, the response is dropped.
func (s *EventStore) LoadDate(ctx context.Context, date model.Date) []model.Event {
	_ = s.loadDate(ctx, date)
	return s.Day()
}

func (s *EventStore) loadDate(ctx context.Context, date model.Date) error {
	s.mu.Lock()
	s.date = date
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	s.ops.Lock()
	defer s.ops.Unlock()

	events, err := s.api.ListEventsForDate(ctx, date)
	if err != nil {
		log.WithField("date", date).Errorf("failed to load events: %v", err)
		events = nil
	}

	s.mu.Lock()
	if seq == s.seq {
		s.day = append([]model.Event{}, events...)
	} else {
		log.WithField("date", date).Debug("stale events response dropped")
	}
	s.mu.Unlock()
	return err
}

// LoadAll replaces the full list. A response that arrives after Reset is dropped.
func (s *EventStore) LoadAll(ctx context.Context) []model.Event {
	_ = s.loadAll(ctx)
	return s.All()
}

func (s *EventStore) loadAll(ctx context.Context) error {
	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()

	s.ops.Lock()
	defer s.ops.Unlock()

	events, err := s.api.ListEvents(ctx)
	if err != nil {
		log.Errorf("failed to load all events: %v", err)
		events = nil
	}

	s.mu.Lock()
	if gen == s.gen {
		s.all = append([]model.Event{}, events...)
	} else {
		log.Debug("events response after reset dropped")
	}
	s.mu.Unlock()
	return err
}

func (s *EventStore) Add(ctx context.Context, title string, date model.Date) (model.Event, error) {
	if blank(title) || date.IsZero() {
		return model.Event{}, ErrBlank
	}

	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()

	s.ops.RLock()
	defer s.ops.RUnlock()

	created, err := s.api.CreateEvent(ctx, model.NewEvent{Title: strings.TrimSpace(title), Date: date})
	if err != nil {
		return model.Event{}, fmt.Errorf("failed to add event: %w", err)
	}

	s.mu.Lock()
	if gen == s.gen {
		s.all = append(s.all, created)
		if created.Date == s.date {
			s.day = append(s.day, created)
		}
	}
	s.mu.Unlock()
	log.WithField("id", created.ID).WithField("date", created.Date).Debug("event added")
	return created, nil
}

// Remove deletes the event on the backend and then from both views.
// An event the backend no longer knows is dropped and ErrNotFound is returned.
func (s *EventStore) Remove(ctx context.Context, id model.ID) error {
	s.ops.RLock()
	defer s.ops.RUnlock()
	unlock := s.locks.Lock(id)
	defer unlock()

	err := s.api.DeleteEvent(ctx, id)
	if removeLocally(err) {
		s.mu.Lock()
		s.day = withoutEvent(s.day, id)
		s.all = withoutEvent(s.all, id)
		s.mu.Unlock()
	}
	if err != nil {
		return fmt.Errorf("failed to remove event %s: %w", id, err)
	}
	log.WithField("id", id).Debug("event removed")
	return nil
}

// ClearPast asks the backend to drop every past event, then refetches both
// views. When a refetch fails the error wraps ErrNotReloaded: the past events
// are gone but the local views cannot say which events remain.
func (s *EventStore) ClearPast(ctx context.Context) error {
	s.ops.RLock()
	err := s.api.DeletePastEvents(ctx)
	s.ops.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to clear past events: %w", err)
	}

	dateErr := s.loadDate(ctx, s.Date())
	allErr := s.loadAll(ctx)
	if err := errors.Join(dateErr, allErr); err != nil {
		return fmt.Errorf("%w: %w", ErrNotReloaded, err)
	}
	return nil
}

func (s *EventStore) Date() model.Date {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.date
}

func (s *EventStore) Day() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Event{}, s.day...)
}

func (s *EventStore) All() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Event{}, s.all...)
}

// Reset forgets both views. The current date is kept.
func (s *EventStore) Reset() {
	s.mu.Lock()
	s.seq++
	s.gen++
	s.day = nil
	s.all = nil
	s.mu.Unlock()
}

func withoutEvent(events []model.Event, id model.ID) []model.Event {
	out := events[:0:0]
	for _, e := range events {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}
