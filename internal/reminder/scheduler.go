package reminder

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/Aarzish/study-planner/internal/model"
)

const notifyTimeout = 30 * time.Second

type Reminder struct {
	EventID model.ID   `json:"eventId"`
	Title   string     `json:"title"`
	Date    model.Date `json:"date"`
	At      time.Time  `json:"at"`
}

// Notifier delivers reminders. Prepare is where permission is obtained.
type Notifier interface {
	Prepare(ctx context.Context) error
	Notify(ctx context.Context, r Reminder) error
}

type Config struct {
	Hour     int
	Location *time.Location
}

type armed struct {
	entry    cron.EntryID
	gen      uint64
	reminder Reminder
}

// Scheduler arms at most one pending reminder per event.
type Scheduler struct {
	notifier Notifier
	hour     int
	loc      *time.Location
	now      func() time.Time
	granted  atomic.Bool
	asked    sync.Once
	answered chan struct{}
	cron     *cron.Cron

	mu      sync.Mutex
	gen     uint64
	pending map[model.ID]armed
}

func New(notifier Notifier, config Config) *Scheduler {
	hour := config.Hour
	if hour < 0 || hour > 23 {
		hour = DefaultHour
	}
	loc := config.Location
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		notifier: notifier,
		hour:     hour,
		loc:      loc,
		now:      time.Now,
		answered: make(chan struct{}),
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cron.PrintfLogger(log.StandardLogger())),
		),
		pending: make(map[model.ID]armed),
	}
}

// RequestPermission asks the notifier once in the background.
// Until it answers, and for good if it refuses, nothing gets scheduled.
func (s *Scheduler) RequestPermission(ctx context.Context) {
	s.asked.Do(func() {
		go func() {
			defer close(s.answered)
			if err := s.notifier.Prepare(ctx); err != nil {
				log.Warnf("reminders are disabled: %v", err)
				return
			}
			s.granted.Store(true)
			log.Debug("reminder permission granted")
		}()
	})
}

// Answered is closed once the permission request has completed either way.
func (s *Scheduler) Answered() <-chan struct{} {
	return s.answered
}

func (s *Scheduler) Granted() bool {
	return s.granted.Load()
}

// Schedule arms a reminder for event and returns when it will fire. Nothing is
// armed for None, for instants that are already past or without permission.
// Scheduling an event again replaces its earlier reminder.
func (s *Scheduler) Schedule(event model.Event, offset Offset) (time.Time, bool) {
	at, ok := offset.TriggerTime(event.Date, s.hour, s.loc)
	if !ok {
		return time.Time{}, false
	}
	if !s.Granted() {
		log.WithField("event", event.ID).Debug("reminder skipped: no permission")
		return time.Time{}, false
	}
	if !at.After(s.now()) {
		log.WithField("event", event.ID).WithField("at", at).Debug("reminder skipped: instant has passed")
		return time.Time{}, false
	}

	s.arm(Reminder{EventID: event.ID, Title: event.Title, Date: event.Date, At: at})
	return at, true
}

func (s *Scheduler) arm(r Reminder) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(r.EventID)
	s.gen++
	gen := s.gen
	entry := s.cron.Schedule(once(r.At), cron.FuncJob(func() { s.fire(r.EventID, gen) }))
	s.pending[r.EventID] = armed{entry: entry, gen: gen, reminder: r}
	log.WithField("event", r.EventID).WithField("at", r.At).Info("reminder armed")
}

func (s *Scheduler) fire(id model.ID, gen uint64) {
	s.mu.Lock()
	a, ok := s.pending[id]
	if !ok || a.gen != gen {
		s.mu.Unlock()
		return
	}
	s.removeLocked(id)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := s.notifier.Notify(ctx, a.reminder); err != nil {
		log.WithField("event", id).Errorf("failed to deliver reminder: %v", err)
	}
}

// Cancel drops the pending reminder of the event, if any.
func (s *Scheduler) Cancel(id model.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(id)
}

func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.pending {
		s.removeLocked(id)
	}
}

func (s *Scheduler) removeLocked(id model.ID) bool {
	a, ok := s.pending[id]
	if !ok {
		return false
	}
	s.cron.Remove(a.entry)
	delete(s.pending, id)
	return true
}

// Pending lists the armed reminders, earliest first.
func (s *Scheduler) Pending() []Reminder {
	s.mu.Lock()
	out := make([]Reminder, 0, len(s.pending))
	for _, a := range s.pending {
		out = append(out, a.reminder)
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].EventID < out[j].EventID
		}
		return out[i].At.Before(out[j].At)
	})
	return out
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running deliveries or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// once is a cron schedule that fires a single time.
type once time.Time

func (o once) Next(t time.Time) time.Time {
	at := time.Time(o)
	if at.After(t) {
		return at
	}
	return time.Time{}
}
