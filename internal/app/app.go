package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Aarzish/study-planner/internal/client"
	"github.com/Aarzish/study-planner/internal/ics"
	"github.com/Aarzish/study-planner/internal/model"
	"github.com/Aarzish/study-planner/internal/plan"
	"github.com/Aarzish/study-planner/internal/reminder"
	"github.com/Aarzish/study-planner/internal/session"
	"github.com/Aarzish/study-planner/internal/store"
	"github.com/Aarzish/study-planner/internal/tasks"
	"github.com/Aarzish/study-planner/internal/view"
)

var ErrNotAuthenticated = errors.New("not logged in")

type Options struct {
	Location *time.Location
	Now      func() time.Time
}

// App owns the application state. Presentations read it through State and
// change it only through the methods below.
type App struct {
	Session   *session.Session
	Courses   *store.CourseStore
	Events    *store.EventStore
	Study     *store.StudyStore
	Reminders *reminder.Scheduler

	loc *time.Location
	now func() time.Time

	mu       sync.RWMutex
	selected model.Date
}

func New(
	sess *session.Session,
	courses *store.CourseStore,
	events *store.EventStore,
	study *store.StudyStore,
	reminders *reminder.Scheduler,
	opts Options,
) *App {
	a := &App{
		Session:   sess,
		Courses:   courses,
		Events:    events,
		Study:     study,
		Reminders: reminders,
		loc:       opts.Location,
		now:       opts.Now,
	}
	if a.loc == nil {
		a.loc = time.Local
	}
	if a.now == nil {
		a.now = time.Now
	}
	a.selected = a.Today()
	return a
}

func (a *App) Today() model.Date {
	return model.Today(a.now(), a.loc)
}

func (a *App) SelectedDate() model.Date {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.selected
}

// Start asks for reminder permission and loads data for a restored session.
func (a *App) Start(ctx context.Context) error {
	a.StartReminders(ctx)
	if !a.Session.Authenticated() {
		return nil
	}
	return a.Refresh(ctx)
}

// StartReminders runs the scheduler and asks for permission without loading
// anything, for callers that fetch only what they show.
func (a *App) StartReminders(ctx context.Context) {
	a.Reminders.Start()
	a.Reminders.RequestPermission(ctx)
}

func (a *App) Stop(ctx context.Context) error {
	return a.Reminders.Stop(ctx)
}

// Refresh reloads courses, the selected date and all events in parallel.
func (a *App) Refresh(ctx context.Context) error {
	if !a.Session.Authenticated() {
		return ErrNotAuthenticated
	}
	date := a.SelectedDate()
	loads := []tasks.Task{
		func(ctx context.Context) error { a.Courses.Load(ctx); return nil },
		func(ctx context.Context) error { a.Events.LoadDate(ctx, date); return nil },
		func(ctx context.Context) error { a.Events.LoadAll(ctx); return nil },
	}
	if err := tasks.Run(ctx, loads, len(loads), 0); err != nil {
		return fmt.Errorf("refresh interrupted: %w", err)
	}
	return nil
}

func (a *App) Login(ctx context.Context, username string, password string) error {
	if err := a.Session.Login(ctx, username, password); err != nil {
		return err
	}
	return a.Refresh(ctx)
}

func (a *App) Register(ctx context.Context, username string, password string) error {
	return a.Session.Register(ctx, username, password)
}

// Logout drops the session along with everything loaded for it.
func (a *App) Logout(ctx context.Context) error {
	err := a.Session.Logout(ctx)
	a.Courses.Reset()
	a.Events.Reset()
	a.Study.Reset()
	a.Reminders.CancelAll()
	return err
}

func (a *App) AddCourse(ctx context.Context, name string, description string) (model.Course, error) {
	return a.Courses.Add(ctx, name, description)
}

// RemoveCourse deletes the course; its topics go with it.
func (a *App) RemoveCourse(ctx context.Context, id model.ID) error {
	err := a.Courses.Remove(ctx, id)
	if err == nil || errors.Is(err, client.ErrNotFound) {
		a.Study.ForgetCourse(id)
	}
	return err
}

func (a *App) AddTopic(ctx context.Context, topic model.Topic) (model.Topic, error) {
	return a.Study.AddTopic(ctx, topic)
}

func (a *App) RemoveTopic(ctx context.Context, id model.ID) error {
	return a.Study.RemoveTopic(ctx, id)
}

func (a *App) LogStudySession(ctx context.Context, session model.NewStudySession) (model.StudySession, error) {
	return a.Study.LogSession(ctx, session)
}

// PlanStudy splits hours among the topics added in this session.
func (a *App) PlanStudy(hours float64) ([]plan.Allocation, error) {
	return plan.Allocate(a.Study.Topics(), hours)
}

// SelectDate moves the cursor and loads the events on date.
func (a *App) SelectDate(ctx context.Context, date model.Date) []model.Event {
	a.mu.Lock()
	a.selected = date
	a.mu.Unlock()
	return a.Events.LoadDate(ctx, date)
}

type AddedEvent struct {
	Event    model.Event `json:"event"`
	RemindAt *time.Time  `json:"remindAt,omitempty"`
}

// AddEvent creates an event on the selected date. A reminder is armed
// only once the backend has confirmed the event.
func (a *App) AddEvent(ctx context.Context, title string, offset reminder.Offset) (AddedEvent, error) {
	created, err := a.Events.Add(ctx, title, a.SelectedDate())
	if err != nil {
		return AddedEvent{}, err
	}
	added := AddedEvent{Event: created}
	if at, ok := a.Reminders.Schedule(created, offset); ok {
		added.RemindAt = &at
	}
	return added, nil
}

func (a *App) RemoveEvent(ctx context.Context, id model.ID) error {
	err := a.Events.Remove(ctx, id)
	if err == nil || errors.Is(err, client.ErrNotFound) {
		a.Reminders.Cancel(id)
	}
	return err
}

// ClearPast removes past events and cancels reminders of every event
// that is gone afterwards. Reminders are left alone when the events could
// not be reloaded.
func (a *App) ClearPast(ctx context.Context) error {
	if err := a.Events.ClearPast(ctx); err != nil {
		if errors.Is(err, store.ErrNotReloaded) {
			log.Warnf("reminders kept after clearing past events: %v", err)
		}
		return err
	}

	remaining := make(map[model.ID]struct{})
	for _, e := range a.Events.All() {
		remaining[e.ID] = struct{}{}
	}
	for _, r := range a.Reminders.Pending() {
		if _, ok := remaining[r.EventID]; !ok {
			a.Reminders.Cancel(r.EventID)
			log.WithField("event", r.EventID).Debug("reminder cancelled with its event")
		}
	}
	return nil
}

type State struct {
	Authenticated bool                 `json:"authenticated"`
	User          string               `json:"user,omitempty"`
	ExpiresAt     *time.Time           `json:"expiresAt,omitempty"`
	Today         model.Date           `json:"today"`
	SelectedDate  model.Date           `json:"selectedDate"`
	Courses       []model.Course       `json:"courses"`
	Topics        []model.Topic        `json:"topics"`
	Sessions      []model.StudySession `json:"sessions"`
	Day           []model.Event        `json:"day"`
	All           []model.Event        `json:"all"`
	Upcoming      []model.Event        `json:"upcoming"`
	Highlights    []model.Date         `json:"highlights"`
	Reminders     []reminder.Reminder  `json:"reminders"`
}

// State is a snapshot with the derived views computed fresh.
func (a *App) State() State {
	today := a.Today()
	all := a.Events.All()
	st := State{
		Authenticated: a.Session.Authenticated(),
		Today:         today,
		SelectedDate:  a.SelectedDate(),
		Courses:       a.Courses.Courses(),
		Topics:        a.Study.Topics(),
		Sessions:      a.Study.Sessions(),
		Day:           a.Events.Day(),
		All:           all,
		Upcoming:      view.Upcoming(all, today),
		Highlights:    view.SortedDates(view.HighlightDates(all)),
		Reminders:     a.Reminders.Pending(),
	}
	if info, err := a.Session.Info(); err == nil {
		st.User = info.Subject
		if !info.ExpiresAt.IsZero() {
			st.ExpiresAt = &info.ExpiresAt
		}
	}
	return st
}

// ExportCalendar writes every loaded event as an iCalendar document.
func (a *App) ExportCalendar(w io.Writer) error {
	return ics.Export(w, a.Events.All(), a.now())
}
