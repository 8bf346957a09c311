package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aarzish/study-planner/internal/client"
	"github.com/Aarzish/study-planner/internal/client/clienttest"
	"github.com/Aarzish/study-planner/internal/model"
)

type token string

func (t token) Token() string { return string(t) }

var today = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func newAPI(t *testing.T) (*clienttest.Backend, *client.Client) {
	t.Helper()
	b := clienttest.New()
	b.Now = func() time.Time { return today }
	t.Cleanup(b.Close)
	return b, client.New(client.Config{BaseURL: b.URL()}).WithToken(token(b.AddUser("ann", "pw")))
}

func TestCourseAdd(t *testing.T) {
	_, api := newAPI(t)
	ctx := context.Background()
	s := NewCourseStore(api)
	require.Empty(t, s.Load(ctx))

	created, err := s.Add(ctx, "CS101", "Intro")
	require.NoError(t, err)
	require.Equal(t, "CS101", created.Name)

	courses := s.Courses()
	require.Len(t, courses, 1)
	require.Equal(t, "CS101", courses[0].Name)
	require.Equal(t, courses, s.Load(ctx))
}

func TestCourseAddBlank(t *testing.T) {
	b, api := newAPI(t)
	ctx := context.Background()
	s := NewCourseStore(api)

	for _, name := range []string{"", "   ", "\t\n"} {
		_, err := s.Add(ctx, name, "desc")
		require.ErrorIs(t, err, ErrBlank)
	}
	require.Empty(t, s.Courses())
	require.Zero(t, b.Count("POST", "/courses"))
}

func TestCourseRemove(t *testing.T) {
	_, api := newAPI(t)
	ctx := context.Background()
	s := NewCourseStore(api)

	first, err := s.Add(ctx, "CS101", "")
	require.NoError(t, err)
	second, err := s.Add(ctx, "Math", "")
	require.NoError(t, err)

	require.NoError(t, s.Remove(ctx, first.ID))
	require.Equal(t, []model.Course{second}, s.Load(ctx))

	err = s.Remove(ctx, "nope")
	require.ErrorIs(t, err, client.ErrNotFound)
	require.Equal(t, []model.Course{second}, s.Courses())
}

func TestCourseWriteFailureKeepsState(t *testing.T) {
	b, api := newAPI(t)
	ctx := context.Background()
	s := NewCourseStore(api)
	course, err := s.Add(ctx, "CS101", "")
	require.NoError(t, err)

	b.Fail("DELETE", "/courses/"+course.ID.String(), 500)
	require.Error(t, s.Remove(ctx, course.ID))
	require.Equal(t, []model.Course{course}, s.Courses())

	b.Fail("POST", "/courses", 500)
	_, err = s.Add(ctx, "Math", "")
	require.Error(t, err)
	require.Len(t, s.Courses(), 1)
}

func TestCourseLoadFailureIsEmpty(t *testing.T) {
	b, api := newAPI(t)
	ctx := context.Background()
	s := NewCourseStore(api)
	_, err := s.Add(ctx, "CS101", "")
	require.NoError(t, err)

	b.Fail("GET", "/courses", 503)
	require.Empty(t, s.Load(ctx))
	require.Empty(t, s.Courses())
}

func TestEventAddThenListForDate(t *testing.T) {
	_, api := newAPI(t)
	ctx := context.Background()
	s := NewEventStore(api)

	_, err := s.Add(ctx, "Midterm", "2025-06-01")
	require.NoError(t, err)

	day := s.LoadDate(ctx, "2025-06-01")
	require.Len(t, day, 1)
	require.Equal(t, "Midterm", day[0].Title)
	require.Equal(t, model.Date("2025-06-01"), day[0].Date)
}

func TestEventAddKeepsViewsConsistent(t *testing.T) {
	_, api := newAPI(t)
	ctx := context.Background()
	s := NewEventStore(api)
	s.LoadDate(ctx, "2025-06-01")
	s.LoadAll(ctx)

	onDay, err := s.Add(ctx, "Midterm", "2025-06-01")
	require.NoError(t, err)
	other, err := s.Add(ctx, "Final", "2025-12-01")
	require.NoError(t, err)

	require.Equal(t, []model.Event{onDay}, s.Day())
	require.Equal(t, []model.Event{onDay, other}, s.All())

	require.NoError(t, s.Remove(ctx, onDay.ID))
	require.Empty(t, s.Day())
	require.Equal(t, []model.Event{other}, s.All())

	require.ErrorIs(t, s.Remove(ctx, onDay.ID), client.ErrNotFound)
}

func TestEventAddBlank(t *testing.T) {
	b, api := newAPI(t)
	ctx := context.Background()
	s := NewEventStore(api)

	_, err := s.Add(ctx, " ", "2025-06-01")
	require.ErrorIs(t, err, ErrBlank)
	_, err = s.Add(ctx, "Midterm", "")
	require.ErrorIs(t, err, ErrBlank)
	require.Zero(t, b.Count("POST", "/events"))
	require.Empty(t, s.All())
}

func TestEventClearPast(t *testing.T) {
	_, api := newAPI(t)
	ctx := context.Background()
	s := NewEventStore(api)
	s.LoadDate(ctx, "2025-05-01")

	_, err := s.Add(ctx, "Quiz", "2025-05-01")
	require.NoError(t, err)
	_, err = s.Add(ctx, "Today", "2025-06-01")
	require.NoError(t, err)
	future, err := s.Add(ctx, "Final", "2025-12-01")
	require.NoError(t, err)
	require.Len(t, s.Day(), 1)

	require.NoError(t, s.ClearPast(ctx))
	require.Empty(t, s.Day())
	for _, e := range s.All() {
		require.False(t, e.Date.Before("2025-06-01"), e.Title)
	}
	require.Contains(t, s.All(), future)
	require.Len(t, s.All(), 2)
}

// blockingAPI holds the first date request until released.
type blockingAPI struct {
	EventAPI
	release chan struct{}
	once    sync.Once
}

func (a *blockingAPI) ListEventsForDate(ctx context.Context, date model.Date) ([]model.Event, error) {
	first := false
	a.once.Do(func() { first = true })
	if first {
		<-a.release
		return []model.Event{{ID: "1", Title: "stale", Date: date}}, nil
	}
	return []model.Event{{ID: "2", Title: "fresh", Date: date}}, nil
}

func TestEventLoadDateDropsStaleResponse(t *testing.T) {
	api := &blockingAPI{release: make(chan struct{})}
	s := NewEventStore(api)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.LoadDate(ctx, "2025-06-01")
	}()
	require.Eventually(t, func() bool { return s.Date() == "2025-06-01" }, time.Second, time.Millisecond)

	go func() {
		// the second load queues behind the first one
		time.Sleep(10 * time.Millisecond)
		close(api.release)
	}()
	day := s.LoadDate(ctx, "2025-06-02")
	<-done

	require.Equal(t, model.Date("2025-06-02"), s.Date())
	require.Equal(t, []model.Event{{ID: "2", Title: "fresh", Date: "2025-06-02"}}, day)
}

type countingAPI struct {
	mu      sync.Mutex
	deletes int
	err     error
}

func (a *countingAPI) ListCourses(context.Context) ([]model.Course, error) { return nil, nil }

func (a *countingAPI) CreateCourse(_ context.Context, c model.NewCourse) (model.Course, error) {
	return model.Course{ID: "x", Name: c.Name}, nil
}

func (a *countingAPI) DeleteCourse(context.Context, model.ID) error {
	a.mu.Lock()
	a.deletes++
	n := a.deletes
	a.mu.Unlock()
	if n > 1 {
		return a.err
	}
	time.Sleep(5 * time.Millisecond)
	return nil
}

func TestCourseRemoveSameIDIsSerialised(t *testing.T) {
	api := &countingAPI{err: &client.HTTPError{StatusCode: 404}}
	s := NewCourseStore(api)
	ctx := context.Background()
	_, err := s.Add(ctx, "CS101", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Remove(ctx, "x")
		}()
	}
	wg.Wait()
	close(errs)

	var notFound int
	for err := range errs {
		if errors.Is(err, client.ErrNotFound) {
			notFound++
		}
	}
	require.Equal(t, 1, notFound)
	require.Empty(t, s.Courses())
}

// gatedAPI holds list and create calls until release is closed.
type gatedAPI struct {
	EventAPI
	entered chan string
	release chan struct{}
}

func newGatedAPI() *gatedAPI {
	return &gatedAPI{entered: make(chan string, 1), release: make(chan struct{})}
}

func (a *gatedAPI) wait(call string) {
	a.entered <- call
	<-a.release
}

func (a *gatedAPI) ListEvents(context.Context) ([]model.Event, error) {
	a.wait("events")
	return []model.Event{{ID: "1", Title: "previous user", Date: "2025-06-01"}}, nil
}

func (a *gatedAPI) CreateEvent(_ context.Context, e model.NewEvent) (model.Event, error) {
	a.wait("event")
	return model.Event{ID: "2", Title: e.Title, Date: e.Date}, nil
}

func (a *gatedAPI) ListCourses(context.Context) ([]model.Course, error) {
	a.wait("courses")
	return []model.Course{{ID: "1", Name: "previous user"}}, nil
}

func (a *gatedAPI) CreateCourse(_ context.Context, c model.NewCourse) (model.Course, error) {
	a.wait("course")
	return model.Course{ID: "2", Name: c.Name}, nil
}

func (a *gatedAPI) DeleteCourse(context.Context, model.ID) error { return nil }

func TestResetDropsResponsesInFlight(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		call  string
		run   func(events *EventStore, courses *CourseStore)
		reset func(events *EventStore, courses *CourseStore)
		check func(t *testing.T, events *EventStore, courses *CourseStore)
	}{
		{
			name:  "load all events",
			call:  "events",
			run:   func(e *EventStore, _ *CourseStore) { e.LoadAll(ctx) },
			reset: func(e *EventStore, _ *CourseStore) { e.Reset() },
			check: func(t *testing.T, e *EventStore, _ *CourseStore) { require.Empty(t, e.All()) },
		},
		{
			name:  "add event",
			call:  "event",
			run:   func(e *EventStore, _ *CourseStore) { _, _ = e.Add(ctx, "Quiz", "2025-06-01") },
			reset: func(e *EventStore, _ *CourseStore) { e.Reset() },
			check: func(t *testing.T, e *EventStore, _ *CourseStore) {
				require.Empty(t, e.All())
				require.Empty(t, e.Day())
			},
		},
		{
			name:  "load courses",
			call:  "courses",
			run:   func(_ *EventStore, c *CourseStore) { c.Load(ctx) },
			reset: func(_ *EventStore, c *CourseStore) { c.Reset() },
			check: func(t *testing.T, _ *EventStore, c *CourseStore) { require.Empty(t, c.Courses()) },
		},
		{
			name:  "add course",
			call:  "course",
			run:   func(_ *EventStore, c *CourseStore) { _, _ = c.Add(ctx, "CS101", "") },
			reset: func(_ *EventStore, c *CourseStore) { c.Reset() },
			check: func(t *testing.T, _ *EventStore, c *CourseStore) { require.Empty(t, c.Courses()) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newGatedAPI()
			events := NewEventStore(api)
			events.date = "2025-06-01"
			courses := NewCourseStore(api)

			done := make(chan struct{})
			go func() {
				defer close(done)
				tt.run(events, courses)
			}()
			require.Equal(t, tt.call, <-api.entered)
			tt.reset(events, courses)
			close(api.release)
			<-done

			tt.check(t, events, courses)
		})
	}
}

func TestEventClearPastReportsFailedReload(t *testing.T) {
	b, api := newAPI(t)
	ctx := context.Background()
	s := NewEventStore(api)
	s.LoadDate(ctx, "2025-06-01")
	_, err := s.Add(ctx, "Final", "2025-12-01")
	require.NoError(t, err)

	b.Fail("GET", "/events", 503)
	err = s.ClearPast(ctx)
	require.ErrorIs(t, err, ErrNotReloaded)
	require.Equal(t, 1, b.Count("DELETE", "/events/past"))

	b.Heal()
	require.NoError(t, s.ClearPast(ctx))
	require.Len(t, s.All(), 1)
}

func TestStudyTopicsAndSessions(t *testing.T) {
	_, api := newAPI(t)
	ctx := context.Background()
	courses := NewCourseStore(api)
	s := NewStudyStore(api)

	course, err := courses.Add(ctx, "CS101", "")
	require.NoError(t, err)

	topic, err := s.AddTopic(ctx, model.Topic{CourseID: course.ID, Name: " Recursion ", Difficulty: 7, DaysUntilDeadline: 5})
	require.NoError(t, err)
	require.NotEmpty(t, topic.ID)
	require.Equal(t, "Recursion", topic.Name)
	require.Equal(t, []model.Topic{topic}, s.Topics())

	logged, err := s.LogSession(ctx, model.NewStudySession{TopicID: topic.ID, DurationMinutes: 45})
	require.NoError(t, err)
	require.Equal(t, 45, logged.DurationMinutes)
	require.Equal(t, topic.ID, logged.TopicID)
	require.Len(t, s.Sessions(), 1)

	require.NoError(t, s.RemoveTopic(ctx, topic.ID))
	require.Empty(t, s.Topics())
	require.Empty(t, s.Sessions())

	err = s.RemoveTopic(ctx, topic.ID)
	require.ErrorIs(t, err, client.ErrNotFound)
	_, err = s.LogSession(ctx, model.NewStudySession{TopicID: topic.ID, DurationMinutes: 45})
	require.ErrorIs(t, err, client.ErrNotFound)
}

func TestStudyInvalidInputSendsNothing(t *testing.T) {
	b, api := newAPI(t)
	ctx := context.Background()
	s := NewStudyStore(api)

	tests := []struct {
		name  string
		topic model.Topic
		want  error
	}{
		{name: "blank name", topic: model.Topic{CourseID: "1", Name: "  ", Difficulty: 5}, want: ErrBlank},
		{name: "no course", topic: model.Topic{Name: "Sets", Difficulty: 5}, want: ErrInvalidTopic},
		{name: "too easy", topic: model.Topic{CourseID: "1", Name: "Sets", Difficulty: 0}, want: ErrInvalidTopic},
		{name: "too hard", topic: model.Topic{CourseID: "1", Name: "Sets", Difficulty: 11}, want: ErrInvalidTopic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AddTopic(ctx, tt.topic)
			require.ErrorIs(t, err, tt.want)
		})
	}
	_, err := s.LogSession(ctx, model.NewStudySession{TopicID: "1", DurationMinutes: 0})
	require.ErrorIs(t, err, ErrInvalidTopic)

	require.Zero(t, b.Count("POST", "/topics"))
	require.Zero(t, b.Count("POST", "/study_sessions"))
}

func TestStudyForgetCourse(t *testing.T) {
	_, api := newAPI(t)
	ctx := context.Background()
	courses := NewCourseStore(api)
	s := NewStudyStore(api)

	math, err := courses.Add(ctx, "Math", "")
	require.NoError(t, err)
	art, err := courses.Add(ctx, "Art", "")
	require.NoError(t, err)
	algebra, err := s.AddTopic(ctx, model.Topic{CourseID: math.ID, Name: "Algebra", Difficulty: 7, DaysUntilDeadline: 3})
	require.NoError(t, err)
	colour, err := s.AddTopic(ctx, model.Topic{CourseID: art.ID, Name: "Colour", Difficulty: 2, DaysUntilDeadline: 9})
	require.NoError(t, err)
	_, err = s.LogSession(ctx, model.NewStudySession{TopicID: algebra.ID, DurationMinutes: 30})
	require.NoError(t, err)

	s.ForgetCourse(math.ID)
	require.Equal(t, []model.Topic{colour}, s.Topics())
	require.Empty(t, s.Sessions())
}
