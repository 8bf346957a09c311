package reminder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aarzish/study-planner/internal/model"
)

type recorder struct {
	mu         sync.Mutex
	prepareErr error
	got        []Reminder
}

func (r *recorder) Prepare(context.Context) error { return r.prepareErr }

func (r *recorder) Notify(_ context.Context, rem Reminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, rem)
	return nil
}

func (r *recorder) delivered() []Reminder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Reminder(nil), r.got...)
}

func TestParseOffset(t *testing.T) {
	tests := []struct {
		in   string
		want Offset
		err  bool
	}{
		{in: "", want: None},
		{in: "none", want: None},
		{in: "day", want: 0},
		{in: " Day ", want: 0},
		{in: "0", want: 0},
		{in: "3", want: 3},
		{in: "-1", err: true},
		{in: "soon", err: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOffset(tt.in)
			if tt.err {
				require.ErrorIs(t, err, ErrInvalidOffset)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestTriggerTime(t *testing.T) {
	loc := time.FixedZone("test", 3*60*60)

	at, ok := Offset(3).TriggerTime("2025-06-10", DefaultHour, loc)
	require.True(t, ok)
	require.Equal(t, time.Date(2025, 6, 7, 9, 0, 0, 0, loc), at)

	at, ok = Offset(0).TriggerTime("2025-03-01", 8, loc)
	require.True(t, ok)
	require.Equal(t, time.Date(2025, 3, 1, 8, 0, 0, 0, loc), at)

	at, ok = Offset(1).TriggerTime("2025-03-01", DefaultHour, loc)
	require.True(t, ok)
	require.Equal(t, time.Date(2025, 2, 28, 9, 0, 0, 0, loc), at)

	_, ok = None.TriggerTime("2025-06-10", DefaultHour, loc)
	require.False(t, ok)
}

func newScheduler(t *testing.T, n Notifier, now time.Time) *Scheduler {
	t.Helper()
	s := New(n, Config{Hour: DefaultHour, Location: time.UTC})
	s.now = func() time.Time { return now }
	s.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func grant(t *testing.T, s *Scheduler) {
	t.Helper()
	s.RequestPermission(context.Background())
	require.Eventually(t, s.Granted, time.Second, time.Millisecond)
}

func TestScheduleArmsFutureInstant(t *testing.T) {
	s := newScheduler(t, &recorder{}, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	grant(t, s)

	event := model.Event{ID: "1", Title: "Midterm", Date: "2025-06-10"}
	at, ok := s.Schedule(event, 3)
	require.True(t, ok)
	require.Equal(t, time.Date(2025, 6, 7, 9, 0, 0, 0, time.UTC), at)
	require.Equal(t, []Reminder{{EventID: "1", Title: "Midterm", Date: "2025-06-10", At: at}}, s.Pending())
}

func TestScheduleSkipsPastInstant(t *testing.T) {
	s := newScheduler(t, &recorder{}, time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC))
	grant(t, s)

	_, ok := s.Schedule(model.Event{ID: "1", Title: "Midterm", Date: "2025-06-10"}, 3)
	require.False(t, ok)
	_, ok = s.Schedule(model.Event{ID: "1", Title: "Midterm", Date: "2025-06-08"}, 0)
	require.False(t, ok)
	_, ok = s.Schedule(model.Event{ID: "1", Title: "Midterm", Date: "2025-06-20"}, None)
	require.False(t, ok)
	require.Empty(t, s.Pending())
}

func TestScheduleWithoutPermission(t *testing.T) {
	s := newScheduler(t, &recorder{prepareErr: errors.New("denied")}, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	s.RequestPermission(context.Background())
	require.Never(t, s.Granted, 50*time.Millisecond, 5*time.Millisecond)

	_, ok := s.Schedule(model.Event{ID: "1", Title: "Midterm", Date: "2025-06-10"}, 3)
	require.False(t, ok)
	require.Empty(t, s.Pending())
}

func TestRescheduleReplaces(t *testing.T) {
	s := newScheduler(t, &recorder{}, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	grant(t, s)

	event := model.Event{ID: "1", Title: "Midterm", Date: "2025-06-10"}
	_, ok := s.Schedule(event, 3)
	require.True(t, ok)
	at, ok := s.Schedule(event, 1)
	require.True(t, ok)

	pending := s.Pending()
	require.Len(t, pending, 1)
	require.Equal(t, at, pending[0].At)
	require.Len(t, s.cron.Entries(), 1)
}

func TestCancel(t *testing.T) {
	s := newScheduler(t, &recorder{}, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	grant(t, s)

	for _, id := range []model.ID{"1", "2", "3"} {
		_, ok := s.Schedule(model.Event{ID: id, Title: "t", Date: "2025-06-10"}, 0)
		require.True(t, ok)
	}
	require.True(t, s.Cancel("2"))
	require.False(t, s.Cancel("2"))
	require.Len(t, s.Pending(), 2)

	s.CancelAll()
	require.Empty(t, s.Pending())
	require.Empty(t, s.cron.Entries())
}

func TestArmedReminderFiresOnce(t *testing.T) {
	rec := &recorder{}
	s := newScheduler(t, rec, time.Now())

	r := Reminder{EventID: "7", Title: "Midterm", Date: "2025-06-10", At: time.Now().Add(1100 * time.Millisecond)}
	s.arm(r)

	require.Eventually(t, func() bool { return len(rec.delivered()) == 1 }, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, "Midterm", rec.delivered()[0].Title)
	require.Empty(t, s.Pending())
	require.Never(t, func() bool { return len(rec.delivered()) > 1 }, 1500*time.Millisecond, 50*time.Millisecond)
}

func TestCancelledReminderDoesNotFire(t *testing.T) {
	rec := &recorder{}
	s := newScheduler(t, rec, time.Now())

	s.arm(Reminder{EventID: "7", Title: "Midterm", At: time.Now().Add(1100 * time.Millisecond)})
	require.True(t, s.Cancel("7"))
	require.Never(t, func() bool { return len(rec.delivered()) > 0 }, 2*time.Second, 50*time.Millisecond)
}

func TestPermissionAskedOnce(t *testing.T) {
	n := &countingNotifier{}
	s := New(n, Config{})
	s.RequestPermission(context.Background())
	s.RequestPermission(context.Background())

	select {
	case <-s.Answered():
	case <-time.After(time.Second):
		t.Fatal("permission request did not complete")
	}
	require.True(t, s.Granted())
	require.Equal(t, int32(1), n.prepared.Load())
}

type countingNotifier struct {
	recorder
	prepared atomic.Int32
}

func (c *countingNotifier) Prepare(context.Context) error {
	c.prepared.Add(1)
	return nil
}
