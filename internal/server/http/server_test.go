package internalhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aarzish/study-planner/internal/app"
	"github.com/Aarzish/study-planner/internal/client"
	"github.com/Aarzish/study-planner/internal/client/clienttest"
	"github.com/Aarzish/study-planner/internal/model"
	"github.com/Aarzish/study-planner/internal/notify"
	"github.com/Aarzish/study-planner/internal/reminder"
	"github.com/Aarzish/study-planner/internal/session"
	memorystorage "github.com/Aarzish/study-planner/internal/storage/memory"
	"github.com/Aarzish/study-planner/internal/store"
)

func setup(t *testing.T) (*Server, *clienttest.Backend) {
	t.Helper()
	ctx := context.Background()

	b := clienttest.New()
	t.Cleanup(b.Close)
	b.AddUser("ann", "pw")

	api := client.New(client.Config{BaseURL: b.URL()})
	sess, err := session.Open(ctx, memorystorage.New(), api)
	require.NoError(t, err)
	authed := api.WithToken(sess)
	a := app.New(
		sess,
		store.NewCourseStore(authed),
		store.NewEventStore(authed),
		store.NewStudyStore(authed),
		reminder.New(notify.Console{}, reminder.Config{Hour: reminder.DefaultHour}),
		app.Options{},
	)
	require.NoError(t, a.Start(ctx))
	require.Eventually(t, a.Reminders.Granted, time.Second, time.Millisecond)
	t.Cleanup(func() { _ = a.Stop(context.Background()) })

	return NewServer(Config{Host: "127.0.0.1", Port: 0}, a), b
}

func do(t *testing.T, s *Server, method string, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func login(t *testing.T, s *Server) {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/login", map[string]string{"username": "ann", "password": "pw"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHealth(t *testing.T) {
	s, _ := setup(t)
	rec := do(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestLogin(t *testing.T) {
	s, _ := setup(t)

	tests := []struct {
		name     string
		body     map[string]string
		wantCode int
		wantBody map[string]string
	}{
		{
			name:     "missing fields",
			body:     map[string]string{},
			wantCode: http.StatusBadRequest,
			wantBody: map[string]string{"username": "username is a required field", "password": "password is a required field"},
		},
		{
			name:     "wrong password",
			body:     map[string]string{"username": "ann", "password": "bad"},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "ok",
			body:     map[string]string{"username": "ann", "password": "pw"},
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/login", tt.body)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantBody != nil {
				var got map[string]string
				decode(t, rec, &got)
				require.Equal(t, tt.wantBody, got)
			}
		})
	}

	var st app.State
	decode(t, do(t, s, http.MethodGet, "/api/state", nil), &st)
	require.True(t, st.Authenticated)
}

func TestRegisterConflict(t *testing.T) {
	s, _ := setup(t)
	rec := do(t, s, http.MethodPost, "/api/register", map[string]string{"username": "bob", "password": "pw"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, s, http.MethodPost, "/api/register", map[string]string{"username": "bob", "password": "pw"})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCourses(t *testing.T) {
	s, b := setup(t)
	login(t, s)

	rec := do(t, s, http.MethodPost, "/api/courses", map[string]string{"name": "  "})
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Zero(t, b.Count(http.MethodPost, "/courses"))

	rec = do(t, s, http.MethodPost, "/api/courses", map[string]string{"name": "CS101", "description": "Intro"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var course model.Course
	decode(t, rec, &course)
	require.Equal(t, "CS101", course.Name)

	var st app.State
	decode(t, do(t, s, http.MethodGet, "/api/state", nil), &st)
	require.Equal(t, []model.Course{course}, st.Courses)

	rec = do(t, s, http.MethodDelete, "/api/courses/"+course.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, s, http.MethodDelete, "/api/courses/"+course.ID.String(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEvents(t *testing.T) {
	s, _ := setup(t)
	login(t, s)

	future := model.DateOf(time.Now()).AddDays(10)
	rec := do(t, s, http.MethodPut, "/api/date", map[string]string{"date": "not a date"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, s, http.MethodPut, "/api/date", map[string]string{"date": future.String()})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/events", map[string]string{"title": "Final", "remind": "soon"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var fields map[string]string
	decode(t, rec, &fields)
	require.Contains(t, fields, "remind")

	rec = do(t, s, http.MethodPost, "/api/events", map[string]string{"title": ""})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/events", map[string]string{"title": "Final", "remind": "3"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var added app.AddedEvent
	decode(t, rec, &added)
	require.Equal(t, future, added.Event.Date)
	require.NotNil(t, added.RemindAt)

	var st app.State
	decode(t, do(t, s, http.MethodGet, "/api/state", nil), &st)
	require.Len(t, st.Day, 1)
	require.Len(t, st.Upcoming, 1)
	require.Len(t, st.Reminders, 1)
	require.Equal(t, []model.Date{future}, st.Highlights)

	rec = do(t, s, http.MethodGet, "/api/calendar.ics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")
	require.Contains(t, rec.Body.String(), "SUMMARY:Final")

	rec = do(t, s, http.MethodDelete, "/api/events/past", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodDelete, "/api/events/"+added.Event.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	decode(t, do(t, s, http.MethodGet, "/api/state", nil), &st)
	require.Empty(t, st.All)
	require.Empty(t, st.Reminders)
}

func TestAnonymousWrites(t *testing.T) {
	s, _ := setup(t)
	rec := do(t, s, http.MethodPost, "/api/courses", map[string]string{"name": "CS101"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBackendDown(t *testing.T) {
	s, b := setup(t)
	login(t, s)
	b.Fail(http.MethodDelete, "/events/past", http.StatusInternalServerError)

	rec := do(t, s, http.MethodDelete, "/api/events/past", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestStudyPlan(t *testing.T) {
	s, b := setup(t)
	login(t, s)

	rec := do(t, s, http.MethodPost, "/api/courses", map[string]string{"name": "Maths"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var course model.Course
	decode(t, rec, &course)

	rec = do(t, s, http.MethodPost, "/api/topics", map[string]interface{}{"courseId": course.ID, "name": "  ", "difficulty": 5})
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Zero(t, b.Count(http.MethodPost, "/topics"))

	rec = do(t, s, http.MethodPost, "/api/topics", map[string]interface{}{"courseId": course.ID, "name": "Algebra", "difficulty": 12})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	topics := []map[string]interface{}{
		{"courseId": course.ID, "name": "Algebra", "difficulty": 7, "daysUntilDeadline": 3},
		{"courseId": course.ID, "name": "Calculus", "difficulty": 5, "daysUntilDeadline": 5},
		{"courseId": course.ID, "name": "Physics", "difficulty": 8, "daysUntilDeadline": 2},
	}
	var algebra model.Topic
	for i, topic := range topics {
		rec = do(t, s, http.MethodPost, "/api/topics", topic)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		if i == 0 {
			decode(t, rec, &algebra)
		}
	}

	rec = do(t, s, http.MethodPost, "/api/study-sessions", map[string]interface{}{"topicId": algebra.ID, "durationMinutes": 60, "completed": true, "confidenceLevel": 8.5})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/plan?hours=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Allocations []struct {
			Topic model.Topic `json:"topic"`
			Hours float64     `json:"hours"`
		} `json:"allocations"`
	}
	decode(t, rec, &got)
	require.Len(t, got.Allocations, 3)
	require.InDelta(t, 3.48, got.Allocations[0].Hours, 1e-9)
	require.InDelta(t, 2.46, got.Allocations[1].Hours, 1e-9)
	require.InDelta(t, 4.06, got.Allocations[2].Hours, 1e-9)

	rec = do(t, s, http.MethodGet, "/api/plan?hours=lots", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodDelete, "/api/courses/"+course.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	var st app.State
	decode(t, do(t, s, http.MethodGet, "/api/state", nil), &st)
	require.Empty(t, st.Topics)
	require.Empty(t, st.Sessions)

	rec = do(t, s, http.MethodDelete, "/api/topics/"+algebra.ID.String(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
