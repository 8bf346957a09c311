// Package clienttest provides an in-memory stand-in for the study planner
// REST backend, for use in tests of code built on the client package.
package clienttest

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/Aarzish/study-planner/internal/model"
)

const (
	TokenLifetime = 7 * 24 * time.Hour

	contextTokenKey = "user"
)

var (
	errInvalidCredentials = echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	errUserExists         = echo.NewHTTPError(http.StatusConflict, "Username already exists")
	errMissingFields      = echo.NewHTTPError(http.StatusBadRequest, "Missing required fields")
	errBadDate            = echo.NewHTTPError(http.StatusBadRequest, "Invalid date format")
	errCourseNotFound     = echo.NewHTTPError(http.StatusNotFound, "Course not found")
	errEventNotFound      = echo.NewHTTPError(http.StatusNotFound, "Event not found")
	errTopicNotFound      = echo.NewHTTPError(http.StatusNotFound, "Topic not found")
)

type (
	user struct {
		id       int
		password string
	}

	course struct {
		ID          int    `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		owner       int
	}

	event struct {
		ID    int
		Title string
		Date  model.Date
		owner int
	}

	topic struct {
		id     int
		course int
	}

	studySession struct {
		ID       int `json:"id"`
		TopicID  int `json:"topic_id"`
		Duration int `json:"duration"`
	}

	// eventJSON renders dates the way the reference backend does: as HTTP dates.
	eventJSON struct {
		ID    int    `json:"id"`
		Title string `json:"title"`
		Date  string `json:"date"`
	}

	credentials struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
)

// Backend is a running fake backend. Its zero value is not usable; use New.
type Backend struct {
	// Now is the backend clock used to decide which events are past.
	Now func() time.Time

	mu       sync.Mutex
	secret   []byte
	users    map[string]user
	courses  map[int]*course
	events   map[int]*event
	topics   map[int]*topic
	sessions map[int]*studySession
	nextID   int
	calls    []string
	failures map[string]int

	app *echo.Echo
	srv *httptest.Server
}

// New starts a backend on a loopback port. Callers must Close it.
func New() *Backend {
	b := &Backend{
		Now:      time.Now,
		secret:   []byte("clienttest-secret"),
		users:    make(map[string]user),
		courses:  make(map[int]*course),
		events:   make(map[int]*event),
		topics:   make(map[int]*topic),
		sessions: make(map[int]*studySession),
		failures: make(map[string]int),
		app:      echo.New(),
	}
	b.setup()
	b.srv = httptest.NewServer(b.app)
	return b
}

func (b *Backend) setup() {
	b.app.HideBanner = true
	b.app.HidePort = true
	b.app.HTTPErrorHandler = errorHandler
	b.app.Pre(b.record)

	b.app.POST("/register", b.register)
	b.app.POST("/login", b.login)

	auth := middleware.JWTWithConfig(middleware.JWTConfig{
		SigningKey:    b.secret,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
	})
	b.app.GET("/courses", b.listCourses, auth)
	b.app.POST("/courses", b.createCourse, auth)
	b.app.DELETE("/courses/:id", b.deleteCourse, auth)
	b.app.GET("/events", b.listEvents, auth)
	b.app.GET("/events/:date", b.listEventsForDate, auth)
	b.app.POST("/events", b.createEvent, auth)
	b.app.DELETE("/events/past", b.deletePastEvents, auth)
	b.app.DELETE("/events/:id", b.deleteEvent, auth)
	b.app.POST("/topics", b.createTopic, auth)
	b.app.DELETE("/topics/:id", b.deleteTopic, auth)
	b.app.POST("/study_sessions", b.logStudySession, auth)
}

func (b *Backend) URL() string { return b.srv.URL }

func (b *Backend) Close() { b.srv.Close() }

// Calls returns every request received so far as "METHOD /path".
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// Count returns how many requests were received for method and path.
func (b *Backend) Count(method string, path string) int {
	key := method + " " + path
	n := 0
	for _, call := range b.Calls() {
		if call == key {
			n++
		}
	}
	return n
}

// Fail makes every following request for method and path answer with status,
// until Heal is called.
func (b *Backend) Fail(method string, path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method+" "+path] = status
}

func (b *Backend) Heal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = make(map[string]int)
}

// AddUser registers a user directly and returns a valid token for them.
func (b *Backend) AddUser(username string, password string) string {
	b.mu.Lock()
	u, ok := b.users[username]
	if !ok {
		b.nextID++
		u = user{id: b.nextID, password: password}
		b.users[username] = u
	}
	b.mu.Unlock()

	token, err := b.issue(u.id)
	if err != nil {
		panic(err)
	}
	return token
}

func (b *Backend) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		key := ctx.Request().Method + " " + ctx.Request().URL.Path
		b.mu.Lock()
		b.calls = append(b.calls, key)
		status, fail := b.failures[key]
		b.mu.Unlock()
		if fail {
			return echo.NewHTTPError(status, http.StatusText(status))
		}
		return next(ctx)
	}
}

func (b *Backend) issue(userID int) (string, error) {
	now := b.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(TokenLifetime).Unix(),
	})
	signed, err := token.SignedString(b.secret)
	return signed, errors.Wrap(err, "signing token")
}

func (b *Backend) register(ctx echo.Context) error {
	var creds credentials
	if err := ctx.Bind(&creds); err != nil {
		return errors.Wrap(err, "binding credentials")
	}
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return errMissingFields
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.users[creds.Username]; ok {
		return errUserExists
	}
	b.nextID++
	b.users[creds.Username] = user{id: b.nextID, password: creds.Password}
	return ctx.JSON(http.StatusCreated, echo.Map{"message": "User registered successfully"})
}

func (b *Backend) login(ctx echo.Context) error {
	var creds credentials
	if err := ctx.Bind(&creds); err != nil {
		return errors.Wrap(err, "binding credentials")
	}

	b.mu.Lock()
	u, ok := b.users[creds.Username]
	b.mu.Unlock()
	if !ok || u.password != creds.Password {
		return errInvalidCredentials
	}

	token, err := b.issue(u.id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"token": token})
}

func (b *Backend) listCourses(ctx echo.Context) error {
	owner, err := subject(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]course, 0)
	for _, c := range b.courses {
		if c.owner == owner {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return ctx.JSON(http.StatusOK, out)
}

func (b *Backend) createCourse(ctx echo.Context) error {
	owner, err := subject(ctx)
	if err != nil {
		return err
	}
	var in model.NewCourse
	if err := ctx.Bind(&in); err != nil {
		return errors.Wrap(err, "binding course")
	}
	if in.Name == "" {
		return errMissingFields
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	c := &course{ID: b.nextID, Name: in.Name, Description: in.Description, owner: owner}
	b.courses[c.ID] = c
	return ctx.JSON(http.StatusCreated, c)
}

func (b *Backend) deleteCourse(ctx echo.Context) error {
	owner, err := subject(ctx)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errCourseNotFound
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.courses[id]
	if !ok || c.owner != owner {
		return errCourseNotFound
	}
	delete(b.courses, id)
	for tid, t := range b.topics {
		if t.course == id {
			b.dropTopicLocked(tid)
		}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Course deleted"})
}

func (b *Backend) listEvents(ctx echo.Context) error {
	return b.writeEvents(ctx, func(*event) bool { return true })
}

func (b *Backend) listEventsForDate(ctx echo.Context) error {
	date, err := model.ParseDate(ctx.Param("date"))
	if err != nil {
		return errBadDate
	}
	return b.writeEvents(ctx, func(e *event) bool { return e.Date == date })
}

func (b *Backend) writeEvents(ctx echo.Context, match func(*event) bool) error {
	owner, err := subject(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]eventJSON, 0)
	ids := make([]int, 0, len(b.events))
	for id := range b.events {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		e := b.events[id]
		if e.owner == owner && match(e) {
			out = append(out, e.render())
		}
	}
	return ctx.JSON(http.StatusOK, out)
}

func (b *Backend) createEvent(ctx echo.Context) error {
	owner, err := subject(ctx)
	if err != nil {
		return err
	}
	var in struct {
		Title string `json:"title"`
		Date  string `json:"date"`
	}
	if err := ctx.Bind(&in); err != nil {
		return errors.Wrap(err, "binding event")
	}
	if in.Title == "" || in.Date == "" {
		return errMissingFields
	}
	date, err := model.ParseDate(in.Date)
	if err != nil {
		return errBadDate
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	e := &event{ID: b.nextID, Title: in.Title, Date: date, owner: owner}
	b.events[e.ID] = e
	return ctx.JSON(http.StatusCreated, e.render())
}

func (b *Backend) deleteEvent(ctx echo.Context) error {
	owner, err := subject(ctx)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errEventNotFound
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.events[id]
	if !ok || e.owner != owner {
		return errEventNotFound
	}
	delete(b.events, id)
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Event deleted"})
}

func (b *Backend) deletePastEvents(ctx echo.Context) error {
	owner, err := subject(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	today := model.DateOf(b.Now())
	deleted := 0
	for id, e := range b.events {
		if e.owner == owner && e.Date.Before(today) {
			delete(b.events, id)
			deleted++
		}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Past events deleted", "deleted": deleted})
}

func (e *event) render() eventJSON {
	return eventJSON{
		ID:    e.ID,
		Title: e.Title,
		Date:  e.Date.In(time.UTC).Format(http.TimeFormat),
	}
}

func subject(ctx echo.Context) (int, error) {
	token, ok := ctx.Get(contextTokenKey).(*jwt.Token)
	if !ok {
		return 0, middleware.ErrJWTMissing
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, middleware.ErrJWTMissing
	}
	sub, ok := claims["sub"].(float64)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnprocessableEntity, "Subject must be an integer")
	}
	return int(sub), nil
}

func errorHandler(err error, ctx echo.Context) {
	code := http.StatusInternalServerError
	message := http.StatusText(code)

	if herr, ok := errors.Cause(err).(*echo.HTTPError); ok {
		code = herr.Code
		if m, ok := herr.Message.(string); ok {
			message = m
		}
		if herr == middleware.ErrJWTMissing {
			code = http.StatusUnauthorized
			message = "Missing Authorization Header"
		}
	}

	if ctx.Response().Committed {
		return
	}
	if err := ctx.JSON(code, echo.Map{"error": message}); err != nil {
		ctx.Echo().Logger.Error(err)
	}
}

func (b *Backend) createTopic(ctx echo.Context) error {
	owner, err := subject(ctx)
	if err != nil {
		return err
	}
	var in model.Topic
	if err := ctx.Bind(&in); err != nil {
		return errors.Wrap(err, "binding topic")
	}
	courseID, err := strconv.Atoi(in.CourseID.String())
	if in.Name == "" || err != nil {
		return errMissingFields
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.courses[courseID]
	if !ok || c.owner != owner {
		return errCourseNotFound
	}
	b.nextID++
	b.topics[b.nextID] = &topic{id: b.nextID, course: courseID}
	return ctx.JSON(http.StatusCreated, echo.Map{"message": "Topic added", "id": b.nextID})
}

func (b *Backend) deleteTopic(ctx echo.Context) error {
	owner, err := subject(ctx)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errTopicNotFound
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ownsTopicLocked(owner, id) {
		return errTopicNotFound
	}
	b.dropTopicLocked(id)
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Topic deleted"})
}

func (b *Backend) logStudySession(ctx echo.Context) error {
	owner, err := subject(ctx)
	if err != nil {
		return err
	}
	var in model.NewStudySession
	if err := ctx.Bind(&in); err != nil {
		return errors.Wrap(err, "binding study session")
	}
	topicID, err := strconv.Atoi(in.TopicID.String())
	if err != nil || in.DurationMinutes <= 0 {
		return errMissingFields
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ownsTopicLocked(owner, topicID) {
		return errTopicNotFound
	}
	b.nextID++
	ss := &studySession{ID: b.nextID, TopicID: topicID, Duration: in.DurationMinutes}
	b.sessions[ss.ID] = ss
	return ctx.JSON(http.StatusCreated, ss)
}

func (b *Backend) ownsTopicLocked(owner int, id int) bool {
	t, ok := b.topics[id]
	if !ok {
		return false
	}
	c, ok := b.courses[t.course]
	return ok && c.owner == owner
}

func (b *Backend) dropTopicLocked(id int) {
	delete(b.topics, id)
	for sid, ss := range b.sessions {
		if ss.TopicID == id {
			delete(b.sessions, sid)
		}
	}
}
