package internalhttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	gommonlog "github.com/labstack/gommon/log"
	log "github.com/sirupsen/logrus"

	"github.com/Aarzish/study-planner/internal/app"
)

type Config struct {
	Host string
	Port int
}

// Server exposes the controller as a local JSON dashboard.
type Server struct {
	echo *echo.Echo
	app  *app.App
	addr string
}

func NewServer(config Config, a *app.App) *Server {
	s := &Server{
		echo: echo.New(),
		app:  a,
		addr: net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	v := newRequestValidator()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Validator = v
	s.echo.HTTPErrorHandler = newHTTPErrorHandler(v)

	s.echo.Pre(middleware.RemoveTrailingSlash())
	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	s.echo.Use(loggingMiddleware)
	s.echo.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: gommonlog.ERROR}))

	s.echo.GET("/health", health)

	h := handlers{app: s.app}
	api := s.echo.Group("/api")
	api.GET("/state", h.state)
	api.POST("/login", h.login)
	api.POST("/register", h.register)
	api.POST("/logout", h.logout)
	api.POST("/courses", h.addCourse)
	api.DELETE("/courses/:id", h.removeCourse)
	api.POST("/topics", h.addTopic)
	api.DELETE("/topics/:id", h.removeTopic)
	api.POST("/study-sessions", h.logStudySession)
	api.GET("/plan", h.studyPlan)
	api.PUT("/date", h.selectDate)
	api.POST("/events", h.addEvent)
	api.DELETE("/events/past", h.clearPast)
	api.DELETE("/events/:id", h.removeEvent)
	api.GET("/calendar.ics", h.exportCalendar)
}

func (s *Server) Start(_ context.Context) error {
	log.Printf("starting dashboard on http://%s", s.addr)
	err := s.echo.Start(s.addr)
	if !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func getIP(req *http.Request) (string, error) {
	ip, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return "", fmt.Errorf("userip: %q is not IP:port", req.RemoteAddr)
	}

	if parsed := net.ParseIP(ip); parsed == nil {
		return "", fmt.Errorf("userip: %q is not IP:port", req.RemoteAddr)
	}
	return ip, nil
}
