package internalhttp

import (
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// loggingMiddleware renders handler errors itself so the logged status is final.
func loggingMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		if err := next(ctx); err != nil {
			ctx.Error(err)
		}

		r := ctx.Request()
		ip, err := getIP(r)
		if err != nil {
			log.Errorf("failed to get client IP: %v", err)
		}
		log.WithField("ip", ip).WithField("method", r.Method).WithField("path", r.URL).
			WithField("status", ctx.Response().Status).
			WithField("HTTP version", r.Proto).WithField("user-agent", r.Header.Get("user-agent")).
			WithField("requestId", ctx.Response().Header().Get(echo.HeaderXRequestID)).
			WithField("latency", time.Since(start)).
			Info("http request processed")
		return nil
	}
}
