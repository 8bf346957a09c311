package internalhttp

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Aarzish/study-planner/internal/app"
	"github.com/Aarzish/study-planner/internal/client"
	"github.com/Aarzish/study-planner/internal/plan"
	"github.com/Aarzish/study-planner/internal/session"
	"github.com/Aarzish/study-planner/internal/store"
)

// newHTTPErrorHandler renders every error as JSON: {"error": "..."} or a
// map of field messages for validation failures.
func newHTTPErrorHandler(v *requestValidator) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(v.translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case fieldErrors:
			code = http.StatusBadRequest
			message = map[string]string(origErr)
		default:
			code, message = backendStatus(err)
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead {
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				log.Errorf("failed to write error response: %v", err)
			}
		}
	}
}

func backendStatus(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrMissingCredentials),
		errors.Is(err, store.ErrInvalidTopic),
		errors.Is(err, plan.ErrInvalidHours):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, app.ErrNotAuthenticated), errors.Is(err, client.ErrUnauthorized):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, client.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, client.ErrConflict):
		return http.StatusConflict, err.Error()
	}

	var httpErr *client.HTTPError
	if errors.Is(err, client.ErrTransport) || errors.Is(err, client.ErrDecode) || errors.As(err, &httpErr) {
		log.Warnf("backend request failed: %v", err)
		return http.StatusBadGateway, err.Error()
	}

	msg := http.StatusText(http.StatusInternalServerError)
	log.WithError(err).Error(msg)
	return http.StatusInternalServerError, msg
}
