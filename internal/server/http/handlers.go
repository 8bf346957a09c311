package internalhttp

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Aarzish/study-planner/internal/app"
	"github.com/Aarzish/study-planner/internal/model"
	"github.com/Aarzish/study-planner/internal/plan"
	"github.com/Aarzish/study-planner/internal/reminder"
	"github.com/Aarzish/study-planner/internal/store"
)

type (
	credentialsRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	courseRequest struct {
		Name        string `json:"name"`
		Description string `json:"description" validate:"max=1000"`
	}

	dateRequest struct {
		Date string `json:"date" validate:"required"`
	}

	eventRequest struct {
		Title  string `json:"title"`
		Remind string `json:"remind"`
	}

	topicRequest struct {
		CourseID          string  `json:"courseId" validate:"required"`
		Name              string  `json:"name"`
		Difficulty        float64 `json:"difficulty" validate:"min=1,max=10"`
		DaysUntilDeadline int     `json:"daysUntilDeadline"`
	}

	studySessionRequest struct {
		TopicID         string  `json:"topicId" validate:"required"`
		DurationMinutes int     `json:"durationMinutes" validate:"min=1"`
		Completed       bool    `json:"completed"`
		ConfidenceLevel float64 `json:"confidenceLevel" validate:"min=0,max=10"`
	}

	dateResponse struct {
		Date   model.Date    `json:"date"`
		Events []model.Event `json:"events"`
	}
)

type handlers struct {
	app *app.App
}

func (h handlers) state(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, h.app.State())
}

func (h handlers) login(ctx echo.Context) error {
	var data credentialsRequest
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	if err := h.app.Login(ctx.Request().Context(), data.Username, data.Password); err != nil {
		return errors.Wrap(err, "logging in")
	}
	return ctx.JSON(http.StatusOK, h.app.State())
}

func (h handlers) register(ctx echo.Context) error {
	var data credentialsRequest
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	if err := h.app.Register(ctx.Request().Context(), data.Username, data.Password); err != nil {
		return errors.Wrap(err, "registering")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"message": "registered"})
}

func (h handlers) logout(ctx echo.Context) error {
	if err := h.app.Logout(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "logging out")
	}
	return ctx.JSON(http.StatusOK, h.app.State())
}

// addCourse answers 204 for a blank name; nothing is sent to the backend.
func (h handlers) addCourse(ctx echo.Context) error {
	var data courseRequest
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	course, err := h.app.AddCourse(ctx.Request().Context(), data.Name, data.Description)
	if errors.Is(err, store.ErrBlank) {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err != nil {
		return errors.Wrap(err, "adding course")
	}
	return ctx.JSON(http.StatusCreated, course)
}

func (h handlers) removeCourse(ctx echo.Context) error {
	if err := h.app.RemoveCourse(ctx.Request().Context(), model.ID(ctx.Param("id"))); err != nil {
		return errors.Wrap(err, "removing course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// addTopic answers 204 for a blank name; nothing is sent to the backend.
func (h handlers) addTopic(ctx echo.Context) error {
	var data topicRequest
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	topic, err := h.app.AddTopic(ctx.Request().Context(), model.Topic{
		CourseID:          model.ID(data.CourseID),
		Name:              data.Name,
		Difficulty:        data.Difficulty,
		DaysUntilDeadline: data.DaysUntilDeadline,
	})
	if errors.Is(err, store.ErrBlank) {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err != nil {
		return errors.Wrap(err, "adding topic")
	}
	return ctx.JSON(http.StatusCreated, topic)
}

func (h handlers) removeTopic(ctx echo.Context) error {
	if err := h.app.RemoveTopic(ctx.Request().Context(), model.ID(ctx.Param("id"))); err != nil {
		return errors.Wrap(err, "removing topic")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (h handlers) logStudySession(ctx echo.Context) error {
	var data studySessionRequest
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	logged, err := h.app.LogStudySession(ctx.Request().Context(), model.NewStudySession{
		TopicID:         model.ID(data.TopicID),
		DurationMinutes: data.DurationMinutes,
		Completed:       data.Completed,
		ConfidenceLevel: data.ConfidenceLevel,
	})
	if err != nil {
		return errors.Wrap(err, "logging study session")
	}
	return ctx.JSON(http.StatusCreated, logged)
}

func (h handlers) studyPlan(ctx echo.Context) error {
	hours, err := strconv.ParseFloat(ctx.QueryParam("hours"), 64)
	if err != nil {
		return fieldErrors{"hours": "hours must be a number"}
	}
	allocations, err := h.app.PlanStudy(hours)
	if err != nil {
		return errors.Wrap(err, "planning study time")
	}
	if allocations == nil {
		allocations = []plan.Allocation{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"hours": hours, "allocations": allocations})
}

func (h handlers) selectDate(ctx echo.Context) error {
	var data dateRequest
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	date, err := model.ParseDate(data.Date)
	if err != nil {
		return fieldErrors{"date": "date must be YYYY-MM-DD"}
	}
	events := h.app.SelectDate(ctx.Request().Context(), date)
	return ctx.JSON(http.StatusOK, dateResponse{Date: date, Events: events})
}

// addEvent creates an event on the selected date; a blank title answers 204.
func (h handlers) addEvent(ctx echo.Context) error {
	var data eventRequest
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	offset, err := reminder.ParseOffset(data.Remind)
	if err != nil {
		return fieldErrors{"remind": `remind must be "none", "day" or a number of days`}
	}
	added, err := h.app.AddEvent(ctx.Request().Context(), data.Title, offset)
	if errors.Is(err, store.ErrBlank) {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err != nil {
		return errors.Wrap(err, "adding event")
	}
	return ctx.JSON(http.StatusCreated, added)
}

func (h handlers) removeEvent(ctx echo.Context) error {
	if err := h.app.RemoveEvent(ctx.Request().Context(), model.ID(ctx.Param("id"))); err != nil {
		return errors.Wrap(err, "removing event")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (h handlers) clearPast(ctx echo.Context) error {
	if err := h.app.ClearPast(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "clearing past events")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (h handlers) exportCalendar(ctx echo.Context) error {
	var buf bytes.Buffer
	if err := h.app.ExportCalendar(&buf); err != nil {
		return errors.Wrap(err, "exporting calendar")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="study-planner.ics"`)
	return ctx.Blob(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}
