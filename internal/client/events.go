package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Aarzish/study-planner/internal/model"
)

func (c *Client) ListEvents(ctx context.Context) ([]model.Event, error) {
	var events []model.Event
	if err := c.do(ctx, http.MethodGet, "/events", nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) ListEventsForDate(ctx context.Context, date model.Date) ([]model.Event, error) {
	var events []model.Event
	if err := c.do(ctx, http.MethodGet, "/events/"+url.PathEscape(date.String()), nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) CreateEvent(ctx context.Context, event model.NewEvent) (model.Event, error) {
	var created model.Event
	if err := c.do(ctx, http.MethodPost, "/events", event, &created); err != nil {
		return model.Event{}, err
	}
	return created, nil
}

func (c *Client) DeleteEvent(ctx context.Context, id model.ID) error {
	return c.do(ctx, http.MethodDelete, "/events/"+url.PathEscape(id.String()), nil, nil)
}

// DeletePastEvents removes every event dated before the backend's today.
func (c *Client) DeletePastEvents(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/events/past", nil, nil)
}
