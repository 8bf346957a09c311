package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Aarzish/study-planner/internal/model"
)

func (c *Client) ListCourses(ctx context.Context) ([]model.Course, error) {
	var courses []model.Course
	if err := c.do(ctx, http.MethodGet, "/courses", nil, &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

func (c *Client) CreateCourse(ctx context.Context, course model.NewCourse) (model.Course, error) {
	var created model.Course
	if err := c.do(ctx, http.MethodPost, "/courses", course, &created); err != nil {
		return model.Course{}, err
	}
	return created, nil
}

func (c *Client) DeleteCourse(ctx context.Context, id model.ID) error {
	return c.do(ctx, http.MethodDelete, "/courses/"+url.PathEscape(id.String()), nil, nil)
}
