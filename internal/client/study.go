package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Aarzish/study-planner/internal/model"
)

// CreateTopic adds a topic to a course. The backend may answer with the new
// id; when it only confirms, the returned topic has an empty ID.
func (c *Client) CreateTopic(ctx context.Context, topic model.Topic) (model.Topic, error) {
	var created struct {
		ID model.ID `json:"id"`
	}
	topic.ID = ""
	if err := c.do(ctx, http.MethodPost, "/topics", topic, &created); err != nil {
		return model.Topic{}, err
	}
	topic.ID = created.ID
	return topic, nil
}

// DeleteTopic removes the topic and, on the backend, its study sessions.
func (c *Client) DeleteTopic(ctx context.Context, id model.ID) error {
	return c.do(ctx, http.MethodDelete, "/topics/"+url.PathEscape(id.String()), nil, nil)
}

func (c *Client) LogStudySession(ctx context.Context, session model.NewStudySession) (model.StudySession, error) {
	var logged model.StudySession
	if err := c.do(ctx, http.MethodPost, "/study_sessions", session, &logged); err != nil {
		return model.StudySession{}, err
	}
	return logged, nil
}
