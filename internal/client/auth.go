package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Aarzish/study-planner/internal/model"
)

type loginResponse struct {
	Token string `json:"token"`
}

func (c *Client) Login(ctx context.Context, credentials model.Credentials) (string, error) {
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/login", credentials, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("login response has no token: %w", ErrDecode)
	}
	return resp.Token, nil
}

func (c *Client) Register(ctx context.Context, credentials model.Credentials) error {
	return c.do(ctx, http.MethodPost, "/register", credentials, nil)
}
