package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	log "github.com/sirupsen/logrus"

	"github.com/Aarzish/study-planner/internal/model"
	"github.com/Aarzish/study-planner/internal/storage"
)

// TokenKey is the local storage key the token is kept under.
const TokenKey = "token"

var (
	ErrMissingCredentials = errors.New("username and password are required")
	ErrNoToken            = errors.New("no session token")
)

type Authenticator interface {
	Login(ctx context.Context, credentials model.Credentials) (string, error)
	Register(ctx context.Context, credentials model.Credentials) error
}

// Info is what can be read from the token payload without verifying it.
type Info struct {
	Subject   string
	ExpiresAt time.Time
}

// Session holds the token of the signed in user, if any.
type Session struct {
	mu      sync.RWMutex
	token   string
	storage storage.Storage
	auth    Authenticator
}

// Open restores a token kept by an earlier run.
func Open(ctx context.Context, st storage.Storage, auth Authenticator) (*Session, error) {
	s := &Session{storage: st, auth: auth}
	token, err := st.Get(ctx, TokenKey)
	switch {
	case err == nil:
		s.token = token
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to read session token: %w", err)
	}
	return s, nil
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

func (s *Session) Login(ctx context.Context, username string, password string) error {
	creds, err := credentials(username, password)
	if err != nil {
		return err
	}

	token, err := s.auth.Login(ctx, creds)
	if err != nil {
		log.WithField("username", creds.Username).Warnf("login failed: %v", err)
		return err
	}

	if err := s.storage.Set(ctx, TokenKey, token); err != nil {
		return fmt.Errorf("failed to store session token: %w", err)
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	log.WithField("username", creds.Username).Info("logged in")
	return nil
}

func (s *Session) Register(ctx context.Context, username string, password string) error {
	creds, err := credentials(username, password)
	if err != nil {
		return err
	}
	if err := s.auth.Register(ctx, creds); err != nil {
		return err
	}
	log.WithField("username", creds.Username).Info("registered")
	return nil
}

func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	if err := s.storage.Remove(ctx, TokenKey); err != nil {
		return fmt.Errorf("failed to clear session token: %w", err)
	}
	log.Info("logged out")
	return nil
}

// Info decodes the token payload for display. The signature is not checked.
func (s *Session) Info() (Info, error) {
	token := s.Token()
	if token == "" {
		return Info{}, ErrNoToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return Info{}, fmt.Errorf("failed to decode session token: %w", err)
	}

	var info Info
	switch sub := claims["sub"].(type) {
	case string:
		info.Subject = sub
	case float64:
		info.Subject = fmt.Sprintf("%.0f", sub)
	}
	if exp, ok := claims["exp"].(float64); ok {
		info.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return info, nil
}

func credentials(username string, password string) (model.Credentials, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.Credentials{}, ErrMissingCredentials
	}
	return model.Credentials{Username: username, Password: password}, nil
}
