package storage

import (
	"context"
	"errors"
)

var (
	ErrNotFound          = errors.New("key not found")
	ErrConnectionFailed  = errors.New("failed to connect")
	ErrIncorrectKey      = errors.New("incorrect key")
	ErrStorageNotPrepare = errors.New("storage is not connected")
)

// Storage keeps small string values under fixed keys across restarts,
// the way a browser keeps local storage for a page.
type Storage interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Remove(ctx context.Context, key string) error
}
