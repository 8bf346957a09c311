package store

import (
	"errors"
	"strings"

	"github.com/Aarzish/study-planner/internal/client"
)

var (
	// ErrBlank is returned before any request when a required text field is empty.
	ErrBlank = errors.New("required field is blank")

	ErrNotReloaded = errors.New("events were not reloaded")
)

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// removeLocally reports whether err still means the entry is gone on the backend.
func removeLocally(err error) bool {
	return err == nil || errors.Is(err, client.ErrNotFound)
}
