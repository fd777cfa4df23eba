package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Version is one persisted, immutable generation result.
type Version struct {
	ID          string    `json:"id"`
	Prompt      string    `json:"prompt"`
	Plan        string    `json:"plan"`
	Code        string    `json:"code"`
	Explanation string    `json:"explanation"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewVersion carries the caller-supplied fields of a Version. The store
// assigns the ID and timestamp.
type NewVersion struct {
	Prompt      string
	Plan        string
	Code        string
	Explanation string
}
