// Package kv provides the durable key-value slot that chat history is
// persisted into.
package kv

import (
	"errors"
)

var (
	// ErrNotFound is returned by Get when the slot holds no value.
	ErrNotFound = errors.New("kv: not found")
	// ErrQuotaExceeded is returned by Set when the value does not fit.
	ErrQuotaExceeded = errors.New("kv: quota exceeded")
)

// Slot is a single named value in durable storage.
type Slot interface {
	Get() ([]byte, error)
	Set(data []byte) error
	Remove() error
}

// IsQuota reports whether err signals that storage is full.
func IsQuota(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}
