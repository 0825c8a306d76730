package kv

import (
	"fmt"
	"slices"
	"sync"
)

// MemorySlot keeps its value in memory. It backs ephemeral sessions and
// tests, where SetFunc can inject failures.
type MemorySlot struct {
	mu     sync.Mutex
	data   []byte
	ok     bool
	quota  int
	writes int

	// SetFunc, when non-nil, runs before every Set; a non-nil result is
	// returned instead of storing.
	SetFunc func(data []byte) error
	// RemoveFunc, when non-nil, runs before every Remove; a non-nil result
	// is returned instead of clearing.
	RemoveFunc func() error
}

// NewMemorySlot returns an empty slot with the given quota (<= 0 unlimited).
func NewMemorySlot(quota int) *MemorySlot {
	return &MemorySlot{quota: quota}
}

// Get returns a copy of the stored value.
func (s *MemorySlot) Get() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ok {
		return nil, ErrNotFound
	}
	return slices.Clone(s.data), nil
}

// Set stores a copy of data.
func (s *MemorySlot) Set(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.SetFunc != nil {
		if err := s.SetFunc(data); err != nil {
			return err
		}
	}
	if s.quota > 0 && len(data) > s.quota {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrQuotaExceeded, len(data), s.quota)
	}
	s.data = slices.Clone(data)
	s.ok = true
	return nil
}

// Remove clears the slot.
func (s *MemorySlot) Remove() error {
	s.mu.Lock()
	fn := s.RemoveFunc
	s.mu.Unlock()
	if fn != nil {
		if err := fn(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	s.ok = false
	return nil
}

// Writes returns how many times Set has been called.
func (s *MemorySlot) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
