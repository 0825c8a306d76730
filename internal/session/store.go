package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/zap"

	"github.com/yanmxa/hezell/internal/kv"
	"github.com/yanmxa/hezell/internal/log"
	"github.com/yanmxa/hezell/internal/message"
)

const (
	// DefaultDebounce is the delay between the last mutation and the write.
	DefaultDebounce = time.Second
	// EmergencyKeep is how many sessions survive a failed full write.
	EmergencyKeep = 5
)

// Options configures a Store.
type Options struct {
	Debounce time.Duration    // <= 0 means DefaultDebounce
	Now      func() time.Time // clock override for tests
}

// Store manages the ordered session collection and mirrors it to a kv.Slot.
type Store struct {
	mu       sync.Mutex
	sessions []Session // collection order, oldest first
	slot     kv.Slot
	debounce time.Duration
	now      func() time.Time
	timer    *time.Timer
	dirty    bool
	closed   bool

	// writeMu serializes writes so a later snapshot never lands first.
	writeMu sync.Mutex
}

// Open reads the slot once and returns a store over its contents.
// Missing or malformed data yields an empty collection.
func Open(slot kv.Slot, opts Options) *Store {
	s := &Store{
		slot:     slot,
		debounce: opts.Debounce,
		now:      opts.Now,
	}
	if s.debounce <= 0 {
		s.debounce = DefaultDebounce
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.sessions = load(slot)
	return s
}

func load(slot kv.Slot) []Session {
	data, err := slot.Get()
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			log.LogError("session load", err)
		}
		return nil
	}
	var sessions []Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		log.Logger().Warn("discarding malformed chat history", zap.Int("bytes", len(data)), zap.Error(err))
		return nil
	}
	log.Logger().Debug("chat history loaded", zap.Int("sessions", len(sessions)))
	return sessions
}

// CommitTurn records the conversation after a turn has finished.
//
// With a non-empty activeID the matching session's messages are replaced and
// its timestamp bumped, leaving its position untouched. With an empty
// activeID a new session is appended. The returned id is the session that
// now holds msgs; changed reports whether anything was written. Lists with no
// user message are ignored.
func (s *Store) CommitTurn(activeID string, msgs []message.Message) (string, bool) {
	if !message.HasUser(msgs) {
		return activeID, false
	}
	msgs = message.CloneAll(msgs)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UnixMilli()
	if activeID != "" {
		if i := s.indexLocked(activeID); i >= 0 {
			if cmp.Equal(s.sessions[i].Messages, msgs, cmpopts.EquateEmpty()) {
				return activeID, false
			}
			s.sessions[i].Messages = msgs
			s.sessions[i].Timestamp = now
			s.scheduleLocked()
			return activeID, true
		}
		// The session vanished (cleared mid-turn); recreate it under the same id.
	} else {
		activeID = message.NewID()
	}

	s.sessions = append(s.sessions, Session{
		ID:        activeID,
		Title:     GenerateTitle(msgs),
		Messages:  msgs,
		Timestamp: now,
	})
	s.scheduleLocked()
	return activeID, true
}

// Get returns a copy of the session with the given id.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.sessions[i].Clone(), true
	}
	return Session{}, false
}

// List returns copies of all sessions, newest first.
func (s *Store) List() []Session {
	s.mu.Lock()
	out := make([]Session, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = sess.Clone()
	}
	s.mu.Unlock()

	slices.SortStableFunc(out, func(a, b Session) int {
		return cmpTimestampDesc(a, b)
	})
	return out
}

// Latest returns the most recently updated session.
func (s *Store) Latest() (Session, bool) {
	list := s.List()
	if len(list) == 0 {
		return Session{}, false
	}
	return list[0], true
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Clear drops every session and removes the durable slot.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.sessions = nil
	s.dirty = false
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	err := s.slot.Remove()
	log.LogPersist("clear", 0, 0, err)
	if err != nil {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	return nil
}

// Flush writes any pending change immediately.
func (s *Store) Flush() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	s.persist()
}

// Close flushes pending changes and stops scheduling writes.
func (s *Store) Close() {
	s.Flush()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.sessions, func(sess Session) bool { return sess.ID == id })
}

// scheduleLocked marks the collection dirty and (re)arms the debounce timer.
func (s *Store) scheduleLocked() {
	s.dirty = true
	if s.closed {
		return
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(s.debounce, s.persist)
		return
	}
	s.timer.Reset(s.debounce)
}

// persist writes the sanitized collection, falling back to the emergency
// set when the full write fails. Failures are logged, never returned.
func (s *Store) persist() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return
	}
	s.dirty = false
	snapshot := make([]Session, len(s.sessions))
	for i, sess := range s.sessions {
		snapshot[i] = sess.Clone()
	}
	s.mu.Unlock()

	full := Sanitize(snapshot)
	data, err := json.Marshal(full)
	if err == nil {
		err = s.slot.Set(data)
	}
	log.LogPersist("full", len(full), len(data), err)
	if err == nil {
		return
	}
	if !kv.IsQuota(err) {
		// Only a full slot benefits from a smaller payload.
		log.LogError("chat history persistence failed", err)
		return
	}

	reduced := Emergency(snapshot, EmergencyKeep)
	data, err = json.Marshal(reduced)
	if err == nil {
		err = s.slot.Set(data)
	}
	log.LogPersist("emergency", len(reduced), len(data), err)
	if err != nil {
		log.LogError("chat history persistence abandoned", err)
	}
}

// Sanitize returns copies of sessions without inline image payloads.
// Remote image references are kept.
func Sanitize(sessions []Session) []Session {
	out := make([]Session, len(sessions))
	for i, sess := range sessions {
		sess = sess.Clone()
		for j := range sess.Messages {
			m := &sess.Messages[j]
			if message.IsDataURL(m.ImageURL) {
				m.ImageURL = ""
			}
			if message.IsDataURL(m.UploadedImageURL) {
				m.UploadedImageURL = ""
			}
		}
		out[i] = sess
	}
	return out
}

// Emergency returns the keep newest sessions, in collection order, with every
// image field dropped.
func Emergency(sessions []Session, keep int) []Session {
	idx := make([]int, len(sessions))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmpTimestampDesc(sessions[a], sessions[b])
	})
	if len(idx) > keep {
		idx = idx[:keep]
	}
	slices.Sort(idx)

	out := make([]Session, 0, len(idx))
	for _, i := range idx {
		sess := sessions[i].Clone()
		for j := range sess.Messages {
			sess.Messages[j].ImageURL = ""
			sess.Messages[j].UploadedImageURL = ""
		}
		out = append(out, sess)
	}
	return out
}

func cmpTimestampDesc(a, b Session) int {
	switch {
	case a.Timestamp > b.Timestamp:
		return -1
	case a.Timestamp < b.Timestamp:
		return 1
	}
	return 0
}
