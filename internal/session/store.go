// Package session keeps in-flight capture sessions in memory.
package session

import (
	"fmt"
	"sort"
	"sync"

	apperrors "github.com/anime-shed/capture-inspector-go/internal/errors"
	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

// ErrBusy is the message of the conflict error returned while another
// operation holds a session
const ErrBusy = "session busy"

type entry struct {
	session models.Session
	busy    bool
}

// Store holds sessions by id. Reads return deep copies; writers take the
// session with Acquire and hand it back with Save or Release.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{sessions: make(map[string]*entry)}
}

// Create stores a new session. The id must be unused.
func (s *Store) Create(sess models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sess.ID]; exists {
		return apperrors.NewConflictError(fmt.Sprintf("session %s already exists", sess.ID), nil)
	}
	s.sessions[sess.ID] = &entry{session: sess.Clone()}
	return nil
}

// Get returns a copy of the session
func (s *Store) Get(id string) (models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return models.Session{}, notFound(id)
	}
	return e.session.Clone(), nil
}

// Acquire marks the session busy and returns a copy to work on. A session
// that is already busy is rejected rather than waited for.
func (s *Store) Acquire(id string) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return models.Session{}, notFound(id)
	}
	if e.busy {
		return models.Session{}, busy(id)
	}
	e.busy = true
	return e.session.Clone(), nil
}

// Save writes the session back without releasing it
func (s *Store) Save(sess models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sess.ID]
	if !ok {
		return notFound(sess.ID)
	}
	e.session = sess.Clone()
	return nil
}

// Release clears the busy mark. Releasing a disposed session is a no-op.
func (s *Store) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		e.busy = false
	}
}

// Dispose removes a session. A busy session cannot be disposed.
func (s *Store) Dispose(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return notFound(id)
	}
	if e.busy {
		return busy(id)
	}
	delete(s.sessions, id)
	return nil
}

// List returns copies of every session, oldest first
func (s *Store) List() []models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Session, 0, len(s.sessions))
	for _, e := range s.sessions {
		out = append(out, e.session.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of stored sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func notFound(id string) error {
	return apperrors.NewNotFoundError(fmt.Sprintf("session %s not found", id), nil).
		WithGuidance("Start a new capture session.")
}

func busy(id string) error {
	return apperrors.NewConflictError(ErrBusy, nil).
		WithDetails(fmt.Sprintf("session %s is processing another request", id)).
		WithGuidance("Wait for the current step to finish, then try again.")
}
