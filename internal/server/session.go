package server

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Session is one verification exchange: the verifier hands out a fresh
// nonce, the holder binds a release to it, the verifier checks the
// presentation against it.
type Session struct {
	ID       string
	Nonce    string
	Audience string
}

type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessions() *Sessions {
	return &Sessions{
		sessions: make(map[string]*Session),
	}
}

func (s *Sessions) NewSession(audience string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := &Session{
		ID:       uuid.New().String(),
		Nonce:    uuid.New().String(),
		Audience: audience,
	}
	s.sessions[session.ID] = session
	return session
}

func (s *Sessions) GetSession(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, errors.New("session not found")
	}
	return session, nil
}
