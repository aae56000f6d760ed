// Package store is the registry of live game sessions. The engine loop is
// the only writer; readers on other goroutines (snapshot endpoints, the
// expiry sweeper) get defensive copies, never live references.
package store

import (
	"sync"

	"github.com/victornm/etrivia/internal/domain"
	"github.com/victornm/etrivia/internal/telemetry"
)

type normalKey struct {
	channelID string
	userID    string
}

type Store struct {
	mu     sync.RWMutex
	normal map[normalKey]domain.GameSession
	super  map[string]domain.GameSession
}

func New() *Store {
	return &Store{
		normal: make(map[normalKey]domain.GameSession),
		super:  make(map[string]domain.GameSession),
	}
}

// Add stores a session. The caller has already checked the uniqueness
// preconditions; Add overwrites silently rather than guessing intent.
func (s *Store) Add(session domain.GameSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch session.Mode {
	case domain.ModeSuper:
		s.super[session.ChannelID] = session.Clone()
	default:
		s.normal[normalKey{session.ChannelID, session.UserID}] = session.Clone()
	}
	s.exportLocked()
}

// GetNormal returns a copy of the normal session for (channelID, userID).
func (s *Store) GetNormal(channelID, userID string) (domain.GameSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.normal[normalKey{channelID, userID}]
	return session.Clone(), ok
}

// GetSuper returns a copy of the channel's active super session.
func (s *Store) GetSuper(channelID string) (domain.GameSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.super[channelID]
	return session.Clone(), ok
}

// RemoveNormal removes the session and reports whether one existed.
func (s *Store) RemoveNormal(channelID, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := normalKey{channelID, userID}
	if _, ok := s.normal[k]; !ok {
		return false
	}
	delete(s.normal, k)
	s.exportLocked()
	return true
}

// RemoveSuper removes the channel's super session and reports whether one
// existed.
func (s *Store) RemoveSuper(channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.super[channelID]; !ok {
		return false
	}
	delete(s.super, channelID)
	s.exportLocked()
	return true
}

// Update replaces a stored session in place (attempt counts change as users
// answer). A session that was removed in the meantime is not resurrected.
func (s *Store) Update(session domain.GameSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch session.Mode {
	case domain.ModeSuper:
		if _, ok := s.super[session.ChannelID]; !ok {
			return false
		}
		s.super[session.ChannelID] = session.Clone()
	default:
		k := normalKey{session.ChannelID, session.UserID}
		if _, ok := s.normal[k]; !ok {
			return false
		}
		s.normal[k] = session.Clone()
	}
	return true
}

// GetAll returns copies of every live session, normal then super, in no
// particular order.
func (s *Store) GetAll() []domain.GameSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.GameSession, 0, len(s.normal)+len(s.super))
	for _, session := range s.normal {
		out = append(out, session.Clone())
	}
	for _, session := range s.super {
		out = append(out, session.Clone())
	}
	return out
}

// ChannelsWithActiveSuper lists the channel ids that currently have a super
// game running.
func (s *Store) ChannelsWithActiveSuper() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.super))
	for id := range s.super {
		out = append(out, id)
	}
	return out
}

func (s *Store) exportLocked() {
	telemetry.ActiveSessions.WithLabelValues(string(domain.ModeNormal)).Set(float64(len(s.normal)))
	telemetry.ActiveSessions.WithLabelValues(string(domain.ModeSuper)).Set(float64(len(s.super)))
}
