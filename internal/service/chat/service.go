package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/zhouzirui/research-assistant/backend/internal/model/chat"
)

var ErrSessionNotFound = errors.New("session not found")

// absentIDs are client-side placeholders treated like a missing identifier.
var absentIDs = map[string]struct{}{
	"":          {},
	"undefined": {},
	"null":      {},
}

type entry struct {
	mu      sync.Mutex
	session chat.Session
}

// Service owns every session for the lifetime of the process. Sessions are
// never evicted.
//
// The map is guarded by mu; each session's fields are guarded by its own
// entry mutex, so work on one session never blocks another.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	newID    func() string
}

// NewService bootstraps an empty in-memory session store.
func NewService() *Service {
	return &Service{
		sessions: make(map[string]*entry),
		newID:    uuid.NewString,
	}
}

// Resolve returns id when it names a live session. Otherwise it creates an
// empty session under a fresh identifier and returns that identifier with
// created set.
func (s *Service) Resolve(_ context.Context, id string) (string, bool) {
	if _, absent := absentIDs[id]; !absent {
		s.mu.RLock()
		_, ok := s.sessions[id]
		s.mu.RUnlock()
		if ok {
			return id, false
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another request may have created it between the two locks.
	if _, absent := absentIDs[id]; !absent {
		if _, ok := s.sessions[id]; ok {
			return id, false
		}
	}
	return s.insertLocked(nil), true
}

// CreateSession always provisions a new session whose history starts with
// seed.
func (s *Service) CreateSession(_ context.Context, seed ...*schema.Message) chat.Session {
	s.mu.Lock()
	id := s.insertLocked(seed)
	e := s.sessions[id]
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone()
}

func (s *Service) insertLocked(seed []*schema.Message) string {
	id := s.newID()
	for {
		if _, taken := s.sessions[id]; !taken {
			break
		}
		id = s.newID()
	}

	history := make([]*schema.Message, 0, len(seed)+16)
	history = append(history, seed...)

	s.sessions[id] = &entry{session: chat.Session{
		ID:        id,
		History:   history,
		CreatedAt: time.Now().UTC(),
	}}
	return id
}

// GetSession retrieves a deep copy of the session.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	e, ok := s.lookup(sessionID)
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), nil
}

// Update runs fn under the session's lock. fn must not perform blocking I/O.
// A non-nil error from fn is returned as is; fn is responsible for leaving the
// session untouched in that case.
func (s *Service) Update(_ context.Context, sessionID string, fn func(*chat.Session) error) error {
	e, ok := s.lookup(sessionID)
	if !ok {
		return ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(&e.session)
}

// AppendMessages adds messages to the end of the session history in order.
func (s *Service) AppendMessages(ctx context.Context, sessionID string, messages ...*schema.Message) error {
	return s.Update(ctx, sessionID, func(session *chat.Session) error {
		session.History = append(session.History, messages...)
		return nil
	})
}

// Count returns the number of live sessions.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Service) lookup(sessionID string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	return e, ok
}
