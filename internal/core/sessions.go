package core

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/mediadata/internal/blobstore"
	"github.com/JonMunkholm/mediadata/internal/tabular"
)

const (
	// DefaultSessionTTL is how long an idle session is kept.
	DefaultSessionTTL = time.Hour

	// DefaultMaxSessions caps live sessions; the oldest are evicted first.
	DefaultMaxSessions = 1000
)

// Session is one analyzed upload and, once built, its editable table.
type Session struct {
	ID        string
	FileName  string
	MediaType string
	Model     string
	Blob      *blobstore.Object
	CreatedAt time.Time

	mu        sync.RWMutex
	payload   any
	editor    *tabular.Editor
	updatedAt time.Time
}

// Payload returns the unredacted analysis result.
func (s *Session) Payload() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.payload
}

// Editor returns the session's editor, or nil before the table is built.
func (s *Session) Editor() *tabular.Editor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editor
}

// setEditor replaces the editor. A rebuild discards previous edits.
func (s *Session) setEditor(e *tabular.Editor) {
	s.mu.Lock()
	s.editor = e
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.updatedAt = now
	s.mu.Unlock()
}

func (s *Session) lastUsed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// SessionStore keeps sessions in memory, keyed by UUID.
type SessionStore struct {
	ttl time.Duration
	max int
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates a store. Zero values use the defaults.
func NewSessionStore(ttl time.Duration, max int) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if max <= 0 {
		max = DefaultMaxSessions
	}
	return &SessionStore{
		ttl:      ttl,
		max:      max,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create stores a new session for payload and returns it.
func (st *SessionStore) Create(fileName, mediaType, model string, blob *blobstore.Object, payload any) *Session {
	now := st.now()
	s := &Session{
		ID:        uuid.New().String(),
		FileName:  fileName,
		MediaType: mediaType,
		Model:     model,
		Blob:      blob,
		CreatedAt: now,
		payload:   payload,
		updatedAt: now,
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
	st.evictLocked()
	return s
}

// Get returns a live session and refreshes its TTL.
func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()

	now := st.now()
	if !ok || now.Sub(s.lastUsed()) > st.ttl {
		return nil, ErrSessionNotFound
	}
	s.touch(now)
	return s, nil
}

// Delete removes a session.
func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Len returns the number of stored sessions, expired or not.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep removes expired sessions and returns how many were removed.
func (st *SessionStore) Sweep() int {
	now := st.now()

	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for id, s := range st.sessions {
		if now.Sub(s.lastUsed()) > st.ttl {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// evictLocked drops the least recently used sessions above the cap.
func (st *SessionStore) evictLocked() {
	over := len(st.sessions) - st.max
	if over <= 0 {
		return
	}

	all := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].lastUsed().Before(all[j].lastUsed())
	})
	for _, s := range all[:over] {
		delete(st.sessions, s.ID)
	}
}
