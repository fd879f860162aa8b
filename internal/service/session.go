package service

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"quillvault/internal/content"
	"quillvault/internal/domain"
	"quillvault/internal/kvstore"
)

// EditorSession is one live editing surface: a buffer editor bound to its
// own persistence engine. Sessions are owned by the SessionManager and
// addressed by token.
type EditorSession struct {
	ID     string
	UserID string
	Editor *BufferEditor
	Engine *PersistenceEngine

	// Config holds the validated save configuration attached to this
	// session, nil until the caller sets one.
	Config *ValidConfig

	createdAt    time.Time
	lastAccessed time.Time
}

// SessionManager is an arena of editor sessions keyed by token with
// explicit now-based eviction: every access sweeps expired sessions
// before resolving, so the arena never relies on background goroutines
// or unbounded process lifetime.
type SessionManager struct {
	store    kvstore.Store
	renderer *content.Renderer
	clock    Clock
	logger   *slog.Logger
	ttl      time.Duration
	defaults EngineConfig

	mu       sync.Mutex
	sessions map[string]*EditorSession
}

// NewSessionManager creates an empty arena. defaults seed each new
// session's engine configuration.
func NewSessionManager(store kvstore.Store, renderer *content.Renderer, clock Clock, logger *slog.Logger, ttl time.Duration, defaults EngineConfig) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		store:    store,
		renderer: renderer,
		clock:    clock,
		logger:   logger,
		ttl:      ttl,
		defaults: defaults,
		sessions: make(map[string]*EditorSession),
	}
}

// Create opens a new session for a user and binds a fresh engine to a
// fresh editor buffer.
func (m *SessionManager) Create(userID string) (*EditorSession, error) {
	editor := NewBufferEditor(m.renderer)
	engine := NewPersistenceEngine(m.store, m.clock, m.logger, m.defaults, Observer{})
	if err := engine.Initialize(editor); err != nil {
		return nil, err
	}

	now := m.clock.Now()
	session := &EditorSession{
		ID:           uuid.NewString(),
		UserID:       userID,
		Editor:       editor,
		Engine:       engine,
		createdAt:    now,
		lastAccessed: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictExpiredLocked(now)
	m.sessions[session.ID] = session
	return session, nil
}

// Get resolves a session token, refreshing its idle clock. Expired
// sessions are evicted on the way in and reported as ErrSessionExpired.
func (m *SessionManager) Get(id string) (*EditorSession, error) {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if ok && m.expired(session, now) {
		m.destroyLocked(session)
		return nil, domain.ErrSessionExpired
	}
	m.evictExpiredLocked(now)
	if !ok {
		return nil, &domain.NotFoundError{Message: "editor session not found"}
	}
	session.lastAccessed = now
	return session, nil
}

// Close tears a session down explicitly.
func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return &domain.NotFoundError{Message: "editor session not found"}
	}
	m.destroyLocked(session)
	return nil
}

// Len reports how many live sessions the arena holds.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *SessionManager) expired(s *EditorSession, now time.Time) bool {
	return now.Sub(s.lastAccessed) > m.ttl
}

func (m *SessionManager) evictExpiredLocked(now time.Time) {
	for _, session := range m.sessions {
		if m.expired(session, now) {
			m.logger.Info("evicting idle editor session", "session_id", session.ID, "user_id", session.UserID)
			m.destroyLocked(session)
		}
	}
}

func (m *SessionManager) destroyLocked(s *EditorSession) {
	s.Engine.Destroy()
	delete(m.sessions, s.ID)
}
