package feed

import (
	"sync"

	"github.com/google/uuid"

	"vport-feed/internal/domain"
	"vport-feed/internal/infra/metrics"
)

// Registry хранит открытые сессии ленты по их идентификаторам.
// Каждая сессия владеет собственными кэшами: две открытые вкладки ленты
// никогда не делят состояние.
type Registry struct {
	svc domain.FeedService

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry создаёт реестр сессий.
func NewRegistry(svc domain.FeedService) *Registry {
	return &Registry{svc: svc, sessions: make(map[string]*Session)}
}

// Create открывает новую сессию и возвращает её идентификатор.
func (r *Registry) Create(pageSize int, includeVideos bool) (string, *Session) {
	id := uuid.NewString()
	session := NewSession(r.svc, pageSize, includeVideos)
	r.mu.Lock()
	r.sessions[id] = session
	r.mu.Unlock()
	metrics.ActiveFeedSessions.Inc()
	return id, session
}

// Get возвращает сессию по идентификатору.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	return session, ok
}

// Delete закрывает сессию и освобождает её состояние.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	metrics.ActiveFeedSessions.Dec()
	return true
}
