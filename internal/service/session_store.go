package service

import (
	"strings"
	"sync"
	"time"

	"bank-assist/internal/domain"
)

// SessionStore guarda el historial de conversacion en memoria, con un
// mutex por sesion: turnos concurrentes de la misma sesion se
// serializan, sesiones distintas no se bloquean entre si.
// El historial esta acotado por cantidad de mensajes y TTL de
// inactividad; un janitor barre sesiones vencidas.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry

	maxMessages int
	idleTTL     time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

type sessionEntry struct {
	mu      sync.Mutex
	session domain.Session
}

const (
	defaultSessionMaxMessages = 50
	defaultSessionIdleTTL     = 30 * time.Minute
	janitorInterval           = time.Minute
)

func NewSessionStore(maxMessages int, idleTTL time.Duration) *SessionStore {
	if maxMessages <= 0 {
		maxMessages = defaultSessionMaxMessages
	}
	if idleTTL <= 0 {
		idleTTL = defaultSessionIdleTTL
	}
	s := &SessionStore{
		sessions:    make(map[string]*sessionEntry),
		maxMessages: maxMessages,
		idleTTL:     idleTTL,
		stop:        make(chan struct{}),
	}
	go s.janitor()
	return s
}

// Close detiene el janitor. Idempotente.
func (s *SessionStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// WithLock ejecuta fn con acceso exclusivo a la sesion, creandola si no
// existe. fn recibe la sesion por puntero y puede mutarla; el lock per-key
// se sostiene durante todo fn, asi un turno completo queda serializado.
func (s *SessionStore) WithLock(sessionID, userID string, fn func(session *domain.Session) error) error {
	entry := s.entry(sessionID, userID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.session.LastSeenAt = time.Now().UTC()
	return fn(&entry.session)
}

// Snapshot devuelve una copia del historial; false si la sesion no existe.
func (s *SessionStore) Snapshot(sessionID string) ([]domain.Message, bool) {
	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	out := make([]domain.Message, len(entry.session.Messages))
	copy(out, entry.session.Messages)
	return out, true
}

// Append agrega mensajes respetando el tope: se retienen los ultimos
// maxMessages. Debe llamarse dentro de WithLock (opera sobre la sesion
// ya bloqueada).
func (s *SessionStore) Append(session *domain.Session, msgs ...domain.Message) {
	session.Messages = append(session.Messages, msgs...)
	if len(session.Messages) > s.maxMessages {
		session.Messages = session.Messages[len(session.Messages)-s.maxMessages:]
	}
}

// Len devuelve la cantidad de sesiones vivas. Para tests y metricas.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionStore) entry(sessionID, userID string) *sessionEntry {
	sessionID = strings.TrimSpace(sessionID)

	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return entry
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok = s.sessions[sessionID]; ok {
		return entry
	}
	now := time.Now().UTC()
	entry = &sessionEntry{session: domain.Session{
		ID:         sessionID,
		UserID:     userID,
		CreatedAt:  now,
		LastSeenAt: now,
	}}
	s.sessions[sessionID] = entry
	return entry
}

func (s *SessionStore) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.evictIdle()
		}
	}
}

func (s *SessionStore) evictIdle() {
	cutoff := time.Now().UTC().Add(-s.idleTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.sessions {
		// TryLock: una sesion en uso nunca esta idle.
		if !entry.mu.TryLock() {
			continue
		}
		idle := entry.session.LastSeenAt.Before(cutoff)
		entry.mu.Unlock()
		if idle {
			delete(s.sessions, id)
		}
	}
}
