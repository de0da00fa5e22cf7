package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/saferoute/service-navigation/internal/domain/route"
	"github.com/saferoute/service-navigation/internal/domain/session"
	"github.com/saferoute/service-navigation/internal/presentation"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("navigation session not found")

// SpeechFactory returns the speech sink bound to one session.
type SpeechFactory func(sessionID uuid.UUID) SpeechSink

// SessionManagerConfig holds registry settings.
type SessionManagerConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
	Narrator      NarratorConfig
}

// SessionDTO is the response representation of a session and its view.
type SessionDTO struct {
	SessionSnapshot
	View presentation.ViewState `json:"view"`
}

type managedSession struct {
	session *RouteSession
	view    *presentation.ViewRecorder
}

func (m *managedSession) toDTO() *SessionDTO {
	return &SessionDTO{
		SessionSnapshot: m.session.Snapshot(),
		View:            m.view.Snapshot(),
	}
}

// SessionManager is the application service owning all navigation sessions.
type SessionManager struct {
	collab    Collaborators
	speech    SpeechFactory
	publisher EventPublisher
	clock     clockwork.Clock
	cfg       SessionManagerConfig
	logger    *zap.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*managedSession
}

// NewSessionManager creates a new SessionManager.
func NewSessionManager(
	collab Collaborators,
	speech SpeechFactory,
	publisher EventPublisher,
	clock clockwork.Clock,
	cfg SessionManagerConfig,
	logger *zap.Logger,
) *SessionManager {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	return &SessionManager{
		collab:    collab,
		speech:    speech,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
		sessions:  make(map[uuid.UUID]*managedSession),
	}
}

// CreateSession registers a new idle session.
func (m *SessionManager) CreateSession() *SessionDTO {
	id := uuid.New()
	view := presentation.NewViewRecorder()
	rs := NewRouteSession(id, m.collab, view, m.speech(id), m.publisher, m.clock, m.cfg.Narrator, m.logger)
	ms := &managedSession{session: rs, view: view}

	m.mu.Lock()
	m.sessions[id] = ms
	m.mu.Unlock()

	m.logger.Info("navigation session created", zap.String("session_id", id.String()))
	return ms.toDTO()
}

func (m *SessionManager) lookup(id uuid.UUID) (*managedSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ms, nil
}

// GetSession returns the session state and its current view.
func (m *SessionManager) GetSession(id uuid.UUID) (*SessionDTO, error) {
	ms, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return ms.toDTO(), nil
}

// ListSessions returns snapshots of all sessions, most recently active first.
// A non-empty status keeps only sessions in that status.
func (m *SessionManager) ListSessions(status string) ([]SessionSnapshot, error) {
	var filter session.Status
	if status != "" {
		parsed, err := session.ParseStatus(status)
		if err != nil {
			return nil, route.NewValidationError(fmt.Sprintf("unknown session status %q", status))
		}
		filter = parsed
	}

	m.mu.RLock()
	all := make([]*managedSession, 0, len(m.sessions))
	for _, ms := range m.sessions {
		all = append(all, ms)
	}
	m.mu.RUnlock()

	snapshots := make([]SessionSnapshot, 0, len(all))
	for _, ms := range all {
		snap := ms.session.Snapshot()
		if filter != "" && snap.Status != filter.String() {
			continue
		}
		snapshots = append(snapshots, snap)
	}
	sort.Slice(snapshots, func(i, j int) bool {
		if !snapshots[i].UpdatedAt.Equal(snapshots[j].UpdatedAt) {
			return snapshots[i].UpdatedAt.After(snapshots[j].UpdatedAt)
		}
		return snapshots[i].ID.String() < snapshots[j].ID.String()
	})
	return snapshots, nil
}

// PlanRoute plans a route on the session and returns the resulting state.
func (m *SessionManager) PlanRoute(ctx context.Context, id uuid.UUID, start, end string) (*SessionDTO, error) {
	ms, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	if _, err := ms.session.PlanRoute(ctx, start, end); err != nil {
		return nil, err
	}
	return ms.toDTO(), nil
}

// StartNavigation begins narration of the session's route.
func (m *SessionManager) StartNavigation(ctx context.Context, id uuid.UUID) (*SessionDTO, error) {
	ms, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := ms.session.StartNavigation(ctx); err != nil {
		return nil, err
	}
	return ms.toDTO(), nil
}

// CancelNavigation stops narration on the session.
func (m *SessionManager) CancelNavigation(ctx context.Context, id uuid.UUID) (*SessionDTO, error) {
	ms, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := ms.session.CancelNavigation(ctx); err != nil {
		return nil, err
	}
	return ms.toDTO(), nil
}

// DeleteSession closes and forgets the session.
func (m *SessionManager) DeleteSession(id uuid.UUID) error {
	m.mu.Lock()
	ms, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	ms.session.Close()
	m.logger.Info("navigation session deleted", zap.String("session_id", id.String()))
	return nil
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed. Narrating sessions are kept.
func (m *SessionManager) Sweep() int {
	cutoff := m.clock.Now().Add(-m.cfg.TTL)

	m.mu.Lock()
	var expired []*managedSession
	for id, ms := range m.sessions {
		status, _ := ms.session.Status()
		if status == session.StatusNarrating {
			continue
		}
		if ms.session.LastActivity().Before(cutoff) {
			expired = append(expired, ms)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, ms := range expired {
		ms.session.Close()
	}
	if len(expired) > 0 {
		m.logger.Info("expired idle navigation sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// RunSweeper sweeps expired sessions until ctx is cancelled.
func (m *SessionManager) RunSweeper(ctx context.Context) {
	ticker := m.clock.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.Sweep()
		}
	}
}

// Shutdown closes every session.
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[uuid.UUID]*managedSession)
	m.mu.Unlock()

	for _, ms := range sessions {
		ms.session.Close()
	}
}
