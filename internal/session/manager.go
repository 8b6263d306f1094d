package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"receiptgen/config"
	"receiptgen/internal/domain"
	"receiptgen/internal/repository"
)

// Finalizer is the render-and-dispatch handoff invoked when a session's
// form is submitted.
type Finalizer interface {
	Finalize(ctx context.Context, userID int64, record domain.ReceiptRecord) error
}

// TimeoutNotifier is called after a session self-cancels at a suspension
// point. state is the state the session timed out in.
type TimeoutNotifier func(userID int64, state domain.SessionState)

// Manager tracks at most one live receipt session per user. Sessions for
// different users are independent and progress concurrently.
type Manager struct {
	cfg       *config.Config
	store     *repository.Store
	finalizer Finalizer
	logger    *zap.Logger
	onTimeout TimeoutNotifier

	mu       sync.RWMutex
	sessions map[int64]*Session
}

func NewManager(cfg *config.Config, store *repository.Store, finalizer Finalizer, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		store:     store,
		finalizer: finalizer,
		logger:    logger,
		sessions:  make(map[int64]*Session),
	}
}

// SetTimeoutNotifier registers the callback used to tell a user their
// session expired. Must be called before Start.
func (m *Manager) SetTimeoutNotifier(fn TimeoutNotifier) {
	m.onTimeout = fn
}

// Start begins a new receipt session for the user. The user must have a
// registered email. Any in-progress session for the same user is discarded,
// and the stored record is reset to empty before the brand prompt.
func (m *Manager) Start(ctx context.Context, userID int64) (*Session, error) {
	if _, ok := m.store.Email(userID); !ok {
		return nil, domain.ErrEmailNotRegistered
	}

	if err := m.store.ResetRecord(ctx, userID); err != nil {
		return nil, err
	}

	s := &Session{
		UserID:        userID,
		CorrelationID: uuid.New().String(),
		mgr:           m,
		state:         domain.SessionAwaitingBrandSelection,
	}

	m.mu.Lock()
	prev := m.sessions[userID]
	m.sessions[userID] = s
	m.mu.Unlock()

	if prev != nil {
		prev.abort()
		m.logger.Info("Previous receipt session discarded", zap.Int64("user_id", userID))
	}

	s.mu.Lock()
	s.rearmTimerLocked(m.cfg.SelectTimeout)
	s.mu.Unlock()

	m.logger.Info("Receipt session started",
		zap.Int64("user_id", userID),
		zap.String("correlation_id", s.CorrelationID))
	return s, nil
}

// Get returns the live session for a user, if any
func (m *Manager) Get(userID int64) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Active returns the number of live sessions
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// release removes a session from the registry if it is still the one
// registered for its user.
func (m *Manager) release(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[s.UserID] == s {
		delete(m.sessions, s.UserID)
	}
}
