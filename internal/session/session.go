package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"receiptgen/internal/domain"
)

// Session is one run of the receipt workflow for a single user:
// brand selection, then the form, then finalization. It owns no storage;
// every committed step goes through the store. Form answers collected so far
// live only in the session and are merged into the record as one batch on
// submission.
type Session struct {
	UserID        int64
	CorrelationID string

	mgr *Manager

	mu       sync.Mutex
	state    domain.SessionState
	answers  map[string]string
	fieldIdx int
	timer    *time.Timer
	timedOut bool
}

// State returns the current workflow state
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SelectBrand records the user's brand choice. Valid only while the session
// awaits the selection; the choice must come from the configured option set.
func (s *Session) SelectBrand(ctx context.Context, brand string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.SessionAwaitingBrandSelection {
		return s.stateErrLocked()
	}
	if !s.mgr.cfg.IsKnownBrand(strings.TrimSpace(brand)) {
		return fmt.Errorf("%w: %q", domain.ErrUnknownBrand, brand)
	}

	if err := s.mgr.store.MergeRecordFields(ctx, s.UserID, map[string]string{
		domain.FieldBrandName: strings.TrimSpace(brand),
	}); err != nil {
		return err
	}

	s.state = domain.SessionAwaitingFormSubmission
	s.fieldIdx = 0
	s.answers = make(map[string]string, len(domain.FormSchema))
	s.rearmTimerLocked(s.mgr.cfg.FormTimeout)

	s.mgr.logger.Info("Brand selected",
		zap.Int64("user_id", s.UserID),
		zap.String("correlation_id", s.CorrelationID),
		zap.String("brand", brand))
	return nil
}

// CurrentField returns the form question the session is waiting on
func (s *Session) CurrentField() (domain.FormField, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.SessionAwaitingFormSubmission || s.fieldIdx >= len(domain.FormSchema) {
		return domain.FormField{}, false
	}
	return domain.FormSchema[s.fieldIdx], true
}

// Answer accepts the reply to the current form question. When the last
// question is answered the whole form is submitted. Returns the next
// question while the form is still open.
func (s *Session) Answer(ctx context.Context, text string) (next *domain.FormField, done bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.SessionAwaitingFormSubmission {
		return nil, false, s.stateErrLocked()
	}

	// All questions answered but a submit failed at the store: the next
	// message retries the pending submit instead of indexing past the schema.
	if s.fieldIdx >= len(domain.FormSchema) {
		return nil, true, s.submitFormLocked(ctx, s.answers)
	}

	field := domain.FormSchema[s.fieldIdx]
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) > field.MaxLength {
		return nil, false, fmt.Errorf("%w: %s accepts at most %d characters", domain.ErrFieldTooLong, field.Key, field.MaxLength)
	}
	if field.Required && text == "" {
		return nil, false, fmt.Errorf("%w: %s", domain.ErrFieldRequired, field.Key)
	}

	s.answers[field.Key] = text
	s.fieldIdx++

	if s.fieldIdx < len(domain.FormSchema) {
		f := domain.FormSchema[s.fieldIdx]
		return &f, false, nil
	}

	return nil, true, s.submitFormLocked(ctx, s.answers)
}

// SubmitForm merges a complete set of form fields into the record in one
// atomic update and invokes the render-and-dispatch handoff. A delivery
// failure leaves the session finalized and the record persisted; only the
// success notification is withheld.
func (s *Session) SubmitForm(ctx context.Context, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.SessionAwaitingFormSubmission {
		return s.stateErrLocked()
	}
	return s.submitFormLocked(ctx, fields)
}

func (s *Session) submitFormLocked(ctx context.Context, fields map[string]string) error {
	for _, field := range domain.FormSchema {
		v, ok := fields[field.Key]
		if field.Required && (!ok || strings.TrimSpace(v) == "") {
			return fmt.Errorf("%w: %s", domain.ErrFieldRequired, field.Key)
		}
		if utf8.RuneCountInString(v) > field.MaxLength {
			return fmt.Errorf("%w: %s accepts at most %d characters", domain.ErrFieldTooLong, field.Key, field.MaxLength)
		}
	}

	if err := s.mgr.store.MergeRecordFields(ctx, s.UserID, fields); err != nil {
		return err
	}

	// From here on the collected data is committed, whatever happens to
	// rendering or delivery.
	s.state = domain.SessionFinalized
	s.stopTimerLocked()
	record, _ := s.mgr.store.Record(s.UserID)
	s.mgr.release(s)
	if err := s.mgr.finalizer.Finalize(ctx, s.UserID, record); err != nil {
		s.mgr.logger.Error("Receipt delivery failed",
			zap.Int64("user_id", s.UserID),
			zap.String("correlation_id", s.CorrelationID),
			zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}

	s.mgr.logger.Info("Receipt session finalized",
		zap.Int64("user_id", s.UserID),
		zap.String("correlation_id", s.CorrelationID))
	return nil
}

// stateErrLocked distinguishes a session killed by its inactivity timer
// from one that is simply in the wrong step.
func (s *Session) stateErrLocked() error {
	if s.state == domain.SessionAborted && s.timedOut {
		return fmt.Errorf("%w: %s", domain.ErrInputTimeout, s.state)
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidState, s.state)
}

// rearmTimerLocked replaces the inactivity timer for the next suspension
// point. Both suspension points are bounded; an expired timer aborts the
// session so abandoned workflows do not leak.
func (s *Session) rearmTimerLocked(d time.Duration) {
	s.stopTimerLocked()
	s.timer = time.AfterFunc(d, s.onTimeout)
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) onTimeout() {
	s.mu.Lock()
	state := s.state
	if state != domain.SessionAwaitingBrandSelection && state != domain.SessionAwaitingFormSubmission {
		s.mu.Unlock()
		return
	}
	s.state = domain.SessionAborted
	s.timedOut = true
	s.timer = nil
	s.mu.Unlock()

	s.mgr.release(s)
	s.mgr.logger.Warn("Receipt session timed out",
		zap.Int64("user_id", s.UserID),
		zap.String("correlation_id", s.CorrelationID),
		zap.String("state", state.String()))

	if s.mgr.onTimeout != nil {
		s.mgr.onTimeout(s.UserID, state)
	}
}

// abort terminates the session without touching the stored record
func (s *Session) abort() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.SessionFinalized || s.state == domain.SessionAborted {
		return
	}
	s.state = domain.SessionAborted
	s.stopTimerLocked()
}
