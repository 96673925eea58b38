package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"flowtrack/internal/core/ports"
	"flowtrack/internal/domain"

	"github.com/google/uuid"
)

// TrackingService manages per-step time sessions. All session mutation in
// the system goes through here; the repository enforces the single-active-
// session invariant with conditional writes.
type TrackingService struct {
	sessions ports.SessionRepository
	clock    ports.Clock
}

func NewTrackingService(sessions ports.SessionRepository, clock ports.Clock) *TrackingService {
	return &TrackingService{sessions: sessions, clock: clock}
}

// StartSession opens a session for a step. If an active session already
// exists for the same (instance, step) — a retried request — it is returned
// as-is instead of erroring.
func (s *TrackingService) StartSession(ctx context.Context, instanceID uuid.UUID, stepIndex int) (*domain.TimeSession, error) {
	session := domain.NewTimeSession(instanceID, stepIndex, s.clock.Now())

	err := s.sessions.Create(ctx, session)
	if errors.Is(err, domain.ErrConflict) {
		existing, getErr := s.sessions.GetActiveForStep(ctx, instanceID, stepIndex)
		if getErr != nil {
			return nil, fmt.Errorf("session already active but not readable: %w", getErr)
		}
		return existing, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// EndSession closes an active session and computes its net duration:
// wall time minus paused time, clamped at zero to guard against clock skew.
// An open pause interval is closed first so paused time is never lost.
// Ending an already-ended session fails with domain.ErrConflict.
func (s *TrackingService) EndSession(ctx context.Context, sessionID uuid.UUID) (*domain.TimeSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, fmt.Errorf("session %s already ended: %w", sessionID, domain.ErrConflict)
	}

	now := s.clock.Now()

	pausedSeconds := session.TotalPausedSeconds
	if session.PausedAt != nil {
		pausedSeconds += int(now.Sub(*session.PausedAt).Seconds())
	}

	total := int(now.Sub(session.StartedAt).Seconds()) - pausedSeconds
	if total < 0 {
		total = 0
	}

	if err := s.sessions.End(ctx, sessionID, now, total, pausedSeconds); err != nil {
		return nil, err
	}

	session.EndedAt = &now
	session.TotalSeconds = total
	session.TotalPausedSeconds = pausedSeconds
	session.IsActive = false
	return session, nil
}

// EndStepSession closes the active session for a specific step.
func (s *TrackingService) EndStepSession(ctx context.Context, instanceID uuid.UUID, stepIndex int) (*domain.TimeSession, error) {
	session, err := s.sessions.GetActiveForStep(ctx, instanceID, stepIndex)
	if err != nil {
		return nil, err
	}
	return s.EndSession(ctx, session.ID)
}

// RecordPause opens a pause interval on an active session.
func (s *TrackingService) RecordPause(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if !session.IsActive {
		return fmt.Errorf("cannot pause inactive session %s: %w", sessionID, domain.ErrConflict)
	}
	if session.IsPaused() {
		return fmt.Errorf("session %s already paused: %w", sessionID, domain.ErrConflict)
	}
	return s.sessions.MarkPaused(ctx, sessionID, s.clock.Now())
}

// RecordResume closes the open pause interval, adding its length to the
// session's total paused time.
func (s *TrackingService) RecordResume(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if !session.IsActive {
		return fmt.Errorf("cannot resume inactive session %s: %w", sessionID, domain.ErrConflict)
	}
	if !session.IsPaused() {
		return fmt.Errorf("session %s is not paused: %w", sessionID, domain.ErrConflict)
	}

	now := s.clock.Now()
	pausedSeconds := int(now.Sub(*session.PausedAt).Seconds())
	if pausedSeconds < 0 {
		pausedSeconds = 0
	}
	return s.sessions.MarkResumed(ctx, sessionID, now, pausedSeconds)
}

// PauseActive pauses the currently active session of an instance.
func (s *TrackingService) PauseActive(ctx context.Context, instanceID uuid.UUID) error {
	session, err := s.sessions.GetActiveForInstance(ctx, instanceID)
	if err != nil {
		return err
	}
	return s.RecordPause(ctx, session.ID)
}

// ResumeActive resumes the currently active session of an instance.
func (s *TrackingService) ResumeActive(ctx context.Context, instanceID uuid.UUID) error {
	session, err := s.sessions.GetActiveForInstance(ctx, instanceID)
	if err != nil {
		return err
	}
	return s.RecordResume(ctx, session.ID)
}

// EndActiveForInstance is the best-effort close used by cancellation.
// A missing active session is not an error.
func (s *TrackingService) EndActiveForInstance(ctx context.Context, instanceID uuid.UUID) {
	session, err := s.sessions.GetActiveForInstance(ctx, instanceID)
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	if err != nil {
		log.Printf("lookup of active session for instance %s failed: %v", instanceID, err)
		return
	}
	if _, err := s.EndSession(ctx, session.ID); err != nil {
		log.Printf("closing session %s during cancellation failed: %v", session.ID, err)
	}
}

// ListInstanceSessions returns the full session history for an instance.
func (s *TrackingService) ListInstanceSessions(ctx context.Context, instanceID uuid.UUID) ([]domain.TimeSession, error) {
	return s.sessions.ListByInstance(ctx, instanceID)
}
