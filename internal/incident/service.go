// Package incident implements the incident lifecycle: tenant submission
// (classify, notify, persist) and staff status changes.
package incident

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"incidenbot/backend/internal/config"
	"incidenbot/backend/internal/models"
	"incidenbot/backend/internal/storage"
)

var (
	// ErrInvalidInput is returned when name, room or description is blank.
	ErrInvalidInput = errors.New("tenant name, room and description are required")
	// ErrSubmissionInFlight is returned while the session is submitting.
	ErrSubmissionInFlight = errors.New("a submission is already in progress")
	// ErrClassification wraps classifier failures.
	ErrClassification = errors.New("classification failed")
	// ErrPersistence wraps insert failures.
	ErrPersistence = errors.New("saving incident failed")
	// ErrInvalidStatus is returned for a status outside the known set.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrSessionClosed is returned when submitting on an ended session.
	ErrSessionClosed = errors.New("session closed")
)

// Classifier extracts a structured analysis from the submission context.
type Classifier interface {
	Analyze(ctx context.Context, contextText string, lang string) (models.IncidentAnalysis, error)
}

// Dispatcher starts a notification without waiting for it.
type Dispatcher interface {
	Dispatch(analysis models.IncidentAnalysis, originalMessage string, tenant models.Tenant)
}

// SubmitInput is what the tenant typed.
type SubmitInput struct {
	TenantName  string `json:"tenantName"`
	Room        string `json:"room"`
	Description string `json:"description"`
}

func (in SubmitInput) trimmed() SubmitInput {
	return SubmitInput{
		TenantName:  strings.TrimSpace(in.TenantName),
		Room:        strings.TrimSpace(in.Room),
		Description: strings.TrimSpace(in.Description),
	}
}

func (in SubmitInput) valid() bool {
	return in.TenantName != "" && in.Room != "" && in.Description != ""
}

// Service is the incident lifecycle controller.
type Service struct {
	Classifier Classifier
	Storage    storage.Storage
	Dispatcher Dispatcher

	Now        func() time.Time
	ResetDelay time.Duration
	Coliving   string
}

// NewService creates a lifecycle controller with the default clock and delays.
func NewService(c Classifier, s storage.Storage, d Dispatcher) *Service {
	return &Service{
		Classifier: c,
		Storage:    s,
		Dispatcher: d,
		Now:        time.Now,
		ResetDelay: config.SuccessResetDelay,
		Coliving:   models.ColivingName,
	}
}

// ContextText is the classification prompt context for a submission.
func ContextText(tenantName, room, description string) string {
	return fmt.Sprintf("Inquilino: %s, Habitación: %s. Mensaje: %s", tenantName, room, description)
}

func submissionKey(in SubmitInput, lang string) string {
	return strings.Join([]string{in.TenantName, in.Room, in.Description, lang}, "\x00")
}

// Submit runs one submission for sess. Blank input is a no-op returning
// ErrInvalidInput. Only one submission per session may be in flight.
func (s *Service) Submit(ctx context.Context, sess *Session, input SubmitInput) (*models.Incident, error) {
	in := input.trimmed()
	if !in.valid() {
		return nil, ErrInvalidInput
	}

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if sess.state == StateSubmitting {
		sess.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	sess.stopTimerLocked()
	sess.state = StateSubmitting
	sess.form = Form{TenantName: in.TenantName, Room: in.Room, Description: in.Description}
	sess.lastErr = nil
	sess.returnToLogin = false
	lang := sess.Lang
	key := submissionKey(in, lang)
	var cached *models.IncidentAnalysis
	if sess.pending != nil && sess.pending.key == key {
		a := sess.pending.analysis
		cached = &a
	}
	sess.mu.Unlock()

	contextText := ContextText(in.TenantName, in.Room, in.Description)

	// 1. classify
	var analysis models.IncidentAnalysis
	if cached != nil {
		log.Printf("INFO: Session %s: reusing classification from failed attempt", sess.ID)
		analysis = *cached
	} else {
		a, err := s.Classifier.Analyze(ctx, contextText, lang)
		if err != nil {
			log.Printf("ERROR: Session %s: classification failed: %v", sess.ID, err)
			err = fmt.Errorf("%w: %v", ErrClassification, err)
			s.fail(sess, err)
			return nil, err
		}
		analysis = a
	}

	// 2. notify, never awaited
	if s.Dispatcher != nil {
		s.Dispatcher.Dispatch(analysis, contextText, models.Tenant{Name: in.TenantName, Room: in.Room})
	}

	// 3. persist
	now := s.now()
	record := &models.Incident{
		IncidentAnalysis: analysis,
		TenantName:       in.TenantName,
		Room:             in.Room,
		Description:      in.Description,
		Status:           models.StatusOpen,
		Source:           models.SourceTenantPortal,
		Coliving:         s.coliving(),
		CreatedAt:        now,
		UpdatedAt:        now,
		StatusHistory:    []string{models.HistoryEntry(models.StatusOpen, now)},
	}
	id, err := s.Storage.InsertIncident(ctx, record)
	if err != nil {
		log.Printf("ERROR: Session %s: failed to save incident: %v", sess.ID, err)
		sess.mu.Lock()
		sess.pending = &pendingAnalysis{key: key, analysis: analysis}
		sess.mu.Unlock()
		err = fmt.Errorf("%w: %v", ErrPersistence, err)
		s.fail(sess, err)
		return nil, err
	}
	record.ID = id
	log.Printf("INFO: Incident %s created (%s, urgency %d) for room %s", id, analysis.Category, analysis.UrgencyLevel, in.Room)

	// 4. confirm
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.pending = nil
	sess.state = StateSuccess
	sess.lastAnalysis = &analysis
	sess.lastIncident = id
	sess.form.Description = ""
	if !sess.TestMode {
		sess.form.TenantName = ""
		sess.form.Room = ""
	}
	if !sess.closed {
		sess.armResetLocked(s.resetDelay())
	}
	return record, nil
}

func (s *Service) fail(sess *Session, err error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.state = StateError
	sess.lastErr = err
}

// ChangeStatus moves an incident to status. Any status may follow any
// other. Errors are returned as is; nothing is mutated locally.
func (s *Service) ChangeStatus(ctx context.Context, id string, status models.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if err := s.Storage.UpdateIncidentStatus(ctx, id, status, s.now()); err != nil {
		log.Printf("ERROR: Failed to update incident %s to %s: %v", id, status, err)
		return err
	}
	log.Printf("INFO: Incident %s moved to %s", id, status)
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) resetDelay() time.Duration {
	if s.ResetDelay > 0 {
		return s.ResetDelay
	}
	return config.SuccessResetDelay
}

func (s *Service) coliving() string {
	if s.Coliving != "" {
		return s.Coliving
	}
	return models.ColivingName
}
