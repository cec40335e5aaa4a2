package incident

import (
	"sync"
	"time"

	"incidenbot/backend/internal/config"
	"incidenbot/backend/internal/models"
)

// State is the tenant-facing submission state.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateSuccess    State = "success"
	StateError      State = "error"
)

// Form holds the tenant-supplied fields of the submission form.
type Form struct {
	TenantName  string `json:"tenantName"`
	Room        string `json:"room"`
	Description string `json:"description"`
}

type pendingAnalysis struct {
	key      string
	analysis models.IncidentAnalysis
}

// Session is the state of one tenant session. It is created at login and
// discarded at logout or expiry; nothing about it is global.
type Session struct {
	ID       string
	Lang     string
	TestMode bool

	mu            sync.Mutex
	state         State
	form          Form
	lastErr       error
	lastAnalysis  *models.IncidentAnalysis
	lastIncident  string
	pending       *pendingAnalysis
	resetTimer    *time.Timer
	timerGen      uint64
	returnToLogin bool
	lastSeen      time.Time
	closed        bool
}

// NewSession returns an idle session. In test mode the form is prefilled
// with the demo identity.
func NewSession(id, lang string, testMode bool, now time.Time) *Session {
	s := &Session{
		ID:       id,
		Lang:     lang,
		TestMode: testMode,
		state:    StateIdle,
		lastSeen: now,
	}
	if testMode {
		s.form.TenantName = config.DemoTenantName
		s.form.Room = config.DemoTenantRoom
	}
	return s
}

// SessionView is a read-only copy of a session, safe to serialize.
type SessionView struct {
	ID            string                   `json:"id"`
	Lang          string                   `json:"lang"`
	TestMode      bool                     `json:"testMode"`
	State         State                    `json:"state"`
	Form          Form                     `json:"form"`
	LastError     string                   `json:"lastError,omitempty"`
	Analysis      *models.IncidentAnalysis `json:"analysis,omitempty"`
	IncidentID    string                   `json:"incidentId,omitempty"`
	ReturnToLogin bool                     `json:"returnToLogin"`
}

// View returns a snapshot of the session.
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := SessionView{
		ID:            s.ID,
		Lang:          s.Lang,
		TestMode:      s.TestMode,
		State:         s.state,
		Form:          s.form,
		IncidentID:    s.lastIncident,
		ReturnToLogin: s.returnToLogin,
	}
	if s.lastErr != nil {
		v.LastError = s.lastErr.Error()
	}
	if s.lastAnalysis != nil {
		a := *s.lastAnalysis
		v.Analysis = &a
	}
	return v
}

// State returns the current submission state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Form returns the current form fields.
func (s *Session) Form() Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

// ReturnToLogin reports whether the success reset fired and the tenant
// should be sent back to the login view.
func (s *Session) ReturnToLogin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.returnToLogin
}

// Close ends the session and cancels a pending reset.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopTimerLocked()
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// stopTimerLocked cancels the reset timer. The generation bump makes a
// callback that already started a no-op.
func (s *Session) stopTimerLocked() {
	if s.resetTimer != nil {
		s.resetTimer.Stop()
		s.resetTimer = nil
	}
	s.timerGen++
}

func (s *Session) armResetLocked(delay time.Duration) {
	s.stopTimerLocked()
	gen := s.timerGen
	s.resetTimer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.timerGen != gen || s.closed {
			return
		}
		s.resetTimer = nil
		s.state = StateIdle
		s.lastAnalysis = nil
		s.lastIncident = ""
		s.returnToLogin = true
	})
}
