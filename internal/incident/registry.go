package incident

import (
	"context"
	"log"
	"sync"
	"time"

	"incidenbot/backend/internal/config"

	"github.com/google/uuid"
)

// SessionRegistry owns the live tenant sessions.
type SessionRegistry struct {
	TTL time.Duration
	Now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		TTL:      config.SessionTTL,
		Now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

func (r *SessionRegistry) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Create starts a new session in lang. testMode prefills the demo identity
// and keeps it after a successful submission.
func (r *SessionRegistry) Create(lang string, testMode bool) *Session {
	sess := NewSession(uuid.New().String(), lang, testMode, r.now())

	r.mu.Lock()
	if r.sessions == nil {
		r.sessions = make(map[string]*Session)
	}
	r.sessions[sess.ID] = sess
	r.mu.Unlock()
	return sess
}

// Get returns a live session and marks it as used.
func (r *SessionRegistry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	sess.touch(r.now())
	return sess, true
}

// End closes and forgets a session. Unknown ids are ignored.
func (r *SessionRegistry) End(id string) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		sess.Close()
	}
}

// Sweep ends every session idle for longer than TTL and returns how many
// were removed.
func (r *SessionRegistry) Sweep(now time.Time) int {
	var expired []*Session

	r.mu.Lock()
	for id, sess := range r.sessions {
		if now.Sub(sess.idleSince()) > r.TTL {
			expired = append(expired, sess)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, sess := range expired {
		sess.Close()
	}
	return len(expired)
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Run sweeps expired sessions every interval until ctx is done.
func (r *SessionRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(r.now()); n > 0 {
				log.Printf("INFO: Expired %d idle tenant sessions", n)
			}
		}
	}
}
