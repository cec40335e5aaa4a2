package analytics

import (
	"sync"
	"time"

	"incidenbot/backend/internal/models"
)

type memoKey struct {
	revision uint64
	day      string
	lang     string
}

// Memo caches ComputeStats results for a snapshot revision. A new revision, a
// new local day or a different label language invalidates the entry.
type Memo struct {
	mu    sync.Mutex
	key   memoKey
	stats *Stats
	valid bool
}

// Get returns the cached stats for (revision, day of now, lang) or computes
// and stores them.
func (m *Memo) Get(revision uint64, incidents []models.Incident, now time.Time, lang string, label DayLabeler) *Stats {
	key := memoKey{revision: revision, day: now.Format("2006-01-02"), lang: lang}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.valid && m.key == key {
		return m.stats
	}
	m.stats = ComputeStats(incidents, now, label)
	m.key = key
	m.valid = true
	return m.stats
}
