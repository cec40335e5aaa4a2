package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq" // Необхідний для pq.StringArray
	"gorm.io/gorm"
)

const (
	// SourceTenantPortal tags incidents created through the tenant web form.
	SourceTenantPortal = "tenant_portal"
	// ColivingName is the property every incident is filed against.
	ColivingName = "Bali Coliving"

	MinUrgency = 1
	MaxUrgency = 5
)

// ErrInvalidAnalysis is returned when a classification result does not fit the schema.
var ErrInvalidAnalysis = errors.New("analysis does not match schema")

// IncidentAnalysis is the structured extraction produced by the classifier.
// It is immutable once produced.
type IncidentAnalysis struct {
	Category       Category  `gorm:"type:text;not null;index" json:"category"`
	UrgencyLevel   int       `gorm:"not null" json:"urgency_level"`
	Sentiment      Sentiment `gorm:"type:text;not null" json:"sentiment"`
	ActionSummary  string    `gorm:"type:text" json:"action_summary"`
	SuggestedReply string    `gorm:"type:text" json:"suggested_reply"`
}

// Validate checks the analysis against the fixed classification schema.
func (a IncidentAnalysis) Validate() error {
	if _, ok := ParseCategory(string(a.Category)); !ok {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidAnalysis, a.Category)
	}
	if a.UrgencyLevel < MinUrgency || a.UrgencyLevel > MaxUrgency {
		return fmt.Errorf("%w: urgency_level %d out of range", ErrInvalidAnalysis, a.UrgencyLevel)
	}
	if _, ok := ParseSentiment(string(a.Sentiment)); !ok {
		return fmt.Errorf("%w: unknown sentiment %q", ErrInvalidAnalysis, a.Sentiment)
	}
	if strings.TrimSpace(a.ActionSummary) == "" {
		return fmt.Errorf("%w: empty action_summary", ErrInvalidAnalysis)
	}
	if strings.TrimSpace(a.SuggestedReply) == "" {
		return fmt.Errorf("%w: empty suggested_reply", ErrInvalidAnalysis)
	}
	return nil
}

// Normalize rewrites Spanish enum tokens to the stored constants.
func (a IncidentAnalysis) Normalize() IncidentAnalysis {
	if c, ok := ParseCategory(string(a.Category)); ok {
		a.Category = c
	}
	if s, ok := ParseSentiment(string(a.Sentiment)); ok {
		a.Sentiment = s
	}
	return a
}

// Incident is a tenant-reported problem, from submission through resolution.
// Timestamps are owned by the lifecycle controller, so gorm's automatic
// time tracking is switched off.
type Incident struct {
	// ID is assigned by the store on insert (UUID).
	ID string `gorm:"primaryKey" json:"id"`

	IncidentAnalysis

	TenantName  string `gorm:"type:text;not null" json:"tenantName"`
	Room        string `gorm:"type:text;not null" json:"room"`
	Description string `gorm:"type:text;not null" json:"description"`

	Status   Status `gorm:"type:text;not null;index" json:"status"`
	Source   string `gorm:"type:text;not null" json:"source"`
	Coliving string `gorm:"type:text" json:"coliving"`

	CreatedAt  time.Time  `gorm:"not null;index;autoCreateTime:false" json:"createdAt"`
	UpdatedAt  time.Time  `gorm:"not null;autoUpdateTime:false" json:"updatedAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`

	// StatusHistory records every staff transition as "<status>@<RFC3339>".
	StatusHistory pq.StringArray `gorm:"type:text[]" json:"statusHistory,omitempty"`
}

// BeforeCreate: це хук GORM, який викликається перед створенням запису.
// Він генерує новий UUID для інциденту, якщо ID ще не встановлено.
func (i *Incident) BeforeCreate(tx *gorm.DB) (err error) {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return
}

// MarshalJSON adds the legacy original_message alias of Description.
func (i Incident) MarshalJSON() ([]byte, error) {
	type plain Incident
	return json.Marshal(struct {
		plain
		OriginalMessage string `json:"original_message"`
	}{plain: plain(i), OriginalMessage: i.Description})
}

// ResolutionTime returns how long the incident took to resolve. ok is false
// unless the incident is resolved and carries a resolution timestamp.
func (i Incident) ResolutionTime() (d time.Duration, ok bool) {
	if i.Status != StatusResolved || i.ResolvedAt == nil {
		return 0, false
	}
	return i.ResolvedAt.Sub(i.CreatedAt), true
}

// HistoryEntry formats one StatusHistory element.
func HistoryEntry(status Status, at time.Time) string {
	return string(status) + "@" + at.UTC().Format(time.RFC3339)
}
