package config

import "time"

const (
	// Submission lifecycle
	SuccessResetDelay = 15 * time.Second
	SessionTTL        = 2 * time.Hour
	SessionSweepEvery = 5 * time.Minute

	// Notification
	WebhookSourceTag = "IncidenBot Web App"
	NotifyTimeout    = 30 * time.Second

	// Classification
	ClassifierTemperature = 0.2
	ClassifierTimeout     = 60 * time.Second

	// Demo identity used to prefill the tenant form in test mode
	DemoTenantName = "James Bond"
	DemoTenantRoom = "007"

	// Tokens
	StaffTokenTTL  = 12 * time.Hour
	TenantTokenTTL = SessionTTL
	TokenIssuer    = "incidenbot-service"
)

// UrgencyThresholds maps the lower bound of each urgency band to its
// localization key. Levels below the lowest bound are "low".
var UrgencyThresholds = map[int]string{
	5: "urgency_critical",
	4: "urgency_high",
	3: "urgency_medium",
}
