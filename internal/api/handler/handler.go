// Package handler exposes the tenant and staff HTTP API.
package handler

import (
	"incidenbot/backend/internal/analytics"
	"incidenbot/backend/internal/incident"
	"incidenbot/backend/internal/livefeed"
	"incidenbot/backend/internal/localization"
)

// Handler містить залежності HTTP-шару
type Handler struct {
	Incidents *incident.Service
	Sessions  *incident.SessionRegistry
	Hub       *livefeed.Hub
	Auth      *Authenticator
	Localizer *localization.Localizer

	DefaultLang string
	TestMode    bool

	stats analytics.Memo
}

func NewHandler(svc *incident.Service, sessions *incident.SessionRegistry, hub *livefeed.Hub, auth *Authenticator, l *localization.Localizer) *Handler {
	return &Handler{
		Incidents:   svc,
		Sessions:    sessions,
		Hub:         hub,
		Auth:        auth,
		Localizer:   l,
		DefaultLang: "es",
	}
}

func (h *Handler) t(lang, key string) string {
	return h.Localizer.GetString(h.lang(lang), key)
}

// lang falls back to the default language for unknown codes.
func (h *Handler) lang(lang string) string {
	if lang != "" && h.Localizer.Supports(lang) {
		return lang
	}
	return h.DefaultLang
}
