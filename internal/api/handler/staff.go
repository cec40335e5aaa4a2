package handler

import (
	"errors"
	"net/http"
	"time"

	"incidenbot/backend/internal/analytics"
	"incidenbot/backend/internal/incident"
	"incidenbot/backend/internal/models"
	"incidenbot/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// ListIncidents returns the latest live snapshot.
func (h *Handler) ListIncidents(c *gin.Context) {
	snap := h.Hub.Latest()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Incidents not loaded yet"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

type statusRequest struct {
	Status models.Status `json:"status" binding:"required"`
}

// ChangeStatus applies a staff status change. The response carries no
// incident; dashboards pick up the change from the live feed.
func (h *Handler) ChangeStatus(c *gin.Context) {
	lang := claimsFrom(c).Lang

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": h.t(lang, "invalid_status")})
		return
	}

	err := h.Incidents.ChangeStatus(c.Request.Context(), c.Param("id"), req.Status)
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, incident.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": h.t(lang, "invalid_status")})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": h.t(lang, "incident_not_found")})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": h.t(lang, "status_update_failed")})
	}
}

// Stats returns the dashboard analytics for the latest snapshot.
func (h *Handler) Stats(c *gin.Context) {
	lang := h.lang(c.DefaultQuery("lang", claimsFrom(c).Lang))

	snap := h.Hub.Latest()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Incidents not loaded yet"})
		return
	}

	stats := h.stats.Get(snap.Revision, snap.Incidents, time.Now(), lang, h.Localizer.DayLabeler(lang))
	c.JSON(http.StatusOK, gin.H{"version": snap.Version, "stats": stats, "labels": h.statsLabels(lang, stats)})
}

// statsLabels localizes the enum values appearing in stats.
func (h *Handler) statsLabels(lang string, stats *analytics.Stats) gin.H {
	if stats == nil {
		return gin.H{}
	}
	categories := gin.H{}
	for _, cat := range stats.Categories {
		categories[string(cat.Name)] = h.t(lang, "category_"+string(cat.Name))
	}
	statuses := gin.H{}
	for _, st := range models.Statuses {
		statuses[string(st)] = h.t(lang, "status_"+string(st))
	}
	out := gin.H{"categories": categories, "statuses": statuses}
	if stats.HighImpact != nil {
		out["highImpactUrgency"] = h.t(lang, analytics.UrgencyLabel(int(stats.HighImpact.AvgUrgency+0.5)))
	}
	return out
}

// Health is a liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
