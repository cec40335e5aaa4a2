package handler

import (
	"errors"
	"net/http"

	"incidenbot/backend/internal/incident"

	"github.com/gin-gonic/gin"
)

func (h *Handler) tenantSession(c *gin.Context) (*incident.Session, *Claims, bool) {
	claims := claimsFrom(c)
	sess, ok := h.Sessions.Get(claims.SessionID)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session expired"})
		return nil, claims, false
	}
	return sess, claims, true
}

// TenantForm returns the session state, the prefilled form and the sample messages.
func (h *Handler) TenantForm(c *gin.Context) {
	sess, _, ok := h.tenantSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session":  sess.View(),
		"examples": incident.Examples(h.Localizer, sess.Lang),
	})
}

// SubmitIncident runs one tenant submission.
func (h *Handler) SubmitIncident(c *gin.Context) {
	sess, _, ok := h.tenantSession(c)
	if !ok {
		return
	}

	var in incident.SubmitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.Incidents.Submit(c.Request.Context(), sess, in)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{
			"incident": record,
			"message":  h.t(sess.Lang, "submission_success"),
			"session":  sess.View(),
		})
	case errors.Is(err, incident.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": h.t(sess.Lang, "submission_invalid")})
	case errors.Is(err, incident.ErrSubmissionInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": h.t(sess.Lang, "submission_in_flight")})
	case errors.Is(err, incident.ErrSessionClosed):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired"})
	default:
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   h.t(sess.Lang, "submission_failed"),
			"session": sess.View(),
		})
	}
}

// Logout ends the tenant session and cancels its pending reset.
func (h *Handler) Logout(c *gin.Context) {
	h.Sessions.End(claimsFrom(c).SessionID)
	c.Status(http.StatusNoContent)
}
