package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"incidenbot/backend/internal/config"
	"incidenbot/backend/internal/incident"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleTenant = "tenant"
	RoleStaff  = "staff"

	claimsKey = "claims"
)

// Claims is the payload of the tokens handed out by /api/login.
type Claims struct {
	Role      string `json:"role"`
	SessionID string `json:"sid,omitempty"`
	Lang      string `json:"lang"`
	jwt.RegisteredClaims
}

// Authenticator issues and verifies tokens and checks the shared staff password.
type Authenticator struct {
	secret    []byte
	staffHash []byte
	Now       func() time.Time
}

// NewAuthenticator keeps only a bcrypt hash of the staff password.
func NewAuthenticator(secret, staffPassword string) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(staffPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing staff password: %w", err)
	}
	return &Authenticator{secret: []byte(secret), staffHash: hash, Now: time.Now}, nil
}

func (a *Authenticator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// CheckStaffPassword compares password with the configured staff password.
func (a *Authenticator) CheckStaffPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(a.staffHash, []byte(password)) == nil
}

// IssueToken генерує JWT для ролі (і сесії орендаря).
func (a *Authenticator) IssueToken(role, sessionID, lang string, ttl time.Duration) (string, error) {
	now := a.now()
	subject := sessionID
	if subject == "" {
		subject = role
	}
	claims := Claims{
		Role:      role,
		SessionID: sessionID,
		Lang:      lang,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    config.TokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ParseToken validates signature, issuer and expiry.
func (a *Authenticator) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	}, jwt.WithIssuer(config.TokenIssuer), jwt.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid or expired token: %w", err)
	}
	return claims, nil
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	// browsers cannot set headers on a websocket upgrade
	return c.Query("token")
}

// RequireRole rejects requests without a valid token for role.
func (h *Handler) RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token is required"})
			return
		}
		claims, err := h.Auth.ParseToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		if claims.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": h.t(claims.Lang, "unauthorized")})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func claimsFrom(c *gin.Context) *Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return &Claims{}
	}
	return v.(*Claims)
}

type loginRequest struct {
	Role     string `json:"role" binding:"required,oneof=tenant staff"`
	Password string `json:"password"`
	Lang     string `json:"lang"`
}

// Login opens a tenant session or checks the staff password and returns a token.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	lang := h.lang(req.Lang)

	switch req.Role {
	case RoleStaff:
		if !h.Auth.CheckStaffPassword(req.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": h.t(lang, "login_failed")})
			return
		}
		token, err := h.Auth.IssueToken(RoleStaff, "", lang, config.StaffTokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "role": RoleStaff, "lang": lang})

	default:
		sess := h.Sessions.Create(lang, h.TestMode)
		token, err := h.Auth.IssueToken(RoleTenant, sess.ID, lang, config.TenantTokenTTL)
		if err != nil {
			h.Sessions.End(sess.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"token":    token,
			"role":     RoleTenant,
			"lang":     lang,
			"session":  sess.View(),
			"examples": incident.Examples(h.Localizer, lang),
		})
	}
}
