package handler

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

// NewRouter wires the API routes.
func NewRouter(h *Handler, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(), cors.New(corsConfig(allowedOrigins)))

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.POST("/login", h.Login)

		tenant := api.Group("/tenant", h.RequireRole(RoleTenant))
		{
			tenant.GET("/form", h.TenantForm)
			tenant.POST("/incidents", h.SubmitIncident)
			tenant.DELETE("/session", h.Logout)
		}

		staff := api.Group("", h.RequireRole(RoleStaff))
		{
			staff.GET("/incidents", h.ListIncidents)
			staff.PATCH("/incidents/:id/status", h.ChangeStatus)
			staff.GET("/stats", h.Stats)
		}
	}
	r.GET("/ws", h.RequireRole(RoleStaff), h.ServeWebSocket)

	return r
}
