// Package httpapi exposes the admin surface: login, session inspection,
// directory reload and a manual gate-open trigger.
package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gatebot/internal/auth"
	"gatebot/internal/directory"
	"gatebot/internal/dispatch"
	"gatebot/internal/session"
	"gatebot/pkg/logger"
)

// GateDispatcher places the gate-open call chain.
type GateDispatcher interface {
	Dispatch(ctx context.Context) dispatch.Result
	Providers() []string
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth          *auth.Manager
	AdminPassword string

	Sessions  session.Store
	Directory *directory.Service
	Gate      GateDispatcher
}

type loginRequest struct {
	Password string `json:"password"`
}

// Login exchanges the admin password for a JWT token pair. The single
// admin principal makes a user table unnecessary.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.AdminPassword)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	pair, err := h.Auth.IssuePair(time.Now(), "admin")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// ListSessions returns every live conversation session.
func (h Handlers) ListSessions(c *gin.Context) {
	sessions, err := h.Sessions.List(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("session list failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session list failed"})
		return
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions)})
}

// OpenGate runs the provider chain outside any chat conversation. Useful
// for smoke-testing providers and for letting someone in from the office.
func (h Handlers) OpenGate(c *gin.Context) {
	log := logger.FromGin(c)
	log.Info("manual gate open", "subject", c.GetString("subject"), "providers", h.Gate.Providers())

	res := h.Gate.Dispatch(c.Request.Context())
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	c.JSON(status, res)
}

// ReloadDirectory re-reads the member directory from its backend.
func (h Handlers) ReloadDirectory(c *gin.Context) {
	if err := h.Directory.Reload(c.Request.Context()); err != nil {
		logger.FromGin(c).Error("directory reload failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "directory reload failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": h.Directory.Count()})
}
