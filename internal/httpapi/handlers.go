// Package httpapi exposes the read-only operator API: a login endpoint
// exchanging the configured operator credentials for a bearer token, and
// token-protected views over active calls and call history.
package httpapi

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"callbridge/internal/auth"
	"callbridge/internal/call"
	"callbridge/internal/config"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	ctl    *call.Controller
	tokens *auth.Manager
	ops    config.OpsConfig
	log    *slog.Logger

	clock func() time.Time
}

func NewHandler(ctl *call.Controller, tokens *auth.Manager, ops config.OpsConfig, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{ctl: ctl, tokens: tokens, ops: ops, log: log, clock: time.Now}
}

// Register mounts the operator API under /v1 on the given engine.
func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group("/v1")
	v1.POST("/auth/login", h.Login)

	protected := v1.Group("", auth.RequireOperatorToken(h.tokens))
	protected.GET("/calls/active", h.ActiveCalls)
	protected.GET("/calls/history", h.CallHistory)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.ops.User)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.ops.Password)) == 1
	if !userOK || !passOK {
		h.log.Warn("operator login rejected", "username", req.Username)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.tokens.Issue(h.clock(), req.Username)
	if err != nil {
		h.log.Error("token issue failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(h.ops.TokenTTL / time.Second),
	})
}

// ActiveCalls returns a snapshot of all ringing and answered calls.
func (h *Handler) ActiveCalls(c *gin.Context) {
	calls := h.ctl.ActiveCalls()
	c.JSON(http.StatusOK, gin.H{"count": len(calls), "calls": calls})
}

// CallHistory returns a participant's most recent terminal calls.
func (h *Handler) CallHistory(c *gin.Context) {
	participantID, err := strconv.ParseInt(c.Query("participant_id"), 10, 64)
	if err != nil || participantID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "participant_id must be a positive integer"})
		return
	}

	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = n
	}

	// History wraps every store failure in ErrPersistenceUnavailable, so
	// any error here means the backing store is unreachable.
	records, err := h.ctl.History(c.Request.Context(), participantID, limit)
	if err != nil {
		h.log.Warn("history query failed", "participant_id", participantID, "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history is temporarily unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(records), "records": records})
}
