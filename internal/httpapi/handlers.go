package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"call-assistant/internal/auth"
	"call-assistant/internal/rbac"
	"call-assistant/internal/reporting"
	"call-assistant/internal/sessions"
	"call-assistant/pkg/logger"
)

type SessionReader interface {
	Len() int
	Snapshot() []sessions.Summary
	Get(callID string) (*sessions.Session, bool)
}

type TurnReporter interface {
	TurnsSummary(ctx context.Context, req reporting.TurnsSummaryRequest) (reporting.TurnsSummary, error)
}

// ActivityCounter reports calls active across all instances.
type ActivityCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Handlers groups operator HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Sessions SessionReader
	Reports  TurnReporter
	Activity ActivityCounter
}

// Health reports liveness and the number of live sessions in this process.
func (h Handlers) Health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if h.Sessions != nil {
		body["sessions"] = h.Sessions.Len()
	}
	if h.Activity != nil {
		if n, err := h.Activity.Count(c.Request.Context()); err == nil {
			body["active_calls"] = n
		} else {
			logger.FromGin(c).Warn("activity count failed", "err", err)
		}
	}
	c.JSON(http.StatusOK, body)
}

// --- Sessions ---

// ListSessions lists live calls of the caller's tenant; super_admin sees all.
func (h Handlers) ListSessions(c *gin.Context) {
	if h.Sessions == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "sessions not configured"})
		return
	}
	id, err := auth.IdentityFrom(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}

	out := make([]sessions.Summary, 0)
	for _, s := range h.Sessions.Snapshot() {
		if rbac.CanReadTenant(id.Role, id.TenantID, s.TenantID) {
			out = append(out, s)
		}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

type transcriptResponse struct {
	sessions.Summary
	Transcript []sessions.Utterance `json:"transcript"`
}

// GetSession returns one call's transcript. Calls of other tenants are
// reported as not found.
func (h Handlers) GetSession(c *gin.Context) {
	if h.Sessions == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "sessions not configured"})
		return
	}
	id, err := auth.IdentityFrom(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}

	sess, ok := h.Sessions.Get(c.Param("call_id"))
	if !ok || !rbac.CanReadTenant(id.Role, id.TenantID, sess.TenantID) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, transcriptResponse{Summary: sess.Summary(), Transcript: sess.Transcript()})
}

// --- Reports ---

// TurnsReport summarizes turn outcomes for ?from=&to= (RFC 3339). Only
// super_admin may pass tenant_id or omit it to aggregate every tenant.
func (h Handlers) TurnsReport(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reports not configured"})
		return
	}
	id, err := auth.IdentityFrom(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}

	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC 3339"})
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC 3339"})
		return
	}

	req := reporting.TurnsSummaryRequest{TenantID: id.TenantID, Range: reporting.TimeRange{From: from, To: to}}
	if rbac.IsSuperAdmin(id.Role) {
		req.TenantID = c.Query("tenant_id")
		req.AllTenants = req.TenantID == ""
	}

	out, err := h.Reports.TurnsSummary(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.FromGin(c).Error("turns report failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}
