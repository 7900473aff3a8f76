package main

import (
	"github.com/gin-gonic/gin"

	"call-assistant/internal/auth"
	"call-assistant/internal/config"
	"call-assistant/internal/httpapi"
	"call-assistant/internal/rbac"
	"call-assistant/internal/sessions"
	"call-assistant/internal/telephony"
)

const voiceWebhookPath = "/webhooks/twilio/voice"

type routeDeps struct {
	cfg      config.Config
	auth     *auth.Manager
	dialogue telephony.TurnHandler
	store    *sessions.Store
	reports  httpapi.TurnReporter
	activity httpapi.ActivityCounter
	render   telephony.RenderOptions
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	api := httpapi.Handlers{Sessions: d.store, Reports: d.reports, Activity: d.activity}

	// public
	r.GET("/healthz", api.Health)

	// Provider webhook. Initial call and every Gather callback share one route.
	voice := telephony.VoiceWebhookHandler{Dialogue: d.dialogue, Render: d.render}
	webhooks := r.Group("/webhooks/twilio")
	if d.cfg.Twilio.AuthToken != "" {
		webhooks.Use(telephony.RequireTwilioSignature(d.cfg.Twilio.AuthToken, d.cfg.Twilio.WebhookBaseURL))
	}
	webhooks.POST("/voice", voice.HandleVoice)

	// protected operator API
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(d.auth))
	{
		live := v1.Group("/sessions")
		live.Use(rbac.RequireTenantAndAnyRole(rbac.RoleOperator)...)
		live.GET("", api.ListSessions)
		live.GET("/:call_id", api.GetSession)

		reports := v1.Group("/reports")
		reports.Use(rbac.RequireTenantAndAnyRole(rbac.RoleOperator, rbac.RoleAnalyst)...)
		reports.GET("/turns", api.TurnsReport)
	}
}
