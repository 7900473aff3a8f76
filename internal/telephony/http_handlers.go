package telephony

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"call-assistant/internal/dialogue"
	"call-assistant/pkg/logger"
)

// TurnHandler runs one dialogue turn.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req dialogue.TurnRequest) dialogue.Outcome
}

// VoiceWebhookHandler converts the Twilio webhook to a turn request,
// delegates to the dialogue controller and writes TwiML.
//
// No business logic here. The response is always 200 with a TwiML body:
// an error status would make Twilio play its own failure message.
type VoiceWebhookHandler struct {
	Dialogue TurnHandler
	Render   RenderOptions
}

func (h VoiceWebhookHandler) HandleVoice(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Dialogue == nil {
		log.Error("voice webhook: dialogue not configured")
		h.write(c, FallbackTwiML)
		return
	}

	form, err := ParseTwilioVoice(c.Request)
	if err != nil {
		log.Warn("twilio webhook parse failed", "err", err)
		h.render(c, dialogue.Rejected(dialogue.ReasonInternal))
		return
	}

	log = log.With(form.LogAttrs()...)
	ctx := logger.With(c.Request.Context(), log)
	out := h.Dialogue.HandleTurn(ctx, form.ToTurnRequest())
	h.render(c, out)
}

func (h VoiceWebhookHandler) render(c *gin.Context, out dialogue.Outcome) {
	twiml, err := RenderTwiML(out, h.Render)
	if err != nil {
		logger.FromGin(c).Error("twiml render failed", "err", err, "outcome", out.Kind)
		twiml = FallbackTwiML
	}
	h.write(c, twiml)
}

func (h VoiceWebhookHandler) write(c *gin.Context, twiml string) {
	c.Data(http.StatusOK, ContentType+"; charset=utf-8", []byte(twiml))
}
