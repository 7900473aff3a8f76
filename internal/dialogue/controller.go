package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"call-assistant/internal/audit"
	"call-assistant/internal/prompt"
	"call-assistant/internal/sessions"
	"call-assistant/internal/tenants"
	"call-assistant/pkg/logger"
)

// TurnRequest is one inbound event from the telephony layer.
// CallerUtterance is nil on the greeting trigger that starts a call.
type TurnRequest struct {
	CallID          string
	ToNumber        string
	From            string
	CallerUtterance *string
}

type TenantResolver interface {
	Resolve(ctx context.Context, toNumber string) (tenants.Profile, error)
}

// SessionStore admits the turns of one call one at a time, in the order
// Acquire was called.
type SessionStore interface {
	Acquire(ctx context.Context, callID string) (*sessions.Handle, error)
}

// Generator produces the next assistant reply for a transcript.
type Generator interface {
	Generate(ctx context.Context, transcript []sessions.Utterance) (string, error)
}

// Recorder receives one telemetry event per turn.
type Recorder interface {
	RecordTurn(ctx context.Context, e audit.Event) error
}

// Activity is notified after every turn that touched a session.
type Activity interface {
	Touch(ctx context.Context, s sessions.Summary) error
}

var errEmptyReply = errors.New("dialogue: generator returned empty reply")

// Controller runs one dialogue turn per webhook request.
//
// Invariants:
// - HandleTurn always returns an Outcome; panics become Rejected(internal).
// - A failed generator call degrades the turn and leaves no assistant
//   utterance behind.
// - Turns of the same call run one at a time, in arrival order.
type Controller struct {
	Tenants   TenantResolver
	Sessions  SessionStore
	Generator Generator

	// Optional collaborators.
	Prefilter Prefilter
	Recorder  Recorder
	Activity  Activity

	// Timeout bounds each generator call. Zero means the request context only.
	Timeout time.Duration
	Now     func() time.Time
}

// turn carries per-turn telemetry fields.
type turn struct {
	callID   string
	tenantID string
	event    audit.EventType
	message  string
	log      *slog.Logger
}

func (c *Controller) HandleTurn(ctx context.Context, req TurnRequest) (out Outcome) {
	start := c.now()
	t := &turn{
		callID: strings.TrimSpace(req.CallID),
		log:    logger.ForCall(logger.From(ctx), strings.TrimSpace(req.CallID), ""),
	}

	defer func() {
		if r := recover(); r != nil {
			t.log.Error("dialogue: turn panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			out = Rejected(ReasonInternal)
			t.event = ""
			t.message = fmt.Sprint(r)
		}
		c.record(ctx, t, out, start)
	}()

	return c.handle(ctx, t, req)
}

func (c *Controller) handle(ctx context.Context, t *turn, req TurnRequest) Outcome {
	if t.callID == "" {
		t.log.Info("dialogue: turn rejected", "reason", ReasonMissingCallID)
		return Rejected(ReasonMissingCallID)
	}
	toNumber := strings.TrimSpace(req.ToNumber)

	if req.CallerUtterance == nil {
		if toNumber == "" {
			t.log.Warn("dialogue: turn rejected", "reason", ReasonMissingDestination)
			return Rejected(ReasonMissingDestination)
		}
		t.event = audit.EventTurnGreeting
		t.log.Info("dialogue: call greeted", "to", toNumber, "from", req.From)
		return Continue(GreetingText, InitialPrompt)
	}

	utterance := strings.TrimSpace(*req.CallerUtterance)
	if utterance == "" {
		t.log.Info("dialogue: turn rejected", "reason", ReasonEmptySpeech)
		return Rejected(ReasonEmptySpeech)
	}
	if toNumber == "" {
		t.log.Warn("dialogue: turn rejected", "reason", ReasonMissingDestination)
		return Rejected(ReasonMissingDestination)
	}

	// The turn slot is taken before tenant lookup so lookup latency cannot
	// reorder overlapping turns of one call.
	h, err := c.Sessions.Acquire(ctx, t.callID)
	if err != nil {
		t.log.Error("dialogue: acquire session", "err", err)
		t.message = err.Error()
		return Rejected(ReasonInternal)
	}
	defer h.Release()

	profile, err := c.Tenants.Resolve(ctx, toNumber)
	if err != nil {
		if errors.Is(err, tenants.ErrTenantNotFound) {
			t.log.Warn("dialogue: tenant not found", "to", toNumber)
			return tenantUnresolved(TenantNotFound)
		}
		t.log.Error("dialogue: tenant lookup failed", "to", toNumber, "err", err)
		t.message = err.Error()
		return tenantUnresolved(TenantLookupFailed)
	}
	t.tenantID = profile.ID
	t.log = t.log.With("tenant_id", profile.ID)

	// The instruction is only used when this turn creates the session.
	if err := h.Open(profile.ID, prompt.Compile(profile)); err != nil {
		t.log.Error("dialogue: open session", "err", err)
		t.message = err.Error()
		return Rejected(ReasonInternal)
	}

	h.Append(sessions.Utterance{Role: sessions.RoleCaller, Text: utterance})

	if c.Prefilter != nil {
		if answer, ok := c.Prefilter.Answer(profile, utterance); ok {
			h.Append(sessions.Utterance{Role: sessions.RoleAssistant, Text: answer})
			c.touch(ctx, t, h)
			t.event = audit.EventTurnShortcut
			return Continue(answer, FollowUpPrompt)
		}
	}

	reply, err := c.generate(ctx, h.Transcript())
	if err != nil {
		t.log.Warn("dialogue: generator failed", "err", err)
		c.touch(ctx, t, h)
		t.event = audit.EventTurnDegraded
		t.message = err.Error()
		return Continue(DegradedText, FollowUpPrompt)
	}

	h.Append(sessions.Utterance{Role: sessions.RoleAssistant, Text: reply})
	c.touch(ctx, t, h)
	return Continue(reply, FollowUpPrompt)
}

func (c *Controller) generate(ctx context.Context, transcript []sessions.Utterance) (string, error) {
	if c.Generator == nil {
		return "", errors.New("dialogue: generator not configured")
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	reply, err := c.Generator.Generate(ctx, transcript)
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", errEmptyReply
	}
	return reply, nil
}

func (c *Controller) touch(ctx context.Context, t *turn, h *sessions.Handle) {
	if c.Activity == nil {
		return
	}
	if err := c.Activity.Touch(ctx, h.Summary()); err != nil {
		t.log.Warn("dialogue: activity index", "err", err)
	}
}

func (c *Controller) record(ctx context.Context, t *turn, out Outcome, start time.Time) {
	e := audit.Event{
		TenantID:  t.tenantID,
		CallID:    t.callID,
		Type:      t.event,
		LatencyMs: c.now().Sub(start).Milliseconds(),
		Message:   t.message,
	}
	if out.Kind == KindRejected {
		e.Type = audit.EventTurnRejected
		e.Reason = string(out.Reason)
		e.TenantFailure = string(out.TenantFailure)
	} else if e.Type == "" {
		e.Type = audit.EventTurnContinued
	}

	t.log.Debug("dialogue: turn finished", "outcome", out.Kind, "event", e.Type, "latency_ms", e.LatencyMs)

	if c.Recorder == nil {
		return
	}
	if err := c.Recorder.RecordTurn(ctx, e); err != nil {
		t.log.Warn("dialogue: record turn", "err", err)
	}
}

func (c *Controller) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}
