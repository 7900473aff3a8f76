package reporting

import (
	"context"
	"errors"

	"call-assistant/internal/audit"
	"call-assistant/internal/dialogue"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository reads turn events. audit.Service and the audit repositories
// satisfy it; implementations must honor the tenant filter.
type Repository interface {
	List(ctx context.Context, f audit.Filter) ([]audit.Event, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) TurnsSummary(ctx context.Context, req TurnsSummaryRequest) (TurnsSummary, error) {
	if req.TenantID == "" && !req.AllTenants {
		return TurnsSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return TurnsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return TurnsSummary{}, errors.New("reporting: repository not configured")
	}

	f := audit.Filter{From: req.Range.From, To: req.Range.To}
	if !req.AllTenants {
		f.TenantID = req.TenantID
	}
	events, err := s.repo.List(ctx, f)
	if err != nil {
		return TurnsSummary{}, err
	}

	out := TurnsSummary{
		TenantID:         f.TenantID,
		Range:            req.Range,
		RejectedByReason: map[string]int{},
	}
	calls := map[string]struct{}{}
	var latency int64
	for _, e := range events {
		out.TotalTurns++
		latency += e.LatencyMs
		if e.CallID != "" {
			calls[e.CallID] = struct{}{}
		}

		switch e.Type {
		case audit.EventTurnGreeting:
			out.Greetings++
		case audit.EventTurnContinued:
			out.Continued++
		case audit.EventTurnShortcut:
			out.Shortcuts++
		case audit.EventTurnDegraded:
			out.Degraded++
		case audit.EventTurnRejected:
			out.Rejected++
			out.RejectedByReason[e.Reason]++
			switch e.TenantFailure {
			case string(dialogue.TenantNotFound):
				out.TenantNotFound++
			case string(dialogue.TenantLookupFailed):
				out.TenantLookupFailed++
			}
		}
	}
	out.Calls = len(calls)
	if out.TotalTurns > 0 {
		out.AverageLatencyMs = latency / int64(out.TotalTurns)
	}
	if generated := out.Continued + out.Degraded; generated > 0 {
		out.DegradedRate = float64(out.Degraded) / float64(generated)
	}
	return out, nil
}
