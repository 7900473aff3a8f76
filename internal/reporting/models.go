package reporting

import "time"

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// TurnsSummaryRequest requests aggregated turn outcomes.
// Tenant isolation: TenantID is required unless AllTenants is set, which only
// super admins may request.
type TurnsSummaryRequest struct {
	TenantID   string    `json:"tenant_id,omitempty"`
	AllTenants bool      `json:"all_tenants,omitempty"`
	Range      TimeRange `json:"range"`
}

type TurnsSummary struct {
	TenantID string    `json:"tenant_id,omitempty"`
	Range    TimeRange `json:"range"`

	TotalTurns int `json:"total_turns"`
	Calls      int `json:"calls"`

	Greetings int `json:"greetings"`
	Continued int `json:"continued"`
	Shortcuts int `json:"shortcuts"`
	Degraded  int `json:"degraded"`
	Rejected  int `json:"rejected"`

	// RejectedByReason counts rejected turns per reason.
	RejectedByReason map[string]int `json:"rejected_by_reason"`

	// TenantNotFound and TenantLookupFailed split tenant-unresolved turns.
	TenantNotFound     int `json:"tenant_not_found"`
	TenantLookupFailed int `json:"tenant_lookup_failed"`

	// DegradedRate is Degraded over turns that reached the generator.
	DegradedRate     float64 `json:"degraded_rate"`
	AverageLatencyMs int64   `json:"average_latency_ms"`
}
