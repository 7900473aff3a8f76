package dialogue

// Kind is the tag of an Outcome.
type Kind string

const (
	KindContinue Kind = "continue"
	KindEnd      Kind = "end"
	KindRejected Kind = "rejected"
)

// Reason explains a rejected turn. Each reason maps to fixed spoken text in
// the renderer.
type Reason string

const (
	ReasonMissingCallID      Reason = "missing-call-id"
	ReasonEmptySpeech        Reason = "empty-speech"
	ReasonMissingDestination Reason = "missing-destination"
	ReasonTenantUnresolved   Reason = "tenant-unresolved"
	ReasonInternal           Reason = "internal"
)

// TenantFailure separates an unknown number from an unavailable directory.
// Both render the same message; only telemetry tells them apart.
type TenantFailure string

const (
	TenantNotFound     TenantFailure = "not-found"
	TenantLookupFailed TenantFailure = "lookup-failed"
)

// Fixed texts spoken by the controller.
const (
	GreetingText   = "Hello!"
	InitialPrompt  = "How can we help you today?"
	FollowUpPrompt = "Anything else I can help you with?"
	DegradedText   = "I'm sorry, there was a problem processing your request. Please call back later."
)

// Outcome is the result of one turn. Build it with Continue, End or Rejected.
type Outcome struct {
	Kind Kind

	// Spoken is said first; Prompt is said while listening for the next turn.
	Spoken string
	Prompt string

	Reason        Reason
	TenantFailure TenantFailure
}

// Continue speaks spoken and keeps the call open, listening after prompt.
func Continue(spoken, prompt string) Outcome {
	return Outcome{Kind: KindContinue, Spoken: spoken, Prompt: prompt}
}

// End speaks spoken and ends the call.
func End(spoken string) Outcome {
	return Outcome{Kind: KindEnd, Spoken: spoken}
}

func Rejected(reason Reason) Outcome {
	return Outcome{Kind: KindRejected, Reason: reason}
}

func tenantUnresolved(f TenantFailure) Outcome {
	o := Rejected(ReasonTenantUnresolved)
	o.TenantFailure = f
	return o
}
