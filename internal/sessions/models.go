package sessions

import (
	"sync"
	"time"
)

// Role identifies who produced an utterance.
type Role string

const (
	RoleSystem    Role = "system"
	RoleCaller    Role = "caller"
	RoleAssistant Role = "assistant"
)

// Utterance is one entry of a call transcript.
type Utterance struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Session is the conversation state for one call.
//
// Invariants:
// - transcript[0] is the single RoleSystem utterance written at creation.
// - Only the holder of the call's turn slot appends to the transcript.
type Session struct {
	CallID    string
	TenantID  string
	CreatedAt time.Time

	mu           sync.Mutex
	transcript   []Utterance
	lastActiveAt time.Time
}

func newSession(callID, tenantID, systemInstruction string, now time.Time) *Session {
	return &Session{
		CallID:       callID,
		TenantID:     tenantID,
		CreatedAt:    now,
		transcript:   []Utterance{{Role: RoleSystem, Text: systemInstruction}},
		lastActiveAt: now,
	}
}

// Transcript returns a copy of the transcript.
func (s *Session) Transcript() []Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Utterance, len(s.transcript))
	copy(out, s.transcript)
	return out
}

func (s *Session) LastActiveAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActiveAt
}

// Summary is a read-only view of a session for operators and the activity index.
type Summary struct {
	CallID       string    `json:"call_id"`
	TenantID     string    `json:"tenant_id"`
	Turns        int       `json:"turns"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := 0
	for _, u := range s.transcript {
		if u.Role == RoleCaller {
			turns++
		}
	}
	return Summary{
		CallID:       s.CallID,
		TenantID:     s.TenantID,
		Turns:        turns,
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.lastActiveAt,
	}
}
