package sessions

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrStoreClosed   = errors.New("sessions: store closed")
	ErrMissingCallID = errors.New("sessions: call id required")
)

// Store owns all live call sessions of this process.
//
// The map lock is held only for bookkeeping. Turn execution is serialized per
// call by a turn slot keyed by call id, handed to waiters in arrival order, so
// unrelated calls never wait on each other. A turn holds the slot before the
// session exists, which keeps turns ordered even when work done before
// Open (tenant lookup) takes longer for one of them.
// Contents are process-local and lost on restart.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	slots    map[string]*turnSlot
	closed   bool

	Now func() time.Time
}

// turnSlot queues the turns of one call. It exists only while a turn is
// running or queued.
type turnSlot struct {
	busy     bool
	waiters  []chan struct{}
	inflight int
}

func NewStore() *Store {
	return &Store{sessions: map[string]*Session{}, slots: map[string]*turnSlot{}, Now: time.Now}
}

// GetOrCreate returns the session for callID, creating it with a transcript of
// exactly [system(systemInstruction)] when absent. On reuse both tenantID and
// systemInstruction are ignored: the persona of a call never changes.
func (s *Store) GetOrCreate(callID, tenantID, systemInstruction string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(callID, tenantID, systemInstruction)
}

func (s *Store) getOrCreateLocked(callID, tenantID, systemInstruction string) *Session {
	if sess, ok := s.sessions[callID]; ok {
		return sess
	}
	sess := newSession(callID, tenantID, systemInstruction, s.now())
	s.sessions[callID] = sess
	return sess
}

// Acquire enters the turn slot of callID. Concurrent turns for the same call
// are admitted one at a time in the order they called Acquire. The returned
// Handle must be opened before touching the transcript and released when the
// turn completes.
func (s *Store) Acquire(ctx context.Context, callID string) (*Handle, error) {
	if callID == "" {
		return nil, ErrMissingCallID
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	slot, ok := s.slots[callID]
	if !ok {
		slot = &turnSlot{}
		s.slots[callID] = slot
	}
	slot.inflight++
	if !slot.busy {
		slot.busy = true
		s.mu.Unlock()
		return &Handle{store: s, callID: callID, slot: slot}, nil
	}
	ready := make(chan struct{})
	slot.waiters = append(slot.waiters, ready)
	s.mu.Unlock()

	select {
	case <-ready:
		return &Handle{store: s, callID: callID, slot: slot}, nil
	case <-ctx.Done():
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range slot.waiters {
		if w == ready {
			slot.waiters = append(slot.waiters[:i], slot.waiters[i+1:]...)
			slot.inflight--
			return nil, ctx.Err()
		}
	}
	// The slot was handed over while ctx ended; pass it on.
	s.releaseLocked(callID, slot)
	return nil, ctx.Err()
}

// releaseLocked hands the turn slot to the oldest waiter, or drops it.
func (s *Store) releaseLocked(callID string, slot *turnSlot) {
	slot.inflight--
	if len(slot.waiters) > 0 {
		next := slot.waiters[0]
		slot.waiters = slot.waiters[1:]
		close(next)
		return
	}
	slot.busy = false
	if slot.inflight == 0 && s.slots[callID] == slot {
		delete(s.slots, callID)
	}
}

// Get returns the live session for callID.
func (s *Store) Get(callID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[callID]
	return sess, ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Snapshot lists all live sessions, oldest first.
func (s *Store) Snapshot() []Summary {
	s.mu.Lock()
	list := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	s.mu.Unlock()

	out := make([]Summary, 0, len(list))
	for _, sess := range list {
		out = append(out, sess.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CallID < out[j].CallID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Expire removes sessions idle for longer than maxIdle and returns their call
// ids. Sessions with a turn running or queued are skipped.
func (s *Store) Expire(now time.Time, maxIdle time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, sess := range s.sessions {
		if _, running := s.slots[id]; running {
			continue
		}
		if now.Sub(sess.LastActiveAt()) > maxIdle {
			delete(s.sessions, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed
}

// Run sweeps idle sessions every interval until ctx ends. onExpired, when
// non-nil, receives the ids removed by each sweep that removed any.
func (s *Store) Run(ctx context.Context, interval, maxIdle time.Duration, onExpired func(ctx context.Context, callIDs []string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids := s.Expire(s.now(), maxIdle)
			if len(ids) > 0 && onExpired != nil {
				onExpired(ctx, ids)
			}
		}
	}
}

// Close drops every session and rejects further Acquire calls.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.sessions = map[string]*Session{}
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Handle is exclusive access to one call for the duration of one turn.
// It must not be used after Release.
type Handle struct {
	store    *Store
	callID   string
	slot     *turnSlot
	sess     *Session
	released sync.Once
}

// Open gets or creates the session of the call. A new session starts with
// systemInstruction; an existing one keeps its original persona and tenant.
func (h *Handle) Open(tenantID, systemInstruction string) error {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	if h.store.closed {
		return ErrStoreClosed
	}
	h.sess = h.store.getOrCreateLocked(h.callID, tenantID, systemInstruction)
	return nil
}

// Append adds u to the transcript and marks the session active.
func (h *Handle) Append(u Utterance) {
	now := h.store.now()
	h.sess.mu.Lock()
	defer h.sess.mu.Unlock()
	h.sess.transcript = append(h.sess.transcript, u)
	h.sess.lastActiveAt = now
}

// Transcript returns a copy of the current transcript.
func (h *Handle) Transcript() []Utterance {
	return h.sess.Transcript()
}

func (h *Handle) Summary() Summary {
	return h.sess.Summary()
}

// Release leaves the turn slot. Calling it more than once is a no-op.
func (h *Handle) Release() {
	h.released.Do(func() {
		h.store.mu.Lock()
		defer h.store.mu.Unlock()
		h.store.releaseLocked(h.callID, h.slot)
	})
}
