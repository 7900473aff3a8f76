package dialogue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"call-assistant/internal/audit"
	"call-assistant/internal/sessions"
	"call-assistant/internal/tenants"
)

const officeNumber = "+15550001111"

type fakeGenerator struct {
	mu    sync.Mutex
	calls [][]sessions.Utterance

	reply string
	err   error
	block bool
	panic bool
}

func (g *fakeGenerator) Generate(ctx context.Context, transcript []sessions.Utterance) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, transcript)
	reply, err := g.reply, g.err
	g.mu.Unlock()

	if g.panic {
		panic("generator exploded")
	}
	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return reply, err
}

func (g *fakeGenerator) Calls() [][]sessions.Utterance {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([][]sessions.Utterance(nil), g.calls...)
}

type fixture struct {
	dir   *tenants.MemoryDirectory
	store *sessions.Store
	gen   *fakeGenerator
	repo  *audit.MemoryRepo
	c     *Controller
}

func newFixture() *fixture {
	dir := tenants.NewMemoryDirectory(tenants.Profile{
		ID:               "t1",
		DisplayName:      "Bright Smiles Dental",
		PhoneNumber:      officeNumber,
		Staff:            []tenants.StaffMember{{Name: "Dr. Lee", Specialty: "orthodontics", SchedulingPolicy: "weekday"}},
		AcceptedPayments: []string{"Delta Dental", "Aetna"},
		Hours:            "9 to 5",
		Address:          "123 Main Street",
	})
	store := sessions.NewStore()
	gen := &fakeGenerator{reply: "We are open 9 to 5."}
	repo := audit.NewMemoryRepo()

	return &fixture{
		dir:   dir,
		store: store,
		gen:   gen,
		repo:  repo,
		c: &Controller{
			Tenants:   tenants.NewResolver(dir),
			Sessions:  store,
			Generator: gen,
			Recorder:  audit.NewService(repo),
			Timeout:   time.Second,
		},
	}
}

func speech(s string) *string { return &s }

func (f *fixture) turn(callID, text string) Outcome {
	return f.c.HandleTurn(context.Background(), TurnRequest{CallID: callID, ToNumber: officeNumber, CallerUtterance: speech(text)})
}

func (f *fixture) transcript(t *testing.T, callID string) []sessions.Utterance {
	t.Helper()
	sess, ok := f.store.Get(callID)
	if !ok {
		t.Fatalf("expected session for %s", callID)
	}
	return sess.Transcript()
}

func (f *fixture) lastEvent(t *testing.T) audit.Event {
	t.Helper()
	evs := f.repo.Events()
	if len(evs) == 0 {
		t.Fatalf("expected a recorded event")
	}
	return evs[len(evs)-1]
}

func TestHandleTurn_HappyPath(t *testing.T) {
	f := newFixture()

	out := f.turn("CA1", "  What are your hours?  ")
	if out != Continue("We are open 9 to 5.", FollowUpPrompt) {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	calls := f.gen.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 generator call, got %d", len(calls))
	}
	seen := calls[0]
	if len(seen) != 2 || seen[0].Role != sessions.RoleSystem || !strings.Contains(seen[0].Text, "Office hours: 9 to 5") {
		t.Fatalf("generator saw unexpected transcript: %+v", seen)
	}
	if seen[1] != (sessions.Utterance{Role: sessions.RoleCaller, Text: "What are your hours?"}) {
		t.Fatalf("expected trimmed caller utterance, got %+v", seen[1])
	}

	tr := f.transcript(t, "CA1")
	if len(tr) != 3 || tr[2] != (sessions.Utterance{Role: sessions.RoleAssistant, Text: "We are open 9 to 5."}) {
		t.Fatalf("unexpected transcript: %+v", tr)
	}

	ev := f.lastEvent(t)
	if ev.Type != audit.EventTurnContinued || ev.TenantID != "t1" || ev.CallID != "CA1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestHandleTurn_EmptySpeech(t *testing.T) {
	f := newFixture()

	out := f.turn("CA2", "   ")
	if out != Rejected(ReasonEmptySpeech) {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if f.store.Len() != 0 || len(f.gen.Calls()) != 0 {
		t.Fatalf("expected no session and no generator call")
	}
	if ev := f.lastEvent(t); ev.Type != audit.EventTurnRejected || ev.Reason != string(ReasonEmptySpeech) {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestHandleTurn_ValidationOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	out := f.c.HandleTurn(ctx, TurnRequest{CallID: " ", ToNumber: "", CallerUtterance: speech("")})
	if out.Reason != ReasonMissingCallID {
		t.Fatalf("expected missing-call-id first, got %+v", out)
	}

	out = f.c.HandleTurn(ctx, TurnRequest{CallID: "CA1", ToNumber: "", CallerUtterance: speech("")})
	if out.Reason != ReasonEmptySpeech {
		t.Fatalf("expected empty-speech before missing-destination, got %+v", out)
	}

	out = f.c.HandleTurn(ctx, TurnRequest{CallID: "CA1", ToNumber: "  ", CallerUtterance: speech("hi")})
	if out.Reason != ReasonMissingDestination {
		t.Fatalf("expected missing-destination, got %+v", out)
	}
	if f.store.Len() != 0 {
		t.Fatalf("rejected turns must not create sessions")
	}
}

func TestHandleTurn_UnknownDestination(t *testing.T) {
	f := newFixture()

	out := f.c.HandleTurn(context.Background(), TurnRequest{CallID: "CA3", ToNumber: "+15559999999", CallerUtterance: speech("hello")})
	if out.Kind != KindRejected || out.Reason != ReasonTenantUnresolved || out.TenantFailure != TenantNotFound {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if f.store.Len() != 0 {
		t.Fatalf("expected no session")
	}
	if ev := f.lastEvent(t); ev.TenantFailure != string(TenantNotFound) {
		t.Fatalf("expected not-found telemetry, got %+v", ev)
	}
}

func TestHandleTurn_DirectoryUnavailable(t *testing.T) {
	f := newFixture()
	f.dir.SetErr(errors.New("connection refused"))

	out := f.turn("CA3", "hello")
	if out.Reason != ReasonTenantUnresolved || out.TenantFailure != TenantLookupFailed {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if ev := f.lastEvent(t); ev.TenantFailure != string(TenantLookupFailed) || ev.Message == "" {
		t.Fatalf("expected lookup-failed telemetry with detail, got %+v", ev)
	}
}

func TestHandleTurn_GeneratorFailureAfterTwoTurns(t *testing.T) {
	f := newFixture()

	for i, q := range []string{"Hi there", "Do you take Aetna?"} {
		if out := f.turn("CA4", q); out.Kind != KindContinue || out.Spoken != f.gen.reply {
			t.Fatalf("turn %d: unexpected outcome %+v", i, out)
		}
	}

	f.gen.mu.Lock()
	f.gen.err = errors.New("upstream 503")
	f.gen.mu.Unlock()

	out := f.turn("CA4", "Can I book for Tuesday?")
	if out != Continue(DegradedText, FollowUpPrompt) {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	tr := f.transcript(t, "CA4")
	if len(tr) != 6 {
		t.Fatalf("expected 6 utterances, got %d: %+v", len(tr), tr)
	}
	last := tr[len(tr)-1]
	if last.Role != sessions.RoleCaller || last.Text != "Can I book for Tuesday?" {
		t.Fatalf("expected caller utterance last and no assistant append, got %+v", last)
	}
	if ev := f.lastEvent(t); ev.Type != audit.EventTurnDegraded {
		t.Fatalf("expected degraded event, got %+v", ev)
	}
}

func TestHandleTurn_EmptyReplyDegrades(t *testing.T) {
	f := newFixture()
	f.gen.reply = "   "

	if out := f.turn("CA5", "hello"); out.Spoken != DegradedText {
		t.Fatalf("expected degraded text, got %+v", out)
	}
	if tr := f.transcript(t, "CA5"); len(tr) != 2 {
		t.Fatalf("expected no assistant utterance, got %+v", tr)
	}
}

func TestHandleTurn_GeneratorTimeoutDegrades(t *testing.T) {
	f := newFixture()
	f.gen.block = true
	f.c.Timeout = 10 * time.Millisecond

	start := time.Now()
	out := f.turn("CA6", "hello")
	if out.Spoken != DegradedText {
		t.Fatalf("expected degraded text, got %+v", out)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("timeout was not applied")
	}
}

func TestHandleTurn_Greeting(t *testing.T) {
	f := newFixture()

	out := f.c.HandleTurn(context.Background(), TurnRequest{CallID: "CA7", ToNumber: officeNumber})
	if out != Continue(GreetingText, InitialPrompt) {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if f.store.Len() != 0 || len(f.gen.Calls()) != 0 {
		t.Fatalf("greeting must not touch the store or the generator")
	}
	if ev := f.lastEvent(t); ev.Type != audit.EventTurnGreeting {
		t.Fatalf("expected greeting event, got %+v", ev)
	}
}

func TestHandleTurn_GreetingForUnknownNumberSkipsLookup(t *testing.T) {
	f := newFixture()
	f.dir.SetErr(errors.New("directory down"))

	out := f.c.HandleTurn(context.Background(), TurnRequest{CallID: "CA7", ToNumber: "+15559999999"})
	if out.Kind != KindContinue {
		t.Fatalf("expected greeting without tenant lookup, got %+v", out)
	}
}

func TestHandleTurn_PanicBecomesInternalAndReleasesSession(t *testing.T) {
	f := newFixture()
	f.gen.panic = true

	out := f.turn("CA8", "hello")
	if out != Rejected(ReasonInternal) {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if ev := f.lastEvent(t); ev.Type != audit.EventTurnRejected || ev.Reason != string(ReasonInternal) {
		t.Fatalf("unexpected event: %+v", ev)
	}

	f.gen.panic = false
	done := make(chan Outcome, 1)
	go func() { done <- f.turn("CA8", "still there?") }()
	select {
	case out := <-done:
		if out.Kind != KindContinue {
			t.Fatalf("unexpected outcome after panic: %+v", out)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("session was left locked after panic")
	}
}

func TestHandleTurn_PersonaFixedAtSessionCreation(t *testing.T) {
	f := newFixture()
	f.turn("CA9", "hello")

	f.dir.Put(tenants.Profile{ID: "t1", DisplayName: "Bright Smiles Dental", PhoneNumber: officeNumber, Hours: "closed"})
	f.turn("CA9", "and now?")

	calls := f.gen.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 generator calls, got %d", len(calls))
	}
	if calls[1][0] != calls[0][0] {
		t.Fatalf("system instruction changed mid-call: %q", calls[1][0].Text)
	}
	systems := 0
	for _, u := range f.transcript(t, "CA9") {
		if u.Role == sessions.RoleSystem {
			systems++
		}
	}
	if systems != 1 {
		t.Fatalf("expected exactly one system utterance, got %d", systems)
	}
}

func TestHandleTurn_PrefilterShortcut(t *testing.T) {
	f := newFixture()
	f.c.Prefilter = KeywordPrefilter{}

	out := f.turn("CA10", "What are your office hours?")
	if out != Continue("Our office hours are 9 to 5.", FollowUpPrompt) {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if len(f.gen.Calls()) != 0 {
		t.Fatalf("expected generator to be skipped")
	}
	if tr := f.transcript(t, "CA10"); len(tr) != 3 || tr[2].Role != sessions.RoleAssistant {
		t.Fatalf("expected caller and assistant appended, got %+v", tr)
	}
	if ev := f.lastEvent(t); ev.Type != audit.EventTurnShortcut {
		t.Fatalf("expected shortcut event, got %+v", ev)
	}
}

func TestHandleTurn_ConcurrentCallsStayIsolated(t *testing.T) {
	f := newFixture()

	var wg sync.WaitGroup
	for _, id := range []string{"CA-A", "CA-B", "CA-C"} {
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				f.turn(id, "hello from "+id)
			}(id)
		}
	}
	wg.Wait()

	for _, id := range []string{"CA-A", "CA-B", "CA-C"} {
		tr := f.transcript(t, id)
		if len(tr) != 7 {
			t.Fatalf("%s: expected 7 utterances, got %d", id, len(tr))
		}
		for i := 1; i < len(tr); i += 2 {
			if tr[i].Role != sessions.RoleCaller || tr[i].Text != "hello from "+id || tr[i+1].Role != sessions.RoleAssistant {
				t.Fatalf("%s: interleaved transcript at %d: %+v", id, i, tr)
			}
		}
	}
}

// gatedResolver blocks its first lookup until gate is closed.
type gatedResolver struct {
	next    TenantResolver
	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func (r *gatedResolver) Resolve(ctx context.Context, toNumber string) (tenants.Profile, error) {
	first := false
	r.once.Do(func() { first = true })
	if first {
		close(r.entered)
		<-r.gate
	}
	return r.next.Resolve(ctx, toNumber)
}

func TestHandleTurn_SlowLookupKeepsArrivalOrder(t *testing.T) {
	f := newFixture()
	r := &gatedResolver{next: f.c.Tenants, entered: make(chan struct{}), gate: make(chan struct{})}
	f.c.Tenants = r

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.turn("CA12", "first")
	}()
	<-r.entered
	go func() {
		defer wg.Done()
		f.turn("CA12", "second")
	}()
	// Let the second turn arrive while the first is still resolving.
	time.Sleep(20 * time.Millisecond)
	close(r.gate)
	wg.Wait()

	var callers []string
	for _, u := range f.transcript(t, "CA12") {
		if u.Role == sessions.RoleCaller {
			callers = append(callers, u.Text)
		}
	}
	if len(callers) != 2 || callers[0] != "first" || callers[1] != "second" {
		t.Fatalf("expected arrival order [first second], got %v", callers)
	}
}

type failingRecorder struct{}

func (failingRecorder) RecordTurn(context.Context, audit.Event) error {
	return errors.New("db down")
}

func TestHandleTurn_RecorderFailureDoesNotChangeOutcome(t *testing.T) {
	f := newFixture()
	f.c.Recorder = failingRecorder{}

	if out := f.turn("CA11", "hello"); out.Kind != KindContinue || out.Spoken != f.gen.reply {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}
