package generator

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/genai"

	"call-assistant/internal/sessions"
)

type fakeModels struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig

	resp  *genai.GenerateContentResponse
	err   error
	block bool
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	c := &genai.Content{Role: string(genai.RoleModel)}
	for _, p := range parts {
		c.Parts = append(c.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: c}}}
}

var transcript = []sessions.Utterance{
	{Role: sessions.RoleSystem, Text: "You are a receptionist. Office hours: 9 to 5."},
	{Role: sessions.RoleCaller, Text: "When are you open?"},
	{Role: sessions.RoleAssistant, Text: "We are open 9 to 5."},
	{Role: sessions.RoleCaller, Text: "Do you take Aetna?"},
}

func TestGenerate_SendsTranscriptAndConfig(t *testing.T) {
	f := &fakeModels{resp: textResponse("  Yes, we ", "accept Aetna. ")}
	g := newGemini(f, Options{Model: "gemini-2.5-flash", Temperature: 0.3, MaxTokens: 80})

	reply, err := g.Generate(context.Background(), transcript)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if reply != "Yes, we accept Aetna." {
		t.Fatalf("unexpected reply %q", reply)
	}
	if f.model != "gemini-2.5-flash" {
		t.Fatalf("unexpected model %q", f.model)
	}
	if f.config.SystemInstruction == nil || f.config.SystemInstruction.Parts[0].Text != transcript[0].Text {
		t.Fatalf("expected system instruction to carry the persona")
	}
	if *f.config.Temperature != float32(0.3) || f.config.MaxOutputTokens != 80 {
		t.Fatalf("unexpected config: temp=%v max=%d", *f.config.Temperature, f.config.MaxOutputTokens)
	}
	if len(f.contents) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(f.contents))
	}
	wantRoles := []string{string(genai.RoleUser), string(genai.RoleModel), string(genai.RoleUser)}
	for i, c := range f.contents {
		if c.Role != wantRoles[i] {
			t.Fatalf("turn %d: role %q want %q", i, c.Role, wantRoles[i])
		}
	}
}

func TestBuildContents_MergesConsecutiveCallerTurns(t *testing.T) {
	_, contents := buildContents([]sessions.Utterance{
		{Role: sessions.RoleSystem, Text: "persona"},
		{Role: sessions.RoleCaller, Text: "hello?"},
		{Role: sessions.RoleCaller, Text: "are you there?"},
	})
	if len(contents) != 1 || len(contents[0].Parts) != 2 {
		t.Fatalf("expected one merged user turn, got %+v", contents)
	}
}

func TestGenerate_EmptyReply(t *testing.T) {
	g := newGemini(&fakeModels{resp: textResponse("   ")}, Options{Model: "m"})
	if _, err := g.Generate(context.Background(), transcript); !errors.Is(err, ErrEmptyReply) {
		t.Fatalf("expected ErrEmptyReply, got %v", err)
	}

	g = newGemini(&fakeModels{resp: &genai.GenerateContentResponse{}}, Options{Model: "m"})
	if _, err := g.Generate(context.Background(), transcript); !errors.Is(err, ErrEmptyReply) {
		t.Fatalf("expected ErrEmptyReply for no candidates, got %v", err)
	}
}

func TestGenerate_Timeout(t *testing.T) {
	g := newGemini(&fakeModels{block: true}, Options{Model: "m"})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := g.Generate(ctx, transcript); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestGenerate_ProviderError(t *testing.T) {
	boom := errors.New("quota exceeded")
	g := newGemini(&fakeModels{err: boom}, Options{Model: "m"})

	_, err := g.Generate(context.Background(), transcript)
	if !errors.Is(err, boom) || errors.Is(err, ErrTimeout) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestNewGemini_RequiresAPIKey(t *testing.T) {
	if _, err := NewGemini(context.Background(), Options{}); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
}
