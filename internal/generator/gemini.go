package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"call-assistant/internal/sessions"
)

var (
	ErrTimeout    = errors.New("generator: timed out")
	ErrEmptyReply = errors.New("generator: empty reply")
	ErrNoAPIKey   = errors.New("generator: api key required")
)

// contentModels is the subset of *genai.Models used here.
type contentModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Options struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Gemini produces assistant replies with the Gemini API. It is safe for
// concurrent use.
type Gemini struct {
	models      contentModels
	model       string
	temperature float32
	maxTokens   int32
}

func NewGemini(ctx context.Context, opts Options) (*Gemini, error) {
	if opts.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGemini(client.Models, opts), nil
}

func newGemini(models contentModels, opts Options) *Gemini {
	return &Gemini{
		models:      models,
		model:       opts.Model,
		temperature: float32(opts.Temperature),
		maxTokens:   int32(opts.MaxTokens),
	}
}

// Generate returns the next assistant reply for transcript. The caller bounds
// the call with ctx; an exceeded deadline is reported as ErrTimeout.
func (g *Gemini) Generate(ctx context.Context, transcript []sessions.Utterance) (string, error) {
	system, contents := buildContents(transcript)
	if len(contents) == 0 {
		return "", errors.New("generator: transcript has no caller utterance")
	}

	temperature := g.temperature
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: g.maxTokens,
	}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return "", fmt.Errorf("generate content: %w", err)
	}

	reply := replyText(resp)
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

// buildContents maps a transcript onto a system instruction and alternating
// user/model turns. Consecutive utterances from the same side are merged into
// one turn, which happens after a degraded turn left no assistant reply.
func buildContents(transcript []sessions.Utterance) (string, []*genai.Content) {
	var system []string
	var contents []*genai.Content
	for _, u := range transcript {
		var role string
		switch u.Role {
		case sessions.RoleSystem:
			system = append(system, u.Text)
			continue
		case sessions.RoleCaller:
			role = string(genai.RoleUser)
		case sessions.RoleAssistant:
			role = string(genai.RoleModel)
		default:
			continue
		}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, &genai.Part{Text: u.Text})
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: u.Text}}})
	}
	return strings.Join(system, "\n"), contents
}

func replyText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range c.Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}
