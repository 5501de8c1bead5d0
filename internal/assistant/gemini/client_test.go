package gemini

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/genai"
)

type fakeModels struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig

	resp *genai.GenerateContentResponse
	err  error
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{Role: genai.RoleModel}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func TestGenerateSendsSystemInstruction(t *testing.T) {
	fake := &fakeModels{resp: textResponse("  Solid answers. ", "", "Work on caching.")}
	g := newGenerator(fake.GenerateContent, "", nil)

	out, err := g.Generate(context.Background(), "  transcript  ", "be kind")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out != "Solid answers.\nWork on caching." {
		t.Fatalf("unexpected output %q", out)
	}
	if fake.model != defaultModel {
		t.Fatalf("expected default model %q, got %q", defaultModel, fake.model)
	}
	if len(fake.contents) != 1 || fake.contents[0].Parts[0].Text != "transcript" {
		t.Fatalf("unexpected contents: %+v", fake.contents)
	}
	if fake.config == nil || fake.config.SystemInstruction == nil {
		t.Fatalf("expected system instruction to be set")
	}
	if got := fake.config.SystemInstruction.Parts[0].Text; got != "be kind" {
		t.Fatalf("unexpected system instruction %q", got)
	}
}

func TestGenerateWithoutSystemInstruction(t *testing.T) {
	fake := &fakeModels{resp: textResponse("ok")}
	g := newGenerator(fake.GenerateContent, "gemini-custom", nil)

	if _, err := g.Generate(context.Background(), "prompt", "   "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.config != nil {
		t.Fatalf("expected nil config, got %+v", fake.config)
	}
	if g.Model() != "gemini-custom" || fake.model != "gemini-custom" {
		t.Fatalf("unexpected model %q", fake.model)
	}
}

func TestGenerateErrors(t *testing.T) {
	cause := errors.New("boom")

	tests := map[string]struct {
		fake   *fakeModels
		prompt string
		want   error
	}{
		"upstream failure": {fake: &fakeModels{err: cause}, prompt: "p", want: cause},
		"empty response":   {fake: &fakeModels{resp: textResponse("  ")}, prompt: "p", want: ErrEmptyResponse},
		"nil response":     {fake: &fakeModels{}, prompt: "p", want: ErrEmptyResponse},
		"empty prompt":     {fake: &fakeModels{resp: textResponse("x")}, prompt: " "},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			g := newGenerator(tt.fake.GenerateContent, "", nil)
			_, err := g.Generate(context.Background(), tt.prompt, "")
			if err == nil {
				t.Fatalf("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestGenerateLogsWithProviderFields(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	fake := &fakeModels{resp: textResponse("ok")}
	g := newGenerator(fake.GenerateContent, "", zap.New(core))

	if _, err := g.Generate(context.Background(), "prompt", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := observed.FilterMessage("sending prompt").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["ai_provider"] != "gemini" || ctx["ai_model"] != defaultModel {
		t.Fatalf("unexpected fields: %v", ctx)
	}
}

func TestNewGeneratorRequiresKey(t *testing.T) {
	if _, err := NewGenerator(context.Background(), "  ", "", 3, nil); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestNilGenerator(t *testing.T) {
	var g *Generator
	if _, err := g.Generate(context.Background(), "p", ""); err == nil {
		t.Fatalf("expected error for nil generator")
	}
	if g.Model() != "" {
		t.Fatalf("expected empty model")
	}
}
