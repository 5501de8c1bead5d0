package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/interview-assistant/internal/logger"
)

const (
	defaultModel = "gemini-2.5-flash"
	providerName = "gemini"
)

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("gemini api returned empty response")

// Generator wraps the Google GenAI client.
type Generator struct {
	generate   generateFunc
	modelName  string
	maxRetries int
	logger     *zap.Logger
}

// NewGenerator creates a Generator configured for the Gemini API backend.
// maxRetries is the total number of attempts for temporary failures; values
// below 1 mean a single attempt.
func NewGenerator(ctx context.Context, apiKey, model string, maxRetries int, log *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	g := newGenerator(client.Models.GenerateContent, model, log)
	g.maxRetries = maxRetries
	return g, nil
}

func newGenerator(fn generateFunc, model string, log *zap.Logger) *Generator {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	return &Generator{
		generate:  fn,
		modelName: model,
		logger:    logger.WithCommonFields(log, providerName, model),
	}
}

// Generate sends prompt with the system instruction and returns the joined
// text of the response.
func (g *Generator) Generate(ctx context.Context, prompt, system string) (string, error) {
	if g == nil || g.generate == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	var cfg *genai.GenerateContentConfig
	if system = strings.TrimSpace(system); system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}

	g.logger.Debug("sending prompt", zap.String("prompt", logger.TruncateForLog(prompt, 200)))

	resp, err := g.generateWithRetry(ctx, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var builder strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil {
					continue
				}
				text := strings.TrimSpace(part.Text)
				if text == "" {
					continue
				}
				if builder.Len() > 0 {
					builder.WriteString("\n")
				}
				builder.WriteString(text)
			}
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", ErrEmptyResponse
	}

	g.logger.Debug("received response", zap.String("response", logger.TruncateForLog(output, 200)))
	return output, nil
}

func (g *Generator) generateWithRetry(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	attempts := max(g.maxRetries, 1)

	for attempt := 1; ; attempt++ {
		resp, err := g.generate(ctx, g.modelName, contents, cfg)
		if err == nil {
			return resp, nil
		}
		if attempt >= attempts {
			return nil, err
		}

		delay, ok := retryDelay(err, attempt)
		if !ok {
			return nil, err
		}

		g.logger.Debug("retrying generation",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if werr := waitFor(ctx, delay); werr != nil {
			return nil, werr
		}
	}
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}
