package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/xhad/hexauthor/pkg/tokens"
)

var ErrBudgetExceeded = errors.New("token budget exceeded")

const DefaultBaseURL = "http://localhost:11434"

// GeneratorConfig represents the configuration for proposal generation.
type GeneratorConfig struct {
	Model           string
	Temperature     float64
	MaxTokens       int
	SystemTemplate  string
	ContextTemplate string
	BaseURL         string // Ollama server URL
	Budget          tokens.BudgetConfig
}

// Request is a proposal prompt plus the curated sections it should draw on.
type Request struct {
	Prompt   string   `json:"prompt"`
	Sections []string `json:"sections"`
}

// Generator drafts proposal text with an LLM, refusing requests that do
// not fit the token budget.
type Generator struct {
	config GeneratorConfig
	llm    llms.Model
	budget tokens.Budget
}

// NewWithConfig creates a Generator backed by an Ollama server.
func NewWithConfig(config GeneratorConfig) (*Generator, error) {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}

	model, err := ollama.New(ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return NewWithModel(config, model)
}

// NewWithModel creates a Generator over an already constructed model.
func NewWithModel(config GeneratorConfig, model llms.Model) (*Generator, error) {
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be between 0 and 1")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = "You write business proposals. Use only the facts in the provided sections and keep their wording where it fits."
	}
	if config.ContextTemplate == "" {
		config.ContextTemplate = "Sections:\n%s\n\nRequest: %s"
	}

	return &Generator{
		config: config,
		llm:    model,
		budget: tokens.NewWithConfig(config.Budget),
	}, nil
}

// Usage reports the token usage of req against the budget.
func (g *Generator) Usage(req Request) tokens.Usage {
	return g.budget.Usage(req.Prompt, req.Sections)
}

func (g *Generator) check(req Request) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return fmt.Errorf("prompt is required")
	}
	if u := g.Usage(req); u.Exceeded {
		return fmt.Errorf("%w: %d of %d tokens", ErrBudgetExceeded, u.Total, u.Limit)
	}
	return nil
}

func (g *Generator) messages(req Request) []llms.MessageContent {
	var sections strings.Builder
	for i, s := range req.Sections {
		fmt.Fprintf(&sections, "[%d]\n%s\n\n", i+1, s)
	}

	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, g.config.SystemTemplate),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(g.config.ContextTemplate, strings.TrimSpace(sections.String()), req.Prompt)),
	}
}

// Generate returns a complete draft for req.
func (g *Generator) Generate(ctx context.Context, req Request) (string, error) {
	if err := g.check(req); err != nil {
		return "", err
	}

	resp, err := g.llm.GenerateContent(ctx, g.messages(req),
		llms.WithTemperature(g.config.Temperature),
		llms.WithMaxTokens(g.config.MaxTokens))
	if err != nil {
		return "", fmt.Errorf("generation error: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}

	return resp.Choices[0].Content, nil
}

// Stream sends the draft for req piece by piece. The channel is closed when
// generation ends or ctx is cancelled.
func (g *Generator) Stream(ctx context.Context, req Request) (<-chan string, error) {
	if err := g.check(req); err != nil {
		return nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)

		_, err := g.llm.GenerateContent(ctx, g.messages(req),
			llms.WithTemperature(g.config.Temperature),
			llms.WithMaxTokens(g.config.MaxTokens),
			llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				select {
				case out <- string(chunk):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}))
		if err != nil && ctx.Err() == nil {
			log.Printf("stream generation failed: %v", err)
		}
	}()

	return out, nil
}
