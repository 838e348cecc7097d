package llm_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/xhad/hexauthor/pkg/llm"
	"github.com/xhad/hexauthor/pkg/tokens"
)

type fakeModel struct {
	reply string
	err   error
	got   []llms.MessageContent
	opts  llms.CallOptions
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = messages
	for _, opt := range options {
		opt(&f.opts)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.opts.StreamingFunc != nil {
		for _, word := range strings.Fields(f.reply) {
			if err := f.opts.StreamingFunc(ctx, []byte(word+" ")); err != nil {
				return nil, err
			}
		}
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.reply}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func wordBudget(limit int) tokens.BudgetConfig {
	return tokens.BudgetConfig{
		Limit:   limit,
		Counter: func(text string) int { return len(strings.Fields(text)) },
	}
}

func humanText(t *testing.T, messages []llms.MessageContent) string {
	t.Helper()
	require.Len(t, messages, 2)
	require.Equal(t, llms.ChatMessageTypeHuman, messages[1].Role)
	part, ok := messages[1].Parts[0].(llms.TextContent)
	require.True(t, ok)
	return part.Text
}

func TestNewWithModel(t *testing.T) {
	tests := []struct {
		name    string
		config  llm.GeneratorConfig
		wantErr bool
	}{
		{"defaults", llm.GeneratorConfig{}, false},
		{"temperature too high", llm.GeneratorConfig{Temperature: 1.5}, true},
		{"negative temperature", llm.GeneratorConfig{Temperature: -0.1}, true},
		{"negative max tokens", llm.GeneratorConfig{MaxTokens: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := llm.NewWithModel(tt.config, &fakeModel{})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, g)
		})
	}

	_, err := llm.NewWithModel(llm.GeneratorConfig{}, nil)
	assert.Error(t, err)
}

func TestNewWithConfig(t *testing.T) {
	g, err := llm.NewWithConfig(llm.GeneratorConfig{
		Model:       "testmodel",
		Temperature: 0.5,
		BaseURL:     "http://localhost:1234",
	})
	assert.NoError(t, err)
	assert.NotNil(t, g)
}

func TestGenerate(t *testing.T) {
	model := &fakeModel{reply: "Dear client, we propose..."}
	g, err := llm.NewWithModel(llm.GeneratorConfig{Temperature: 0.2, MaxTokens: 500, Budget: wordBudget(100)}, model)
	require.NoError(t, err)

	draft, err := g.Generate(context.Background(), llm.Request{
		Prompt:   "Draft a cloud migration proposal",
		Sections: []string{"We migrated 40 platforms.", "Our team has 12 engineers."},
	})
	require.NoError(t, err)
	assert.Equal(t, "Dear client, we propose...", draft)

	text := humanText(t, model.got)
	assert.Contains(t, text, "[1]\nWe migrated 40 platforms.")
	assert.Contains(t, text, "[2]\nOur team has 12 engineers.")
	assert.Contains(t, text, "Request: Draft a cloud migration proposal")
	assert.Equal(t, 0.2, model.opts.Temperature)
	assert.Equal(t, 500, model.opts.MaxTokens)
}

func TestGenerate_Budget(t *testing.T) {
	model := &fakeModel{reply: "never"}
	g, err := llm.NewWithModel(llm.GeneratorConfig{Budget: wordBudget(5)}, model)
	require.NoError(t, err)

	req := llm.Request{Prompt: "write it", Sections: []string{"one two three four"}}
	assert.True(t, g.Usage(req).Exceeded)

	_, err = g.Generate(context.Background(), req)
	assert.ErrorIs(t, err, llm.ErrBudgetExceeded)
	assert.Nil(t, model.got, "the model is not called over budget")

	_, err = g.Stream(context.Background(), req)
	assert.ErrorIs(t, err, llm.ErrBudgetExceeded)
}

func TestGenerate_Errors(t *testing.T) {
	boom := errors.New("model offline")
	g, err := llm.NewWithModel(llm.GeneratorConfig{Budget: wordBudget(100)}, &fakeModel{err: boom})
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), llm.Request{Prompt: "hi"})
	assert.ErrorIs(t, err, boom)

	_, err = g.Generate(context.Background(), llm.Request{Prompt: "  "})
	assert.Error(t, err)
}

func TestStream(t *testing.T) {
	model := &fakeModel{reply: "We deliver on time"}
	g, err := llm.NewWithModel(llm.GeneratorConfig{Budget: wordBudget(100)}, model)
	require.NoError(t, err)

	stream, err := g.Stream(context.Background(), llm.Request{Prompt: "pitch"})
	require.NoError(t, err)

	var pieces []string
	for piece := range stream {
		pieces = append(pieces, piece)
	}
	assert.Equal(t, []string{"We ", "deliver ", "on ", "time "}, pieces)
}

func TestStream_Cancel(t *testing.T) {
	g, err := llm.NewWithModel(llm.GeneratorConfig{Budget: wordBudget(100)}, &fakeModel{reply: "a b c d"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := g.Stream(ctx, llm.Request{Prompt: "pitch"})
	require.NoError(t, err)

	<-stream
	cancel()
	for range stream {
	}
}
