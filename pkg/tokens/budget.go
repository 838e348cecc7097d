package tokens

import (
	"github.com/tmc/langchaingo/llms"
)

const (
	DefaultModel = "gpt-4"
	DefaultLimit = 8000
)

// Counter returns the number of tokens in text.
type Counter func(text string) int

type BudgetConfig struct {
	Model   string
	Limit   int
	Counter Counter
}

// Budget sums tokens across a prompt and the sections picked for it and
// gates submission at Limit.
type Budget struct {
	config BudgetConfig
}

type Usage struct {
	Prompt    int  `json:"prompt"`
	Sections  int  `json:"sections"`
	Total     int  `json:"total"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
	Exceeded  bool `json:"exceeded"`
}

func NewWithConfig(config BudgetConfig) Budget {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Limit <= 0 {
		config.Limit = DefaultLimit
	}
	if config.Counter == nil {
		model := config.Model
		// falls back to an approximate count when the encoding is unavailable
		config.Counter = func(text string) int {
			return llms.CountTokens(model, text)
		}
	}

	return Budget{config: config}
}

func (b Budget) Limit() int {
	return b.config.Limit
}

func (b Budget) Count(text string) int {
	if text == "" {
		return 0
	}
	return b.config.Counter(text)
}

func (b Budget) Usage(prompt string, sections []string) Usage {
	u := Usage{
		Prompt: b.Count(prompt),
		Limit:  b.config.Limit,
	}
	for _, s := range sections {
		u.Sections += b.Count(s)
	}
	u.Total = u.Prompt + u.Sections
	u.Remaining = u.Limit - u.Total
	u.Exceeded = u.Total > u.Limit
	return u
}

// Allow reports whether prompt and sections fit in the budget.
func (b Budget) Allow(prompt string, sections []string) bool {
	return !b.Usage(prompt, sections).Exceeded
}
