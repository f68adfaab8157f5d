package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/agent-orchestrator/agent/contract"
	openrouterx "github.com/tanpawarit/agent-orchestrator/pkg/openrouter"
)

// Agent keys with their own model overrides.
const (
	IdeasAgentKey   = "idea"
	SummaryAgentKey = "summarize"
)

type Config struct {
	BaseURL            string        `split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `split_words:"true"`
	Model              string        `split_words:"true" default:"openai/gpt-4o-mini"`
	MaxCompletionToken int           `split_words:"true" default:"2000"`
	Temperature        float32       `split_words:"true" default:"0.5"`
	Timeout            time.Duration `split_words:"true" default:"30s"`
	SiteURL            string        `split_words:"true"`
	SiteName           string        `split_words:"true"`

	IdeasModel         string  `split_words:"true"`
	SummaryModel       string  `split_words:"true"`
	IdeasTemperature   float32 `split_words:"true" default:"-1"`
	SummaryTemperature float32 `split_words:"true" default:"-1"`
}

// Enabled reports whether LLM-backed replies can be served.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

func (c Config) Validate() error {
	if !c.Enabled() {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	if c.MaxCompletionToken < 0 {
		return fmt.Errorf("%w: max completion token must not be negative", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the client config of one agent, falling back to the
// defaults where no override is set.
func (c Config) OpenRouterFor(agentKey string) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch agentKey {
	case IdeasAgentKey:
		if v := strings.TrimSpace(c.IdeasModel); v != "" {
			modelName = v
		}
		if c.IdeasTemperature >= 0 {
			temp = c.IdeasTemperature
		}
	case SummaryAgentKey:
		if v := strings.TrimSpace(c.SummaryModel); v != "" {
			modelName = v
		}
		if c.SummaryTemperature >= 0 {
			temp = c.SummaryTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
