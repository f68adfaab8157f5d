// Package classifier guesses which agent should have handled a prompt the router
// could not match. It only suggests; it never runs the agent.
package classifier

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/agent-orchestrator/agent/contract"
)

const DefaultThreshold = 0.5

// Entry is one agent's classifier vocabulary.
type Entry struct {
	Agent    string
	Keywords []string
}

// DefaultTable is ordered; earlier entries win ties.
func DefaultTable() []Entry {
	return []Entry{
		{Agent: "travel_agent", Keywords: []string{"trip", "travel", "flight", "hotel", "itinerary"}},
		{Agent: "pm_agent", Keywords: []string{"pm", "project", "task", "manage"}},
		{Agent: "ideas_agent", Keywords: []string{"idea", "brainstorm", "suggestion"}},
		{Agent: "summary_agent", Keywords: []string{"summarize", "summary", "recap"}},
		{Agent: "orchestrator_agent", Keywords: []string{"orchestrate", "coordinate", "route"}},
		{Agent: "pm_director_agent", Keywords: []string{"director", "lead", "oversee"}},
		{Agent: "airtable_logger_agent", Keywords: []string{"log", "airtable", "record"}},
		{Agent: "ai_dev_agent", Keywords: []string{"developer", "dev", "code", "build"}},
		{Agent: "ai_infra_agent", Keywords: []string{"infra", "infrastructure", "deploy", "ops"}},
	}
}

// PromptLogger receives one row per classification.
type PromptLogger interface {
	RecordPrompt(ctx context.Context, entry contractx.PromptLog) error
}

type compiledEntry struct {
	agent    string
	patterns []*regexp.Regexp
}

type Option func(*KeywordClassifier)

func WithThreshold(threshold float64) Option {
	return func(c *KeywordClassifier) {
		c.threshold = threshold
	}
}

func WithPromptLogger(logger PromptLogger) Option {
	return func(c *KeywordClassifier) {
		c.logger = logger
	}
}

type KeywordClassifier struct {
	entries   []compiledEntry
	threshold float64
	logger    PromptLogger
	now       func() time.Time
}

var _ contractx.Classifier = (*KeywordClassifier)(nil)

func New(table []Entry, opts ...Option) (*KeywordClassifier, error) {
	if len(table) == 0 {
		return nil, fmt.Errorf("%w: classifier table is empty", contractx.ErrValidation)
	}

	seen := make(map[string]struct{}, len(table))
	entries := make([]compiledEntry, 0, len(table))
	for _, e := range table {
		agent := strings.TrimSpace(e.Agent)
		if agent == "" {
			return nil, fmt.Errorf("%w: classifier entry without agent name", contractx.ErrValidation)
		}
		if _, dup := seen[agent]; dup {
			return nil, fmt.Errorf("%w: duplicate classifier agent %q", contractx.ErrValidation, agent)
		}
		seen[agent] = struct{}{}

		patterns := make([]*regexp.Regexp, 0, len(e.Keywords))
		for _, kw := range e.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			patterns = append(patterns, wholeWord(kw))
		}
		if len(patterns) == 0 {
			return nil, fmt.Errorf("%w: agent %q has no classifier keywords", contractx.ErrValidation, agent)
		}
		entries = append(entries, compiledEntry{agent: agent, patterns: patterns})
	}

	c := &KeywordClassifier{
		entries:   entries,
		threshold: DefaultThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// wholeWord matches kw between non-word runes. RE2's \b only knows ASCII word
// characters, so letters such as "é" are spelled out as word runes here.
func wholeWord(kw string) *regexp.Regexp {
	const word = `\p{L}\p{N}_`
	return regexp.MustCompile(`(?:^|[^` + word + `])` + regexp.QuoteMeta(kw) + `(?:[^` + word + `]|$)`)
}

// ClassifyPrompt scores every agent by the share of its keywords that appear in the
// prompt as whole words. It has no side effects.
func (c *KeywordClassifier) ClassifyPrompt(prompt string) contractx.Classification {
	lower := strings.ToLower(prompt)

	best := contractx.Classification{Agent: c.entries[0].agent, Confidence: -1}
	for _, e := range c.entries {
		hits := 0
		for _, p := range e.patterns {
			if p.MatchString(lower) {
				hits++
			}
		}
		score := float64(hits) / float64(len(e.patterns))
		if score > best.Confidence {
			best = contractx.Classification{Agent: e.agent, Confidence: score}
		}
	}

	if best.Confidence < c.threshold {
		return contractx.Classification{Agent: contractx.Unclassified, Confidence: best.Confidence}
	}
	return best
}

// Classify runs ClassifyPrompt and logs the decision. Logging failures are swallowed.
func (c *KeywordClassifier) Classify(ctx context.Context, prompt string) contractx.Classification {
	res := c.ClassifyPrompt(prompt)

	log.Info().
		Str("agent", res.Agent).
		Float64("confidence", res.Confidence).
		Msg("classifier: prompt classified")

	if c.logger != nil {
		entry := contractx.PromptLog{
			Prompt:    prompt,
			Agent:     contractx.ClassifierAgentName,
			Response:  fmt.Sprintf("Classified as: %s (score=%.2f)", res.Agent, res.Confidence),
			Timestamp: c.now().UTC(),
		}
		if err := c.logger.RecordPrompt(ctx, entry); err != nil {
			log.Warn().Err(err).Msg("classifier: failed to log classification")
		}
	}

	return res
}
