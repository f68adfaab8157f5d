package contract

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	UnroutedAgentName   = "unrouted_agent"
	ClassifierAgentName = "classifier_agent"
	Unclassified        = "unclassified"

	DefaultCategory   = "General"
	MaxSummaryRunes   = 300
	truncationEllipse = "..."
)

type ActivityStatus string

const (
	StatusSuccess ActivityStatus = "Success"
	StatusFailed  ActivityStatus = "Failed"
	StatusError   ActivityStatus = "Error"
)

// Agent binds a routing keyword to a handler. A nil Handler is a configuration error
// surfaced at routing time.
type Agent struct {
	Key     string
	Name    string
	Keyword string
	Handler Handler
}

// MatchKeyword returns the lower-cased substring searched for in prompts.
func (a Agent) MatchKeyword() string {
	if kw := strings.TrimSpace(a.Keyword); kw != "" {
		return strings.ToLower(kw)
	}
	return strings.ToLower(strings.TrimSpace(a.Key))
}

// Category is the key with its first letter upper-cased.
func (a Agent) Category() string {
	return Capitalize(a.Key)
}

// DisplayName falls back to the key when no name is configured.
func (a Agent) DisplayName() string {
	if name := strings.TrimSpace(a.Name); name != "" {
		return name
	}
	return a.Key
}

type ActivityRecord struct {
	AgentName     string
	Category      string
	LastRun       time.Time
	Status        ActivityStatus
	ResultSummary string
}

type PromptLog struct {
	Prompt    string
	Agent     string
	Response  string
	Timestamp time.Time
}

type RunResult struct {
	Success  bool
	Output   string
	Attempts int
	Err      error
}

type Classification struct {
	Agent      string
	Confidence float64
}

// Matched reports whether the classification names a concrete agent.
func (c Classification) Matched() bool {
	return c.Agent != "" && c.Agent != Unclassified
}

// Outcome is what the router hands back for one prompt. Agent is empty when no agent
// handled or was suggested for the prompt.
type Outcome struct {
	Agent      string
	Response   string
	Suggested  bool
	Status     ActivityStatus
	Attempts   int
	Confidence float64
	Err        error
}

type Fields map[string]any

type Record struct {
	ID          string
	CreatedTime time.Time
	Fields      Fields
}

// String returns the field value as text, or "" when it is absent or not a string.
func (r Record) String(field string) string {
	v, ok := r.Fields[field].(string)
	if !ok {
		return ""
	}
	return v
}

// Filter selects records whose Field equals Value. A zero Filter selects everything.
type Filter struct {
	Field      string
	Value      string
	MaxRecords int
}

func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Field) == ""
}

// Summarize caps text at MaxSummaryRunes, replacing the tail with "..." when cut.
func Summarize(text string) string {
	if utf8.RuneCountInString(text) <= MaxSummaryRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:MaxSummaryRunes-len(truncationEllipse)]) + truncationEllipse
}

func Capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
