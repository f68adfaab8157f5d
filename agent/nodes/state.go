package routernode

import (
	"errors"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/agent-orchestrator/agent/contract"
)

// Graph node names.
const (
	NodeScanKeywords     = "scan_keywords"
	NodeDispatchAgent    = "dispatch_agent"
	NodeFallbackClassify = "fallback_classify"
)

// FallbackMessage is the reply for prompts no agent claims.
const FallbackMessage = "I don't recognize that request. Try again with a clearer instruction."

type GraphInput struct {
	Prompt string
}

type GraphOutput struct {
	Outcome contractx.Outcome
}

type GraphState struct {
	Prompt  string
	Lowered string
	Match   *contractx.Agent
}

// BookkeepingFailure is the outcome for an error raised around the handler run.
func BookkeepingFailure(cause error) contractx.Outcome {
	return contractx.Outcome{
		Response: "error occurred: " + FailureText(cause),
		Status:   contractx.StatusError,
		Err:      fmt.Errorf("%w: %w", contractx.ErrBookkeeping, cause),
	}
}

// FailureText is the first line of the innermost error in cause's chain. Wrapped
// graph errors carry node paths and stack dumps that callers should not see.
func FailureText(cause error) string {
	if cause == nil {
		return ""
	}
	root := cause
	for next := errors.Unwrap(root); next != nil; next = errors.Unwrap(root) {
		root = next
	}
	line, _, _ := strings.Cut(root.Error(), "\n")
	line = strings.TrimRight(strings.TrimSpace(line), ",")
	if line == "" {
		return "internal error"
	}
	return line
}

// MatchAgent returns the first agent whose keyword occurs in the lower-cased prompt.
func MatchAgent(agents []contractx.Agent, lowered string) (contractx.Agent, bool) {
	for _, a := range agents {
		kw := a.MatchKeyword()
		if kw != "" && strings.Contains(lowered, kw) {
			return a, true
		}
	}
	return contractx.Agent{}, false
}
