package specialist

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/agent-orchestrator/agent/contract"
)

// InvalidPromptMessage is returned by agents that refuse blank prompts.
const InvalidPromptMessage = "Error: Invalid prompt. Please provide a valid string."

type MilestoneMarker interface {
	MarkDone(ctx context.Context, name string) error
}

type PromptRecorder interface {
	RecordPrompt(ctx context.Context, entry contractx.PromptLog) error
}

// scriptedAgent describes one scripted agent. When the prompt contains trigger the agent
// completes milestone; otherwise it acknowledges the prompt, asking completer first
// when one is set.
type scriptedAgent struct {
	title       string
	trigger     string
	milestone   string
	rejectBlank bool

	completer contractx.Completer
	system    string
}

func (s scriptedAgent) handler(milestones MilestoneMarker) contractx.Handler {
	return func(ctx context.Context, prompt string) (string, error) {
		if s.rejectBlank && strings.TrimSpace(prompt) == "" {
			log.Warn().Str("agent", s.title).Msg("specialist: invalid prompt")
			return InvalidPromptMessage, nil
		}

		if s.trigger != "" && strings.Contains(strings.ToLower(prompt), s.trigger) {
			if milestones != nil {
				if err := milestones.MarkDone(ctx, s.milestone); err != nil {
					log.Warn().Err(err).Str("agent", s.title).Str("milestone", s.milestone).Msg("specialist: milestone update failed")
				}
			}
			return fmt.Sprintf("%s agent completed: %s", s.title, prompt), nil
		}

		if s.completer != nil {
			out, err := s.completer.Complete(ctx, prompt, s.system)
			if err != nil {
				return "", fmt.Errorf("%s agent completion: %w", s.title, err)
			}
			return out, nil
		}

		return fmt.Sprintf("%s agent responding to: %s", s.title, prompt), nil
	}
}

// loggerHandler writes the prompt and its acknowledgement to the prompt log before
// replying.
func loggerHandler(recorder PromptRecorder, agentName string) contractx.Handler {
	return func(ctx context.Context, prompt string) (string, error) {
		reply := fmt.Sprintf("Airtable Logger agent responding to: %s", prompt)
		if recorder != nil {
			if err := recorder.RecordPrompt(ctx, contractx.PromptLog{
				Prompt:   prompt,
				Agent:    agentName,
				Response: reply,
			}); err != nil {
				log.Warn().Err(err).Str("agent", agentName).Msg("specialist: failed to log prompt")
			}
		}
		return reply, nil
	}
}
