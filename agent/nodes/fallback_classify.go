package routernode

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/agent-orchestrator/agent/contract"
)

// FallbackClassify logs the unrouted prompt and asks the classifier for a
// suggestion. The suggested agent is never executed.
func FallbackClassify(
	ctx context.Context,
	in *GraphState,
	classifier contractx.Classifier,
	recorder contractx.ActivityRecorder,
	now func() time.Time,
) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	if recorder != nil {
		entry := contractx.PromptLog{
			Prompt:    in.Prompt,
			Agent:     contractx.UnroutedAgentName,
			Response:  FallbackMessage,
			Timestamp: now().UTC(),
		}
		if err := recorder.RecordPrompt(ctx, entry); err != nil {
			log.Warn().Err(err).Msg("router: failed to log unrouted prompt")
		}
	}

	if classifier == nil {
		return GraphOutput{Outcome: contractx.Outcome{Response: FallbackMessage}}, nil
	}

	res := classifier.Classify(ctx, in.Prompt)
	if !res.Matched() {
		return GraphOutput{Outcome: contractx.Outcome{
			Response:   FallbackMessage,
			Confidence: res.Confidence,
		}}, nil
	}

	log.Info().Str("agent", res.Agent).Float64("confidence", res.Confidence).Msg("router: suggesting agent")
	return GraphOutput{Outcome: contractx.Outcome{
		Agent:      res.Agent,
		Response:   "Route to: " + res.Agent,
		Suggested:  true,
		Confidence: res.Confidence,
	}}, nil
}
