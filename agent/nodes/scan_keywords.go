package routernode

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/agent-orchestrator/agent/contract"
)

func ScanKeywords(in GraphInput, agents []contractx.Agent) (*GraphState, error) {
	state := &GraphState{
		Prompt:  in.Prompt,
		Lowered: strings.ToLower(in.Prompt),
	}
	if agent, ok := MatchAgent(agents, state.Lowered); ok {
		state.Match = &agent
		log.Info().Str("agent", agent.DisplayName()).Str("keyword", agent.MatchKeyword()).Msg("router: keyword matched")
	}
	return state, nil
}

// NextNode picks the branch taken after the keyword scan.
func NextNode(_ context.Context, in *GraphState) (string, error) {
	if in == nil {
		return "", fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Match != nil {
		return NodeDispatchAgent, nil
	}
	return NodeFallbackClassify, nil
}
