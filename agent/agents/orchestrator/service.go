package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/agent-orchestrator/agent/contract"
	nodex "github.com/tanpawarit/agent-orchestrator/agent/nodes"
	tracerx "github.com/tanpawarit/agent-orchestrator/pkg/tracer"
)

// Orchestrator routes prompts to agents by keyword. It handles one prompt at a time;
// overlapping Route calls for the same agent race on the activity row.
type Orchestrator struct {
	agents     []contractx.Agent
	byName     map[string]contractx.Agent
	executor   contractx.Executor
	recorder   contractx.ActivityRecorder
	classifier contractx.Classifier

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now func() time.Time
}

func New(
	agents []contractx.Agent,
	executor contractx.Executor,
	recorder contractx.ActivityRecorder,
	classifier contractx.Classifier,
) (*Orchestrator, error) {
	if len(agents) == 0 {
		return nil, fmt.Errorf("%w: at least one agent is required", contractx.ErrConfiguration)
	}
	if executor == nil {
		return nil, errors.New("executor is required")
	}
	if recorder == nil {
		return nil, errors.New("activity recorder is required")
	}
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}

	byName := make(map[string]contractx.Agent, len(agents))
	seen := make(map[string]bool, len(agents))
	for _, a := range agents {
		key := strings.TrimSpace(a.Key)
		if key == "" {
			return nil, fmt.Errorf("%w: agent key is empty", contractx.ErrConfiguration)
		}
		if seen[key] {
			return nil, fmt.Errorf("%w: duplicate agent key %q", contractx.ErrConfiguration, key)
		}
		seen[key] = true
		byName[key] = a
		byName[a.DisplayName()] = a
	}

	o := &Orchestrator{
		agents:     append([]contractx.Agent(nil), agents...),
		byName:     byName,
		executor:   executor,
		recorder:   recorder,
		classifier: classifier,
		now:        time.Now,
	}

	graphRunner, err := o.compileRouteGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// Route dispatches prompt to the first agent whose keyword it contains, or falls back
// to the classifier. It never fails; problems are reported through Outcome.Err.
func (o *Orchestrator) Route(ctx context.Context, prompt string) contractx.Outcome {
	ctx, span := tracerx.StartSpan(ctx, "router.route")
	defer span.End()

	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{Prompt: prompt})
	if err != nil {
		tracerx.RecordError(span, err)
		log.Error().Err(err).Msg("router: route graph failed")

		if agent, ok := nodex.MatchAgent(o.agents, strings.ToLower(prompt)); ok {
			nodex.RecordActivity(ctx, o.recorder, contractx.ActivityRecord{
				AgentName:     agent.DisplayName(),
				Category:      agent.Category(),
				LastRun:       o.now().UTC(),
				Status:        contractx.StatusError,
				ResultSummary: nodex.FailureText(err),
			})
		}
		return nodex.BookkeepingFailure(err)
	}

	outcome := out.Outcome
	span.SetAttributes(
		tracerx.StringAttr("router.agent", outcome.Agent),
		tracerx.IntAttr("router.attempts", outcome.Attempts),
		tracerx.Float64Attr("router.confidence", outcome.Confidence),
	)
	if outcome.Err != nil {
		tracerx.RecordError(span, outcome.Err)
	} else {
		tracerx.SetOK(span)
	}
	return outcome
}

// Agent looks an agent up by routing key or display name.
func (o *Orchestrator) Agent(name string) (contractx.Agent, bool) {
	a, ok := o.byName[strings.TrimSpace(name)]
	return a, ok
}

// Agents returns the routing table in match order.
func (o *Orchestrator) Agents() []contractx.Agent {
	return append([]contractx.Agent(nil), o.agents...)
}
