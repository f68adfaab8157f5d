package routernode

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/agent-orchestrator/agent/contract"
)

// DispatchAgent runs the matched agent through the executor and upserts its activity
// row. A panic outside the executor is recorded as an Error row.
func DispatchAgent(
	ctx context.Context,
	in *GraphState,
	executor contractx.Executor,
	recorder contractx.ActivityRecorder,
	now func() time.Time,
) (out GraphOutput, err error) {
	if in == nil || in.Match == nil {
		return GraphOutput{}, fmt.Errorf("%w: no matched agent in graph state", contractx.ErrValidation)
	}
	agent := *in.Match

	if agent.Handler == nil {
		log.Warn().Str("agent", agent.Key).Msg("router: matched agent has no handler")
		return GraphOutput{Outcome: contractx.Outcome{
			Response: fmt.Sprintf("%s is not callable", agent.Key),
			Err:      fmt.Errorf("%w: %w: %s", contractx.ErrConfiguration, contractx.ErrAgentNotCallable, agent.Key),
		}}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			cause := fmt.Errorf("%v", r)
			log.Error().Err(cause).Str("agent", agent.DisplayName()).Msg("router: bookkeeping failed")
			RecordActivity(ctx, recorder, contractx.ActivityRecord{
				AgentName:     agent.DisplayName(),
				Category:      agent.Category(),
				LastRun:       now().UTC(),
				Status:        contractx.StatusError,
				ResultSummary: FailureText(cause),
			})
			out, err = GraphOutput{Outcome: BookkeepingFailure(cause)}, nil
		}
	}()

	var res contractx.RunResult
	if fl, ok := executor.(contractx.FailureLoggingExecutor); ok {
		res = fl.RunWithFailureLog(ctx, agent.DisplayName(), agent.Category(), agent.Handler, in.Prompt)
	} else {
		res = executor.Run(ctx, agent.DisplayName(), agent.Handler, in.Prompt)
	}

	status := contractx.StatusSuccess
	if !res.Success {
		status = contractx.StatusFailed
	}
	writeActivity(ctx, recorder, contractx.ActivityRecord{
		AgentName:     agent.DisplayName(),
		Category:      agent.Category(),
		LastRun:       now().UTC(),
		Status:        status,
		ResultSummary: contractx.Summarize(res.Output),
	})

	return GraphOutput{Outcome: contractx.Outcome{
		Agent:    agent.DisplayName(),
		Response: res.Output,
		Status:   status,
		Attempts: res.Attempts,
		Err:      res.Err,
	}}, nil
}

// RecordActivity upserts rec and only warns when the store rejects it or the
// recorder panics.
func RecordActivity(ctx context.Context, recorder contractx.ActivityRecorder, rec contractx.ActivityRecord) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("agent", rec.AgentName).Str("status", string(rec.Status)).
				Str("panic", fmt.Sprint(r)).Msg("router: activity recorder panicked")
		}
	}()
	writeActivity(ctx, recorder, rec)
}

// writeActivity is RecordActivity without the recover. A panic here reaches the
// dispatch node and is reported as a bookkeeping failure.
func writeActivity(ctx context.Context, recorder contractx.ActivityRecorder, rec contractx.ActivityRecord) {
	if recorder == nil {
		return
	}
	if err := recorder.RecordActivity(ctx, rec); err != nil {
		log.Warn().Err(err).Str("agent", rec.AgentName).Str("status", string(rec.Status)).Msg("router: failed to record activity")
	}
}
