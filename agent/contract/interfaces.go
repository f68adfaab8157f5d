package contract

import "context"

// Handler is the executable logic behind an agent.
type Handler func(ctx context.Context, prompt string) (string, error)

// RecordStore is the remote tabular store used for activity and prompt logging.
type RecordStore interface {
	Query(ctx context.Context, table string, filter Filter) ([]Record, error)
	Create(ctx context.Context, table string, fields Fields) (string, error)
	Update(ctx context.Context, table string, recordID string, fields Fields) error
}

// Completer submits a prompt to a hosted language model.
type Completer interface {
	Complete(ctx context.Context, prompt string, system string) (string, error)
}

type ActivityRecorder interface {
	RecordActivity(ctx context.Context, rec ActivityRecord) error
	RecordPrompt(ctx context.Context, entry PromptLog) error
}

type Executor interface {
	Run(ctx context.Context, agentName string, handler Handler, prompt string) RunResult
}

// FailureLoggingExecutor can upsert the Failed activity row itself when every
// attempt of a run failed.
type FailureLoggingExecutor interface {
	Executor
	RunWithFailureLog(ctx context.Context, agentName string, category string, handler Handler, prompt string) RunResult
}

type Classifier interface {
	Classify(ctx context.Context, prompt string) Classification
}
