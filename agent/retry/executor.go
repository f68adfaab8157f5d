// Package retry runs agent handlers with a bounded number of attempts and a fixed
// delay between them.
package retry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	contractx "github.com/tanpawarit/agent-orchestrator/agent/contract"
	tracerx "github.com/tanpawarit/agent-orchestrator/pkg/tracer"
)

const (
	DefaultRetries = 2
	DefaultDelay   = time.Second
)

type Config struct {
	Retries        int           `envconfig:"RETRY_COUNT" default:"2"`
	Delay          time.Duration `envconfig:"RETRY_DELAY" default:"1s"`
	AttemptTimeout time.Duration `envconfig:"ATTEMPT_TIMEOUT" default:"0s"`
}

// FailureRecorder receives the terminal failure of a run when the caller asked for it.
type FailureRecorder interface {
	RecordActivity(ctx context.Context, rec contractx.ActivityRecord) error
}

type Option func(*Executor)

// WithSleep replaces the delay function. Tests use it to avoid real waits.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) {
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

func WithFailureRecorder(rec FailureRecorder) Option {
	return func(e *Executor) {
		e.failures = rec
	}
}

type Executor struct {
	retries        int
	delay          time.Duration
	attemptTimeout time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
	failures       FailureRecorder
	now            func() time.Time
}

var _ contractx.FailureLoggingExecutor = (*Executor)(nil)

func New(cfg Config, opts ...Option) (*Executor, error) {
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("%w: retries must be >= 0, got %d", contractx.ErrValidation, cfg.Retries)
	}
	if cfg.Delay < 0 {
		return nil, fmt.Errorf("%w: retry delay must be >= 0", contractx.ErrValidation)
	}
	if cfg.AttemptTimeout < 0 {
		return nil, fmt.Errorf("%w: attempt timeout must be >= 0", contractx.ErrValidation)
	}

	e := &Executor{
		retries:        cfg.Retries,
		delay:          cfg.Delay,
		attemptTimeout: cfg.AttemptTimeout,
		sleep:          sleepContext,
		now:            time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// Attempts is the total number of handler invocations a run may make.
func (e *Executor) Attempts() int {
	return e.retries + 1
}

// Run invokes handler until it yields a non-blank result or the attempts run out.
func (e *Executor) Run(ctx context.Context, agentName string, handler contractx.Handler, prompt string) contractx.RunResult {
	res, _ := e.run(ctx, agentName, handler, prompt)
	return res
}

func (e *Executor) run(
	ctx context.Context,
	agentName string,
	handler contractx.Handler,
	prompt string,
) (contractx.RunResult, error) {
	total := e.Attempts()

	var lastErr error
	attempts := 0
	for n := 1; n <= total; n++ {
		attempts = n
		log.Debug().Str("agent", agentName).Int("attempt", n).Msg("retry: attempt started")

		out, err := e.attempt(ctx, agentName, handler, prompt, n)
		if err == nil {
			log.Debug().Str("agent", agentName).Int("attempt", n).Msg("retry: attempt succeeded")
			return contractx.RunResult{Success: true, Output: out, Attempts: n}, nil
		}

		lastErr = err
		log.Debug().Err(err).Str("agent", agentName).Int("attempt", n).Msg("retry: attempt failed")

		if n == total {
			break
		}
		if err := e.sleep(ctx, e.delay); err != nil {
			lastErr = err
			break
		}
	}

	log.Warn().Err(lastErr).Str("agent", agentName).Int("attempts", attempts).Msg("retry: all attempts failed")
	return contractx.RunResult{
		Success:  false,
		Output:   fmt.Sprintf("All attempts failed: %v", lastErr),
		Attempts: attempts,
		Err:      fmt.Errorf("%w: %w", contractx.ErrAllAttemptsFailed, lastErr),
	}, lastErr
}

// RunWithFailureLog behaves like Run and additionally upserts a Failed activity row
// when every attempt failed and a FailureRecorder is configured.
func (e *Executor) RunWithFailureLog(
	ctx context.Context,
	agentName string,
	category string,
	handler contractx.Handler,
	prompt string,
) contractx.RunResult {
	res, cause := e.run(ctx, agentName, handler, prompt)
	if res.Success || e.failures == nil || agentName == "" || category == "" {
		return res
	}

	rec := contractx.ActivityRecord{
		AgentName:     agentName,
		Category:      category,
		LastRun:       e.now().UTC(),
		Status:        contractx.StatusFailed,
		ResultSummary: contractx.Summarize(cause.Error()),
	}
	if err := e.failures.RecordActivity(ctx, rec); err != nil {
		log.Warn().Err(err).Str("agent", agentName).Msg("retry: failed to record terminal failure")
	}
	return res
}

func (e *Executor) attempt(
	ctx context.Context,
	agentName string,
	handler contractx.Handler,
	prompt string,
	n int,
) (string, error) {
	ctx, span := tracerx.StartSpan(ctx, "retry.attempt",
		trace.WithAttributes(
			tracerx.StringAttr("agent.name", agentName),
			tracerx.IntAttr("retry.attempt", n),
		),
	)
	defer span.End()

	if handler == nil {
		err := fmt.Errorf("%w: handler for %s is unavailable", contractx.ErrAgentNotCallable, agentName)
		tracerx.RecordError(span, err)
		return "", err
	}

	attemptCtx := ctx
	if e.attemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, e.attemptTimeout)
		defer cancel()
	}

	out, err := invoke(attemptCtx, handler, prompt)
	if err == nil && attemptCtx.Err() != nil {
		err = attemptCtx.Err()
	}
	if err == nil && strings.TrimSpace(out) == "" {
		err = contractx.ErrEmptyResult
	}
	if err != nil {
		tracerx.RecordError(span, err)
		return "", err
	}

	tracerx.SetOK(span)
	return out, nil
}

func invoke(ctx context.Context, handler contractx.Handler, prompt string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = ""
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, prompt)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
