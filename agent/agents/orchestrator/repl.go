package orchestrator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/agent-orchestrator/agent/contract"
)

var exitCommands = map[string]bool{
	"exit": true,
	"quit": true,
}

// RunInteractive reads one prompt per line from in until EOF or an exit command,
// writing each result to out. Routed prompts are appended to the prompt log.
func (o *Orchestrator) RunInteractive(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "Orchestrator ready. Type exit or quit to stop.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		prompt := strings.TrimSpace(scanner.Text())
		if exitCommands[strings.ToLower(prompt)] {
			fmt.Fprintln(out, "Exiting.")
			return nil
		}
		if prompt == "" {
			continue
		}

		outcome := o.Route(ctx, prompt)
		fmt.Fprintf(out, "Result:\n%s\n", outcome.Response)

		if outcome.Agent != "" {
			entry := contractx.PromptLog{
				Prompt:    prompt,
				Agent:     outcome.Agent,
				Response:  outcome.Response,
				Timestamp: o.now().UTC(),
			}
			if err := o.recorder.RecordPrompt(ctx, entry); err != nil {
				log.Warn().Err(err).Str("agent", outcome.Agent).Msg("router: failed to log prompt")
			}
		}
	}
	return scanner.Err()
}

// RunOnce routes prompt after checking that agentName names a registered agent.
func (o *Orchestrator) RunOnce(ctx context.Context, agentName string, prompt string) (contractx.Outcome, error) {
	if _, ok := o.Agent(agentName); !ok {
		return contractx.Outcome{}, fmt.Errorf("%w: %q", contractx.ErrUnknownAgent, agentName)
	}
	return o.Route(ctx, prompt), nil
}
