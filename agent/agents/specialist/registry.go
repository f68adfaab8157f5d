package specialist

import (
	contractx "github.com/tanpawarit/agent-orchestrator/agent/contract"
	promptx "github.com/tanpawarit/agent-orchestrator/agent/prompt"
)

// Deps are the collaborators of the built-in agents. Every field is optional.
type Deps struct {
	Milestones MilestoneMarker
	Prompts    PromptRecorder

	IdeasCompleter   contractx.Completer
	SummaryCompleter contractx.Completer
}

// DefaultAgents returns the built-in routing table. Order decides which agent wins
// when a prompt contains several keywords.
func DefaultAgents(deps Deps) []contractx.Agent {
	system := promptx.LoadPromptSet().ThinkTank

	scripted := func(key, name string, s scriptedAgent) contractx.Agent {
		return contractx.Agent{Key: key, Name: name, Handler: s.handler(deps.Milestones)}
	}

	return []contractx.Agent{
		scripted("trip", "travel_agent", scriptedAgent{
			title: "Travel", trigger: "plan trip to tokyo", milestone: "Plan trip to Tokyo",
		}),
		{
			Key:     "log",
			Name:    "airtable_logger_agent",
			Handler: loggerHandler(deps.Prompts, "airtable_logger_agent"),
		},
		scripted("summarize", "summarize_agent", scriptedAgent{
			title: "Summary", trigger: "summarize project milestones", milestone: "Summarize project milestones",
			completer: deps.SummaryCompleter, system: system,
		}),
		scripted("pm", "pm_agent", scriptedAgent{
			title: "PM", trigger: "finalize mvp feature list", milestone: "Finalize MVP feature list",
			rejectBlank: true,
		}),
		scripted("director", "pm_director_agent", scriptedAgent{
			title: "PM Director", trigger: "oversee project delivery", milestone: "Oversee project delivery",
			rejectBlank: true,
		}),
		scripted("idea", "ideas_agent", scriptedAgent{
			title: "Ideas", trigger: "design classifier agent", milestone: "Design classifier agent",
			completer: deps.IdeasCompleter, system: system,
		}),
		scripted("infra", "ai_infra_agent", scriptedAgent{
			title: "AI Infra", trigger: "deploy infrastructure", milestone: "Deploy infrastructure",
		}),
		scripted("developer", "ai_dev_agent", scriptedAgent{
			title: "AI Dev", trigger: "implement retry button", milestone: "Implement Retry button",
		}),
		scripted("orchestrate", "orchestrator_agent", scriptedAgent{
			title: "Orchestrator", trigger: "build orchestration router", milestone: "Build orchestration router",
		}),
	}
}
