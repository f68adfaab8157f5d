package prompt

import (
	_ "embed"
	"strings"
)

//go:embed template/think_tank.txt
var thinkTankRaw string

// PromptSet holds loaded prompt content.
type PromptSet struct {
	ThinkTank string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		ThinkTank: strings.TrimSpace(thinkTankRaw),
	}
}
