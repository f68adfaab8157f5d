// Package autoload initialises the global logger from LOG_* variables when imported.
package autoload

import (
	"fmt"
	"os"

	configx "github.com/tanpawarit/agent-orchestrator/pkg/config"
	logx "github.com/tanpawarit/agent-orchestrator/pkg/logger"
)

func init() {
	conf, err := configx.Load[logx.Config]("LOG", os.Getenv("LOG_ENV_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: falling back to defaults: %v\n", err)
		logx.Init()
		return
	}
	logx.Init(*conf)
}
