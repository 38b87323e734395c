// surfbot renders streaming assistant conversations in the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/linanwx/surfbot/cmd"
	"github.com/linanwx/surfbot/config"
	"github.com/linanwx/surfbot/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.DefaultConfig()
	}
	configDir, _ := config.ConfigDir()
	if err := logger.Init(cfg.BuildLoggerConfig(), configDir); err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
	}
	cmd.Execute()
}
