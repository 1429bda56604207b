package main

import (
	"fmt"
	"os"

	"voiceagent/internal/cli"
	"voiceagent/internal/config"
	"voiceagent/internal/logging"
	"voiceagent/internal/output"
)

func main() {
	if err := run(); err != nil {
		formatter := output.NewFormatter(os.Stderr)
		formatter.Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Logging, os.Stderr)
	deps := cli.NewDependencies(cfg, logger)

	return cli.NewRootCmd(deps).Execute()
}
