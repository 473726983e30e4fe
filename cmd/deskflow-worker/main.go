package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/deskflow/pkg/cmd"
	"github.com/dukex/deskflow/pkg/log"
	cli "github.com/urfave/cli/v3"
)

const serviceName = "deskflow-worker"

func main() {
	cmd.LoadEnv(log.WithModule(serviceName))

	command := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Run workflow executions for helpdesk events",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			NewRunCommand(),
			NewValidateCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := command.Run(ctx, os.Args)
	if err != nil {
		log.WithModule(serviceName).Error("deskflow-worker failed", "error", err)
		os.Exit(1)
	}
}
