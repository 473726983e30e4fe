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

const (
	serviceName = "deskflow-api"
	defaultPort = 9091
)

func main() {
	cmd.LoadEnv(log.WithModule(serviceName))

	command := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Serve the workflow automation API",
		EnableShellCompletion: true,
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
		}, cmd.CommonFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			config := cmd.ConfigFromCommand(serviceName, command)
			config.WorkerID = serviceName

			log.Setup(config.LogLevel, config.LogFormat)

			logger := log.WithModule(serviceName)
			logger.InfoContext(ctx, "Initializing deskflow API")

			rt, err := cmd.NewRuntime(ctx, logger, config)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			api := NewAPI(logger, rt)

			if config.EventBus == "memory" {
				// no worker shares an in-memory bus, so mail is relayed here
				if err := api.StartRelay(ctx); err != nil {
					return err
				}
			}

			return api.Start(ctx, command.Int("port"))
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := command.Run(ctx, os.Args)
	if err != nil {
		log.WithModule(serviceName).Error("deskflow-api failed", "error", err)
		os.Exit(1)
	}
}
