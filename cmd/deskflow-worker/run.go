package main

import (
	"context"
	"fmt"

	"github.com/dukex/deskflow/pkg/cmd"
	"github.com/dukex/deskflow/pkg/log"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Consume events and run workflow executions",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:    "queue-redis-url",
				Usage:   "Redis URL of the event intake queue; empty disables it",
				Sources: cli.EnvVars("QUEUE_REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "queue-name",
				Usage:   "Redis list events are pushed onto",
				Value:   "deskflow:events",
				Sources: cli.EnvVars("QUEUE_NAME"),
			},
			&cli.StringFlag{
				Name:    "schedules-file",
				Usage:   "YAML file of cron schedules emitting time_based events; empty disables them",
				Sources: cli.EnvVars("SCHEDULES_FILE"),
			},
		}, cmd.CommonFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			config := cmd.ConfigFromCommand(serviceName, command)

			config.WorkerID = command.String("worker-id")
			if config.WorkerID == "" {
				config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
			}

			log.Setup(config.LogLevel, config.LogFormat)

			logger := log.WithModule(serviceName).With("worker_id", config.WorkerID)
			logger.InfoContext(ctx, "Initializing deskflow worker")

			rt, err := cmd.NewRuntime(ctx, logger, config)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			worker := NewWorker(logger, rt, WorkerOptions{
				QueueRedisURL: command.String("queue-redis-url"),
				QueueName:     command.String("queue-name"),
				SchedulesFile: command.String("schedules-file"),
			})

			if err := worker.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()

			return worker.Stop(context.WithoutCancel(ctx))
		},
	}
}
