package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dukex/deskflow/pkg/cmd"
	"github.com/dukex/deskflow/pkg/helpdesk/memory"
	"github.com/dukex/deskflow/pkg/mail"
	"github.com/dukex/deskflow/pkg/scheduler"
	"github.com/dukex/deskflow/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

var errInvalidFiles = errors.New("invalid files found")

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Validate workflow definition files and schedules without running them",
		ArgsUsage: "<file or directory>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "plugins-path",
				Usage:   "Path to the directory containing action plugins",
				Value:   "./plugins",
				Sources: cli.EnvVars("PLUGINS_PATH"),
			},
			&cli.StringFlag{
				Name:  "schedules-file",
				Usage: "Also validate this schedules file",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := slog.With("module", serviceName, "action", "validate")

			directory := memory.NewDirectory()

			registry, err := cmd.NewRegistry(ctx, logger, command.String("plugins-path"), cmd.Helpdesk{
				Tickets: directory,
				Agents:  directory,
				Mailer:  mail.NewLogMailer(logger),
			}, cmd.ActionTimeouts{})
			if err != nil {
				return err
			}

			validator := workflow.NewValidator(registry.HasAction)

			return validatePaths(command.Root().Writer, validator, command.Args().Slice(), command.String("schedules-file"))
		},
	}
}

// validatePaths reports every file and returns errInvalidFiles when any of them failed.
func validatePaths(out io.Writer, validator *workflow.Validator, paths []string, schedulesFile string) error {
	if out == nil {
		out = os.Stdout
	}

	invalid := 0

	for _, path := range paths {
		files, err := definitionFiles(path)
		if err != nil {
			fmt.Fprintf(out, "INVALID %s: %v\n", path, err)
			invalid++

			continue
		}

		for _, file := range files {
			definition, err := workflow.LoadDefinition(file)
			if err == nil {
				err = validator.Validate(definition)
			}

			if err != nil {
				fmt.Fprintf(out, "INVALID %s: %v\n", file, err)
				invalid++

				continue
			}

			fmt.Fprintf(out, "OK      %s (%s, %d steps)\n", file, definition.ID, len(definition.Steps))
		}
	}

	if schedulesFile != "" {
		schedules, err := scheduler.LoadFile(schedulesFile)
		if err != nil {
			fmt.Fprintf(out, "INVALID %s: %v\n", schedulesFile, err)
			invalid++
		} else {
			fmt.Fprintf(out, "OK      %s (%d schedules)\n", schedulesFile, len(schedules))
		}
	}

	if invalid > 0 {
		return fmt.Errorf("%w: %d", errInvalidFiles, invalid)
	}

	return nil
}

// definitionFiles expands a directory into its definition files.
func definitionFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var files []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if _, err := workflow.FormatOf(entry.Name()); err != nil {
			continue
		}

		files = append(files, path+string(os.PathSeparator)+entry.Name())
	}

	return files, nil
}
