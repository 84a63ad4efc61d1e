package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/citests/internal/commands"
	"github.com/hay-kot/citests/internal/core"
	"github.com/hay-kot/citests/internal/runner"
	"github.com/hay-kot/citests/pkgs/cll"
	"github.com/hay-kot/citests/pkgs/printer"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "v0.1.0-develop"
	commit  = "HEAD"
	date    = time.Now().Format(time.DateTime)
)

var envvars = cll.EnvWithPrefix(core.EnvPrefix)

const (
	exitOK     = 0
	exitFailed = 1 // a command failed or the run was interrupted
	exitConfig = 2 // configuration or usage error, nothing ran
)

func build() string {
	short := commit
	if len(commit) > 7 {
		short = commit[:7]
	}

	return fmt.Sprintf("%s (%s) %s", version, short, date)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, runner.ErrCommandFailed), errors.Is(err, context.Canceled):
		return exitFailed
	default:
		return exitConfig
	}
}

func main() {
	flags := &core.Flags{}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx := printer.WithWriter(context.Background(), os.Stdout)

	runCmd := commands.NewRunCmd(flags)

	app := &cli.Command{
		EnableShellCompletion: true,
		Name:                  "citests",
		Usage:                 "Run the shell commands described in CITests.yml and stop at the first failure.",
		Version:               build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Aliases:     []string{"l"},
				Usage:       "set the logging verbosity level",
				Value:       "info",
				Sources:     envvars("LOG_LEVEL"),
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to the CI tests configuration file",
				Value:       core.DefaultConfigFile,
				Sources:     envvars("CONFIG", "CONFIG_PATH"),
				Destination: &flags.ConfigFilePath,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			level, err := zerolog.ParseLevel(flags.LogLevel)
			if err != nil {
				return ctx, fmt.Errorf("failed to parse log level: %w", err)
			}

			log.Logger = log.Level(level)

			log.Debug().
				Str("log-level", flags.LogLevel).
				Str("config", flags.ConfigFilePath).
				Msg("global flags")

			return ctx, nil
		},
		OnUsageError: func(ctx context.Context, cmd *cli.Command, err error, isSubcommand bool) error {
			return err
		},
	}

	app = cll.Register(app,
		runCmd,
		commands.NewListCmd(flags),
		commands.NewValidateCmd(flags),
		commands.NewEncryptCmd(flags),
		commands.NewHookCmd(flags),
	)

	// Plain `citests` behaves like `citests run`.
	app.Action = func(ctx context.Context, c *cli.Command) error {
		return runCmd.Run(ctx, c.Args().Slice())
	}

	err := app.Run(ctx, os.Args)
	if err != nil {
		if !errors.Is(err, runner.ErrCommandFailed) {
			printer.Ctx(ctx).FatalError(err)
		}
		log.Debug().Err(err).Msg("run finished with error")
	}

	os.Exit(exitCode(err))
}
