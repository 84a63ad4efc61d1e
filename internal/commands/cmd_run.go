package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hay-kot/citests/internal/core"
	"github.com/hay-kot/citests/internal/runner"
	"github.com/hay-kot/citests/pkgs/printer"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

type RunCmd struct {
	coreFlags *core.Flags
	flags     struct {
		DryRun  bool
		Select  bool
		Shell   string
		Timeout time.Duration
	}
	expr string
}

func NewRunCmd(coreFlags *core.Flags) *RunCmd {
	rc := &RunCmd{
		coreFlags: coreFlags,
	}
	rc.flags.Timeout = -1 // keep exec.timeout from the config
	return rc
}

func (rc *RunCmd) Register(app *cli.Command) *cli.Command {
	cmd := &cli.Command{
		Name:      "run",
		Usage:     "Run the pre-commands and every enabled test, stopping at the first failure",
		ArgsUsage: "[expression]",
		Description: `Run the commands defined in the CITests.yml configuration file.

 Pre-commands always run first, in order. Afterwards every enabled test runs
 group by group in the order they are declared. The run stops at the first
 command that fails and exits with status 1.

 Examples:
	 citests run                                  # Run everything that is enabled
	 citests run +unit                            # Only tests in the 'unit' group
	 citests run '!slow'                          # Everything except the 'slow' group
	 citests run '@fast'                          # Tests matched by the 'fast' macro
	 citests run 'name startsWith "lab"'          # Tests whose name starts with 'lab'
	 citests run --select                         # Pick tests interactively
	 citests run --dry-run                        # Print commands without running them

 Expression variables:
	 - group:   Test group name
	 - name:    Test name
	 - command: Shell command of the test`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "dry-run",
				Aliases:     []string{"n"},
				Usage:       "print the commands that would run without executing them",
				Destination: &rc.flags.DryRun,
			},
			&cli.BoolFlag{
				Name:        "select",
				Aliases:     []string{"s"},
				Usage:       "choose the tests to run interactively",
				Destination: &rc.flags.Select,
			},
			&cli.StringFlag{
				Name:        "shell",
				Usage:       "override the shell commands are run with",
				Sources:     envvars("SHELL"),
				Destination: &rc.flags.Shell,
			},
			&cli.DurationFlag{
				Name:        "timeout",
				Usage:       "override the per-command timeout (0 disables it)",
				Value:       -1,
				Destination: &rc.flags.Timeout,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return rc.Run(ctx, c.Args().Slice())
		},
	}

	app.Commands = append(app.Commands, cmd)
	return app
}

// Run executes the suite with args joined as the selector expression.
func (rc *RunCmd) Run(ctx context.Context, args []string) error {
	rc.expr = strings.Join(args, " ")

	log.Debug().
		Bool("dry-run", rc.flags.DryRun).
		Bool("select", rc.flags.Select).
		Str("expr", rc.expr).
		Msg("run cmd")

	return rc.run(ctx)
}

func (rc *RunCmd) run(ctx context.Context) error {
	cfg, err := core.Load(rc.coreFlags.ConfigFilePath)
	if err != nil {
		return err
	}

	if rc.flags.Shell != "" {
		cfg.Exec.Shell = rc.flags.Shell
	}
	if rc.flags.Timeout >= 0 {
		cfg.Exec.Timeout = rc.flags.Timeout
	}

	filter, err := NewSelector(rc.expr, cfg.Macros)
	if err != nil {
		return err
	}

	if rc.flags.Select {
		form, picked := selectForm(cfg.Suite)
		if form == nil {
			fmt.Println("No enabled tests available")
		} else {
			if err := form.Run(); err != nil {
				return err
			}
			filter = andFilters(filter, picked)
		}
	}

	env, err := cfg.Environ()
	if err != nil {
		return err
	}

	executor := runner.NewExecutor(cfg.Exec, env)
	executor.Spinner = stdoutIsTerminal()

	// Interrupts kill the running command and stop the run.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := runner.New(executor, printer.Ctx(ctx), runner.Options{
		DryRun: rc.flags.DryRun,
		Filter: filter,
	})

	return r.Run(ctx, cfg.Suite)
}
