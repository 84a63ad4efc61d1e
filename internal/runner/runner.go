// Package runner executes a resolved test suite, stopping at the first
// failing command.
package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/hay-kot/citests/internal/core"
	"github.com/hay-kot/citests/pkgs/printer"
	"github.com/rs/zerolog/log"
)

var ErrCommandFailed = errors.New("command failed")

// FailedError identifies the command that stopped the run.
type FailedError struct {
	Group  string // empty for pre-commands
	Test   string
	Result Result
}

func (e *FailedError) Error() string {
	name := "pre_command"
	if e.Group != "" {
		name = e.Group + "." + e.Test
	}

	return fmt.Sprintf("%s: command [%s] failed: %s", name, e.Result.Command, e.Result.Detail())
}

func (e *FailedError) Unwrap() error {
	return ErrCommandFailed
}

// CommandExecutor is the process spawning primitive used by Runner.
type CommandExecutor interface {
	ExecCommand(ctx context.Context, command string) Result
}

// Filter decides whether an enabled test is run. Disabled tests never reach it.
type Filter func(group string, spec core.TestSpec) (bool, error)

type Options struct {
	DryRun bool
	Filter Filter
}

type Runner struct {
	exec    CommandExecutor
	printer *printer.Printer
	opts    Options
}

func New(exec CommandExecutor, p *printer.Printer, opts Options) *Runner {
	return &Runner{
		exec:    exec,
		printer: p,
		opts:    opts,
	}
}

// Planned is one command scheduled for execution.
type Planned struct {
	Group   string // empty for pre-commands
	Test    string
	Command string
}

// Plan lists the commands Run would execute, in order: pre-commands first,
// then every enabled and selected test group by group. Selector errors are
// reported here so that nothing runs when the selection is broken.
func (r *Runner) Plan(suite core.Suite) ([]Planned, error) {
	var plan []Planned

	for _, step := range suite.Steps {
		switch s := step.(type) {
		case core.PreCommands:
			for _, cmd := range s.Commands {
				plan = append(plan, Planned{Command: cmd})
			}
		case core.TestGroup:
			for _, spec := range s.Tests {
				selected, err := r.selected(s.Name, spec)
				if err != nil {
					return nil, err
				}
				if selected {
					plan = append(plan, Planned{Group: s.Name, Test: spec.Name, Command: spec.Command})
				}
			}
		default:
			return nil, fmt.Errorf("unknown step type %T", step)
		}
	}

	return plan, nil
}

func (r *Runner) selected(group string, spec core.TestSpec) (bool, error) {
	if !spec.Enable {
		log.Debug().Str("group", group).Str("test", spec.Name).Msg("test disabled")
		return false, nil
	}

	if r.opts.Filter == nil {
		return true, nil
	}

	ok, err := r.opts.Filter(group, spec)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate selector for %s.%s: %w", group, spec.Name, err)
	}
	if !ok {
		log.Debug().Str("group", group).Str("test", spec.Name).Msg("filtered")
	}

	return ok, nil
}

// Run executes the plan of suite. The returned error wraps ErrCommandFailed
// when a command fails; nothing after that command is run.
func (r *Runner) Run(ctx context.Context, suite core.Suite) error {
	plan, err := r.Plan(suite)
	if err != nil {
		return err
	}

	for _, p := range plan {
		if err := r.execute(ctx, p); err != nil {
			return err
		}
	}

	return nil
}

func (r *Runner) execute(ctx context.Context, p Planned) error {
	command := p.Command

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted before [%s]: %w", command, err)
	}

	if r.opts.DryRun {
		r.printer.DryRun(command)
		return nil
	}

	r.printer.Announce(command)

	res := r.exec.ExecCommand(ctx, command)
	if res.OK() {
		r.printer.Success(command)
		return nil
	}

	r.printer.Failure(command, res.Detail())

	log.Error().
		Str("group", p.Group).
		Str("test", p.Test).
		Int("exit_code", res.ExitCode).
		Bool("timed_out", res.TimedOut).
		Msg("command failed")

	return &FailedError{Group: p.Group, Test: p.Test, Result: res}
}
