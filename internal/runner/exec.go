package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/hay-kot/citests/internal/core"
	"github.com/rs/zerolog/log"
)

// Result is the outcome of one command. Commands that could not be started
// and commands that exited non-zero share this shape.
type Result struct {
	Command  string
	ExitCode int // -1 when the process never exited normally
	Stdout   string
	Stderr   string
	Err      error
	Duration time.Duration
	TimedOut bool
}

// OK reports whether the command ran and exited with status 0.
func (r Result) OK() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Detail is the error text shown for a failed command.
func (r Result) Detail() string {
	if s := strings.TrimSpace(r.Stderr); s != "" {
		return s
	}

	switch {
	case r.TimedOut:
		return fmt.Sprintf("timed out after %s", r.Duration.Round(time.Millisecond))
	case r.Err != nil:
		return r.Err.Error()
	case r.ExitCode != 0:
		return fmt.Sprintf("exit status %d", r.ExitCode)
	}

	return ""
}

// errSpinnerAborted marks a command whose spinner stopped before the command
// reported back.
var errSpinnerAborted = errors.New("spinner aborted")

// Executor spawns commands through a shell, one at a time.
type Executor struct {
	Shell   string
	Dir     string
	Env     []string      // appended to the current process environment
	Timeout time.Duration // zero disables the timeout

	// Spinner shows a spinner while the command runs. Only enable it when
	// stdout is a terminal.
	Spinner bool

	spinnerOut io.Writer // nil means the spinner default
}

func NewExecutor(cfg core.ExecConfig, env []string) *Executor {
	shell := cfg.Shell
	if shell == "" {
		shell = core.DefaultShell
	}

	return &Executor{
		Shell:   shell,
		Dir:     cfg.Workdir,
		Env:     env,
		Timeout: cfg.Timeout,
	}
}

var spinnerStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("10")) // Green

// ExecCommand runs command as `<shell> -c <command>` and waits for it to exit.
func (e *Executor) ExecCommand(ctx context.Context, command string) Result {
	if !e.Spinner {
		return e.run(ctx, command)
	}

	return e.runWithSpinner(ctx, command)
}

// runWithSpinner runs the command in its own goroutine while the spinner
// waits on it. The result is only read after that goroutine has returned, and
// a spinner that stops early kills the command and fails it.
func (e *Executor) runWithSpinner(ctx context.Context, command string) Result {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan Result, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		done <- e.run(ctx, command)
	}()

	spin := spinner.New().
		Type(spinner.Line).
		Style(spinnerStyle).
		Title(" " + command).
		Context(ctx).
		ActionWithErr(func(sctx context.Context) error {
			select {
			case <-finished:
				return nil
			case <-sctx.Done():
				return sctx.Err()
			}
		})
	if e.spinnerOut != nil {
		spin = spin.Output(e.spinnerOut)
	}

	spinErr := spin.Run()
	if spinErr == nil {
		return <-done
	}

	log.Debug().Err(spinErr).Str("command", command).Msg("spinner stopped early")
	cancel()

	res := <-done
	if res.OK() {
		res.ExitCode = -1
		res.Err = fmt.Errorf("%w: %w", errSpinnerAborted, spinErr)
	}

	return res
}

func (e *Executor) run(ctx context.Context, command string) Result {
	res := Result{Command: command, ExitCode: -1}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, e.Shell, "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Dir = e.Dir
	cmd.Env = append(os.Environ(), e.Env...)
	// Background children of the shell can hold the pipes open after it is
	// killed.
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	err := cmd.Run()
	res.Duration = time.Since(start)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		res.Err = err
	default:
		res.Err = err
	}

	if ctxErr := ctx.Err(); ctxErr != nil && !res.OK() {
		res.TimedOut = errors.Is(ctxErr, context.DeadlineExceeded)
		res.Err = fmt.Errorf("%w: %w", ctxErr, err)
	}

	log.Debug().
		Str("command", command).
		Int("exit_code", res.ExitCode).
		Dur("duration", res.Duration).
		Str("stdout", res.Stdout).
		Msg("command finished")

	return res
}
