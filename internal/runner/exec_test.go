package runner

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	return &Executor{Shell: "/bin/sh", Dir: t.TempDir()}
}

func TestExecutor_ExecCommand(t *testing.T) {
	tests := []struct {
		name       string
		command    string
		wantOK     bool
		wantCode   int
		wantStdout string
		wantDetail string
	}{
		{
			name:       "success",
			command:    "echo hello",
			wantOK:     true,
			wantCode:   0,
			wantStdout: "hello\n",
		},
		{
			name:       "non-zero exit captures stderr",
			command:    "echo 'link error' >&2; exit 3",
			wantOK:     false,
			wantCode:   3,
			wantDetail: "link error",
		},
		{
			name:       "non-zero exit without stderr",
			command:    "exit 1",
			wantOK:     false,
			wantCode:   1,
			wantDetail: "exit status 1",
		},
		{
			name:       "unknown command",
			command:    "definitely-not-a-real-binary-xyz",
			wantOK:     false,
			wantCode:   127,
			wantDetail: "not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newTestExecutor(t).ExecCommand(context.Background(), tt.command)

			if res.OK() != tt.wantOK {
				t.Errorf("OK() = %v, want %v (err: %v)", res.OK(), tt.wantOK, res.Err)
			}
			if res.ExitCode != tt.wantCode {
				t.Errorf("ExitCode = %d, want %d", res.ExitCode, tt.wantCode)
			}
			if tt.wantStdout != "" && res.Stdout != tt.wantStdout {
				t.Errorf("Stdout = %q, want %q", res.Stdout, tt.wantStdout)
			}
			if !strings.Contains(res.Detail(), tt.wantDetail) {
				t.Errorf("Detail() = %q, want it to contain %q", res.Detail(), tt.wantDetail)
			}
			if res.Command != tt.command {
				t.Errorf("Command = %q, want %q", res.Command, tt.command)
			}
		})
	}
}

func TestExecutor_ExecCommand_ShellMissing(t *testing.T) {
	e := &Executor{Shell: filepath.Join(t.TempDir(), "no-shell")}

	res := e.ExecCommand(context.Background(), "true")
	if res.OK() {
		t.Fatal("OK() = true, want false for a shell that does not exist")
	}
	if res.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", res.ExitCode)
	}
	if res.Err == nil || res.Detail() == "" {
		t.Errorf("expected a start error with detail, got err=%v detail=%q", res.Err, res.Detail())
	}
}

func TestExecutor_ExecCommand_DirAndEnv(t *testing.T) {
	e := newTestExecutor(t)
	e.Env = []string{"CITESTS_TEST_VALUE=from-config"}

	if err := os.WriteFile(filepath.Join(e.Dir, "marker"), []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write marker: %v", err)
	}

	res := e.ExecCommand(context.Background(), `test -f marker && printf %s "$CITESTS_TEST_VALUE"`)
	if !res.OK() {
		t.Fatalf("OK() = false, detail: %s", res.Detail())
	}
	if res.Stdout != "from-config" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "from-config")
	}
}

func TestExecutor_ExecCommand_Timeout(t *testing.T) {
	e := newTestExecutor(t)
	e.Timeout = 100 * time.Millisecond

	res := e.ExecCommand(context.Background(), "sleep 5")
	if res.OK() {
		t.Fatal("OK() = true, want false after timeout")
	}
	if !res.TimedOut {
		t.Errorf("TimedOut = false, want true (err: %v)", res.Err)
	}
	if res.Duration > 4*time.Second {
		t.Errorf("Duration = %v, command was not killed", res.Duration)
	}
}

func TestExecutor_ExecCommand_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newTestExecutor(t).ExecCommand(ctx, "true")
	if res.OK() {
		t.Error("OK() = true, want false for a canceled context")
	}
	if res.TimedOut {
		t.Error("TimedOut = true, want false for a canceled context")
	}
}

func newSpinnerExecutor(t *testing.T) *Executor {
	t.Helper()
	e := newTestExecutor(t)
	e.Spinner = true
	e.spinnerOut = io.Discard
	return e
}

func TestExecutor_ExecCommand_Spinner(t *testing.T) {
	tests := []struct {
		name       string
		command    string
		wantOK     bool
		wantCode   int
		wantStdout string
	}{
		{
			name:       "success",
			command:    "echo hello",
			wantOK:     true,
			wantCode:   0,
			wantStdout: "hello\n",
		},
		{
			name:     "failure keeps the exit code",
			command:  "sleep 0.2; exit 3",
			wantOK:   false,
			wantCode: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newSpinnerExecutor(t).ExecCommand(context.Background(), tt.command)

			if res.OK() != tt.wantOK {
				t.Errorf("OK() = %v, want %v (err: %v)", res.OK(), tt.wantOK, res.Err)
			}
			if res.ExitCode != tt.wantCode {
				t.Errorf("ExitCode = %d, want %d", res.ExitCode, tt.wantCode)
			}
			if res.Stdout != tt.wantStdout {
				t.Errorf("Stdout = %q, want %q", res.Stdout, tt.wantStdout)
			}
			if res.Command != tt.command {
				t.Errorf("Command = %q, want %q", res.Command, tt.command)
			}
		})
	}
}

func TestExecutor_ExecCommand_SpinnerInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(300*time.Millisecond, cancel)

	command := "sleep 3; exit 3"
	res := newSpinnerExecutor(t).ExecCommand(ctx, command)

	if res.OK() {
		t.Fatal("OK() = true, want false for a command interrupted under the spinner")
	}
	if res.Command != command {
		t.Errorf("Command = %q, want %q", res.Command, command)
	}
	if res.Err == nil {
		t.Error("Err = nil, want the interruption error")
	}
	if res.Duration > 2*time.Second {
		t.Errorf("Duration = %v, command was not killed", res.Duration)
	}
}

func TestExecutor_ExecCommand_SpinnerCanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newSpinnerExecutor(t).ExecCommand(ctx, "true")
	if res.OK() {
		t.Error("OK() = true, want false for a canceled context")
	}
}
