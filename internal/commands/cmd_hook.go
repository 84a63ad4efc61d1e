package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hay-kot/citests/internal/core"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

const (
	hookMarkerStart = "# citests hook - begin"
	hookMarkerEnd   = "# citests hook - end"
)

type HookCmd struct {
	coreFlags *core.Flags
	hookName  string
}

func NewHookCmd(coreFlags *core.Flags) *HookCmd {
	return &HookCmd{coreFlags: coreFlags}
}

func (hc *HookCmd) Register(app *cli.Command) *cli.Command {
	hookFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:        "hook",
			Usage:       "git hook to manage",
			Value:       "pre-push",
			Destination: &hc.hookName,
		}
	}

	cmds := []*cli.Command{
		{
			Name:  "hook",
			Usage: "manage the git hook that runs the CI tests locally",
			Commands: []*cli.Command{
				{
					Name:  "install",
					Usage: "install a git hook that runs 'citests run' before pushing",
					Description: `Installs a git hook (pre-push by default) that runs 'citests run' with the
current configuration file. The push is aborted when a test fails.

If the hook already exists, the citests section is appended to it.`,
					Flags:  []cli.Flag{hookFlag()},
					Action: hc.install,
				},
				{
					Name:   "uninstall",
					Usage:  "remove the citests section from the git hook",
					Flags:  []cli.Flag{hookFlag()},
					Action: hc.uninstall,
				},
			},
		},
	}

	app.Commands = append(app.Commands, cmds...)
	return app
}

func (hc *HookCmd) install(ctx context.Context, cmd *cli.Command) error {
	gitDir, err := findGitDir()
	if err != nil {
		return fmt.Errorf("failed to find .git directory: %w", err)
	}

	hooksDir := filepath.Join(gitDir, "hooks")
	hookPath := filepath.Join(hooksDir, hc.hookName)

	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		return fmt.Errorf("failed to create hooks directory: %w", err)
	}

	binPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get citests executable path: %w", err)
	}

	// Hooks run from the repository root, prefer a path relative to it
	configPath := hc.coreFlags.ConfigFilePath
	gitRoot := filepath.Dir(gitDir)
	if abs, err := filepath.Abs(configPath); err == nil {
		if relPath, err := filepath.Rel(gitRoot, abs); err == nil && !strings.HasPrefix(relPath, "..") {
			configPath = relPath
		}
	}

	existing, err := os.ReadFile(hookPath)
	switch {
	case err == nil && strings.Contains(string(existing), hookMarkerStart):
		log.Info().Str("path", hookPath).Msg("citests hook already installed")
		return nil
	case err != nil && !os.IsNotExist(err):
		return fmt.Errorf("failed to read %s hook: %w", hc.hookName, err)
	}

	content := appendHookSection(string(existing), binPath, configPath)

	if err := os.WriteFile(hookPath, []byte(content), 0o755); err != nil {
		return fmt.Errorf("failed to write %s hook: %w", hc.hookName, err)
	}

	log.Info().Str("path", hookPath).Msg("Installed citests hook")
	return nil
}

func (hc *HookCmd) uninstall(ctx context.Context, cmd *cli.Command) error {
	gitDir, err := findGitDir()
	if err != nil {
		return fmt.Errorf("failed to find .git directory: %w", err)
	}

	hookPath := filepath.Join(gitDir, "hooks", hc.hookName)

	content, err := os.ReadFile(hookPath)
	if os.IsNotExist(err) {
		log.Info().Str("hook", hc.hookName).Msg("No hook found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s hook: %w", hc.hookName, err)
	}

	newContent, found := removeHookSection(string(content))
	if !found {
		log.Info().Str("hook", hc.hookName).Msg("citests section not found in hook")
		return nil
	}

	// Only the shebang left, drop the file
	trimmed := strings.TrimSpace(newContent)
	if trimmed == "" || trimmed == "#!/bin/sh" {
		if err := os.Remove(hookPath); err != nil {
			return fmt.Errorf("failed to remove %s hook: %w", hc.hookName, err)
		}
		log.Info().Str("path", hookPath).Msg("Removed empty hook")
		return nil
	}

	if err := os.WriteFile(hookPath, []byte(newContent), 0o755); err != nil {
		return fmt.Errorf("failed to write %s hook: %w", hc.hookName, err)
	}

	log.Info().Str("path", hookPath).Msg("Removed citests section from hook")
	return nil
}

func appendHookSection(existing, binPath, configPath string) string {
	section := fmt.Sprintf("%s\n%s --config=%q run || exit 1\n%s\n", hookMarkerStart, binPath, configPath, hookMarkerEnd)

	if existing == "" {
		return "#!/bin/sh\n\n" + section
	}

	if !strings.HasSuffix(existing, "\n") {
		existing += "\n"
	}
	return existing + "\n" + section
}

// removeHookSection strips the lines between the citests markers, markers
// included.
func removeHookSection(content string) (string, bool) {
	var (
		out     []string
		inside  bool
		removed bool
	)

	for _, line := range strings.Split(content, "\n") {
		switch strings.TrimSpace(line) {
		case hookMarkerStart:
			inside, removed = true, true
			continue
		case hookMarkerEnd:
			inside = false
			continue
		}
		if !inside {
			out = append(out, line)
		}
	}

	return strings.Join(out, "\n"), removed
}

// findGitDir finds the .git directory by walking up from current directory
func findGitDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		gitDir := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			return gitDir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a git repository")
		}
		dir = parent
	}
}
