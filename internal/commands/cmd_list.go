package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/hay-kot/citests/internal/core"
	"github.com/hay-kot/citests/internal/runner"
	"github.com/hay-kot/citests/pkgs/printer"
	"github.com/hay-kot/citests/pkgs/styles"
	"github.com/urfave/cli/v3"
)

type ListCmd struct {
	coreFlags *core.Flags
}

func NewListCmd(coreFlags *core.Flags) *ListCmd {
	return &ListCmd{coreFlags: coreFlags}
}

func (lc *ListCmd) Register(app *cli.Command) *cli.Command {
	cmd := &cli.Command{
		Name:      "list",
		Aliases:   []string{"ls"},
		Usage:     "list the configured pre-commands and tests without running them",
		ArgsUsage: "[expression]",
		Description: `Lists every pre-command and test in the configuration. Tests that would
be skipped, because they are disabled or do not match the expression, are
marked with a cross.`,
		Action: func(ctx context.Context, c *cli.Command) error {
			return lc.list(ctx, strings.Join(c.Args().Slice(), " "))
		},
	}

	app.Commands = append(app.Commands, cmd)
	return app
}

func (lc *ListCmd) list(ctx context.Context, expr string) error {
	cfg, err := core.Load(lc.coreFlags.ConfigFilePath)
	if err != nil {
		return err
	}

	filter, err := NewSelector(expr, cfg.Macros)
	if err != nil {
		return err
	}

	plan, err := runner.New(nil, nil, runner.Options{Filter: filter}).Plan(cfg.Suite)
	if err != nil {
		return err
	}

	planned := map[string]bool{}
	for _, p := range plan {
		if p.Group != "" {
			planned[testKey(p.Group, p.Test)] = true
		}
	}

	p := printer.Ctx(ctx)

	if pre := cfg.Suite.PreCommands(); len(pre) > 0 {
		items := make([]printer.StatusListItem, len(pre))
		for i, c := range pre {
			items[i] = printer.StatusListItem{Ok: true, Label: c}
		}
		p.StatusList(core.PreCommandKey, items)
		p.LineBreak()
	}

	for _, g := range cfg.Suite.TestGroups() {
		items := make([]printer.StatusListItem, len(g.Tests))
		for i, t := range g.Tests {
			label := t.Name
			if !t.Enable {
				label += styles.Subtle(" (disabled)")
			}
			items[i] = printer.StatusListItem{
				Ok:     planned[testKey(g.Name, t.Name)],
				Label:  label,
				Detail: t.Command,
			}
		}
		p.StatusList(g.Name, items)
		p.LineBreak()
	}

	total, enabled := cfg.Suite.Counts()
	p.Title(fmt.Sprintf("%d selected, %d enabled, %d total", len(plan)-len(cfg.Suite.PreCommands()), enabled, total))

	return nil
}
