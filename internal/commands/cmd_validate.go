package commands

import (
	"context"
	"fmt"

	"github.com/hay-kot/citests/internal/core"
	"github.com/hay-kot/citests/pkgs/printer"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

type ValidateCmd struct {
	coreFlags *core.Flags
}

func NewValidateCmd(coreFlags *core.Flags) *ValidateCmd {
	return &ValidateCmd{coreFlags: coreFlags}
}

func (vc *ValidateCmd) Register(app *cli.Command) *cli.Command {
	cmd := &cli.Command{
		Name:  "validate",
		Usage: "check the configuration file without running anything",
		Description: `Loads the configuration, checks that every test has 'enable' and 'command'
and that the macros compile as selector expressions. Env files are read, and
vault files decrypted, so missing identities are reported as well.`,
		Action: vc.validate,
	}

	app.Commands = append(app.Commands, cmd)
	return app
}

func (vc *ValidateCmd) validate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := core.Load(vc.coreFlags.ConfigFilePath)
	if err != nil {
		return err
	}

	for name := range cfg.Macros {
		if _, err := compileExpr("@"+name, cfg.Macros); err != nil {
			return fmt.Errorf("%w: macro @%s: %w", core.ErrInvalidConfig, name, err)
		}
	}

	env, err := cfg.Environ()
	if err != nil {
		return err
	}

	total, enabled := cfg.Suite.Counts()

	log.Debug().Int("env", len(env)).Msg("environment resolved")

	printer.Ctx(ctx).StatusList("Configuration OK", []printer.StatusListItem{
		{Ok: true, Label: "pre-commands", Detail: fmt.Sprint(len(cfg.Suite.PreCommands()))},
		{Ok: true, Label: "groups", Detail: fmt.Sprint(len(cfg.Suite.TestGroups()))},
		{Ok: true, Label: "tests", Detail: fmt.Sprintf("%d enabled of %d", enabled, total)},
		{Ok: true, Label: "env vars", Detail: fmt.Sprint(len(env))},
	})

	return nil
}
