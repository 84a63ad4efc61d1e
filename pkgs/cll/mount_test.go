package cll

import (
	"testing"

	"github.com/urfave/cli/v3"
)

type subcommand string

func (s subcommand) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{Name: string(s)})
	return root
}

func TestRegister(t *testing.T) {
	root := Register(&cli.Command{Name: "citests"}, subcommand("run"), subcommand("list"))

	if len(root.Commands) != 2 {
		t.Fatalf("Register() commands = %d, want 2", len(root.Commands))
	}
	if root.Commands[0].Name != "run" || root.Commands[1].Name != "list" {
		t.Errorf("Register() order = [%s %s], want [run list]", root.Commands[0].Name, root.Commands[1].Name)
	}
}

func TestEnvWithPrefix(t *testing.T) {
	t.Setenv("CITESTS_CONFIG", "ci/CITests.yml")

	env := EnvWithPrefix("CITESTS_")
	src := env("CONFIG")
	got, ok := src.Lookup()
	if !ok {
		t.Fatal("Lookup() ok = false, want true")
	}
	if got != "ci/CITests.yml" {
		t.Errorf("Lookup() = %q, want %q", got, "ci/CITests.yml")
	}
}
