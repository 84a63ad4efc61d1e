// Package commands contains the CLI commands for the application
package commands

import (
	"fmt"
	"os"
	"slices"

	"github.com/charmbracelet/huh"
	"github.com/hay-kot/citests/internal/core"
	"github.com/hay-kot/citests/internal/runner"
	"github.com/hay-kot/citests/pkgs/cll"
	"golang.org/x/term"
)

var envvars = cll.EnvWithPrefix(core.EnvPrefix)

// stdoutIsTerminal reports whether progress output goes to an interactive
// terminal.
func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func testKey(group, name string) string {
	return group + "." + name
}

// selectForm builds a multi-select of every enabled test. The returned
// filter only admits the tests picked in the form and must be used after the
// form has run.
func selectForm(suite core.Suite) (*huh.Form, runner.Filter) {
	var (
		options  []huh.Option[string]
		selected []string
	)

	for _, g := range suite.TestGroups() {
		for _, t := range g.Tests {
			if !t.Enable {
				continue
			}
			key := testKey(g.Name, t.Name)
			label := fmt.Sprintf("%s (%s)", key, t.Command)
			options = append(options, huh.NewOption(label, key))
		}
	}

	if len(options) == 0 {
		return nil, nil
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Select tests to run").
				Options(options...).
				Value(&selected),
		),
	)

	filter := func(group string, spec core.TestSpec) (bool, error) {
		return slices.Contains(selected, testKey(group, spec.Name)), nil
	}

	return form, filter
}

// andFilters admits a test only when every non-nil filter admits it.
func andFilters(filters ...runner.Filter) runner.Filter {
	return func(group string, spec core.TestSpec) (bool, error) {
		for _, f := range filters {
			if f == nil {
				continue
			}
			ok, err := f(group, spec)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}
