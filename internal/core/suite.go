package core

import (
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog/log"
)

// PreCommandKey is the reserved group name holding the pre-command list.
const PreCommandKey = "pre_command"

// Step is one resolved entry of the `tests` mapping, either PreCommands or
// TestGroup.
type Step interface {
	step()
}

// PreCommands are run unconditionally, in order, before any test group.
type PreCommands struct {
	Commands []string
}

// TestGroup is a named collection of tests kept in document order.
type TestGroup struct {
	Name  string
	Tests []TestSpec
}

// TestSpec is a single runnable check.
type TestSpec struct {
	Name    string
	Enable  bool
	Command string
}

func (PreCommands) step() {}
func (TestGroup) step()   {}

// Suite is the resolved `tests` mapping. Pre-commands always come first.
type Suite struct {
	Steps []Step
}

func (s Suite) PreCommands() []string {
	var cmds []string
	for _, st := range s.Steps {
		if pc, ok := st.(PreCommands); ok {
			cmds = append(cmds, pc.Commands...)
		}
	}
	return cmds
}

func (s Suite) TestGroups() []TestGroup {
	var groups []TestGroup
	for _, st := range s.Steps {
		if g, ok := st.(TestGroup); ok {
			groups = append(groups, g)
		}
	}
	return groups
}

// Counts returns the total number of tests and how many of them are enabled.
func (s Suite) Counts() (total, enabled int) {
	for _, g := range s.TestGroups() {
		for _, t := range g.Tests {
			total++
			if t.Enable {
				enabled++
			}
		}
	}
	return total, enabled
}

// ResolveSuite turns the ordered `tests` mapping into a Suite. raw must be
// the value decoded with yaml.UseOrderedMap so that document order survives.
func ResolveSuite(raw any) (Suite, error) {
	if raw == nil {
		return Suite{}, ErrMissingTests
	}

	items, ok := raw.(yaml.MapSlice)
	if !ok {
		return Suite{}, fmt.Errorf("%w: 'tests' must be a mapping of group names, got %s", ErrInvalidConfig, kindOf(raw))
	}

	var (
		pre    *PreCommands
		groups []Step
	)

	for _, item := range items {
		name := fmt.Sprint(item.Key)

		if name == PreCommandKey {
			cmds, err := resolvePreCommands(item.Value)
			if err != nil {
				return Suite{}, err
			}
			pre = &PreCommands{Commands: cmds}
			continue
		}

		group, err := resolveGroup(name, item.Value)
		if err != nil {
			return Suite{}, err
		}
		groups = append(groups, group)
	}

	suite := Suite{Steps: make([]Step, 0, len(groups)+1)}
	if pre != nil {
		suite.Steps = append(suite.Steps, *pre)
	}
	suite.Steps = append(suite.Steps, groups...)

	return suite, nil
}

func resolvePreCommands(v any) ([]string, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: tests.%s must be a list of commands, got %s", ErrInvalidConfig, PreCommandKey, kindOf(v))
	}

	cmds := make([]string, 0, len(list))
	for i, c := range list {
		cmd, ok := c.(string)
		if !ok || cmd == "" {
			return nil, fmt.Errorf("%w: tests.%s[%d] must be a non-empty command string", ErrInvalidConfig, PreCommandKey, i)
		}
		cmds = append(cmds, cmd)
	}

	return cmds, nil
}

func resolveGroup(name string, v any) (TestGroup, error) {
	items, ok := v.(yaml.MapSlice)
	if !ok {
		return TestGroup{}, fmt.Errorf("%w: tests.%s must be a mapping of test names, got %s", ErrInvalidConfig, name, kindOf(v))
	}

	group := TestGroup{Name: name, Tests: make([]TestSpec, 0, len(items))}
	for _, item := range items {
		spec, err := resolveSpec(name, fmt.Sprint(item.Key), item.Value)
		if err != nil {
			return TestGroup{}, err
		}
		group.Tests = append(group.Tests, spec)
	}

	return group, nil
}

func resolveSpec(group, name string, v any) (TestSpec, error) {
	path := group + "." + name

	fields, ok := v.(yaml.MapSlice)
	if !ok {
		return TestSpec{}, fmt.Errorf("%w: tests.%s must have 'enable' and 'command', got %s", ErrInvalidConfig, path, kindOf(v))
	}

	spec := TestSpec{Name: name}
	var hasEnable, hasCommand bool

	for _, f := range fields {
		key := fmt.Sprint(f.Key)
		switch key {
		case "enable":
			b, ok := f.Value.(bool)
			if !ok {
				return TestSpec{}, fmt.Errorf("%w: tests.%s.enable must be true or false", ErrInvalidConfig, path)
			}
			spec.Enable = b
			hasEnable = true
		case "command":
			s, ok := f.Value.(string)
			if !ok || s == "" {
				return TestSpec{}, fmt.Errorf("%w: tests.%s.command must be a non-empty string", ErrInvalidConfig, path)
			}
			spec.Command = s
			hasCommand = true
		default:
			log.Warn().Str("test", path).Str("key", key).Msg("ignoring unknown test key")
		}
	}

	switch {
	case !hasEnable:
		return TestSpec{}, fmt.Errorf("%w: tests.%s is missing 'enable'", ErrInvalidConfig, path)
	case !hasCommand:
		return TestSpec{}, fmt.Errorf("%w: tests.%s is missing 'command'", ErrInvalidConfig, path)
	}

	return spec, nil
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case yaml.MapSlice, map[string]any:
		return "mapping"
	case []any:
		return "list"
	case string:
		return "string"
	case bool:
		return "bool"
	default:
		return fmt.Sprintf("%T", v)
	}
}
