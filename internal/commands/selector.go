package commands

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/hay-kot/citests/internal/core"
	"github.com/hay-kot/citests/internal/runner"
)

// selectorEnv lists the variables a selector expression can reference.
var selectorEnv = map[string]any{
	"group":   "",
	"name":    "",
	"command": "",
}

var (
	macroRe = regexp.MustCompile(`@([A-Za-z_][A-Za-z0-9_-]*)`)
	tagRe   = regexp.MustCompile(`^[+!]([A-Za-z0-9_][A-Za-z0-9_.-]*)$`)
)

// expandTagShortcuts pulls `+group` and `!group` tokens out of input. The
// remaining text is returned as expr.
func expandTagShortcuts(input string) (expr string, include, exclude []string) {
	var rest []string

	for _, tok := range strings.Fields(input) {
		m := tagRe.FindStringSubmatch(tok)
		switch {
		case m == nil:
			rest = append(rest, tok)
		case tok[0] == '+':
			include = append(include, m[1])
		default:
			exclude = append(exclude, m[1])
		}
	}

	return strings.Join(rest, " "), include, exclude
}

// expandMacros replaces every @name with the parenthesized macro body.
func expandMacros(input string, macros map[string]string) (string, error) {
	var missing []string

	out := macroRe.ReplaceAllStringFunc(input, func(m string) string {
		name := m[1:]
		body, ok := macros[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return "(" + body + ")"
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("undefined macro: @%s", strings.Join(missing, ", @"))
	}

	return out, nil
}

// buildExpr expands shortcuts and macros into a single expr-lang expression.
func buildExpr(input string, macros map[string]string) (string, error) {
	code, include, exclude := expandTagShortcuts(input)

	code, err := expandMacros(code, macros)
	if err != nil {
		return "", err
	}

	var parts []string
	if len(include) > 0 {
		ors := make([]string, len(include))
		for i, g := range include {
			ors[i] = "group == " + strconv.Quote(g)
		}
		parts = append(parts, "("+strings.Join(ors, " || ")+")")
	}
	for _, g := range exclude {
		parts = append(parts, "group != "+strconv.Quote(g))
	}
	if strings.TrimSpace(code) != "" {
		parts = append(parts, "("+code+")")
	}

	if len(parts) == 0 {
		return "true", nil // default: match everything
	}

	return strings.Join(parts, " && "), nil
}

// compileExpr compiles a selector once for reuse across every test.
func compileExpr(input string, macros map[string]string) (*vm.Program, error) {
	code, err := buildExpr(input, macros)
	if err != nil {
		return nil, err
	}

	return expr.Compile(code, expr.Env(selectorEnv), expr.AsBool())
}

// evalCompiledExpr evaluates a pre-compiled expression with given context
func evalCompiledExpr(program *vm.Program, env map[string]any) (bool, error) {
	output, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}

	// expr.AsBool() ensures output is always bool
	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("expression did not evaluate to boolean, got %T", output)
	}

	return result, nil
}

// NewSelector returns a runner.Filter for the selector expression input.
func NewSelector(input string, macros map[string]string) (runner.Filter, error) {
	program, err := compileExpr(input, macros)
	if err != nil {
		return nil, fmt.Errorf("invalid expression: %w", err)
	}

	return func(group string, spec core.TestSpec) (bool, error) {
		return evalCompiledExpr(program, map[string]any{
			"group":   group,
			"name":    spec.Name,
			"command": spec.Command,
		})
	}, nil
}
