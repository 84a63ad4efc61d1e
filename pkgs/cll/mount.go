// Package cll provides small helpers for composing urfave/cli/v3 commands.
package cll

import "github.com/urfave/cli/v3"

// Registerable is a command that mounts itself onto a root command.
type Registerable interface {
	Register(*cli.Command) *cli.Command
}

// Register applies each Registerable to root in order.
//
// Example:
//
//	root := &cli.Command{Name: "citests"}
//	root = cll.Register(root, runCmd, listCmd)
func Register(root *cli.Command, subs ...Registerable) *cli.Command {
	for _, s := range subs {
		root = s.Register(root)
	}

	return root
}

// EnvWithPrefix returns a function building env var sources that all share
// prefix.
//
// Example:
//
//	env := cll.EnvWithPrefix("CITESTS_")
//	flag := &cli.StringFlag{
//		Name:    "config",
//		Sources: env("CONFIG", "CONFIG_PATH"), // reads CITESTS_CONFIG, CITESTS_CONFIG_PATH
//	}
func EnvWithPrefix(prefix string) func(strs ...string) cli.ValueSourceChain {
	return func(strs ...string) cli.ValueSourceChain {
		withPrefix := make([]string, len(strs))

		for i, str := range strs {
			withPrefix[i] = prefix + str
		}

		return cli.EnvVars(withPrefix...)
	}
}
