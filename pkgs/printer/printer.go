// Package printer writes the human readable progress of a run.
package printer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hay-kot/citests/pkgs/styles"
)

type Printer struct {
	w io.Writer
}

func New(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Ctx returns a printer bound to the writer stored in ctx, or p when none is set.
func (p *Printer) Ctx(ctx context.Context) *Printer {
	if w, ok := GetWriter(ctx); ok {
		return New(w)
	}
	return p
}

func (p *Printer) println(s string) {
	_, _ = fmt.Fprintln(p.w, s)
}

// Announce prints the line shown before a command starts.
func (p *Printer) Announce(command string) {
	p.println(styles.Accent("ready to run command:") + " " + command)
}

// DryRun prints the line shown in place of executing a command.
func (p *Printer) DryRun(command string) {
	p.println(styles.Subtle("dry-run, skipping command:") + " " + command)
}

func (p *Printer) Success(command string) {
	p.println(styles.Success(styles.Check) + " command [" + command + "] " + styles.Success("exec success!"))
}

// Failure prints the failed line followed by the error detail of the command.
func (p *Printer) Failure(command, detail string) {
	p.println(styles.Error(styles.Cross) + " command [" + command + "] " + styles.Error("exec failed!"))

	detail = strings.TrimRight(detail, "\n")
	if detail == "" {
		return
	}

	p.println("err info: " + detail)
}

func (p *Printer) Title(title string) {
	p.println(styles.Bold(styles.Underline(title)))
}

func (p *Printer) LineBreak() {
	p.println("")
}

type StatusListItem struct {
	Ok     bool
	Label  string
	Detail string
}

func (p *Printer) StatusList(title string, items []StatusListItem) {
	if title != "" {
		p.Title(title)
	}

	for _, item := range items {
		icon := styles.Error(styles.Cross)
		if item.Ok {
			icon = styles.Success(styles.Check)
		}

		line := fmt.Sprintf("  %s %s", icon, item.Label)
		if item.Detail != "" {
			line += " " + styles.Subtle(styles.Arrow+" "+item.Detail)
		}
		p.println(line)
	}
}

// FatalError renders err in an error box. Each wrapped layer of a joined
// error gets its own box.
func (p *Printer) FatalError(err error) {
	if err == nil {
		return
	}

	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			p.FatalError(e)
		}
		return
	}

	p.println(styles.ErrorBox("Error", err.Error()))
}
