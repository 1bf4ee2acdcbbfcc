// SPDX-License-Identifier: MPL-2.0

// Package help renders usage, argument and option text for the three help
// query shapes: global, namespace, and exact command. Rendering is pure;
// output layout is line-oriented plain text with two-space-indented padded
// rows, suitable for both stdout help and error-path context.
package help

import (
	"fmt"
	"strings"

	"krail-cli/pkg/cmdmodule"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// GlobalOption is one of the fixed flags available on every command.
type GlobalOption struct {
	Flag        string
	Description string
}

// GlobalOptions is the fixed set of flags appended to every command's
// option block regardless of its own declarations.
var GlobalOptions = []GlobalOption{
	{"--help", "Show help for the command"},
	{"--version", "Print the program version"},
	{"--root-dir <path>", "Override the project root directory"},
	{"--debug", "Enable debug output and stack traces"},
}

// UnknownCommandError is returned by Resolve when a query matches neither
// an exact command nor a namespace prefix.
type UnknownCommandError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command '%s'", e.Name)
}

// Renderer renders help text against one immutable registry.
type Renderer struct {
	// ProgramName is the CLI binary name used in usage lines.
	ProgramName string
	// Registry is the discovery result, read-only.
	Registry cmdmodule.Registry
	// ParserRecord looks up the parser's own record for an exact command
	// name; it may be nil, and may return nil for namespace children the
	// parser has no entry for.
	ParserRecord func(name string) *cobra.Command
}

// Resolve runs the help resolution state machine over a token query:
// empty query renders global help, an exact registry match renders command
// help, a prefix match renders namespace help, anything else is an
// UnknownCommandError.
func (r *Renderer) Resolve(query []string) (string, error) {
	if len(query) == 0 {
		return r.Global(), nil
	}

	name := strings.Join(query, " ")
	if lc := r.Registry.Find(name); lc != nil {
		var rec *cobra.Command
		if r.ParserRecord != nil {
			rec = r.ParserRecord(name)
		}
		return r.Command(lc, rec), nil
	}

	if len(r.Registry.WithPrefix(name)) > 0 {
		return r.Namespace(query), nil
	}

	return "", &UnknownCommandError{Name: name}
}

// Global renders the program-level help: usage line, the command table in
// registry order, and the fixed global option block.
func (r *Renderer) Global() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\nUsage: %s <command> [options]\n\n", r.ProgramName)

	if len(r.Registry) > 0 {
		sb.WriteString("Commands:\n")
		rows := make([][2]string, 0, len(r.Registry))
		for _, lc := range r.Registry {
			rows = append(rows, [2]string{lc.Name(), lc.Meta.Description})
		}
		writeRows(&sb, rows)
		sb.WriteString("\n")
	}

	sb.WriteString("Global options:\n")
	writeRows(&sb, globalOptionRows())
	return sb.String()
}

// Namespace renders the command table for every registry entry under the
// queried prefix. The caller has already proven an exact match failed.
func (r *Renderer) Namespace(query []string) string {
	name := strings.Join(query, " ")

	var sb strings.Builder
	fmt.Fprintf(&sb, "\nCommands for %s:\n\n", name)

	rows := make([][2]string, 0)
	for _, lc := range r.Registry.WithPrefix(name) {
		rows = append(rows, [2]string{lc.Name(), lc.Meta.Description})
	}
	writeRows(&sb, rows)
	return sb.String()
}

// Command renders the help for one exact command. rec is the parser's own
// record when it has one; it recovers usage, description and the merged
// option list the parser captured independently.
func (r *Renderer) Command(lc *cmdmodule.LoadedCommand, rec *cobra.Command) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "\nUsage: %s\n", r.usageFor(lc, rec))

	if desc := descriptionFor(lc, rec); desc != "" {
		fmt.Fprintf(&sb, "\n%s\n", desc)
	}

	if len(lc.Meta.Args) > 0 {
		sb.WriteString("\nArguments:\n")
		rows := make([][2]string, 0, len(lc.Meta.Args))
		for _, arg := range lc.Meta.Args {
			desc := arg.Description
			if arg.Required {
				if desc != "" {
					desc += " "
				}
				desc += "(required)"
			}
			rows = append(rows, [2]string{arg.Name, desc})
		}
		writeRows(&sb, rows)
	}

	sb.WriteString("\nOptions:\n")
	if rec != nil {
		writeRows(&sb, recordOptionRows(rec))
	} else {
		rows := make([][2]string, 0, len(lc.Meta.Options)+len(GlobalOptions))
		for _, opt := range lc.Meta.Options {
			rows = append(rows, [2]string{opt.Name, optionDescription(opt.Description, opt.Default)})
		}
		rows = append(rows, globalOptionRows()...)
		writeRows(&sb, rows)
	}

	return sb.String()
}

// usageFor resolves the usage line: explicit metadata, then the parser
// record, then a synthesis from the declared argument specs.
func (r *Renderer) usageFor(lc *cmdmodule.LoadedCommand, rec *cobra.Command) string {
	if lc.Meta.Usage != "" {
		return lc.Meta.Usage
	}
	if rec != nil {
		return fmt.Sprintf("%s %s", r.ProgramName, rec.Use)
	}
	return fmt.Sprintf("%s %s", r.ProgramName, SynthesizeUsage(lc.Name(), lc.Meta.Args))
}

// SynthesizeUsage appends a placeholder per argument spec to the command
// path in declaration order: <name> for required, [name] for optional,
// with a leading ellipsis inside the brackets for variadic specs.
func SynthesizeUsage(commandPath string, args []cmdmodule.ArgumentSpec) string {
	parts := []string{commandPath}
	for _, arg := range args {
		ident := arg.Ident()
		if arg.Variadic() {
			ident = "..." + ident
		}
		if arg.Required {
			parts = append(parts, "<"+ident+">")
		} else {
			parts = append(parts, "["+ident+"]")
		}
	}
	return strings.Join(parts, " ")
}

// descriptionFor resolves the description: explicit metadata, then the
// parser record, then empty.
func descriptionFor(lc *cmdmodule.LoadedCommand, rec *cobra.Command) string {
	if lc.Meta.Description != "" {
		return lc.Meta.Description
	}
	if rec != nil {
		return rec.Short
	}
	return ""
}

// recordOptionRows collects the parser record's merged option list,
// including inherited global flags.
func recordOptionRows(rec *cobra.Command) [][2]string {
	var rows [][2]string
	seen := make(map[string]bool)

	collect := func(f *pflag.Flag) {
		if f.Hidden || seen[f.Name] {
			return
		}
		seen[f.Name] = true

		form := "--" + f.Name
		if varName, _ := pflag.UnquoteUsage(f); varName != "" {
			form += " <" + varName + ">"
		} else if f.Value.Type() != "bool" {
			form += " <value>"
		}
		rows = append(rows, [2]string{form, optionDescription(f.Usage, f.DefValue)})
	}

	rec.Flags().VisitAll(collect)
	rec.InheritedFlags().VisitAll(collect)
	return rows
}

// globalOptionRows renders the fixed global option block.
func globalOptionRows() [][2]string {
	rows := make([][2]string, 0, len(GlobalOptions))
	for _, opt := range GlobalOptions {
		rows = append(rows, [2]string{opt.Flag, opt.Description})
	}
	return rows
}

// optionDescription appends the default suffix when a default is present
// and does not evaluate to false.
func optionDescription(desc, def string) string {
	if def == "" || def == "false" {
		return desc
	}
	if desc != "" {
		return fmt.Sprintf("%s (default: %s)", desc, def)
	}
	return fmt.Sprintf("(default: %s)", def)
}

// writeRows writes a two-column table with the left column padded to the
// widest entry, each row indented by two spaces.
func writeRows(sb *strings.Builder, rows [][2]string) {
	width := 0
	for _, row := range rows {
		if len(row[0]) > width {
			width = len(row[0])
		}
	}
	for _, row := range rows {
		if row[1] == "" {
			fmt.Fprintf(sb, "  %s\n", row[0])
			continue
		}
		fmt.Fprintf(sb, "  %-*s  %s\n", width, row[0], row[1])
	}
}
