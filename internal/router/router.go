// SPDX-License-Identifier: MPL-2.0

// Package router consumes the discovery registry once at startup,
// partitions it into leaf commands and namespace groups, registers the
// grammar with cobra, and supplies the dispatch closures: help
// interception, positional mapping, default filling, validation, and
// invocation of the target command's lifecycle. Dispatch prints its own
// diagnostics and returns tagged errors; the single process-termination
// call happens in the top-level Execute handler.
package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"krail-cli/internal/help"
	"krail-cli/internal/logging"
	"krail-cli/pkg/cmdmodule"

	"github.com/spf13/cobra"
)

// Options configures an Install call.
type Options struct {
	// ProgramName is the CLI binary name.
	ProgramName string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Debug reports the global --debug flag at dispatch time.
	Debug func() bool
	// RootDir reports the global --root-dir override at dispatch time.
	RootDir func() string
}

// Router holds the installed grammar and the read-only registry shared by
// every dispatch closure.
type Router struct {
	reg      cmdmodule.Registry
	root     *cobra.Command
	opts     Options
	records  map[string]*cobra.Command
	renderer *help.Renderer
	// helpCmd is a registry command literally named "help"; when present
	// it is the renderer invocation target for all error/usage paths.
	helpCmd *cmdmodule.LoadedCommand
}

// Install partitions the registry, registers one grammar entry per group
// with the parser, and wires the help machinery. It is called exactly
// once at startup; the registry is never mutated afterwards.
func Install(reg cmdmodule.Registry, root *cobra.Command, opts Options) *Router {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Debug == nil {
		opts.Debug = func() bool { return false }
	}
	if opts.RootDir == nil {
		opts.RootDir = func() string { return "" }
	}

	r := &Router{
		reg:     reg,
		root:    root,
		opts:    opts,
		records: make(map[string]*cobra.Command),
		helpCmd: reg.Find("help"),
	}
	r.renderer = &help.Renderer{
		ProgramName:  opts.ProgramName,
		Registry:     reg,
		ParserRecord: r.Record,
	}

	for _, g := range reg.Groups() {
		if g.Leaf() {
			r.registerLeaf(g.Commands[0])
		} else {
			r.registerNamespace(g)
		}
	}

	root.SetHelpFunc(r.helpFunc)
	if root.RunE == nil {
		root.RunE = func(c *cobra.Command, args []string) error {
			r.RenderHelp(nil)
			return nil
		}
	}

	return r
}

// Record returns the parser's registered record for an exact command
// name, or nil. Namespace children have no record of their own.
func (r *Router) Record(name string) *cobra.Command {
	return r.records[name]
}

// Renderer exposes the configured help renderer.
func (r *Router) Renderer() *help.Renderer {
	return r.renderer
}

// registerLeaf installs a group of size one whose sole member's path is
// the root token: full argument grammar, one parser option per declared
// OptionSpec. Every positional slot stays optional at the grammar level
// so a bare --help still matches; required-ness is enforced after
// parsing.
func (r *Router) registerLeaf(lc *cmdmodule.LoadedCommand) {
	c := &cobra.Command{
		Use:                   help.SynthesizeUsage(lc.Root(), lc.Meta.Args),
		Short:                 lc.Meta.Description,
		Args:                  cobra.ArbitraryArgs,
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
		SilenceErrors:         true,
		RunE: func(c *cobra.Command, args []string) error {
			return r.dispatch(lc, c, lc.Path, args)
		},
	}

	for _, opt := range lc.Meta.Options {
		if opt.TakesValue() {
			c.Flags().String(opt.FlagName(), opt.Default, opt.Description)
		} else {
			c.Flags().Bool(opt.FlagName(), opt.Default == "true", opt.Description)
		}
	}

	r.root.AddCommand(c)
	r.records[lc.Name()] = c
}

// registerNamespace installs a single grammar entry for a family of
// commands sharing a first token. Unknown options pass through so
// child-specific flags are not rejected at this level; the child is
// resolved from the first positional token at dispatch time.
func (r *Router) registerNamespace(g *cmdmodule.Group) {
	root := g.Root
	c := &cobra.Command{
		Use:                   root + " [subcommand] [args...]",
		Short:                 fmt.Sprintf("Commands under '%s'", root),
		Args:                  cobra.ArbitraryArgs,
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
		SilenceErrors:         true,
		FParseErrWhitelist:    cobra.FParseErrWhitelist{UnknownFlags: true},
		RunE: func(c *cobra.Command, args []string) error {
			return r.dispatchNamespace(g, c, args)
		},
	}

	r.root.AddCommand(c)
	r.records[root] = c
}

// dispatchNamespace resolves the runtime-supplied subcommand token and
// hands off to the shared dispatch path.
func (r *Router) dispatchNamespace(g *cmdmodule.Group, c *cobra.Command, args []string) error {
	if len(args) == 0 {
		r.RenderHelp([]string{g.Root})
		return nil
	}

	sub := args[0]
	full := g.Root + " " + sub

	// First registered entry wins when search roots produced duplicates.
	var target *cmdmodule.LoadedCommand
	for _, lc := range g.Commands {
		if lc.Name() == full {
			target = lc
			break
		}
	}
	if target == nil {
		fmt.Fprintf(r.opts.Stderr, "Unknown subcommand '%s' for '%s'\n", sub, g.Root)
		return &ValidationError{
			CommandPath: []string{g.Root},
			Message:     fmt.Sprintf("unknown subcommand '%s' for '%s'", sub, g.Root),
		}
	}

	return r.dispatch(target, c, []string{g.Root, sub}, args[1:])
}

// dispatch is the shared tail of both closures: help interception,
// positional mapping, default filling, and invocation of the target's
// lifecycle. pathCtx is the command-path context used for every
// error-path help rendering.
func (r *Router) dispatch(lc *cmdmodule.LoadedCommand, c *cobra.Command, pathCtx []string, args []string) error {
	if f := c.Flags().Lookup("help"); f != nil && f.Changed {
		r.RenderHelp(pathCtx)
		return nil
	}

	opts, missing := mapPositionals(lc.Meta.Args, args)
	if missing != "" {
		fmt.Fprintf(r.opts.Stderr, "Missing required argument: %s\n", missing)
		r.RenderHelp(pathCtx)
		return &ValidationError{
			CommandPath: pathCtx,
			Message:     fmt.Sprintf("missing required argument: %s", missing),
		}
	}

	r.collectOptions(lc, c, opts)

	logging.Debugf("dispatching '%s' from %s", lc.Name(), lc.SourcePath)

	rt := cmdmodule.RuntimeContext{
		ProgramName:     r.opts.ProgramName,
		RootDirOverride: r.opts.RootDir(),
		Debug:           r.opts.Debug(),
		Stdin:           r.opts.Stdin,
		Stdout:          r.opts.Stdout,
		Stderr:          r.opts.Stderr,
	}

	runner := lc.New(rt)
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := r.invoke(ctx, runner, opts); err != nil {
		fmt.Fprintln(r.opts.Stderr, err.Error())
		if r.opts.Debug() {
			printErrorChain(r.opts.Stderr, err)
		}
		r.RenderHelp(pathCtx)
		return &ExecutionError{CommandPath: pathCtx, Err: err}
	}
	return nil
}

// invoke runs both lifecycle phases to completion or first failure.
func (r *Router) invoke(ctx context.Context, runner cmdmodule.Runner, opts cmdmodule.Options) error {
	if err := runner.Init(ctx); err != nil {
		return err
	}
	return runner.Run(ctx, opts)
}

// mapPositionals maps positional values onto the argument specs by index.
// A variadic spec consumes the entire remainder from its position onward
// as an ordered sequence. The first missing required argument encountered
// in declaration order is returned as missing; optional absences fall
// back to the declared default.
func mapPositionals(specs []cmdmodule.ArgumentSpec, args []string) (cmdmodule.Options, string) {
	opts := make(cmdmodule.Options)
	for i, spec := range specs {
		if spec.Variadic() {
			rest := []string{}
			if i < len(args) {
				rest = append(rest, args[i:]...)
			}
			if len(rest) == 0 && spec.Required {
				return nil, spec.Name
			}
			opts[spec.Ident()] = rest
			continue
		}

		if i < len(args) {
			opts[spec.Ident()] = args[i]
			continue
		}
		if spec.Required {
			return nil, spec.Name
		}
		if spec.Default != "" {
			opts[spec.Ident()] = spec.Default
		}
	}
	return opts, ""
}

// collectOptions merges declared option values into the option set. For
// leaf commands the values come from the parsed flag set; for namespace
// children the grammar declared no per-option entries, so any absent key
// is filled from the spec's static default.
func (r *Router) collectOptions(lc *cmdmodule.LoadedCommand, c *cobra.Command, opts cmdmodule.Options) {
	for _, spec := range lc.Meta.Options {
		flag := c.Flags().Lookup(spec.FlagName())
		if flag != nil {
			if spec.TakesValue() {
				opts[spec.Ident()], _ = c.Flags().GetString(spec.FlagName())
			} else {
				opts[spec.Ident()], _ = c.Flags().GetBool(spec.FlagName())
			}
			continue
		}
		if _, ok := opts[spec.Ident()]; ok {
			continue
		}
		if spec.TakesValue() {
			opts[spec.Ident()] = spec.Default
		} else {
			opts[spec.Ident()] = spec.Default == "true"
		}
	}

	if r.opts.Debug() {
		opts["debug"] = true
	}
	if rootDir := r.opts.RootDir(); rootDir != "" {
		opts["rootDir"] = rootDir
	}
}

// RenderHelp renders help for a command-path context. A registry command
// literally named "help" is the preferred renderer target; otherwise the
// built-in renderer output is printed directly. Unknown paths degrade to
// the parser's own help.
func (r *Router) RenderHelp(tokens []string) {
	if r.helpCmd != nil && r.dispatchHelpCommand(tokens) {
		return
	}

	text, err := r.renderer.Resolve(tokens)
	if err != nil {
		// Nothing known to render for this path: parser built-in help.
		_ = r.root.Usage()
		return
	}
	fmt.Fprint(r.opts.Stdout, text)
}

// dispatchHelpCommand invokes the registry's own "help" command with the
// query tokens mapped onto its declared arguments. It reports false when
// the invocation could not be performed, letting the caller fall back to
// the built-in renderer.
func (r *Router) dispatchHelpCommand(tokens []string) bool {
	// Avoid recursing when rendering help for the help command itself.
	if len(tokens) == 1 && tokens[0] == "help" {
		return false
	}

	opts, missing := mapPositionals(r.helpCmd.Meta.Args, tokens)
	if missing != "" {
		return false
	}

	rt := cmdmodule.RuntimeContext{
		ProgramName: r.opts.ProgramName,
		Debug:       r.opts.Debug(),
		Stdin:       r.opts.Stdin,
		Stdout:      r.opts.Stdout,
		Stderr:      r.opts.Stderr,
	}
	runner := r.helpCmd.New(rt)
	if err := r.invoke(context.Background(), runner, opts); err != nil {
		logging.Debugf("help command failed, falling back to built-in renderer: %v", err)
		return false
	}
	return true
}

// helpFunc is installed as the parser's help function. It reconstructs
// the query tokens from the matched command plus any trailing non-flag
// arguments that extend to a known registry path, then runs the help
// resolution state machine.
func (r *Router) helpFunc(c *cobra.Command, args []string) {
	tokens := commandTokens(c)

	for _, a := range args {
		if strings.HasPrefix(a, "-") {
			continue
		}
		candidate := append(append([]string(nil), tokens...), a)
		name := strings.Join(candidate, " ")
		if r.reg.Find(name) != nil || len(r.reg.WithPrefix(name)) > 0 {
			tokens = candidate
		}
	}

	text, err := r.renderer.Resolve(tokens)
	if err != nil {
		var unknown *help.UnknownCommandError
		if errors.As(err, &unknown) {
			fmt.Fprintf(r.opts.Stderr, "%s\n", unknown.Error())
		}
		fmt.Fprint(r.opts.Stdout, r.renderer.Global())
		return
	}
	fmt.Fprint(r.opts.Stdout, text)
}

// commandTokens returns the command-path tokens of a parser record, with
// the program name stripped.
func commandTokens(c *cobra.Command) []string {
	fields := strings.Fields(c.CommandPath())
	if len(fields) <= 1 {
		return nil
	}
	tokens := fields[1:]
	// The built-in "help" pseudo-command is a query form, not a path.
	if tokens[0] == "help" {
		return nil
	}
	// Strip usage placeholders that leak in from the Use line.
	out := tokens[:0]
	for _, t := range tokens {
		if strings.HasPrefix(t, "<") || strings.HasPrefix(t, "[") {
			break
		}
		out = append(out, t)
	}
	return out
}

// printErrorChain prints each unwrapped cause on its own line, the debug
// substitute for a stack trace.
func printErrorChain(w io.Writer, err error) {
	depth := 0
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		depth++
		fmt.Fprintf(w, "%s caused by: %v\n", strings.Repeat(" ", depth*2), cause)
	}
}
