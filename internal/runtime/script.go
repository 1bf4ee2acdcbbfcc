// SPDX-License-Identifier: MPL-2.0

// Package runtime executes manifest-backed commands. A script command runs
// its manifest's shell script with the embedded mvdan/sh interpreter:
// positional arguments become $1..$n, declared options and arguments are
// exported as KRAIL_OPT_* / KRAIL_ARG_* environment variables, and the
// resolved project root (when required) as KRAIL_PROJECT_ROOT.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"krail-cli/internal/project"
	"krail-cli/pkg/cmdmodule"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ScriptCommand is a cmdmodule.Runner backed by a manifest shell script.
type ScriptCommand struct {
	meta       cmdmodule.Metadata
	script     string
	sourcePath string
	rt         cmdmodule.RuntimeContext

	// set by Init
	projectRoot   string
	projectConfig map[string]any
}

// NewScriptCommand builds the runner for one dispatch.
func NewScriptCommand(meta cmdmodule.Metadata, script, sourcePath string, rt cmdmodule.RuntimeContext) *ScriptCommand {
	return &ScriptCommand{meta: meta, script: script, sourcePath: sourcePath, rt: rt}
}

// Factory returns a cmdmodule.Factory producing ScriptCommand instances
// for the given manifest contents. Discovery wraps every loaded manifest
// with this.
func Factory(meta cmdmodule.Metadata, script, sourcePath string) cmdmodule.Factory {
	return func(rt cmdmodule.RuntimeContext) cmdmodule.Runner {
		return NewScriptCommand(meta, script, sourcePath, rt)
	}
}

// Init resolves the project context when the command requires one.
func (c *ScriptCommand) Init(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !c.meta.RequiresProject {
		return nil
	}

	startDir := c.rt.RootDirOverride
	if startDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to resolve working directory: %w", err)
		}
		startDir = cwd
	}

	root, ok := project.FindRoot(c.rt.ProgramName, startDir)
	if !ok {
		return &project.RequiredError{ProgramName: c.rt.ProgramName, StartDir: startDir}
	}
	c.projectRoot = root

	cfg, err := project.LoadConfig(c.rt.ProgramName, root)
	if err != nil {
		return err
	}
	c.projectConfig = cfg
	return nil
}

// ProjectRoot returns the root resolved by Init, empty when the command
// does not require a project.
func (c *ScriptCommand) ProjectRoot() string {
	return c.projectRoot
}

// Run executes the manifest script with the mapped option set.
func (c *ScriptCommand) Run(ctx context.Context, opts cmdmodule.Options) error {
	prog, err := syntax.NewParser().Parse(strings.NewReader(c.script), c.sourcePath)
	if err != nil {
		return fmt.Errorf("script syntax error: %w", err)
	}

	workDir := c.projectRoot
	if workDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to resolve working directory: %w", err)
		}
		workDir = cwd
	}

	runnerOpts := []interp.RunnerOption{
		interp.Dir(workDir),
		interp.Env(expand.ListEnviron(c.buildEnv(opts)...)),
		interp.StdIO(c.rt.Stdin, c.rt.Stdout, c.rt.Stderr),
	}

	// Prepend "--" so argument values starting with a dash are not taken
	// for shell options by interp.Params.
	if positionals := c.positionals(opts); len(positionals) > 0 {
		runnerOpts = append(runnerOpts, interp.Params(append([]string{"--"}, positionals...)...))
	}

	runner, err := interp.New(runnerOpts...)
	if err != nil {
		return fmt.Errorf("failed to create interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			return fmt.Errorf("command '%s' exited with status %d", c.sourcePath, int(status))
		}
		return fmt.Errorf("script execution failed: %w", err)
	}
	return nil
}

// positionals reconstructs the ordered positional values from the mapped
// option set, expanding a trailing variadic in place.
func (c *ScriptCommand) positionals(opts cmdmodule.Options) []string {
	var out []string
	for _, spec := range c.meta.Args {
		if spec.Variadic() {
			out = append(out, opts.Strings(spec.Ident())...)
			continue
		}
		if v, ok := opts[spec.Ident()]; ok {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// buildEnv merges the process environment with the KRAIL_* exports.
func (c *ScriptCommand) buildEnv(opts cmdmodule.Options) []string {
	env := os.Environ()

	for _, spec := range c.meta.Args {
		key := "KRAIL_ARG_" + envKey(spec.Ident())
		if spec.Variadic() {
			env = append(env, key+"="+strings.Join(opts.Strings(spec.Ident()), " "))
			continue
		}
		env = append(env, key+"="+opts.String(spec.Ident()))
	}

	for _, spec := range c.meta.Options {
		key := "KRAIL_OPT_" + envKey(spec.Ident())
		switch v := opts[spec.Ident()].(type) {
		case bool:
			env = append(env, key+"="+fmt.Sprintf("%t", v))
		case string:
			env = append(env, key+"="+v)
		default:
			env = append(env, key+"=")
		}
	}

	if c.projectRoot != "" {
		env = append(env, "KRAIL_PROJECT_ROOT="+c.projectRoot)
	}
	return env
}

// envKey converts a camelCase identifier to UPPER_SNAKE form.
func envKey(ident string) string {
	var sb strings.Builder
	for i, r := range ident {
		if r >= 'A' && r <= 'Z' && i > 0 {
			sb.WriteByte('_')
		}
		sb.WriteRune(r)
	}
	return strings.ToUpper(sb.String())
}
