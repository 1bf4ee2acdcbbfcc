// SPDX-License-Identifier: MPL-2.0

package router

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"krail-cli/pkg/cmdmodule"

	"github.com/spf13/cobra"
)

// fakeRunner records its lifecycle for assertions.
type fakeRunner struct {
	initErr error
	runErr  error

	initCalled bool
	runCalled  bool
	gotOpts    cmdmodule.Options
}

func (f *fakeRunner) Init(ctx context.Context) error {
	f.initCalled = true
	return f.initErr
}

func (f *fakeRunner) Run(ctx context.Context, opts cmdmodule.Options) error {
	f.runCalled = true
	f.gotOpts = opts
	return f.runErr
}

// fakeCommand wires a fakeRunner behind a registry entry.
func fakeCommand(meta cmdmodule.Metadata, path ...string) (*cmdmodule.LoadedCommand, *fakeRunner) {
	runner := &fakeRunner{}
	lc := &cmdmodule.LoadedCommand{
		Path:       path,
		SourcePath: "/fake/" + strings.Join(path, "/") + ".yaml",
		Meta:       meta,
		New: func(rt cmdmodule.RuntimeContext) cmdmodule.Runner {
			return runner
		},
	}
	return lc, runner
}

type fixture struct {
	router *Router
	root   *cobra.Command
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func install(t *testing.T, reg cmdmodule.Registry) *fixture {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root := &cobra.Command{Use: "krail", SilenceErrors: true, SilenceUsage: true}
	rt := Install(reg, root, Options{
		ProgramName: "krail",
		Stdout:      stdout,
		Stderr:      stderr,
	})
	return &fixture{router: rt, root: root, stdout: stdout, stderr: stderr}
}

func execute(t *testing.T, f *fixture, args ...string) error {
	t.Helper()
	f.root.SetArgs(args)
	f.root.SetOut(f.stdout)
	f.root.SetErr(f.stderr)
	return f.root.Execute()
}

func TestDispatch_MissingRequiredArgument(t *testing.T) {
	lc, runner := fakeCommand(cmdmodule.Metadata{
		Args: []cmdmodule.ArgumentSpec{{Name: "name", Required: true}},
	}, "greet")
	f := install(t, cmdmodule.Registry{lc})

	err := execute(t, f, "greet")

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("Execute() error = %v, want ValidationError", err)
	}
	if !strings.Contains(f.stderr.String(), "Missing required argument: name") {
		t.Errorf("stderr = %q, want missing-required message", f.stderr.String())
	}
	if !strings.Contains(f.stdout.String(), "Usage: krail greet <name>") {
		t.Errorf("contextual help not rendered:\n%s", f.stdout.String())
	}
	if runner.initCalled || runner.runCalled {
		t.Error("runner must not be invoked on validation failure")
	}
}

func TestDispatch_LeafMapsArgsAndOptions(t *testing.T) {
	lc, runner := fakeCommand(cmdmodule.Metadata{
		Args: []cmdmodule.ArgumentSpec{
			{Name: "name", Required: true},
			{Name: "greeting", Default: "hello"},
		},
		Options: []cmdmodule.OptionSpec{
			{Name: "--shout", Description: "upper-case the output"},
			{Name: "--retries <n>", Default: "3"},
		},
	}, "greet")
	f := install(t, cmdmodule.Registry{lc})

	if err := execute(t, f, "greet", "world", "--shout"); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if !runner.initCalled || !runner.runCalled {
		t.Fatal("runner lifecycle not fully invoked")
	}
	if got := runner.gotOpts.String("name"); got != "world" {
		t.Errorf("opts[name] = %q, want world", got)
	}
	if got := runner.gotOpts.String("greeting"); got != "hello" {
		t.Errorf("opts[greeting] = %q, want default hello", got)
	}
	if !runner.gotOpts.Bool("shout") {
		t.Error("opts[shout] = false, want true")
	}
	if got := runner.gotOpts.String("retries"); got != "3" {
		t.Errorf("opts[retries] = %q, want declared default 3", got)
	}
}

func TestDispatch_UnknownSubcommand(t *testing.T) {
	add, _ := fakeCommand(cmdmodule.Metadata{}, "module", "add")
	remove, _ := fakeCommand(cmdmodule.Metadata{}, "module", "remove")
	f := install(t, cmdmodule.Registry{add, remove})

	err := execute(t, f, "module", "bogus")

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("Execute() error = %v, want ValidationError", err)
	}
	if !strings.Contains(f.stderr.String(), "Unknown subcommand 'bogus' for 'module'") {
		t.Errorf("stderr = %q, want unknown-subcommand message", f.stderr.String())
	}
}

func TestDispatch_NamespaceWithoutSubcommandRendersHelp(t *testing.T) {
	add, addRunner := fakeCommand(cmdmodule.Metadata{Description: "Add a module"}, "module", "add")
	remove, _ := fakeCommand(cmdmodule.Metadata{}, "module", "remove")
	f := install(t, cmdmodule.Registry{add, remove})

	if err := execute(t, f, "module"); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.Contains(f.stdout.String(), "Commands for module:") {
		t.Errorf("namespace help not rendered:\n%s", f.stdout.String())
	}
	if addRunner.runCalled {
		t.Error("no child must run for a bare namespace invocation")
	}
}

func TestDispatch_NamespaceVariadicConsumesRemainder(t *testing.T) {
	add, runner := fakeCommand(cmdmodule.Metadata{
		Args: []cmdmodule.ArgumentSpec{
			{Name: "dest", Required: true},
			{Name: "files...", Required: true},
		},
	}, "module", "add")
	remove, _ := fakeCommand(cmdmodule.Metadata{}, "module", "remove")
	f := install(t, cmdmodule.Registry{add, remove})

	if err := execute(t, f, "module", "add", "lib", "a.txt", "b.txt"); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if got := runner.gotOpts.String("dest"); got != "lib" {
		t.Errorf("opts[dest] = %q, want lib", got)
	}
	files := runner.gotOpts.Strings("files")
	if len(files) != 2 || files[0] != "a.txt" || files[1] != "b.txt" {
		t.Errorf("opts[files] = %v, want ordered remainder [a.txt b.txt]", files)
	}
}

func TestDispatch_NamespaceChildOptionDefaults(t *testing.T) {
	add, runner := fakeCommand(cmdmodule.Metadata{
		Options: []cmdmodule.OptionSpec{
			{Name: "--retries <n>", Default: "5"},
			{Name: "--force", Default: "true"},
		},
	}, "module", "add")
	remove, _ := fakeCommand(cmdmodule.Metadata{}, "module", "remove")
	f := install(t, cmdmodule.Registry{add, remove})

	if err := execute(t, f, "module", "add"); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	// The namespace grammar declares no per-option entries, so absent
	// keys are filled from the static defaults.
	if got := runner.gotOpts.String("retries"); got != "5" {
		t.Errorf("opts[retries] = %q, want static default 5", got)
	}
	if !runner.gotOpts.Bool("force") {
		t.Error("opts[force] = false, want static default true")
	}
}

func TestDispatch_DuplicatePathFirstRegisteredWins(t *testing.T) {
	first, firstRunner := fakeCommand(cmdmodule.Metadata{}, "module", "add")
	second, secondRunner := fakeCommand(cmdmodule.Metadata{}, "module", "add")
	f := install(t, cmdmodule.Registry{first, second})

	if err := execute(t, f, "module", "add"); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !firstRunner.runCalled {
		t.Error("first-registered command did not run")
	}
	if secondRunner.runCalled {
		t.Error("second-registered duplicate must not run")
	}
}

func TestDispatch_DuplicateLeafFirstRegisteredWins(t *testing.T) {
	first, firstRunner := fakeCommand(cmdmodule.Metadata{}, "build")
	second, secondRunner := fakeCommand(cmdmodule.Metadata{}, "build")
	f := install(t, cmdmodule.Registry{first, second})

	if err := execute(t, f, "build"); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !firstRunner.runCalled {
		t.Error("first-registered command did not run")
	}
	if secondRunner.runCalled {
		t.Error("second-registered duplicate must not run")
	}
}

func TestDispatch_ExecutionError(t *testing.T) {
	lc, runner := fakeCommand(cmdmodule.Metadata{}, "deploy", "staging")
	other, _ := fakeCommand(cmdmodule.Metadata{}, "deploy", "prod")
	runner.runErr = errors.New("connection refused")
	f := install(t, cmdmodule.Registry{lc, other})

	err := execute(t, f, "deploy", "staging")

	var executionErr *ExecutionError
	if !errors.As(err, &executionErr) {
		t.Fatalf("Execute() error = %v, want ExecutionError", err)
	}
	if !strings.Contains(f.stderr.String(), "connection refused") {
		t.Errorf("stderr = %q, want failure message", f.stderr.String())
	}
	// Contextual help for the failed command path.
	if !strings.Contains(f.stdout.String(), "Usage: krail deploy staging") {
		t.Errorf("contextual help not rendered:\n%s", f.stdout.String())
	}
}

func TestDispatch_InitErrorShortCircuitsRun(t *testing.T) {
	lc, runner := fakeCommand(cmdmodule.Metadata{}, "build")
	runner.initErr = errors.New("no project found")
	f := install(t, cmdmodule.Registry{lc})

	err := execute(t, f, "build")

	var executionErr *ExecutionError
	if !errors.As(err, &executionErr) {
		t.Fatalf("Execute() error = %v, want ExecutionError", err)
	}
	if runner.runCalled {
		t.Error("Run must not execute after Init failure")
	}
	if !strings.Contains(f.stderr.String(), "no project found") {
		t.Errorf("stderr = %q, want init failure message", f.stderr.String())
	}
}

func TestDispatch_HelpFlagInterceptsLeaf(t *testing.T) {
	lc, runner := fakeCommand(cmdmodule.Metadata{
		Args: []cmdmodule.ArgumentSpec{{Name: "name", Required: true}},
	}, "greet")
	f := install(t, cmdmodule.Registry{lc})

	if err := execute(t, f, "greet", "--help"); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if runner.runCalled {
		t.Error("runner must not run on a help request")
	}
	// The bare --help matched the grammar despite the missing required
	// positional.
	if !strings.Contains(f.stdout.String(), "Usage: krail greet <name>") {
		t.Errorf("command help not rendered:\n%s", f.stdout.String())
	}
}

func TestHelpFunc_ResolvesNamespaceChild(t *testing.T) {
	add, _ := fakeCommand(cmdmodule.Metadata{Description: "Add a module"}, "module", "add")
	remove, _ := fakeCommand(cmdmodule.Metadata{}, "module", "remove")
	f := install(t, cmdmodule.Registry{add, remove})

	rec := f.router.Record("module")
	if rec == nil {
		t.Fatal("namespace record not registered")
	}
	f.router.helpFunc(rec, []string{"module", "add", "--help"})

	if !strings.Contains(f.stdout.String(), "Add a module") {
		t.Errorf("help for namespace child not rendered:\n%s", f.stdout.String())
	}
}

func TestRecord_OnlyExactRegistrations(t *testing.T) {
	leaf, _ := fakeCommand(cmdmodule.Metadata{}, "build")
	add, _ := fakeCommand(cmdmodule.Metadata{}, "module", "add")
	remove, _ := fakeCommand(cmdmodule.Metadata{}, "module", "remove")
	f := install(t, cmdmodule.Registry{leaf, add, remove})

	if f.router.Record("build") == nil {
		t.Error("leaf command has no parser record")
	}
	if f.router.Record("module") == nil {
		t.Error("namespace root has no parser record")
	}
	if f.router.Record("module add") != nil {
		t.Error("namespace child must not have its own parser record")
	}
}

func TestMapPositionals(t *testing.T) {
	specs := []cmdmodule.ArgumentSpec{
		{Name: "first", Required: true},
		{Name: "second"},
		{Name: "rest..."},
	}

	t.Run("full mapping", func(t *testing.T) {
		opts, missing := mapPositionals(specs, []string{"a", "b", "c", "d"})
		if missing != "" {
			t.Fatalf("missing = %q, want none", missing)
		}
		if opts.String("first") != "a" || opts.String("second") != "b" {
			t.Errorf("scalar mapping wrong: %v", opts)
		}
		rest := opts.Strings("rest")
		if len(rest) != 2 || rest[0] != "c" {
			t.Errorf("variadic mapping = %v, want [c d]", rest)
		}
	})

	t.Run("missing required reported first", func(t *testing.T) {
		_, missing := mapPositionals(specs, nil)
		if missing != "first" {
			t.Errorf("missing = %q, want first", missing)
		}
	})

	t.Run("optional variadic may be empty", func(t *testing.T) {
		opts, missing := mapPositionals(specs, []string{"a"})
		if missing != "" {
			t.Fatalf("missing = %q, want none", missing)
		}
		if rest := opts.Strings("rest"); len(rest) != 0 {
			t.Errorf("variadic = %v, want empty", rest)
		}
	})

	t.Run("required variadic needs at least one value", func(t *testing.T) {
		required := []cmdmodule.ArgumentSpec{{Name: "files...", Required: true}}
		_, missing := mapPositionals(required, nil)
		if missing != "files..." {
			t.Errorf("missing = %q, want files...", missing)
		}
	})
}
