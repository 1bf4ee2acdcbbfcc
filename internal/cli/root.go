// SPDX-License-Identifier: MPL-2.0

// Package cli wires the discovered command registry into the root cobra
// command and owns the process lifecycle: discovery at startup, grammar
// installation, global help interception, and the single exit call.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"krail-cli/internal/config"
	"krail-cli/internal/discovery"
	"krail-cli/internal/logging"
	"krail-cli/internal/router"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// debug raises log verbosity and prints error chains on failure paths.
	debug bool
	// rootDir is the explicit project-root override.
	rootDir string

	// rootCmd is the base command; discovered commands are installed as
	// subcommands by the router.
	rootCmd = &cobra.Command{
		Use:   config.AppName,
		Short: "A CLI assembled from independently authored command modules",
		Long: TitleStyle.Render(config.AppName) + SubtitleStyle.Render(" - a CLI assembled from command modules") + `

krail discovers command manifests (YAML or CUE) under its search roots,
maps each file to a dotted/spaced command path, and routes invocations
to the matching module. Nested directories become namespace commands.

` + SubtitleStyle.Render("Search roots:") + `
  1. ./commands in the working directory
  2. ~/.krail/cmds
  3. any search_paths configured in the program config`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
)

func init() {
	cobra.OnInitialize(applyDebugLevel)

	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output and stack traces")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root-dir", "", "override the project root directory")
}

// applyDebugLevel runs after flag parsing and raises the log level when
// --debug (or the config default) is set.
func applyDebugLevel() {
	if !debug {
		if cfg, err := config.Load(); err == nil && cfg.UI.Debug {
			debug = true
		}
	}
	logging.SetDebug(debug)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute discovers commands, installs the grammar, and runs one
// invocation. It performs the process's only exit calls.
func Execute() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+err.Error())
		cfg = config.DefaultConfig()
	}

	reg, err := discovery.Discover(discovery.DefaultRoots(cfg))
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}

	rt := router.Install(reg, rootCmd, router.Options{
		ProgramName: config.AppName,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Debug:       func() bool { return debug },
		RootDir:     func() string { return rootDir },
	})

	// A bare help request never depends on any command having been
	// matched: it bypasses the grammar entirely.
	if bareHelpRequest(os.Args[1:]) {
		rt.RenderHelp(nil)
		os.Exit(0)
	}

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(fangErrorHandler),
	); err != nil {
		os.Exit(exitCodeFor(rt, err))
	}
	os.Exit(0)
}

// exitCodeFor maps the terminal error of one invocation to its exit
// status, performing parse-error recovery on the way.
func exitCodeFor(rt *router.Router, err error) int {
	var validationErr *router.ValidationError
	var executionErr *router.ExecutionError
	if errors.As(err, &validationErr) || errors.As(err, &executionErr) {
		// Dispatch already printed the message and contextual help.
		return 1
	}

	// The grammar layer rejected the invocation before dispatch ran. The
	// error handler already printed the message; add best-effort
	// contextual help.
	parseErr := &router.ParseError{Candidate: firstNonFlag(os.Args[1:]), Err: err}
	if parseErr.Candidate != "" {
		rt.RenderHelp([]string{parseErr.Candidate})
	} else {
		rt.RenderHelp(nil)
	}
	return 1
}

// fangErrorHandler suppresses the styled error box for outcomes the
// dispatcher already reported with a message and contextual help; any
// other error keeps the default rendering.
func fangErrorHandler(w io.Writer, styles fang.Styles, err error) {
	var validationErr *router.ValidationError
	var executionErr *router.ExecutionError
	if errors.As(err, &validationErr) || errors.As(err, &executionErr) {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}

// bareHelpRequest reports whether the raw arguments contain a help flag
// and no other non-flag token.
func bareHelpRequest(args []string) bool {
	hasHelp := false
	for _, a := range args {
		switch {
		case a == "--help" || a == "-h":
			hasHelp = true
		case !strings.HasPrefix(a, "-"):
			return false
		}
	}
	return hasHelp
}

// firstNonFlag returns the first non-flag argument token, or "".
func firstNonFlag(args []string) string {
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			return a
		}
	}
	return ""
}
