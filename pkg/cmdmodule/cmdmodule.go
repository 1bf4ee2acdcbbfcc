// SPDX-License-Identifier: MPL-2.0

// Package cmdmodule defines the static data model for discovered command
// modules: argument/option descriptors, command metadata, the runnable
// interface, and the registry produced by discovery.
package cmdmodule

import (
	"context"
	"io"
	"strings"
)

// VariadicSuffix marks an argument name as consuming the positional
// remainder when it appears as a trailing suffix (e.g. "files...").
const VariadicSuffix = "..."

// ArgumentSpec describes one declared positional argument.
type ArgumentSpec struct {
	// Name is the declared identifier; a trailing "..." marks it variadic.
	Name string `yaml:"name" json:"name"`
	// Required arguments must be supplied; enforcement happens at dispatch.
	Required bool `yaml:"required" json:"required"`
	// Description is shown in the Arguments help block.
	Description string `yaml:"description" json:"description"`
	// Default fills the runtime value when the argument is omitted.
	Default string `yaml:"default" json:"default"`
}

// Variadic reports whether the spec consumes the positional remainder.
func (a ArgumentSpec) Variadic() bool {
	return strings.HasSuffix(a.Name, VariadicSuffix)
}

// Ident returns the true identifier, with any variadic suffix stripped.
func (a ArgumentSpec) Ident() string {
	return strings.TrimSuffix(a.Name, VariadicSuffix)
}

// OptionSpec describes one declared flag option in flag form,
// e.g. "--retries <n>" or "--force".
type OptionSpec struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Default     string `yaml:"default" json:"default"`
}

// FlagName returns the bare kebab-case flag name with dashes and any value
// placeholder stripped ("--retries <n>" -> "retries").
func (o OptionSpec) FlagName() string {
	name := strings.TrimLeft(o.Name, "-")
	if i := strings.IndexByte(name, ' '); i >= 0 {
		name = name[:i]
	}
	return name
}

// Ident returns the runtime lookup key: the flag name converted from
// kebab-case to camelCase ("dry-run" -> "dryRun").
func (o OptionSpec) Ident() string {
	parts := strings.Split(o.FlagName(), "-")
	for i := 1; i < len(parts); i++ {
		if parts[i] == "" {
			continue
		}
		parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
	}
	return strings.Join(parts, "")
}

// TakesValue reports whether the declared flag form carries a value
// placeholder ("--retries <n>") as opposed to a boolean switch ("--force").
func (o OptionSpec) TakesValue() bool {
	return strings.ContainsRune(o.Name, ' ')
}

// Metadata is the static descriptor attached to a command module.
type Metadata struct {
	Usage           string         `yaml:"usage" json:"usage"`
	Description     string         `yaml:"description" json:"description"`
	Args            []ArgumentSpec `yaml:"args" json:"args"`
	Options         []OptionSpec   `yaml:"options" json:"options"`
	RequiresProject bool           `yaml:"requiresProject" json:"requiresProject"`
}

// Options is the flat key/value map handed to a command at dispatch:
// parsed flag values plus mapped positional arguments. Values are string,
// bool, or []string (variadic remainder).
type Options map[string]any

// String returns the string value stored under key, or "".
func (o Options) String(key string) string {
	if v, ok := o[key].(string); ok {
		return v
	}
	return ""
}

// Bool returns the bool value stored under key, or false.
func (o Options) Bool(key string) bool {
	if v, ok := o[key].(bool); ok {
		return v
	}
	return false
}

// Strings returns the []string value stored under key, or nil.
func (o Options) Strings(key string) []string {
	if v, ok := o[key].([]string); ok {
		return v
	}
	return nil
}

// RuntimeContext carries the per-invocation environment a factory needs to
// construct a command instance. It is rebuilt for every dispatch.
type RuntimeContext struct {
	// ProgramName is the CLI binary name (used for project config lookup).
	ProgramName string
	// RootDirOverride is the explicit --root-dir value, empty when unset.
	RootDirOverride string
	// Debug mirrors the global --debug flag.
	Debug bool

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Runner is the lifecycle a command instance exposes. Both phases are run
// to completion for every dispatch; instances are never reused.
type Runner interface {
	// Init performs per-invocation setup (project root resolution, config
	// loading). A command that requires a project fails here when none is
	// found.
	Init(ctx context.Context) error
	// Run executes the command with the fully mapped option set.
	Run(ctx context.Context, opts Options) error
}

// Factory constructs a fresh Runner for one dispatch.
type Factory func(rt RuntimeContext) Runner

// LoadedCommand ties a discovered command path to its metadata and factory.
type LoadedCommand struct {
	// Path is the ordered token sequence identifying the command.
	Path []string
	// SourcePath is the manifest file the command was loaded from.
	SourcePath string
	// Meta is the static metadata read from the manifest.
	Meta Metadata
	// New constructs the executable instance for one dispatch.
	New Factory
}

// Name returns the space-joined command path, the registry's primary key.
func (lc *LoadedCommand) Name() string {
	return strings.Join(lc.Path, " ")
}

// Root returns the first path token.
func (lc *LoadedCommand) Root() string {
	return lc.Path[0]
}

// Registry is the ordered, immutable result of one discovery run.
// Insertion order equals traversal order; duplicates across search roots
// both exist and the first registered entry wins at dispatch.
type Registry []*LoadedCommand

// Find returns the first command whose path equals name, or nil.
func (r Registry) Find(name string) *LoadedCommand {
	for _, lc := range r {
		if lc.Name() == name {
			return lc
		}
	}
	return nil
}

// WithPrefix returns every command whose path starts with prefix followed
// by a space, preserving registry order.
func (r Registry) WithPrefix(prefix string) []*LoadedCommand {
	var out []*LoadedCommand
	for _, lc := range r {
		if strings.HasPrefix(lc.Name(), prefix+" ") {
			out = append(out, lc)
		}
	}
	return out
}

// Group is the set of commands sharing a first path token. It is derived
// from the registry at router build time, never persisted.
type Group struct {
	Root     string
	Commands []*LoadedCommand
}

// Leaf reports whether every command in the group names the root token
// itself, i.e. the group carries no subcommand paths. Duplicate
// registrations of the same leaf path across search roots still form a
// leaf group; the first registered entry wins at dispatch. Everything
// else is a namespace.
func (g *Group) Leaf() bool {
	for _, lc := range g.Commands {
		if lc.Name() != g.Root {
			return false
		}
	}
	return true
}

// Groups partitions the registry by first path token, preserving the order
// in which each root token first appears.
func (r Registry) Groups() []*Group {
	byRoot := make(map[string]*Group)
	var order []*Group
	for _, lc := range r {
		g, ok := byRoot[lc.Root()]
		if !ok {
			g = &Group{Root: lc.Root()}
			byRoot[lc.Root()] = g
			order = append(order, g)
		}
		g.Commands = append(g.Commands, lc)
	}
	return order
}
