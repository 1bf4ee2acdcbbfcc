// SPDX-License-Identifier: MPL-2.0

// Package discovery maps a file tree of command manifests to the flat
// registry of dotted/spaced command paths. The walk is depth-first and
// strictly sequential, so registration order is deterministic and equal
// to directory-listing order. A file that fails to load is logged and
// skipped; sibling discovery continues unaffected.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"krail-cli/internal/config"
	"krail-cli/internal/logging"
	"krail-cli/internal/runtime"
	"krail-cli/pkg/cmdmodule"
)

// IndexBaseName is the file base name that maps to its parent directory's
// command path instead of contributing its own token.
const IndexBaseName = "index"

// declarationSuffixes mark files that only declare shapes and never carry
// a runnable command; they are ignored outright.
var declarationSuffixes = []string{".schema.yaml", ".schema.yml", ".schema.cue"}

// loaders maps recognized manifest extensions to their parser.
var loaders = map[string]func(string) (*Manifest, error){
	".yaml": loadYAMLManifest,
	".yml":  loadYAMLManifest,
	".cue":  loadCUEManifest,
}

// LoadError reports a single manifest that failed to load. It is logged
// and the file is excluded from the registry; it never aborts discovery.
type LoadError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load command module %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// Discover scans the given root directories in order and returns the
// registry of loaded commands. A nonexistent root is skipped; a root that
// exists but cannot be listed is a hard error.
func Discover(roots []string) (cmdmodule.Registry, error) {
	var reg cmdmodule.Registry
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve search root %s: %w", root, err)
		}
		if _, err := os.Stat(abs); os.IsNotExist(err) {
			logging.Debugf("search root %s does not exist, skipping", abs)
			continue
		}
		if err := walkDir(abs, nil, &reg); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// DefaultRoots returns the standard search roots in precedence order: the
// working directory's commands/ dir, the user commands dir, then any
// configured search paths.
func DefaultRoots(cfg *config.Config) []string {
	roots := []string{"commands"}
	if userDir, err := config.CommandsDir(); err == nil {
		roots = append(roots, userDir)
	}
	if cfg != nil {
		roots = append(roots, cfg.SearchPaths...)
	}
	return roots
}

// walkDir visits one directory depth-first, accumulating prefix as the
// chain of directory-name tokens below the search root.
func walkDir(dir string, prefix []string, reg *cmdmodule.Registry) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read search root %s: %w", dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			next := append(append([]string(nil), prefix...), entry.Name())
			if err := walkDir(path, next, reg); err != nil {
				return err
			}
			continue
		}

		cmdPath, ok := commandPath(entry.Name(), prefix)
		if !ok {
			continue
		}

		lc, err := loadCommand(path, cmdPath)
		if err != nil {
			logging.Warnf("%v", &LoadError{Path: path, Err: err})
			continue
		}
		*reg = append(*reg, lc)
	}
	return nil
}

// commandPath maps a file name plus its directory prefix to a command
// path. The second return is false when the file yields no command: an
// unrecognized extension, a declaration-only file, or an index file
// directly under a search root.
func commandPath(fileName string, prefix []string) ([]string, bool) {
	for _, suffix := range declarationSuffixes {
		if strings.HasSuffix(fileName, suffix) {
			return nil, false
		}
	}

	ext := filepath.Ext(fileName)
	if _, ok := loaders[ext]; !ok {
		return nil, false
	}

	base := strings.TrimSuffix(fileName, ext)
	if base == IndexBaseName {
		if len(prefix) == 0 {
			return nil, false
		}
		return append([]string(nil), prefix...), true
	}
	return append(append([]string(nil), prefix...), base), true
}

// loadCommand parses and validates a single manifest and wraps it as a
// registry entry.
func loadCommand(path string, cmdPath []string) (*cmdmodule.LoadedCommand, error) {
	load := loaders[filepath.Ext(path)]

	m, err := load(path)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("manifest has no content")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	meta := m.Metadata()
	return &cmdmodule.LoadedCommand{
		Path:       cmdPath,
		SourcePath: path,
		Meta:       meta,
		New:        runtime.Factory(meta, m.Run, path),
	}, nil
}
