// SPDX-License-Identifier: MPL-2.0

// Package project locates a project root and loads its YAML config. A
// project root is any ancestor directory containing <program>.yml or
// <program>.yaml. Commands that declare requiresProject fail their Init
// phase when no root is found.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// RequiredError reports a command that needs a project context when none
// was found. The message names the expected config file.
type RequiredError struct {
	ProgramName string
	StartDir    string
}

// Error implements the error interface.
func (e *RequiredError) Error() string {
	return fmt.Sprintf(
		"no project found: expected a %s.yml or %s.yaml file in %s or any parent directory",
		e.ProgramName, e.ProgramName, e.StartDir)
}

// configFileNames returns the candidate config file names in lookup order.
func configFileNames(programName string) []string {
	return []string{programName + ".yml", programName + ".yaml"}
}

// FindRoot walks up from startDir looking for the project config file and
// returns the first directory containing one. startDir defaults to the
// working directory when empty.
func FindRoot(programName, startDir string) (string, bool) {
	dir := startDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", false
		}
		dir = cwd
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	dir = abs

	for {
		for _, name := range configFileNames(programName) {
			info, err := os.Stat(filepath.Join(dir, name))
			if err == nil && !info.IsDir() {
				return dir, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// LoadConfig reads the project config from rootDir. A missing file yields
// an empty map without error; a malformed file is an error.
func LoadConfig(programName, rootDir string) (map[string]any, error) {
	var path string
	for _, name := range configFileNames(programName) {
		candidate := filepath.Join(rootDir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			path = candidate
			break
		}
	}
	if path == "" {
		return map[string]any{}, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read project config %s: %w", path, err)
	}

	settings := v.AllSettings()
	if settings == nil {
		settings = map[string]any{}
	}
	return settings, nil
}
