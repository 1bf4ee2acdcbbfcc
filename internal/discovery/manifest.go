// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"fmt"

	"krail-cli/pkg/cmdmodule"
)

// Manifest is the on-disk declaration of one command module. The same
// shape is accepted in YAML and CUE form.
type Manifest struct {
	Usage           string                   `yaml:"usage" json:"usage"`
	Description     string                   `yaml:"description" json:"description"`
	RequiresProject bool                     `yaml:"requiresProject" json:"requiresProject"`
	Args            []cmdmodule.ArgumentSpec `yaml:"args" json:"args"`
	Options         []cmdmodule.OptionSpec   `yaml:"options" json:"options"`
	// Run is the shell script executed when the command is dispatched.
	Run string `yaml:"run" json:"run"`
}

// Validate checks the constraints a manifest must satisfy to become a
// registry entry. Violations reject the whole file at load time.
func (m *Manifest) Validate() error {
	if m.Run == "" {
		return fmt.Errorf("manifest declares no runnable implementation (empty 'run')")
	}
	for i, arg := range m.Args {
		if arg.Name == "" {
			return fmt.Errorf("args[%d]: argument name must not be empty", i)
		}
		if arg.Variadic() && i != len(m.Args)-1 {
			return fmt.Errorf("args[%d]: variadic argument %q must be the last argument", i, arg.Name)
		}
	}
	for i, opt := range m.Options {
		if opt.FlagName() == "" {
			return fmt.Errorf("options[%d]: option name must not be empty", i)
		}
	}
	return nil
}

// Metadata converts the manifest's declarative fields into the registry's
// static command metadata.
func (m *Manifest) Metadata() cmdmodule.Metadata {
	return cmdmodule.Metadata{
		Usage:           m.Usage,
		Description:     m.Description,
		Args:            m.Args,
		Options:         m.Options,
		RequiresProject: m.RequiresProject,
	}
}
