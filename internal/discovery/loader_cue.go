// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// manifestSchema constrains CUE manifests to the Manifest shape.
const manifestSchema = `
#Manifest: {
	usage?:           string
	description?:     string
	requiresProject?: bool
	args?: [...{
		name!:        string
		required?:    bool
		description?: string
		default?:     string
	}]
	options?: [...{
		name!:        string
		description?: string
		default?:     string
	}]
	run!: string
}
`

// loadCUEManifest parses a CUE command manifest: compile the file, unify
// it with the #Manifest schema, then decode into the shared struct.
func loadCUEManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(manifestSchema)
	if schemaValue.Err() != nil {
		return nil, fmt.Errorf("internal error: failed to compile manifest schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", userValue.Err())
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Manifest"))
	unified := schema.Unify(userValue)
	// Concrete(false): optional manifest fields may be absent.
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	var m Manifest
	if err := unified.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}
