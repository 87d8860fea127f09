package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/strataengine/strata/internal/ir"
)

// LoadDir evaluates every CUE file in a directory and compiles each
// entry under the top-level "schema" struct. Schemas come back sorted
// by name so callers see a stable order.
func LoadDir(dir string) ([]*ir.DomainSchema, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("definitions directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	files, err := findCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", err)
	}

	schemasVal := value.LookupPath(cue.ParsePath("schema"))
	if !schemasVal.Exists() {
		return nil, fmt.Errorf("no top-level schema struct in %s", dir)
	}

	iter, err := schemasVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterating schemas: %w", err)
	}

	var schemas []*ir.DomainSchema
	for iter.Next() {
		schema, err := CompileSchema(iter.Selector().String(), iter.Value())
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, schema)
	}
	if len(schemas) == 0 {
		return nil, fmt.Errorf("schema struct in %s declares no schemas", dir)
	}

	sort.Slice(schemas, func(i, j int) bool { return schemas[i].ID < schemas[j].ID })
	return schemas, nil
}

func findCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
