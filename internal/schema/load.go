package schema

import (
	"fmt"
	"os"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// LoadDir loads every CUE file in a directory, compiles the resource
// definitions, and builds the registry. This is the startup path of the
// server; validation failures abort startup.
func LoadDir(dir string) (*Registry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("schema directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("schema path %s is not a directory", dir)
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
		return nil, formatCUEError(err)
	}

	types, err := CompileResources(value)
	if err != nil {
		return nil, err
	}

	return NewRegistry(types)
}

// LoadString compiles resource definitions from a CUE source string and
// builds the registry. Intended for tests and embedded configuration.
func LoadString(src string) (*Registry, error) {
	ctx := cuecontext.New()
	value := ctx.CompileString(src)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	types, err := CompileResources(value)
	if err != nil {
		return nil, err
	}

	return NewRegistry(types)
}
