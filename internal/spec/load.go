package spec

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nullbridge/testforge/internal/errs"
)

// LoadFile parses one or more YAML documents from path into TestSpecs. A
// file may contain multiple `---`-separated documents (spec.md §6).
func LoadFile(path string) ([]TestSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.NewConfigurationError(path, "reading spec file", err)
	}
	return LoadBytes(path, data)
}

// LoadBytes parses raw YAML bytes into TestSpecs, attributing errors to path
// for diagnostics.
func LoadBytes(path string, data []byte) ([]TestSpec, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var specs []TestSpec
	for {
		var doc TestSpec
		err := dec.Decode(&doc)
		if err != nil {
			if err.Error() == "EOF" {
				break
			}
			return nil, errs.NewConfigurationError(path, fmt.Sprintf("parsing YAML document: %v", err), err)
		}
		if doc.Name == "" {
			continue // empty document between `---` separators
		}
		specs = append(specs, doc)
	}
	return specs, nil
}

// LoadDir loads the spec documents of each given file path, in order, and
// concatenates them; it does not list directories itself.
func LoadDir(paths []string) ([]TestSpec, error) {
	var all []TestSpec
	for _, p := range paths {
		specs, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		all = append(all, specs...)
	}
	return all, nil
}
