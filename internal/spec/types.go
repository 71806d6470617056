// Package spec defines the TestSpec document schema (spec.md §3, §6): the
// declarative YAML documents the engine plans and executes, plus the
// struct/cross-field validation applied to them.
package spec

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// TestSpec is one declarative test document.
type TestSpec struct {
	Name         string            `yaml:"name" validate:"required,spec_name"`
	Description  string            `yaml:"description,omitempty"`
	Tags         []string          `yaml:"tags,omitempty"`
	Skip         *Skip             `yaml:"-"`
	Recipe       Recipe            `yaml:"recipe" validate:"required"`
	Environment  Environment       `yaml:"environment" validate:"required"`
	Dependencies Dependencies      `yaml:"dependencies,omitempty"`
	Setup        Setup             `yaml:"setup,omitempty"`
	Cleanup      Cleanup           `yaml:"cleanup,omitempty"`
	Validators   []ValidatorConfig `yaml:"validators" validate:"required,min=1,dive"`
	Options      Options           `yaml:"options,omitempty"`
}

// Skip marks a spec as skipped, either unconditionally or until a date.
type Skip struct {
	Skipped bool
	Reason  string
	Until   string // YYYY-MM-DD, empty when unconditional
}

// Recipe names the configuration-management script applied inside the environment.
type Recipe struct {
	Path        string            `yaml:"path" validate:"required"`
	NodeJSON    map[string]any    `yaml:"node_json,omitempty"`
	DataBags    map[string]any    `yaml:"data_bags,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
}

// Environment describes the isolated execution target a spec runs inside.
type Environment struct {
	Type         string         `yaml:"type" validate:"required,oneof=container vm local"`
	Distribution string         `yaml:"distribution" validate:"required"`
	Options      map[string]any `yaml:"options,omitempty"`
}

// Dependencies captures the requires/before edges used by the planner.
type Dependencies struct {
	Requires []string `yaml:"requires,omitempty"`
	Before   []string `yaml:"before,omitempty"`
}

// FileCopy describes one setup-time file copy into the environment.
type FileCopy struct {
	Source      string `yaml:"source" validate:"required"`
	Destination string `yaml:"destination" validate:"required"`
}

// Setup describes ordered provisioning steps run before the recipe.
type Setup struct {
	Packages []string   `yaml:"packages,omitempty"`
	Files    []FileCopy `yaml:"files,omitempty"`
	Commands []string   `yaml:"commands,omitempty"`
}

// Cleanup describes teardown commands and whether they always run.
type Cleanup struct {
	Always   bool     `yaml:"always,omitempty"`
	Commands []string `yaml:"commands,omitempty"`
}

// ValidatorConfig names one validator to dispatch after the recipe runs.
type ValidatorConfig struct {
	Type   string         `yaml:"type" validate:"required"`
	Name   string         `yaml:"name,omitempty"`
	Config map[string]any `yaml:"config,omitempty"`
}

// Resources declares the resource requirements hint for a spec.
type Resources struct {
	CPU    float64 `yaml:"cpu,omitempty"`
	Memory string  `yaml:"memory,omitempty"`
	Disk   string  `yaml:"disk,omitempty"`
}

// Options configures per-spec execution behavior.
type Options struct {
	Timeout         int       `yaml:"timeout,omitempty" validate:"omitempty,min=1,max=3600"`
	Retries         int       `yaml:"retries,omitempty" validate:"omitempty,min=0,max=10"`
	ContinueOnError bool      `yaml:"continue_on_error,omitempty"`
	ParallelGroup   string    `yaml:"parallel_group,omitempty"`
	Resources       Resources `yaml:"resources,omitempty"`
}

const defaultTimeoutSeconds = 300

// TimeoutSeconds returns the configured timeout, defaulting to 300 (spec.md §3).
func (o Options) TimeoutSeconds() int {
	if o.Timeout <= 0 {
		return defaultTimeoutSeconds
	}
	return o.Timeout
}

// UnmarshalYAML decodes the polymorphic `skip` field into a normalized Skip value.
func (t *TestSpec) UnmarshalYAML(value *yaml.Node) error {
	type rawSpec struct {
		Name         string            `yaml:"name"`
		Description  string            `yaml:"description"`
		Tags         []string          `yaml:"tags"`
		Skip         yaml.Node         `yaml:"skip"`
		Recipe       Recipe            `yaml:"recipe"`
		Environment  Environment       `yaml:"environment"`
		Dependencies Dependencies      `yaml:"dependencies"`
		Setup        Setup             `yaml:"setup"`
		Cleanup      Cleanup           `yaml:"cleanup"`
		Validators   []ValidatorConfig `yaml:"validators"`
		Options      Options           `yaml:"options"`
	}

	var raw rawSpec
	if err := value.Decode(&raw); err != nil {
		return err
	}

	t.Name = raw.Name
	t.Description = raw.Description
	t.Tags = raw.Tags
	t.Recipe = raw.Recipe
	t.Environment = raw.Environment
	t.Dependencies = raw.Dependencies
	t.Setup = raw.Setup
	t.Cleanup = raw.Cleanup
	t.Validators = raw.Validators
	t.Options = raw.Options
	t.Skip = decodeSkip(&raw.Skip)
	return nil
}

func decodeSkip(node *yaml.Node) *Skip {
	if node == nil || node.Kind == 0 {
		return nil
	}

	switch node.Kind {
	case yaml.ScalarNode:
		var asBool bool
		if err := node.Decode(&asBool); err == nil {
			if !asBool {
				return nil
			}
			return &Skip{Skipped: true}
		}
		var asString string
		if err := node.Decode(&asString); err == nil && strings.TrimSpace(asString) != "" {
			return &Skip{Skipped: true, Reason: asString}
		}
		return nil
	case yaml.MappingNode:
		var structured struct {
			Until  string `yaml:"until"`
			Reason string `yaml:"reason"`
		}
		if err := node.Decode(&structured); err != nil {
			return nil
		}
		return &Skip{Skipped: true, Reason: structured.Reason, Until: structured.Until}
	default:
		return nil
	}
}

// HasTag reports whether the spec declares the given tag.
func (t TestSpec) HasTag(tag string) bool {
	for _, candidate := range t.Tags {
		if candidate == tag {
			return true
		}
	}
	return false
}

// ByName builds a name-keyed lookup table for a set of specs.
func ByName(specs []TestSpec) map[string]*TestSpec {
	out := make(map[string]*TestSpec, len(specs))
	for i := range specs {
		out[specs[i].Name] = &specs[i]
	}
	return out
}
