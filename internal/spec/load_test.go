package spec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const twoDocYAML = `
name: first
recipe:
  path: recipes/first.rb
environment:
  type: local
  distribution: ubuntu
validators:
  - type: package
    config:
      name: git
---
name: second
recipe:
  path: recipes/second.rb
environment:
  type: container
  distribution: arch
dependencies:
  requires: [first]
validators:
  - type: service
skip: "needs hardware"
`

func TestLoadBytes_MultiDocument(t *testing.T) {
	t.Parallel()

	specs, err := LoadBytes("inline.yaml", []byte(twoDocYAML))
	require.NoError(t, err)
	require.Len(t, specs, 2)

	require.Equal(t, "first", specs[0].Name)
	require.Equal(t, "recipes/first.rb", specs[0].Recipe.Path)
	require.Nil(t, specs[0].Skip)

	require.Equal(t, "second", specs[1].Name)
	require.Equal(t, []string{"first"}, specs[1].Dependencies.Requires)
	require.NotNil(t, specs[1].Skip)
	require.True(t, specs[1].Skip.Skipped)
	require.Equal(t, "needs hardware", specs[1].Skip.Reason)
}

func TestLoadBytes_SkipVariants(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"bool":      "true",
		"string":    `"deferred"`,
		"structure": "{until: \"2026-01-01\", reason: \"blocked\"}",
	}

	for name, skipYAML := range cases {
		skipYAML := skipYAML
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			doc := "name: x\nrecipe:\n  path: r.rb\nenvironment:\n  type: local\n  distribution: ubuntu\nvalidators:\n  - type: package\nskip: " + skipYAML + "\n"
			specs, err := LoadBytes("inline.yaml", []byte(doc))
			require.NoError(t, err)
			require.Len(t, specs, 1)
			require.NotNil(t, specs[0].Skip)
			require.True(t, specs[0].Skip.Skipped)
		})
	}
}

func TestValidateSet_DetectsDuplicateNames(t *testing.T) {
	t.Parallel()

	specs, err := LoadBytes("inline.yaml", []byte(`
name: dup
recipe:
  path: r.rb
environment:
  type: local
  distribution: ubuntu
validators:
  - type: package
---
name: dup
recipe:
  path: r2.rb
environment:
  type: local
  distribution: ubuntu
validators:
  - type: package
`))
	require.NoError(t, err)
	require.Len(t, specs, 2)

	err = ValidateSet(specs)
	require.Error(t, err)
	require.Contains(t, err.Error(), "dup")
}

func TestOptions_TimeoutSecondsDefault(t *testing.T) {
	t.Parallel()
	require.Equal(t, 300, Options{}.TimeoutSeconds())
	require.Equal(t, 45, Options{Timeout: 45}.TimeoutSeconds())
}
