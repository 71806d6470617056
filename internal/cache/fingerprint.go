package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"

	"github.com/nullbridge/testforge/internal/spec"
)

// fingerprintInputs is hashed verbatim (SPEC_FULL.md §13.2: no
// normalization beyond Go's own deterministic map-key JSON ordering) to
// produce a CollectionFingerprint (spec.md §3).
type fingerprintInputs struct {
	SpecName            string            `json:"spec_name"`
	RecipePath          string            `json:"recipe_path"`
	RecipeContentHash   string            `json:"recipe_content_hash"`
	NodeAttributes      map[string]any    `json:"node_attributes"`
	EnvironmentDescrip  environmentDigest `json:"environment"`
	ValidatorConfigs    []map[string]any  `json:"validator_configs"`
}

type environmentDigest struct {
	Type         string         `json:"type"`
	Distribution string         `json:"distribution"`
	Options      map[string]any `json:"options"`
}

// Fingerprint computes the deterministic hash keying the Result Cache
// (spec.md §3 "CollectionFingerprint"). nodeAttributes is the recipe's
// resolved node-attribute tree as the Executor would pass it to the
// environment.
func Fingerprint(s spec.TestSpec, nodeAttributes map[string]any) (string, error) {
	recipeHash, err := hashFile(s.Recipe.Path)
	if err != nil {
		return "", err
	}

	validatorConfigs := make([]map[string]any, 0, len(s.Validators))
	for _, v := range s.Validators {
		validatorConfigs = append(validatorConfigs, map[string]any{
			"type":   v.Type,
			"name":   v.Name,
			"config": v.Config,
		})
	}

	inputs := fingerprintInputs{
		SpecName:          s.Name,
		RecipePath:        s.Recipe.Path,
		RecipeContentHash: recipeHash,
		NodeAttributes:    nodeAttributes,
		EnvironmentDescrip: environmentDigest{
			Type:         s.Environment.Type,
			Distribution: s.Environment.Distribution,
			Options:      s.Environment.Options,
		},
		ValidatorConfigs: validatorConfigs,
	}

	encoded, err := json.Marshal(inputs)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

// hashFile returns the SHA-256 hex digest of a file's content, or an empty
// string (not an error) if the file does not exist — a recipe or setup
// file created later should not block fingerprinting a test that hasn't
// run yet.
func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
