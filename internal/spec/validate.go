package spec

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/nullbridge/testforge/internal/errs"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	specNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()
		_ = v.RegisterValidation("spec_name", func(fl validator.FieldLevel) bool {
			return specNamePattern.MatchString(fl.Field().String())
		})
		validateInst = v
	})
	return validateInst
}

// Validate checks a single TestSpec's struct-level and cross-field invariants
// (spec.md §3: unique name enforced by the caller, requires/before resolved
// elsewhere by the planner, timeout range enforced here).
func Validate(s TestSpec) error {
	v := validatorInstance()
	if err := v.Struct(s); err != nil {
		return convertValidationError(err)
	}
	for i, vc := range s.Validators {
		if strings.TrimSpace(vc.Type) == "" {
			return errs.NewConfigurationError(fmt.Sprintf("validators[%d].type", i), "validator type is required", nil)
		}
	}
	return nil
}

// ValidateSet validates every spec and additionally enforces the uniqueness
// invariant (spec.md §3: "unique name").
func ValidateSet(specs []TestSpec) error {
	seen := make(map[string]struct{}, len(specs))
	var dupes []string
	for _, s := range specs {
		if _, exists := seen[s.Name]; exists {
			dupes = append(dupes, s.Name)
			continue
		}
		seen[s.Name] = struct{}{}
	}
	if len(dupes) > 0 {
		sort.Strings(dupes)
		return errs.NewConfigurationError("name", fmt.Sprintf("duplicate spec name(s): %s", strings.Join(dupes, ", ")), nil)
	}

	for _, s := range specs {
		if err := Validate(s); err != nil {
			return err
		}
	}
	return nil
}

func convertValidationError(err error) error {
	if err == nil {
		return nil
	}
	if ves, ok := err.(validator.ValidationErrors); ok && len(ves) > 0 {
		fe := ves[0]
		field := fe.Namespace()
		return errs.NewConfigurationError(field, fmt.Sprintf("%s failed validation for tag %q", field, fe.Tag()), err)
	}
	return errs.NewConfigurationError("spec", err.Error(), err)
}
