// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/pyrt-dev/pyrt/pkg/pyversion"
)

var validate = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report mapstructure keys ("release_source.api_url") rather than Go names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("pyversion", func(fl validator.FieldLevel) bool {
		_, err := pyversion.Parse(fl.Field().String())
		return err == nil
	})
	return v
})

// Validate checks every field and returns an InvalidConfigError listing all
// violations.
func (c Config) Validate() error {
	err := validate().Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	out := &InvalidConfigError{}
	for _, fe := range fieldErrs {
		out.FieldErrors = append(out.FieldErrors, errors.New(describe(fe)))
	}
	return out
}

func describe(fe validator.FieldError) string {
	path := fe.Namespace()
	if _, rest, ok := strings.Cut(path, "."); ok {
		path = rest
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", path)
	case "min":
		return fmt.Sprintf("%s must be at least %s (got: %v)", path, fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s (got: %v)", path, fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("%s must not be negative (got: %v)", path, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", path, fe.Param(), fe.Value())
	case "url":
		return fmt.Sprintf("%s must be a valid URL (got: %v)", path, fe.Value())
	case "pyversion":
		return fmt.Sprintf("%s must be a version like 3.12 or 3.12.4 (got: %v)", path, fe.Value())
	default:
		return fmt.Sprintf("%s failed validation %q (got: %v)", path, fe.Tag(), fe.Value())
	}
}
