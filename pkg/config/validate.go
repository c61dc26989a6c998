package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var configValidate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(mapstructureName)
	_ = v.RegisterValidation("ownerrepo", validateOwnerRepo)
	return v
}

// mapstructureName reports fields by their config key in validation errors.
func mapstructureName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
	if name == "" || name == "-" {
		return field.Name
	}
	return name
}

// validateOwnerRepo accepts GitHub "owner/repo" slugs.
func validateOwnerRepo(fl validator.FieldLevel) bool {
	owner, repo, ok := strings.Cut(fl.Field().String(), "/")
	return ok && owner != "" && repo != "" && !strings.Contains(repo, "/")
}

// ValidationError lists every problem found in a config.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

// Validate checks field constraints and that the configured directories
// exist. All problems are reported at once in a *ValidationError.
func (c *Config) Validate() error {
	var problems []string

	if err := configValidate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("failed to validate config: %w", err)
		}
		for _, fe := range fieldErrs {
			problems = append(problems, describe(fe))
		}
	}

	if c.PluginsPath != "" && !isDir(c.PluginsPath) {
		problems = append(problems, fmt.Sprintf("plugins_path does not exist: %s", c.PluginsPath))
	}
	if c.ReportsBackend == BackendLocal && c.ReportsPath != "" && !isDir(c.ReportsPath) {
		problems = append(problems, fmt.Sprintf("reports_path does not exist: %s", c.ReportsPath))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_if":
		params := strings.Fields(fe.Param())
		return fmt.Sprintf("%s is required for %s backend", field, params[len(params)-1])
	case "gt":
		if fe.Param() == "0" {
			return field + " must be positive"
		}
		return fmt.Sprintf("%s must be > %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.Join(strings.Fields(fe.Param()), ", "))
	case "hostname_port":
		return field + " must be host:port"
	case "ownerrepo":
		return field + " must look like owner/repo"
	}
	return fmt.Sprintf("%s failed %s check", field, fe.Tag())
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
