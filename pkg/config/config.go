// Package config loads struct-tagged configuration from environment variables
// and an optional YAML file.
//
// Supported tags:
//
//	env:"NAME"        environment variable to read
//	default:"value"   applied when the field is still zero after loading
//	required:"true"   error when the field is zero and has no default
//	yaml:"name"       key used by the YAML overlay
//
// Nested structs are walked recursively. Supported field kinds are string,
// int/int64, float32/float64, bool, time.Duration and []string (comma separated).
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Validator interface allows config structs to implement custom validation logic.
// If a config struct implements this interface, validation will be automatically
// called after loading configuration from files and environment variables.
type Validator interface {
	Validate() error
}

// setValue parses raw into field according to the field's type.
func setValue(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("failed to convert %q to duration: %w", raw, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("failed to convert %q to int: %w", raw, err)
		}
		field.SetInt(v)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("failed to convert %q to float: %w", raw, err)
		}
		field.SetFloat(v)
	case reflect.Bool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("failed to convert %q to bool: %w", raw, err)
		}
		field.SetBool(v)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		var values []string
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		slice := reflect.MakeSlice(field.Type(), len(values), len(values))
		for i, v := range values {
			slice.Index(i).SetString(v)
		}
		field.Set(slice)
	default:
		return fmt.Errorf("unsupported kind %s", field.Kind())
	}
	return nil
}

func isNestedStruct(field reflect.Value) bool {
	return field.Kind() == reflect.Struct && field.Type() != durationType
}

// applyEnv copies set environment variables into tagged fields.
func applyEnv(val reflect.Value) error {
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		if !fieldType.IsExported() {
			continue
		}

		if isNestedStruct(field) {
			if err := applyEnv(field); err != nil {
				return err
			}
			continue
		}

		tag := fieldType.Tag.Get("env")
		if tag == "" {
			continue
		}
		envVal, ok := os.LookupEnv(tag)
		if !ok || envVal == "" {
			continue
		}
		if err := setValue(field, envVal); err != nil {
			return fmt.Errorf("env %s: %w", tag, err)
		}
	}
	return nil
}

// applyDefaults fills zero fields from their default tag and reports missing
// required fields. All problems are collected rather than stopping at the first.
func applyDefaults(val reflect.Value) error {
	var result error
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		if !fieldType.IsExported() {
			continue
		}

		if isNestedStruct(field) {
			if err := applyDefaults(field); err != nil {
				result = multierror.Append(result, err)
			}
			continue
		}

		if !field.IsZero() {
			continue
		}
		// an explicit zero from the environment, such as "false", wins over the default
		if envVal, ok := os.LookupEnv(fieldType.Tag.Get("env")); ok && envVal != "" {
			continue
		}

		defaultTag, hasDefault := fieldType.Tag.Lookup("default")
		if hasDefault && defaultTag != "" {
			if err := setValue(field, defaultTag); err != nil {
				result = multierror.Append(result, fmt.Errorf("default for %s: %w", fieldType.Name, err))
			}
			continue
		}

		required := strings.ToLower(fieldType.Tag.Get("required"))
		if required == "true" || required == "1" {
			result = multierror.Append(result, fmt.Errorf("required field env:%s / yaml:%s is missing",
				fieldType.Tag.Get("env"), fieldType.Tag.Get("yaml")))
		}
	}
	return result
}

func validate(v any) error {
	if validator, ok := v.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}
	return nil
}

// GetConfigFromEnvVars loads configuration from environment variables only.
// On error dest is reset to its zero value.
//
//	var cfg MyConfig
//	err := GetConfigFromEnvVars(&cfg)
func GetConfigFromEnvVars[T any](dest *T) error {
	val := reflect.ValueOf(dest).Elem()
	if val.Kind() != reflect.Struct {
		return fmt.Errorf("config destination must be a struct, got %s", val.Kind())
	}

	err := applyEnv(val)
	if err == nil {
		err = applyDefaults(val)
	}
	if err != nil {
		var zero T
		*dest = zero
		return err
	}

	// *T carries both value and pointer receiver methods
	return validate(dest)
}

// GetConfig loads configuration from a YAML file first, then overlays
// environment variables. ${VAR} references inside the file are expanded from
// the environment before parsing. If filepath is empty, only environment
// variables are used. If allowFileErrors is true, a missing or malformed file
// falls back to environment variables only.
func GetConfig[T any](dest *T, filepath string, allowFileErrors bool) error {
	if filepath == "" {
		return GetConfigFromEnvVars(dest)
	}

	data, err := os.ReadFile(filepath) //nolint:gosec // G304: operator-supplied config path
	if err != nil {
		if allowFileErrors {
			return GetConfigFromEnvVars(dest)
		}
		return fmt.Errorf("failed to read file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), dest); err != nil {
		if allowFileErrors {
			return GetConfigFromEnvVars(dest)
		}
		return fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return GetConfigFromEnvVars(dest)
}
