package runner

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"
)

// ISO8601Basic is the compact timestamp layout offered to templates.
const ISO8601Basic = "20060102T150405Z"

// ExpandTemplates walks the struct pointed to by in and expands ${VAR}
// references in place. Nested structs and non-nil *struct fields are always
// explored; string and *string fields only when tagged `template`, and
// `template:"-"` opts a field out.
func ExpandTemplates[T any](in *T, variables map[string]string) error {
	if in == nil {
		return nil
	}
	v := reflect.ValueOf(in).Elem()
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("ExpandTemplates expects *struct; got *%s", v.Type())
	}
	return expandStructInPlace(v, variables)
}

func expandStructInPlace(v reflect.Value, variables map[string]string) error {
	typ := v.Type()
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}
		field := v.Field(i)
		tag, hasTemplate := sf.Tag.Lookup("template")
		templated := hasTemplate && tag != "-"

		switch field.Kind() {
		case reflect.String:
			if !templated {
				continue
			}
			expanded, err := Expand(field.String(), variables)
			if err != nil {
				return fmt.Errorf("%s: %w", sf.Name, err)
			}
			field.SetString(expanded)

		case reflect.Ptr:
			if field.IsNil() {
				continue
			}
			elem := field.Elem()
			switch elem.Kind() {
			case reflect.String:
				if !templated {
					continue
				}
				expanded, err := Expand(elem.String(), variables)
				if err != nil {
					return fmt.Errorf("%s: %w", sf.Name, err)
				}
				// the pointee may be shared with the caller
				newPtr := reflect.New(elem.Type())
				newPtr.Elem().SetString(expanded)
				field.Set(newPtr)
			case reflect.Struct:
				if err := expandStructInPlace(elem, variables); err != nil {
					return err
				}
			}

		case reflect.Struct:
			if err := expandStructInPlace(field, variables); err != nil {
				return err
			}
		}
	}
	return nil
}

// Expand replaces ${VAR} references in value. Every referenced variable must
// be present in variables.
func Expand(value string, variables map[string]string) (string, error) {
	var errs error

	result := os.Expand(value, func(key string) string {
		if val, ok := variables[key]; ok {
			return val
		}
		errs = errors.Join(errs, fmt.Errorf("variable %q is not defined", key))
		return ""
	})

	if errs != nil {
		return "", errs
	}

	return result, nil
}

// BuildVariables returns the built-in template variables for now plus the
// allowed environment variables, each of which must be set.
func BuildVariables(now time.Time, allowedEnv []string) (map[string]string, error) {
	date := now.UTC()
	variables := map[string]string{
		"DATE":         date.Format(time.DateOnly),
		"DATE_ISO8601": date.Format(ISO8601Basic),
		"DATE_RFC3339": date.Format(time.RFC3339),
	}
	if host, err := os.Hostname(); err == nil {
		variables["HOSTNAME"] = host
	}

	var errs error
	for _, envName := range allowedEnv {
		val, ok := os.LookupEnv(envName)
		if !ok {
			errs = errors.Join(errs, fmt.Errorf("environment variable %q is not set", envName))
			continue
		}
		variables[envName] = val
	}

	if errs != nil {
		return nil, errs
	}

	return variables, nil
}
