package gateway

import (
	"reflect"
	"strings"
)

// SuppliedFields turns an optional-field struct into the update mapping sent
// to the backend. Pointer, slice and map fields are included only when
// non-nil; a supplied zero value ("" or an empty list) is kept. Embedded
// structs are flattened. Field names come from the json tag.
func SuppliedFields(v any) map[string]any {
	out := map[string]any{}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return out
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return out
	}
	collectFields(rv, out)
	return out
}

func collectFields(rv reflect.Value, out map[string]any) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		value := rv.Field(i)

		if field.Anonymous && value.Kind() == reflect.Struct {
			collectFields(value, out)
			continue
		}
		if !field.IsExported() {
			continue
		}
		name := jsonName(field)
		if name == "" {
			continue
		}

		switch value.Kind() {
		case reflect.Pointer:
			if value.IsNil() {
				continue
			}
			out[name] = value.Elem().Interface()
		case reflect.Slice, reflect.Map, reflect.Interface:
			if value.IsNil() {
				continue
			}
			out[name] = value.Interface()
		default:
			out[name] = value.Interface()
		}
	}
}

func jsonName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return field.Name
	}
	return name
}
