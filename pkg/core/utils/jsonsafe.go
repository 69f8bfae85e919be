package utils

import (
	"encoding"
	"encoding/json"
	"math"
	"reflect"
	"strings"
)

// Finite maps NaN and ±Inf to 0.
func Finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}

// Sanitize returns a JSON-safe copy of v in which every non-finite float has
// been replaced by 0. Maps, slices, arrays, pointers and structs are walked;
// structs are returned as map[string]any keyed by their JSON field names so
// the result can be encoded without error.
func Sanitize(v any) any {
	return sanitize(reflect.ValueOf(v))
}

var (
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

func sanitize(rv reflect.Value) any {
	if !rv.IsValid() {
		return nil
	}
	if k := rv.Kind(); k == reflect.Pointer || k == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		return sanitize(rv.Elem())
	}
	if v, ok := marshaled(rv); ok {
		return v
	}
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return Finite(rv.Float())
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = sanitize(rv.Index(i))
		}
		return out
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[mapKey(iter.Key())] = sanitize(iter.Value())
		}
		return out
	case reflect.Struct:
		return sanitizeStruct(rv)
	default:
		return rv.Interface()
	}
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	b, err := json.Marshal(k.Interface())
	if err != nil {
		return ""
	}
	return string(b)
}

// marshaled handles types that encode themselves (times, decimals, UUIDs,
// raw messages). JSON marshalers are re-walked as generic JSON; text
// marshalers become strings.
func marshaled(rv reflect.Value) (any, bool) {
	t := rv.Type()
	switch {
	case t.Implements(jsonMarshalerType):
		return reencode(rv.Interface().(json.Marshaler)), true
	case rv.CanAddr() && reflect.PointerTo(t).Implements(jsonMarshalerType):
		return reencode(rv.Addr().Interface().(json.Marshaler)), true
	case t.Implements(textMarshalerType):
		b, err := rv.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return nil, true
		}
		return string(b), true
	}
	return nil, false
}

// sanitizeStruct honours json tags, "-" and omitempty.
func sanitizeStruct(rv reflect.Value) any {
	t := rv.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, omitEmpty, skip := jsonName(f)
		if skip {
			continue
		}
		fv := rv.Field(i)
		if omitEmpty && fv.IsZero() {
			continue
		}
		if f.Anonymous && f.Tag.Get("json") == "" && fv.Kind() == reflect.Struct {
			if inner, ok := sanitizeStruct(fv).(map[string]any); ok {
				for k, v := range inner {
					out[k] = v
				}
				continue
			}
		}
		out[name] = sanitize(fv)
	}
	return out
}

func reencode(m json.Marshaler) any {
	b, err := m.MarshalJSON()
	if err != nil {
		return nil
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil
	}
	return generic
}

func jsonName(f reflect.StructField) (name string, omitEmpty, skip bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	name = f.Name
	if tag == "" {
		return name, false, false
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}
