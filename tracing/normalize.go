package tracing

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Mapper is implemented by values that know their own trace representation.
type Mapper interface {
	TraceOutputs() map[string]any
}

// NormalizeOutputs converts a run result into a map:
// scalars become {"output": v}, maps with string keys pass through,
// Mapper values and structs use their own mapping, anything else becomes
// {"output": fmt.Sprint(v)}. A nil value yields nil.
func NormalizeOutputs(v any) map[string]any {
	switch o := v.(type) {
	case nil:
		return nil
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return map[string]any{"output": o}
	case map[string]any:
		return o
	case Mapper:
		return o.TraceOutputs()
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}

		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			out := make(map[string]any, rv.Len())

			iter := rv.MapRange()
			for iter.Next() {
				out[iter.Key().String()] = iter.Value().Interface()
			}

			return out
		}
	case reflect.Struct:
		if m, ok := structMap(rv.Interface()); ok {
			return m
		}
	}

	return map[string]any{"output": fmt.Sprint(v)}
}

func structMap(v any) (map[string]any, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false
	}

	return m, true
}
