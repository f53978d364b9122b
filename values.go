package libsql

import (
	"math"
	"math/big"

	"turso.tech/database/libsqlgo/engine"
)

// toValue converts a host value into an engine value. Booleans and
// composite values have no mapping.
func toValue(v any) (engine.Value, error) {
	switch x := v.(type) {
	case nil:
		return engine.Null(), nil
	case float64:
		return engine.Real(x), nil
	case float32:
		return engine.Real(float64(x)), nil
	case string:
		return engine.Text(x), nil
	case []byte:
		if x == nil {
			return engine.Null(), nil
		}
		return engine.Blob(x), nil
	case int:
		return engine.Integer(int64(x)), nil
	case int8:
		return engine.Integer(int64(x)), nil
	case int16:
		return engine.Integer(int64(x)), nil
	case int32:
		return engine.Integer(int64(x)), nil
	case int64:
		return engine.Integer(x), nil
	case uint:
		return unsignedValue(uint64(x))
	case uint8:
		return engine.Integer(int64(x)), nil
	case uint16:
		return engine.Integer(int64(x)), nil
	case uint32:
		return engine.Integer(int64(x)), nil
	case uint64:
		return unsignedValue(x)
	case *big.Int:
		if x == nil {
			return engine.Null(), nil
		}
		if !x.IsInt64() {
			return engine.Value{}, errorf(KindBinding, "integer %s is out of range for a 64-bit integer", x)
		}
		return engine.Integer(x.Int64()), nil
	case bool:
		return engine.Value{}, newError(KindBinding, "unimplemented: binding a boolean value")
	default:
		return engine.Value{}, errorf(KindBinding, "unimplemented: binding a value of type %T", v)
	}
}

func unsignedValue(u uint64) (engine.Value, error) {
	if u > math.MaxInt64 {
		return engine.Value{}, errorf(KindBinding, "integer %d is out of range for a 64-bit integer", u)
	}
	return engine.Integer(int64(u)), nil
}

// fromValue converts an engine value into its host shape. Integers are
// float64 unless safe integers are requested.
func fromValue(v engine.Value, safeIntegers bool) any {
	switch v.Kind {
	case engine.KindInteger:
		if safeIntegers {
			return v.Int
		}
		return float64(v.Int)
	case engine.KindReal:
		return v.Real
	case engine.KindText:
		return v.Text
	case engine.KindBlob:
		out := make([]byte, len(v.Blob))
		copy(out, v.Blob)
		return out
	default:
		return nil
	}
}

// rowShape builds the host form of one row: []any in column order when
// raw, otherwise a map keyed by column name.
func rowShape(names []string, row []engine.Value, raw, safeIntegers bool) any {
	if raw {
		out := make([]any, len(row))
		for i, v := range row {
			out[i] = fromValue(v, safeIntegers)
		}
		return out
	}
	out := make(map[string]any, len(row))
	for i, v := range row {
		if i < len(names) {
			out[names[i]] = fromValue(v, safeIntegers)
		}
	}
	return out
}
