package libsql

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turso.tech/database/libsqlgo/engine"
)

func TestToValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want engine.Value
	}{
		{"nil", nil, engine.Null()},
		{"nil blob", []byte(nil), engine.Null()},
		{"float64", 1.5, engine.Real(1.5)},
		{"float32", float32(0.5), engine.Real(0.5)},
		{"string", "hi", engine.Text("hi")},
		{"empty blob", []byte{}, engine.Blob([]byte{})},
		{"int", 7, engine.Integer(7)},
		{"int8", int8(-8), engine.Integer(-8)},
		{"int64", int64(math.MaxInt64), engine.Integer(math.MaxInt64)},
		{"uint32", uint32(math.MaxUint32), engine.Integer(math.MaxUint32)},
		{"uint64", uint64(math.MaxInt64), engine.Integer(math.MaxInt64)},
		{"big.Int", big.NewInt(-42), engine.Integer(-42)},
		{"nil big.Int", (*big.Int)(nil), engine.Null()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toValue(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToValueRejects(t *testing.T) {
	tests := []struct {
		name string
		in   any
		msg  string
	}{
		{"bool", true, "unimplemented: binding a boolean value"},
		{"slice", []any{1}, "unimplemented: binding a value of type []interface {}"},
		{"map", map[string]any{}, "unimplemented: binding a value of type map[string]interface {}"},
		{"struct", struct{}{}, "unimplemented: binding a value of type struct {}"},
		{"uint64 overflow", uint64(math.MaxUint64), "integer 18446744073709551615 is out of range for a 64-bit integer"},
		{"big overflow", new(big.Int).Lsh(big.NewInt(1), 64), "integer 18446744073709551616 is out of range for a 64-bit integer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := toValue(tt.in)
			require.ErrorIs(t, err, ErrBinding)
			var le *Error
			require.True(t, errors.As(err, &le))
			assert.Equal(t, tt.msg, le.Message)
			assert.Empty(t, le.Code)
		})
	}
}

func TestFromValue(t *testing.T) {
	assert.Nil(t, fromValue(engine.Null(), true))
	assert.Equal(t, float64(3), fromValue(engine.Integer(3), false))
	assert.Equal(t, int64(3), fromValue(engine.Integer(3), true))
	assert.Equal(t, 2.5, fromValue(engine.Real(2.5), true))
	assert.Equal(t, "x", fromValue(engine.Text("x"), false))

	src := []byte{1, 2, 3}
	got := fromValue(engine.Blob(src), false).([]byte)
	require.Equal(t, src, got)
	got[0] = 9
	assert.Equal(t, byte(1), src[0], "blob must be copied")
}

func TestRowShape(t *testing.T) {
	names := []string{"a", "b"}
	row := []engine.Value{engine.Integer(1), engine.Text("x")}
	assert.Equal(t, []any{int64(1), "x"}, rowShape(names, row, true, true))
	assert.Equal(t, map[string]any{"a": float64(1), "b": "x"}, rowShape(names, row, false, false))

	// duplicate names keep the last value, as a map must
	dup := rowShape([]string{"v", "v"}, row, false, true)
	assert.Equal(t, map[string]any{"v": "x"}, dup)
}
