package libsql

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turso.tech/database/libsqlgo/engine"
)

func TestTranslate(t *testing.T) {
	require.NoError(t, translate(KindExecution, nil))

	t.Run("engine error", func(t *testing.T) {
		cause := engine.NewError(2067, "UNIQUE constraint failed: t.name")
		err := translate(KindExecution, fmt.Errorf("wrapped: %w", cause))

		var le *Error
		require.ErrorAs(t, err, &le)
		assert.Equal(t, KindExecution, le.Kind)
		assert.Equal(t, "SQLITE_CONSTRAINT_UNIQUE", le.Code)
		assert.Equal(t, 2067, le.RawCode)
		assert.ErrorIs(t, err, ErrExecution)
		assert.ErrorIs(t, err, &Error{Kind: KindExecution, Code: "SQLITE_CONSTRAINT_UNIQUE"})
		assert.NotErrorIs(t, err, &Error{Kind: KindExecution, Code: "SQLITE_BUSY"})
		assert.NotErrorIs(t, err, ErrPrepare)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("unknown code", func(t *testing.T) {
		err := translate(KindExecution, engine.NewError(4242, "odd"))
		var le *Error
		require.ErrorAs(t, err, &le)
		assert.Equal(t, "UNKNOWN_SQLITE_ERROR_4242", le.Code)
	})

	t.Run("plain error", func(t *testing.T) {
		cause := errors.New("boom")
		err := translate(KindSync, cause)
		var le *Error
		require.ErrorAs(t, err, &le)
		assert.Equal(t, KindSync, le.Kind)
		assert.Equal(t, "boom", le.Message)
		assert.Empty(t, le.Code)
		assert.Zero(t, le.RawCode)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("already translated", func(t *testing.T) {
		err := translate(KindExecution, errNotOpen)
		assert.Same(t, errNotOpen, err)
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func TestErrorString(t *testing.T) {
	err := &Error{Kind: KindExecution, Message: "no such table: x", Code: "SQLITE_ERROR", RawCode: 1}
	assert.Equal(t, "libsql: execution: no such table: x [SQLITE_ERROR]", err.Error())
	assert.Equal(t, "libsql: closed: The database connection is not open", errNotOpen.Error())
}
