package native

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	turso_libs "github.com/tursodatabase/turso-go-platform-libs"

	"turso.tech/database/libsqlgo/engine"
)

// requireLibLoaded skips unless a library was pointed at explicitly, so the
// suite never downloads anything.
func requireLibLoaded(t *testing.T) {
	t.Helper()
	if os.Getenv(LibraryPathEnv) == "" {
		t.Skipf("%s not set", LibraryPathEnv)
	}
	require.NoError(t, Load(LoadConfig{}))
}

func TestScanParameterNames(t *testing.T) {
	got := scanParameterNames(`SELECT :a, @b, $c, ?, ?2, :a, ':skip', "@skip", [$skip] -- :skip
		/* @skip */ FROM t WHERE x = :d_1`)
	require.Equal(t, []string{":a", "@b", "$c", ":d_1"}, got)

	require.Empty(t, scanParameterNames("SELECT 'it''s :not' , ':'"))
	require.Empty(t, scanParameterNames("SELECT 1 /* unterminated :x"))
}

func TestEncryptionHexkey(t *testing.T) {
	raw := "B1BBFDA4F589DC9DAAF004FE21111E00DC00C98237102F5C7002A5669FC76327"
	require.Equal(t, "b1bbfda4f589dc9daaf004fe21111e00dc00c98237102f5c7002a5669fc76327", encryptionHexkey(raw))

	derived := encryptionHexkey("passphrase")
	require.Len(t, derived, 64)
	require.Equal(t, derived, encryptionHexkey("passphrase"))
	require.NotEqual(t, derived, encryptionHexkey("other"))

	var cfg TursoDatabaseConfig
	applyEncryption(&cfg, "")
	require.Empty(t, cfg.EncryptionCipher)
	applyEncryption(&cfg, "passphrase")
	require.Equal(t, "encryption", cfg.ExperimentalFeatures)
	require.Equal(t, "aegis256", cfg.EncryptionCipher)
}

func TestStatusToError(t *testing.T) {
	for _, ok := range []TursoStatusCode{TURSO_OK, TURSO_DONE, TURSO_ROW, TURSO_IO} {
		require.NoError(t, statusToError(ok, "ignored"))
	}

	e, ok := engine.AsError(statusToError(TURSO_CONSTRAINT, "UNIQUE constraint failed: t.x"))
	require.True(t, ok)
	require.Equal(t, engine.CodeConstraint, e.Code)
	require.Equal(t, "UNIQUE constraint failed: t.x", e.Message)

	e, ok = engine.AsError(statusToError(TURSO_BUSY, ""))
	require.True(t, ok)
	require.Equal(t, engine.CodeBusy, e.Code)
	require.Equal(t, "turso: database is busy", e.Message)

	e, ok = engine.AsError(statusToError(TursoStatusCode(77), ""))
	require.True(t, ok)
	require.Equal(t, engine.CodeError, e.Code)
	require.Contains(t, e.Message, "77")
}

func TestLocalRoundTrip(t *testing.T) {
	requireLibLoaded(t)
	ctx := context.Background()
	db, err := New(Config{}).OpenLocal(ctx, engine.LocalConfig{Path: filepath.Join(t.TempDir(), "local.db")})
	require.NoError(t, err)
	defer db.Close()
	conn, err := db.Connect(ctx)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.ExecuteBatch(ctx, "CREATE TABLE t(a INTEGER, b TEXT); -- trailing comment"))
	ins, err := conn.Prepare(ctx, "INSERT INTO t VALUES (:a, :b)")
	require.NoError(t, err)
	defer ins.Close()
	require.Equal(t, 2, ins.ParameterCount())
	require.Equal(t, ":b", ins.ParameterName(2))

	n, err := ins.Execute(ctx, []engine.Value{engine.Integer(1), engine.Text("x")})
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)
	require.Equal(t, int64(1), conn.LastInsertRowid())

	sel, err := conn.Prepare(ctx, "SELECT a, b FROM t")
	require.NoError(t, err)
	defer sel.Close()
	rows, err := sel.Query(ctx, nil)
	require.NoError(t, err)
	row, err := rows.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, []engine.Value{engine.Integer(1), engine.Text("x")}, row)
	_, err = rows.Next(ctx)
	require.ErrorIs(t, err, io.EOF)

	require.True(t, conn.IsAutocommit())
	require.NoError(t, conn.ExecuteBatch(ctx, "BEGIN"))
	require.False(t, conn.IsAutocommit())
	require.NoError(t, conn.ExecuteBatch(ctx, "ROLLBACK"))
}

func TestPlatformConfig(t *testing.T) {
	require.Equal(t,
		turso_libs.LoadTursoLibraryConfig{LoadStrategy: "system"},
		LoadConfig{Path: "/ignored.so", Strategy: "system"}.platformConfig())
	require.Equal(t, turso_libs.LoadTursoLibraryConfig{}, LoadConfig{}.platformConfig())
}
