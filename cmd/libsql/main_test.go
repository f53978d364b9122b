package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runShell(t *testing.T, input string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, run(append([]string{"-engine", "embedded"}, args...), strings.NewReader(input), &out))
	return out.String()
}

func TestShellStatements(t *testing.T) {
	out := runShell(t, `
CREATE TABLE t(id INTEGER PRIMARY KEY, name TEXT, data BLOB);
INSERT INTO t(name, data)
  VALUES ('ada', x'0102');
SELECT id, name, data FROM t;
.raw on
SELECT id, name, data FROM t;
SELECT missing FROM t;
.quit
SELECT 1;
`)
	assert.Contains(t, out, "changes: 1, last insert rowid: 1\n")
	assert.Contains(t, out, "data=x'0102' id=1 name=ada\n")
	assert.Contains(t, out, "id|name|data\n1|ada|x'0102'\n")
	assert.Contains(t, out, "Error: ")
	assert.NotContains(t, out, "\n1\n")
}

func TestShellCommands(t *testing.T) {
	out := runShell(t, ".raw maybe\n.bogus\n.safe on\nSELECT 9007199254740993 AS n;\n.safe off\n.raw on\nSELECT NULL, 1.5;\n")
	assert.Contains(t, out, "Error: usage: .raw on|off\n")
	assert.Contains(t, out, "Error: unknown command .bogus\n")
	assert.Contains(t, out, "n=9007199254740993\n")
	assert.Contains(t, out, "NULL|1.5\n")
}

func TestShellFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shell.db")
	runShell(t, "CREATE TABLE t(x);\nINSERT INTO t VALUES (42);\n", path)
	out := runShell(t, ".raw on\nSELECT x FROM t", path)
	assert.Contains(t, out, "x\n42\n")
}

func TestShellFlagErrors(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"-config", filepath.Join(t.TempDir(), "none.yaml")}, strings.NewReader(""), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")

	err = run([]string{"-engine", "cgo"}, strings.NewReader(""), &out)
	require.Error(t, err)
}
