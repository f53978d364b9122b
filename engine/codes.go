package engine

import (
	"strconv"
	"strings"
	"sync"

	"github.com/tailscale/sqlite/sqliteh"
)

const unknownPrefix = "UNKNOWN_SQLITE_ERROR_"

// CodeName returns the symbolic name of a SQLite primary or extended result
// code. Unrecognized codes render as UNKNOWN_SQLITE_ERROR_<n>.
func CodeName(code int) string {
	s := sqliteh.Code(code).String()
	if strings.HasPrefix(s, "SQLITE_UNKNOWN_ERR(") {
		return unknownPrefix + strconv.Itoa(code)
	}
	// OK, ROW and DONE carry a "(not an error)" suffix.
	if i := strings.IndexByte(s, '('); i > 0 {
		return s[:i]
	}
	return s
}

var (
	byNameOnce sync.Once
	byName     map[string]int
)

// CodeByName maps a symbolic name (with or without the SQLITE_ prefix) back
// to its numeric code. Remote backends report codes by name only.
func CodeByName(name string) (int, bool) {
	byNameOnce.Do(func() {
		byName = make(map[string]int, 128)
		add := func(code int) {
			if n := CodeName(code); !strings.HasPrefix(n, unknownPrefix) {
				byName[n] = code
			}
		}
		for primary := 0; primary <= 28; primary++ {
			add(primary)
			for ext := 1; ext < 64; ext++ {
				add(primary | ext<<8)
			}
		}
		add(int(sqliteh.SQLITE_ROW))
		add(int(sqliteh.SQLITE_DONE))
	})
	name = strings.ToUpper(strings.TrimSpace(name))
	if rest, ok := strings.CutPrefix(name, unknownPrefix); ok {
		if n, err := strconv.Atoi(rest); err == nil {
			return n, true
		}
		return 0, false
	}
	if !strings.HasPrefix(name, "SQLITE_") {
		name = "SQLITE_" + name
	}
	code, ok := byName[name]
	return code, ok
}

// Frequently used primary codes.
const (
	CodeOK         = int(sqliteh.SQLITE_OK)
	CodeError      = int(sqliteh.SQLITE_ERROR)
	CodeInternal   = int(sqliteh.SQLITE_INTERNAL)
	CodeReadonly   = int(sqliteh.SQLITE_READONLY)
	CodeBusy       = int(sqliteh.SQLITE_BUSY)
	CodeInterrupt  = int(sqliteh.SQLITE_INTERRUPT)
	CodeIOErr      = int(sqliteh.SQLITE_IOERR)
	CodeCorrupt    = int(sqliteh.SQLITE_CORRUPT)
	CodeFull       = int(sqliteh.SQLITE_FULL)
	CodeCantOpen   = int(sqliteh.SQLITE_CANTOPEN)
	CodeConstraint = int(sqliteh.SQLITE_CONSTRAINT)
	CodeMisuse     = int(sqliteh.SQLITE_MISUSE)
	CodeAuth       = int(sqliteh.SQLITE_AUTH)
	CodeRange      = int(sqliteh.SQLITE_RANGE)
	CodeNotADB     = int(sqliteh.SQLITE_NOTADB)
)
