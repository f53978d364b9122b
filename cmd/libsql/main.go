// Command libsql is a line-oriented shell over a libSQL database.
//
//	libsql [-config file.yaml] [-engine native|embedded] [-sync-url url] [path]
//
// Statements end with ';'. Lines starting with '.' are shell commands:
// .sync, .raw on|off, .safe on|off, .quit.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	libsql "turso.tech/database/libsqlgo"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("libsql", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "YAML configuration file")
		localEng   = fs.String("engine", "", "Local engine: native or embedded")
		syncURL    = fs.String("sync-url", "", "Primary to replicate from")
		verbose    = fs.Bool("v", false, "Log at debug level")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := libsql.DefaultConfig()
	if *configPath != "" {
		loaded, err := libsql.LoadConfig(*configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}
	if p := fs.Arg(0); p != "" {
		cfg.Path = p
	}
	if cfg.Path == "" {
		cfg.Path = ":memory:"
	}
	if *localEng != "" {
		cfg.LocalEngine = *localEng
	}
	if *syncURL != "" {
		cfg.SyncURL = *syncURL
	}
	if *verbose {
		cfg.Log = libsql.LogConfig{Level: zap.DebugLevel.String(), Development: true}
	}

	db, err := libsql.OpenConfig(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	sh := &shell{db: db, out: out, safe: cfg.DefaultSafeIntegers}
	return sh.loop(in)
}

type shell struct {
	db   *libsql.Database
	out  io.Writer
	raw  bool
	safe bool
}

var errQuit = errors.New("quit")

func (sh *shell) loop(in io.Reader) error {
	sc := bufio.NewScanner(in)
	var pending strings.Builder
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if pending.Len() == 0 && strings.HasPrefix(line, ".") {
			if err := sh.command(line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				fmt.Fprintf(sh.out, "Error: %v\n", err)
			}
			continue
		}
		if line == "" {
			continue
		}
		pending.WriteString(line)
		pending.WriteByte('\n')
		if strings.HasSuffix(line, ";") {
			if err := sh.statement(pending.String()); err != nil {
				fmt.Fprintf(sh.out, "Error: %v\n", err)
			}
			pending.Reset()
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if pending.Len() > 0 {
		if err := sh.statement(pending.String()); err != nil {
			fmt.Fprintf(sh.out, "Error: %v\n", err)
		}
	}
	return nil
}

func (sh *shell) command(line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case ".quit", ".exit":
		return errQuit
	case ".sync":
		if err := sh.db.Sync(); err != nil {
			return err
		}
		fmt.Fprintln(sh.out, "synced")
		return nil
	case ".raw":
		on, err := toggle(fields)
		if err != nil {
			return err
		}
		sh.raw = on
		return nil
	case ".safe":
		on, err := toggle(fields)
		if err != nil {
			return err
		}
		sh.safe = on
		return nil
	default:
		return fmt.Errorf("unknown command %s", fields[0])
	}
}

func toggle(fields []string) (bool, error) {
	if len(fields) != 2 {
		return false, fmt.Errorf("usage: %s on|off", fields[0])
	}
	switch fields[1] {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("usage: %s on|off", fields[0])
	}
}

func (sh *shell) statement(sql string) error {
	st, err := sh.db.Prepare(sql)
	if err != nil {
		return err
	}
	defer st.Close()
	st.SafeIntegers(sh.safe)

	cols, err := st.Columns()
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		res, err := st.Run()
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "changes: %d, last insert rowid: %d\n", res.Changes, res.LastInsertRowid)
		return nil
	}
	if err := st.Raw(sh.raw); err != nil {
		return err
	}
	rows, err := st.Rows()
	if err != nil {
		return err
	}
	defer rows.Close()
	if sh.raw {
		fmt.Fprintln(sh.out, strings.Join(rows.Columns(), "|"))
	}
	for {
		row, err := rows.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(sh.out, formatRow(row))
	}
}

func formatRow(row any) string {
	switch r := row.(type) {
	case []any:
		parts := make([]string, len(r))
		for i, v := range r {
			parts[i] = formatValue(v)
		}
		return strings.Join(parts, "|")
	case map[string]any:
		keys := make([]string, 0, len(r))
		for k := range r {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + formatValue(r[k])
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprint(row)
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return fmt.Sprintf("x'%x'", x)
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}
