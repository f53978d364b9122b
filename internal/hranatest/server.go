// Package hranatest serves the Hrana v2 HTTP pipeline from an embedded
// in-memory database so remote code paths can be tested without a server.
package hranatest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"turso.tech/database/libsqlgo/engine"
	"turso.tech/database/libsqlgo/engine/embedded"
)

// Server is a single-stream Hrana endpoint. Every baton maps to the same
// connection, which is enough for sequential tests.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	authToken string
	conn      engine.Conn
	batons    int
	requests  []http.Header
}

// SetAuthToken makes the server require token as a Bearer token. An empty
// token disables the check.
func (s *Server) SetAuthToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authToken = token
}

// Headers returns the headers of every request received so far.
func (s *Server) Headers() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]http.Header(nil), s.requests...)
}

// New starts a server and registers its shutdown with t.Cleanup.
func New(t testing.TB) *Server {
	t.Helper()
	ctx := context.Background()
	db, err := embedded.New(embedded.Config{}).OpenLocal(ctx, engine.LocalConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("hranatest: open: %v", err)
	}
	conn, err := db.Connect(ctx)
	if err != nil {
		t.Fatalf("hranatest: connect: %v", err)
	}
	s := &Server{conn: conn}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(func() {
		s.Server.Close()
		_ = conn.Close()
		_ = db.Close()
	})
	return s
}

type request struct {
	Baton    *string `json:"baton"`
	Requests []struct {
		Type string  `json:"type"`
		SQL  *string `json:"sql"`
		Stmt *struct {
			SQL      string          `json:"sql"`
			Args     []hranaValue    `json:"args"`
			WantRows bool            `json:"want_rows"`
			Named    json.RawMessage `json:"named_args"`
		} `json:"stmt"`
	} `json:"requests"`
}

type hranaValue struct {
	Type   string          `json:"type"`
	Value  json.RawMessage `json:"value,omitempty"`
	Base64 string          `json:"base64,omitempty"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r.Header.Clone())

	if r.Method != http.MethodPost || r.URL.Path != "/v2/pipeline" {
		http.NotFound(w, r)
		return
	}
	if s.authToken != "" && r.Header.Get("Authorization") != "Bearer "+s.authToken {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req request
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	results := make([]any, 0, len(req.Requests))
	closed := false
	for _, sr := range req.Requests {
		switch sr.Type {
		case "execute":
			if sr.Stmt == nil {
				results = append(results, errResult(errors.New("missing stmt")))
				continue
			}
			res, err := s.execute(ctx, sr.Stmt.SQL, sr.Stmt.Args, sr.Stmt.WantRows)
			results = append(results, okOrErr("execute", res, err))
		case "sequence":
			err := s.conn.ExecuteBatch(ctx, deref(sr.SQL))
			results = append(results, okOrErr("sequence", nil, err))
		case "describe":
			res, err := s.describe(ctx, deref(sr.SQL))
			results = append(results, okOrErr("describe", res, err))
		case "get_autocommit":
			results = append(results, map[string]any{
				"type":     "ok",
				"response": map[string]any{"type": "get_autocommit", "is_autocommit": s.conn.IsAutocommit()},
			})
		case "close":
			closed = true
			results = append(results, map[string]any{"type": "ok", "response": map[string]any{"type": "close"}})
		default:
			results = append(results, errResult(errors.New("unknown request "+sr.Type)))
		}
	}

	var baton *string
	if !closed {
		s.batons++
		b := "baton-" + strconv.Itoa(s.batons)
		baton = &b
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"baton": baton, "base_url": nil, "results": results})
}

func (s *Server) execute(ctx context.Context, sql string, args []hranaValue, wantRows bool) (any, error) {
	st, err := s.conn.Prepare(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	vals := make([]engine.Value, len(args))
	for i, a := range args {
		if vals[i], err = decode(a); err != nil {
			return nil, err
		}
	}
	cols := []map[string]any{}
	for _, c := range st.Columns() {
		cols = append(cols, map[string]any{"name": c.Name, "decltype": c.DeclType})
	}
	rows := [][]hranaValue{}
	var affected uint64
	if wantRows && len(cols) > 0 {
		rs, err := st.Query(ctx, vals)
		if err != nil {
			return nil, err
		}
		for {
			row, err := rs.Next(ctx)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, err
			}
			out := make([]hranaValue, len(row))
			for i, v := range row {
				out[i] = encode(v)
			}
			rows = append(rows, out)
		}
	} else {
		if affected, err = st.Execute(ctx, vals); err != nil {
			return nil, err
		}
	}
	return map[string]any{
		"cols":               cols,
		"rows":               rows,
		"affected_row_count": affected,
		"last_insert_rowid":  strconv.FormatInt(s.conn.LastInsertRowid(), 10),
	}, nil
}

func (s *Server) describe(ctx context.Context, sql string) (any, error) {
	st, err := s.conn.Prepare(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	params := []map[string]any{}
	for i := 1; i <= st.ParameterCount(); i++ {
		var name any
		if n := st.ParameterName(i); n != "" {
			name = n
		}
		params = append(params, map[string]any{"name": name})
	}
	cols := []map[string]any{}
	for _, c := range st.Columns() {
		cols = append(cols, map[string]any{"name": c.Name, "decltype": c.DeclType})
	}
	readonly := strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sql)), "SELECT")
	return map[string]any{"params": params, "cols": cols, "is_explain": false, "is_readonly": readonly}, nil
}

func okOrErr(typ string, result any, err error) any {
	if err != nil {
		return errResult(err)
	}
	resp := map[string]any{"type": typ}
	if result != nil {
		resp["result"] = result
	}
	return map[string]any{"type": "ok", "response": resp}
}

func errResult(err error) any {
	code := "SQLITE_ERROR"
	if e, ok := engine.AsError(err); ok {
		code = engine.CodeName(e.Code)
	}
	return map[string]any{"type": "error", "error": map[string]any{"message": err.Error(), "code": code}}
}

func encode(v engine.Value) hranaValue {
	switch v.Kind {
	case engine.KindInteger:
		raw, _ := json.Marshal(strconv.FormatInt(v.Int, 10))
		return hranaValue{Type: "integer", Value: raw}
	case engine.KindReal:
		raw, _ := json.Marshal(v.Real)
		return hranaValue{Type: "float", Value: raw}
	case engine.KindText:
		raw, _ := json.Marshal(v.Text)
		return hranaValue{Type: "text", Value: raw}
	case engine.KindBlob:
		return hranaValue{Type: "blob", Base64: base64.StdEncoding.EncodeToString(v.Blob)}
	default:
		return hranaValue{Type: "null"}
	}
}

func decode(h hranaValue) (engine.Value, error) {
	switch h.Type {
	case "integer":
		var s string
		if err := json.Unmarshal(h.Value, &s); err != nil {
			return engine.Value{}, err
		}
		i, err := strconv.ParseInt(s, 10, 64)
		return engine.Integer(i), err
	case "float":
		var f float64
		err := json.Unmarshal(h.Value, &f)
		return engine.Real(f), err
	case "text":
		var s string
		err := json.Unmarshal(h.Value, &s)
		return engine.Text(s), err
	case "blob":
		b, err := base64.StdEncoding.DecodeString(h.Base64)
		return engine.Blob(b), err
	default:
		return engine.Null(), nil
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
