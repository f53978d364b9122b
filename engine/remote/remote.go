// Package remote implements the engine contract against a remote libSQL
// server over the Hrana v2 HTTP pipeline (POST /v2/pipeline).
//
// Every connection is a Hrana stream: the baton returned by the server is
// echoed on the next request so that transactions span pipeline calls.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"turso.tech/database/libsqlgo/engine"
)

// Config tunes the HTTP client used for remote databases.
type Config struct {
	// Timeout bounds a single pipeline round-trip. Zero means no timeout.
	Timeout time.Duration
	// Client overrides the HTTP client entirely.
	Client *http.Client
}

// Engine opens remote databases. Local and replica modes are unsupported.
type Engine struct {
	client *http.Client
}

// New returns a remote engine.
func New(cfg Config) *Engine {
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 32,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Engine{client: client}
}

var _ engine.Engine = (*Engine)(nil)

func (e *Engine) OpenLocal(context.Context, engine.LocalConfig) (engine.Database, error) {
	return nil, engine.ErrUnsupported
}

func (e *Engine) OpenReplica(context.Context, engine.ReplicaConfig) (engine.Database, error) {
	return nil, engine.ErrUnsupported
}

// OpenRemote validates the URL. No request is made until the first
// statement runs.
func (e *Engine) OpenRemote(_ context.Context, cfg engine.RemoteConfig) (engine.Database, error) {
	base, err := NormalizeURL(cfg.URL)
	if err != nil {
		return nil, engine.Errorf(engine.CodeCantOpen, "invalid remote url %q: %v", cfg.URL, err)
	}
	return &database{
		client:    e.client,
		baseURL:   base,
		authToken: strings.TrimSpace(cfg.AuthToken),
		version:   cfg.Version,
	}, nil
}

// NormalizeURL rewrites libsql:// to https:// and checks the result is an
// absolute http(s) URL.
func NormalizeURL(raw string) (string, error) {
	if cut, ok := strings.CutPrefix(raw, "libsql://"); ok {
		raw = "https://" + cut
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host")
	}
	// Query parameters (e.g. authToken) are not part of the endpoint.
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/"), nil
}

type database struct {
	client    *http.Client
	baseURL   string
	authToken string
	version   string
}

func (d *database) Connect(context.Context) (engine.Conn, error) {
	return &conn{db: d, baseURL: d.baseURL, autocommit: true}, nil
}

// Sync has nothing to exchange for a remote-only database.
func (d *database) Sync(context.Context) error {
	return engine.ErrUnsupported
}

func (d *database) Close() error { return nil }

type conn struct {
	db         *database
	baseURL    string
	baton      *string
	autocommit bool
	lastRowid  int64
}

// pipeline sends reqs followed by get_autocommit on the connection's stream
// and returns one result per request in reqs.
func (c *conn) pipeline(ctx context.Context, reqs ...streamRequest) ([]streamResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	reqs = append(reqs, streamRequest{Type: "get_autocommit"})
	body, err := json.Marshal(pipelineRequest{Baton: c.baton, Requests: reqs})
	if err != nil {
		return nil, err
	}
	resp, err := c.post(ctx, body)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) != len(reqs) {
		return nil, fmt.Errorf("remote: expected %d results, got %d", len(reqs), len(resp.Results))
	}
	c.baton = resp.Baton
	if resp.BaseURL != nil && *resp.BaseURL != "" {
		c.baseURL = strings.TrimRight(*resp.BaseURL, "/")
	}
	last := resp.Results[len(resp.Results)-1]
	if last.Type == "ok" && last.Response != nil && last.Response.IsAutocommit != nil {
		c.autocommit = *last.Response.IsAutocommit
	}
	return resp.Results[:len(reqs)-1], nil
}

func (c *conn) post(ctx context.Context, body []byte) (*pipelineResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/pipeline", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.db.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.db.authToken)
	}
	if c.db.version != "" {
		req.Header.Set("User-Agent", c.db.version)
		req.Header.Set("x-libsql-client-version", c.db.version)
	}
	resp, err := c.db.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(payload))
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, engine.Errorf(engine.CodeAuth, "remote: %s: %s", resp.Status, msg)
		default:
			return nil, fmt.Errorf("remote: %s: %s", resp.Status, msg)
		}
	}
	var out pipelineResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("remote: decode response: %w", err)
	}
	return &out, nil
}

// single runs one request and unwraps its result.
func (c *conn) single(ctx context.Context, req streamRequest) (*streamResponse, error) {
	results, err := c.pipeline(ctx, req)
	if err != nil {
		return nil, err
	}
	r := results[0]
	switch {
	case r.Type == "error" && r.Error != nil:
		return nil, r.Error.toEngineError()
	case r.Type != "ok" || r.Response == nil:
		return nil, fmt.Errorf("remote: unexpected %q result for %s", r.Type, req.Type)
	}
	return r.Response, nil
}

func (c *conn) ExecuteBatch(ctx context.Context, sql string) error {
	_, err := c.single(ctx, streamRequest{Type: "sequence", SQL: &sql})
	return err
}

func (c *conn) Prepare(ctx context.Context, sql string) (engine.Stmt, error) {
	resp, err := c.single(ctx, streamRequest{Type: "describe", SQL: &sql})
	if err != nil {
		return nil, err
	}
	var desc describeResult
	if err := json.Unmarshal(resp.Result, &desc); err != nil {
		return nil, fmt.Errorf("remote: decode describe: %w", err)
	}
	s := &stmt{conn: c, sql: sql}
	for _, p := range desc.Params {
		name := ""
		if p.Name != nil {
			name = *p.Name
		}
		s.params = append(s.params, name)
	}
	for _, col := range desc.Cols {
		s.cols = append(s.cols, toColumn(col))
	}
	return s, nil
}

func (c *conn) IsAutocommit() bool     { return c.autocommit }
func (c *conn) LastInsertRowid() int64 { return c.lastRowid }

// Close ends the server-side stream, if one is open.
func (c *conn) Close() error {
	if c.baton == nil {
		return nil
	}
	body, err := json.Marshal(pipelineRequest{Baton: c.baton, Requests: []streamRequest{{Type: "close"}}})
	if err != nil {
		return err
	}
	c.baton = nil
	_, err = c.post(context.Background(), body)
	return err
}

func toColumn(col hranaCol) engine.Column {
	name := ""
	if col.Name != nil {
		name = *col.Name
	}
	var decl *string
	if col.Decltype != nil && *col.Decltype != "" {
		decl = col.Decltype
	}
	return engine.Column{Name: name, DeclType: decl}
}

type stmt struct {
	conn   *conn
	sql    string
	params []string
	cols   []engine.Column
}

func (s *stmt) run(ctx context.Context, args []engine.Value, wantRows bool) (*stmtResult, error) {
	hs := &hranaStmt{SQL: s.sql, WantRows: wantRows}
	for _, a := range args {
		v, err := encodeValue(a)
		if err != nil {
			return nil, err
		}
		hs.Args = append(hs.Args, v)
	}
	resp, err := s.conn.single(ctx, streamRequest{Type: "execute", Stmt: hs})
	if err != nil {
		return nil, err
	}
	var res stmtResult
	if err := json.Unmarshal(resp.Result, &res); err != nil {
		return nil, fmt.Errorf("remote: decode execute: %w", err)
	}
	if res.LastInsertRowid != nil {
		if id, err := strconv.ParseInt(*res.LastInsertRowid, 10, 64); err == nil {
			s.conn.lastRowid = id
		}
	}
	return &res, nil
}

func (s *stmt) Execute(ctx context.Context, args []engine.Value) (uint64, error) {
	res, err := s.run(ctx, args, false)
	if err != nil {
		return 0, err
	}
	return res.AffectedRowCount, nil
}

// Query executes eagerly: the pipeline returns the whole result set in one
// response, so the cursor walks a buffer.
func (s *stmt) Query(ctx context.Context, args []engine.Value) (engine.Rows, error) {
	res, err := s.run(ctx, args, true)
	if err != nil {
		return nil, err
	}
	r := &rows{raw: res.Rows}
	for _, col := range res.Cols {
		r.names = append(r.names, toColumn(col).Name)
	}
	return r, nil
}

func (s *stmt) Reset() error             { return nil }
func (s *stmt) Columns() []engine.Column { return s.cols }
func (s *stmt) ParameterCount() int      { return len(s.params) }
func (s *stmt) Close() error             { return nil }

func (s *stmt) ParameterName(idx int) string {
	if idx < 1 || idx > len(s.params) {
		return ""
	}
	return s.params[idx-1]
}

type rows struct {
	names []string
	raw   [][]hranaValue
	pos   int
}

func (r *rows) Next(context.Context) ([]engine.Value, error) {
	if r.pos >= len(r.raw) {
		return nil, io.EOF
	}
	src := r.raw[r.pos]
	r.pos++
	row := make([]engine.Value, len(src))
	for i, h := range src {
		v, err := decodeValue(h)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

func (r *rows) ColumnCount() int { return len(r.names) }

func (r *rows) ColumnName(idx int) string {
	if idx < 0 || idx >= len(r.names) {
		return ""
	}
	return r.names[idx]
}

func (r *rows) Close() error {
	r.pos = len(r.raw)
	return nil
}
