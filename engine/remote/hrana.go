package remote

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"turso.tech/database/libsqlgo/engine"
)

// Wire types of the Hrana v2 HTTP pipeline.

type pipelineRequest struct {
	Baton    *string         `json:"baton"`
	Requests []streamRequest `json:"requests"`
}

type streamRequest struct {
	Type string     `json:"type"`
	Stmt *hranaStmt `json:"stmt,omitempty"`
	SQL  *string    `json:"sql,omitempty"`
}

type hranaStmt struct {
	SQL      string       `json:"sql"`
	Args     []hranaValue `json:"args,omitempty"`
	WantRows bool         `json:"want_rows"`
}

type pipelineResponse struct {
	Baton   *string        `json:"baton"`
	BaseURL *string        `json:"base_url"`
	Results []streamResult `json:"results"`
}

type streamResult struct {
	Type     string          `json:"type"`
	Response *streamResponse `json:"response,omitempty"`
	Error    *hranaError     `json:"error,omitempty"`
}

type streamResponse struct {
	Type         string          `json:"type"`
	Result       json.RawMessage `json:"result,omitempty"`
	IsAutocommit *bool           `json:"is_autocommit,omitempty"`
}

type hranaError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type stmtResult struct {
	Cols             []hranaCol     `json:"cols"`
	Rows             [][]hranaValue `json:"rows"`
	AffectedRowCount uint64         `json:"affected_row_count"`
	LastInsertRowid  *string        `json:"last_insert_rowid"`
}

type describeResult struct {
	Params []struct {
		Name *string `json:"name"`
	} `json:"params"`
	Cols       []hranaCol `json:"cols"`
	IsExplain  bool       `json:"is_explain"`
	IsReadonly bool       `json:"is_readonly"`
}

type hranaCol struct {
	Name     *string `json:"name"`
	Decltype *string `json:"decltype"`
}

// hranaValue is the tagged JSON value. Integers travel as decimal strings so
// that they survive JSON number precision.
type hranaValue struct {
	Type   string          `json:"type"`
	Value  json.RawMessage `json:"value,omitempty"`
	Base64 string          `json:"base64,omitempty"`
}

func encodeValue(v engine.Value) (hranaValue, error) {
	switch v.Kind {
	case engine.KindNull:
		return hranaValue{Type: "null"}, nil
	case engine.KindInteger:
		raw, _ := json.Marshal(strconv.FormatInt(v.Int, 10))
		return hranaValue{Type: "integer", Value: raw}, nil
	case engine.KindReal:
		raw, err := json.Marshal(v.Real)
		if err != nil {
			return hranaValue{}, err
		}
		return hranaValue{Type: "float", Value: raw}, nil
	case engine.KindText:
		raw, _ := json.Marshal(v.Text)
		return hranaValue{Type: "text", Value: raw}, nil
	case engine.KindBlob:
		return hranaValue{Type: "blob", Base64: base64.StdEncoding.EncodeToString(v.Blob)}, nil
	default:
		return hranaValue{}, fmt.Errorf("remote: unknown value kind %s", v.Kind)
	}
}

func decodeValue(h hranaValue) (engine.Value, error) {
	switch h.Type {
	case "null", "":
		return engine.Null(), nil
	case "integer":
		var s string
		if err := json.Unmarshal(h.Value, &s); err != nil {
			// Some servers send integers as bare numbers.
			var n json.Number
			if err2 := json.Unmarshal(h.Value, &n); err2 != nil {
				return engine.Value{}, fmt.Errorf("remote: bad integer %s", h.Value)
			}
			s = n.String()
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return engine.Value{}, fmt.Errorf("remote: bad integer %q: %w", s, err)
		}
		return engine.Integer(i), nil
	case "float":
		var f float64
		if err := json.Unmarshal(h.Value, &f); err != nil {
			return engine.Value{}, fmt.Errorf("remote: bad float %s: %w", h.Value, err)
		}
		return engine.Real(f), nil
	case "text":
		var s string
		if err := json.Unmarshal(h.Value, &s); err != nil {
			return engine.Value{}, fmt.Errorf("remote: bad text %s: %w", h.Value, err)
		}
		return engine.Text(s), nil
	case "blob":
		b, err := base64.StdEncoding.DecodeString(h.Base64)
		if err != nil {
			b, err = base64.RawStdEncoding.DecodeString(h.Base64)
			if err != nil {
				return engine.Value{}, fmt.Errorf("remote: bad blob: %w", err)
			}
		}
		return engine.Blob(b), nil
	default:
		return engine.Value{}, fmt.Errorf("remote: unknown value type %q", h.Type)
	}
}

// toEngineError maps a Hrana error object onto a numeric result code. Codes
// the table does not know fall back to SQLITE_ERROR.
func (e *hranaError) toEngineError() *engine.Error {
	code, ok := engine.CodeByName(e.Code)
	if !ok {
		code = engine.CodeError
	}
	return engine.NewError(code, e.Message)
}
