package libsql

import (
	"strings"

	"turso.tech/database/libsqlgo/engine"
)

// bindParams resolves host parameters against the statement's declared
// parameters. A single map binds by name, a single []any or a plain argument
// list binds by position. Must be called with the connection locked.
func bindParams(st engine.Stmt, params []any) ([]engine.Value, error) {
	if len(params) == 1 {
		switch p := params[0].(type) {
		case map[string]any:
			return bindNamed(st, p)
		case []any:
			params = p
		}
	}
	return bindPositional(st, params)
}

func bindPositional(st engine.Stmt, params []any) ([]engine.Value, error) {
	if n := st.ParameterCount(); len(params) > n {
		return nil, errorf(KindBinding, "too many parameters: got %d, statement takes %d", len(params), n)
	}
	out := make([]engine.Value, len(params))
	for i, p := range params {
		v, err := toValue(p)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func bindNamed(st engine.Stmt, params map[string]any) ([]engine.Value, error) {
	n := st.ParameterCount()
	out := make([]engine.Value, n)
	for i := 1; i <= n; i++ {
		key := stripSigil(st.ParameterName(i))
		if key == "" {
			return nil, errorf(KindBinding, "missing named parameter for positional slot %d", i)
		}
		p, ok := params[key]
		if !ok {
			return nil, errorf(KindBinding, "missing named parameter %q", key)
		}
		v, err := toValue(p)
		if err != nil {
			return nil, err
		}
		out[i-1] = v
	}
	return out, nil
}

func stripSigil(name string) string {
	if name != "" && strings.ContainsRune(":@$?", rune(name[0])) {
		return name[1:]
	}
	return name
}
