package native

// scanParameterNames lists the distinct named parameters (with sigil) that
// appear in sql, skipping string literals, quoted identifiers and comments.
// The library only resolves names to positions, so this is how the reverse
// mapping is recovered.
func scanParameterNames(sql string) []string {
	var names []string
	seen := map[string]bool{}
	for i := 0; i < len(sql); {
		c := sql[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(sql, i, c)
		case c == '[':
			i = skipQuoted(sql, i, ']')
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			i += 2
			for i+1 < len(sql) && !(sql[i] == '*' && sql[i+1] == '/') {
				i++
			}
			i += 2
		case c == ':' || c == '@' || c == '$':
			j := i + 1
			for j < len(sql) && isIdentByte(sql[j]) {
				j++
			}
			if j > i+1 {
				name := sql[i:j]
				if !seen[name] {
					seen[name] = true
					names = append(names, name)
				}
			}
			i = j
		default:
			i++
		}
	}
	return names
}

// skipQuoted returns the index after the closing quote of the literal that
// starts at sql[start]. Doubled quotes are escapes.
func skipQuoted(sql string, start int, closing byte) int {
	i := start + 1
	for i < len(sql) {
		if sql[i] == closing {
			if i+1 < len(sql) && sql[i+1] == closing && closing != ']' {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return i
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c >= 0x80
}
