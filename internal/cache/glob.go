package cache

// matchGlob reports whether key matches a store-style glob pattern:
// '*' matches any run of characters, '?' matches one character,
// '[...]' matches a class (ranges and '^' negation), '\' escapes the
// next character. No character is a separator; '*' crosses '/' too,
// matching how the remote store globs keys. A malformed pattern
// (unterminated class or trailing escape) yields ErrBadPattern.
func matchGlob(pattern, key string) (bool, error) {
	p, s := pattern, key
	for len(p) > 0 {
		switch p[0] {
		case '*':
			for len(p) > 1 && p[1] == '*' {
				p = p[1:]
			}
			for i := 0; i <= len(s); i++ {
				ok, err := matchGlob(p[1:], s[i:])
				if ok || err != nil {
					return ok, err
				}
			}
			return false, nil
		case '?':
			if len(s) == 0 {
				return false, nil
			}
			p, s = p[1:], s[1:]
		case '[':
			ok, rest, err := matchClass(p[1:], s)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
			p, s = rest, s[1:]
		case '\\':
			if len(p) < 2 {
				return false, ErrBadPattern
			}
			if len(s) == 0 || s[0] != p[1] {
				return false, nil
			}
			p, s = p[2:], s[1:]
		default:
			if len(s) == 0 || s[0] != p[0] {
				return false, nil
			}
			p, s = p[1:], s[1:]
		}
	}
	return len(s) == 0, nil
}

// matchClass matches the first byte of s against the class body that
// follows '[', returning the pattern remainder after the closing ']'.
// A ']' in first position is a literal member, as in POSIX classes.
func matchClass(p, s string) (bool, string, error) {
	negate := false
	if len(p) > 0 && p[0] == '^' {
		negate = true
		p = p[1:]
	}
	matched := false
	first := true
	for {
		if len(p) == 0 {
			return false, "", ErrBadPattern
		}
		if p[0] == ']' && !first {
			p = p[1:]
			break
		}
		var lo byte
		if p[0] == '\\' {
			if len(p) < 2 {
				return false, "", ErrBadPattern
			}
			lo = p[1]
			p = p[2:]
		} else {
			lo = p[0]
			p = p[1:]
		}
		first = false
		if len(p) >= 2 && p[0] == '-' && p[1] != ']' {
			hi := p[1]
			p = p[2:]
			if len(s) > 0 && s[0] >= lo && s[0] <= hi {
				matched = true
			}
		} else if len(s) > 0 && s[0] == lo {
			matched = true
		}
	}
	if len(s) == 0 {
		return false, p, nil
	}
	return matched != negate, p, nil
}
