package patch

import (
	"fmt"
	"strconv"
	"strings"
)

// Pointer is a parsed JSON pointer (RFC 6901). The empty pointer addresses
// the whole document.
type Pointer []string

// ParsePointer splits and unescapes a pointer string.
func ParsePointer(s string) (Pointer, error) {
	if s == "" {
		return Pointer{}, nil
	}
	if !strings.HasPrefix(s, "/") {
		return nil, fmt.Errorf("%w: %q must start with '/'", ErrInvalidPointer, s)
	}
	parts := strings.Split(s[1:], "/")
	for i, p := range parts {
		if strings.Contains(strings.ReplaceAll(strings.ReplaceAll(p, "~0", ""), "~1", ""), "~") {
			return nil, fmt.Errorf("%w: bad escape in %q", ErrInvalidPointer, s)
		}
		parts[i] = strings.ReplaceAll(strings.ReplaceAll(p, "~1", "/"), "~0", "~")
	}
	return Pointer(parts), nil
}

func (p Pointer) String() string {
	var b strings.Builder
	for _, t := range p {
		b.WriteByte('/')
		b.WriteString(strings.ReplaceAll(strings.ReplaceAll(t, "~", "~0"), "/", "~1"))
	}
	return b.String()
}

func (p Pointer) parent() (Pointer, string) {
	return p[:len(p)-1], p[len(p)-1]
}

// isPrefixOf reports whether q lies strictly inside p.
func (p Pointer) isPrefixOf(q Pointer) bool {
	if len(p) >= len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// resolve walks the tree and returns the addressed node.
func (p Pointer) resolve(root *Value) (*Value, error) {
	cur := root
	for i, tok := range p {
		switch cur.kind {
		case KindObject:
			next, ok := cur.fields[tok]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrPathNotFound, p[:i+1])
			}
			cur = next
		case KindArray:
			idx, err := arrayIndex(tok, len(cur.items), false)
			if err != nil {
				return nil, fmt.Errorf("%w at %s", err, p[:i+1])
			}
			cur = cur.items[idx]
		default:
			return nil, fmt.Errorf("%w: %s is a %s", ErrTypeMismatch, p[:i], cur.kind)
		}
	}
	return cur, nil
}

// arrayIndex parses an array reference token. When forInsert is set the
// token may equal the array length (or be "-") to address the end.
func arrayIndex(tok string, length int, forInsert bool) (int, error) {
	if tok == "-" {
		if forInsert {
			return length, nil
		}
		return 0, fmt.Errorf("%w: '-' does not address an element", ErrIndexOutOfRange)
	}
	if tok == "" || (len(tok) > 1 && tok[0] == '0') {
		return 0, fmt.Errorf("%w: bad array index %q", ErrInvalidPointer, tok)
	}
	idx, err := strconv.Atoi(tok)
	if err != nil || idx < 0 {
		return 0, fmt.Errorf("%w: bad array index %q", ErrInvalidPointer, tok)
	}
	limit := length - 1
	if forInsert {
		limit = length
	}
	if idx > limit {
		return 0, fmt.Errorf("%w: index %d, length %d", ErrIndexOutOfRange, idx, length)
	}
	return idx, nil
}
