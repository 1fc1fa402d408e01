// Package patch applies JSON Patch documents (RFC 6902) to an untyped value
// tree. A document is applied to a private working copy; the caller only sees
// the result when every operation succeeded.
package patch

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

var (
	ErrInvalidOperation = errors.New("invalid operation")
	ErrInvalidPointer   = errors.New("invalid pointer")
	ErrPathNotFound     = errors.New("path not found")
	ErrIndexOutOfRange  = errors.New("array index out of range")
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrTestFailed       = errors.New("test failed")
)

const (
	OpAdd     = "add"
	OpRemove  = "remove"
	OpReplace = "replace"
	OpMove    = "move"
	OpCopy    = "copy"
	OpTest    = "test"
)

// Operation is one step of a patch document.
type Operation struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
	From  string          `json:"from,omitempty"`
}

// Document is an ordered list of operations.
type Document []Operation

// Error reports the operation that stopped a document. Failures of the
// patched document as a whole, found by ApplyTo after every operation ran,
// carry Index len(doc).
type Error struct {
	Index int
	Op    string
	Path  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("patch operation %d (%s %s): %v", e.Index, e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// DecodeDocument parses a JSON array of operations.
func DecodeDocument(data []byte) (Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: patch document must be a JSON array", ErrInvalidOperation)
	}
	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}
	return doc, nil
}

// Apply runs doc against a clone of root and returns the resulting tree.
// root is never modified.
func Apply(doc Document, root *Value) (*Value, error) {
	work := root.Clone()
	for i, op := range doc {
		var err error
		work, err = applyOne(work, op)
		if err != nil {
			return nil, &Error{Index: i, Op: op.Op, Path: op.Path, Err: err}
		}
	}
	return work, nil
}

func applyOne(root *Value, op Operation) (*Value, error) {
	path, err := ParsePointer(op.Path)
	if err != nil {
		return nil, err
	}
	switch op.Op {
	case OpAdd:
		val, err := operand(op)
		if err != nil {
			return nil, err
		}
		return add(root, path, val)
	case OpRemove:
		_, err := remove(root, path)
		return root, err
	case OpReplace:
		val, err := operand(op)
		if err != nil {
			return nil, err
		}
		return replace(root, path, val)
	case OpMove:
		from, err := ParsePointer(op.From)
		if err != nil {
			return nil, err
		}
		if from.isPrefixOf(path) {
			return nil, fmt.Errorf("%w: cannot move %s into its own child", ErrInvalidOperation, from)
		}
		if from.String() == path.String() {
			_, err := from.resolve(root)
			return root, err
		}
		val, err := remove(root, from)
		if err != nil {
			return nil, err
		}
		return add(root, path, val)
	case OpCopy:
		from, err := ParsePointer(op.From)
		if err != nil {
			return nil, err
		}
		src, err := from.resolve(root)
		if err != nil {
			return nil, err
		}
		return add(root, path, src.Clone())
	case OpTest:
		want, err := operand(op)
		if err != nil {
			return nil, err
		}
		got, err := path.resolve(root)
		if err != nil {
			return nil, err
		}
		if !got.Equal(want) {
			return nil, fmt.Errorf("%w: value at %s differs", ErrTestFailed, path)
		}
		return root, nil
	case "":
		return nil, fmt.Errorf("%w: missing op", ErrInvalidOperation)
	default:
		return nil, fmt.Errorf("%w: unknown op %q", ErrInvalidOperation, op.Op)
	}
}

func operand(op Operation) (*Value, error) {
	if op.Value == nil {
		return nil, fmt.Errorf("%w: %s requires a value", ErrInvalidOperation, op.Op)
	}
	v, err := Parse(op.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: bad value: %v", ErrInvalidOperation, err)
	}
	return v, nil
}

func add(root *Value, path Pointer, val *Value) (*Value, error) {
	if len(path) == 0 {
		return val, nil
	}
	parentPath, last := path.parent()
	parent, err := parentPath.resolve(root)
	if err != nil {
		return nil, err
	}
	switch parent.kind {
	case KindObject:
		parent.Set(last, val)
	case KindArray:
		idx, err := arrayIndex(last, len(parent.items), true)
		if err != nil {
			return nil, err
		}
		parent.insert(idx, val)
	default:
		return nil, fmt.Errorf("%w: %s is a %s", ErrTypeMismatch, parentPath, parent.kind)
	}
	return root, nil
}

func remove(root *Value, path Pointer) (*Value, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: cannot remove the document root", ErrInvalidOperation)
	}
	parentPath, last := path.parent()
	parent, err := parentPath.resolve(root)
	if err != nil {
		return nil, err
	}
	switch parent.kind {
	case KindObject:
		old, ok := parent.fields[last]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}
		parent.del(last)
		return old, nil
	case KindArray:
		idx, err := arrayIndex(last, len(parent.items), false)
		if err != nil {
			return nil, err
		}
		old := parent.items[idx]
		parent.removeAt(idx)
		return old, nil
	default:
		return nil, fmt.Errorf("%w: %s is a %s", ErrTypeMismatch, parentPath, parent.kind)
	}
}

func replace(root *Value, path Pointer, val *Value) (*Value, error) {
	if len(path) == 0 {
		return val, nil
	}
	parentPath, last := path.parent()
	parent, err := parentPath.resolve(root)
	if err != nil {
		return nil, err
	}
	switch parent.kind {
	case KindObject:
		if _, ok := parent.fields[last]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}
		parent.fields[last] = val
	case KindArray:
		idx, err := arrayIndex(last, len(parent.items), false)
		if err != nil {
			return nil, err
		}
		parent.items[idx] = val
	default:
		return nil, fmt.Errorf("%w: %s is a %s", ErrTypeMismatch, parentPath, parent.kind)
	}
	return root, nil
}

// ApplyTo converts target to a tree, applies doc and decodes the result back
// into a fresh T. check, when non-nil, inspects the patched tree before the
// typed conversion.
func ApplyTo[T any](doc Document, target T, check func(*Value) error) (T, error) {
	var zero T
	data, err := json.Marshal(target)
	if err != nil {
		return zero, err
	}
	tree, err := Parse(data)
	if err != nil {
		return zero, err
	}
	patched, err := Apply(doc, tree)
	if err != nil {
		return zero, err
	}
	if check != nil {
		if err := check(patched); err != nil {
			return zero, &Error{Index: len(doc), Op: "validate", Path: "", Err: err}
		}
	}
	out, err := patched.MarshalJSON()
	if err != nil {
		return zero, err
	}
	var result T
	dec := json.NewDecoder(bytes.NewReader(out))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&result); err != nil {
		return zero, &Error{Index: len(doc), Op: "decode", Path: "", Err: fmt.Errorf("%w: %v", ErrTypeMismatch, err)}
	}
	return result, nil
}
