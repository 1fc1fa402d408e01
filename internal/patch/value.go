package patch

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"
	"strconv"

	"github.com/goccy/go-json"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a node of an untyped JSON document. Containers hold pointers so
// operations can edit the tree in place once the working copy is cloned.
type Value struct {
	kind   Kind
	b      bool
	num    json.Number
	str    string
	items  []*Value
	keys   []string // insertion order of fields
	fields map[string]*Value
}

func Null() *Value                { return &Value{kind: KindNull} }
func Bool(b bool) *Value          { return &Value{kind: KindBool, b: b} }
func String(s string) *Value      { return &Value{kind: KindString, str: s} }
func Number(n json.Number) *Value { return &Value{kind: KindNumber, num: n} }

// Array builds an array node from the given items.
func Array(items ...*Value) *Value {
	return &Value{kind: KindArray, items: items}
}

// Object builds an empty object node.
func Object() *Value {
	return &Value{kind: KindObject, fields: map[string]*Value{}}
}

func (v *Value) Kind() Kind { return v.kind }

// Str returns the string payload and whether v is a string.
func (v *Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Len returns the number of array items or object fields.
func (v *Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindObject:
		return len(v.keys)
	}
	return 0
}

// Get returns the field named key of an object node.
func (v *Value) Get(key string) (*Value, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	f, ok := v.fields[key]
	return f, ok
}

// Set adds or replaces a field of an object node.
func (v *Value) Set(key string, val *Value) {
	if _, ok := v.fields[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.fields[key] = val
}

func (v *Value) del(key string) {
	delete(v.fields, key)
	for i, k := range v.keys {
		if k == key {
			v.keys = append(v.keys[:i], v.keys[i+1:]...)
			return
		}
	}
}

func (v *Value) insert(i int, val *Value) {
	v.items = append(v.items, nil)
	copy(v.items[i+1:], v.items[i:])
	v.items[i] = val
}

func (v *Value) removeAt(i int) {
	v.items = append(v.items[:i], v.items[i+1:]...)
}

// Clone returns a deep copy of v.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	c := &Value{kind: v.kind, b: v.b, num: v.num, str: v.str}
	switch v.kind {
	case KindArray:
		c.items = make([]*Value, len(v.items))
		for i, it := range v.items {
			c.items[i] = it.Clone()
		}
	case KindObject:
		c.keys = append([]string(nil), v.keys...)
		c.fields = make(map[string]*Value, len(v.fields))
		for k, f := range v.fields {
			c.fields[k] = f.Clone()
		}
	}
	return c
}

// Equal reports deep equality. Numbers compare by value, object fields
// regardless of order.
func (v *Value) Equal(o *Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.str == o.str
	case KindNumber:
		if v.num == o.num {
			return true
		}
		return numbersEqual(v.num, o.num)
	case KindArray:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.fields) != len(o.fields) {
			return false
		}
		for k, f := range v.fields {
			g, ok := o.fields[k]
			if !ok || !f.Equal(g) {
				return false
			}
		}
		return true
	}
	return false
}

// Parse decodes a JSON document into a Value tree.
func Parse(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromInterface(raw)
}

// FromInterface converts the output of a UseNumber JSON decode into a Value.
func FromInterface(raw interface{}) (*Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return Number(t), nil
	case float64:
		return Number(json.Number(strconv.FormatFloat(t, 'f', -1, 64))), nil
	case []interface{}:
		arr := &Value{kind: KindArray, items: make([]*Value, 0, len(t))}
		for _, it := range t {
			c, err := FromInterface(it)
			if err != nil {
				return nil, err
			}
			arr.items = append(arr.items, c)
		}
		return arr, nil
	case map[string]interface{}:
		obj := Object()
		for _, k := range sortedKeys(t) {
			c, err := FromInterface(t[k])
			if err != nil {
				return nil, err
			}
			obj.Set(k, c)
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported JSON type %T", raw)
	}
}

// MarshalJSON encodes the tree, keeping object fields in insertion order.
func (v *Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v *Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		buf.WriteString(string(v.num))
	case KindString:
		b, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, it := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := it.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := v.fields[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// numbersEqual compares JSON numbers by value, so 1 equals 1.0 but integers
// past float64 precision stay distinct. The working precision grows with the
// literal length, which keeps distinct decimals distinct after rounding.
func numbersEqual(x, y json.Number) bool {
	prec := uint(4*max(len(x), len(y)) + 64)
	a, _, errA := big.ParseFloat(string(x), 10, prec, big.ToNearestEven)
	b, _, errB := big.ParseFloat(string(y), 10, prec, big.ToNearestEven)
	return errA == nil && errB == nil && a.Cmp(b) == 0
}
