package authz

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
)

// Attributes is a flat attribute bag, either describing the acting account
// or the resource being acted upon.
type Attributes map[string]any

// Predicate is a node of a compiled policy condition.
type Predicate interface {
	Match(attrs Attributes) bool
}

// All matches when every child matches. The empty conjunction matches.
type All []Predicate

// Eq requires the attribute to equal Value.
type Eq struct {
	Attr  string
	Value any
}

// In requires the attribute to be one of Values. List valued attributes
// match when any element is in Values.
type In struct {
	Attr   string
	Values []any
}

// Op is a numeric comparison operator.
type Op string

const (
	OpGTE Op = ">="
	OpLTE Op = "<="
	OpGT  Op = ">"
	OpLT  Op = "<"
	OpEQ  Op = "=="
)

// Cmp compares a numeric attribute against Number.
type Cmp struct {
	Attr   string
	Op     Op
	Number float64
}

var ErrUnknownOperator = errors.New("authz: unknown comparison operator")

func (p All) Match(attrs Attributes) bool {
	for _, child := range p {
		if !child.Match(attrs) {
			return false
		}
	}
	return true
}

func (p Eq) Match(attrs Attributes) bool {
	v, ok := attrs[p.Attr]
	if !ok {
		return false
	}
	return equal(v, p.Value)
}

func (p In) Match(attrs Attributes) bool {
	v, ok := attrs[p.Attr]
	if !ok {
		return false
	}
	if list, ok := v.([]string); ok {
		for _, item := range list {
			if p.contains(item) {
				return true
			}
		}
		return false
	}
	return p.contains(v)
}

func (p In) contains(v any) bool {
	return slices.ContainsFunc(p.Values, func(want any) bool { return equal(v, want) })
}

func (p Cmp) Match(attrs Attributes) bool {
	raw, ok := attrs[p.Attr]
	if !ok {
		return false
	}
	n, ok := toFloat(raw)
	if !ok {
		return false
	}
	switch p.Op {
	case OpGTE:
		return n >= p.Number
	case OpLTE:
		return n <= p.Number
	case OpGT:
		return n > p.Number
	case OpLT:
		return n < p.Number
	case OpEQ:
		return n == p.Number
	}
	return false
}

// Compile parses the stored JSON form of a condition:
//
//	{"attr": scalar}            equality
//	{"attr": [v1, v2]}          membership
//	{"attr": {">=": 1000}}      numeric comparison, several operators are ANDed
//
// An empty or null document compiles to the empty conjunction.
func Compile(doc json.RawMessage) (Predicate, error) {
	doc = bytes.TrimSpace(doc)
	if len(doc) == 0 || bytes.Equal(doc, []byte("null")) {
		return All{}, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return nil, fmt.Errorf("authz: condition must be an object: %w", err)
	}

	attrs := make([]string, 0, len(fields))
	for k := range fields {
		attrs = append(attrs, k)
	}
	sort.Strings(attrs)

	out := make(All, 0, len(attrs))
	for _, attr := range attrs {
		nodes, err := compileField(attr, fields[attr])
		if err != nil {
			return nil, err
		}
		out = append(out, nodes...)
	}
	return out, nil
}

func compileField(attr string, raw json.RawMessage) ([]Predicate, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("authz: attribute %q: %w", attr, err)
	}

	switch val := v.(type) {
	case []any:
		return []Predicate{In{Attr: attr, Values: val}}, nil
	case map[string]any:
		ops := make([]string, 0, len(val))
		for op := range val {
			ops = append(ops, op)
		}
		sort.Strings(ops)

		nodes := make([]Predicate, 0, len(ops))
		for _, op := range ops {
			switch Op(op) {
			case OpGTE, OpLTE, OpGT, OpLT, OpEQ:
			default:
				return nil, fmt.Errorf("%w %q on attribute %q", ErrUnknownOperator, op, attr)
			}
			n, ok := toFloat(val[op])
			if !ok {
				return nil, fmt.Errorf("authz: attribute %q operator %q needs a number", attr, op)
			}
			nodes = append(nodes, Cmp{Attr: attr, Op: Op(op), Number: n})
		}
		return nodes, nil
	default:
		return []Predicate{Eq{Attr: attr, Value: val}}, nil
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return false
}
