// Package condition parses rule conditions into a closed expression tree and
// evaluates them against an explicit attribute map. Nothing here executes
// caller-supplied code: the grammar only knows comparisons and boolean
// connectives over a fixed attribute vocabulary.
package condition

import (
	"strconv"
	"strings"
)

// Kind is the dynamic type of a Value.
type Kind int

const (
	KindInvalid Kind = iota
	KindInt
	KindString
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Value is an attribute or literal value.
type Value struct {
	kind Kind
	i    int64
	s    string
	b    bool
}

// Int returns an integer Value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// String returns a string Value.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Bool returns a boolean Value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Kind reports the value type.
func (v Value) Kind() Kind { return v.kind }

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindString:
		return strconv.Quote(v.s)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return "<invalid>"
	}
}

// Attributes is the explicit, finite input of an evaluation.
// Keys are canonical attribute names (see Canonical).
type Attributes map[string]Value

// Attribute names understood by the parser.
const (
	AttrArea        = "area"
	AttrFloors      = "floors"
	AttrType        = "type"
	AttrRegion      = "region"
	AttrHasBathroom = "hasBathroom"
	AttrHasKitchen  = "hasKitchen"

	// DisciplinePrefix prefixes per-discipline presence flags, e.g. "discipline.EL".
	DisciplinePrefix = "discipline."
)

var vocabulary = map[string]Kind{
	AttrArea:        KindInt,
	AttrFloors:      KindInt,
	AttrType:        KindString,
	AttrRegion:      KindString,
	AttrHasBathroom: KindBool,
	AttrHasKitchen:  KindBool,
}

var aliases = map[string]string{
	"project_area":   AttrArea,
	"total_area":     AttrArea,
	"project_type":   AttrType,
	"floor_count":    AttrFloors,
	"has_bathroom":   AttrHasBathroom,
	"has_kitchen":    AttrHasKitchen,
	"project_floors": AttrFloors,
}

// Canonical maps an identifier to its canonical attribute name and declared
// kind. ok is false for identifiers outside the vocabulary.
func Canonical(ident string) (name string, kind Kind, ok bool) {
	if alias, found := aliases[ident]; found {
		ident = alias
	}
	if k, found := vocabulary[ident]; found {
		return ident, k, true
	}
	if code, found := strings.CutPrefix(ident, DisciplinePrefix); found && validCode(code) {
		return DisciplinePrefix + strings.ToUpper(code), KindBool, true
	}
	return "", KindInvalid, false
}

// DisciplineAttr returns the attribute name of a discipline flag.
func DisciplineAttr(code string) string {
	return DisciplinePrefix + strings.ToUpper(strings.TrimSpace(code))
}

func validCode(code string) bool {
	if code == "" {
		return false
	}
	for _, r := range code {
		if !(r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
