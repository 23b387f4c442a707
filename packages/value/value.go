package value

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindBytes
	KindSequence
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindBytes:
		return "bytes"
	case KindSequence:
		return "array"
	case KindMapping:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a tagged variant over the data a template, a response body or an
// assertion expression can produce. The zero Value is Null.
type Value struct {
	kind  Kind
	str   string
	num   float64
	b     bool
	raw   []byte
	seq   []Value
	keys  []string
	items map[string]Value
	fold  bool
}

func Null() Value {
	return Value{}
}

func String(s string) Value {
	return Value{kind: KindString, str: s}
}

func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

func Int(i int) Value {
	return Value{kind: KindNumber, num: float64(i)}
}

func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

func Bytes(b []byte) Value {
	return Value{kind: KindBytes, raw: b}
}

func Sequence(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindSequence, seq: items}
}

// Mapping returns an empty mapping that keeps keys in insertion order.
func Mapping() Value {
	return Value{kind: KindMapping, items: make(map[string]Value)}
}

// FoldMapping returns an empty mapping whose lookups ignore key case, as
// HTTP header names do.
func FoldMapping() Value {
	v := Mapping()
	v.fold = true
	return v
}

// Set adds or replaces key in a mapping. It panics if v is not a mapping.
func (v *Value) Set(key string, item Value) {
	if v.kind != KindMapping {
		panic("value: Set on " + v.kind.String())
	}
	if _, ok := v.items[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.items[key] = item
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// IsScalar reports whether v is a string, number, boolean or byte payload.
func (v Value) IsScalar() bool {
	switch v.kind {
	case KindString, KindNumber, KindBool, KindBytes:
		return true
	}
	return false
}

func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

func (v Value) Num() (float64, bool) {
	return v.num, v.kind == KindNumber
}

func (v Value) Boolean() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) Raw() ([]byte, bool) {
	return v.raw, v.kind == KindBytes
}

func (v Value) Items() []Value {
	return v.seq
}

// Keys returns mapping keys in insertion order.
func (v Value) Keys() []string {
	return v.keys
}

// Len returns the number of elements of a sequence or mapping, the number
// of characters in a string or payload, and -1 for anything else.
func (v Value) Len() int {
	switch v.kind {
	case KindString:
		return utf8.RuneCountInString(v.str)
	case KindBytes:
		return utf8.RuneCount(v.raw)
	case KindSequence:
		return len(v.seq)
	case KindMapping:
		return len(v.keys)
	default:
		return -1
	}
}

// Get looks key up in a mapping. Absent keys and non-mappings yield Null.
func (v Value) Get(key string) Value {
	item, _ := v.lookup(key)
	return item
}

// Has reports whether a mapping holds key, even with a null value.
func (v Value) Has(key string) bool {
	_, ok := v.lookup(key)
	return ok
}

func (v Value) lookup(key string) (Value, bool) {
	if v.kind != KindMapping {
		return Null(), false
	}
	if item, ok := v.items[key]; ok {
		return item, true
	}
	if v.fold {
		for _, k := range v.keys {
			if strings.EqualFold(k, key) {
				return v.items[k], true
			}
		}
	}
	return Null(), false
}

// Index returns the i'th element of a sequence, or Null when out of range.
func (v Value) Index(i int) Value {
	if v.kind != KindSequence || i < 0 || i >= len(v.seq) {
		return Null()
	}
	return v.seq[i]
}

// Field dispatches one path segment by variant: key lookup on mappings,
// integer index on sequences, attribute lookup on scalars.
func (v Value) Field(segment string) Value {
	switch v.kind {
	case KindMapping:
		return v.Get(segment)
	case KindSequence:
		i, err := strconv.Atoi(segment)
		if err != nil {
			return Null()
		}
		return v.Index(i)
	case KindString, KindBytes:
		if segment == "length" {
			return Int(v.Len())
		}
	}
	return Null()
}

// Truthy follows the usual scripting rules: null, false, zero and empty
// containers are false.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	case KindNumber:
		return v.num != 0
	case KindString:
		return v.str != ""
	case KindBytes:
		return len(v.raw) > 0
	case KindSequence:
		return len(v.seq) > 0
	case KindMapping:
		return len(v.keys) > 0
	}
	return false
}

// String renders v for splicing into text. Null renders empty, containers
// render as JSON.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindString:
		return v.str
	case KindNumber:
		return formatNumber(v.num)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindBytes:
		return string(v.raw)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// Literal renders v as expression source text, so the result can be spliced
// into an assertion and parsed back to an equal value.
func (v Value) Literal() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return quote(v.str)
	case KindBytes:
		return quote(string(v.raw))
	case KindSequence:
		parts := make([]string, len(v.seq))
		for i, item := range v.seq {
			parts[i] = item.Literal()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMapping:
		parts := make([]string, len(v.keys))
		for i, k := range v.keys {
			parts[i] = quote(k) + ": " + v.items[k].Literal()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return v.String()
	}
}

// quote renders s as an expression string literal. Triple-quoted forms are
// read without escapes, so they are used only when they close cleanly.
func quote(s string) string {
	if !strings.ContainsAny(s, "'\"\n\r") {
		return "'" + strings.ReplaceAll(s, `\`, `\\`) + "'"
	}
	for _, q := range []string{`"""`, `'''`} {
		if !strings.Contains(s, q) && !strings.HasSuffix(s, q[:1]) {
			return q + s + q
		}
	}
	return "'" + literalEscaper.Replace(s) + "'"
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`)

func formatNumber(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Equal compares two values. Numbers compare numerically, everything else
// must match variant and content; bytes and strings compare by content.
func Equal(a, b Value) bool {
	if a.kind == KindBytes && b.kind == KindString || a.kind == KindString && b.kind == KindBytes {
		return a.String() == b.String()
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindString:
		return a.str == b.str
	case KindNumber:
		return a.num == b.num
	case KindBool:
		return a.b == b.b
	case KindBytes:
		return bytes.Equal(a.raw, b.raw)
	case KindSequence:
		if len(a.seq) != len(b.seq) {
			return false
		}
		for i := range a.seq {
			if !Equal(a.seq[i], b.seq[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		if len(a.keys) != len(b.keys) {
			return false
		}
		for _, k := range a.keys {
			other, ok := b.items[k]
			if !ok || !Equal(a.items[k], other) {
				return false
			}
		}
		return true
	}
	return false
}

// Native converts v to plain Go values (nil, string, float64, bool,
// []any, map[string]any).
func (v Value) Native() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindBytes:
		return string(v.raw)
	case KindSequence:
		out := make([]any, len(v.seq))
		for i, item := range v.seq {
			out[i] = item.Native()
		}
		return out
	case KindMapping:
		out := make(map[string]any, len(v.keys))
		for _, k := range v.keys {
			out[k] = v.items[k].Native()
		}
		return out
	}
	return nil
}

// MarshalJSON keeps mapping keys in insertion order.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if math.IsInf(v.num, 0) || math.IsNaN(v.num) {
			return json.Marshal(formatNumber(v.num))
		}
		return []byte(formatNumber(v.num)), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindBytes:
		return json.Marshal(string(v.raw))
	case KindSequence:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.seq {
			if i > 0 {
				buf.WriteByte(',')
			}
			data, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(data)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindMapping:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			data, err := v.items[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(data)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}
	return []byte("null"), nil
}
