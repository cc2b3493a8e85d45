package filecache

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// Kind is the type tag of a cached [Value]. It is persisted in the metadata
// index so values read back from disk regain their original type.
type Kind uint8

// Value kinds. KindInvalid is the kind of the zero Value and is never stored.
const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindList
	KindMap
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindString:  "string",
	KindInt:     "integer",
	KindFloat:   "float",
	KindBool:    "boolean",
	KindList:    "array",
	KindMap:     "map",
}

// String returns the persisted tag name ("string", "integer", "float",
// "boolean", "array", "map").
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Composite reports whether values of this kind are stored serialized.
func (k Kind) Composite() bool {
	return k == KindList || k == KindMap
}

// ParseKind is the inverse of [Kind.String]. It also accepts the short
// aliases "str", "int", "bool", "list" and "object".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "string", "str":
		return KindString, nil
	case "integer", "int":
		return KindInt, nil
	case "float", "double":
		return KindFloat, nil
	case "boolean", "bool":
		return KindBool, nil
	case "array", "list":
		return KindList, nil
	case "map", "object":
		return KindMap, nil
	}

	return KindInvalid, fmt.Errorf("unknown kind %q", s)
}

// Value is an immutable tagged value: a string, integer, float, boolean,
// list of values or string-keyed map of values.
//
// The zero Value has [KindInvalid] and is rejected by [Cache.Set].
type Value struct {
	kind   Kind
	str    string
	num    int64
	flt    float64
	boolV  bool
	items  []Value
	fields map[string]Value
}

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int returns an integer value.
func Int(n int64) Value { return Value{kind: KindInt, num: n} }

// Float returns a float value.
func Float(f float64) Value { return Value{kind: KindFloat, flt: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, boolV: b} }

// List returns a list value holding a copy of items.
func List(items ...Value) Value {
	return Value{kind: KindList, items: slices.Clone(items)}
}

// Map returns a map value holding a copy of fields.
func Map(fields map[string]Value) Value {
	return Value{kind: KindMap, fields: maps.Clone(fields)}
}

// Kind returns the value's type tag.
func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether v is the zero Value.
func (v Value) IsZero() bool { return v.kind == KindInvalid }

// Str returns the string and whether v is a string.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Int64 returns the integer and whether v is an integer.
func (v Value) Int64() (int64, bool) { return v.num, v.kind == KindInt }

// Float64 returns the float and whether v is a float.
func (v Value) Float64() (float64, bool) { return v.flt, v.kind == KindFloat }

// Bool returns the boolean and whether v is a boolean.
func (v Value) Bool() (bool, bool) { return v.boolV, v.kind == KindBool }

// Items returns a copy of the list elements, or nil if v is not a list.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}

	return slices.Clone(v.items)
}

// Fields returns a copy of the map fields, or nil if v is not a map.
func (v Value) Fields() map[string]Value {
	if v.kind != KindMap {
		return nil
	}

	return maps.Clone(v.fields)
}

// Len returns the number of list elements or map fields; 0 for scalars.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.items)
	case KindMap:
		return len(v.fields)
	default:
		return 0
	}
}

// Equal reports whether v and o have the same kind and contents.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}

	switch v.kind {
	case KindInvalid:
		return true
	case KindString:
		return v.str == o.str
	case KindInt:
		return v.num == o.num
	case KindFloat:
		return v.flt == o.flt
	case KindBool:
		return v.boolV == o.boolV
	case KindList:
		return slices.EqualFunc(v.items, o.items, Value.Equal)
	case KindMap:
		return maps.EqualFunc(v.fields, o.fields, Value.Equal)
	}

	return false
}

// Any converts v into plain Go values: string, int64, float64, bool,
// []any and map[string]any. The zero Value converts to nil.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.num
	case KindFloat:
		return v.flt
	case KindBool:
		return v.boolV
	case KindList:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Any()
		}

		return out
	case KindMap:
		out := make(map[string]any, len(v.fields))
		for k, field := range v.fields {
			out[k] = field.Any()
		}

		return out
	}

	return nil
}

// String renders scalars in their natural form and composites as JSON.
func (v Value) String() string {
	switch v.kind {
	case KindInvalid:
		return "<invalid>"
	case KindList, KindMap:
		data, err := encodeComposite(v)
		if err != nil {
			return fmt.Sprintf("%v", v.Any())
		}

		return string(data)
	default:
		return string(naturalBytes(v))
	}
}

// FromAny converts plain Go values into a Value. Supported inputs are
// Value, string, bool, all integer and float types, []any, []Value,
// []string, map[string]any and map[string]Value.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint:
		if uint64(t) > math.MaxInt64 {
			return Value{}, fmt.Errorf("%w: %d overflows int64", ErrInvalidArgument, t)
		}

		return Int(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Value{}, fmt.Errorf("%w: %d overflows int64", ErrInvalidArgument, t)
		}

		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case []Value:
		return List(t...), nil
	case []string:
		items := make([]Value, len(t))
		for i, s := range t {
			items[i] = String(s)
		}

		return Value{kind: KindList, items: items}, nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}

			items[i] = v
		}

		return Value{kind: KindList, items: items}, nil
	case map[string]Value:
		return Map(t), nil
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("field %q: %w", k, err)
			}

			fields[k] = v
		}

		return Value{kind: KindMap, fields: fields}, nil
	}

	return Value{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidArgument, x)
}

// ParseValue builds a Value of the given kind from its textual form. Lists
// and maps are parsed as JSON; JSON numbers without a fraction or exponent
// become integers.
func ParseValue(kind Kind, text string) (Value, error) {
	v, err := decodePayload(kind, kind.Composite(), []byte(text))
	if err != nil {
		return Value{}, fmt.Errorf("parsing %s %q: %w", kind, text, err)
	}

	return v, nil
}

// --- payload encoding ---

var (
	errKindMismatch = errors.New("payload does not match recorded kind")
	errNullValue    = errors.New("null is not a cacheable value")
)

// compositeAPI sorts map keys so equal values encode to equal bytes, and
// decodes numbers as json.Number so integers and floats stay distinct.
var compositeAPI = sonic.Config{
	SortMapKeys: true,
	UseNumber:   true,
}.Froze()

// payload returns the bytes stored on disk for v and whether they are a
// serialized composite encoding.
func (v Value) payload() ([]byte, bool, error) {
	switch v.kind {
	case KindInvalid:
		return nil, false, fmt.Errorf("%w: zero value", ErrInvalidArgument)
	case KindList, KindMap:
		data, err := encodeComposite(v)
		if err != nil {
			return nil, false, err
		}

		return data, true, nil
	default:
		return naturalBytes(v), false, nil
	}
}

func naturalBytes(v Value) []byte {
	switch v.kind {
	case KindString:
		return []byte(v.str)
	case KindInt:
		return strconv.AppendInt(nil, v.num, 10)
	case KindFloat:
		return strconv.AppendFloat(nil, v.flt, 'g', -1, 64)
	case KindBool:
		return strconv.AppendBool(nil, v.boolV)
	}

	return nil
}

// decodePayload restores a Value from stored bytes using the recorded kind
// and serialization flag.
func decodePayload(kind Kind, serialized bool, data []byte) (Value, error) {
	if serialized != kind.Composite() {
		return Value{}, fmt.Errorf("%w: kind=%s serialized=%t", errKindMismatch, kind, serialized)
	}

	switch kind {
	case KindString:
		return String(string(data)), nil
	case KindInt:
		n, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
		if err != nil {
			return Value{}, err
		}

		return Int(n), nil
	case KindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
		if err != nil {
			return Value{}, err
		}

		return Float(f), nil
	case KindBool:
		b, err := strconv.ParseBool(strings.TrimSpace(string(data)))
		if err != nil {
			return Value{}, err
		}

		return Bool(b), nil
	case KindList, KindMap:
		v, err := decodeComposite(data)
		if err != nil {
			return Value{}, err
		}

		if v.kind != kind {
			return Value{}, fmt.Errorf("%w: kind=%s decoded=%s", errKindMismatch, kind, v.kind)
		}

		return v, nil
	}

	return Value{}, fmt.Errorf("%w: %s", errKindMismatch, kind)
}

// jsonFloat always encodes with a fraction or exponent so it decodes back
// as a float rather than an integer.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	x := float64(f)
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil, fmt.Errorf("%w: non-finite float %v in composite value", ErrInvalidArgument, x)
	}

	out := strconv.AppendFloat(nil, x, 'g', -1, 64)
	if !strings.ContainsAny(string(out), ".eE") {
		out = append(out, '.', '0')
	}

	return out, nil
}

func encodeComposite(v Value) ([]byte, error) {
	tree, err := toJSONTree(v)
	if err != nil {
		return nil, err
	}

	data, err := compositeAPI.Marshal(tree)
	if err != nil {
		// sonic wraps marshaler errors; surface ours unchanged when present.
		if errors.Is(err, ErrInvalidArgument) {
			return nil, err
		}

		return nil, fmt.Errorf("encoding %s: %w", v.kind, err)
	}

	return data, nil
}

func toJSONTree(v Value) (any, error) {
	switch v.kind {
	case KindString:
		return v.str, nil
	case KindInt:
		return v.num, nil
	case KindFloat:
		if math.IsNaN(v.flt) || math.IsInf(v.flt, 0) {
			return nil, fmt.Errorf("%w: non-finite float %v in composite value", ErrInvalidArgument, v.flt)
		}

		return jsonFloat(v.flt), nil
	case KindBool:
		return v.boolV, nil
	case KindList:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			node, err := toJSONTree(item)
			if err != nil {
				return nil, err
			}

			out[i] = node
		}

		return out, nil
	case KindMap:
		out := make(map[string]any, len(v.fields))
		for k, field := range v.fields {
			node, err := toJSONTree(field)
			if err != nil {
				return nil, err
			}

			out[k] = node
		}

		return out, nil
	}

	return nil, fmt.Errorf("%w: zero value inside composite", ErrInvalidArgument)
}

func decodeComposite(data []byte) (Value, error) {
	var tree any

	err := compositeAPI.Unmarshal(data, &tree)
	if err != nil {
		return Value{}, fmt.Errorf("decoding composite: %w", err)
	}

	return fromJSONTree(tree)
}

func fromJSONTree(node any) (Value, error) {
	switch t := node.(type) {
	case nil:
		return Value{}, errNullValue
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		s := t.String()
		if strings.ContainsAny(s, ".eE") {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return Value{}, err
			}

			return Float(f), nil
		}

		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, err
		}

		return Int(n), nil
	case float64:
		return Float(t), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := fromJSONTree(item)
			if err != nil {
				return Value{}, err
			}

			items[i] = v
		}

		return Value{kind: KindList, items: items}, nil
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			v, err := fromJSONTree(item)
			if err != nil {
				return Value{}, err
			}

			fields[k] = v
		}

		return Value{kind: KindMap, fields: fields}, nil
	}

	return Value{}, fmt.Errorf("unexpected json node %T", node)
}
