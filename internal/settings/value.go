package settings

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// Kind identifies the canonical representation of a stored value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindObject
)

var kindNames = [...]string{"invalid", "bool", "int", "float", "string", "object"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind returns the Kind named s ("bool", "int", "float", "string" or "object").
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames[1:] {
		if name == s {
			return Kind(i + 1), nil
		}
	}
	return KindInvalid, fmt.Errorf("unknown kind %q", s)
}

// Value is one stored setting: a bool, int64, float64, string, or an
// object encoded by a named codec. The zero Value is invalid.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	s     string
	codec string
}

func BoolValue(b bool) Value     { return Value{kind: KindBool, b: b} }
func IntValue(i int64) Value     { return Value{kind: KindInt, i: i} }
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// ObjectValue wraps data produced by the codec named codec.
func ObjectValue(codec string, data []byte) Value {
	return Value{kind: KindObject, codec: codec, s: string(data)}
}

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsValid() bool { return v.kind > KindInvalid && v.kind <= KindObject }

// AsBool coerces v to a bool. Strings accepted by strconv.ParseBool and
// the integers 0 and 1 coerce; every other kind is a mismatch.
func (v Value) AsBool() (bool, error) {
	switch v.kind {
	case KindBool:
		return v.b, nil
	case KindInt:
		if v.i == 0 || v.i == 1 {
			return v.i == 1, nil
		}
	case KindString:
		if b, err := strconv.ParseBool(v.s); err == nil {
			return b, nil
		}
	}
	return false, v.mismatch(KindBool)
}

// AsInt coerces v to an int64. Floats coerce only when integral and in
// range; strings must be base-10 integers.
func (v Value) AsInt() (int64, error) {
	switch v.kind {
	case KindInt:
		return v.i, nil
	case KindFloat:
		if v.f == math.Trunc(v.f) && v.f >= math.MinInt64 && v.f < math.MaxInt64 {
			return int64(v.f), nil
		}
	case KindString:
		if i, err := strconv.ParseInt(v.s, 10, 64); err == nil {
			return i, nil
		}
	}
	return 0, v.mismatch(KindInt)
}

// AsFloat coerces v to a float64 from a float, an int, or a numeric string.
func (v Value) AsFloat() (float64, error) {
	switch v.kind {
	case KindFloat:
		return v.f, nil
	case KindInt:
		return float64(v.i), nil
	case KindString:
		if f, err := strconv.ParseFloat(v.s, 64); err == nil {
			return f, nil
		}
	}
	return 0, v.mismatch(KindFloat)
}

// AsString returns strings as-is and the canonical text of bools and
// numbers. Objects never coerce to strings.
func (v Value) AsString() (string, error) {
	switch v.kind {
	case KindString, KindBool, KindInt, KindFloat:
		return v.Text(), nil
	}
	return "", v.mismatch(KindString)
}

// Object returns the codec name and encoded payload of an object value.
func (v Value) Object() (codec string, data []byte, ok bool) {
	if v.kind != KindObject {
		return "", nil, false
	}
	return v.codec, []byte(v.s), true
}

// Text returns the canonical text form of v. Floats use the shortest
// representation that parses back to the same bits.
func (v Value) Text() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString, KindObject:
		return v.s
	}
	return ""
}

func (v Value) String() string {
	if v.kind == KindObject {
		return fmt.Sprintf("object(%s):%s", v.codec, v.s)
	}
	return v.kind.String() + ":" + v.Text()
}

func (v Value) mismatch(want Kind) error {
	return fmt.Errorf("stored %s cannot be read as %s: %w", v.kind, want, ErrTypeMismatch)
}

// Record is the portable form of a Value used by text media and the
// HTTP API. Text that is not TextSafe travels base64-encoded with
// Encoding set to "base64".
type Record struct {
	Kind     string `json:"kind" yaml:"kind" toml:"kind"`
	Codec    string `json:"codec,omitempty" yaml:"codec,omitempty" toml:"codec,omitempty"`
	Encoding string `json:"encoding,omitempty" yaml:"encoding,omitempty" toml:"encoding,omitempty"`
	Value    string `json:"value" yaml:"value" toml:"value"`
}

// EncodingBase64 marks a Record whose Value is standard base64.
const EncodingBase64 = "base64"

// Record returns the portable form of v.
func (v Value) Record() Record {
	r := Record{Kind: v.kind.String(), Codec: v.codec, Value: v.Text()}
	if !TextSafe(r.Value) {
		r.Encoding = EncodingBase64
		r.Value = base64.StdEncoding.EncodeToString([]byte(r.Value))
	}
	return r
}

// FromRecord parses a Record back into a Value. Malformed records wrap ErrCorrupt.
func FromRecord(r Record) (Value, error) {
	kind, err := ParseKind(r.Kind)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	text := r.Value
	switch r.Encoding {
	case "":
	case EncodingBase64:
		raw, err := base64.StdEncoding.DecodeString(r.Value)
		if err != nil {
			return Value{}, fmt.Errorf("%w: bad base64 value: %v", ErrCorrupt, err)
		}
		text = string(raw)
	default:
		return Value{}, fmt.Errorf("%w: unknown encoding %q", ErrCorrupt, r.Encoding)
	}
	return parseText(kind, r.Codec, text)
}

// TextSafe reports whether s passes unchanged through every text
// document format (YAML, JSON, TOML, XML plists): valid UTF-8 with no
// control characters other than tab and newline, and no XML
// noncharacters.
func TextSafe(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if r == '\t' || r == '\n' {
			continue
		}
		if unicode.IsControl(r) || r == 0xFFFE || r == 0xFFFF {
			return false
		}
	}
	return true
}

func parseText(kind Kind, codec, text string) (Value, error) {
	switch kind {
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, fmt.Errorf("%w: bool %q", ErrCorrupt, text)
		}
		return BoolValue(b), nil
	case KindInt:
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: int %q", ErrCorrupt, text)
		}
		return IntValue(i), nil
	case KindFloat:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: float %q", ErrCorrupt, text)
		}
		return FloatValue(f), nil
	case KindString:
		return StringValue(text), nil
	case KindObject:
		if codec == "" {
			return Value{}, fmt.Errorf("%w: object without codec", ErrCorrupt)
		}
		return ObjectValue(codec, []byte(text)), nil
	}
	return Value{}, fmt.Errorf("%w: invalid kind %s", ErrCorrupt, kind)
}

// MarshalBinary encodes v as kind byte, codec length byte, codec name,
// then the canonical text.
func (v Value) MarshalBinary() ([]byte, error) {
	if !v.IsValid() {
		return nil, fmt.Errorf("cannot encode %s value", v.kind)
	}
	if len(v.codec) > math.MaxUint8 {
		return nil, fmt.Errorf("codec name too long: %d bytes", len(v.codec))
	}
	text := v.Text()
	buf := make([]byte, 0, 2+len(v.codec)+len(text))
	buf = append(buf, byte(v.kind), byte(len(v.codec)))
	buf = append(buf, v.codec...)
	buf = append(buf, text...)
	return buf, nil
}

// UnmarshalBinary decodes the output of MarshalBinary. Malformed input wraps ErrCorrupt.
func (v *Value) UnmarshalBinary(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("%w: value too short", ErrCorrupt)
	}
	n := int(data[1])
	if len(data) < 2+n {
		return fmt.Errorf("%w: truncated codec name", ErrCorrupt)
	}
	parsed, err := parseText(Kind(data[0]), string(data[2:2+n]), string(data[2+n:]))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseText parses user input as a value of the given kind. Object input
// must decode with codec and is stored under the codec's name.
func ParseText(kind Kind, text string, codec Codec) (Value, error) {
	switch kind {
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, fmt.Errorf("invalid bool %q", text)
		}
		return BoolValue(b), nil
	case KindInt:
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid int %q", text)
		}
		return IntValue(i), nil
	case KindFloat:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid float %q", text)
		}
		return FloatValue(f), nil
	case KindString:
		return StringValue(text), nil
	case KindObject:
		if err := validateObject(codec, []byte(text)); err != nil {
			return Value{}, fmt.Errorf("invalid %s object: %v", codec.Name(), err)
		}
		return ObjectValue(codec.Name(), []byte(text)), nil
	}
	return Value{}, fmt.Errorf("invalid kind %s", kind)
}
