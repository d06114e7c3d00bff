// Package codec provides object codecs beyond the default JSON one.
// Every decoder is strict: input that does not map onto the target is
// an error rather than silently dropped.
package codec

import (
	"bytes"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"settings-lite/internal/settings"

	"github.com/BurntSushi/toml"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"gopkg.in/yaml.v3"
)

var (
	YAML      settings.Codec = yamlCodec{}
	TOML      settings.Codec = tomlCodec{}
	ProtoJSON settings.Codec = protoJSONCodec{}
)

var byName = map[string]settings.Codec{
	settings.JSON.Name(): settings.JSON,
	YAML.Name():          YAML,
	TOML.Name():          TOML,
	ProtoJSON.Name():     ProtoJSON,
}

// ByName resolves a codec name as written in config files. The empty
// name selects JSON.
func ByName(name string) (settings.Codec, error) {
	if name == "" {
		return settings.JSON, nil
	}
	c, ok := byName[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown codec %q (want one of %s)", name, strings.Join(Names(), ", "))
	}
	return c, nil
}

// Names lists the registered codec names in sorted order.
func Names() []string {
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type yamlCodec struct{}

func (yamlCodec) Name() string { return "yaml" }

func (yamlCodec) Marshal(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

func (yamlCodec) Unmarshal(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty YAML document")
		}
		return err
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after YAML document")
	}
	return nil
}

type tomlCodec struct{}

func (tomlCodec) Name() string { return "toml" }

// Marshal fails for values that are not tables (structs or maps), since
// a TOML document has no other top-level form.
func (tomlCodec) Marshal(v any) ([]byte, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, errors.New("toml: cannot encode nil")
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct && rv.Kind() != reflect.Map {
		return nil, fmt.Errorf("toml: cannot encode %T: a document must be a struct or map", v)
	}
	// Structs like time.Time encode as a single scalar.
	if _, ok := rv.Interface().(encoding.TextMarshaler); ok {
		return nil, fmt.Errorf("toml: cannot encode %T: it encodes as a scalar", v)
	}
	if _, ok := rv.Interface().(toml.Marshaler); ok {
		return nil, fmt.Errorf("toml: cannot encode %T: it encodes as a scalar", v)
	}
	return toml.Marshal(v)
}

func (tomlCodec) Unmarshal(data []byte, v any) error {
	md, err := toml.Decode(string(data), v)
	if err != nil {
		return err
	}
	// An untyped target takes every key, but the decoder does not mark
	// keys stored into an interface as decoded.
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.Elem().Kind() == reflect.Interface {
		return nil
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown TOML keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// protoJSONCodec encodes protobuf messages with the canonical JSON
// mapping. Targets may be a message pointer or a pointer to one, so both
// GetObject(key, msg) and Object[*pb.Msg] work.
type protoJSONCodec struct{}

func (protoJSONCodec) Name() string { return "protojson" }

func (protoJSONCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("protojson: %T is not a proto.Message", v)
	}
	return protojson.Marshal(m)
}

// Validate accepts any JSON document; the message type is only known when
// decoding.
func (protoJSONCodec) Validate(data []byte) error {
	if !json.Valid(data) {
		return errors.New("not valid JSON")
	}
	return nil
}

func (protoJSONCodec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return protojson.Unmarshal(data, m)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && rv.Elem().Kind() == reflect.Pointer {
		inner := reflect.New(rv.Elem().Type().Elem())
		if m, ok := inner.Interface().(proto.Message); ok {
			if err := protojson.Unmarshal(data, m); err != nil {
				return err
			}
			rv.Elem().Set(inner)
			return nil
		}
	}
	return fmt.Errorf("protojson: %T is not a proto.Message", v)
}
