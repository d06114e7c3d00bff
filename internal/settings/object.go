package settings

import (
	"errors"
	"fmt"
	"reflect"
)

// GetOption modifies a GetObject call.
type GetOption func(*getOptions)

type getOptions struct {
	def    any
	hasDef bool
}

// Default makes GetObject assign v to its target instead of failing when
// the key is missing. The store is not modified. A stored object that
// does not match the target still fails.
func Default(v any) GetOption {
	return func(o *getOptions) {
		o.def = v
		o.hasDef = true
	}
}

func (s *Store) GetObject(key string, out any, opts ...GetOption) error {
	var o getOptions
	for _, opt := range opts {
		opt(&o)
	}

	target := reflect.ValueOf(out)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		return fmt.Errorf("%w: need a non-nil pointer, got %T", ErrInvalidTarget, out)
	}
	elem := target.Elem()

	data, err := s.objectData(key)
	if errors.Is(err, ErrMissingKey) && o.hasDef {
		return assignDefault(elem, o.def)
	}
	if err != nil {
		return err
	}

	// Decode into a fresh value so out is untouched on failure.
	fresh := reflect.New(elem.Type())
	if err := s.codec.Unmarshal(data, fresh.Interface()); err != nil {
		return fmt.Errorf("%q: %w: %v", key, ErrDeserialization, err)
	}
	elem.Set(fresh.Elem())
	return nil
}

// objectData returns the encoded object under key if the store's codec
// can read it.
func (s *Store) objectData(key string) ([]byte, error) {
	v, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	codec, data, ok := v.Object()
	if !ok {
		return nil, fmt.Errorf("%q: stored %s is not an object: %w", key, v.Kind(), ErrDeserialization)
	}
	if codec != s.codec.Name() {
		return nil, fmt.Errorf("%q: stored with codec %s, store uses %s: %w", key, codec, s.codec.Name(), ErrDeserialization)
	}
	return data, nil
}

func assignDefault(elem reflect.Value, def any) error {
	if def == nil {
		switch elem.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
			elem.SetZero()
			return nil
		}
		return fmt.Errorf("%w: nil default for %s", ErrInvalidTarget, elem.Type())
	}
	dv := reflect.ValueOf(def)
	if !dv.Type().AssignableTo(elem.Type()) {
		return fmt.Errorf("%w: default of type %s is not assignable to %s", ErrInvalidTarget, dv.Type(), elem.Type())
	}
	elem.Set(dv)
	return nil
}

func (s *Store) SetObject(key string, obj any) error {
	data, err := s.codec.Marshal(obj)
	if err != nil {
		return fmt.Errorf("%q: %w: %v", key, ErrSerialization, err)
	}
	s.Put(key, ObjectValue(s.codec.Name(), data))
	return nil
}

// Object reads the object stored under key as a T.
func Object[T any](s Settings, key string) (T, error) {
	var out T
	err := s.GetObject(key, &out)
	return out, err
}

// ObjectOr reads the object stored under key as a T, or returns def when
// the key is missing.
func ObjectOr[T any](s Settings, key string, def T) (T, error) {
	var out T
	err := s.GetObject(key, &out, Default(def))
	return out, err
}

// PutObject stores obj under key.
func PutObject[T any](s Settings, key string, obj T) error {
	return s.SetObject(key, obj)
}

// GetText reads key as the given kind and returns its canonical text.
// Scalars coerce as the typed getters do. An object comes back as the
// text its codec produced, and fails with ErrDeserialization if it is
// not an object or was written by another codec.
func (s *Store) GetText(key string, kind Kind) (string, error) {
	switch kind {
	case KindBool:
		b, err := s.GetBool(key)
		if err != nil {
			return "", err
		}
		return BoolValue(b).Text(), nil
	case KindInt:
		i, err := s.GetInt(key)
		if err != nil {
			return "", err
		}
		return IntValue(i).Text(), nil
	case KindFloat:
		f, err := s.GetFloat(key)
		if err != nil {
			return "", err
		}
		return FloatValue(f).Text(), nil
	case KindString:
		return s.GetString(key)
	case KindObject:
		data, err := s.objectData(key)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return "", fmt.Errorf("%q: cannot read as %s: %w", key, kind, ErrTypeMismatch)
}
