package settings

import "fmt"

// DocumentVersion is the only document layout this package reads and writes.
const DocumentVersion = 1

// Document is the portable form of a whole view, shared by text media
// and the HTTP API.
type Document struct {
	Version  int               `json:"version" yaml:"version" toml:"version"`
	Settings map[string]Record `json:"settings" yaml:"settings" toml:"settings"`
}

// NewDocument converts entries to their portable form.
func NewDocument(entries map[string]Value) Document {
	doc := Document{
		Version:  DocumentVersion,
		Settings: make(map[string]Record, len(entries)),
	}
	for k, v := range entries {
		doc.Settings[k] = v.Record()
	}
	return doc
}

// Entries parses every record in d. An unsupported version or a
// malformed record wraps ErrCorrupt.
func (d Document) Entries() (map[string]Value, error) {
	if d.Version != DocumentVersion {
		return nil, fmt.Errorf("%w: unsupported document version %d", ErrCorrupt, d.Version)
	}
	out := make(map[string]Value, len(d.Settings))
	for k, r := range d.Settings {
		v, err := FromRecord(r)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// CheckKeys fails for a key that a text document cannot carry unchanged.
// Values never fail here; Record escapes them.
func CheckKeys(entries map[string]Value) error {
	for k := range entries {
		if !TextSafe(k) {
			return fmt.Errorf("key %q cannot be stored as text: it must be UTF-8 without control characters", k)
		}
	}
	return nil
}
