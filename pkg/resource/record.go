package resource

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Record is a domain entity stored in a data store. RecordID returns 0 until
// the remote store has assigned an identity.
type Record interface {
	RecordID() int64
	ToRemote() map[string]any
	PopulateFrom(raw map[string]any) error
}

// Model is embedded by concrete record types to carry the server-assigned id.
type Model struct {
	ID int64 `json:"id,omitempty" mapstructure:"id"`
}

// RecordID implements Record.
func (m *Model) RecordID() int64 {
	return m.ID
}

// Decode populates the struct pointed to by out from a remote record. Field
// names follow json tags. Weak typing is enabled since ids and numbers often
// arrive as strings or floats.
func Decode(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Squash:           true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("error creating decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("error decoding remote record: %w", err)
	}
	return nil
}

// Encode converts a struct into its remote form, following json tags.
// Embedded structs are flattened.
func Encode(in any) (map[string]any, error) {
	out := map[string]any{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Squash:  true,
		Result:  &out,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating encoder: %w", err)
	}
	if err := dec.Decode(in); err != nil {
		return nil, fmt.Errorf("error encoding record: %w", err)
	}
	return out, nil
}

// IDOf extracts the "id" field of a remote record.
func IDOf(raw map[string]any) (int64, error) {
	var m Model
	if err := Decode(raw, &m); err != nil {
		return 0, err
	}
	if m.ID == 0 {
		return 0, fmt.Errorf("remote record has no id")
	}
	return m.ID, nil
}

// Map is a schemaless record, used when the table layout isn't known at
// compile time.
type Map map[string]any

var _ Record = (Map)(nil)

// NewMap returns an empty Map.
func NewMap() Map {
	return Map{}
}

// RecordID implements Record.
func (m Map) RecordID() int64 {
	if _, ok := m["id"]; !ok {
		return 0
	}
	id, err := IDOf(m)
	if err != nil {
		return 0
	}
	return id
}

// ToRemote implements Record.
func (m Map) ToRemote() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// PopulateFrom implements Record.
func (m Map) PopulateFrom(raw map[string]any) error {
	for k, v := range raw {
		m[k] = v
	}
	return nil
}
