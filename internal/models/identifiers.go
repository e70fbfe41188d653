package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// EntityID is a marketplace resource id. Clients send it either as a bare uuid string
// or wrapped as {"uuid": "..."}; both decode to the same value.
type EntityID struct {
	uuid.UUID
}

// NewEntityID wraps an existing uuid
func NewEntityID(id uuid.UUID) EntityID {
	return EntityID{UUID: id}
}

// ParseEntityID parses a uuid string into an EntityID
func ParseEntityID(s string) (EntityID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return EntityID{}, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return EntityID{UUID: id}, nil
}

// IsZero reports whether the id was never set
func (id EntityID) IsZero() bool {
	return id.UUID == uuid.Nil
}

// MarshalJSON implements json.Marshaler; ids are written as plain strings
func (id EntityID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(id.UUID.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (id *EntityID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = EntityID{}
		return nil
	}

	var raw string
	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			UUID string `json:"uuid"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return fmt.Errorf("invalid id object: %w", err)
		}
		raw = wrapped.UUID
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}

	parsed, err := ParseEntityID(raw)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NullableID is a nullable id field that also remembers whether the key was present
// in the decoded document at all. Absent and null are different contract states.
type NullableID struct {
	Present bool
	Valid   bool
	Value   string
}

// NewNullableID returns a present, non-null id
func NewNullableID(value string) NullableID {
	return NullableID{Present: true, Valid: true, Value: value}
}

// NullID returns a present, explicit null
func NullID() NullableID {
	return NullableID{Present: true}
}

// Equals compares the nullable value against a concrete id
func (n NullableID) Equals(id string) bool {
	return n.Valid && n.Value == id
}

// Ptr returns the value as a pointer, nil when null or absent
func (n NullableID) Ptr() *string {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// String returns the value or "null"
func (n NullableID) String() string {
	if !n.Valid {
		return "null"
	}
	return n.Value
}

// MarshalJSON implements json.Marshaler
func (n NullableID) MarshalJSON() ([]byte, error) {
	if n.Valid {
		return json.Marshal(n.Value)
	}
	return json.Marshal(nil)
}

// UnmarshalJSON implements json.Unmarshaler. It is only invoked when the key exists.
func (n *NullableID) UnmarshalJSON(data []byte) error {
	n.Present = true

	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		// Accept {"uuid": "..."} as well
		var id EntityID
		if idErr := id.UnmarshalJSON(data); idErr != nil {
			return err
		}
		n.Valid = !id.IsZero()
		n.Value = id.String()
		return nil
	}
	if s != nil {
		n.Valid = true
		n.Value = *s
	} else {
		n.Valid = false
		n.Value = ""
	}
	return nil
}
