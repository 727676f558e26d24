package okr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an opaque, server-assigned identifier. The empty ID means "none" and
// encodes as JSON null.
type ID string

// String returns the raw identifier.
func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the ID is unset.
func (id ID) IsZero() bool {
	return id == ""
}

// UnmarshalJSON accepts a JSON number, a JSON string, or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: must be a number or string", string(data))
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes integer ids as JSON numbers, other ids as strings, and
// the empty ID as null.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Wire returns the value placed in request bodies for a foreign key:
// an int64 for numeric ids, the string otherwise, nil when unset.
func (id ID) Wire() any {
	if id == "" {
		return nil
	}
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return n
	}
	return string(id)
}
