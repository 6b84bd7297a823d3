package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an opaque correlation identifier. Clients are expected to send
// strings; numeric ids from lenient clients are accepted and echoed back as
// numbers so the peer sees exactly the token it sent.
type ID struct {
	value any // string | json.Number | nil
}

// NewID creates an ID from a string or an integer. Other types yield the
// empty ID.
func NewID(value any) ID {
	switch v := value.(type) {
	case string:
		return ID{value: v}
	case json.Number:
		return ID{value: v}
	case int:
		return ID{value: json.Number(strconv.Itoa(v))}
	case int64:
		return ID{value: json.Number(strconv.FormatInt(v, 10))}
	case uint64:
		return ID{value: json.Number(strconv.FormatUint(v, 10))}
	default:
		return ID{}
	}
}

// String returns the textual form used for logging and in-flight tracking.
func (id ID) String() string {
	switch v := id.value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// IsZero reports whether the id is absent.
func (id ID) IsZero() bool { return id.value == nil }

// IsNumeric reports whether the id was sent as a JSON number.
func (id ID) IsNumeric() bool {
	_, ok := id.value.(json.Number)
	return ok
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	switch v := id.value.(type) {
	case string:
		return json.Marshal(v)
	case json.Number:
		return []byte(v), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		id.value = nil
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		id.value = str
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		id.value = num
		return nil
	}
	return fmt.Errorf("correlation id must be a string or number, got: %s", string(data))
}
