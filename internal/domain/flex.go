package domain

import (
	"bytes"
	"encoding/json"
)

// FlexString decodes a JSON string, number or boolean into its text form.
// A populated reference object decodes to its "_id". Other objects, arrays and
// null decode to the empty string instead of failing the payload.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*f = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	case '{':
		var ref struct {
			ID FlexString `json:"_id"`
		}
		if err := json.Unmarshal(data, &ref); err != nil {
			*f = ""
			return nil
		}
		*f = ref.ID
	case '[', 'n':
		*f = ""
	default:
		*f = FlexString(data)
	}
	return nil
}

// String returns the decoded text
func (f FlexString) String() string {
	return string(f)
}

// FirstNonEmpty returns the first non-empty value
func FirstNonEmpty(values ...FlexString) string {
	for _, v := range values {
		if v != "" {
			return string(v)
		}
	}
	return ""
}
