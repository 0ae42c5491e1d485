package models

import (
	"database/sql/driver"
	"fmt"
)

// RawJSON is a JSON document kept byte for byte in a text column. Unlike a
// native JSON column type, the database never reorders or reformats it.
type RawJSON []byte

func (j RawJSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}

	return string(j), nil
}

func (j *RawJSON) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append(RawJSON(nil), v...)
	case string:
		*j = RawJSON(v)
	default:
		return fmt.Errorf("cannot scan %T into RawJSON", value)
	}

	return nil
}

// MarshalJSON embeds the stored document as is. An empty value is null.
func (j RawJSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}

	return j, nil
}

func (j *RawJSON) UnmarshalJSON(data []byte) error {
	*j = append(RawJSON(nil), data...)
	return nil
}
