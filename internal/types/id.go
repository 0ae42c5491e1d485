package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

var ErrInvalidID = errors.New("invalid id")

// FlexibleID is a positive row id that may arrive as a JSON number or as a
// numeric string. Absent or null leaves it zero.
type FlexibleID uint

func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}

	if data[0] == '"' {
		var s string

		if err := json.Unmarshal(data, &s); err != nil {
			return ErrInvalidID
		}

		if s == "" {
			*id = 0
			return nil
		}

		data = []byte(s)
	}

	n, err := strconv.ParseUint(string(data), 10, 32)

	if err != nil {
		return ErrInvalidID
	}

	*id = FlexibleID(n)
	return nil
}

func (id FlexibleID) Uint() uint {
	return uint(id)
}
