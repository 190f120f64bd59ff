package sos

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
)

// Coordinate is a latitude or longitude as sent by clients. It decodes from
// a JSON number or from a numeric string ("12.1"). An empty string or null
// leaves it at zero, which Validate treats as missing.
type Coordinate float64

func (c *Coordinate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		s = strings.TrimSpace(s)
		if s == "" {
			*c = 0
			return nil
		}

		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return &json.UnmarshalTypeError{Value: "string " + strconv.Quote(s), Type: reflect.TypeOf(*c)}
		}
		*c = Coordinate(f)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return &json.UnmarshalTypeError{Value: string(data), Type: reflect.TypeOf(*c)}
	}
	*c = Coordinate(f)
	return nil
}
