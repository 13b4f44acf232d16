package drivers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Amund211/serverstats/internal/domain"
)

// flexInt decodes a number, a numeric string or {"Value": <flexInt>}
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		return f.fromNumber(s)
	case '{':
		var wrapped struct {
			Value flexInt `json:"Value"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return err
		}
		*f = wrapped.Value
		return nil
	}

	return f.fromNumber(string(data))
}

func (f *flexInt) fromNumber(s string) error {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = flexInt(n)
		return nil
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return fmt.Errorf("not a number: %q", s)
	}
	*f = flexInt(math.Trunc(n))
	return nil
}

// flexString decodes a string, a number or {"Value": <flexString>}
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	case '{':
		var wrapped struct {
			Value flexString `json:"Value"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return err
		}
		*f = wrapped.Value
		return nil
	case '[', 't', 'f':
		return fmt.Errorf("not a string: %s", data)
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// decodeOptions decodes a binding's extra config on top of the defaults in options
func decodeOptions(extraConfig string, options any) error {
	extraConfig = strings.TrimSpace(extraConfig)
	if extraConfig == "" {
		return nil
	}

	decoder := json.NewDecoder(strings.NewReader(extraConfig))
	if err := decoder.Decode(options); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidDriverConfig, err)
	}
	return nil
}
