package types

import (
	"bytes"
	"fmt"
	"math/big"
)

// FlexString holds a JSON scalar that may arrive either quoted or as a bare
// number. Bare numbers are kept as their literal digits so large integers
// (salts, token ids) never pass through float64.
type FlexString string

// UnmarshalJSON accepts "123", 123 and null.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		*f = FlexString(data[1 : len(data)-1])
		return nil
	}

	if len(data) > 0 && (data[0] == '{' || data[0] == '[') {
		return fmt.Errorf("expected scalar, got %s", string(data))
	}

	*f = FlexString(data)
	return nil
}

// String returns the raw value.
func (f FlexString) String() string {
	return string(f)
}

// BigInt parses the value as an exact base-10 integer.
func (f FlexString) BigInt() (*big.Int, error) {
	if f == "" {
		return nil, fmt.Errorf("empty integer")
	}

	n, ok := new(big.Int).SetString(string(f), 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", string(f))
	}

	return n, nil
}
