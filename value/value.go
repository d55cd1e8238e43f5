// Package value decodes configuration values into raw card bytes.
//
// A value is either an ascii string, copied byte for byte, or a list of hex
// tokens such as ["0xA0", "0xA1", "0x00"].
package value

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidValueShape = errors.New("value must be a string or a list of hex tokens")
	ErrInvalidHexToken   = errors.New("invalid hex token")
)

// Decode converts v into bytes. A string with n > 0 yields exactly n bytes:
// the string is truncated when longer and the remaining bytes are zero when
// shorter. With n <= 0 the length is taken from the string. Lists ignore n,
// their length is the number of tokens.
func Decode(v any, n int) ([]byte, error) {
	switch v := v.(type) {
	case string:
		if n <= 0 {
			return []byte(v), nil
		}
		out := make([]byte, n)
		copy(out, v)
		return out, nil
	case []any:
		out := make([]byte, len(v))
		for i, elem := range v {
			s, ok := elem.(string)
			if !ok {
				return nil, fmt.Errorf("%w: element %d is %T", ErrInvalidHexToken, i, elem)
			}
			b, err := ParseHexToken(s)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = b
		}
		return out, nil
	case []string:
		out := make([]byte, len(v))
		for i, s := range v {
			b, err := ParseHexToken(s)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = b
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrInvalidValueShape, v)
	}
}

// ParseHexToken parses a single "0xHH" token. One or two hex digits are
// accepted after the prefix.
func ParseHexToken(s string) (byte, error) {
	digits, ok := strings.CutPrefix(s, "0x")
	if !ok {
		digits, ok = strings.CutPrefix(s, "0X")
	}
	if !ok || len(digits) == 0 || len(digits) > 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHexToken, s)
	}
	var b byte
	for i := 0; i < len(digits); i++ {
		d, err := nibble(digits[i])
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidHexToken, s)
		}
		b = b<<4 | d
	}
	return b, nil
}

func nibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	}
	return 0, fmt.Errorf("invalid hex digit: %q", c)
}

// Tokens renders data the way it is written in a configuration file.
func Tokens(data []byte) []string {
	out := make([]string, len(data))
	for i, b := range data {
		out[i] = fmt.Sprintf("0x%02X", b)
	}
	return out
}
