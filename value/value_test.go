package value

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var decodeCases = []struct {
	in   any
	n    int
	want []byte
}{
	{[]any{"0x41", "0xFF", "0x00"}, 0, []byte{0x41, 0xFF, 0x00}},
	{"AB", 0, []byte{0x41, 0x42}},
	{"AB", 4, []byte{0x41, 0x42, 0x00, 0x00}},
	{"ABCDEF", 3, []byte{0x41, 0x42, 0x43}},
	{[]any{"0xa", "0X0b"}, 16, []byte{0x0a, 0x0b}},
	{[]string{"0xF0", "0xF7"}, 0, []byte{0xF0, 0xF7}},
	{"", 0, []byte{}},
	{[]any{}, 0, []byte{}},
}

func TestDecode(t *testing.T) {
	for i, tc := range decodeCases {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			data, err := Decode(tc.in, tc.n)
			if err != nil {
				t.Errorf("Decode(%#v, %d) unexpected error: %v", tc.in, tc.n, err)
				return
			}
			if !bytes.Equal(data, tc.want) {
				t.Errorf("Decode(%#v, %d) = %#v; want %#v", tc.in, tc.n, data, tc.want)
			}
		})
	}
}

func TestDecodeInferredLength(t *testing.T) {
	data, err := Decode("AB", 0)
	require.NoError(t, err)
	assert.Len(t, data, 2)
}

func TestDecodeErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   any
		want error
	}{
		{"number", 42, ErrInvalidValueShape},
		{"object", map[string]any{"a": "b"}, ErrInvalidValueShape},
		{"nil", nil, ErrInvalidValueShape},
		{"no prefix", []any{"41"}, ErrInvalidHexToken},
		{"too wide", []any{"0x1FF"}, ErrInvalidHexToken},
		{"not hex", []any{"0xZZ"}, ErrInvalidHexToken},
		{"empty digits", []any{"0x"}, ErrInvalidHexToken},
		{"non string element", []any{"0x01", 2}, ErrInvalidHexToken},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.in, 0)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"0x41", "0xFF", "0x00"}, Tokens([]byte{0x41, 0xFF, 0x00}))

	data, err := Decode(toAny(Tokens([]byte{0xDE, 0xAD})), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDE, 0xAD}, data)
}

func toAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
