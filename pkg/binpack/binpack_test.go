package binpack

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInt32_RoundTrip(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 3, -4, math.MaxInt32, math.MinInt32} {
		buf := NewBuffer()
		buf.PutInt32(v)
		require.Equal(t, 4, buf.Len())

		got, err := NewCursor(buf.Bytes()).Int32()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestPrimitives_RoundTrip(t *testing.T) {
	buf := NewBuffer()
	shorts := []int16{0, -1, math.MaxInt16, math.MinInt16}
	bytesIn := []uint8{0, 1, math.MaxUint8}
	floats := []float32{0, -1, math.MaxFloat32, math.SmallestNonzeroFloat32, -math.MaxFloat32}
	doubles := []float64{0, -1, math.MaxFloat64, math.SmallestNonzeroFloat64, math.Inf(-1)}

	for _, v := range shorts {
		buf.PutShort(v)
	}
	for _, v := range bytesIn {
		buf.PutByte(v)
	}
	buf.PutBool(true)
	buf.PutBool(false)
	for _, v := range floats {
		buf.PutFloat32(v)
	}
	for _, v := range doubles {
		buf.PutFloat64(v)
	}
	assert.Equal(t, len(shorts)*2+len(bytesIn)+2+len(floats)*4+len(doubles)*8, buf.Len())

	c := NewCursor(buf.Bytes())
	for _, want := range shorts {
		got, err := c.Short()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for _, want := range bytesIn {
		got, err := c.Byte()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	b, err := c.Bool()
	require.NoError(t, err)
	assert.True(t, b)
	b, err = c.Bool()
	require.NoError(t, err)
	assert.False(t, b)
	for _, want := range floats {
		got, err := c.Float32()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for _, want := range doubles {
		got, err := c.Float64()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.True(t, c.EOF())
}

func TestPoint_WireBytes(t *testing.T) {
	buf := NewBuffer()
	buf.PutInt32(3)
	buf.PutInt32(-4)
	assert.Equal(t, []byte{0x03, 0x00, 0x00, 0x00, 0xFC, 0xFF, 0xFF, 0xFF}, buf.Bytes())
}

func TestByteOrder(t *testing.T) {
	buf := NewBuffer(WithByteOrder(binary.BigEndian))
	buf.PutInt32(1)
	buf.PutShort(-2)
	assert.Equal(t, []byte{0, 0, 0, 1, 0xFF, 0xFE}, buf.Bytes())

	c := NewCursor(buf.Bytes(), WithByteOrder(binary.BigEndian))
	v, err := c.Int32()
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)
}

func TestEncodeString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []byte
	}{
		{"ascii", "ab", []byte{0x61, 0x62}},
		{"two byte unit", "a≠b", []byte{0x61, 0xE0, 0x44, 0x62}},
		{"three byte unit", "中", []byte{0xAD, 0x9C, 0x01}},
		{"surrogate pair", "\U0001F600", []byte{0xBD, 0xB0, 0x03, 0x80, 0xBC, 0x03}},
		{"nul dropped", "a\x00b", []byte{0x61, 0x62}},
		{"empty", "", []byte{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EncodeString(tt.in))
		})
	}
}

func TestString_RoundTrip(t *testing.T) {
	for _, s := range []string{"", "a≠b", "hello world", "中文", "\U0001F600 smile", "ÿĀ"} {
		buf := NewBuffer()
		buf.PutString(s)

		got, err := NewCursor(buf.Bytes()).String()
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestString_LengthPrefix(t *testing.T) {
	buf := NewBuffer()
	buf.PutString("a≠b")
	assert.Equal(t, []byte{4, 0, 0, 0, 0x61, 0xE0, 0x44, 0x62}, buf.Bytes())
}

func TestStaticString_Truncation(t *testing.T) {
	const n = 4
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"shorter", "abc", "abc"},
		{"exact", "abcd", "abcd"},
		{"longer", "abcde", "abcd"},
		{"multi-byte unit not split", "abc≠", "abc"},
		{"multi-byte unit fits", "ab≠", "ab≠"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewBuffer()
			require.NoError(t, buf.PutStaticString(tt.in, n))
			assert.Equal(t, n, buf.Len(), "static strings always occupy their full width")

			got, err := NewCursor(buf.Bytes()).StaticString(n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStaticString_ZeroPadding(t *testing.T) {
	buf := NewBuffer()
	require.NoError(t, buf.PutStaticString("a≠b", 2))
	assert.Equal(t, []byte{0x61, 0x00}, buf.Bytes())
}

func TestStaticString_NoMaxLength(t *testing.T) {
	buf := NewBuffer()
	assert.ErrorIs(t, buf.PutStaticString("x", 0), ErrNoMaxLength)

	_, err := NewCursor([]byte{1, 2}).StaticString(0)
	assert.ErrorIs(t, err, ErrNoMaxLength)
}

func TestTruncateEncoded(t *testing.T) {
	enc := EncodeString("中中") // two 3-byte units
	assert.Len(t, TruncateEncoded(enc, 2), 0)
	assert.Len(t, TruncateEncoded(enc, 3), 3)
	assert.Len(t, TruncateEncoded(enc, 5), 3)
	assert.Len(t, TruncateEncoded(enc, 6), 6)
	assert.Len(t, TruncateEncoded(enc, 10), 6)
}

func TestCursor_ShortRead(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3})
	_, err := c.Int32()

	var sre *ShortReadError
	require.ErrorAs(t, err, &sre)
	assert.Equal(t, 0, sre.Offset)
	assert.Equal(t, 4, sre.Need)
	assert.Equal(t, 3, sre.Have)
	assert.Equal(t, 0, c.Pos(), "failed reads do not advance")

	// A string whose declared length overruns the buffer.
	c = NewCursor([]byte{10, 0, 0, 0, 'a'})
	_, err = c.String()
	require.ErrorAs(t, err, &sre)
	assert.Equal(t, 0, c.Pos())
}
