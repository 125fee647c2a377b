package binpack

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Cursor reads primitives from a byte slice, advancing as it goes.
type Cursor struct {
	data  []byte
	pos   int
	order binary.ByteOrder
}

// NewCursor creates a cursor at the start of data.
func NewCursor(data []byte, opts ...Option) *Cursor {
	o := applyOptions(opts)
	return &Cursor{data: data, order: o.order}
}

// Pos returns the current offset.
func (c *Cursor) Pos() int { return c.pos }

// Len returns the total length of the underlying data.
func (c *Cursor) Len() int { return len(c.data) }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.data) - c.pos }

// EOF reports whether every byte has been read.
func (c *Cursor) EOF() bool { return c.pos >= len(c.data) }

// ByteOrder returns the cursor's byte order.
func (c *Cursor) ByteOrder() binary.ByteOrder { return c.order }

// Bytes reads n raw bytes. The result aliases the underlying data.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if n < 0 || n > c.Remaining() {
		return nil, &ShortReadError{Offset: c.pos, Need: n, Have: c.Remaining()}
	}
	p := c.data[c.pos : c.pos+n]
	c.pos += n
	return p, nil
}

// Skip advances past n bytes.
func (c *Cursor) Skip(n int) error {
	_, err := c.Bytes(n)
	return err
}

// Int32 reads a 4 byte signed integer.
func (c *Cursor) Int32() (int32, error) {
	p, err := c.Bytes(4)
	if err != nil {
		return 0, err
	}
	return int32(c.order.Uint32(p)), nil
}

// Short reads a 2 byte signed integer.
func (c *Cursor) Short() (int16, error) {
	p, err := c.Bytes(2)
	if err != nil {
		return 0, err
	}
	return int16(c.order.Uint16(p)), nil
}

// Uint16 reads a 2 byte unsigned integer.
func (c *Cursor) Uint16() (uint16, error) {
	p, err := c.Bytes(2)
	if err != nil {
		return 0, err
	}
	return c.order.Uint16(p), nil
}

// Byte reads one unsigned byte.
func (c *Cursor) Byte() (uint8, error) {
	p, err := c.Bytes(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// Bool reads one byte; any non-zero value is true.
func (c *Cursor) Bool() (bool, error) {
	v, err := c.Byte()
	return v != 0, err
}

// Float32 reads an IEEE 754 single.
func (c *Cursor) Float32() (float32, error) {
	p, err := c.Bytes(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(c.order.Uint32(p)), nil
}

// Float64 reads an IEEE 754 double.
func (c *Cursor) Float64() (float64, error) {
	p, err := c.Bytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(c.order.Uint64(p)), nil
}

// String reads a length prefixed string.
func (c *Cursor) String() (string, error) {
	start := c.pos
	n, err := c.Int32()
	if err != nil {
		return "", err
	}
	p, err := c.Bytes(int(n))
	if err != nil {
		c.pos = start
		return "", err
	}
	return DecodeString(p), nil
}

// StaticString reads exactly maxLen bytes and decodes them up to the first
// zero byte.
func (c *Cursor) StaticString(maxLen int) (string, error) {
	if maxLen <= 0 {
		return "", ErrNoMaxLength
	}
	p, err := c.Bytes(maxLen)
	if err != nil {
		return "", err
	}
	return DecodeStatic(p), nil
}

// DecodeStatic decodes a zero padded static string field.
func DecodeStatic(p []byte) string {
	if i := bytes.IndexByte(p, 0); i >= 0 {
		p = p[:i]
	}
	return DecodeString(p)
}
