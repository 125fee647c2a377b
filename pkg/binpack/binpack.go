// Package binpack implements the primitive wire codec: fixed width
// integers and floats, length prefixed strings and fixed width static
// strings.
//
// Strings use a variable length encoding of UTF-16 code units. Each unit
// is emitted seven bits at a time, low bits first, with 0x80 set on every
// byte of the unit except the last. This is not UTF-8.
package binpack

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// DefaultByteOrder is the byte order used unless configured otherwise.
var DefaultByteOrder binary.ByteOrder = binary.LittleEndian

// ErrNoMaxLength is returned when a static string has no declared width.
var ErrNoMaxLength = errors.New("binpack: static string has no max length")

// ShortReadError reports a read past the end of the buffer.
type ShortReadError struct {
	Offset int // where the read started
	Need   int // bytes requested
	Have   int // bytes remaining
}

func (e *ShortReadError) Error() string {
	return fmt.Sprintf("binpack: short read at offset %d: need %d bytes, have %d", e.Offset, e.Need, e.Have)
}

// Option configures a Buffer or Cursor.
type Option func(*options)

type options struct {
	order binary.ByteOrder
}

// WithByteOrder overrides the byte order.
func WithByteOrder(order binary.ByteOrder) Option {
	return func(o *options) {
		if order != nil {
			o.order = order
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{order: DefaultByteOrder}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
