package binpack

import (
	"encoding/binary"
	"math"
)

// Buffer is an append-only byte sink.
type Buffer struct {
	b     []byte
	order binary.ByteOrder
}

// NewBuffer creates an empty buffer.
func NewBuffer(opts ...Option) *Buffer {
	o := applyOptions(opts)
	return &Buffer{order: o.order}
}

// Bytes returns the written bytes. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte { return b.b }

// Len returns the number of bytes written.
func (b *Buffer) Len() int { return len(b.b) }

// ByteOrder returns the buffer's byte order.
func (b *Buffer) ByteOrder() binary.ByteOrder { return b.order }

// Reset empties the buffer, keeping its capacity.
func (b *Buffer) Reset() { b.b = b.b[:0] }

// Write appends p. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	b.b = append(b.b, p...)
	return len(p), nil
}

func (b *Buffer) put16(v uint16) {
	var tmp [2]byte
	b.order.PutUint16(tmp[:], v)
	b.b = append(b.b, tmp[:]...)
}

func (b *Buffer) put32(v uint32) {
	var tmp [4]byte
	b.order.PutUint32(tmp[:], v)
	b.b = append(b.b, tmp[:]...)
}

// PutBytes appends raw bytes.
func (b *Buffer) PutBytes(p []byte) { b.b = append(b.b, p...) }

// PutInt32 appends a 4 byte signed integer.
func (b *Buffer) PutInt32(v int32) {
	b.put32(uint32(v))
}

// PutShort appends a 2 byte signed integer.
func (b *Buffer) PutShort(v int16) {
	b.put16(uint16(v))
}

// PutUint16 appends a 2 byte unsigned integer.
func (b *Buffer) PutUint16(v uint16) {
	b.put16(v)
}

// PutByte appends one unsigned byte.
func (b *Buffer) PutByte(v uint8) { b.b = append(b.b, v) }

// PutBool appends one byte, 1 for true and 0 for false.
func (b *Buffer) PutBool(v bool) {
	if v {
		b.b = append(b.b, 1)
		return
	}
	b.b = append(b.b, 0)
}

// PutFloat32 appends an IEEE 754 single.
func (b *Buffer) PutFloat32(v float32) {
	b.put32(math.Float32bits(v))
}

// PutFloat64 appends an IEEE 754 double.
func (b *Buffer) PutFloat64(v float64) {
	var tmp [8]byte
	b.order.PutUint64(tmp[:], math.Float64bits(v))
	b.b = append(b.b, tmp[:]...)
}

// PutString appends an int32 byte length followed by the encoded string.
func (b *Buffer) PutString(s string) {
	enc := EncodeString(s)
	b.PutInt32(int32(len(enc)))
	b.b = append(b.b, enc...)
}

// PutStaticString appends exactly maxLen bytes: the encoded string cut at
// the last whole code unit that fits, then zero padding.
func (b *Buffer) PutStaticString(s string, maxLen int) error {
	if maxLen <= 0 {
		return ErrNoMaxLength
	}
	enc := TruncateEncoded(EncodeString(s), maxLen)
	b.b = append(b.b, enc...)
	for i := len(enc); i < maxLen; i++ {
		b.b = append(b.b, 0)
	}
	return nil
}
