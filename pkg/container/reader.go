package container

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/leapstack-labs/structkit/pkg/binpack"
	"github.com/leapstack-labs/structkit/pkg/nstruct"
)

// Reader decodes files against a live registry.
type Reader struct {
	reg  *nstruct.Registry
	opts options
}

// NewReader creates a reader. Structs in a file's schema are matched to
// reg's classes by name.
func NewReader(reg *nstruct.Registry, opts ...Option) *Reader {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Reader{reg: reg, opts: o}
}

// Read decodes a file from src.
func (r *Reader) Read(src io.Reader) (*File, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return r.Decode(data)
}

// ReadBase64 decodes a file wrapped in standard Base64.
func (r *Reader) ReadBase64(src io.Reader) (*File, error) {
	data, err := io.ReadAll(base64.NewDecoder(base64.StdEncoding, src))
	if err != nil {
		return nil, fmt.Errorf("read base64 file: %w", err)
	}
	return r.Decode(data)
}

// Decode parses a complete file.
func (r *Reader) Decode(data []byte) (*File, error) {
	if err := r.opts.validate(); err != nil {
		return nil, err
	}
	cur := binpack.NewCursor(data, binpack.WithByteOrder(r.reg.ByteOrder()))

	hdr, err := r.readHeader(cur)
	if err != nil {
		return nil, err
	}
	view, err := r.reg.ParseEmbeddedSchema(hdr.Schema)
	if err != nil {
		return nil, &FileError{Offset: 0, Reason: "bad schema", Err: err}
	}

	f := &File{Header: hdr, Registry: view}
	for !cur.EOF() {
		b, err := r.readBlock(cur, view)
		if err != nil {
			return nil, err
		}
		f.Blocks = append(f.Blocks, b)
	}
	r.reg.Logger().Debug("decoded file", "version", hdr.Version.String(), "blocks", len(f.Blocks))
	return f, nil
}

func (r *Reader) readHeader(cur *binpack.Cursor) (Header, error) {
	var hdr Header
	magic, err := cur.Bytes(tagLen)
	if err != nil {
		return hdr, &FileError{Offset: 0, Reason: "truncated header", Err: err}
	}
	if string(magic) != r.opts.magic {
		return hdr, &FileError{Offset: 0, Reason: fmt.Sprintf("bad magic %q, want %q", magic, r.opts.magic)}
	}
	hdr.Magic = string(magic)

	if hdr.Version.Major, err = cur.Uint16(); err != nil {
		return hdr, &FileError{Offset: cur.Pos(), Reason: "truncated header", Err: err}
	}
	if hdr.Version.Minor, err = cur.Byte(); err != nil {
		return hdr, &FileError{Offset: cur.Pos(), Reason: "truncated header", Err: err}
	}
	if hdr.Version.Micro, err = cur.Byte(); err != nil {
		return hdr, &FileError{Offset: cur.Pos(), Reason: "truncated header", Err: err}
	}
	offset := cur.Pos()
	if hdr.Schema, err = cur.String(); err != nil {
		return hdr, &FileError{Offset: offset, Reason: "truncated schema", Err: err}
	}
	return hdr, nil
}

func (r *Reader) readBlock(cur *binpack.Cursor, view *nstruct.Registry) (Block, error) {
	start := cur.Pos()
	tag, err := cur.Bytes(tagLen)
	if err != nil {
		return Block{}, &FileError{Offset: start, Reason: "truncated block", Err: err}
	}
	b := Block{Type: string(tag)}
	if !r.opts.allowed(b.Type) {
		return Block{}, &FileError{Offset: start, Reason: fmt.Sprintf("block type %q not allowed", b.Type)}
	}

	length, err := cur.Int32()
	if err != nil {
		return Block{}, &FileError{Offset: start, Reason: "truncated block", Err: err}
	}
	sel, err := cur.Int32()
	if err != nil {
		return Block{}, &FileError{Offset: start, Reason: "truncated block", Err: err}
	}
	if length < 0 || int(length) > cur.Remaining() {
		return Block{}, &FileError{Offset: start, Reason: fmt.Sprintf("bad payload length %d", length)}
	}
	data, err := cur.Bytes(int(length))
	if err != nil {
		return Block{}, &FileError{Offset: start, Reason: "truncated payload", Err: err}
	}
	data = bytes.Clone(data)

	switch {
	case sel == RawSelector:
		b.Payload = RawPayload{Data: data}
		return b, nil
	case sel < 0:
		return Block{}, &FileError{Offset: start, Reason: fmt.Sprintf("bad selector %d", sel)}
	}

	if _, ok := view.StructByID(sel); !ok {
		return Block{}, &FileError{Offset: start, Reason: "bad selector",
			Err: &nstruct.UnknownStructIDError{ID: sel, Offset: start + tagLen + 4}}
	}
	pc := binpack.NewCursor(data, binpack.WithByteOrder(view.ByteOrder()))
	obj, err := view.ReadObject(pc, sel)
	if err != nil {
		return Block{}, &FileError{Offset: start, Reason: fmt.Sprintf("block %s", b.Type), Err: err}
	}
	if !pc.EOF() {
		r.reg.Logger().Warn("trailing bytes in block payload",
			"block", b.Type, "id", sel, "bytes", pc.Remaining())
	}
	b.Payload = StructPayload{ID: sel, Object: obj, Bytes: data}
	return b, nil
}
