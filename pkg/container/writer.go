package container

import (
	"encoding/base64"
	"fmt"
	"io"

	"github.com/leapstack-labs/structkit/pkg/binpack"
	"github.com/leapstack-labs/structkit/pkg/nstruct"
)

// Writer encodes files for one registry.
type Writer struct {
	reg  *nstruct.Registry
	opts options
}

// NewWriter creates a writer. The header always carries reg's current
// schema.
func NewWriter(reg *nstruct.Registry, opts ...Option) *Writer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Writer{reg: reg, opts: o}
}

// Encode returns the complete file for blocks.
func (w *Writer) Encode(blocks []Block) ([]byte, error) {
	if err := w.opts.validate(); err != nil {
		return nil, err
	}
	buf := binpack.NewBuffer(binpack.WithByteOrder(w.reg.ByteOrder()))
	w.writeHeader(buf)

	payload := binpack.NewBuffer(binpack.WithByteOrder(w.reg.ByteOrder()))
	for i, b := range blocks {
		if err := w.writeBlock(buf, payload, b); err != nil {
			return nil, fmt.Errorf("block %d (%s): %w", i, b.Type, err)
		}
	}
	w.reg.Logger().Debug("encoded file", "blocks", len(blocks), "bytes", buf.Len())
	return buf.Bytes(), nil
}

// Write encodes blocks to dst.
func (w *Writer) Write(dst io.Writer, blocks []Block) error {
	data, err := w.Encode(blocks)
	if err != nil {
		return err
	}
	_, err = dst.Write(data)
	return err
}

// WriteBase64 is Write with the file wrapped in standard Base64.
func (w *Writer) WriteBase64(dst io.Writer, blocks []Block) error {
	data, err := w.Encode(blocks)
	if err != nil {
		return err
	}
	enc := base64.NewEncoder(base64.StdEncoding, dst)
	if _, err := enc.Write(data); err != nil {
		return err
	}
	return enc.Close()
}

func (w *Writer) writeHeader(buf *binpack.Buffer) {
	buf.PutBytes([]byte(w.opts.magic))
	buf.PutUint16(w.opts.version.Major)
	buf.PutByte(w.opts.version.Minor)
	buf.PutByte(w.opts.version.Micro)
	buf.PutString(w.reg.Schema())
}

func (w *Writer) writeBlock(buf, payload *binpack.Buffer, b Block) error {
	if err := checkTag("block type", b.Type); err != nil {
		return err
	}
	if !w.opts.allowed(b.Type) {
		return fmt.Errorf("container: block type %q not allowed", b.Type)
	}

	payload.Reset()
	var sel int32
	switch p := b.Payload.(type) {
	case RawPayload:
		sel = RawSelector
		payload.PutBytes(p.Data)
	case *RawPayload:
		sel = RawSelector
		payload.PutBytes(p.Data)
	case StructPayload:
		id, err := w.encodeStruct(payload, p)
		if err != nil {
			return err
		}
		sel = id
	case *StructPayload:
		id, err := w.encodeStruct(payload, *p)
		if err != nil {
			return err
		}
		sel = id
	default:
		return fmt.Errorf("container: unsupported payload %T", b.Payload)
	}

	buf.PutBytes([]byte(b.Type))
	buf.PutInt32(int32(payload.Len()))
	buf.PutInt32(sel)
	buf.PutBytes(payload.Bytes())
	return nil
}

func (w *Writer) encodeStruct(payload *binpack.Buffer, p StructPayload) (int32, error) {
	if p.Object == nil {
		if p.ID < 0 {
			return 0, fmt.Errorf("container: invalid struct id %d", p.ID)
		}
		payload.PutBytes(p.Bytes)
		return p.ID, nil
	}
	name, ok := w.reg.NameOf(p.Object)
	if !ok {
		return 0, &nstruct.NotStructableError{Type: fmt.Sprintf("%T", p.Object)}
	}
	def, _ := w.reg.Struct(name)
	if err := w.reg.WriteObject(payload, p.Object); err != nil {
		return 0, err
	}
	return def.ID, nil
}
