// Package container reads and writes STRUCT files: a header carrying the
// writer's schema followed by a stream of typed, length-prefixed blocks.
//
// Layout, in the registry's byte order:
//
//	magic         4 bytes ASCII
//	major         uint16
//	minor         uint8
//	micro         uint8
//	schema        int32 length + encoded schema text
//	blocks until end of input:
//	  type        4 bytes ASCII
//	  length      int32
//	  selector    int32 (struct id, or RawSelector)
//	  payload     length bytes
//
// There is no block count. The end of input terminates the stream.
package container

import (
	"fmt"
	"slices"

	"github.com/leapstack-labs/structkit/pkg/nstruct"
)

const (
	// DefaultMagic opens every file unless WithMagic says otherwise.
	DefaultMagic = "STRT"

	// DefaultExt is the conventional file extension.
	DefaultExt = ".bin"

	// RawSelector marks a block whose payload is raw bytes, not an object.
	RawSelector int32 = -2

	tagLen = 4
)

// Version is the file format version written into the header.
type Version struct {
	Major uint16
	Minor uint8
	Micro uint8
}

// DefaultVersion is written unless WithVersion says otherwise.
var DefaultVersion = Version{Major: 1}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Micro)
}

// Header is the fixed part of a file.
type Header struct {
	Magic   string
	Version Version
	Schema  string
}

// Payload is the body of a block: a StructPayload or a RawPayload.
type Payload interface {
	selector() int32
}

// StructPayload is an object coded with the file's schema.
//
// When writing, Object is encoded and ID is taken from its struct; with a
// nil Object, Bytes is written as is under ID. When reading, both Object
// and Bytes are set.
type StructPayload struct {
	ID     int32
	Object any
	Bytes  []byte
}

func (p StructPayload) selector() int32 { return p.ID }

// RawPayload is an uninterpreted payload, such as embedded JSON.
type RawPayload struct {
	Data []byte
}

// NewRawString returns a raw payload holding s.
func NewRawString(s string) RawPayload {
	return RawPayload{Data: []byte(s)}
}

// Text returns the payload as a string.
func (p RawPayload) Text() string { return string(p.Data) }

func (RawPayload) selector() int32 { return RawSelector }

// Block is one typed unit of the block stream.
type Block struct {
	Type    string
	Payload Payload
}

// File is a decoded file. Registry is the read view built from the
// header's schema; use it to re-encode the blocks.
type File struct {
	Header   Header
	Blocks   []Block
	Registry *nstruct.Registry
}

// BlocksOfType returns the blocks tagged typ, in file order.
func (f *File) BlocksOfType(typ string) []Block {
	var out []Block
	for _, b := range f.Blocks {
		if b.Type == typ {
			out = append(out, b)
		}
	}
	return out
}

// FileError reports malformed file content.
type FileError struct {
	Offset int
	Reason string
	Err    error
}

func (e *FileError) Error() string {
	msg := fmt.Sprintf("container: %s at offset %d", e.Reason, e.Offset)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FileError) Unwrap() error { return e.Err }

// Option configures a Writer or Reader.
type Option func(*options)

type options struct {
	magic      string
	version    Version
	blockTypes []string
}

func defaultOptions() options {
	return options{magic: DefaultMagic, version: DefaultVersion}
}

// WithMagic replaces the four byte file signature.
func WithMagic(magic string) Option {
	return func(o *options) { o.magic = magic }
}

// WithVersion sets the version a Writer puts in the header.
func WithVersion(v Version) Option {
	return func(o *options) { o.version = v }
}

// WithBlockTypes restricts the block types that may be written or read.
func WithBlockTypes(types ...string) Option {
	return func(o *options) { o.blockTypes = types }
}

func (o *options) validate() error {
	if err := checkTag("magic", o.magic); err != nil {
		return err
	}
	for _, t := range o.blockTypes {
		if err := checkTag("block type", t); err != nil {
			return err
		}
	}
	return nil
}

func (o *options) allowed(typ string) bool {
	return len(o.blockTypes) == 0 || slices.Contains(o.blockTypes, typ)
}

// checkTag requires exactly four ASCII bytes.
func checkTag(what, tag string) error {
	if len(tag) != tagLen {
		return fmt.Errorf("container: %s %q must be %d bytes", what, tag, tagLen)
	}
	for i := 0; i < len(tag); i++ {
		if tag[i] >= 0x80 {
			return fmt.Errorf("container: %s %q must be ASCII", what, tag)
		}
	}
	return nil
}
