package container

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/structkit/internal/testutil"
	"github.com/leapstack-labs/structkit/pkg/binpack"
	"github.com/leapstack-labs/structkit/pkg/nstruct"
)

type Point struct {
	X, Y int32
}

type Meta struct {
	Name  string
	Count int32
}

var (
	pointClass = &nstruct.Class{
		Schema: "Point {\n  x : int;\n  y : int;\n}",
		New:    func() any { return &Point{} },
	}
	metaClass = &nstruct.Class{
		Schema: "Meta {\n  name : string;\n  count : int | obj.count + 1;\n}",
		New:    func() any { return &Meta{} },
	}
)

func newRegistry(t *testing.T, opts ...nstruct.Option) *nstruct.Registry {
	t.Helper()
	reg := nstruct.New(append([]nstruct.Option{nstruct.WithLogger(testutil.NewTestLogger(t))}, opts...)...)
	require.NoError(t, reg.Register(pointClass))
	return reg
}

func TestHeader_EmptyRegistry(t *testing.T) {
	data, err := NewWriter(nstruct.New()).Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{'S', 'T', 'R', 'T', 1, 0, 0, 0, 0, 0, 0, 0}, data)

	f, err := NewReader(nstruct.New()).Decode(data)
	require.NoError(t, err)
	assert.Equal(t, Header{Magic: DefaultMagic, Version: Version{Major: 1}}, f.Header)
	assert.Empty(t, f.Blocks)
}

func TestFile_RoundTrip(t *testing.T) {
	reg := newRegistry(t)
	blocks := []Block{
		{Type: "META", Payload: NewRawString(`{"author":"me"}`)},
		{Type: "PNTS", Payload: StructPayload{Object: &Point{X: 3, Y: -4}}},
		{Type: "PNTS", Payload: &StructPayload{Object: &Point{X: 5, Y: 6}}},
		{Type: "NOTE", Payload: RawPayload{}},
	}

	var buf bytes.Buffer
	w := NewWriter(reg, WithVersion(Version{Major: 2, Minor: 1, Micro: 7}))
	require.NoError(t, w.Write(&buf, blocks))

	f, err := NewReader(reg).Read(&buf)
	require.NoError(t, err)

	assert.Equal(t, Version{Major: 2, Minor: 1, Micro: 7}, f.Header.Version)
	assert.Equal(t, reg.Schema(), f.Header.Schema)
	require.Len(t, f.Blocks, 4)

	assert.Equal(t, "META", f.Blocks[0].Type)
	assert.Equal(t, `{"author":"me"}`, f.Blocks[0].Payload.(RawPayload).Text())

	pt := f.Blocks[1].Payload.(StructPayload)
	assert.Equal(t, int32(1), pt.ID)
	assert.Equal(t, &Point{X: 3, Y: -4}, pt.Object)
	assert.Equal(t, []byte{3, 0, 0, 0, 0xFC, 0xFF, 0xFF, 0xFF}, pt.Bytes)
	assert.Equal(t, &Point{X: 5, Y: 6}, f.Blocks[2].Payload.(StructPayload).Object)
	assert.Empty(t, f.Blocks[3].Payload.(RawPayload).Data)

	assert.Len(t, f.BlocksOfType("PNTS"), 2)
}

func TestFile_BlockLayout(t *testing.T) {
	reg := nstruct.New()
	data, err := NewWriter(reg).Encode([]Block{{Type: "JSON", Payload: NewRawString("{}")}})
	require.NoError(t, err)

	block := data[12:]
	assert.Equal(t, "JSON", string(block[:4]))
	assert.Equal(t, int32(2), int32(binary.LittleEndian.Uint32(block[4:8])))
	assert.Equal(t, RawSelector, int32(binary.LittleEndian.Uint32(block[8:12])))
	assert.Equal(t, "{}", string(block[12:]))
}

func TestFile_BigEndian(t *testing.T) {
	reg := newRegistry(t, nstruct.WithByteOrder(binary.BigEndian))

	data, err := NewWriter(reg).Encode([]Block{{Type: "PNTS", Payload: StructPayload{Object: &Point{X: 1, Y: 2}}}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 0, 0}, data[4:8])

	f, err := NewReader(reg).Decode(data)
	require.NoError(t, err)
	assert.Equal(t, &Point{X: 1, Y: 2}, f.Blocks[0].Payload.(StructPayload).Object)
}

func TestFile_Base64(t *testing.T) {
	reg := newRegistry(t)
	blocks := []Block{{Type: "PNTS", Payload: StructPayload{Object: &Point{X: 1, Y: 2}}}}

	var b64 strings.Builder
	require.NoError(t, NewWriter(reg).WriteBase64(&b64, blocks))

	raw, err := NewWriter(reg).Encode(blocks)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(b64.String(), "U1RSVA"))

	f, err := NewReader(reg).ReadBase64(strings.NewReader(b64.String()))
	require.NoError(t, err)
	assert.Equal(t, raw[len(raw)-8:], f.Blocks[0].Payload.(StructPayload).Bytes)
}

func TestFile_ForwardCompatibility(t *testing.T) {
	writer := newRegistry(t)
	require.NoError(t, writer.Register(metaClass))

	orig, err := NewWriter(writer).Encode([]Block{
		{Type: "META", Payload: StructPayload{Object: &Meta{Name: "m", Count: 1}}},
		{Type: "PNTS", Payload: StructPayload{Object: &Point{X: 7, Y: 8}}},
	})
	require.NoError(t, err)

	logger, rec := testutil.NewRecordingLogger(t)
	reader := nstruct.New(nstruct.WithLogger(logger))
	require.NoError(t, reader.Register(pointClass))

	f, err := NewReader(reader).Decode(orig)
	require.NoError(t, err)
	assert.True(t, rec.Contains(slog.LevelWarn, "unknown struct in embedded schema, reading as record"))

	meta := f.Blocks[0].Payload.(StructPayload)
	record, ok := meta.Object.(*nstruct.Record)
	require.True(t, ok)
	count, _ := record.Get("count")
	assert.Equal(t, int32(2), count)
	assert.Equal(t, &Point{X: 7, Y: 8}, f.Blocks[1].Payload.(StructPayload).Object)

	again, err := NewWriter(f.Registry).Encode(f.Blocks)
	require.NoError(t, err)
	assert.Equal(t, orig, again)
}

func TestFile_PassThroughBytes(t *testing.T) {
	reg := newRegistry(t)
	data, err := NewWriter(reg).Encode([]Block{
		{Type: "PNTS", Payload: StructPayload{ID: 1, Bytes: []byte{9, 0, 0, 0, 9, 0, 0, 0}}},
	})
	require.NoError(t, err)

	f, err := NewReader(reg).Decode(data)
	require.NoError(t, err)
	assert.Equal(t, &Point{X: 9, Y: 9}, f.Blocks[0].Payload.(StructPayload).Object)
}

func TestFile_TrailingPayloadBytes(t *testing.T) {
	logger, rec := testutil.NewRecordingLogger(t)
	reg := nstruct.New(nstruct.WithLogger(logger))
	require.NoError(t, reg.Register(pointClass))

	data, err := NewWriter(reg).Encode([]Block{
		{Type: "PNTS", Payload: StructPayload{ID: 1, Bytes: make([]byte, 10)}},
	})
	require.NoError(t, err)

	f, err := NewReader(reg).Decode(data)
	require.NoError(t, err)
	assert.Len(t, f.Blocks[0].Payload.(StructPayload).Bytes, 10)
	assert.True(t, rec.Contains(slog.LevelWarn, "trailing bytes in block payload"))
}

func TestReader_Errors(t *testing.T) {
	reg := newRegistry(t)
	good, err := NewWriter(reg).Encode([]Block{{Type: "PNTS", Payload: StructPayload{Object: &Point{}}}})
	require.NoError(t, err)
	headerLen := len(good) - 20

	withSelector := func(sel int32) []byte {
		out := bytes.Clone(good)
		binary.LittleEndian.PutUint32(out[headerLen+8:], uint32(sel))
		return out
	}
	withLength := func(n int32) []byte {
		out := bytes.Clone(good)
		binary.LittleEndian.PutUint32(out[headerLen+4:], uint32(n))
		return out
	}

	tests := []struct {
		name   string
		data   []byte
		opts   []Option
		errMsg string
	}{
		{"empty", nil, nil, "truncated header"},
		{"bad magic", append([]byte("NOPE"), good[4:]...), nil, `bad magic "NOPE"`},
		{"custom magic mismatch", good, []Option{WithMagic("ABCD")}, "bad magic"},
		{"truncated schema", good[:10], nil, "truncated schema"},
		{"truncated block", good[:headerLen+6], nil, "truncated block"},
		{"negative length", withLength(-1), nil, "bad payload length -1"},
		{"overlong length", withLength(100), nil, "bad payload length 100"},
		{"bad selector", withSelector(-5), nil, "bad selector -5"},
		{"unknown struct id", withSelector(42), nil, "unknown struct id 42"},
		{"disallowed type", good, []Option{WithBlockTypes("META")}, `block type "PNTS" not allowed`},
		{"invalid magic option", good, []Option{WithMagic("TOOLONG")}, "must be 4 bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(reg, tt.opts...).Decode(tt.data)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	_, err = NewReader(reg).Decode(withLength(-1))
	var fe *FileError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, headerLen, fe.Offset)
}

func TestReader_PayloadDecodeError(t *testing.T) {
	reg := newRegistry(t)
	data, err := NewWriter(reg).Encode([]Block{{Type: "PNTS", Payload: StructPayload{ID: 1, Bytes: []byte{1, 2}}}})
	require.NoError(t, err)

	_, err = NewReader(reg).Decode(data)
	var sre *binpack.ShortReadError
	assert.ErrorAs(t, err, &sre)
}

func TestWriter_Errors(t *testing.T) {
	reg := newRegistry(t)
	tests := []struct {
		name   string
		block  Block
		opts   []Option
		errMsg string
	}{
		{"short type", Block{Type: "PT", Payload: RawPayload{}}, nil, "must be 4 bytes"},
		{"non ascii type", Block{Type: "P\xffTS", Payload: RawPayload{}}, nil, "must be"},
		{"unregistered object", Block{Type: "PNTS", Payload: StructPayload{Object: &Meta{}}}, nil, "non-STRUCTable"},
		{"nil payload", Block{Type: "PNTS"}, nil, "unsupported payload"},
		{"negative id", Block{Type: "PNTS", Payload: StructPayload{ID: -2}}, nil, "invalid struct id"},
		{"disallowed", Block{Type: "PNTS", Payload: RawPayload{}}, []Option{WithBlockTypes("META")}, "not allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWriter(reg, tt.opts...).Encode([]Block{tt.block})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
