// Package codec implements the binary framing shared by every tree family's
// save/load: the magic tag, version, and the length-prefixed payload blob.
// Per-family header fields (capacity, root region) and the pre-order node
// body are written by each family's own package, which calls back into this
// one for the common primitives.
//
// All integers are little-endian except the payload length prefix, which is
// big-endian per the persisted format; this mirrors the format exactly as
// specified rather than delegating to a general-purpose serialisation
// library, since the wire layout itself (not just the data) is the
// contract.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/habedi/spart-go/pkg/spart/payload"
	"github.com/habedi/spart-go/pkg/spart/spartutil"
)

// Version is the current binary format version.
const Version uint16 = 1

// NodeTag distinguishes a leaf node from an internal node in the pre-order
// tree body.
type NodeTag uint8

const (
	TagLeaf     NodeTag = 0
	TagInternal NodeTag = 1
)

// WriteHeader writes the magic tag and version shared by every family.
func WriteHeader(w io.Writer, magic string) error {
	if len(magic) != 4 {
		panic("codec: magic tag must be 4 bytes")
	}
	if _, err := io.WriteString(w, magic); err != nil {
		return spartutil.NewIOError(err)
	}
	if err := binary.Write(w, binary.LittleEndian, Version); err != nil {
		return spartutil.NewIOError(err)
	}
	return nil
}

// ReadHeader reads and validates the magic tag and version, returning a
// FormatError if either is wrong.
func ReadHeader(r io.Reader, wantMagic string) error {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return spartutil.NewFormatError("truncated magic tag: %s", err)
	}
	if string(buf) != wantMagic {
		return spartutil.NewFormatError("wrong magic tag: got %q want %q", buf, wantMagic)
	}
	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return spartutil.NewFormatError("truncated version: %s", err)
	}
	if version != Version {
		return spartutil.NewFormatError("unknown version %d", version)
	}
	return nil
}

// WriteUint32 writes a little-endian uint32.
func WriteUint32(w io.Writer, v uint32) error {
	return binary.Write(w, binary.LittleEndian, v)
}

// ReadUint32 reads a little-endian uint32.
func ReadUint32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

// WriteFloat64 writes a little-endian IEEE-754 float64.
func WriteFloat64(w io.Writer, v float64) error {
	return binary.Write(w, binary.LittleEndian, v)
}

// ReadFloat64 reads a little-endian IEEE-754 float64.
func ReadFloat64(r io.Reader) (float64, error) {
	var v float64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

// WriteTag writes a single node tag byte.
func WriteTag(w io.Writer, tag NodeTag) error {
	return binary.Write(w, binary.LittleEndian, uint8(tag))
}

// ReadTag reads a single node tag byte.
func ReadTag(r io.Reader) (NodeTag, error) {
	var b uint8
	if err := binary.Read(r, binary.LittleEndian, &b); err != nil {
		return 0, err
	}
	if b != uint8(TagLeaf) && b != uint8(TagInternal) {
		return 0, fmt.Errorf("unknown node tag %d", b)
	}
	return NodeTag(b), nil
}

// WritePayload writes v as a length-prefixed opaque blob: a 4-byte
// big-endian length followed by v's own self-describing encoding.
func WritePayload(w io.Writer, v payload.Value) error {
	var buf countingBuffer
	if err := v.Encode(&buf); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(buf.data))); err != nil {
		return err
	}
	_, err := w.Write(buf.data)
	return err
}

// ReadPayload reads a value previously written by WritePayload.
func ReadPayload(r io.Reader) (payload.Value, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return payload.Value{}, err
	}
	lr := io.LimitReader(r, int64(n))
	return payload.Decode(lr)
}

// countingBuffer is a minimal io.Writer sink used to size a payload's
// encoding before framing it with its length prefix.
type countingBuffer struct {
	data []byte
}

func (b *countingBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}
