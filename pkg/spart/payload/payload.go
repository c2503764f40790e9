// Package payload implements the opaque value attached to every indexed
// point. The host language of the system this library was distilled from is
// dynamically typed, so payloads can be arbitrary values; Value models that
// as a tagged sum (null, integer, floating, string, byte-blob, ordered
// sequence, and keyed mapping) per the source's design notes, rather than
// requiring a caller-supplied encode/decode/equals capability. Either choice
// preserves round-trip and equality semantics; this one keeps every tree
// family free of a generic type parameter for the payload.
package payload

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// Kind identifies which variant of Value is populated. The numeric values
// are part of the on-disk format and must not be renumbered.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindString
	KindBytes
	KindList
	KindMap
)

// Value is an opaque payload value attached to an indexed point.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    []byte
	list []Value
	mp   map[string]Value
}

// Null returns the null payload value.
func Null() Value { return Value{kind: KindNull} }

// Int returns an integer payload value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating point payload value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String returns a string payload value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Bytes returns a byte-blob payload value. b is copied.
func Bytes(b []byte) Value {
	cp := append([]byte(nil), b...)
	return Value{kind: KindBytes, b: cp}
}

// List returns an ordered-sequence payload value. vs is copied.
func List(vs []Value) Value {
	cp := append([]Value(nil), vs...)
	return Value{kind: KindList, list: cp}
}

// Map returns a keyed-mapping payload value. m is copied.
func Map(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: KindMap, mp: cp}
}

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// Int returns the integer held by v; only meaningful when Kind() == KindInt.
func (v Value) Int() int64 { return v.i }

// Float returns the float held by v; only meaningful when Kind() == KindFloat.
func (v Value) Float() float64 { return v.f }

// String returns the string held by v; only meaningful when Kind() == KindString.
func (v Value) String() string { return v.s }

// BytesValue returns the byte-blob held by v; only meaningful when Kind() == KindBytes.
func (v Value) BytesValue() []byte { return v.b }

// ListValue returns the elements held by v; only meaningful when Kind() == KindList.
func (v Value) ListValue() []Value { return v.list }

// MapValue returns the entries held by v; only meaningful when Kind() == KindMap.
func (v Value) MapValue() map[string]Value { return v.mp }

// Equal reports whether v and o are the same payload: same kind and equal
// contents, recursively for List and Map.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindBytes:
		return bytes.Equal(v.b, o.b)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.mp) != len(o.mp) {
			return false
		}
		for k, vv := range v.mp {
			ov, ok := o.mp[k]
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Encode writes v's self-describing binary encoding to w. This is the
// payload blob that the tree codec wraps with a 4-byte big-endian length
// prefix per the persisted format.
func (v Value) Encode(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, v.kind); err != nil {
		return err
	}
	switch v.kind {
	case KindNull:
		return nil
	case KindInt:
		return binary.Write(w, binary.LittleEndian, v.i)
	case KindFloat:
		return binary.Write(w, binary.LittleEndian, v.f)
	case KindString:
		return writeBytes(w, []byte(v.s))
	case KindBytes:
		return writeBytes(w, v.b)
	case KindList:
		if err := binary.Write(w, binary.LittleEndian, uint32(len(v.list))); err != nil {
			return err
		}
		for _, e := range v.list {
			if err := e.Encode(w); err != nil {
				return err
			}
		}
		return nil
	case KindMap:
		keys := make([]string, 0, len(v.mp))
		for k := range v.mp {
			keys = append(keys, k)
		}
		// Stable key order keeps the encoding of a given map deterministic,
		// which matters for round-trip tests that compare encoded bytes.
		sort.Strings(keys)
		if err := binary.Write(w, binary.LittleEndian, uint32(len(keys))); err != nil {
			return err
		}
		for _, k := range keys {
			if err := writeBytes(w, []byte(k)); err != nil {
				return err
			}
			if err := v.mp[k].Encode(w); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("payload: unknown kind %d", v.kind)
	}
}

// Decode reads a Value previously written by Encode from r.
func Decode(r io.Reader) (Value, error) {
	var kind Kind
	if err := binary.Read(r, binary.LittleEndian, &kind); err != nil {
		return Value{}, err
	}
	switch kind {
	case KindNull:
		return Null(), nil
	case KindInt:
		var i int64
		if err := binary.Read(r, binary.LittleEndian, &i); err != nil {
			return Value{}, err
		}
		return Int(i), nil
	case KindFloat:
		var f float64
		if err := binary.Read(r, binary.LittleEndian, &f); err != nil {
			return Value{}, err
		}
		return Float(f), nil
	case KindString:
		b, err := readBytes(r)
		if err != nil {
			return Value{}, err
		}
		return String(string(b)), nil
	case KindBytes:
		b, err := readBytes(r)
		if err != nil {
			return Value{}, err
		}
		return Bytes(b), nil
	case KindList:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return Value{}, err
		}
		list := make([]Value, n)
		for i := range list {
			e, err := Decode(r)
			if err != nil {
				return Value{}, err
			}
			list[i] = e
		}
		return Value{kind: KindList, list: list}, nil
	case KindMap:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return Value{}, err
		}
		mp := make(map[string]Value, n)
		for i := uint32(0); i < n; i++ {
			kb, err := readBytes(r)
			if err != nil {
				return Value{}, err
			}
			val, err := Decode(r)
			if err != nil {
				return Value{}, err
			}
			mp[string(kb)] = val
		}
		return Value{kind: KindMap, mp: mp}, nil
	default:
		return Value{}, fmt.Errorf("payload: unknown kind tag %d", kind)
	}
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
