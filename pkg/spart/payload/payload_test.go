package payload

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueEqual(t *testing.T) {
	cases := []struct {
		name  string
		a, b  Value
		equal bool
	}{
		{"null==null", Null(), Null(), true},
		{"int equal", Int(5), Int(5), true},
		{"int not equal", Int(5), Int(6), false},
		{"float equal", Float(1.5), Float(1.5), true},
		{"string equal", String("a"), String("a"), true},
		{"string not equal", String("a"), String("b"), false},
		{"bytes equal", Bytes([]byte{1, 2, 3}), Bytes([]byte{1, 2, 3}), true},
		{"bytes not equal", Bytes([]byte{1, 2, 3}), Bytes([]byte{1, 2, 4}), false},
		{"list equal", List([]Value{Int(1), String("x")}), List([]Value{Int(1), String("x")}), true},
		{"list not equal", List([]Value{Int(1)}), List([]Value{Int(2)}), false},
		{"map equal", Map(map[string]Value{"k": Int(1)}), Map(map[string]Value{"k": Int(1)}), true},
		{"map not equal", Map(map[string]Value{"k": Int(1)}), Map(map[string]Value{"k": Int(2)}), false},
		{"different kinds", Int(1), Float(1), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.equal, c.a.Equal(c.b))
		})
	}
}

func TestValueRoundTrip(t *testing.T) {
	values := []Value{
		Null(),
		Int(-42),
		Float(3.14159),
		String("hello, world"),
		Bytes([]byte{0xde, 0xad, 0xbe, 0xef}),
		List([]Value{Int(1), String("x"), Null()}),
		Map(map[string]Value{"a": Int(1), "b": String("two")}),
	}
	for _, v := range values {
		var buf bytes.Buffer
		require.NoError(t, v.Encode(&buf))
		got, err := Decode(&buf)
		require.NoError(t, err)
		assert.True(t, v.Equal(got), "round-trip mismatch for kind %v", v.Kind())
	}
}

func TestValueCopySemantics(t *testing.T) {
	b := []byte{1, 2, 3}
	v := Bytes(b)
	b[0] = 99
	assert.Equal(t, byte(1), v.BytesValue()[0], "Bytes must copy its input")

	m := map[string]Value{"k": Int(1)}
	mv := Map(m)
	m["k"] = Int(2)
	assert.True(t, mv.MapValue()["k"].Equal(Int(1)), "Map must copy its input")
}
