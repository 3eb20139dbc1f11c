package tlv

import (
	"bytes"
	"testing"
)

func TestWrapUnwrapRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		tag   uint32
		value []byte
	}{
		{"short value", 0x80, []byte{0x01, 0x02}},
		{"empty value", 0x7C, nil},
		{"long value", 0x87, bytes.Repeat([]byte{0xAB}, 200)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := Wrap(tc.tag, tc.value)
			got, err := Unwrap(tc.tag, wrapped)
			if err != nil {
				t.Fatalf("Unwrap: %v", err)
			}
			if !bytes.Equal(got, tc.value) {
				t.Fatalf("Unwrap = %X, want %X", got, tc.value)
			}
		})
	}
}

func TestUnwrapWrongTag(t *testing.T) {
	wrapped := Wrap(0x80, []byte{0x01})
	if _, err := Unwrap(0x81, wrapped); err == nil {
		t.Fatal("expected error for mismatched tag")
	}
}

func TestParseMultipleObjects(t *testing.T) {
	var data []byte
	data = append(data, Wrap(0x87, []byte{0x01, 0xAA, 0xBB})...)
	data = append(data, Wrap(0x99, []byte{0x90, 0x00})...)
	data = append(data, Wrap(0x8E, bytes.Repeat([]byte{0xCC}, 8))...)

	objs, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(objs) != 3 {
		t.Fatalf("got %d objects, want 3", len(objs))
	}
	if objs[0].Tag != 0x87 || objs[1].Tag != 0x99 || objs[2].Tag != 0x8E {
		t.Fatalf("unexpected tag order: %+v", objs)
	}
}

func TestParseEnvelope7C(t *testing.T) {
	inner := Wrap(0x80, []byte{0xAA, 0xBB})
	outer := Wrap(0x7C, inner)

	value, err := Unwrap(0x7C, outer)
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	obj, err := First(value, 0x80)
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	if !bytes.Equal(obj.Value, []byte{0xAA, 0xBB}) {
		t.Fatalf("inner value = %X, want AABB", obj.Value)
	}
}

func TestMalformedLongLength(t *testing.T) {
	data := []byte{0x80, 0x82, 0x00} // declares 2 length bytes, only 1 present
	if _, err := Parse(data); err == nil {
		t.Fatal("expected error for truncated long-form length")
	}
}
