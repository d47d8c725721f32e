package protocol

import (
	"testing"
)

func TestVLQRoundTripInt(t *testing.T) {
	values := []int32{0, 1, -1, 95, 96, -32, -33, 127, -127, 128, 1000, -1000, 65535, -65535, 1000000, -1000000, 1 << 30, -(1 << 30)}

	for _, want := range values {
		out := NewScratchOutput()
		EncodeVLQInt(out, want)
		encoded := append([]byte(nil), out.Result()...)

		data := encoded
		got, err := DecodeVLQInt(&data)
		if err != nil {
			t.Errorf("decode %d: %v", want, err)
			continue
		}
		if got != want {
			t.Errorf("VLQ mismatch: want %d, got %d (encoded as %v)", want, got, encoded)
		}
		if len(data) != 0 {
			t.Errorf("decode %d left %d bytes", want, len(data))
		}
	}
}

func TestVLQEncodedLength(t *testing.T) {
	tests := []struct {
		v    int32
		size int
	}{
		{0, 1},
		{95, 1},
		{-32, 1},
		{96, 2},
		{-33, 2},
		{12287, 2},
		{12288, 3},
		{1 << 30, 5},
	}
	for _, tt := range tests {
		out := NewScratchOutput()
		EncodeVLQInt(out, tt.v)
		if n := len(out.Result()); n != tt.size {
			t.Errorf("EncodeVLQInt(%d) used %d bytes, want %d", tt.v, n, tt.size)
		}
	}
}

func TestVLQRoundTripUint(t *testing.T) {
	for _, want := range []uint32{0, 1, 127, 128, 255, 1000, 65535, 1000000} {
		out := NewScratchOutput()
		EncodeVLQUint(out, want)
		data := out.Result()
		got, err := DecodeVLQUint(&data)
		if err != nil || got != want {
			t.Errorf("uint VLQ: want %d, got %d (%v)", want, got, err)
		}
	}
}

func TestVLQBytes(t *testing.T) {
	cases := [][]byte{
		{},
		{0x01},
		{0x3B, 0x10},
		{0xFF, 0xFE, 0xFD},
		make([]byte, 40),
	}

	for i, want := range cases {
		out := NewScratchOutput()
		EncodeVLQBytes(out, want)
		data := out.Result()

		got, err := DecodeVLQBytes(&data)
		if err != nil {
			t.Errorf("case %d: %v", i, err)
			continue
		}
		if string(got) != string(want) {
			t.Errorf("case %d: want %v, got %v", i, want, got)
		}
		if len(data) != 0 {
			t.Errorf("case %d: %d bytes left", i, len(data))
		}
	}
}

func TestVLQTruncated(t *testing.T) {
	data := []byte{0x80} // continuation with nothing after it
	if _, err := DecodeVLQInt(&data); err != ErrShort {
		t.Errorf("want ErrShort, got %v", err)
	}
	if len(data) != 1 {
		t.Errorf("failed decode consumed input")
	}

	data = []byte{0x05, 0x01} // length 5, one byte of data
	if _, err := DecodeVLQBytes(&data); err != ErrShort {
		t.Errorf("want ErrShort, got %v", err)
	}

	data = nil
	if _, err := DecodeVLQInt(&data); err != ErrShort {
		t.Errorf("want ErrShort on empty input, got %v", err)
	}
}

func TestVLQTooLong(t *testing.T) {
	data := []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}
	if _, err := DecodeVLQInt(&data); err != ErrInvalidVLQ {
		t.Errorf("want ErrInvalidVLQ, got %v", err)
	}
}
