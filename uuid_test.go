package gattc

import (
	"bytes"
	"testing"
)

func TestUUID16(t *testing.T) {
	want := MustParseUUID("00001800-0000-1000-8000-00805f9b34fb")
	if got := UUID16(0x1800); !got.Equal(want) {
		t.Errorf("UUID16: got %s, want %s", got, want)
	}
}

func TestUUID16RoundTrip(t *testing.T) {
	for i := 0; i <= 0xffff; i++ {
		u := UUID16(uint16(i))
		if v, ok := u.Short16(); !ok || v != uint16(i) {
			t.Fatalf("UUID16(%#04x).Short16: got %#04x %t", i, v, ok)
		}
		p, err := ParseUUID(u.String())
		if err != nil || p != u {
			t.Fatalf("ParseUUID(%q): got %s %v, want %s", u.String(), p, err, u)
		}
		w, err := UUIDFromBytes(u.Bytes())
		if err != nil || w != u {
			t.Fatalf("UUIDFromBytes(%x): got %s %v, want %s", u.Bytes(), w, err, u)
		}
	}
}

func TestUUID32RoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 0xffff, 0x10000, 0x0001fe00, 0x12345678, 0xdeadbeef, 0xffffffff} {
		u := UUID32(v)
		if got, ok := u.Short32(); !ok || got != v {
			t.Errorf("UUID32(%#08x).Short32: got %#08x %t", v, got, ok)
		}
		if _, ok := u.Short16(); ok != (v <= 0xffff) {
			t.Errorf("UUID32(%#08x).Short16: got ok=%t", v, ok)
		}
		p, err := ParseUUID(u.String())
		if err != nil || p != u {
			t.Errorf("ParseUUID(%q): got %s %v, want %s", u.String(), p, err, u)
		}
		le := []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
		if w, err := UUIDFromBytes(le); err != nil || w != u {
			t.Errorf("UUIDFromBytes(%x): got %s %v, want %s", le, w, err, u)
		}
	}
}

func TestUUIDString(t *testing.T) {
	cases := []struct {
		u    UUID
		want string
	}{
		{u: UUID16(0x2a00), want: "2a00"},
		{u: UUID32(0x0001fe00), want: "0001fe00"},
		{u: MustParseUUID("09FC95C0-C111-11E3-9904-0002A5D5C51B"), want: "09fc95c0-c111-11e3-9904-0002a5d5c51b"},
		{u: MustParseUUID("09fc95c0c11111e399040002a5d5c51b"), want: "09fc95c0-c111-11e3-9904-0002a5d5c51b"},
	}
	for _, tt := range cases {
		if got := tt.u.String(); got != tt.want {
			t.Errorf("String: got %s want %s", got, tt.want)
		}
	}
}

func TestUUIDCanonical(t *testing.T) {
	cases := []struct {
		u    UUID
		want string
	}{
		{u: UUID16(0x180d), want: "0000180d-0000-1000-8000-00805f9b34fb"},
		{u: UUID32(0x0001fe00), want: "0001fe00-0000-1000-8000-00805f9b34fb"},
		{u: MustParseUUID("09FC95C0-C111-11E3-9904-0002A5D5C51B"), want: "09fc95c0-c111-11e3-9904-0002a5d5c51b"},
	}
	for _, tt := range cases {
		if got := tt.u.Canonical(); got != tt.want {
			t.Errorf("Canonical: got %s want %s", got, tt.want)
		}
		if u, err := ParseUUID(tt.want); err != nil || u != tt.u {
			t.Errorf("ParseUUID(%s): got %s, %v", tt.want, u, err)
		}
	}
}

func TestUUIDBytes(t *testing.T) {
	cases := []struct {
		u    UUID
		want []byte
		len  int
	}{
		{u: UUID16(0x2803), want: []byte{0x03, 0x28}, len: 2},
		{
			u: MustParseUUID("09fc95c0-c111-11e3-9904-0002a5d5c51b"),
			want: []byte{
				0x1b, 0xc5, 0xd5, 0xa5, 0x02, 0x00, 0x04, 0x99,
				0xe3, 0x11, 0x11, 0xc1, 0xc0, 0x95, 0xfc, 0x09,
			},
			len: 16,
		},
		{
			u: UUID32(0x12345678),
			want: []byte{
				0xfb, 0x34, 0x9b, 0x5f, 0x80, 0x00, 0x00, 0x80,
				0x00, 0x10, 0x00, 0x00, 0x78, 0x56, 0x34, 0x12,
			},
			len: 16,
		},
	}
	for _, tt := range cases {
		if got := tt.u.Bytes(); !bytes.Equal(got, tt.want) {
			t.Errorf("%s.Bytes: got %x want %x", tt.u, got, tt.want)
		}
		if got := tt.u.Len(); got != tt.len {
			t.Errorf("%s.Len: got %d want %d", tt.u, got, tt.len)
		}
	}
}

func TestParseUUIDInvalid(t *testing.T) {
	for _, s := range []string{"", "18", "zzzz", "1800-", "09fc95c0-c111-11e3-9904"} {
		if _, err := ParseUUID(s); err == nil {
			t.Errorf("ParseUUID(%q) should fail", s)
		}
	}
	if _, err := UUIDFromBytes([]byte{1, 2, 3}); err == nil {
		t.Errorf("UUIDFromBytes should reject 3 bytes")
	}
}

func TestParseUUIDList(t *testing.T) {
	uu, err := ParseUUIDList("180d, 2a37,,")
	if err != nil {
		t.Fatal(err)
	}
	if len(uu) != 2 || uu[0] != UUID16(0x180d) || uu[1] != UUID16(0x2a37) {
		t.Errorf("ParseUUIDList: got %v", uu)
	}
	if !Contains(uu, UUID16(0x2a37)) || Contains(uu, UUID16(0x1800)) {
		t.Errorf("Contains: wrong result for %v", uu)
	}
}

func TestReverse(t *testing.T) {
	cases := []struct {
		fwd  []byte
		back []byte
	}{
		{fwd: []byte{0, 1}, back: []byte{1, 0}},
		{fwd: []byte{0, 1, 2}, back: []byte{2, 1, 0}},
		{fwd: []byte{0, 1, 2, 3}, back: []byte{3, 2, 1, 0}},
		{
			fwd:  []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
			back: []byte{15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0},
		},
	}

	for _, tt := range cases {
		got := reverse(tt.fwd)
		if !bytes.Equal(got, tt.back) {
			t.Errorf("reverse(%x): got %x want %x", tt.fwd, got, tt.back)
		}
	}
}

func BenchmarkUUIDBytes128(b *testing.B) {
	u := MustParseUUID("09fc95c0-c111-11e3-9904-0002a5d5c51b")
	for i := 0; i < b.N; i++ {
		u.Bytes()
	}
}
