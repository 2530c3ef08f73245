package gattc

import (
	"encoding/hex"
	"reflect"
	"testing"
)

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func TestParseAttributeData(t *testing.T) {
	cases := []struct {
		name string
		b    []byte
		want []AttributeData
	}{
		{
			name: "two records with 2-byte values",
			b:    []byte{0x04, 0x01, 0x00, 0xaa, 0xbb, 0x03, 0x00, 0xcc, 0xdd},
			want: []AttributeData{
				{Handle: 0x0001, Value: []byte{0xaa, 0xbb}},
				{Handle: 0x0003, Value: []byte{0xcc, 0xdd}},
			},
		},
		{
			name: "incomplete trailing record is dropped",
			b:    []byte{0x07, 0x01, 0x00, 0x02, 0x03, 0x00, 0x28, 0x01, 0x00, 0x28},
			want: []AttributeData{
				{Handle: 0x0001, Value: []byte{0x02, 0x03, 0x00, 0x28, 0x01}},
			},
		},
		{
			name: "characteristic declaration",
			b:    mustHex("070200020300002a"),
			want: []AttributeData{{Handle: 2, Value: mustHex("020300002a")}},
		},
		{name: "empty", b: nil, want: nil},
		{name: "length only", b: []byte{0x04}, want: []AttributeData{}},
		{name: "length below handle size", b: []byte{0x01, 0x01, 0x00}, want: nil},
	}
	for _, tt := range cases {
		if got := parseAttributeData(tt.b); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: got %v want %v", tt.name, got, tt.want)
		}
	}
}

func TestParseAttributeGroupData(t *testing.T) {
	cases := []struct {
		name string
		b    []byte
		want []AttributeGroupData
	}{
		{
			name: "16-bit services",
			b:    mustHex("06010005000018060006000118ff"),
			want: []AttributeGroupData{
				{Handle: 1, EndHandle: 5, Value: []byte{0x00, 0x18}},
				{Handle: 6, EndHandle: 6, Value: []byte{0x01, 0x18}},
			},
		},
		{
			name: "128-bit service",
			b:    mustHex("1407000e001bc5d5a502000499e31111c1c095fc09"),
			want: []AttributeGroupData{
				{Handle: 7, EndHandle: 14, Value: mustHex("1bc5d5a502000499e31111c1c095fc09")},
			},
		},
		{name: "length below header", b: []byte{0x03, 1, 0, 5}, want: nil},
	}
	for _, tt := range cases {
		if got := parseAttributeGroupData(tt.b); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: got %v want %v", tt.name, got, tt.want)
		}
	}
}

func TestParseInformationData(t *testing.T) {
	u128 := MustParseUUID("09fc95c0-c111-11e3-9904-0002a5d5c51b")
	cases := []struct {
		name string
		b    []byte
		want []InformationData
	}{
		{
			name: "format 1, trailing partial record",
			b:    mustHex("010100002802000328030000"),
			want: []InformationData{
				{Handle: 1, UUID: UUID16(0x2800)},
				{Handle: 2, UUID: UUID16(0x2803)},
			},
		},
		{
			name: "format 2",
			b:    append(mustHex("020e00"), u128.Bytes()...),
			want: []InformationData{{Handle: 14, UUID: u128}},
		},
		{name: "unknown format", b: mustHex("0301000028"), want: nil},
		{name: "empty", b: nil, want: nil},
	}
	for _, tt := range cases {
		if got := parseInformationData(tt.b); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: got %v want %v", tt.name, got, tt.want)
		}
	}
}

func TestParseHandleInformation(t *testing.T) {
	got := parseHandleInformation(mustHex("0700ffff0100050009"))
	want := []HandleInformation{{Handle: 7, GroupEnd: 0xffff}, {Handle: 1, GroupEnd: 5}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestParseErrorResponse(t *testing.T) {
	e, ok := parseErrorResponse(mustHex("0804000a"))
	if !ok {
		t.Fatal("parse failed")
	}
	if e.opcode != attOpReadByTypeReq || e.handle != 4 || e.status != ErrAttrNotFound {
		t.Errorf("got %+v", e)
	}
	if _, ok := parseErrorResponse(mustHex("0804")); ok {
		t.Errorf("short error response accepted")
	}
}

func TestAttErrorString(t *testing.T) {
	cases := []struct {
		e    AttError
		want string
	}{
		{ErrAttrNotFound, "attribute not found"},
		{ErrInsuffResources, "insufficient resources"},
		{AttError(0x12), "reserved error code"},
		{AttError(0x80), "application error"},
		{AttError(0xfe), "profile or service error"},
	}
	for _, tt := range cases {
		if got := tt.e.Error(); got != tt.want {
			t.Errorf("AttError(0x%02x): got %q want %q", byte(tt.e), got, tt.want)
		}
	}
}
