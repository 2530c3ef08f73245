package gattc

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// A UUID is a BLE UUID. It always holds the full 128-bit value in
// canonical (big-endian) byte order; 16 and 32-bit UUIDs are stored
// embedded in the Bluetooth base UUID 0000xxxx-0000-1000-8000-00805F9B34FB.
// UUIDs are comparable and may be used as map keys.
type UUID [16]byte

var baseUUID = UUID{
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00,
	0x80, 0x00, 0x00, 0x80, 0x5f, 0x9b, 0x34, 0xfb,
}

// UUID16 converts a uint16 (such as 0x1800) to a UUID.
func UUID16(i uint16) UUID {
	return UUID32(uint32(i))
}

// UUID32 converts a uint32 to a UUID.
func UUID32(i uint32) UUID {
	u := baseUUID
	binary.BigEndian.PutUint32(u[:4], i)
	return u
}

// ParseUUID parses a UUID string. It accepts the 16 and 32-bit short
// forms ("180d", "0000180D") as well as the 128-bit form with or
// without dashes ("34DA3AD1-7110-41A1-B1EF-4430F509CDE7").
func ParseUUID(s string) (UUID, error) {
	switch len(s) {
	case 4, 8:
		b, err := hex.DecodeString(s)
		if err != nil {
			return UUID{}, errors.Wrapf(err, "invalid uuid %q", s)
		}
		var v uint32
		for _, c := range b {
			v = v<<8 | uint32(c)
		}
		return UUID32(v), nil
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return UUID{}, errors.Wrapf(err, "invalid uuid %q", s)
	}
	return UUID(u), nil
}

// MustParseUUID parses a UUID string like ParseUUID,
// but panics in case of error.
func MustParseUUID(s string) UUID {
	u, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

// UUIDFromBytes decodes a UUID in the little-endian form used on the
// wire. b must be 2, 4 or 16 bytes long.
func UUIDFromBytes(b []byte) (UUID, error) {
	switch len(b) {
	case 2:
		return UUID16(binary.LittleEndian.Uint16(b)), nil
	case 4:
		return UUID32(binary.LittleEndian.Uint32(b)), nil
	case 16:
		var u UUID
		for i := range b {
			u[15-i] = b[i]
		}
		return u, nil
	}
	return UUID{}, fmt.Errorf("UUIDs must have length 2, 4 or 16, got %d", len(b))
}

// Short32 reports the 32-bit value of u and whether u is
// embedded in the base UUID.
func (u UUID) Short32() (uint32, bool) {
	if u[4] != baseUUID[4] || u[5] != baseUUID[5] || u[6] != baseUUID[6] || u[7] != baseUUID[7] {
		return 0, false
	}
	for i := 8; i < 16; i++ {
		if u[i] != baseUUID[i] {
			return 0, false
		}
	}
	return binary.BigEndian.Uint32(u[:4]), true
}

// Short16 reports the 16-bit value of u and whether u is a 16-bit UUID.
func (u UUID) Short16() (uint16, bool) {
	v, ok := u.Short32()
	if !ok || v > 0xffff {
		return 0, false
	}
	return uint16(v), true
}

// Len returns the length of the UUID on the wire, in bytes.
// ATT carries UUIDs either as 2 or 16 bytes.
func (u UUID) Len() int {
	if _, ok := u.Short16(); ok {
		return 2
	}
	return 16
}

// Bytes returns the little-endian wire encoding of u,
// 2 bytes for a 16-bit UUID and 16 bytes otherwise.
func (u UUID) Bytes() []byte {
	if v, ok := u.Short16(); ok {
		return []byte{byte(v), byte(v >> 8)}
	}
	return reverse(u[:])
}

// Equal reports whether v represents the same UUID as u.
func (u UUID) Equal(v UUID) bool { return u == v }

// IsZero reports whether u is the all-zero UUID.
func (u UUID) IsZero() bool { return u == UUID{} }

// String returns the short form for UUIDs embedded in the base UUID
// ("2a00", "0001fe00") and the dashed 128-bit form otherwise.
func (u UUID) String() string {
	if v, ok := u.Short32(); ok {
		if v <= 0xffff {
			return fmt.Sprintf("%04x", v)
		}
		return fmt.Sprintf("%08x", v)
	}
	return uuid.UUID(u).String()
}

// Canonical returns the dashed 128-bit form of u, also for UUIDs
// embedded in the base UUID.
func (u UUID) Canonical() string { return uuid.UUID(u).String() }

// Name returns a human readable name for well-known UUIDs,
// or the empty string.
func (u UUID) Name() string {
	v, ok := u.Short16()
	if !ok {
		return ""
	}
	return knownUUID[v]
}

// Contains reports whether u is in uu.
func Contains(uu []UUID, u UUID) bool {
	for _, v := range uu {
		if v == u {
			return true
		}
	}
	return false
}

// reverse returns a reversed copy of u.
func reverse(u []byte) []byte {
	// Special-case 16 bit UUIDS for speed.
	l := len(u)
	if l == 2 {
		return []byte{u[1], u[0]}
	}
	b := make([]byte, l)
	for i := 0; i < l/2+1; i++ {
		b[i], b[l-i-1] = u[l-i-1], u[i]
	}
	return b
}

// ParseUUIDList parses a comma separated list of UUIDs.
func ParseUUIDList(s string) ([]UUID, error) {
	var uu []UUID
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f == "" {
			continue
		}
		u, err := ParseUUID(f)
		if err != nil {
			return nil, err
		}
		uu = append(uu, u)
	}
	return uu, nil
}

var knownUUID = map[uint16]string{
	0x1800: "Generic Access",
	0x1801: "Generic Attribute",
	0x180a: "Device Information",
	0x180d: "Heart Rate",
	0x180f: "Battery Service",
	0x1812: "Human Interface Device",

	0x2800: "Primary Service",
	0x2801: "Secondary Service",
	0x2802: "Include",
	0x2803: "Characteristic",

	0x2900: "Characteristic Extended Properties",
	0x2901: "Characteristic User Description",
	0x2902: "Client Characteristic Configuration",
	0x2903: "Server Characteristic Configuration",
	0x2904: "Characteristic Format",

	0x2a00: "Device Name",
	0x2a01: "Appearance",
	0x2a04: "Peripheral Preferred Connection Parameters",
	0x2a05: "Service Changed",
	0x2a19: "Battery Level",
	0x2a24: "Model Number String",
	0x2a25: "Serial Number String",
	0x2a26: "Firmware Revision String",
	0x2a27: "Hardware Revision String",
	0x2a28: "Software Revision String",
	0x2a29: "Manufacturer Name String",
	0x2a37: "Heart Rate Measurement",
	0x2a38: "Body Sensor Location",
}
