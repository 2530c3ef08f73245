package gattc

import (
	"reflect"
	"testing"

	"github.com/pkg/errors"
)

func TestAdvertisementUnmarshal(t *testing.T) {
	cases := []struct {
		data string
		want Advertisement
	}{
		{
			data: "020106",
			want: Advertisement{Flags: 0x06, Discoverable: true},
		},
		{
			// LE only, not discoverable.
			data: "020104",
			want: Advertisement{Flags: 0x04},
		},
		{
			data: "0709676f70686572",
			want: Advertisement{LocalName: "gopher", NameComplete: true},
		},
		{
			data: "0408676f70",
			want: Advertisement{LocalName: "gop"},
		},
		{
			// A shortened name does not override a complete one.
			data: "0709676f706865720408676f70",
			want: Advertisement{LocalName: "gopher", NameComplete: true},
		},
		{
			data: "0302fefa0303f9fa",
			want: Advertisement{
				Services:         []UUID{UUID16(0xFAFE), UUID16(0xFAF9)},
				ServicesComplete: true,
			},
		},
		{
			data: "050478563412",
			want: Advertisement{Services: []UUID{UUID32(0x12345678)}},
		},
		{
			data: "1107fb349b5f80000080001000000d180000",
			want: Advertisement{
				Services:         []UUID{MustParseUUID("0000180d-0000-1000-8000-00805f9b34fb")},
				ServicesComplete: true,
			},
		},
		{
			data: "020af4",
			want: Advertisement{TxPowerLevel: -12, HasTxPower: true},
		},
		{
			data: "05160f1864ff",
			want: Advertisement{ServiceData: []ServiceData{{UUID: UUID16(0x180F), Data: []byte{0x64, 0xFF}}}},
		},
		{
			data: "05ff4c000215",
			want: Advertisement{CompanyID: 0x004C, ManufacturerData: []byte{0x02, 0x15}},
		},
		{
			data: "0314000d",
			want: Advertisement{SolicitedService: []UUID{UUID16(0x0D00)}},
		},
		{
			// Zero length ends the payload; the rest is padding.
			data: "0201060000ffff",
			want: Advertisement{Flags: 0x06, Discoverable: true},
		},
		{
			data: "03190000",
			want: Advertisement{},
		},
	}
	for _, tt := range cases {
		var a Advertisement
		if err := a.Unmarshal(mustHex(tt.data)); err != nil {
			t.Errorf("Unmarshal(%s): unexpected error %v", tt.data, err)
			continue
		}
		if !reflect.DeepEqual(a, tt.want) {
			t.Errorf("Unmarshal(%s): got %+v want %+v", tt.data, a, tt.want)
		}
	}
}

func TestAdvertisementUnmarshalInvalid(t *testing.T) {
	cases := []string{
		"05",         // truncated field
		"0509676f",   // length past end
		"0302fefaf9", // trailing byte
		"0402fefaf9", // odd 16-bit list
		"0101",       // empty flags
		"02ff4c",     // manufacturer data without company id
		"021600",     // short service data
	}
	for _, data := range cases {
		var a Advertisement
		err := a.Unmarshal(mustHex(data))
		if errors.Cause(err) != ErrBadAdvertisement {
			t.Errorf("Unmarshal(%s): got %v want %v", data, err, ErrBadAdvertisement)
		}
	}
}
