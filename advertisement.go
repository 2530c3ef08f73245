package gattc

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrBadAdvertisement is returned for truncated or malformed AD structures.
var ErrBadAdvertisement = errors.New("invalid advertising data")

// advertising data field types
const (
	typeFlags          = 0x01 // Flags
	typeSomeUUID16     = 0x02 // Incomplete List of 16-bit Service Class UUIDs
	typeAllUUID16      = 0x03 // Complete List of 16-bit Service Class UUIDs
	typeSomeUUID32     = 0x04 // Incomplete List of 32-bit Service Class UUIDs
	typeAllUUID32      = 0x05 // Complete List of 32-bit Service Class UUIDs
	typeSomeUUID128    = 0x06 // Incomplete List of 128-bit Service Class UUIDs
	typeAllUUID128     = 0x07 // Complete List of 128-bit Service Class UUIDs
	typeShortName      = 0x08 // Shortened Local Name
	typeCompleteName   = 0x09 // Complete Local Name
	typeTxPower        = 0x0A // Tx Power Level
	typeServiceSol16   = 0x14 // List of 16-bit Service Solicitation UUIDs
	typeServiceSol128  = 0x15 // List of 128-bit Service Solicitation UUIDs
	typeServiceData16  = 0x16 // Service Data - 16-bit UUID
	typeServiceSol32   = 0x1F // List of 32-bit Service Solicitation UUIDs
	typeServiceData32  = 0x20 // Service Data - 32-bit UUID
	typeServiceData128 = 0x21 // Service Data - 128-bit UUID
	typeManufacturer   = 0xFF // Manufacturer Specific Data
)

// flag bits
const (
	FlagLimitedDiscoverable = 1 << iota // LE Limited Discoverable Mode
	FlagGeneralDiscoverable             // LE General Discoverable Mode
	FlagLEOnly                          // BR/EDR Not Supported
	FlagBothController                  // Simultaneous LE and BR/EDR (Controller)
	FlagBothHost                        // Simultaneous LE and BR/EDR (Host)
)

// ServiceData is a service data field of an advertisement.
type ServiceData struct {
	UUID UUID
	Data []byte
}

// An Advertisement is the decoded content of advertising and scan
// response payloads.
type Advertisement struct {
	LocalName    string
	NameComplete bool

	Flags        byte
	Discoverable bool // limited or general discoverable mode

	Services         []UUID
	ServicesComplete bool // a complete service list was present
	SolicitedService []UUID
	ServiceData      []ServiceData

	CompanyID        uint16
	ManufacturerData []byte

	TxPowerLevel int8
	HasTxPower   bool
}

// Unmarshal decodes the AD structures in b into a. A zero length
// structure ends the significant part of the payload.
func (a *Advertisement) Unmarshal(b []byte) error {
	return a.unmarshal(b, logrus.StandardLogger())
}

func (a *Advertisement) unmarshal(b []byte, log logrus.FieldLogger) error {
	for len(b) > 0 {
		l := int(b[0])
		if l == 0 {
			return nil
		}
		if len(b) < 1+l {
			return errors.Wrapf(ErrBadAdvertisement, "field of length %d in %d bytes", l, len(b)-1)
		}
		t, d := b[1], b[2:1+l]
		b = b[1+l:]
		if err := a.field(t, d, log); err != nil {
			return err
		}
	}
	return nil
}

func (a *Advertisement) field(t byte, d []byte, log logrus.FieldLogger) error {
	var err error
	switch t {
	case typeFlags:
		if len(d) < 1 {
			return errors.Wrap(ErrBadAdvertisement, "empty flags")
		}
		a.Flags = d[0]
		a.Discoverable = d[0]&(FlagLimitedDiscoverable|FlagGeneralDiscoverable) != 0
	case typeSomeUUID16, typeSomeUUID32, typeSomeUUID128:
		a.Services, err = uuidList(a.Services, d, uuidWidth(t))
	case typeAllUUID16, typeAllUUID32, typeAllUUID128:
		a.ServicesComplete = true
		a.Services, err = uuidList(a.Services, d, uuidWidth(t))
	case typeShortName:
		if !a.NameComplete {
			a.LocalName = string(d)
		}
	case typeCompleteName:
		a.LocalName = string(d)
		a.NameComplete = true
	case typeTxPower:
		if len(d) < 1 {
			return errors.Wrap(ErrBadAdvertisement, "empty tx power")
		}
		a.TxPowerLevel = int8(d[0])
		a.HasTxPower = true
	case typeServiceSol16:
		a.SolicitedService, err = uuidList(a.SolicitedService, d, 2)
	case typeServiceSol32:
		a.SolicitedService, err = uuidList(a.SolicitedService, d, 4)
	case typeServiceSol128:
		a.SolicitedService, err = uuidList(a.SolicitedService, d, 16)
	case typeServiceData16, typeServiceData32, typeServiceData128:
		w := uuidWidth(t)
		if len(d) < w {
			return errors.Wrapf(ErrBadAdvertisement, "service data of %d bytes", len(d))
		}
		u, _ := UUIDFromBytes(d[:w])
		a.ServiceData = append(a.ServiceData, ServiceData{UUID: u, Data: append([]byte(nil), d[w:]...)})
	case typeManufacturer:
		if len(d) < 2 {
			return errors.Wrap(ErrBadAdvertisement, "manufacturer data without company id")
		}
		a.CompanyID = binary.LittleEndian.Uint16(d)
		a.ManufacturerData = append([]byte(nil), d[2:]...)
	default:
		log.Debugf("adv: skipping type 0x%02X [ % X ]", t, d)
	}
	return err
}

func uuidWidth(t byte) int {
	switch t {
	case typeSomeUUID16, typeAllUUID16, typeServiceData16:
		return 2
	case typeSomeUUID32, typeAllUUID32, typeServiceData32:
		return 4
	}
	return 16
}

func uuidList(uu []UUID, d []byte, w int) ([]UUID, error) {
	if len(d)%w != 0 {
		return uu, errors.Wrapf(ErrBadAdvertisement, "uuid list of %d bytes, width %d", len(d), w)
	}
	for ; len(d) > 0; d = d[w:] {
		u, _ := UUIDFromBytes(d[:w])
		if !Contains(uu, u) {
			uu = append(uu, u)
		}
	}
	return uu, nil
}
