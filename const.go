package gattc

// This file includes constants from the BLE spec.

var (
	gattAttrGAPUUID  = UUID16(0x1800)
	gattAttrGATTUUID = UUID16(0x1801)

	gattAttrPrimaryServiceUUID   = UUID16(0x2800)
	gattAttrSecondaryServiceUUID = UUID16(0x2801)
	gattAttrIncludeUUID          = UUID16(0x2802)
	gattAttrCharacteristicUUID   = UUID16(0x2803)

	gattAttrClientCharacteristicConfigUUID = UUID16(0x2902)

	gattAttrDeviceNameUUID = UUID16(0x2A00)
)

// Client Characteristic Configuration bits.
const (
	gattCCCNotifyFlag   = 0x0001
	gattCCCIndicateFlag = 0x0002
)

// attCID is the fixed L2CAP channel of the attribute protocol.
const attCID = 0x0004

// DefaultMTU is the LE default ATT_MTU.
const DefaultMTU = 23

// isDeclaration reports whether u is one of the GATT declaration types.
func isDeclaration(u UUID) bool {
	switch u {
	case gattAttrPrimaryServiceUUID, gattAttrSecondaryServiceUUID,
		gattAttrIncludeUUID, gattAttrCharacteristicUUID:
		return true
	}
	return false
}
