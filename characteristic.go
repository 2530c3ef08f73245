package gattc

import (
	"sort"
	"strings"
)

// Property is the properties bit field of a characteristic declaration.
type Property byte

// Do not re-order the bit flags below;
// they are organized to match the BLE spec.

// Characteristic property flags.
const (
	CharBroadcast   Property = 1 << iota // the characteristic value may be broadcast
	CharRead                             // the characteristic may be read
	CharWriteNR                          // the characteristic may be written to, with no reply
	CharWrite                            // the characteristic may be written to, with a reply
	CharNotify                           // the characteristic supports notifications
	CharIndicate                         // the characteristic supports indications
	CharSignedWrite                      // the characteristic supports signed writes
	CharExtended                         // the characteristic has extended properties
)

var propNames = []string{"broadcast", "read", "writeNR", "write", "notify", "indicate", "signedWrite", "extended"}

func (p Property) String() string {
	var ss []string
	for i, name := range propNames {
		if p&(1<<uint(i)) != 0 {
			ss = append(ss, name)
		}
	}
	return strings.Join(ss, "|")
}

// A Characteristic is a characteristic discovered on a peripheral.
// Values returned by a Peripheral are snapshots of its attribute tree.
type Characteristic struct {
	uuid        UUID
	handle      uint16 // declaration
	valueHandle uint16
	endHandle   uint16
	props       Property

	descs     map[uint16]Descriptor
	descUUIDs map[UUID]uint16
}

func newCharacteristic(u UUID, h, vh, end uint16, props Property) *Characteristic {
	return &Characteristic{
		uuid:        u,
		handle:      h,
		valueHandle: vh,
		endHandle:   end,
		props:       props,
		descs:       make(map[uint16]Descriptor),
		descUUIDs:   make(map[UUID]uint16),
	}
}

// UUID returns the characteristic's UUID.
func (c Characteristic) UUID() UUID { return c.uuid }

// Handle returns the declaration handle.
func (c Characteristic) Handle() uint16 { return c.handle }

// ValueHandle returns the handle of the characteristic value.
func (c Characteristic) ValueHandle() uint16 { return c.valueHandle }

// EndHandle returns the last handle belonging to the characteristic.
func (c Characteristic) EndHandle() uint16 { return c.endHandle }

// Properties returns the characteristic properties.
func (c Characteristic) Properties() Property { return c.props }

// Descriptors returns the discovered descriptors ordered by handle.
func (c Characteristic) Descriptors() []Descriptor {
	dd := make([]Descriptor, 0, len(c.descs))
	for _, d := range c.descs {
		dd = append(dd, d)
	}
	sort.Slice(dd, func(i, j int) bool { return dd[i].handle < dd[j].handle })
	return dd
}

// Descriptor returns the descriptor with type u.
func (c Characteristic) Descriptor(u UUID) (Descriptor, bool) {
	h, ok := c.descUUIDs[u]
	if !ok {
		return Descriptor{}, false
	}
	return c.descs[h], true
}

// addDescriptor keeps descs and descUUIDs in step.
func (c *Characteristic) addDescriptor(d Descriptor) {
	if old, ok := c.descs[d.handle]; ok && c.descUUIDs[old.uuid] == d.handle {
		delete(c.descUUIDs, old.uuid)
	}
	c.descs[d.handle] = d
	c.descUUIDs[d.uuid] = d.handle
}

func (c *Characteristic) clearDescriptors() {
	c.descs = make(map[uint16]Descriptor)
	c.descUUIDs = make(map[UUID]uint16)
}
