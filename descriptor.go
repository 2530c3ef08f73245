package gattc

// A Descriptor is a characteristic descriptor discovered on a peripheral.
type Descriptor struct {
	uuid   UUID
	handle uint16
}

// UUID returns the descriptor's type.
func (d Descriptor) UUID() UUID { return d.uuid }

// Handle returns the descriptor's attribute handle.
func (d Descriptor) Handle() uint16 { return d.handle }
