package gattc

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ReadCharacteristic reads the value of c. The value goes to
// ValueUpdated and, if fn is not nil, to fn.
func (p *Peripheral) ReadCharacteristic(c Characteristic, fn func([]byte, error)) error {
	ch, ok := p.lookupChar(c.handle)
	if !ok {
		return ErrUnknownAttribute
	}
	_, err := p.att.Read(ch.valueHandle, func(v []byte, err error) {
		p.characteristicRead(ch, v, err, fn)
	})
	return err
}

func (p *Peripheral) characteristicRead(ch *Characteristic, v []byte, err error, fn func([]byte, error)) {
	if err == nil {
		if ch.uuid == gattAttrDeviceNameUUID {
			p.setName(string(v), true)
		}
		if p.valueUpdated != nil {
			p.valueUpdated(p, *ch, v)
		}
	}
	if fn != nil {
		fn(v, err)
	}
}

// ReadLongCharacteristic reads a value longer than the MTU with
// Read Blob Requests.
func (p *Peripheral) ReadLongCharacteristic(c Characteristic, fn func([]byte, error)) error {
	ch, ok := p.lookupChar(c.handle)
	if !ok {
		return ErrUnknownAttribute
	}
	return p.readLong(ch, nil, fn)
}

func (p *Peripheral) readLong(ch *Characteristic, acc []byte, fn func([]byte, error)) error {
	chunk := func(v []byte, err error) {
		switch errors.Cause(err) {
		case nil:
		case ErrAttrNotLong, ErrInvalidOffset:
			if len(acc) > 0 {
				// The previous chunk ended exactly at the value's end.
				p.characteristicRead(ch, acc, nil, fn)
				return
			}
			fallthrough
		default:
			p.characteristicRead(ch, nil, err, fn)
			return
		}
		acc = append(acc, v...)
		if len(v) < p.att.MTU()-1 {
			p.characteristicRead(ch, acc, nil, fn)
			return
		}
		if err := p.readLong(ch, acc, fn); err != nil {
			p.characteristicRead(ch, nil, err, fn)
		}
	}
	var err error
	if len(acc) == 0 {
		_, err = p.att.Read(ch.valueHandle, chunk)
	} else {
		_, err = p.att.ReadBlob(ch.valueHandle, uint16(len(acc)), chunk)
	}
	return err
}

// ReadDescriptor reads the value of d. The value goes to
// DescriptorValueUpdated and, if fn is not nil, to fn.
func (p *Peripheral) ReadDescriptor(d Descriptor, fn func([]byte, error)) error {
	d, _, ok := p.lookupDesc(d.handle)
	if !ok {
		return ErrUnknownAttribute
	}
	_, err := p.att.Read(d.handle, func(v []byte, err error) {
		if err == nil && p.descriptorValueUpdated != nil {
			p.descriptorValueUpdated(p, d, v)
		}
		if fn != nil {
			fn(v, err)
		}
	})
	return err
}

// WriteCharacteristic writes v to c. Without response the value is
// sent as a Write Command and nothing is reported back; otherwise
// CharacteristicWritten and fn report the outcome.
func (p *Peripheral) WriteCharacteristic(c Characteristic, v []byte, withResponse bool, fn func(error)) error {
	ch, ok := p.lookupChar(c.handle)
	if !ok {
		return ErrUnknownAttribute
	}
	if !withResponse {
		return p.att.WriteCommand(ch.valueHandle, v)
	}
	_, err := p.att.Write(ch.valueHandle, v, func(err error) {
		if p.characteristicWritten != nil {
			p.characteristicWritten(p, *ch, err)
		}
		if fn != nil {
			fn(err)
		}
	})
	return err
}

// WriteDescriptor writes v to d. DescriptorWritten and fn report the outcome.
func (p *Peripheral) WriteDescriptor(d Descriptor, v []byte, fn func(error)) error {
	d, _, ok := p.lookupDesc(d.handle)
	if !ok {
		return ErrUnknownAttribute
	}
	_, err := p.att.Write(d.handle, v, func(err error) {
		if p.descriptorWritten != nil {
			p.descriptorWritten(p, d, err)
		}
		if fn != nil {
			fn(err)
		}
	})
	return err
}

// SetNotification enables or disables notifications and indications
// of c by writing its Client Characteristic Configuration descriptor.
// The new state takes effect when the write succeeds; it is reported
// through NotificationStateChanged.
func (p *Peripheral) SetNotification(c Characteristic, enabled bool) error {
	ch, ok := p.lookupChar(c.handle)
	if !ok {
		return ErrUnknownAttribute
	}
	ccc, ok := ch.Descriptor(gattAttrClientCharacteristicConfigUUID)
	if !ok {
		return ErrNoCCCD
	}
	var flags uint16
	if enabled {
		if ch.props&CharNotify != 0 {
			flags |= gattCCCNotifyFlag
		}
		if ch.props&CharIndicate != 0 {
			flags |= gattCCCIndicateFlag
		}
		if flags == 0 {
			return errors.Errorf("characteristic %s supports neither notify nor indicate", ch.uuid)
		}
	}
	v := make([]byte, 2)
	binary.LittleEndian.PutUint16(v, flags)

	var id RequestID
	var err error
	id, err = p.att.Write(ccc.handle, v, func(err error) {
		delete(p.pending, id)
		if cur, ok := p.lookupChar(ch.handle); !ok || cur != ch {
			return
		}
		if err == nil {
			if enabled {
				p.subscribed[ch.valueHandle] = true
			} else {
				delete(p.subscribed, ch.valueHandle)
			}
		}
		if p.notificationStateChanged != nil {
			p.notificationStateChanged(p, *ch, enabled, err)
		}
	})
	if err == nil {
		p.pending[id] = pendingOp{kind: opSetNotify, handle: ch.handle}
	}
	return err
}

// IsNotifying reports whether notifications or indications of c are enabled.
func (p *Peripheral) IsNotifying(c Characteristic) bool {
	return p.subscribed[c.valueHandle]
}
