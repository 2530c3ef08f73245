package gattc

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// isAttrNotFound reports whether err ends a paginated discovery.
func isAttrNotFound(err error) bool {
	return errors.Cause(err) == ErrAttrNotFound
}

func (p *Peripheral) busy(kind opKind, h uint16) bool {
	for _, op := range p.pending {
		if op.kind == kind && op.handle == h {
			return true
		}
	}
	return false
}

// abandon cancels every pending request of kind.
func (p *Peripheral) abandon(kind opKind) {
	for id, op := range p.pending {
		if op.kind == kind {
			p.att.CancelRequest(id)
			delete(p.pending, id)
		}
	}
}

func (p *Peripheral) failDiscovery(phase Phase, err error) {
	p.log.WithError(err).WithField("phase", phase).Warn("discovery failed")
	p.eager = false
	if p.discoveryFailed != nil {
		p.discoveryFailed(p, phase, err)
	}
}

// DiscoverServices clears the attribute tree and discovers all primary
// services. ServicesDiscovered reports the result.
func (p *Peripheral) DiscoverServices() error {
	if p.state != StateConnected {
		return ErrNotConnected
	}
	if p.busy(opServices, 0) {
		return ErrBusy
	}
	p.clearTree()
	return p.discoverServicesFrom(0x0001)
}

// DiscoverProfile discovers the services, then the characteristics of
// every service, then the descriptors of every characteristic.
// ProfileDiscovered reports completion.
func (p *Peripheral) DiscoverProfile() error {
	if err := p.DiscoverServices(); err != nil {
		return err
	}
	p.eager = true
	return nil
}

func (p *Peripheral) discoverServicesFrom(start uint16) error {
	var id RequestID
	var err error
	id, err = p.att.ReadByGroupType(start, 0xffff, gattAttrPrimaryServiceUUID, func(dd []AttributeGroupData, err error) {
		delete(p.pending, id)
		if isAttrNotFound(err) {
			p.servicesDone()
			return
		}
		if err != nil {
			p.failDiscovery(PhaseDiscoveringServices, err)
			return
		}
		last := uint16(0)
		for _, d := range dd {
			u, err := UUIDFromBytes(d.Value)
			if err != nil {
				p.log.WithError(err).Warnf("service at 0x%04X: bad uuid", d.Handle)
				continue
			}
			if p.addService(u, d.Handle, d.EndHandle, start) {
				last = d.EndHandle
			}
		}
		if last == 0 || last == 0xffff {
			p.servicesDone()
			return
		}
		if err := p.discoverServicesFrom(last + 1); err != nil {
			p.failDiscovery(PhaseDiscoveringServices, err)
		}
	})
	if err == nil {
		p.pending[id] = pendingOp{kind: opServices}
	}
	return err
}

// DiscoverServicesByUUID clears the attribute tree and discovers the
// primary services with the given UUIDs.
func (p *Peripheral) DiscoverServicesByUUID(uu []UUID) error {
	if p.state != StateConnected {
		return ErrNotConnected
	}
	if p.busy(opServices, 0) {
		return ErrBusy
	}
	p.clearTree()
	if len(uu) == 0 {
		p.servicesDone()
		return nil
	}
	for _, u := range uu {
		if err := p.findServicesFrom(u, 0x0001); err != nil {
			p.abandon(opServices)
			return err
		}
	}
	return nil
}

func (p *Peripheral) findServicesFrom(u UUID, start uint16) error {
	var id RequestID
	var err error
	id, err = p.att.FindByTypeValue(start, 0xffff, 0x2800, u.Bytes(), func(hh []HandleInformation, err error) {
		delete(p.pending, id)
		last := uint16(0)
		switch {
		case isAttrNotFound(err):
		case err != nil:
			p.abandon(opServices)
			p.failDiscovery(PhaseDiscoveringServices, err)
			return
		default:
			for _, h := range hh {
				if p.addService(u, h.Handle, h.GroupEnd, start) {
					last = h.GroupEnd
				}
			}
		}
		if last != 0 && last != 0xffff {
			if err := p.findServicesFrom(u, last+1); err != nil {
				p.abandon(opServices)
				p.failDiscovery(PhaseDiscoveringServices, err)
			}
			return
		}
		if !p.busy(opServices, 0) {
			p.servicesDone()
		}
	})
	if err == nil {
		p.pending[id] = pendingOp{kind: opServices}
	}
	return err
}

// addService adds a service found at or after start, rejecting ranges
// that are inverted, precede start or overlap a known attribute.
func (p *Peripheral) addService(u UUID, h, end, start uint16) bool {
	if h == 0 || h < start || end < h || p.overlaps(h, end) {
		p.log.Warnf("dropping service %s [0x%04X, 0x%04X]", u, h, end)
		return false
	}
	p.services[h] = newService(u, h, end)
	p.rebuild()
	return true
}

// overlaps reports whether [start, end] intersects a known service.
func (p *Peripheral) overlaps(start, end uint16) bool {
	if len(p.index.Subrange(start, end)) > 0 {
		return true
	}
	for _, s := range p.services {
		if s.startHandle < start && start <= s.endHandle {
			return true
		}
	}
	return false
}

func (p *Peripheral) servicesDone() {
	p.discovered = true
	if p.servicesDiscovered != nil {
		p.servicesDiscovered(p, p.Services())
	}
	if !p.eager {
		return
	}
	p.fanout++
	for _, s := range p.sortedServices() {
		if err := p.discoverCharacteristics(s, nil); err != nil {
			p.failDiscovery(PhaseDiscoveringCharacteristics, err)
			break
		}
	}
	p.fanout--
	p.checkProfile()
}

// DiscoverCharacteristics discovers the characteristics of s, replacing
// any known ones. CharacteristicsDiscovered reports the result.
func (p *Peripheral) DiscoverCharacteristics(s Service) error {
	if p.state != StateConnected {
		return ErrNotConnected
	}
	svc, ok := p.lookupService(s.startHandle)
	if !ok {
		return ErrUnknownAttribute
	}
	return p.discoverCharacteristics(svc, nil)
}

// DiscoverCharacteristicsByUUID discovers the characteristics of s with
// the given UUIDs, replacing any known ones. Every declaration of the
// service is read, so end handles are the same as with
// DiscoverCharacteristics. CharacteristicsDiscovered reports the result.
func (p *Peripheral) DiscoverCharacteristicsByUUID(s Service, uu []UUID) error {
	if p.state != StateConnected {
		return ErrNotConnected
	}
	svc, ok := p.lookupService(s.startHandle)
	if !ok {
		return ErrUnknownAttribute
	}
	if len(uu) == 0 {
		uu = []UUID{}
	}
	return p.discoverCharacteristics(svc, uu)
}

// discoverCharacteristics walks the declarations of svc. A non-nil
// filter keeps only characteristics with a listed UUID.
func (p *Peripheral) discoverCharacteristics(svc *Service, filter []UUID) error {
	if p.busy(opCharacteristics, svc.startHandle) {
		return ErrBusy
	}
	for h := range svc.chars {
		delete(p.subscribed, svc.chars[h].valueHandle)
	}
	svc.chars = make(map[uint16]*Characteristic)
	p.rebuild()
	if svc.startHandle == svc.endHandle {
		p.characteristicsDone(svc)
		return nil
	}
	return p.discoverCharacteristicsFrom(svc, svc.startHandle, filter)
}

func (p *Peripheral) discoverCharacteristicsFrom(svc *Service, start uint16, filter []UUID) error {
	var id RequestID
	var err error
	id, err = p.att.ReadByType(start, svc.endHandle, gattAttrCharacteristicUUID, func(dd []AttributeData, err error) {
		delete(p.pending, id)
		if p.services[svc.startHandle] != svc {
			return
		}
		if isAttrNotFound(err) {
			p.filterCharacteristics(svc, filter)
			p.characteristicsDone(svc)
			return
		}
		if err != nil {
			p.failDiscovery(PhaseDiscoveringCharacteristics, err)
			return
		}
		next := 0
		for _, d := range dd {
			if vh, ok := p.addCharacteristic(svc, start, d); ok {
				next = int(vh) + 1
			}
		}
		svc.fixEndHandles()
		p.dropBadCharacteristics(svc)
		p.rebuild()
		if next == 0 || next > int(svc.endHandle) {
			p.filterCharacteristics(svc, filter)
			p.characteristicsDone(svc)
			return
		}
		if err := p.discoverCharacteristicsFrom(svc, uint16(next), filter); err != nil {
			p.failDiscovery(PhaseDiscoveringCharacteristics, err)
		}
	})
	if err == nil {
		p.pending[id] = pendingOp{kind: opCharacteristics, handle: svc.startHandle}
	}
	return err
}

// addCharacteristic decodes a characteristic declaration:
// properties, value handle, UUID.
func (p *Peripheral) addCharacteristic(svc *Service, start uint16, d AttributeData) (uint16, bool) {
	if len(d.Value) != 5 && len(d.Value) != 19 {
		p.log.Warnf("characteristic at 0x%04X: bad declaration [ % X ]", d.Handle, d.Value)
		return 0, false
	}
	props := Property(d.Value[0])
	vh := binary.LittleEndian.Uint16(d.Value[1:])
	u, _ := UUIDFromBytes(d.Value[3:])
	_, dup := svc.chars[d.Handle]
	if dup || d.Handle < start || d.Handle > svc.endHandle || vh <= d.Handle || vh > svc.endHandle {
		p.log.Warnf("dropping characteristic %s decl 0x%04X value 0x%04X", u, d.Handle, vh)
		return 0, false
	}
	svc.chars[d.Handle] = newCharacteristic(u, d.Handle, vh, svc.endHandle, props)
	return vh, true
}

// dropBadCharacteristics removes characteristics whose value handle is
// past the next declaration.
func (p *Peripheral) dropBadCharacteristics(svc *Service) {
	for h, c := range svc.chars {
		if c.valueHandle > c.endHandle {
			p.log.Warnf("dropping characteristic %s: value 0x%04X past end 0x%04X", c.uuid, c.valueHandle, c.endHandle)
			delete(svc.chars, h)
		}
	}
	svc.fixEndHandles()
}

// filterCharacteristics drops the characteristics of svc whose UUID is
// not in filter, keeping the end handles of the rest. A nil filter
// keeps all.
func (p *Peripheral) filterCharacteristics(svc *Service, filter []UUID) {
	if filter == nil {
		return
	}
	for h, c := range svc.chars {
		if !Contains(filter, c.uuid) {
			delete(svc.chars, h)
		}
	}
	p.rebuild()
}

func (p *Peripheral) characteristicsDone(svc *Service) {
	if p.characteristicsDiscovered != nil {
		p.characteristicsDiscovered(p, *svc)
	}
	if !p.eager {
		return
	}
	p.fanout++
	for _, c := range svc.sortedChars() {
		if err := p.discoverDescriptors(c); err != nil {
			p.failDiscovery(PhaseDiscoveringDescriptors, err)
			break
		}
	}
	p.fanout--
	p.checkProfile()
}

// DiscoverDescriptors discovers the descriptors of c, replacing any
// known ones. DescriptorsDiscovered reports the result.
func (p *Peripheral) DiscoverDescriptors(c Characteristic) error {
	if p.state != StateConnected {
		return ErrNotConnected
	}
	ch, ok := p.lookupChar(c.handle)
	if !ok {
		return ErrUnknownAttribute
	}
	return p.discoverDescriptors(ch)
}

func (p *Peripheral) discoverDescriptors(c *Characteristic) error {
	if p.busy(opDescriptors, c.handle) {
		return ErrBusy
	}
	c.clearDescriptors()
	p.rebuild()
	if c.valueHandle >= c.endHandle {
		p.descriptorsDone(c)
		return nil
	}
	return p.discoverDescriptorsFrom(c, c.valueHandle+1)
}

func (p *Peripheral) discoverDescriptorsFrom(c *Characteristic, start uint16) error {
	var id RequestID
	var err error
	id, err = p.att.FindInformation(start, c.endHandle, func(dd []InformationData, err error) {
		delete(p.pending, id)
		if cur, ok := p.lookupChar(c.handle); !ok || cur != c {
			return
		}
		if isAttrNotFound(err) {
			p.descriptorsDone(c)
			return
		}
		if err != nil {
			p.failDiscovery(PhaseDiscoveringDescriptors, err)
			return
		}
		next := 0
		for _, d := range dd {
			if isDeclaration(d.UUID) || d.Handle < start || d.Handle > c.endHandle {
				p.log.Warnf("dropping descriptor %s at 0x%04X", d.UUID, d.Handle)
				continue
			}
			c.addDescriptor(Descriptor{uuid: d.UUID, handle: d.Handle})
			next = int(d.Handle) + 1
		}
		p.rebuild()
		if next == 0 || next > int(c.endHandle) {
			p.descriptorsDone(c)
			return
		}
		if err := p.discoverDescriptorsFrom(c, uint16(next)); err != nil {
			p.failDiscovery(PhaseDiscoveringDescriptors, err)
		}
	})
	if err == nil {
		p.pending[id] = pendingOp{kind: opDescriptors, handle: c.handle}
	}
	return err
}

func (p *Peripheral) descriptorsDone(c *Characteristic) {
	if p.descriptorsDiscovered != nil {
		p.descriptorsDiscovered(p, *c)
	}
	p.checkProfile()
}

// checkProfile completes DiscoverProfile once nothing is pending.
func (p *Peripheral) checkProfile() {
	if !p.eager || p.fanout > 0 || p.Phase() != PhaseReady {
		return
	}
	p.eager = false
	p.log.Debugf("profile of %s discovered, %d attributes", p.addr, p.index.Len())
	p.storeProfile()
	if p.profileDiscovered != nil {
		p.profileDiscovered(p)
	}
}
