package gattc

import "sort"

// A Service is a primary service discovered on a peripheral.
// Values returned by a Peripheral are snapshots of its attribute tree.
type Service struct {
	uuid        UUID
	startHandle uint16
	endHandle   uint16
	chars       map[uint16]*Characteristic // by declaration handle
}

func newService(u UUID, start, end uint16) *Service {
	return &Service{
		uuid:        u,
		startHandle: start,
		endHandle:   end,
		chars:       make(map[uint16]*Characteristic),
	}
}

// UUID returns the service's UUID.
func (s Service) UUID() UUID { return s.uuid }

// StartHandle returns the handle of the service declaration.
func (s Service) StartHandle() uint16 { return s.startHandle }

// EndHandle returns the last handle of the service.
func (s Service) EndHandle() uint16 { return s.endHandle }

// Characteristics returns the discovered characteristics ordered by handle.
func (s Service) Characteristics() []Characteristic {
	cc := make([]Characteristic, 0, len(s.chars))
	for _, c := range s.sortedChars() {
		cc = append(cc, *c)
	}
	return cc
}

// Characteristic returns the first characteristic with UUID u.
func (s Service) Characteristic(u UUID) (Characteristic, bool) {
	for _, c := range s.sortedChars() {
		if c.uuid == u {
			return *c, true
		}
	}
	return Characteristic{}, false
}

func (s Service) sortedChars() []*Characteristic {
	cc := make([]*Characteristic, 0, len(s.chars))
	for _, c := range s.chars {
		cc = append(cc, c)
	}
	sort.Slice(cc, func(i, j int) bool { return cc[i].handle < cc[j].handle })
	return cc
}

// fixEndHandles sets each characteristic's end handle to the handle
// before the next declaration, and the last one's to the service end.
func (s *Service) fixEndHandles() {
	cc := s.sortedChars()
	for i, c := range cc {
		if i+1 < len(cc) {
			c.endHandle = cc[i+1].handle - 1
		} else {
			c.endHandle = s.endHandle
		}
	}
}
