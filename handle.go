package gattc

import "sort"

type handleType int

const (
	typService handleType = iota
	typCharacteristic
	typCharacteristicValue
	typDescriptor
)

func (t handleType) String() string {
	switch t {
	case typService:
		return "service"
	case typCharacteristic:
		return "characteristic"
	case typCharacteristicValue:
		return "characteristicValue"
	case typDescriptor:
		return "descriptor"
	}
	return "unknown"
}

// handle is one attribute of the discovered tree, with the
// handles of the service and characteristic that own it.
type handle struct {
	n       uint16
	typ     handleType
	uuid    UUID
	service uint16 // start handle of the owning service
	char    uint16 // declaration handle of the owning characteristic; 0 for services
}

// A handleRange is the sorted list of known attribute handles.
// It is rebuilt from the tree after every mutation, never patched.
type handleRange struct {
	hh []handle
}

func buildHandleRange(svcs map[uint16]*Service) *handleRange {
	var hh []handle
	for _, s := range svcs {
		hh = append(hh, handle{n: s.startHandle, typ: typService, uuid: s.uuid, service: s.startHandle})
		for _, c := range s.chars {
			hh = append(hh,
				handle{n: c.handle, typ: typCharacteristic, uuid: gattAttrCharacteristicUUID, service: s.startHandle, char: c.handle},
				handle{n: c.valueHandle, typ: typCharacteristicValue, uuid: c.uuid, service: s.startHandle, char: c.handle},
			)
			for _, d := range c.descs {
				hh = append(hh, handle{n: d.handle, typ: typDescriptor, uuid: d.uuid, service: s.startHandle, char: c.handle})
			}
		}
	}
	sort.Slice(hh, func(i, j int) bool { return hh[i].n < hh[j].n })
	return &handleRange{hh: hh}
}

// idx returns the index of the first handle >= n.
func (r *handleRange) idx(n int) int {
	return sort.Search(len(r.hh), func(i int) bool { return int(r.hh[i].n) >= n })
}

// At returns handle n.
func (r *handleRange) At(n uint16) (h handle, ok bool) {
	i := r.idx(int(n))
	if i == len(r.hh) || r.hh[i].n != n {
		return handle{}, false
	}
	return r.hh[i], true
}

// Subrange returns handles in range [start, end]; it may
// return an empty slice. Subrange does not panic for
// out-of-range start or end.
func (r *handleRange) Subrange(start, end uint16) []handle {
	if start > end {
		return []handle{}
	}
	return r.hh[r.idx(int(start)):r.idx(int(end)+1)] // [start, end] includes its upper bound!
}

// Len returns the number of known attributes.
func (r *handleRange) Len() int { return len(r.hh) }
