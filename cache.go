package gattc

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// ErrNotCached is returned by a ProfileCache holding no profile for an address.
var ErrNotCached = errors.New("no cached profile")

// A ProfileCache stores discovered attribute trees by device address.
type ProfileCache interface {
	Store(addr BDAddr, ss []Service) error
	Load(addr BDAddr) ([]Service, error)
	Clear() error
}

// FileCache is a ProfileCache keeping one file per device in a directory.
type FileCache struct {
	dir string
}

// NewFileCache returns a FileCache in dir, creating it if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "can't create cache directory")
	}
	return &FileCache{dir: dir}, nil
}

func (fc *FileCache) path(addr BDAddr) string {
	name := strings.Replace(addr.key(), ":", "", -1)
	name = strings.Replace(name, "/", "-", -1)
	return filepath.Join(fc.dir, name+".profile")
}

// Store writes the profile of addr, replacing any previous one.
func (fc *FileCache) Store(addr BDAddr, ss []Service) error {
	tmp := fc.path(addr) + ".tmp"
	if err := ioutil.WriteFile(tmp, marshalProfile(ss), 0644); err != nil {
		return errors.Wrapf(err, "can't store profile of %s", addr)
	}
	return errors.Wrapf(os.Rename(tmp, fc.path(addr)), "can't store profile of %s", addr)
}

// Load reads the profile of addr. It returns ErrNotCached if there is none.
func (fc *FileCache) Load(addr BDAddr) ([]Service, error) {
	b, err := ioutil.ReadFile(fc.path(addr))
	if os.IsNotExist(err) {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, errors.Wrapf(err, "can't load profile of %s", addr)
	}
	ss, err := unmarshalProfile(b)
	return ss, errors.Wrapf(err, "corrupt profile of %s", addr)
}

// Clear removes every stored profile.
func (fc *FileCache) Clear() error {
	mm, err := filepath.Glob(filepath.Join(fc.dir, "*.profile"))
	if err != nil {
		return err
	}
	for _, m := range mm {
		if err := os.Remove(m); err != nil {
			return errors.Wrap(err, "can't clear cache")
		}
	}
	return nil
}

// Profile wire format, protobuf encoded:
//
//	profile:        1 service (repeated)
//	service:        1 uuid, 2 start, 3 end, 4 characteristic (repeated)
//	characteristic: 1 uuid, 2 handle, 3 value handle, 4 end, 5 properties,
//	                6 descriptor (repeated)
//	descriptor:     1 uuid, 2 handle
const (
	profileService protowire.Number = 1

	serviceUUID  protowire.Number = 1
	serviceStart protowire.Number = 2
	serviceEnd   protowire.Number = 3
	serviceChar  protowire.Number = 4

	charUUID   protowire.Number = 1
	charHandle protowire.Number = 2
	charValue  protowire.Number = 3
	charEnd    protowire.Number = 4
	charProps  protowire.Number = 5
	charDesc   protowire.Number = 6

	descUUID   protowire.Number = 1
	descHandle protowire.Number = 2
)

func appendBytesField(b []byte, n protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, n, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendVarintField(b []byte, n protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, n, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func marshalProfile(ss []Service) []byte {
	var b []byte
	for _, s := range ss {
		var sb []byte
		sb = appendBytesField(sb, serviceUUID, s.uuid[:])
		sb = appendVarintField(sb, serviceStart, uint64(s.startHandle))
		sb = appendVarintField(sb, serviceEnd, uint64(s.endHandle))
		for _, c := range s.sortedChars() {
			var cb []byte
			cb = appendBytesField(cb, charUUID, c.uuid[:])
			cb = appendVarintField(cb, charHandle, uint64(c.handle))
			cb = appendVarintField(cb, charValue, uint64(c.valueHandle))
			cb = appendVarintField(cb, charEnd, uint64(c.endHandle))
			cb = appendVarintField(cb, charProps, uint64(c.props))
			for _, d := range c.Descriptors() {
				var db []byte
				db = appendBytesField(db, descUUID, d.uuid[:])
				db = appendVarintField(db, descHandle, uint64(d.handle))
				cb = appendBytesField(cb, charDesc, db)
			}
			sb = appendBytesField(sb, serviceChar, cb)
		}
		b = appendBytesField(b, profileService, sb)
	}
	return b
}

// walkFields calls fn for each field of message b. Bytes fields get
// their payload, varint fields their value; other types are skipped.
func walkFields(b []byte, fn func(n protowire.Number, v []byte, x uint64) error) error {
	for len(b) > 0 {
		n, typ, l := protowire.ConsumeTag(b)
		if l < 0 {
			return protowire.ParseError(l)
		}
		b = b[l:]
		switch typ {
		case protowire.BytesType:
			v, l := protowire.ConsumeBytes(b)
			if l < 0 {
				return protowire.ParseError(l)
			}
			if err := fn(n, v, 0); err != nil {
				return err
			}
			b = b[l:]
		case protowire.VarintType:
			x, l := protowire.ConsumeVarint(b)
			if l < 0 {
				return protowire.ParseError(l)
			}
			if err := fn(n, nil, x); err != nil {
				return err
			}
			b = b[l:]
		default:
			l := protowire.ConsumeFieldValue(n, typ, b)
			if l < 0 {
				return protowire.ParseError(l)
			}
			b = b[l:]
		}
	}
	return nil
}

func decodeUUID(v []byte) (UUID, error) {
	var u UUID
	if len(v) != len(u) {
		return u, errors.Errorf("bad uuid length %d", len(v))
	}
	copy(u[:], v)
	return u, nil
}

func unmarshalProfile(b []byte) ([]Service, error) {
	var ss []Service
	err := walkFields(b, func(n protowire.Number, v []byte, _ uint64) error {
		if n != profileService {
			return nil
		}
		s, err := unmarshalService(v)
		if err != nil {
			return err
		}
		ss = append(ss, *s)
		return nil
	})
	return ss, err
}

func unmarshalService(b []byte) (*Service, error) {
	s := newService(UUID{}, 0, 0)
	var cc []*Characteristic
	err := walkFields(b, func(n protowire.Number, v []byte, x uint64) (err error) {
		switch n {
		case serviceUUID:
			s.uuid, err = decodeUUID(v)
		case serviceStart:
			s.startHandle = uint16(x)
		case serviceEnd:
			s.endHandle = uint16(x)
		case serviceChar:
			var c *Characteristic
			c, err = unmarshalCharacteristic(v)
			cc = append(cc, c)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.startHandle == 0 || s.endHandle < s.startHandle {
		return nil, errors.Errorf("bad service range [0x%04X, 0x%04X]", s.startHandle, s.endHandle)
	}
	prevEnd := s.startHandle
	for _, c := range cc {
		if _, dup := s.chars[c.handle]; dup {
			return nil, errors.Errorf("duplicate characteristic 0x%04X", c.handle)
		}
		s.chars[c.handle] = c
	}
	for _, c := range s.sortedChars() {
		if c.handle <= prevEnd || c.valueHandle <= c.handle || c.endHandle < c.valueHandle || c.endHandle > s.endHandle {
			return nil, errors.Errorf("characteristic 0x%04X [0x%04X, 0x%04X] misplaced in service 0x%04X",
				c.handle, c.valueHandle, c.endHandle, s.startHandle)
		}
		for h := range c.descs {
			if h <= c.valueHandle || h > c.endHandle {
				return nil, errors.Errorf("descriptor 0x%04X outside characteristic 0x%04X", h, c.handle)
			}
		}
		prevEnd = c.endHandle
	}
	return s, nil
}

func unmarshalCharacteristic(b []byte) (*Characteristic, error) {
	c := newCharacteristic(UUID{}, 0, 0, 0, 0)
	err := walkFields(b, func(n protowire.Number, v []byte, x uint64) (err error) {
		switch n {
		case charUUID:
			c.uuid, err = decodeUUID(v)
		case charHandle:
			c.handle = uint16(x)
		case charValue:
			c.valueHandle = uint16(x)
		case charEnd:
			c.endHandle = uint16(x)
		case charProps:
			c.props = Property(x)
		case charDesc:
			var d Descriptor
			d, err = unmarshalDescriptor(v)
			if _, dup := c.descs[d.handle]; err == nil && dup {
				err = errors.Errorf("duplicate descriptor 0x%04X", d.handle)
			}
			if err == nil {
				c.addDescriptor(d)
			}
		}
		return err
	})
	return c, err
}

func unmarshalDescriptor(b []byte) (Descriptor, error) {
	var d Descriptor
	err := walkFields(b, func(n protowire.Number, v []byte, x uint64) (err error) {
		switch n {
		case descUUID:
			d.uuid, err = decodeUUID(v)
		case descHandle:
			d.handle = uint16(x)
		}
		return err
	})
	return d, err
}

func (p *Peripheral) storeProfile() {
	if p.cache == nil {
		return
	}
	if err := p.cache.Store(p.addr, p.Services()); err != nil {
		p.log.WithError(err).Warn("can't cache profile")
	}
}

// LoadCachedProfile replaces the attribute tree with the profile cached
// for the peripheral, as if DiscoverProfile had completed. The
// peripheral must be connected.
func (p *Peripheral) LoadCachedProfile() error {
	if p.state != StateConnected {
		return ErrNotConnected
	}
	if p.cache == nil {
		return ErrNotCached
	}
	if len(p.pending) > 0 {
		return ErrBusy
	}
	ss, err := p.cache.Load(p.addr)
	if err != nil {
		return err
	}
	p.clearTree()
	for i := range ss {
		s := ss[i]
		if p.overlaps(s.startHandle, s.endHandle) {
			p.clearTree()
			return errors.Errorf("cached service 0x%04X overlaps", s.startHandle)
		}
		p.services[s.startHandle] = &s
		p.rebuild()
	}
	p.discovered = true
	p.log.WithField("services", len(ss)).Debug("profile loaded from cache")
	if p.profileDiscovered != nil {
		p.profileDiscovered(p)
	}
	return nil
}
