package gattc

import (
	"io/ioutil"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func testProfile() []Service {
	gap := newService(UUID16(0x1800), 0x0001, 0x0005)
	name := newCharacteristic(UUID16(0x2A00), 0x0002, 0x0003, 0x0005, CharRead|CharNotify)
	name.addDescriptor(Descriptor{uuid: gattAttrClientCharacteristicConfigUUID, handle: 0x0004})
	gap.chars[name.handle] = name

	vendor := newService(MustParseUUID("09fc95c0-c111-11e3-9904-0002a5d5c51b"), 0x0010, 0xffff)
	data := newCharacteristic(MustParseUUID("11fac9e0-c111-11e3-9246-0002a5d5c51b"), 0x0011, 0x0012, 0xffff, CharWrite|CharWriteNR)
	vendor.chars[data.handle] = data
	return []Service{*gap, *vendor}
}

func TestFileCache(t *testing.T) {
	fc, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fc.Load(testAddr); err != ErrNotCached {
		t.Fatalf("empty cache: got %v want %v", err, ErrNotCached)
	}

	want := dumpServices(testProfile())
	if err := fc.Store(testAddr, testProfile()); err != nil {
		t.Fatal(err)
	}
	ss, err := fc.Load(testAddr)
	if err != nil {
		t.Fatal(err)
	}
	if got := dumpServices(ss); got != want {
		t.Errorf("loaded:\ngot\n%s\nwant\n%s", got, want)
	}

	random := BDAddr{HardwareAddr: testAddr.HardwareAddr, Random: true}
	if _, err := fc.Load(random); err != ErrNotCached {
		t.Errorf("random address: got %v want %v", err, ErrNotCached)
	}

	if err := fc.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, err := fc.Load(testAddr); err != ErrNotCached {
		t.Errorf("after Clear: got %v want %v", err, ErrNotCached)
	}
}

// gapWith returns the encoded test profile after f changed its GAP service.
func gapWith(f func(gap Service, name *Characteristic)) []byte {
	ss := testProfile()
	f(ss[0], ss[0].chars[0x0002])
	return marshalProfile(ss)
}

func TestFileCacheCorrupt(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"truncated", []byte{0x0a, 0xff}},
		{"bad uuid", append([]byte{0x0a, 0x03, 0x0a, 0x01, 0x00}, marshalProfile(testProfile())...)},
		{"inverted range", mustHex("0a" + "16" + "0a10" + "00000000000000000000000000000000" + "1005" + "1801")},
		{"value past end", gapWith(func(_ Service, name *Characteristic) {
			name.endHandle = 0x0002
		})},
		{"overlapping characteristics", gapWith(func(gap Service, _ *Characteristic) {
			gap.chars[0x0004] = newCharacteristic(UUID16(0x2A01), 0x0004, 0x0005, 0x0005, CharRead)
		})},
		{"descriptor at value handle", gapWith(func(_ Service, name *Characteristic) {
			name.addDescriptor(Descriptor{uuid: UUID16(0x2901), handle: 0x0003})
		})},
		{"descriptor past end", gapWith(func(_ Service, name *Characteristic) {
			name.addDescriptor(Descriptor{uuid: UUID16(0x2901), handle: 0x0006})
		})},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			fc, err := NewFileCache(t.TempDir())
			if err != nil {
				t.Fatal(err)
			}
			if err := ioutil.WriteFile(fc.path(testAddr), tt.data, 0644); err != nil {
				t.Fatal(err)
			}
			_, err = fc.Load(testAddr)
			if err == nil || err == ErrNotCached {
				t.Fatalf("got %v want a decoding error", err)
			}
			if !strings.Contains(err.Error(), "corrupt profile") {
				t.Errorf("error %q does not name the profile", err)
			}
		})
	}
}

func TestPeripheralProfileCache(t *testing.T) {
	fc, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p1, tr1 := connectedPeripheral(t, Cache(fc))
	discoverGAP(t, p1, tr1)

	p2, tr2 := connectedPeripheral(t, Cache(fc))
	profile := 0
	p2.Handle(ProfileDiscovered(func(*Peripheral) { profile++ }))
	if err := p2.LoadCachedProfile(); err != nil {
		t.Fatal(err)
	}
	if profile != 1 {
		t.Errorf("ProfileDiscovered called %d times", profile)
	}
	if got, want := dumpTree(p2), dumpTree(p1); got != want {
		t.Errorf("tree:\ngot\n%s\nwant\n%s", got, want)
	}
	if p2.Phase() != PhaseReady {
		t.Errorf("phase: got %s want %s", p2.Phase(), PhaseReady)
	}
	if len(tr2.sent) != 0 {
		t.Errorf("unexpected requests %v", tr2.sentHex())
	}

	// The loaded tree is usable.
	s, _ := p2.Service(UUID16(0x1800))
	c, _ := s.Characteristic(UUID16(0x2A00))
	if err := p2.SetNotification(c, true); err != nil {
		t.Fatal(err)
	}
	exchange(t, p2, tr2, "1204000100", "13")
	if !p2.IsNotifying(c) {
		t.Error("not notifying")
	}
}

func TestPeripheralLoadCachedProfileErrors(t *testing.T) {
	p, _ := connectedPeripheral(t)
	if err := p.LoadCachedProfile(); errors.Cause(err) != ErrNotCached {
		t.Errorf("no cache: got %v want %v", err, ErrNotCached)
	}

	fc, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p = NewPeripheral(testAddr, newTestTransport(), Logger(testLogger()), Cache(fc))
	if err := p.LoadCachedProfile(); err != ErrNotConnected {
		t.Errorf("disconnected: got %v want %v", err, ErrNotConnected)
	}

	p, _ = connectedPeripheral(t, Cache(fc))
	if err := p.LoadCachedProfile(); err != ErrNotCached {
		t.Errorf("nothing stored: got %v want %v", err, ErrNotCached)
	}
}
