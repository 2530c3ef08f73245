package gattc

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
)

func TestCentralHandleAdvertisement(t *testing.T) {
	transports := 0
	c := NewCentral(func(BDAddr) Transport {
		transports++
		return newTestTransport()
	}, Logger(testLogger()))

	type report struct {
		addr string
		rssi int
	}
	var reports []report
	c.Handle(PeripheralDiscovered(func(p *Peripheral, rssi int) {
		reports = append(reports, report{p.Address().String(), rssi})
	}))
	c.SetServiceFilter([]UUID{UUID16(0x180D)})

	hrm, _ := ParseBDAddr("11:22:33:44:55:66", false)
	other, _ := ParseBDAddr("11:22:33:44:55:00", true)

	steps := []struct {
		addr BDAddr
		rssi int
		data string
	}{
		{hrm, -70, "02010603020f18"},
		{other, -50, "0201060303aaaa"},
		// A later report may carry the filtered service.
		{hrm, -60, "03020d18"},
		{hrm, -65, ""},
	}
	for i, s := range steps {
		data := mustHex(s.data)
		if err := c.HandleAdvertisement(s.addr, s.rssi, data); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	want := []report{
		{"11:22:33:44:55:66", -60},
		{"11:22:33:44:55:66", -65},
	}
	if fmt.Sprint(reports) != fmt.Sprint(want) {
		t.Errorf("reports: got %v want %v", reports, want)
	}
	if transports != 2 {
		t.Errorf("transports created: got %d want 2", transports)
	}
	p := c.Peripheral(hrm)
	if p.RSSI() != -65 {
		t.Errorf("rssi: got %d want -65", p.RSSI())
	}
	if fmt.Sprint(p.AdvertisedServices()) != fmt.Sprint([]UUID{UUID16(0x180F), UUID16(0x180D)}) {
		t.Errorf("advertised services: got %v", p.AdvertisedServices())
	}
	pp := c.Peripherals()
	if len(pp) != 2 || pp[0].Address().String() != "11:22:33:44:55:00" {
		t.Errorf("peripherals: got %d, first %s", len(pp), pp[0].Address())
	}

	c.SetServiceFilter(nil)
	reports = nil
	if err := c.HandleAdvertisement(other, -40, nil); err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 {
		t.Errorf("unfiltered reports: got %d want 1", len(reports))
	}
	if err := c.HandleAdvertisement(other, -40, mustHex("0509")); errors.Cause(err) != ErrBadAdvertisement {
		t.Errorf("bad data: got %v want %v", err, ErrBadAdvertisement)
	}
	if len(reports) != 1 {
		t.Errorf("bad data reported")
	}
}

func TestCentralPeripheralIdentity(t *testing.T) {
	c := NewCentral(func(BDAddr) Transport { return newTestTransport() }, Logger(testLogger()))
	public, _ := ParseBDAddr("11:22:33:44:55:66", false)
	random, _ := ParseBDAddr("11:22:33:44:55:66", true)
	again, _ := ParseBDAddr("11:22:33:44:55:66", false)
	if c.Peripheral(public) != c.Peripheral(again) {
		t.Error("same address, different peripherals")
	}
	if c.Peripheral(public) == c.Peripheral(random) {
		t.Error("public and random address share a peripheral")
	}
}
