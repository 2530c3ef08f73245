package gattc

import (
	"sort"

	"github.com/sirupsen/logrus"
)

// centralHandler is the handlers(callbacks) of the Central.
type centralHandler struct {
	// peripheralDiscovered is called when an advertisement passing the
	// service filter is handled.
	peripheralDiscovered func(p *Peripheral, rssi int)
}

type centralHandlerFunc func(*Central)

// PeripheralDiscovered sets a function to be called when a remote
// peripheral advertising a filtered service is seen.
func PeripheralDiscovered(f func(*Peripheral, int)) centralHandlerFunc {
	return func(c *Central) { c.peripheralDiscovered = f }
}

// A Central keeps one Peripheral per device address seen by a scanner.
// Scanning itself happens elsewhere; results are fed to HandleAdvertisement.
type Central struct {
	centralHandler

	newTransport func(BDAddr) Transport
	cfg          config
	log          logrus.FieldLogger

	peripherals map[string]*Peripheral
	filter      []UUID
}

// NewCentral returns a Central. newTransport is called once per
// peripheral to create the transport its connections use. The options
// apply to every peripheral the Central creates.
func NewCentral(newTransport func(BDAddr) Transport, opts ...Option) *Central {
	cfg := defaultConfig()
	cfg.apply(opts)
	return &Central{
		newTransport: newTransport,
		cfg:          cfg,
		log:          cfg.log,
		peripherals:  make(map[string]*Peripheral),
	}
}

// Handle registers the specified handlers.
func (c *Central) Handle(hh ...centralHandlerFunc) {
	for _, h := range hh {
		h(c)
	}
}

// Peripheral returns the peripheral at addr, creating it if needed.
func (c *Central) Peripheral(addr BDAddr) *Peripheral {
	if p, ok := c.peripherals[addr.key()]; ok {
		return p
	}
	p := newPeripheral(addr, c.newTransport(addr), c.cfg)
	c.peripherals[addr.key()] = p
	c.log.WithField("addr", addr.String()).Debug("new peripheral")
	return p
}

// Peripherals returns the known peripherals ordered by address.
func (c *Central) Peripherals() []*Peripheral {
	pp := make([]*Peripheral, 0, len(c.peripherals))
	for _, p := range c.peripherals {
		pp = append(pp, p)
	}
	sort.Slice(pp, func(i, j int) bool { return pp[i].addr.key() < pp[j].addr.key() })
	return pp
}

// SetServiceFilter limits PeripheralDiscovered to peripherals
// advertising at least one of uu. An empty filter passes everything.
func (c *Central) SetServiceFilter(uu []UUID) {
	c.filter = append([]UUID(nil), uu...)
}

func (c *Central) passes(p *Peripheral) bool {
	if len(c.filter) == 0 {
		return true
	}
	for _, u := range c.filter {
		if p.AdvertisesService(u) {
			return true
		}
	}
	return false
}

// HandleAdvertisement merges an advertising report into the peripheral
// at addr and reports it through PeripheralDiscovered if it passes the
// service filter. Malformed data is reported and not merged.
func (c *Central) HandleAdvertisement(addr BDAddr, rssi int, data []byte) error {
	p := c.Peripheral(addr)
	p.rssi = rssi
	if len(data) > 0 {
		if err := p.ParseEIR(data); err != nil {
			p.log.WithError(err).Warnf("bad advertisement [ % X ]", data)
			return err
		}
	}
	if c.passes(p) && c.peripheralDiscovered != nil {
		c.peripheralDiscovered(p, rssi)
	}
	return nil
}
