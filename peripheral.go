package gattc

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"
)

// State is the connection state of a Peripheral.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	str := []string{
		"Disconnected",
		"Connecting",
		"Connected",
	}
	return str[int(s)]
}

// Phase is the discovery phase of a Peripheral.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDiscoveringServices
	PhaseDiscoveringCharacteristics
	PhaseDiscoveringDescriptors
	PhaseReady
)

func (p Phase) String() string {
	str := []string{
		"Idle",
		"DiscoveringServices",
		"DiscoveringCharacteristics",
		"DiscoveringDescriptors",
		"Ready",
	}
	return str[int(p)]
}

// peripheralHandler is the handlers(callbacks) of the Peripheral.
type peripheralHandler struct {
	connected    func(p *Peripheral)
	disconnected func(p *Peripheral, err error)
	nameChanged  func(p *Peripheral, name string)

	servicesDiscovered        func(p *Peripheral, ss []Service)
	characteristicsDiscovered func(p *Peripheral, s Service)
	descriptorsDiscovered     func(p *Peripheral, c Characteristic)
	profileDiscovered         func(p *Peripheral)
	discoveryFailed           func(p *Peripheral, phase Phase, err error)

	valueUpdated             func(p *Peripheral, c Characteristic, v []byte)
	descriptorValueUpdated   func(p *Peripheral, d Descriptor, v []byte)
	characteristicWritten    func(p *Peripheral, c Characteristic, err error)
	descriptorWritten        func(p *Peripheral, d Descriptor, err error)
	notificationStateChanged func(p *Peripheral, c Characteristic, enabled bool, err error)
}

type handler func(*Peripheral)

// Handle registers the specified handlers.
func (p *Peripheral) Handle(hh ...handler) {
	for _, h := range hh {
		h(p)
	}
}

// PeripheralConnected sets a function to be called when the peripheral is connected.
func PeripheralConnected(f func(*Peripheral)) handler {
	return func(p *Peripheral) { p.connected = f }
}

// PeripheralDisconnected sets a function to be called when the peripheral is
// disconnected. The attribute tree has been cleared when it runs.
func PeripheralDisconnected(f func(*Peripheral, error)) handler {
	return func(p *Peripheral) { p.disconnected = f }
}

// NameChanged sets a function to be called when the peripheral's name changes.
func NameChanged(f func(*Peripheral, string)) handler {
	return func(p *Peripheral) { p.nameChanged = f }
}

// ServicesDiscovered sets a function to be called when service discovery completes.
func ServicesDiscovered(f func(*Peripheral, []Service)) handler {
	return func(p *Peripheral) { p.servicesDiscovered = f }
}

// CharacteristicsDiscovered sets a function to be called when the
// characteristics of a service have been discovered.
func CharacteristicsDiscovered(f func(*Peripheral, Service)) handler {
	return func(p *Peripheral) { p.characteristicsDiscovered = f }
}

// DescriptorsDiscovered sets a function to be called when the
// descriptors of a characteristic have been discovered.
func DescriptorsDiscovered(f func(*Peripheral, Characteristic)) handler {
	return func(p *Peripheral) { p.descriptorsDiscovered = f }
}

// ProfileDiscovered sets a function to be called when DiscoverProfile
// has walked the whole attribute tree, or a cached tree was loaded.
func ProfileDiscovered(f func(*Peripheral)) handler {
	return func(p *Peripheral) { p.profileDiscovered = f }
}

// DiscoveryFailed sets a function to be called when a discovery phase
// ends with an error. Attributes discovered so far stay valid.
func DiscoveryFailed(f func(*Peripheral, Phase, error)) handler {
	return func(p *Peripheral) { p.discoveryFailed = f }
}

// ValueUpdated sets a function to be called when a characteristic value
// is read, notified or indicated.
func ValueUpdated(f func(*Peripheral, Characteristic, []byte)) handler {
	return func(p *Peripheral) { p.valueUpdated = f }
}

// DescriptorValueUpdated sets a function to be called when a descriptor value is read.
func DescriptorValueUpdated(f func(*Peripheral, Descriptor, []byte)) handler {
	return func(p *Peripheral) { p.descriptorValueUpdated = f }
}

// CharacteristicWritten sets a function to be called when a characteristic
// write with response completes.
func CharacteristicWritten(f func(*Peripheral, Characteristic, error)) handler {
	return func(p *Peripheral) { p.characteristicWritten = f }
}

// DescriptorWritten sets a function to be called when a descriptor write completes.
func DescriptorWritten(f func(*Peripheral, Descriptor, error)) handler {
	return func(p *Peripheral) { p.descriptorWritten = f }
}

// NotificationStateChanged sets a function to be called when a
// SetNotification write completes.
func NotificationStateChanged(f func(*Peripheral, Characteristic, bool, error)) handler {
	return func(p *Peripheral) { p.notificationStateChanged = f }
}

type opKind int

const (
	opServices opKind = iota
	opCharacteristics
	opDescriptors
	opSetNotify
)

// pendingOp is the entity a request in flight is about.
type pendingOp struct {
	kind   opKind
	handle uint16 // service start, characteristic declaration
}

// A Peripheral is a remote device in the central role's view: its
// advertised data, its connection and its discovered attribute tree.
// Like the Client it wraps, a Peripheral is driven by one goroutine.
type Peripheral struct {
	peripheralHandler

	addr  BDAddr
	att   *Client
	log   logrus.FieldLogger
	cache ProfileCache
	state State

	name             string
	nameComplete     bool
	advServices      []UUID
	servicesComplete bool
	adv              *Advertisement
	rssi             int

	services     map[uint16]*Service // by start handle
	serviceUUIDs map[UUID][]uint16
	index        *handleRange

	pending    map[RequestID]pendingOp
	discovered bool // primary services are known
	eager      bool // DiscoverProfile in progress
	fanout     int  // >0 while eager discovery submits requests
	subscribed map[uint16]bool
}

// NewPeripheral returns a Peripheral at addr reached through transport t.
func NewPeripheral(addr BDAddr, t Transport, opts ...Option) *Peripheral {
	cfg := defaultConfig()
	cfg.apply(opts)
	return newPeripheral(addr, t, cfg)
}

func newPeripheral(addr BDAddr, t Transport, cfg config) *Peripheral {
	log := cfg.log.WithField("addr", addr.String())
	cfg.log = log
	p := &Peripheral{
		addr:  addr,
		att:   newClient(t, cfg),
		log:   log,
		cache: cfg.cache,
		rssi:  -1,
	}
	p.clearTree()
	p.att.Connected = p.handleConnected
	p.att.Disconnected = p.handleDisconnected
	p.att.Subscribe(p.handleValue)
	return p
}

// Address returns the peripheral's device address.
func (p *Peripheral) Address() BDAddr { return p.addr }

// Name returns the advertised or read device name.
func (p *Peripheral) Name() string { return p.name }

// RSSI returns the last RSSI measurement, or -1 if there have not been any.
func (p *Peripheral) RSSI() int { return p.rssi }

// State returns the connection state.
func (p *Peripheral) State() State { return p.state }

// Client returns the attribute protocol client of the peripheral.
func (p *Peripheral) Client() *Client { return p.att }

// MTU returns the current connection MTU.
func (p *Peripheral) MTU() int { return p.att.MTU() }

// Connect starts connecting; PeripheralConnected reports success.
func (p *Peripheral) Connect() error {
	if err := p.att.Connect(p.addr); err != nil {
		return err
	}
	if p.state == StateDisconnected {
		p.state = StateConnecting
	}
	return nil
}

// Disconnect closes the connection.
func (p *Peripheral) Disconnect() error {
	if p.state == StateDisconnected {
		return nil
	}
	return p.att.Close()
}

// Serve drives the peripheral's connection until ctx is done.
func (p *Peripheral) Serve(ctx context.Context) error { return p.att.Serve(ctx) }

// Pump handles every ready transport event without blocking.
func (p *Peripheral) Pump() int { return p.att.Pump() }

// Post runs fn on the goroutine driving the peripheral.
func (p *Peripheral) Post(fn func()) { p.att.Post(fn) }

func (p *Peripheral) handleConnected() {
	p.state = StateConnected
	p.clearTree()
	if p.connected != nil {
		p.connected(p)
	}
}

func (p *Peripheral) handleDisconnected(err error) {
	p.state = StateDisconnected
	p.clearTree()
	if p.disconnected != nil {
		p.disconnected(p, err)
	}
}

// clearTree drops the whole attribute tree and every discovery in
// progress. It is the only way nodes are removed.
func (p *Peripheral) clearTree() {
	p.services = make(map[uint16]*Service)
	p.pending = make(map[RequestID]pendingOp)
	p.subscribed = make(map[uint16]bool)
	p.discovered = false
	p.eager = false
	p.rebuild()
}

// rebuild recomputes the secondary indices from the tree.
func (p *Peripheral) rebuild() {
	p.index = buildHandleRange(p.services)
	p.serviceUUIDs = make(map[UUID][]uint16)
	for _, s := range p.sortedServices() {
		p.serviceUUIDs[s.uuid] = append(p.serviceUUIDs[s.uuid], s.startHandle)
	}
}

func (p *Peripheral) sortedServices() []*Service {
	ss := make([]*Service, 0, len(p.services))
	for _, s := range p.services {
		ss = append(ss, s)
	}
	sort.Slice(ss, func(i, j int) bool { return ss[i].startHandle < ss[j].startHandle })
	return ss
}

// Services returns the discovered services ordered by handle.
func (p *Peripheral) Services() []Service {
	ss := make([]Service, 0, len(p.services))
	for _, s := range p.sortedServices() {
		ss = append(ss, *s)
	}
	return ss
}

// Service returns the first service with UUID u.
func (p *Peripheral) Service(u UUID) (Service, bool) {
	hh := p.serviceUUIDs[u]
	if len(hh) == 0 {
		return Service{}, false
	}
	return *p.services[hh[0]], true
}

// Phase returns the discovery phase.
func (p *Peripheral) Phase() Phase {
	var svcs, chars, descs bool
	for _, op := range p.pending {
		switch op.kind {
		case opServices:
			svcs = true
		case opCharacteristics:
			chars = true
		case opDescriptors:
			descs = true
		}
	}
	switch {
	case svcs:
		return PhaseDiscoveringServices
	case chars:
		return PhaseDiscoveringCharacteristics
	case descs:
		return PhaseDiscoveringDescriptors
	case p.discovered:
		return PhaseReady
	}
	return PhaseIdle
}

// lookupService returns the service starting at h.
func (p *Peripheral) lookupService(h uint16) (*Service, bool) {
	s, ok := p.services[h]
	return s, ok
}

// lookupChar returns the characteristic declared at h.
func (p *Peripheral) lookupChar(h uint16) (*Characteristic, bool) {
	at, ok := p.index.At(h)
	if !ok || at.typ != typCharacteristic {
		return nil, false
	}
	return p.services[at.service].chars[at.char], true
}

// lookupDesc returns the descriptor at h and its characteristic.
func (p *Peripheral) lookupDesc(h uint16) (Descriptor, *Characteristic, bool) {
	at, ok := p.index.At(h)
	if !ok || at.typ != typDescriptor {
		return Descriptor{}, nil, false
	}
	c := p.services[at.service].chars[at.char]
	return c.descs[h], c, true
}

func (p *Peripheral) handleValue(h uint16, v []byte, ind bool) {
	at, ok := p.index.At(h)
	if !ok {
		p.log.Warnf("value for unknown handle 0x%04X", h)
		return
	}
	c := p.services[at.service].chars[at.char]
	switch at.typ {
	case typCharacteristicValue:
		if p.valueUpdated != nil {
			p.valueUpdated(p, *c, v)
		}
	case typDescriptor:
		if p.descriptorValueUpdated != nil {
			p.descriptorValueUpdated(p, c.descs[h], v)
		}
	default:
		p.log.Warnf("value for %s handle 0x%04X", at.typ, h)
	}
}

func (p *Peripheral) setName(name string, complete bool) {
	if !complete && p.nameComplete {
		return
	}
	p.nameComplete = p.nameComplete || complete
	if name == p.name {
		return
	}
	p.name = name
	if p.nameChanged != nil {
		p.nameChanged(p, name)
	}
}

// ParseEIR merges advertising or scan response data into the
// peripheral. A complete local name takes precedence over a shortened
// one; a complete service list replaces the advertised services.
func (p *Peripheral) ParseEIR(b []byte) error {
	a := &Advertisement{}
	if err := a.unmarshal(b, p.log); err != nil {
		return err
	}
	p.adv = a
	if a.LocalName != "" {
		p.setName(a.LocalName, a.NameComplete)
	}
	switch {
	case a.ServicesComplete:
		p.advServices = append([]UUID(nil), a.Services...)
		p.servicesComplete = true
	case !p.servicesComplete:
		for _, u := range a.Services {
			if !Contains(p.advServices, u) {
				p.advServices = append(p.advServices, u)
			}
		}
	}
	return nil
}

// Advertisement returns the last parsed advertisement, or nil.
func (p *Peripheral) Advertisement() *Advertisement { return p.adv }

// AdvertisedServices returns the service UUIDs seen in advertisements.
func (p *Peripheral) AdvertisedServices() []UUID {
	return append([]UUID(nil), p.advServices...)
}

// AdvertisesService reports whether u was seen in an advertisement.
func (p *Peripheral) AdvertisesService(u UUID) bool {
	return Contains(p.advServices, u)
}
