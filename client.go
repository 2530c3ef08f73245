package gattc

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// A RequestID identifies a submitted request. IDs start at 1 and are
// never reused by a Client.
type RequestID uint64

type request struct {
	id        RequestID
	op        byte
	pdu       []byte
	fn        func(b []byte, err error)
	cancelled bool // transmitted, then cancelled: consume the response silently
}

type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
	stateClosing
)

// A NotificationHandler receives notifications and indications.
type NotificationHandler func(h uint16, value []byte, indication bool)

// A Client is the client side of the attribute protocol on one
// transport. It keeps a FIFO of requests of which at most one is
// outstanding on the wire, correlates responses with it, and
// dispatches notifications and indications.
//
// A Client is not safe for concurrent use. Drive it from a single
// goroutine with Serve, Pump or HandleEvent; other goroutines hand
// work to that goroutine with Post.
type Client struct {
	// Connected is called once the transport is connected.
	Connected func()

	// Disconnected is called once the connection is gone, after every
	// pending request has been completed with an error.
	Disconnected func(err error)

	t       Transport
	log     logrus.FieldLogger
	rxMTU   uint16
	mtu     uint16
	timeout time.Duration
	now     func() time.Time

	state  connState
	nextID RequestID
	queue  []*request
	sent   bool // queue[0] is on the wire
	sentAt time.Time
	hold   int // >0 while transmissions are deferred

	closing  bool // teardown deferred until hold drops to 0
	closeErr error

	subs []NotificationHandler // nil entries are cancelled subscribers

	posts chan func()
}

// NewClient returns a Client using transport t.
func NewClient(t Transport, opts ...Option) *Client {
	cfg := defaultConfig()
	cfg.apply(opts)
	return newClient(t, cfg)
}

func newClient(t Transport, cfg config) *Client {
	return &Client{
		t:       t,
		log:     cfg.log,
		rxMTU:   cfg.rxMTU,
		mtu:     DefaultMTU,
		timeout: cfg.timeout,
		now:     time.Now,
		posts:   make(chan func(), 16),
	}
}

// MTU returns the working ATT_MTU.
func (c *Client) MTU() int { return int(c.mtu) }

// IsConnected reports whether requests can be submitted.
func (c *Client) IsConnected() bool { return c.state == stateConnected }

// Connect starts connecting to addr on the ATT channel. It is a no-op
// while connecting or connected.
func (c *Client) Connect(addr BDAddr) error {
	c.settle()
	switch c.state {
	case stateConnecting, stateConnected:
		return nil
	case stateClosing:
		return ErrClosing
	}
	c.state = stateConnecting
	if err := c.t.Connect(addr, attCID); err != nil {
		c.state = stateDisconnected
		return err
	}
	return nil
}

// Close disconnects. Pending requests complete with ErrDisconnected
// and Disconnected runs before Close returns, or, when Close is called
// from a completion or subscriber, once that returns.
func (c *Client) Close() error {
	if c.state == stateDisconnected {
		return nil
	}
	c.state = stateClosing
	err := c.t.Close()
	c.abort(nil)
	c.settle()
	return err
}

// abort ends the connection without waiting for the transport to
// report it. The teardown itself is left to settle.
func (c *Client) abort(err error) {
	if c.state == stateDisconnected {
		return
	}
	c.state = stateClosing
	if !c.closing {
		c.closing, c.closeErr = true, err
	}
}

// settle runs an aborted connection's teardown unless a completion or
// subscriber is running.
func (c *Client) settle() bool {
	if !c.closing || c.hold > 0 {
		return false
	}
	c.HandleDisconnected(c.closeErr)
	return true
}

// release ends a hold and runs what it deferred.
func (c *Client) release() {
	c.hold--
	if !c.settle() {
		c.kick()
	}
}

// Subscribe registers fn for every notification and indication.
// Subscribers run in registration order. Calling the returned function
// removes fn.
func (c *Client) Subscribe(fn NotificationHandler) (cancel func()) {
	i := len(c.subs)
	c.subs = append(c.subs, fn)
	return func() { c.subs[i] = nil }
}

// SubmitRequest queues a request PDU made of op and payload. The
// request is transmitted once every earlier request has been answered.
// fn receives the response parameters, or an error: an AttError for an
// Error Response, ErrDisconnected or ErrTimeout.
func (c *Client) SubmitRequest(op byte, payload []byte, fn func(b []byte, err error)) (RequestID, error) {
	pdu := append([]byte{op}, payload...)
	if len(pdu) > int(c.mtu) {
		return 0, ErrPDUTooLong
	}
	return c.submit(op, pdu, fn)
}

func (c *Client) submit(op byte, pdu []byte, fn func([]byte, error)) (RequestID, error) {
	if c.state != stateConnected {
		return 0, ErrNotConnected
	}
	c.nextID++
	r := &request{id: c.nextID, op: op, pdu: pdu, fn: fn}
	c.queue = append(c.queue, r)
	c.kick()
	return r.id, nil
}

// CancelRequest removes a queued request; its completion is never
// called. If the request is already on the wire, its completion is
// suppressed and its response is still consumed. Unknown IDs are ignored.
func (c *Client) CancelRequest(id RequestID) {
	for i, r := range c.queue {
		if r.id != id {
			continue
		}
		if i == 0 && c.sent {
			r.cancelled = true
			return
		}
		c.queue = append(c.queue[:i], c.queue[i+1:]...)
		return
	}
}

// Pending returns the number of queued and outstanding requests.
func (c *Client) Pending() int { return len(c.queue) }

// SendCommand transmits a command PDU immediately. Commands get no response.
func (c *Client) SendCommand(op byte, payload []byte) error {
	if c.state != stateConnected {
		return ErrNotConnected
	}
	pdu := append([]byte{op}, payload...)
	if len(pdu) > int(c.mtu) {
		return ErrPDUTooLong
	}
	return c.send(pdu)
}

// send transmits b. A failed transmission aborts the connection.
func (c *Client) send(b []byte) error {
	c.log.Debugf("W: [ % X ]", b)
	if err := c.t.Send(b); err != nil {
		c.log.WithError(err).Warn("send failed")
		if cerr := c.t.Close(); cerr != nil {
			c.log.WithError(cerr).Debug("close after send failure")
		}
		c.abort(err)
		return err
	}
	return nil
}

// kick transmits the head of the queue unless it is already on the
// wire or transmissions are held.
func (c *Client) kick() {
	if c.hold > 0 || c.sent || len(c.queue) == 0 || c.state != stateConnected {
		return
	}
	r := c.queue[0]
	c.sent = true
	c.sentAt = c.now()
	c.send(r.pdu)
}

// HandleEvent feeds a transport event to the client.
func (c *Client) HandleEvent(ev Event) {
	c.settle()
	switch ev.Type {
	case EventConnected:
		c.HandleConnected()
	case EventDisconnected:
		c.HandleDisconnected(ev.Err)
	case EventReadable:
		for b := c.t.Receive(); b != nil; b = c.t.Receive() {
			c.HandlePDU(b)
		}
	}
}

// HandleConnected marks the client connected and starts the MTU
// exchange. It is ignored unless the client is connecting.
func (c *Client) HandleConnected() {
	if c.state != stateConnecting {
		c.log.Debugf("ignoring connect event in state %d", c.state)
		return
	}
	c.state = stateConnected
	c.mtu = DefaultMTU
	c.log.Info("connected")
	if _, err := c.ExchangeMTU(c.rxMTU, nil); err != nil {
		c.log.WithError(err).Warn("mtu exchange")
	}
	if c.Connected != nil {
		c.Connected()
	}
}

// HandleDisconnected completes every pending request with
// ErrDisconnected and resets the client.
func (c *Client) HandleDisconnected(err error) {
	if c.state == stateDisconnected {
		return
	}
	c.state = stateDisconnected
	c.closing, c.closeErr = false, nil
	c.log.WithError(err).Info("disconnected")
	c.fail(ErrDisconnected)
	c.mtu = DefaultMTU
	if c.Disconnected != nil {
		c.Disconnected(err)
	}
}

func (c *Client) fail(err error) {
	q := c.queue
	c.queue = nil
	c.sent = false
	for _, r := range q {
		if !r.cancelled && r.fn != nil {
			r.fn(nil, err)
		}
	}
}

// HandlePDU processes one PDU received from the transport.
func (c *Client) HandlePDU(b []byte) {
	c.log.Debugf("R: [ % X ]", b)
	if len(b) == 0 {
		return
	}
	switch b[0] {
	case attOpHandleNotify:
		h, v, ok := parseHandleValue(b[1:])
		if !ok {
			c.log.Warnf("malformed notification [ % X ]", b)
			return
		}
		c.dispatch(h, v, false)
		return
	case attOpHandleInd:
		h, v, ok := parseHandleValue(b[1:])
		if !ok {
			c.log.Warnf("malformed indication [ % X ]", b)
			return
		}
		c.hold++
		c.dispatch(h, v, true)
		if c.state == stateConnected {
			c.send(encodeConfirmation())
		}
		c.release()
		return
	}

	if len(c.queue) == 0 || !c.sent {
		c.log.Warnf("unexpected pdu [ % X ]", b)
		return
	}
	r := c.queue[0]
	var resp []byte
	var err error
	switch {
	case b[0] == attRespFor[r.op]:
		resp = b[1:]
	case b[0] == attOpError:
		e, ok := parseErrorResponse(b[1:])
		if !ok || e.opcode != r.op {
			c.log.Warnf("unmatched error response [ % X ]", b)
			return
		}
		err = e
	default:
		c.log.Warnf("unmatched pdu 0x%02X for request 0x%02X", b[0], r.op)
		return
	}

	c.queue = c.queue[1:]
	c.sent = false
	c.hold++
	if !r.cancelled && r.fn != nil {
		r.fn(resp, err)
	}
	c.release()
}

func (c *Client) dispatch(h uint16, v []byte, ind bool) {
	n := 0
	for _, fn := range c.subs {
		if fn != nil {
			fn(h, v, ind)
			n++
		}
	}
	if n == 0 {
		c.log.Debugf("no subscriber for handle 0x%04X", h)
	}
}

// Deadline returns the time the outstanding request times out.
func (c *Client) Deadline() (time.Time, bool) {
	if c.timeout <= 0 || !c.sent || len(c.queue) == 0 || c.state != stateConnected {
		return time.Time{}, false
	}
	return c.sentAt.Add(c.timeout), true
}

// expire applies the transaction timeout at time now. An expired
// transaction leaves the bearer unusable: every pending request fails
// and the transport is closed.
func (c *Client) expire(now time.Time) bool {
	d, ok := c.Deadline()
	if !ok || now.Before(d) {
		return false
	}
	c.log.WithField("opcode", c.queue[0].op).Warn("request timed out")
	c.state = stateClosing
	c.fail(ErrTimeout)
	if err := c.t.Close(); err != nil {
		c.log.WithError(err).Warn("close after timeout")
	}
	c.abort(ErrTimeout)
	c.settle()
	return true
}

// Post hands fn to the goroutine driving the client.
func (c *Client) Post(fn func()) {
	c.posts <- fn
}

// Pump handles every event and posted function that is ready, without
// blocking, and applies aborts and the request timeout. It returns the number of
// events and functions handled.
func (c *Client) Pump() int {
	n := 0
	for {
		select {
		case ev, ok := <-c.t.Events():
			if !ok {
				return n
			}
			c.HandleEvent(ev)
		case fn := <-c.posts:
			fn()
		default:
			if c.settle() || c.expire(c.now()) {
				n++
				continue
			}
			return n
		}
		n++
	}
}

// Serve drives the client until ctx is done or the transport's
// event channel is closed.
func (c *Client) Serve(ctx context.Context) error {
	for {
		c.settle()
		var timeout <-chan time.Time
		var timer *time.Timer
		if d, ok := c.Deadline(); ok {
			timer = time.NewTimer(d.Sub(c.now()))
			timeout = timer.C
		}
		select {
		case <-ctx.Done():
			stopTimer(timer)
			return ctx.Err()
		case ev, ok := <-c.t.Events():
			if !ok {
				stopTimer(timer)
				return nil
			}
			c.HandleEvent(ev)
		case fn := <-c.posts:
			fn()
		case <-timeout:
			c.expire(c.now())
		}
		stopTimer(timer)
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
