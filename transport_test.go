package gattc

import (
	"encoding/hex"
	"io/ioutil"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

// testTransport is an in-memory Transport. Sent PDUs are recorded;
// received PDUs are queued with push and announced with EventReadable.
// With sendErr set every Send fails; a silent transport reports no
// event when closed.
type testTransport struct {
	addr     BDAddr
	cid      uint16
	sent     [][]byte
	inbox    [][]byte
	events   chan Event
	connects int
	closed   int
	sendErr  error
	silent   bool
}

func newTestTransport() *testTransport {
	return &testTransport{events: make(chan Event, 64)}
}

func (t *testTransport) Connect(addr BDAddr, cid uint16) error {
	t.addr, t.cid = addr, cid
	t.connects++
	return nil
}

func (t *testTransport) Send(b []byte) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	t.sent = append(t.sent, append([]byte(nil), b...))
	return nil
}

func (t *testTransport) Receive() []byte {
	if len(t.inbox) == 0 {
		return nil
	}
	b := t.inbox[0]
	t.inbox = t.inbox[1:]
	return b
}

func (t *testTransport) Close() error {
	t.closed++
	if !t.silent {
		t.events <- Event{Type: EventDisconnected}
	}
	return nil
}

func (t *testTransport) Events() <-chan Event { return t.events }

// push queues hex-encoded PDUs and signals readability.
func (t *testTransport) push(pdus ...string) {
	for _, s := range pdus {
		b, err := hex.DecodeString(s)
		if err != nil {
			panic(err)
		}
		t.inbox = append(t.inbox, b)
	}
	t.events <- Event{Type: EventReadable}
}

// last returns the hex encoding of the last sent PDU.
func (t *testTransport) last() string {
	if len(t.sent) == 0 {
		return ""
	}
	return hex.EncodeToString(t.sent[len(t.sent)-1])
}

func (t *testTransport) sentHex() []string {
	var ss []string
	for _, b := range t.sent {
		ss = append(ss, hex.EncodeToString(b))
	}
	return ss
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.Out = ioutil.Discard
	return l
}

var testAddr = BDAddr{HardwareAddr: []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}}

// connectedClient returns a client that has completed the initial
// MTU exchange at the default MTU.
func connectedClient(t *testing.T, opts ...Option) (*Client, *testTransport) {
	tr := newTestTransport()
	c := NewClient(tr, append([]Option{Logger(testLogger()), RequestTimeout(0)}, opts...)...)
	c.now = func() time.Time { return time.Unix(0, 0) }
	if err := c.Connect(testAddr); err != nil {
		t.Fatal(err)
	}
	tr.events <- Event{Type: EventConnected}
	c.Pump()
	if got := tr.last(); got != "021700" {
		t.Fatalf("mtu request: got %s want 021700", got)
	}
	tr.push("031700")
	c.Pump()
	if c.Pending() != 0 {
		t.Fatalf("pending after mtu exchange: %d", c.Pending())
	}
	tr.sent = nil
	return c, tr
}
