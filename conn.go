package gattc

import (
	"fmt"
	"net"
	"strings"

	"github.com/pkg/errors"
)

// A BDAddr (Bluetooth Device Address) is a hardware-addressed-based net.Addr.
// Random is set for LE random device addresses.
type BDAddr struct {
	net.HardwareAddr
	Random bool
}

// ParseBDAddr parses an address in the "AA:BB:CC:DD:EE:FF" form,
// most significant octet first.
func ParseBDAddr(s string, random bool) (BDAddr, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return BDAddr{}, errors.Wrapf(err, "invalid address %q", s)
	}
	if len(hw) != 6 {
		return BDAddr{}, fmt.Errorf("invalid address %q: need 6 octets", s)
	}
	return BDAddr{HardwareAddr: hw, Random: random}, nil
}

func (a BDAddr) Network() string { return "BLE" }

// String returns six uppercase colon-separated hex octets.
func (a BDAddr) String() string {
	return strings.ToUpper(a.HardwareAddr.String())
}

// key is the comparable form of a, used to index peripherals.
func (a BDAddr) key() string {
	if a.Random {
		return a.String() + "/random"
	}
	return a.String()
}

// EventType identifies a transport event.
type EventType int

const (
	EventConnected EventType = iota
	EventDisconnected
	EventReadable
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventReadable:
		return "readable"
	}
	return fmt.Sprintf("event(%d)", int(t))
}

// An Event is reported by a Transport. Err is set on a disconnect
// caused by a failure.
type Event struct {
	Type EventType
	Err  error
}

// A Transport is an ordered, message-framed byte channel to a
// remote device, such as an L2CAP SOCK_SEQPACKET socket.
type Transport interface {
	// Connect starts connecting to addr on the fixed channel cid.
	// Completion is reported with EventConnected or EventDisconnected.
	// Events of earlier connections not yet received are discarded.
	Connect(addr BDAddr, cid uint16) error

	// Send transmits a single message. A failed send closes the connection.
	Send(b []byte) error

	// Receive returns the next queued message, or nil if there is none.
	Receive() []byte

	// Close disconnects. Closing a closed transport is a no-op.
	Close() error

	// Events delivers connection and readability events.
	Events() <-chan Event
}
