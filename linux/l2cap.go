//go:build linux
// +build linux

// Package linux provides the Linux L2CAP socket transport for gattc.
package linux

import (
	"sync"

	"github.com/XC-/gattc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// LE address types of struct sockaddr_l2.
const (
	bdaddrLEPublic = 0x01
	bdaddrLERandom = 0x02
)

// maxPDU is the largest packet read from the socket.
const maxPDU = 1024

// A Socket is a gattc.Transport over a BlueZ L2CAP SOCK_SEQPACKET
// socket on a fixed LE channel. A Socket may be connected again after
// it has been closed.
//
// Every connection attempt is a generation served by one loop
// goroutine, which owns the file descriptor and closes it on exit.
// Events are emitted with mu held and only for the current generation.
// A generation emits at most one connected and one disconnected event
// and one readable event per refill of the receive queue, so the event
// buffer never fills.
type Socket struct {
	log    logrus.FieldLogger
	events chan gattc.Event

	mu        sync.Mutex
	fd        int // descriptor of the current generation; -1 once closed
	gen       int // incremented per connection attempt
	connected bool
	rq        [][]byte
}

// NewSocket returns a disconnected Socket. A nil logger selects the
// logrus standard logger.
func NewSocket(l logrus.FieldLogger) *Socket {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &Socket{
		log:    l,
		events: make(chan gattc.Event, 16),
		fd:     -1,
	}
}

// sockaddr returns the L2CAP socket address of addr on channel cid.
func sockaddr(addr gattc.BDAddr, cid uint16) *unix.SockaddrL2 {
	sa := &unix.SockaddrL2{CID: cid, AddrType: bdaddrLEPublic}
	if addr.Random {
		sa.AddrType = bdaddrLERandom
	}
	// unix.SockaddrL2 takes the address most significant octet first.
	copy(sa.Addr[:], addr.HardwareAddr)
	return sa
}

// Connect starts connecting to addr on channel cid. Events of earlier
// connections that have not been received yet are discarded.
func (s *Socket) Connect(addr gattc.BDAddr, cid uint16) error {
	if len(addr.HardwareAddr) != 6 {
		return errors.Errorf("invalid address %s", addr)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fd >= 0 {
		return errors.New("l2cap: already connecting or connected")
	}
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_SEQPACKET|unix.SOCK_CLOEXEC, unix.BTPROTO_L2CAP)
	if err != nil {
		return errors.Wrap(err, "l2cap: can't create socket")
	}
	s.drain()
	s.fd = fd
	s.gen++
	s.rq = nil
	s.log.WithField("addr", addr.String()).Debug("l2cap: connecting")
	go s.loop(fd, s.gen, sockaddr(addr, cid))
	return nil
}

// drain discards undelivered events. Called with mu held.
func (s *Socket) drain() {
	for {
		select {
		case ev := <-s.events:
			s.log.Debugf("l2cap: dropping stale %s event", ev.Type)
		default:
			return
		}
	}
}

// emit sends ev if gen is the current generation. Called with mu held.
func (s *Socket) emit(gen int, ev gattc.Event) bool {
	if s.gen != gen {
		return false
	}
	s.events <- ev
	return true
}

func (s *Socket) loop(fd, gen int, sa *unix.SockaddrL2) {
	defer func() {
		s.mu.Lock()
		if cerr := unix.Close(fd); cerr != nil {
			s.log.WithError(cerr).Debug("l2cap: close")
		}
		s.mu.Unlock()
	}()

	if err := unix.Connect(fd, sa); err != nil {
		s.close(gen, errors.Wrap(err, "l2cap: can't connect"))
		return
	}
	s.mu.Lock()
	if s.gen != gen || s.fd != fd {
		s.mu.Unlock()
		return
	}
	s.connected = true
	s.emit(gen, gattc.Event{Type: gattc.EventConnected})
	s.mu.Unlock()

	for {
		s.mu.Lock()
		live := s.gen == gen && s.fd == fd
		s.mu.Unlock()
		if !live {
			return
		}
		b := make([]byte, maxPDU)
		n, err := unix.Read(fd, b)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			s.close(gen, errors.Wrap(err, "l2cap: read failed"))
			return
		}
		if n == 0 {
			s.close(gen, nil)
			return
		}
		s.mu.Lock()
		if s.gen != gen || s.fd != fd {
			s.mu.Unlock()
			return
		}
		s.rq = append(s.rq, b[:n])
		if len(s.rq) == 1 {
			s.emit(gen, gattc.Event{Type: gattc.EventReadable})
		}
		s.mu.Unlock()
	}
}

// close tears down connection gen and reports the disconnect once.
// The descriptor is shut down here and closed by its loop goroutine.
func (s *Socket) close(gen int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.fd < 0 {
		return
	}
	fd := s.fd
	s.fd = -1
	s.connected = false
	s.rq = nil
	if serr := unix.Shutdown(fd, unix.SHUT_RDWR); serr != nil {
		s.log.WithError(serr).Debug("l2cap: shutdown")
	}
	if err != nil {
		s.log.WithError(err).Warn("l2cap: connection lost")
	}
	s.emit(gen, gattc.Event{Type: gattc.EventDisconnected, Err: err})
}

// Send writes one PDU. A failed write closes the connection.
func (s *Socket) Send(b []byte) error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return gattc.ErrNotConnected
	}
	fd, gen := s.fd, s.gen
	n, err := unix.Write(fd, b)
	s.mu.Unlock()
	if err != nil {
		err = errors.Wrap(err, "l2cap: write failed")
		s.close(gen, err)
		return err
	}
	if n < len(b) {
		s.log.Warnf("l2cap: short write %d of %d bytes", n, len(b))
	}
	return nil
}

// Receive returns the next received PDU, or nil.
func (s *Socket) Receive() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rq) == 0 {
		return nil
	}
	b := s.rq[0]
	s.rq = s.rq[1:]
	return b
}

// Close disconnects. Queued received PDUs are dropped.
func (s *Socket) Close() error {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	s.close(gen, nil)
	return nil
}

// Events returns the channel of connection and readability events.
func (s *Socket) Events() <-chan gattc.Event { return s.events }
