package gattc

import "bytes"

// A pduWriter builds an ATT PDU that must fit within the MTU.
// Writes made between Chunk and Commit are all-or-nothing.
type pduWriter struct {
	mtu   int
	b     bytes.Buffer
	chunk int // start of the open chunk, -1 if none
}

func newPDUWriter(mtu uint16) *pduWriter {
	return &pduWriter{mtu: int(mtu), chunk: -1}
}

// Chunk starts a chunk. Chunks cannot nest.
func (w *pduWriter) Chunk() {
	if w.chunk != -1 {
		panic("pduWriter: chunk already open")
	}
	w.chunk = w.b.Len()
}

// Commit closes the open chunk. If the chunk overflowed the MTU it is
// discarded and Commit reports false.
func (w *pduWriter) Commit() bool {
	if w.chunk == -1 {
		panic("pduWriter: commit without chunk")
	}
	ok := w.b.Len() <= w.mtu
	if !ok {
		w.b.Truncate(w.chunk)
	}
	w.chunk = -1
	return ok
}

func (w *pduWriter) fits(n int) bool {
	return w.chunk != -1 || w.b.Len()+n <= w.mtu
}

// WriteByteFit writes b if it fits and reports whether it did.
func (w *pduWriter) WriteByteFit(b byte) bool {
	if !w.fits(1) {
		return false
	}
	w.b.WriteByte(b)
	return true
}

// WriteUint16Fit writes v little-endian if it fits and reports whether it did.
func (w *pduWriter) WriteUint16Fit(v uint16) bool {
	if !w.fits(2) {
		return false
	}
	w.b.Write([]byte{byte(v), byte(v >> 8)})
	return true
}

// WriteFit writes as much of b as fits and reports whether all of it did.
func (w *pduWriter) WriteFit(b []byte) bool {
	if w.chunk == -1 {
		if avail := w.mtu - w.b.Len(); len(b) > avail {
			if avail > 0 {
				w.b.Write(b[:avail])
			}
			return false
		}
	}
	w.b.Write(b)
	return true
}

// Bytes returns the PDU written so far.
func (w *pduWriter) Bytes() []byte { return w.b.Bytes() }

// Len returns the length of the PDU written so far.
func (w *pduWriter) Len() int { return w.b.Len() }
