package gattc

// Request encoders. Each builds a complete PDU, opcode first, and
// fails with ErrPDUTooLong if it does not fit mtu.

func encodePDU(mtu uint16, op byte, fn func(w *pduWriter)) ([]byte, error) {
	w := newPDUWriter(mtu)
	w.Chunk()
	w.WriteByteFit(op)
	if fn != nil {
		fn(w)
	}
	if !w.Commit() {
		return nil, ErrPDUTooLong
	}
	return append([]byte(nil), w.Bytes()...), nil
}

func encodeHandleRange(w *pduWriter, start, end uint16) {
	w.WriteUint16Fit(start)
	w.WriteUint16Fit(end)
}

func encodeMTUReq(mtu, rx uint16) ([]byte, error) {
	return encodePDU(mtu, attOpMtuReq, func(w *pduWriter) { w.WriteUint16Fit(rx) })
}

func encodeFindInfoReq(mtu, start, end uint16) ([]byte, error) {
	return encodePDU(mtu, attOpFindInfoReq, func(w *pduWriter) { encodeHandleRange(w, start, end) })
}

func encodeFindByTypeReq(mtu, start, end, typ uint16, value []byte) ([]byte, error) {
	return encodePDU(mtu, attOpFindByTypeReq, func(w *pduWriter) {
		encodeHandleRange(w, start, end)
		w.WriteUint16Fit(typ)
		w.WriteFit(value)
	})
}

func encodeReadByTypeReq(mtu, start, end uint16, typ UUID) ([]byte, error) {
	return encodePDU(mtu, attOpReadByTypeReq, func(w *pduWriter) {
		encodeHandleRange(w, start, end)
		w.WriteFit(typ.Bytes())
	})
}

func encodeReadByGroupReq(mtu, start, end uint16, typ UUID) ([]byte, error) {
	return encodePDU(mtu, attOpReadByGroupReq, func(w *pduWriter) {
		encodeHandleRange(w, start, end)
		w.WriteFit(typ.Bytes())
	})
}

func encodeReadReq(mtu, h uint16) ([]byte, error) {
	return encodePDU(mtu, attOpReadReq, func(w *pduWriter) { w.WriteUint16Fit(h) })
}

func encodeReadBlobReq(mtu, h, offset uint16) ([]byte, error) {
	return encodePDU(mtu, attOpReadBlobReq, func(w *pduWriter) {
		w.WriteUint16Fit(h)
		w.WriteUint16Fit(offset)
	})
}

func encodeWrite(mtu uint16, op byte, h uint16, v []byte) ([]byte, error) {
	return encodePDU(mtu, op, func(w *pduWriter) {
		w.WriteUint16Fit(h)
		w.WriteFit(v)
	})
}

func encodeConfirmation() []byte { return []byte{attOpHandleCnf} }
