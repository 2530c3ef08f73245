package gattc

// Typed requests. Each decodes its response before calling fn; on an
// Error Response fn gets the zero result and the error.

func (c *Client) request(pdu []byte, err error, fn func([]byte, error)) (RequestID, error) {
	if err != nil {
		return 0, err
	}
	return c.submit(pdu[0], pdu, fn)
}

// ExchangeMTU sends an Exchange MTU Request offering rx. A server MTU
// of at least DefaultMTU sets the working MTU to the smaller of the two.
// fn may be nil.
func (c *Client) ExchangeMTU(rx uint16, fn func(serverMTU uint16, err error)) (RequestID, error) {
	pdu, err := encodeMTUReq(c.mtu, rx)
	return c.request(pdu, err, func(b []byte, err error) {
		var srv uint16
		if err == nil {
			srv = parseMTU(b)
			c.setMTU(rx, srv)
		} else {
			c.log.WithError(err).Debug("mtu exchange failed")
		}
		if fn != nil {
			fn(srv, err)
		}
	})
}

func (c *Client) setMTU(rx, srv uint16) {
	if srv < DefaultMTU {
		return
	}
	mtu := rx
	if srv < mtu {
		mtu = srv
	}
	c.mtu = mtu
	c.log.WithField("mtu", mtu).Debug("mtu negotiated")
}

// FindInformation discovers handle / type pairs in [start, end].
func (c *Client) FindInformation(start, end uint16, fn func([]InformationData, error)) (RequestID, error) {
	pdu, err := encodeFindInfoReq(c.mtu, start, end)
	return c.request(pdu, err, func(b []byte, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(parseInformationData(b), nil)
	})
}

// FindByTypeValue finds attributes of 16-bit type typ holding value in [start, end].
func (c *Client) FindByTypeValue(start, end, typ uint16, value []byte, fn func([]HandleInformation, error)) (RequestID, error) {
	pdu, err := encodeFindByTypeReq(c.mtu, start, end, typ, value)
	return c.request(pdu, err, func(b []byte, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(parseHandleInformation(b), nil)
	})
}

// ReadByType reads the attributes of type typ in [start, end].
func (c *Client) ReadByType(start, end uint16, typ UUID, fn func([]AttributeData, error)) (RequestID, error) {
	pdu, err := encodeReadByTypeReq(c.mtu, start, end, typ)
	return c.request(pdu, err, func(b []byte, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(parseAttributeData(b), nil)
	})
}

// Read reads the value of attribute h.
func (c *Client) Read(h uint16, fn func([]byte, error)) (RequestID, error) {
	pdu, err := encodeReadReq(c.mtu, h)
	return c.request(pdu, err, func(b []byte, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(append([]byte(nil), b...), nil)
	})
}

// ReadBlob reads the value of attribute h starting at offset.
func (c *Client) ReadBlob(h, offset uint16, fn func([]byte, error)) (RequestID, error) {
	pdu, err := encodeReadBlobReq(c.mtu, h, offset)
	return c.request(pdu, err, func(b []byte, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(append([]byte(nil), b...), nil)
	})
}

// ReadByGroupType reads the grouping attributes of type typ in [start, end].
func (c *Client) ReadByGroupType(start, end uint16, typ UUID, fn func([]AttributeGroupData, error)) (RequestID, error) {
	pdu, err := encodeReadByGroupReq(c.mtu, start, end, typ)
	return c.request(pdu, err, func(b []byte, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(parseAttributeGroupData(b), nil)
	})
}

// Write writes v to attribute h and waits for the Write Response.
// fn may be nil.
func (c *Client) Write(h uint16, v []byte, fn func(error)) (RequestID, error) {
	pdu, err := encodeWrite(c.mtu, attOpWriteReq, h, v)
	return c.request(pdu, err, func(_ []byte, err error) {
		if fn != nil {
			fn(err)
		}
	})
}

// WriteCommand writes v to attribute h without a response.
func (c *Client) WriteCommand(h uint16, v []byte) error {
	pdu, err := encodeWrite(c.mtu, attOpWriteCmd, h, v)
	if err != nil {
		return err
	}
	return c.SendCommand(pdu[0], pdu[1:])
}
