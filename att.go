package gattc

import "encoding/binary"

const (
	attOpError           = 0x01
	attOpMtuReq          = 0x02
	attOpMtuResp         = 0x03
	attOpFindInfoReq     = 0x04
	attOpFindInfoResp    = 0x05
	attOpFindByTypeReq   = 0x06
	attOpFindByTypeResp  = 0x07
	attOpReadByTypeReq   = 0x08
	attOpReadByTypeResp  = 0x09
	attOpReadReq         = 0x0a
	attOpReadResp        = 0x0b
	attOpReadBlobReq     = 0x0c
	attOpReadBlobResp    = 0x0d
	attOpReadByGroupReq  = 0x10
	attOpReadByGroupResp = 0x11
	attOpWriteReq        = 0x12
	attOpWriteResp       = 0x13
	attOpWriteCmd        = 0x52
	attOpHandleNotify    = 0x1b
	attOpHandleInd       = 0x1d
	attOpHandleCnf       = 0x1e
)

// attRespFor maps from att request
// codes to att response codes.
var attRespFor = map[byte]byte{
	attOpMtuReq:         attOpMtuResp,
	attOpFindInfoReq:    attOpFindInfoResp,
	attOpFindByTypeReq:  attOpFindByTypeResp,
	attOpReadByTypeReq:  attOpReadByTypeResp,
	attOpReadReq:        attOpReadResp,
	attOpReadBlobReq:    attOpReadBlobResp,
	attOpReadByGroupReq: attOpReadByGroupResp,
	attOpWriteReq:       attOpWriteResp,
}

// Information data formats of a Find Information Response.
const (
	attFormatUUID16  = 0x01
	attFormatUUID128 = 0x02
)

// InformationData is a record of a Find Information Response.
type InformationData struct {
	Handle uint16
	UUID   UUID
}

// HandleInformation is a record of a Find By Type Value Response.
type HandleInformation struct {
	Handle   uint16
	GroupEnd uint16
}

// AttributeData is a record of a Read By Type Response.
type AttributeData struct {
	Handle uint16
	Value  []byte
}

// AttributeGroupData is a record of a Read By Group Type Response.
type AttributeGroupData struct {
	Handle    uint16
	EndHandle uint16
	Value     []byte
}

// All parsers below take the response PDU without its opcode
// and drop an incomplete trailing record.

// parseInformationData parses format + information data.
// An unknown format yields no records.
func parseInformationData(b []byte) []InformationData {
	if len(b) < 1 {
		return nil
	}
	n := 2 + 2
	switch b[0] {
	case attFormatUUID16:
	case attFormatUUID128:
		n = 2 + 16
	default:
		return nil
	}
	var dd []InformationData
	for b = b[1:]; len(b) >= n; b = b[n:] {
		u, _ := UUIDFromBytes(b[2:n])
		dd = append(dd, InformationData{Handle: binary.LittleEndian.Uint16(b), UUID: u})
	}
	return dd
}

// parseHandleInformation parses a list of found handle / group end pairs.
func parseHandleInformation(b []byte) []HandleInformation {
	var hh []HandleInformation
	for ; len(b) >= 4; b = b[4:] {
		hh = append(hh, HandleInformation{
			Handle:   binary.LittleEndian.Uint16(b),
			GroupEnd: binary.LittleEndian.Uint16(b[2:]),
		})
	}
	return hh
}

// parseAttributeData parses length + attribute data list.
func parseAttributeData(b []byte) []AttributeData {
	if len(b) < 1 || int(b[0]) < 2 {
		return nil
	}
	n := int(b[0])
	cnt := (len(b) - 1) / n
	dd := make([]AttributeData, 0, cnt)
	for i := 0; i < cnt; i++ {
		item := b[1+i*n : 1+(i+1)*n]
		dd = append(dd, AttributeData{
			Handle: binary.LittleEndian.Uint16(item),
			Value:  append([]byte(nil), item[2:]...),
		})
	}
	return dd
}

// parseAttributeGroupData parses length + attribute group data list.
func parseAttributeGroupData(b []byte) []AttributeGroupData {
	if len(b) < 1 || int(b[0]) < 4 {
		return nil
	}
	n := int(b[0])
	cnt := (len(b) - 1) / n
	dd := make([]AttributeGroupData, 0, cnt)
	for i := 0; i < cnt; i++ {
		item := b[1+i*n : 1+(i+1)*n]
		dd = append(dd, AttributeGroupData{
			Handle:    binary.LittleEndian.Uint16(item),
			EndHandle: binary.LittleEndian.Uint16(item[2:]),
			Value:     append([]byte(nil), item[4:]...),
		})
	}
	return dd
}

// parseErrorResponse decodes the parameters of an Error Response.
func parseErrorResponse(b []byte) (attErr, bool) {
	if len(b) < 4 {
		return attErr{}, false
	}
	return attErr{
		opcode: b[0],
		handle: binary.LittleEndian.Uint16(b[1:]),
		status: AttError(b[3]),
	}, true
}

// parseHandleValue decodes a notification or indication.
func parseHandleValue(b []byte) (uint16, []byte, bool) {
	if len(b) < 2 {
		return 0, nil, false
	}
	return binary.LittleEndian.Uint16(b), append([]byte(nil), b[2:]...), true
}

// parseMTU decodes an Exchange MTU Response. Some servers answer
// with a single octet.
func parseMTU(b []byte) uint16 {
	switch {
	case len(b) >= 2:
		return binary.LittleEndian.Uint16(b)
	case len(b) == 1:
		return uint16(b[0])
	}
	return 0
}
