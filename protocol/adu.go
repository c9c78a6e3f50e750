// Package protocol implements the Modbus TCP Application Data Unit codec:
// MBAP header parsing, normal response serialization, and exception
// response serialization. It covers only the server's read side -- this
// server never originates a request, so no client-side request encoder or
// response decoder lives here.
package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/lattice-iot/modbusd/common"
)

// Header is the parsed MBAP header plus the function code and PDU payload
// that followed it.
// Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 4.1 (MBAP Header)
type Header struct {
	TransactionID common.TransactionID
	ProtocolID    common.ProtocolID
	UnitID        common.UnitID
	FunctionCode  common.FunctionCode
	Data          []byte
}

// ParseHeader parses a full request frame (MBAP header + PDU) per
// spec §4.3. It returns common.ErrMalformedFrame if the frame is too short,
// the protocol identifier is nonzero, or the declared length disagrees with
// the bytes actually present.
func ParseHeader(frame []byte) (Header, error) {
	if len(frame) < common.MBAPHeaderLength+1 {
		return Header{}, common.ErrMalformedFrame
	}

	transactionID := common.TransactionID(binary.BigEndian.Uint16(frame[0:2]))
	protocolID := common.ProtocolID(binary.BigEndian.Uint16(frame[2:4]))
	length := binary.BigEndian.Uint16(frame[4:6])
	unitID := common.UnitID(frame[6])

	if protocolID != 0 {
		return Header{}, common.ErrMalformedFrame
	}

	// length counts unit_id(1) + function_code(1) + data, i.e. everything
	// from byte 6 onward.
	if int(length) != len(frame)-6 {
		return Header{}, common.ErrMalformedFrame
	}

	functionCode := common.FunctionCode(frame[7])
	data := frame[8:]

	return Header{
		TransactionID: transactionID,
		ProtocolID:    protocolID,
		UnitID:        unitID,
		FunctionCode:  functionCode,
		Data:          data,
	}, nil
}

// BuildResponse serializes a normal response frame: the request's
// transaction_id/protocol_id/unit_id echoed, function_code echoed, and
// payload prefixed with its own byte count.
// Ref: spec §4.3 "Normal response layout"
func BuildResponse(req Header, payload []byte) []byte {
	length := 3 + len(payload) // unit_id + function_code + byte_count + payload
	out := make([]byte, 0, 6+1+len(payload)+2)
	out = appendUint16(out, uint16(req.TransactionID))
	out = appendUint16(out, 0) // protocol_id
	out = appendUint16(out, uint16(length))
	out = append(out, byte(req.UnitID))
	out = append(out, byte(req.FunctionCode))
	out = append(out, byte(len(payload)))
	out = append(out, payload...)
	return out
}

// BuildException serializes a 9-byte exception response frame.
// Ref: spec §4.3 "Exception response layout"
func BuildException(req Header, exceptionCode common.ExceptionCode) []byte {
	out := make([]byte, 0, 9)
	out = appendUint16(out, uint16(req.TransactionID))
	out = appendUint16(out, 0)
	out = appendUint16(out, 3)
	out = append(out, byte(req.UnitID))
	out = append(out, byte(req.FunctionCode)|common.ExceptionBit)
	out = append(out, byte(exceptionCode))
	return out
}

func appendUint16(b []byte, v uint16) []byte {
	return append(b, byte(v>>8), byte(v))
}

// String renders a Header for debug logging.
func (h Header) String() string {
	return fmt.Sprintf("txn=%d unit=%d fc=%s len(data)=%d", h.TransactionID, h.UnitID, h.FunctionCode, len(h.Data))
}
