// Package handler implements per-request validation and dispatch: mapping
// a function code to an object kind, bounds-checking the requested
// quantity, reading from the datastore, and encoding the result payload.
package handler

import (
	"context"
	"encoding/binary"

	"github.com/lattice-iot/modbusd/common"
	"github.com/lattice-iot/modbusd/datastore"
	"github.com/lattice-iot/modbusd/encoding"
	"github.com/lattice-iot/modbusd/protocol"
)

// Handle processes one parsed request header against store and returns the
// complete response frame (normal or exception) ready to write to the
// connection. It never returns an error: every failure mode this server
// recognizes is represented as a Modbus exception response.
func Handle(ctx context.Context, req protocol.Header, store datastore.DataStore) []byte {
	kind, ok := datastore.KindForFunctionCode(req.FunctionCode)
	if !ok {
		return protocol.BuildException(req, common.ExceptionFunctionCodeNotSupported)
	}

	if len(req.Data) != 4 {
		return protocol.BuildException(req, common.ExceptionInvalidDataValue)
	}
	address := datastore.Address(binary.BigEndian.Uint16(req.Data[0:2]))
	quantity := int(binary.BigEndian.Uint16(req.Data[2:4]))

	if quantity == 0 || quantity > kind.MaxQuantity() {
		return protocol.BuildException(req, common.ExceptionInvalidDataValue)
	}

	elements, err := store.Read(ctx, kind, address, quantity)
	if err != nil {
		if err == common.ErrNotFound {
			return protocol.BuildException(req, common.ExceptionDataAddressNotAvailable)
		}
		return protocol.BuildException(req, common.ExceptionServerDeviceFailure)
	}

	payload := serialize(kind, elements)
	return protocol.BuildResponse(req, payload)
}

// serialize turns the datastore's element sequence into the PDU payload:
// packed bits for bit kinds, concatenated big-endian words for register
// kinds.
func serialize(kind datastore.Kind, elements []datastore.Element) []byte {
	if kind.IsBitKind() {
		bits := make([]bool, len(elements))
		for i, el := range elements {
			bits[i] = el.Bit
		}
		return encoding.PackBits(bits)
	}

	payload := make([]byte, 0, len(elements)*2)
	for _, el := range elements {
		payload = append(payload, el.Word[0], el.Word[1])
	}
	return payload
}
