package common

import (
	"errors"
	"fmt"
)

// Datastore and seed-API sentinel errors.
var (
	// ErrNotFound is returned by a DataStore when any address in a requested
	// range is unmapped. Surfaces as exception 2 on the wire.
	ErrNotFound = errors.New("address not found")

	// ErrBackendFailure is returned by a DataStore for any failure other than
	// an unmapped address. Surfaces as exception 4 on the wire.
	ErrBackendFailure = errors.New("datastore backend failure")

	// ErrInvalidQuantity is returned when a requested quantity falls outside
	// a kind's range limit. Surfaces as exception 3 on the wire.
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrInvalidAddress is returned by the seed API for an address outside [0, 65535].
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidValueType is returned by the seed API when a bit-kind value
	// is not a strict bool.
	ErrInvalidValueType = errors.New("invalid value type")

	// ErrInvalidEncoding is returned by the seed API or a DataStore for an
	// unrecognized or unsupported register encoding tag.
	ErrInvalidEncoding = errors.New("invalid encoding")

	// ErrMalformedFrame is returned by the ADU codec on a structurally invalid frame.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrBindFailure is returned from server/seed Start when the listener cannot bind.
	ErrBindFailure = errors.New("bind failure")
)

// ModbusError represents a Modbus exception response to be written to the wire.
// Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 7 (Exception Responses)
type ModbusError struct {
	FunctionCode  FunctionCode
	ExceptionCode ExceptionCode
}

func (e *ModbusError) Error() string {
	return fmt.Sprintf("modbus: exception response: function: %s, exception code: %#x (%s)",
		e.FunctionCode, e.ExceptionCode, GetExceptionString(e.ExceptionCode))
}

// NewModbusError constructs a ModbusError for the given request function code and reason.
func NewModbusError(functionCode FunctionCode, exceptionCode ExceptionCode) *ModbusError {
	return &ModbusError{FunctionCode: functionCode, ExceptionCode: exceptionCode}
}

// GetExceptionString returns a short human-readable description of an exception code.
func GetExceptionString(exceptionCode ExceptionCode) string {
	switch exceptionCode {
	case ExceptionFunctionCodeNotSupported:
		return "function code not supported"
	case ExceptionDataAddressNotAvailable:
		return "data address not available"
	case ExceptionInvalidDataValue:
		return "invalid data value"
	case ExceptionServerDeviceFailure:
		return "server device failure"
	default:
		return fmt.Sprintf("unknown exception code: %#x", exceptionCode)
	}
}
