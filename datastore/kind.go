// Package datastore defines the pluggable (kind, address) -> value store
// that backs every Modbus read, plus the in-memory and external-KV (Redis)
// implementations of it.
package datastore

import "github.com/lattice-iot/modbusd/common"

// Address is a 16-bit Modbus address; each Kind owns an independent space.
type Address uint16

// Kind names one of the four Modbus object kinds.
type Kind int

const (
	Coils Kind = iota
	DiscreteInputs
	HoldingRegisters
	InputRegisters
)

func (k Kind) String() string {
	switch k {
	case Coils:
		return "coils"
	case DiscreteInputs:
		return "discrete_inputs"
	case HoldingRegisters:
		return "holding_registers"
	case InputRegisters:
		return "input_registers"
	default:
		return "unknown"
	}
}

// IsBitKind reports whether a kind's elements are booleans (vs. register words).
func (k Kind) IsBitKind() bool {
	return k == Coils || k == DiscreteInputs
}

// MaxQuantity is the per-request range limit for a kind.
// Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 6.1/6.3 (Quantity constraints)
func (k Kind) MaxQuantity() int {
	if k.IsBitKind() {
		return MaxCoilCount
	}
	return MaxRegisterCount
}

// FunctionCode returns the read function code that addresses this kind.
func (k Kind) FunctionCode() common.FunctionCode {
	switch k {
	case Coils:
		return common.FuncReadCoils
	case DiscreteInputs:
		return common.FuncReadDiscreteInputs
	case HoldingRegisters:
		return common.FuncReadHoldingRegisters
	case InputRegisters:
		return common.FuncReadInputRegisters
	default:
		return 0
	}
}

// KindForFunctionCode maps a read function code to its object kind. The
// second return value is false for any function code this server doesn't
// dispatch (writes, MEI, or anything unrecognized).
func KindForFunctionCode(fc common.FunctionCode) (Kind, bool) {
	switch fc {
	case common.FuncReadCoils:
		return Coils, true
	case common.FuncReadDiscreteInputs:
		return DiscreteInputs, true
	case common.FuncReadHoldingRegisters:
		return HoldingRegisters, true
	case common.FuncReadInputRegisters:
		return InputRegisters, true
	default:
		return 0, false
	}
}

// Range limits per Modbus function code constraints.
const (
	MaxCoilCount     = 2000
	MaxRegisterCount = 125
)
