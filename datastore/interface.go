package datastore

import "context"

// Element is the value shape Read returns: a bool for bit kinds, a 2-byte
// big-endian word for register kinds. The datastore, not the caller, owns
// the conversion from a wider numeric into its constituent words.
type Element struct {
	Bit  bool
	Word [2]byte
}

// DataStore is the contract every backend (in-memory, Redis) satisfies.
type DataStore interface {
	// Read returns exactly count elements starting at first, or an error.
	// It never returns a partial result: either the full range or a
	// failure. ErrNotFound means some address in [first, first+count) is
	// unmapped; any other failure is ErrBackendFailure.
	Read(ctx context.Context, kind Kind, first Address, count int) ([]Element, error)

	// Write stores value (bool for bit kinds, a numeric Go value for
	// register kinds) at address, using encoding to determine width and
	// byte layout for register kinds. Widths wider than one word are
	// split across consecutive addresses, most-significant word first.
	Write(ctx context.Context, kind Kind, address Address, value interface{}, encoding byte) error
}

// Dumper is implemented by backends that can produce a full snapshot of
// their contents, mirroring the Python DictDatastore.dump(). The external-KV
// backend does not implement it: Redis holds no enumerable record of every
// key the address map might reference.
type Dumper interface {
	// Dump returns every stored element, keyed by kind name then address.
	// Bit kinds yield bool; register kinds yield the raw stored word as a
	// uint16, since no single encoding applies to an already-written value.
	Dump() map[string]map[uint16]interface{}
}
