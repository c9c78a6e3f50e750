package datastore

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/lattice-iot/modbusd/common"
	"github.com/lattice-iot/modbusd/encoding"
)

// MemoryStore is a pure in-memory DataStore. Its four kind sub-maps always
// exist, even when empty, and per-address reads/writes are atomic with
// respect to each other via a single RWMutex; a multi-word write is not
// atomic across its constituent words, matching the protocol's own lack of
// a multi-register atomicity guarantee.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[Kind]map[Address]Element
}

// NewMemoryStore returns an empty MemoryStore with all four kind maps present.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: map[Kind]map[Address]Element{
			Coils:            make(map[Address]Element),
			DiscreteInputs:   make(map[Address]Element),
			HoldingRegisters: make(map[Address]Element),
			InputRegisters:   make(map[Address]Element),
		},
	}
}

// Dump returns a snapshot of every stored element, keyed by kind name then
// address: bool for bit kinds, the raw stored word as uint16 for register
// kinds.
func (s *MemoryStore) Dump() map[string]map[uint16]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]map[uint16]interface{}, len(s.data))
	for kind, m := range s.data {
		snap := make(map[uint16]interface{}, len(m))
		for addr, el := range m {
			if kind.IsBitKind() {
				snap[uint16(addr)] = el.Bit
			} else {
				snap[uint16(addr)] = binary.BigEndian.Uint16(el.Word[:])
			}
		}
		out[kind.String()] = snap
	}
	return out
}

// Empty clears all four kind maps in place without replacing the outer structure.
func (s *MemoryStore) Empty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for kind := range s.data {
		s.data[kind] = make(map[Address]Element)
	}
}

func (s *MemoryStore) Read(ctx context.Context, kind Kind, first Address, count int) ([]Element, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.data[kind]
	if !ok {
		return nil, common.ErrBackendFailure
	}

	out := make([]Element, count)
	for i := 0; i < count; i++ {
		addr := first + Address(i)
		el, ok := m[addr]
		if !ok {
			return nil, common.ErrNotFound
		}
		out[i] = el
	}
	return out, nil
}

func (s *MemoryStore) Write(ctx context.Context, kind Kind, address Address, value interface{}, enc byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.data[kind]
	if !ok {
		return common.ErrBackendFailure
	}

	if kind.IsBitKind() {
		b, ok := value.(bool)
		if !ok {
			return common.ErrInvalidValueType
		}
		m[address] = Element{Bit: b}
		return nil
	}

	switch enc {
	case encoding.TagInt16, encoding.TagUint16, encoding.TagFloat16, encoding.TagFloat32:
	default:
		// i/I/d (int32/uint32/float64) are Redis-backend-only encodings;
		// the in-memory backend only ever sees h/H/e/f.
		return common.ErrInvalidEncoding
	}

	packed, err := encoding.PackWord(enc, value)
	if err != nil {
		return common.ErrInvalidEncoding
	}

	// Split the packed bytes into N = byte_width/2 consecutive words and
	// store each individually, most-significant word first. Earlier source
	// revisions computed this split as a byte-slice-as-tuple-index and
	// stored the whole unsplit value at every address; that bug is not
	// reproduced here.
	wordCount := len(packed) / 2
	for i := 0; i < wordCount; i++ {
		var w [2]byte
		copy(w[:], packed[i*2:i*2+2])
		m[address+Address(i)] = Element{Word: w}
	}
	return nil
}
