package datastore

import (
	"fmt"
)

// AddressMapEntry binds one (kind, address) pair to a backing key in an
// external key-value store.
// Ref: original RedisDatastore's modbus_address_map constructor argument.
type AddressMapEntry struct {
	Key          string      `mapstructure:"key" yaml:"key"`
	Encoding     byte        `mapstructure:"encoding" yaml:"encoding"`
	Part         int         `mapstructure:"part" yaml:"part"`                   // 1-indexed, most-significant word first; ignored for bit kinds and single-word encodings
	InitialValue interface{} `mapstructure:"initial_value" yaml:"initial_value"` // written by ApplyInitialValues
}

// AddressMap is the full (kind -> address string -> entry) binding loaded
// from an address-map file. Address keys are the decimal string form of an
// Address, matching the on-disk document shape.
type AddressMap struct {
	entries map[Kind]map[string]AddressMapEntry
}

// NewAddressMap builds an AddressMap from raw per-kind entries, inserting
// empty sub-maps for any of the four known kinds that are absent. Unknown
// top-level keys are reported via the returned warnings slice rather than
// failing construction, mirroring the source's "verify" step.
func NewAddressMap(raw map[string]map[string]AddressMapEntry) (*AddressMap, []string) {
	known := map[string]Kind{
		Coils.String():            Coils,
		DiscreteInputs.String():   DiscreteInputs,
		HoldingRegisters.String(): HoldingRegisters,
		InputRegisters.String():   InputRegisters,
	}

	m := &AddressMap{entries: map[Kind]map[string]AddressMapEntry{
		Coils:            {},
		DiscreteInputs:   {},
		HoldingRegisters: {},
		InputRegisters:   {},
	}}

	var warnings []string
	for name, byAddress := range raw {
		kind, ok := known[name]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("address map: unrecognized kind %q ignored", name))
			continue
		}
		for addr, entry := range byAddress {
			m.entries[kind][addr] = entry
		}
	}
	return m, warnings
}

// Lookup returns the entry bound to (kind, address), if any.
func (m *AddressMap) Lookup(kind Kind, address Address) (AddressMapEntry, bool) {
	byAddress, ok := m.entries[kind]
	if !ok {
		return AddressMapEntry{}, false
	}
	entry, ok := byAddress[addressKey(address)]
	return entry, ok
}

// Insert adds or replaces the entry bound to (kind, address), used for the
// auto-insert-on-unknown-write path of the external-KV backend.
func (m *AddressMap) Insert(kind Kind, address Address, entry AddressMapEntry) {
	m.entries[kind][addressKey(address)] = entry
}

// All returns every (kind, address, entry) triple in the map, used by
// ApplyInitialValues.
func (m *AddressMap) All() []struct {
	Kind    Kind
	Address string
	Entry   AddressMapEntry
} {
	var out []struct {
		Kind    Kind
		Address string
		Entry   AddressMapEntry
	}
	for kind, byAddress := range m.entries {
		for addr, entry := range byAddress {
			out = append(out, struct {
				Kind    Kind
				Address string
				Entry   AddressMapEntry
			}{kind, addr, entry})
		}
	}
	return out
}

func addressKey(a Address) string {
	return fmt.Sprintf("%d", uint16(a))
}
