package datastore

import "testing"

func TestAddressMapUnknownKindWarns(t *testing.T) {
	raw := map[string]map[string]AddressMapEntry{
		"bogus_kind": {"0": {Key: "x", Encoding: 'h'}},
	}
	m, warnings := NewAddressMap(raw)
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want 1 entry", warnings)
	}
	if _, ok := m.Lookup(Coils, 0); ok {
		t.Errorf("lookup on unrelated kind unexpectedly found an entry")
	}
}

func TestAddressMapMissingKindsAddedEmpty(t *testing.T) {
	m, _ := NewAddressMap(nil)
	for _, kind := range []Kind{Coils, DiscreteInputs, HoldingRegisters, InputRegisters} {
		if _, ok := m.Lookup(kind, 0); ok {
			t.Errorf("kind %s: expected no entries in a fresh map", kind)
		}
	}
}

func TestAddressMapLookupAndInsert(t *testing.T) {
	raw := map[string]map[string]AddressMapEntry{
		"holding_registers": {"100": {Key: "plant:temp", Encoding: 'f', Part: 1}},
	}
	m, _ := NewAddressMap(raw)
	entry, ok := m.Lookup(HoldingRegisters, 100)
	if !ok {
		t.Fatalf("expected entry at address 100")
	}
	if entry.Key != "plant:temp" {
		t.Errorf("entry.Key = %q, want plant:temp", entry.Key)
	}

	m.Insert(Coils, 7, AddressMapEntry{Key: "coils:7", Encoding: 0})
	if _, ok := m.Lookup(Coils, 7); !ok {
		t.Errorf("expected inserted entry to be found")
	}
}
