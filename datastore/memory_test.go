package datastore

import (
	"context"
	"errors"
	"testing"

	"github.com/lattice-iot/modbusd/common"
)

func TestMemoryStoreReadNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Read(context.Background(), Coils, 0, 1)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreWriteReadBit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Write(ctx, Coils, 5, true, 0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	els, err := s.Read(ctx, Coils, 5, 1)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !els[0].Bit {
		t.Errorf("bit = false, want true")
	}
}

func TestMemoryStoreWriteReadWideRegister(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Write(ctx, HoldingRegisters, 10, float32(3.5), 'f'); err != nil {
		t.Fatalf("Write: %v", err)
	}
	els, err := s.Read(ctx, HoldingRegisters, 10, 2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var packed []byte
	packed = append(packed, els[0].Word[:]...)
	packed = append(packed, els[1].Word[:]...)
	if len(packed) != 4 {
		t.Fatalf("packed len = %d, want 4", len(packed))
	}
}

func TestMemoryStoreEmptyClearsAllKinds(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Write(ctx, Coils, 0, true, 0)
	_ = s.Write(ctx, HoldingRegisters, 0, int16(1), 'h')
	s.Empty()
	if _, err := s.Read(ctx, Coils, 0, 1); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("coils after Empty: err = %v, want ErrNotFound", err)
	}
	if _, err := s.Read(ctx, HoldingRegisters, 0, 1); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("holding registers after Empty: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreQuantityAtomicity(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Write(ctx, Coils, 0, true, 0)
	// address 1 is unmapped, so the whole range read must fail, not
	// partially succeed.
	_, err := s.Read(ctx, Coils, 0, 2)
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
