package handler

import (
	"bytes"
	"context"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/lattice-iot/modbusd/datastore"
	"github.com/lattice-iot/modbusd/datastore/datastoretest"
	"github.com/lattice-iot/modbusd/protocol"
)

func hexBytes(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		t.Fatalf("bad hex literal %q: %v", s, err)
	}
	return b
}

func parseOrFail(t *testing.T, hexFrame string) protocol.Header {
	t.Helper()
	h, err := protocol.ParseHeader(hexBytes(t, hexFrame))
	if err != nil {
		t.Fatalf("ParseHeader(%q): %v", hexFrame, err)
	}
	return h
}

// Scenario 1: coils[0]=true, coils[1]=false; read 2 coils at 0.
func TestScenario1ReadCoils(t *testing.T) {
	ctx := context.Background()
	store := datastore.NewMemoryStore()
	_ = store.Write(ctx, datastore.Coils, 0, true, 0)
	_ = store.Write(ctx, datastore.Coils, 1, false, 0)

	req := parseOrFail(t, "00 01 00 00 00 06 00 01 00 00 00 02")
	got := Handle(ctx, req, store)
	want := hexBytes(t, "00 01 00 00 00 04 00 01 01 01")
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

// Scenario 2: input_registers[1]=19 (h); read 1 register at address 1.
func TestScenario2ReadInputRegister(t *testing.T) {
	ctx := context.Background()
	store := datastore.NewMemoryStore()
	_ = store.Write(ctx, datastore.InputRegisters, 1, int16(19), 'h')

	req := parseOrFail(t, "00 02 00 00 00 06 00 04 00 01 00 01")
	got := Handle(ctx, req, store)
	want := hexBytes(t, "00 02 00 00 00 05 00 04 02 00 13")
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

// Scenario 3: coils[10000..10199] = true (200 bits); read 200 coils at 10000.
func TestScenario3ReadManyCoils(t *testing.T) {
	ctx := context.Background()
	store := datastore.NewMemoryStore()
	for a := datastore.Address(10000); a < 10200; a++ {
		_ = store.Write(ctx, datastore.Coils, a, true, 0)
	}

	req := parseOrFail(t, "00 03 00 00 00 06 00 01 27 10 00 C8")
	got := Handle(ctx, req, store)

	if len(got) != 9+25 {
		t.Fatalf("frame length = %d, want %d", len(got), 9+25)
	}
	length := int(got[4])<<8 | int(got[5])
	if length != 28 {
		t.Errorf("length field = %d, want 28", length)
	}
	byteCount := got[8]
	if byteCount != 25 {
		t.Errorf("byte_count = %d, want 25", byteCount)
	}
	payload := got[9:]
	for i, b := range payload {
		if b != 0xFF {
			t.Errorf("payload[%d] = %#x, want 0xFF", i, b)
		}
	}
}

// Scenario 4: read 0 coils -> exception 3.
func TestScenario4ZeroQuantity(t *testing.T) {
	ctx := context.Background()
	store := datastore.NewMemoryStore()

	req := parseOrFail(t, "00 04 00 00 00 06 00 01 00 00 00 00")
	got := Handle(ctx, req, store)
	want := hexBytes(t, "00 04 00 00 00 03 00 81 03")
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

// Scenario 5: unsupported function code 5 -> exception 1.
func TestScenario5UnsupportedFunction(t *testing.T) {
	ctx := context.Background()
	store := datastore.NewMemoryStore()

	req := parseOrFail(t, "00 05 00 00 00 06 00 05 00 00 00 01")
	got := Handle(ctx, req, store)
	want := hexBytes(t, "00 05 00 00 00 03 00 85 01")
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

// Scenario 6: read one holding register never written -> exception 2.
func TestScenario6AddressNotFound(t *testing.T) {
	ctx := context.Background()
	store := datastore.NewMemoryStore()

	req := parseOrFail(t, "00 06 00 00 00 06 00 03 00 00 00 01")
	got := Handle(ctx, req, store)
	want := hexBytes(t, "00 06 00 00 00 03 00 83 02")
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestBoundaryCoilQuantity2000Succeeds2001Fails(t *testing.T) {
	ctx := context.Background()
	store := datastore.NewMemoryStore()
	for a := datastore.Address(0); a < 2000; a++ {
		_ = store.Write(ctx, datastore.Coils, a, true, 0)
	}

	ok := Handle(ctx, protocol.Header{FunctionCode: 1, Data: []byte{0, 0, 0x07, 0xD0}}, store) // 2000
	if ok[7] != 0x01 {
		t.Errorf("quantity 2000 unexpectedly failed: function byte = %#x", ok[7])
	}

	bad := Handle(ctx, protocol.Header{FunctionCode: 1, Data: []byte{0, 0, 0x07, 0xD1}}, store) // 2001
	if bad[7] != 0x81 {
		t.Errorf("quantity 2001 did not raise exception: % x", bad)
	}
}

func TestBoundaryRegisterQuantity125Succeeds126Fails(t *testing.T) {
	ctx := context.Background()
	store := datastore.NewMemoryStore()
	for a := datastore.Address(0); a < 126; a++ {
		_ = store.Write(ctx, datastore.HoldingRegisters, a, int16(0), 'h')
	}

	ok := Handle(ctx, protocol.Header{FunctionCode: 3, Data: []byte{0, 0, 0, 125}}, store)
	if ok[7] != 0x03 {
		t.Errorf("quantity 125 unexpectedly failed: function byte = %#x", ok[7])
	}

	bad := Handle(ctx, protocol.Header{FunctionCode: 3, Data: []byte{0, 0, 0, 126}}, store)
	if bad[7] != 0x83 {
		t.Errorf("quantity 126 did not raise exception: % x", bad)
	}
}

func TestBackendFailureRaisesException4(t *testing.T) {
	ctx := context.Background()
	store := datastoretest.NewFailingStore()
	_ = store.Seed(ctx, datastore.HoldingRegisters, 0, int16(1), 'h')
	store.SetFail(true)

	got := Handle(ctx, protocol.Header{FunctionCode: 3, Data: []byte{0, 0, 0, 1}}, store)
	if got[7] != 0x83 || got[8] != 0x04 {
		t.Errorf("got % x, want exception 4", got)
	}
}
