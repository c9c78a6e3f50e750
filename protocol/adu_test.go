package protocol

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/lattice-iot/modbusd/common"
)

func hexBytes(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex literal %q: %v", s, err)
	}
	return b
}

func TestParseHeaderScenario1(t *testing.T) {
	frame := hexBytes(t, "000100000006000100000002")
	h, err := ParseHeader(frame)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.TransactionID != 1 || h.UnitID != 0 || h.FunctionCode != common.FuncReadCoils {
		t.Errorf("parsed header = %+v", h)
	}
	if !bytes.Equal(h.Data, hexBytes(t, "00000002")) {
		t.Errorf("data = % x", h.Data)
	}
}

func TestParseHeaderRejectsBadProtocolID(t *testing.T) {
	frame := hexBytes(t, "0001000100060001000000")
	if _, err := ParseHeader(frame); err != common.ErrMalformedFrame {
		t.Errorf("err = %v, want ErrMalformedFrame", err)
	}
}

func TestParseHeaderRejectsShortFrame(t *testing.T) {
	if _, err := ParseHeader([]byte{0, 1, 0, 0}); err != common.ErrMalformedFrame {
		t.Errorf("err = %v, want ErrMalformedFrame", err)
	}
}

func TestBuildResponseScenario1(t *testing.T) {
	req := Header{TransactionID: 1, UnitID: 0, FunctionCode: common.FuncReadCoils}
	got := BuildResponse(req, []byte{0x01})
	expect := hexBytes(t, "00010000000400010101")
	if !bytes.Equal(got, expect) {
		t.Errorf("BuildResponse = % x, want % x", got, expect)
	}
}

func TestBuildExceptionScenario5(t *testing.T) {
	req := Header{TransactionID: 5, UnitID: 0, FunctionCode: 5}
	got := BuildException(req, common.ExceptionFunctionCodeNotSupported)
	expect := hexBytes(t, "000500000003008501")
	if !bytes.Equal(got, expect) {
		t.Errorf("BuildException = % x, want % x", got, expect)
	}
}
