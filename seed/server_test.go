package seed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-iot/modbusd/datastore"
)

func TestSetCoilAndDump(t *testing.T) {
	s := NewServer("127.0.0.1", 0)

	require.NoError(t, s.SetCoil(5, true))

	dump := s.DumpDatastore()
	assert.Equal(t, true, dump["coils"][5])
}

func TestSetCoilsAdvancesByOne(t *testing.T) {
	s := NewServer("127.0.0.1", 0)

	require.NoError(t, s.SetCoils(0, []bool{true, false, true}))

	dump := s.DumpDatastore()
	assert.Equal(t, true, dump["coils"][0])
	assert.Equal(t, false, dump["coils"][1])
	assert.Equal(t, true, dump["coils"][2])
}

func TestSetCoilRejectsNonBool(t *testing.T) {
	s := NewServer("127.0.0.1", 0)
	err := s.setValue(datastore.Coils, 0, "not-a-bool", 0)
	assert.Error(t, err)
}

func TestSetHoldingRegistersAdvancesByWordWidth(t *testing.T) {
	s := NewServer("127.0.0.1", 0)

	// float32 ('f') occupies 2 consecutive addresses.
	require.NoError(t, s.SetHoldingRegisters(0, []interface{}{float32(1.5), float32(2.5)}, 'f'))

	ctx := context.Background()
	elements, err := s.store.Read(ctx, datastore.HoldingRegisters, 0, 4)
	require.NoError(t, err)
	assert.Len(t, elements, 4)
}

func TestSetHoldingRegistersRejectsRedisOnlyEncoding(t *testing.T) {
	s := NewServer("127.0.0.1", 0)
	// 'd' (float64) is accepted by the external-KV backend only, not the
	// seed API or the in-memory backend.
	err := s.SetHoldingRegisters(0, []interface{}{1.5}, 'd')
	assert.Error(t, err)
}

func TestSetInputRegisterRejectsBadEncoding(t *testing.T) {
	s := NewServer("127.0.0.1", 0)
	err := s.SetInputRegister(0, int16(1), 'z')
	assert.Error(t, err)
}

func TestSetValueRejectsOutOfRangeAddress(t *testing.T) {
	s := NewServer("127.0.0.1", 0)
	err := s.setValue(datastore.Coils, 70000, true, 0)
	assert.Error(t, err)
}

func TestStartStopLifecycle(t *testing.T) {
	s := NewServer("127.0.0.1", 0)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Stop(ctx))
}
