package server

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/lattice-iot/modbusd/datastore"
)

func TestStartStopLifecycle(t *testing.T) {
	srv := NewTCPServer("127.0.0.1", WithServerPort(0))
	ctx := context.Background()

	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !srv.IsRunning() {
		t.Fatal("expected IsRunning() == true after Start")
	}

	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if srv.IsRunning() {
		t.Fatal("expected IsRunning() == false after Stop")
	}
}

func TestStartTwiceFails(t *testing.T) {
	srv := NewTCPServer("127.0.0.1", WithServerPort(0))
	ctx := context.Background()

	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop(ctx)

	if err := srv.Start(ctx); err == nil {
		t.Fatal("expected error starting an already-running server")
	}
}

func TestStopUnblocksAccept(t *testing.T) {
	srv := NewTCPServer("127.0.0.1", WithServerPort(0))
	ctx := context.Background()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		srv.Stop(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return within 3s; accept loop likely still blocked")
	}
}

func TestConcurrentConnectionsServedIndependently(t *testing.T) {
	store := datastore.NewMemoryStore()
	ctx := context.Background()
	for a := datastore.Address(0); a < 5; a++ {
		_ = store.Write(ctx, datastore.HoldingRegisters, a, int16(a*10), 'h')
	}

	srv := NewTCPServer("127.0.0.1", WithServerPort(0), WithServerDataStore(store))
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop(ctx)

	addr := srv.Address()

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(addrToRead uint16) {
			defer wg.Done()
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				errs <- err
				return
			}
			defer conn.Close()

			frame := make([]byte, 0, 12)
			frame = append(frame, 0, byte(addrToRead)) // transaction id
			frame = append(frame, 0, 0)                 // protocol id
			frame = append(frame, 0, 6)                 // length
			frame = append(frame, 0)                    // unit id
			frame = append(frame, 3)                    // function code: read holding registers
			pdu := make([]byte, 4)
			binary.BigEndian.PutUint16(pdu[0:2], addrToRead)
			binary.BigEndian.PutUint16(pdu[2:4], 1)
			frame = append(frame, pdu...)

			if _, err := conn.Write(frame); err != nil {
				errs <- err
				return
			}

			resp := make([]byte, 11)
			if _, err := conn.Read(resp); err != nil {
				errs <- err
				return
			}

			got := binary.BigEndian.Uint16(resp[9:11])
			if got != addrToRead*10 {
				errs <- fmt.Errorf("address %d: got %d, want %d", addrToRead, got, addrToRead*10)
			}
		}(uint16(i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("connection error: %v", err)
		}
	}
}

func TestMalformedFrameClosesConnection(t *testing.T) {
	srv := NewTCPServer("127.0.0.1", WithServerPort(0))
	ctx := context.Background()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop(ctx)

	conn, err := net.Dial("tcp", srv.Address())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	// Bogus protocol_id (nonzero) -> malformed frame -> connection closed.
	frame := []byte{0, 1, 0, 1, 0, 2, 0, 1}
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("Write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 16)
	n, err := conn.Read(buf)
	if err == nil && n > 0 {
		t.Fatalf("expected connection close, got %d bytes: % x", n, buf[:n])
	}
}
