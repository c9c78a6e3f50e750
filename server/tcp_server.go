// Package server implements the listening socket and per-connection
// protocol loop: accepting connections, reading framed requests, handing
// them to the transaction handler, and writing back responses in arrival
// order.
package server

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/lattice-iot/modbusd/common"
	"github.com/lattice-iot/modbusd/datastore"
	"github.com/lattice-iot/modbusd/handler"
	"github.com/lattice-iot/modbusd/logging"
	"github.com/lattice-iot/modbusd/protocol"
)

// TCPServer listens for Modbus TCP connections and serves read requests
// (function codes 1-4) against a single datastore.DataStore.
type TCPServer struct {
	address string
	port    int

	listener net.Listener
	store    datastore.DataStore
	logger   common.LoggerInterface

	mutex        sync.RWMutex
	running      bool
	stopChan     chan struct{}
	acceptDone   chan struct{}
	clients      map[string]*clientConn
	clientsMutex sync.RWMutex
}

// TCPServerOption configures a TCPServer at construction.
type TCPServerOption func(*TCPServer)

// WithServerPort sets the TCP port for the server.
func WithServerPort(port int) TCPServerOption {
	return func(s *TCPServer) { s.port = port }
}

// WithServerLogger sets the logger for the server.
func WithServerLogger(logger common.LoggerInterface) TCPServerOption {
	return func(s *TCPServer) { s.logger = logger }
}

// WithServerDataStore sets the datastore the server reads from.
func WithServerDataStore(store datastore.DataStore) TCPServerOption {
	return func(s *TCPServer) { s.store = store }
}

// NewTCPServer creates a TCPServer bound to address, defaulting to an
// in-memory datastore and the default Modbus TCP port.
func NewTCPServer(address string, options ...TCPServerOption) *TCPServer {
	s := &TCPServer{
		address: address,
		port:    common.DefaultTCPPort,
		store:   datastore.NewMemoryStore(),
		logger:  logging.NewNoopLogger(),
		clients: make(map[string]*clientConn),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Start binds the listening socket and begins accepting connections.
// Ref: spec §4.5 "Listening. Bind to configured host/port, allow address
// reuse, begin accepting. Backlog >= 20." -- Go's default TCP listener
// already reuses the address and uses an OS-default backlog comfortably
// above 20.
func (s *TCPServer) Start(ctx context.Context) error {
	s.mutex.Lock()
	if s.running {
		s.mutex.Unlock()
		return fmt.Errorf("server already running")
	}

	addr := fmt.Sprintf("%s:%d", s.address, s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.mutex.Unlock()
		return fmt.Errorf("%w: %v", common.ErrBindFailure, err)
	}

	s.listener = listener
	s.running = true
	s.stopChan = make(chan struct{})
	s.acceptDone = make(chan struct{})
	s.mutex.Unlock()

	s.logger.Info(ctx, "modbus tcp server started on %s", addr)
	go s.acceptLoop(ctx)
	return nil
}

// Stop closes the listener, which unblocks a concurrent Accept(), and waits
// up to 2 seconds for the accept loop to exit, then closes every tracked
// client connection. In-flight connection workers are not joined; each
// exits on its next read or write once its connection is closed.
//
// Go's net.Listener.Close() reliably unblocks a blocked Accept() call, so
// unlike the portable self-connect trick an implementation without that
// guarantee would need, closing the listener is sufficient here.
func (s *TCPServer) Stop(ctx context.Context) error {
	s.mutex.Lock()
	if !s.running {
		s.mutex.Unlock()
		return nil
	}
	close(s.stopChan)
	listener := s.listener
	acceptDone := s.acceptDone
	s.running = false
	s.mutex.Unlock()

	if listener != nil {
		listener.Close()
	}

	select {
	case <-acceptDone:
	case <-time.After(2 * time.Second):
	}

	s.clientsMutex.Lock()
	for _, c := range s.clients {
		c.conn.Close()
	}
	s.clients = make(map[string]*clientConn)
	s.clientsMutex.Unlock()

	s.logger.Info(ctx, "modbus tcp server stopped")
	return nil
}

// IsRunning reports whether the server is currently accepting connections.
func (s *TCPServer) IsRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.running
}

// Address returns the listener's bound address ("host:port"), useful when
// the server was started with port 0 and the OS assigned an ephemeral port.
// Empty if the server has not been started.
func (s *TCPServer) Address() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// ConnectedClients returns a snapshot of every currently connected client.
func (s *TCPServer) ConnectedClients() []ConnectedClient {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()

	out := make([]ConnectedClient, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, ConnectedClient{
			ID:                c.id,
			RemoteAddr:        c.remoteAddr,
			ConnectedAt:       c.connectedAt,
			RxTransactions:    c.rxCount.Load(),
			TxTransactions:    c.txCount.Load(),
			FunctionCodeStats: fcSnapshot(c),
		})
	}
	return out
}

func (s *TCPServer) acceptLoop(ctx context.Context) {
	defer close(s.acceptDone)

	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopChan:
				return
			default:
				s.logger.Error(ctx, "accept error: %v", err)
				continue
			}
		}

		cc := newClientConn(conn)
		s.logger.Info(ctx, "client connected: %s (%s)", cc.remoteAddr, cc.id)

		s.clientsMutex.Lock()
		s.clients[cc.remoteAddr] = cc
		s.clientsMutex.Unlock()

		go s.handleConnection(ctx, cc)
	}
}

// handleConnection serves one connection until the peer closes or a
// malformed frame forces the connection shut. Requests are processed
// strictly in arrival order: the full response for request N is written
// before request N+1 is read.
func (s *TCPServer) handleConnection(ctx context.Context, cc *clientConn) {
	remoteAddr := cc.remoteAddr
	defer func() {
		s.clientsMutex.Lock()
		delete(s.clients, remoteAddr)
		s.clientsMutex.Unlock()
		cc.conn.Close()
		s.logger.Info(ctx, "client disconnected: %s (%s)", remoteAddr, cc.id)
	}()

	for {
		header := make([]byte, common.MBAPHeaderLength)
		_, err := io.ReadFull(cc.conn, header)
		if err != nil {
			if err == io.EOF || strings.Contains(err.Error(), "use of closed network connection") {
				return
			}
			s.logger.Error(ctx, "error reading header from %s: %v", remoteAddr, err)
			return
		}

		length := binary.BigEndian.Uint16(header[4:6])
		remaining := int(length) - 1 // unit_id already read as part of the 7-byte header
		if remaining <= 0 || common.MBAPHeaderLength+remaining > common.MaxADULength {
			s.logger.Error(ctx, "malformed frame from %s: declared length %d", remoteAddr, length)
			return
		}

		rest := make([]byte, remaining)
		if _, err := io.ReadFull(cc.conn, rest); err != nil {
			s.logger.Error(ctx, "error reading pdu from %s: %v", remoteAddr, err)
			return
		}

		frame := append(header, rest...)
		req, err := protocol.ParseHeader(frame)
		if err != nil {
			s.logger.Error(ctx, "malformed frame from %s: %v", remoteAddr, err)
			return
		}

		cc.rxCount.Add(1)
		cc.fcCount[req.FunctionCode].Add(1)
		s.logger.Debug(ctx, "request from %s (%s): %s", remoteAddr, cc.id, req)

		response := handler.Handle(ctx, req, s.store)

		if _, err := cc.conn.Write(response); err != nil {
			s.logger.Error(ctx, "error writing response to %s: %v", remoteAddr, err)
			return
		}
		cc.txCount.Add(1)
	}
}
