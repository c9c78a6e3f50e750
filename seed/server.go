// Package seed is the public, embeddable facade for driving a Modbus TCP
// server from Go test or simulation code: start/stop the listener and push
// values into its datastore without speaking the wire protocol.
package seed

import (
	"context"
	"fmt"

	"github.com/lattice-iot/modbusd/common"
	"github.com/lattice-iot/modbusd/datastore"
	"github.com/lattice-iot/modbusd/encoding"
	"github.com/lattice-iot/modbusd/logging"
	"github.com/lattice-iot/modbusd/server"
)

// Server wraps a server.TCPServer and the datastore.DataStore it reads from,
// exposing convenience setters so a caller never has to construct a
// datastore.Element by hand.
type Server struct {
	tcp   *server.TCPServer
	store datastore.DataStore
}

// Option configures a Server at construction.
type Option func(*config)

type config struct {
	store     datastore.DataStore
	logLevel  common.LogLevel
	autostart bool
}

// WithDatastore overrides the default in-memory datastore, e.g. with a
// datastore.RedisStore for the external-KV backend.
func WithDatastore(store datastore.DataStore) Option {
	return func(c *config) { c.store = store }
}

// WithLogLevel sets the server's log level.
func WithLogLevel(level common.LogLevel) Option {
	return func(c *config) { c.logLevel = level }
}

// WithAutostart starts the listener immediately inside NewServer, matching
// the Python constructor's autostart=True keyword argument.
func WithAutostart(autostart bool) Option {
	return func(c *config) { c.autostart = autostart }
}

// NewServer constructs a Server bound to host:port. If autostart was
// requested and the listener fails to bind, the bind error is swallowed
// here just as the Python original logs and moves on in its background
// thread; call Start explicitly to observe a bind failure.
func NewServer(host string, port int, opts ...Option) *Server {
	cfg := config{store: datastore.NewMemoryStore(), logLevel: common.LevelInfo}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := logging.NewLogger(logging.WithLevel(cfg.logLevel))
	tcp := server.NewTCPServer(host,
		server.WithServerPort(port),
		server.WithServerLogger(logger),
		server.WithServerDataStore(cfg.store),
	)

	s := &Server{tcp: tcp, store: cfg.store}
	if cfg.autostart {
		_ = s.Start(context.Background())
	}
	return s
}

// Start binds the listener and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	return s.tcp.Start(ctx)
}

// Stop closes the listener and disconnects any connected clients.
func (s *Server) Stop(ctx context.Context) error {
	return s.tcp.Stop(ctx)
}

// SetCoil sets a single coil. address is an int, not a datastore.Address, so
// an out-of-range value (< 0 or > 65535) can actually be rejected rather than
// silently wrapping.
func (s *Server) SetCoil(address int, value bool) error {
	return s.setValue(datastore.Coils, address, value, 0)
}

// SetCoils sets consecutive coils starting at start, one address per value.
func (s *Server) SetCoils(start int, values []bool) error {
	addr := start
	for _, v := range values {
		if err := s.SetCoil(addr, v); err != nil {
			return err
		}
		addr++
	}
	return nil
}

// SetDiscreteInput sets a single discrete input.
func (s *Server) SetDiscreteInput(address int, value bool) error {
	return s.setValue(datastore.DiscreteInputs, address, value, 0)
}

// SetDiscreteInputs sets consecutive discrete inputs starting at start.
func (s *Server) SetDiscreteInputs(start int, values []bool) error {
	addr := start
	for _, v := range values {
		if err := s.SetDiscreteInput(addr, v); err != nil {
			return err
		}
		addr++
	}
	return nil
}

// SetInputRegister sets a single input register using the given encoding
// tag, restricted to h/H/e/f as the seed API never writes the Redis-only
// wide encodings (i/I/d).
func (s *Server) SetInputRegister(address int, value interface{}, enc byte) error {
	return s.setValue(datastore.InputRegisters, address, value, enc)
}

// SetInputRegisters sets consecutive input registers, advancing the address
// by each value's word width.
func (s *Server) SetInputRegisters(start int, values []interface{}, enc byte) error {
	return s.setMultiple(datastore.InputRegisters, start, values, enc)
}

// SetHoldingRegister sets a single holding register using the given encoding tag.
func (s *Server) SetHoldingRegister(address int, value interface{}, enc byte) error {
	return s.setValue(datastore.HoldingRegisters, address, value, enc)
}

// SetHoldingRegisters sets consecutive holding registers, advancing the
// address by each value's word width.
func (s *Server) SetHoldingRegisters(start int, values []interface{}, enc byte) error {
	return s.setMultiple(datastore.HoldingRegisters, start, values, enc)
}

// isSeedEncoding reports whether enc is one of the four register encodings
// the seed API (and the in-memory backend) accepts. i/I/d are read back as
// text only by the external-KV backend and are rejected here.
func isSeedEncoding(enc byte) bool {
	switch enc {
	case encoding.TagInt16, encoding.TagUint16, encoding.TagFloat16, encoding.TagFloat32:
		return true
	default:
		return false
	}
}

func (s *Server) setMultiple(kind datastore.Kind, start int, values []interface{}, enc byte) error {
	if !isSeedEncoding(enc) {
		return common.ErrInvalidEncoding
	}
	words := encoding.WordCount(enc)
	addr := start
	for _, v := range values {
		if err := s.setValue(kind, addr, v, enc); err != nil {
			return err
		}
		addr += words
	}
	return nil
}

// setValue mirrors the Python _set_value validation: address range, bit-kind
// type strictness, and register encoding all rejected before ever reaching
// the datastore.
func (s *Server) setValue(kind datastore.Kind, address int, value interface{}, enc byte) error {
	if address < 0 || address > 65535 {
		return fmt.Errorf("%w: %d", common.ErrInvalidAddress, address)
	}

	if kind.IsBitKind() {
		if _, ok := value.(bool); !ok {
			return common.ErrInvalidValueType
		}
	} else if !isSeedEncoding(enc) {
		return common.ErrInvalidEncoding
	}

	return s.store.Write(context.Background(), kind, datastore.Address(address), value, enc)
}

// DumpDatastore returns a snapshot of every element currently held by the
// datastore, keyed by kind name then address: a bool for bit kinds, the raw
// stored word as a uint16 for register kinds. A datastore that does not
// implement datastore.Dumper yields an empty map.
func (s *Server) DumpDatastore() map[string]map[uint16]interface{} {
	dumper, ok := s.store.(datastore.Dumper)
	if !ok {
		return map[string]map[uint16]interface{}{}
	}
	return dumper.Dump()
}
