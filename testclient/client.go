// Package testclient is a minimal synchronous Modbus TCP client used to
// drive end-to-end tests against a real server.TCPServer over a socket. It
// only speaks the four read function codes this server answers; there is no
// write, retry, or connection-pooling support, matching the server's
// read-only function-code set.
package testclient

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"net"
	"time"

	"github.com/lattice-iot/modbusd/common"
)

// Client is a single, non-pooled TCP connection to a Modbus server.
type Client struct {
	conn          net.Conn
	nextTxnID     uint16
	readTimeout   time.Duration
	unitID        common.UnitID
}

// Option configures a Client at construction.
type Option func(*Client)

// WithUnitID sets the unit ID sent with every request.
func WithUnitID(unitID common.UnitID) Option {
	return func(c *Client) { c.unitID = unitID }
}

// WithReadTimeout bounds how long a single request waits for its response.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Client) { c.readTimeout = d }
}

// Dial connects to a Modbus TCP server at addr ("host:port").
func Dial(addr string, opts ...Option) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("testclient: dial %s: %w", addr, err)
	}
	c := &Client{conn: conn, readTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// ReadCoils reads quantity coils starting at address.
func (c *Client) ReadCoils(address uint16, quantity uint16) ([]bool, error) {
	data, err := c.readRequest(common.FuncReadCoils, address, quantity)
	if err != nil {
		return nil, err
	}
	return unpackBits(data, int(quantity))
}

// ReadDiscreteInputs reads quantity discrete inputs starting at address.
func (c *Client) ReadDiscreteInputs(address uint16, quantity uint16) ([]bool, error) {
	data, err := c.readRequest(common.FuncReadDiscreteInputs, address, quantity)
	if err != nil {
		return nil, err
	}
	return unpackBits(data, int(quantity))
}

// ReadHoldingRegisters reads quantity 16-bit holding registers starting at address.
func (c *Client) ReadHoldingRegisters(address uint16, quantity uint16) ([]uint16, error) {
	data, err := c.readRequest(common.FuncReadHoldingRegisters, address, quantity)
	if err != nil {
		return nil, err
	}
	return unpackRegisters(data, int(quantity))
}

// ReadInputRegisters reads quantity 16-bit input registers starting at address.
func (c *Client) ReadInputRegisters(address uint16, quantity uint16) ([]uint16, error) {
	data, err := c.readRequest(common.FuncReadInputRegisters, address, quantity)
	if err != nil {
		return nil, err
	}
	return unpackRegisters(data, int(quantity))
}

// ModbusError reports an exception response received from the server.
type ModbusError struct {
	FunctionCode  common.FunctionCode
	ExceptionCode common.ExceptionCode
}

func (e *ModbusError) Error() string {
	return fmt.Sprintf("testclient: exception response: function=%s exception=%s",
		e.FunctionCode, e.ExceptionCode)
}

// readRequest sends a 4-byte (address, quantity) read PDU for functionCode
// and returns the response payload, or a *ModbusError for an exception frame.
func (c *Client) readRequest(functionCode common.FunctionCode, address, quantity uint16) ([]byte, error) {
	txnID := c.nextTransactionID()

	pdu := make([]byte, 4)
	binary.BigEndian.PutUint16(pdu[0:2], address)
	binary.BigEndian.PutUint16(pdu[2:4], quantity)

	frame := c.buildFrame(txnID, functionCode, pdu)
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(frame); err != nil {
		return nil, fmt.Errorf("testclient: write request: %w", err)
	}

	return c.readResponse(txnID, functionCode)
}

func (c *Client) nextTransactionID() uint16 {
	c.nextTxnID++
	return c.nextTxnID
}

func (c *Client) buildFrame(txnID uint16, functionCode common.FunctionCode, pdu []byte) []byte {
	length := 2 + len(pdu) // unit_id + function_code + pdu
	frame := make([]byte, 0, 6+length)
	frame = append(frame, byte(txnID>>8), byte(txnID))
	frame = append(frame, 0, 0) // protocol_id
	frame = append(frame, byte(length>>8), byte(length))
	frame = append(frame, byte(c.unitID))
	frame = append(frame, byte(functionCode))
	frame = append(frame, pdu...)
	return frame
}

func (c *Client) readResponse(txnID uint16, functionCode common.FunctionCode) ([]byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return nil, err
	}

	header := make([]byte, common.MBAPHeaderLength)
	if _, err := io.ReadFull(c.conn, header); err != nil {
		return nil, fmt.Errorf("testclient: read header: %w", err)
	}
	gotTxnID := binary.BigEndian.Uint16(header[0:2])
	length := binary.BigEndian.Uint16(header[4:6])
	if gotTxnID != txnID {
		return nil, fmt.Errorf("testclient: transaction id mismatch: got %d, want %d", gotTxnID, txnID)
	}

	rest := make([]byte, int(length)-1)
	if _, err := io.ReadFull(c.conn, rest); err != nil {
		return nil, fmt.Errorf("testclient: read pdu: %w", err)
	}

	respFunctionCode := common.FunctionCode(rest[0])
	if common.IsException(byte(respFunctionCode)) {
		return nil, &ModbusError{FunctionCode: functionCode, ExceptionCode: common.ExceptionCode(rest[1])}
	}
	if respFunctionCode != functionCode {
		return nil, fmt.Errorf("testclient: function code mismatch: got %s, want %s", respFunctionCode, functionCode)
	}

	byteCount := int(rest[1])
	payload := rest[2:]
	if len(payload) != byteCount {
		return nil, fmt.Errorf("testclient: byte count mismatch: header says %d, got %d bytes", byteCount, len(payload))
	}
	return payload, nil
}

func unpackBits(data []byte, quantity int) ([]bool, error) {
	expected := int(math.Ceil(float64(quantity) / 8.0))
	if len(data) != expected {
		return nil, fmt.Errorf("testclient: expected %d bytes for %d bits, got %d", expected, quantity, len(data))
	}
	out := make([]bool, quantity)
	for i := 0; i < quantity; i++ {
		out[i] = (data[i/8]>>(uint(i)%8))&0x01 == 1
	}
	return out, nil
}

func unpackRegisters(data []byte, quantity int) ([]uint16, error) {
	if len(data) != quantity*2 {
		return nil, fmt.Errorf("testclient: expected %d bytes for %d registers, got %d", quantity*2, quantity, len(data))
	}
	out := make([]uint16, quantity)
	for i := 0; i < quantity; i++ {
		out[i] = binary.BigEndian.Uint16(data[i*2 : i*2+2])
	}
	return out, nil
}
