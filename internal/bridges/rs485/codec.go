package rs485

import (
	"encoding/binary"
	"fmt"
)

// Function codes supported by the gateway.
const (
	// FunctionReadHolding reads one or more holding registers.
	FunctionReadHolding byte = 0x03

	// FunctionWriteSingle writes a single holding register.
	FunctionWriteSingle byte = 0x06
)

// Frame layout constants.
const (
	// requestFrameSize is the fixed size of an outbound request frame.
	requestFrameSize = 12

	// minFrameSize is the minimum size of a decodable inbound frame:
	// header(4) + length(2) + slave(1) + function(1).
	minFrameSize = 8

	// requestPayloadLen is the payload length field value for requests:
	// slave(1) + function(1) + register(2) + argument(2).
	requestPayloadLen = 6
)

// Request represents a single register request to the gateway.
//
// The wire format (big-endian) is:
//
//	Byte 0-3:  0x00000000 (fixed, unused transaction/protocol id)
//	Byte 4-5:  payload length (6 for all requests)
//	Byte 6:    slave address
//	Byte 7:    function code (3 = read holding, 6 = write single)
//	Byte 8-9:  register address
//	Byte 10-11: register count (function 3) or value (function 6)
type Request struct {
	// Slave is the target device address on the RS-485 bus.
	Slave byte

	// Function is the operation: FunctionReadHolding or FunctionWriteSingle.
	Function byte

	// Register is the holding register address.
	Register uint16

	// Argument is the register count for reads or the value for writes.
	Argument uint16
}

// EncodeRead builds a read-holding-registers request frame.
func EncodeRead(slave byte, register, count uint16) []byte {
	return encodeRequest(Request{
		Slave:    slave,
		Function: FunctionReadHolding,
		Register: register,
		Argument: count,
	})
}

// EncodeWrite builds a write-single-register request frame.
func EncodeWrite(slave byte, register, value uint16) []byte {
	return encodeRequest(Request{
		Slave:    slave,
		Function: FunctionWriteSingle,
		Register: register,
		Argument: value,
	})
}

// encodeRequest serialises a Request into the gateway wire format.
func encodeRequest(r Request) []byte {
	buf := make([]byte, requestFrameSize)
	// Bytes 0-3 stay zero.
	binary.BigEndian.PutUint16(buf[4:6], requestPayloadLen)
	buf[6] = r.Slave
	buf[7] = r.Function
	binary.BigEndian.PutUint16(buf[8:10], r.Register)
	binary.BigEndian.PutUint16(buf[10:12], r.Argument)
	return buf
}

// Response is a decoded inbound frame from the gateway.
//
// The gateway echoes requests and read responses in the same layout:
//
//	Byte 0-4:  header, ignored
//	Byte 5:    payload length
//	Byte 6:    slave address
//	Byte 7:    function code
//	Byte 8+:   payload
type Response struct {
	// Slave is the source device address.
	Slave byte

	// Function is the echoed function code.
	Function byte

	// PayloadLen is the declared payload length from the frame header.
	PayloadLen byte

	// Payload holds the bytes following the function code (may be empty).
	Payload []byte
}

// Decode parses an inbound frame from the gateway.
//
// Frames shorter than 8 bytes fail with ErrFrameTooShort and must be
// dropped by the caller, not retried. Function codes other than 3 and 6
// fail with ErrUnsupportedFunction.
func Decode(frame []byte) (Response, error) {
	if len(frame) < minFrameSize {
		return Response{}, fmt.Errorf("%w: %d bytes (need at least %d)",
			ErrFrameTooShort, len(frame), minFrameSize)
	}

	function := frame[7]
	if function != FunctionReadHolding && function != FunctionWriteSingle {
		return Response{}, fmt.Errorf("%w: 0x%02X", ErrUnsupportedFunction, function)
	}

	resp := Response{
		Slave:      frame[6],
		Function:   function,
		PayloadLen: frame[5],
	}
	if len(frame) > minFrameSize {
		resp.Payload = make([]byte, len(frame)-minFrameSize)
		copy(resp.Payload, frame[minFrameSize:])
	}

	return resp, nil
}

// Register returns the register address from the first two payload bytes.
// ok is false when the payload is too short to carry one.
func (r Response) Register() (reg uint16, ok bool) {
	if len(r.Payload) < 2 {
		return 0, false
	}
	return binary.BigEndian.Uint16(r.Payload[0:2]), true
}

// RegisterValue returns the register value carried in the last two payload
// bytes. ok is false when the payload is too short to carry one.
func (r Response) RegisterValue() (value uint16, ok bool) {
	if len(r.Payload) < 2 {
		return 0, false
	}
	return binary.BigEndian.Uint16(r.Payload[len(r.Payload)-2:]), true
}

// String returns a human-readable representation of the response.
func (r Response) String() string {
	fn := "UNKNOWN"
	switch r.Function {
	case FunctionReadHolding:
		fn = "READ"
	case FunctionWriteSingle:
		fn = "WRITE"
	}
	return fmt.Sprintf("Response{Slave:%d, Function:%s, Payload:%X}", r.Slave, fn, r.Payload)
}
