package rs485

import "errors"

// Domain errors for the RS-485 bridge package.
var (
	// ErrNotConnected is returned when a send is attempted while no live
	// socket exists.
	ErrNotConnected = errors.New("rs485: not connected to gateway")

	// ErrConnectTimeout is returned when a connection attempt exceeds the
	// configured connect timeout. Recovered by the reconnect loop.
	ErrConnectTimeout = errors.New("rs485: gateway connect timed out")

	// ErrConnectionReset is returned when the gateway closes the stream or
	// an I/O error severs the connection. Recovered by the reconnect loop.
	ErrConnectionReset = errors.New("rs485: gateway connection reset")

	// ErrFrameTooShort is returned when an inbound frame is shorter than
	// the fixed protocol header. The frame is dropped, never retried.
	ErrFrameTooShort = errors.New("rs485: frame too short")

	// ErrUnsupportedFunction is returned for any function code other than
	// read holding registers (3) or write single register (6).
	ErrUnsupportedFunction = errors.New("rs485: unsupported function code")

	// ErrMissingSubscriberID is returned when a subscriber attempts to
	// register without an id.
	ErrMissingSubscriberID = errors.New("rs485: subscriber id is required")

	// ErrInvalidConfig is returned when bank configuration fails validation.
	ErrInvalidConfig = errors.New("rs485: invalid configuration")
)
