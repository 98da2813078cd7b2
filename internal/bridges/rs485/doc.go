// Package rs485 implements the RS-485 relay bridge for Gray Logic.
//
// This package provides connectivity to banks of RS-485 relay/switch modules
// reached through a TCP-to-serial gateway. The gateway speaks a Modbus-like
// binary protocol (read holding registers / write single register) and echoes
// every bus frame back over the same TCP stream.
//
// # Architecture
//
// The bridge operates as a translator between two buses:
//
//	┌─────────────────┐          ┌─────────────────┐   TCP    ┌─────────┐
//	│   Gray Logic    │   MQTT   │  RS-485 Bridge  │  gateway │ RS-485  │
//	│      Core       │◄────────►│   (this pkg)    │◄────────►│  bus    │
//	└─────────────────┘          └─────────────────┘          └─────────┘
//
// # Key Responsibilities
//
//   - Maintain one persistent TCP connection per gateway with
//     exponential-backoff reconnection (Conn)
//   - Encode and decode the gateway's binary register frames (codec)
//   - Fan every inbound frame out to all subscribed devices (Hub)
//   - Derive per-switch boolean state from the shared register bitfield and
//     serialize toggle writes against concurrent reads (Bank, Switch)
//   - Probe connection liveness with a per-bank watchdog (Watchdog)
//   - Translate MQTT commands to register writes and register changes to
//     MQTT state messages (Bridge)
//
// # Register Bitfield
//
// All switches on one slave share a single holding register. The device
// family transmits the bitfield bit-reversed relative to switch numbering:
// switch index i (1-based) reads bit i-1 of the register value reduced
// modulo the configured state modulus. Toggles XOR the raw switch index
// into the register value; the most recent value observed on the wire is
// always authoritative over locally computed ones.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package rs485
