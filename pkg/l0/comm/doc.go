// Package comm provides L0 link support.
package comm

// L0 link is communicated between the PSoC arm firmware and the L1
// controller over a peer-to-peer channel (e.g. serial port).
//
// Commands are sent as fixed-size frames: two sync bytes followed by
// two little-endian 16-bit fields. There is no checksum and the firmware
// never acknowledges a frame.
// If needed, parity bits can be enabled on serial port for verification.
//
// Bytes sent back by the firmware are not framed. They are delivered
// raw to a Receiver, and usually collected by a ByteSink.
//
// Producer: L1 controller (commands), L0 firmware (raw telemetry)
// Consumer: L0 firmware (commands), L1 controller (raw telemetry)
