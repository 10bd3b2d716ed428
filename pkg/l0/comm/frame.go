package comm

import "io"

// Frame sync bytes.
const (
	SyncA byte = 0xea
	SyncB byte = 0xe3
)

// FrameSize is the size of an encoded arm command.
const FrameSize = 6

// Frame is an encoded arm command.
//
//	0: SyncA
//	1: SyncB
//	2: turret low byte
//	3: turret high byte
//	4: shoulder low byte
//	5: shoulder high byte
type Frame [FrameSize]byte

// EncodeArmCommand encodes turret and shoulder into a Frame.
func EncodeArmCommand(turret, shoulder uint16) Frame {
	return Frame{
		SyncA,
		SyncB,
		byte(turret),
		byte(turret >> 8),
		byte(shoulder),
		byte(shoulder >> 8),
	}
}

// Bytes returns encoded bytes for sending.
func (f Frame) Bytes() []byte {
	b := make([]byte, FrameSize)
	copy(b, f[:])
	return b
}

// WriteTo writes encoded bytes.
func (f Frame) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(f[:])
	return int64(n), err
}
