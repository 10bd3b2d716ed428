package comm

import (
	"bytes"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/require"
)

func TestEncodeArmCommand(t *testing.T) {
	testCases := []struct {
		name     string
		turret   uint16
		shoulder uint16
		expect   []byte
	}{
		{"zero", 0, 0, []byte{0xea, 0xe3, 0, 0, 0, 0}},
		{"little endian", 0x1234, 0xabcd, []byte{0xea, 0xe3, 0x34, 0x12, 0xcd, 0xab}},
		{"decimal", 300, 700, []byte{0xea, 0xe3, 0x2c, 0x01, 0xbc, 0x02}},
		{"max", 0xffff, 0xffff, []byte{0xea, 0xe3, 0xff, 0xff, 0xff, 0xff}},
		{"sync values as payload", 0xe3ea, 0xeae3, []byte{0xea, 0xe3, 0xea, 0xe3, 0xe3, 0xea}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			frame := EncodeArmCommand(tc.turret, tc.shoulder)
			require.Equal(t, tc.expect, frame.Bytes())
			var buf bytes.Buffer
			n, err := frame.WriteTo(&buf)
			require.NoError(t, err)
			require.Equal(t, tc.expect, buf.Bytes())
			require.EqualValues(t, FrameSize, n)
		})
	}
}

func TestEncodeArmCommandAnyValues(t *testing.T) {
	encode := func(turret, shoulder uint16) []byte {
		return EncodeArmCommand(turret, shoulder).Bytes()
	}
	expect := func(turret, shoulder uint16) []byte {
		return []byte{0xea, 0xe3, byte(turret), byte(turret >> 8), byte(shoulder), byte(shoulder >> 8)}
	}
	require.NoError(t, quick.CheckEqual(encode, expect, &quick.Config{MaxCount: 5000}))
}

func TestFrameBytesIsCopy(t *testing.T) {
	frame := EncodeArmCommand(1, 2)
	b := frame.Bytes()
	b[2] = 0xff
	require.Equal(t, byte(1), frame[2])
}
