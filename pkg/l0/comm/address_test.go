package comm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	testCases := []struct {
		address string
		baud    int
		expect  Address
		str     string
	}{
		{"/dev/ttyUSB2", 9600, Address{SchemeSerial, "/dev/ttyUSB2", 9600}, "serial:///dev/ttyUSB2:9600"},
		{"/dev/ttyUSB2", 0, Address{SchemeSerial, "/dev/ttyUSB2", DefaultBaudRate}, "serial:///dev/ttyUSB2:9600"},
		{"/dev/ttyUSB2:57600", 9600, Address{SchemeSerial, "/dev/ttyUSB2", 57600}, "serial:///dev/ttyUSB2:57600"},
		{" /dev/ttyACM0 ", 115200, Address{SchemeSerial, "/dev/ttyACM0", 115200}, "serial:///dev/ttyACM0:115200"},
		{"COM3", 9600, Address{SchemeSerial, "COM3", 9600}, "serial://COM3:9600"},
		{"serial:///dev/ttyUSB2", 9600, Address{SchemeSerial, "/dev/ttyUSB2", 9600}, "serial:///dev/ttyUSB2:9600"},
		{"serial:///dev/ttyUSB2:19200", 9600, Address{SchemeSerial, "/dev/ttyUSB2", 19200}, "serial:///dev/ttyUSB2:19200"},
		{"serial:///dev/ttyUSB2?baud=38400", 9600, Address{SchemeSerial, "/dev/ttyUSB2", 38400}, "serial:///dev/ttyUSB2:38400"},
		{"tcp://localhost:5760", 9600, Address{SchemeTCP, "localhost:5760", 9600}, "tcp://localhost:5760"},
		{"mock://arm", 9600, Address{SchemeMock, "arm", 9600}, "mock://arm"},
		{"other://dev/x", 9600, Address{"other", "dev/x", 9600}, "other://dev/x"},
	}

	for _, tc := range testCases {
		t.Run(tc.address, func(t *testing.T) {
			addr, err := ParseAddress(tc.address, tc.baud)
			require.NoError(t, err)
			require.Equal(t, tc.expect, *addr)
			require.Equal(t, tc.str, addr.String())
		})
	}
}

func TestParseAddressErrors(t *testing.T) {
	for _, address := range []string{
		"",
		"   ",
		"/dev/ttyUSB2:fast",
		"/dev/ttyUSB2:0",
		"/dev/ttyUSB2:-9600",
		":9600",
		"serial://",
		"serial:///dev/ttyUSB2?baud=x",
		"tcp://localhost",
		"mock://",
	} {
		t.Run(address, func(t *testing.T) {
			_, err := ParseAddress(address, 9600)
			require.Error(t, err)
		})
	}
}
