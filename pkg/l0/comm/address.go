package comm

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Address schemes known by default.
const (
	SchemeSerial = "serial"
	SchemeTCP    = "tcp"
	SchemeMock   = "mock"
)

// DefaultBaudRate is used when neither the address nor the caller specifies one.
const DefaultBaudRate = 9600

// Address is a parsed device address.
type Address struct {
	Scheme string
	// Path is the device path for serial, host:port for tcp and
	// device name for mock.
	Path     string
	BaudRate int
}

// String returns the address in URL form.
func (a *Address) String() string {
	switch a.Scheme {
	case SchemeSerial:
		return fmt.Sprintf("%s://%s:%d", a.Scheme, a.Path, a.BaudRate)
	default:
		return a.Scheme + "://" + a.Path
	}
}

// ParseAddress parses a device address. The address may override baudRate:
//
//	/dev/ttyUSB2
//	/dev/ttyUSB2:57600
//	serial:///dev/ttyUSB2:57600
//	serial:///dev/ttyUSB2?baud=57600
//	tcp://localhost:5760
//	mock://device
func ParseAddress(address string, baudRate int) (*Address, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errors.New("empty address")
	}
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	if !strings.Contains(address, "://") {
		path, baud, err := splitBaudRate(address, baudRate)
		if err != nil {
			return nil, err
		}
		return &Address{Scheme: SchemeSerial, Path: path, BaudRate: baud}, nil
	}

	u, err := url.Parse(address)
	if err != nil {
		return nil, err
	}
	addr := &Address{Scheme: strings.ToLower(u.Scheme), BaudRate: baudRate}
	switch addr.Scheme {
	case SchemeSerial:
		if addr.Path, addr.BaudRate, err = splitBaudRate(u.Host+u.Path, baudRate); err != nil {
			return nil, err
		}
	case SchemeTCP:
		if _, _, err = net.SplitHostPort(u.Host); err != nil {
			return nil, fmt.Errorf("invalid tcp address %q: %v", u.Host, err)
		}
		addr.Path = u.Host
	default:
		addr.Path = u.Host + u.Path
	}
	if addr.Path == "" {
		return nil, fmt.Errorf("missing device in %q", address)
	}
	if val := u.Query().Get("baud"); val != "" {
		if addr.BaudRate, err = parseBaudRate(val); err != nil {
			return nil, err
		}
	}
	return addr, nil
}

func splitBaudRate(path string, baudRate int) (string, int, error) {
	pos := strings.LastIndex(path, ":")
	if pos < 0 || strings.Contains(path[pos:], "/") {
		return path, baudRate, nil
	}
	baud, err := parseBaudRate(path[pos+1:])
	if err != nil {
		return "", 0, err
	}
	if path = path[:pos]; path == "" {
		return "", 0, errors.New("missing device path")
	}
	return path, baud, nil
}

func parseBaudRate(val string) (int, error) {
	baud, err := strconv.Atoi(val)
	if err != nil || baud <= 0 {
		return 0, fmt.Errorf("invalid baud rate %q", val)
	}
	return baud, nil
}
