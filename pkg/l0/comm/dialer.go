package comm

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/golang/glog"
	"go.bug.st/serial"
)

// Dialer opens the device of an Address.
type Dialer interface {
	Dial(context.Context, *Address) (io.ReadWriteCloser, error)
}

// DialFunc is func type of Dialer.
type DialFunc func(context.Context, *Address) (io.ReadWriteCloser, error)

// Dial implements Dialer.
func (f DialFunc) Dial(ctx context.Context, addr *Address) (io.ReadWriteCloser, error) {
	return f(ctx, addr)
}

var (
	dialers = map[string]Dialer{
		SchemeSerial: DialFunc(dialSerial),
		SchemeTCP:    DialFunc(dialTCP),
		SchemeMock:   DialFunc(dialMock),
	}
	dialersLock sync.RWMutex
)

// RegisterDialer registers a Dialer for a scheme, replacing existing one.
func RegisterDialer(scheme string, dialer Dialer) {
	dialersLock.Lock()
	dialers[scheme] = dialer
	dialersLock.Unlock()
}

// Open opens the device at address.
// baudRate is used unless the address specifies one.
func Open(address string, baudRate int) (*Link, error) {
	return OpenContext(context.Background(), address, baudRate)
}

// OpenContext opens the device at address, bounded by ctx.
// All errors are returned as *DeviceOpenError.
func OpenContext(ctx context.Context, address string, baudRate int) (*Link, error) {
	addr, err := ParseAddress(address, baudRate)
	if err != nil {
		return nil, &DeviceOpenError{Address: address, Err: err}
	}
	dialersLock.RLock()
	dialer := dialers[addr.Scheme]
	dialersLock.RUnlock()
	if dialer == nil {
		return nil, &DeviceOpenError{Address: address, Err: ErrUnknownScheme}
	}
	if err = ctx.Err(); err != nil {
		return nil, &DeviceOpenError{Address: address, Err: err}
	}
	rwc, err := dialer.Dial(ctx, addr)
	if err != nil {
		return nil, &DeviceOpenError{Address: address, Err: err}
	}
	glog.Infof("link %s opened", addr)
	return NewLink(rwc, addr), nil
}

func dialSerial(ctx context.Context, addr *Address) (io.ReadWriteCloser, error) {
	mode := &serial.Mode{
		BaudRate: addr.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	return serial.Open(addr.Path, mode)
}

func dialTCP(ctx context.Context, addr *Address) (io.ReadWriteCloser, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr.Path)
}
