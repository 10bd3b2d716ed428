package comm

import (
	"context"
	"errors"
	"io"
	"runtime"
	"sync"
	"time"
)

// MockDevice simulates a device opened with a mock:// address.
// It records bytes written by the host and injects bytes to the host.
type MockDevice struct {
	Name string

	lock     sync.Mutex
	written  []byte
	writeCh  chan struct{}
	conn     *mockConn
	failOpen error
}

var (
	mockDevices     = make(map[string]*MockDevice)
	mockDevicesLock sync.Mutex
)

// OpenMockDevice gets the mock device with name, creates one if not exist.
func OpenMockDevice(name string) *MockDevice {
	mockDevicesLock.Lock()
	defer mockDevicesLock.Unlock()
	dev := mockDevices[name]
	if dev == nil {
		dev = &MockDevice{Name: name, writeCh: make(chan struct{}, 1)}
		mockDevices[name] = dev
	}
	return dev
}

// LookupMockDevice gets an existing mock device.
func LookupMockDevice(name string) *MockDevice {
	mockDevicesLock.Lock()
	defer mockDevicesLock.Unlock()
	return mockDevices[name]
}

// RemoveMockDevice removes the mock device, disconnecting the host if opened.
func RemoveMockDevice(name string) {
	mockDevicesLock.Lock()
	dev := mockDevices[name]
	delete(mockDevices, name)
	mockDevicesLock.Unlock()
	if dev != nil {
		dev.Disconnect()
	}
}

// FailOpen makes subsequent opens fail with err. nil restores.
func (d *MockDevice) FailOpen(err error) *MockDevice {
	d.lock.Lock()
	d.failOpen = err
	d.lock.Unlock()
	return d
}

// Written returns a copy of all bytes written by the host.
func (d *MockDevice) Written() []byte {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([]byte(nil), d.written...)
}

// WaitWritten waits until at least n bytes are written by the host.
func (d *MockDevice) WaitWritten(n int, timeout time.Duration) ([]byte, bool) {
	expire := time.After(timeout)
	for {
		if data := d.Written(); len(data) >= n {
			return data, true
		}
		select {
		case <-d.writeCh:
		case <-expire:
			return d.Written(), false
		}
	}
}

// Inject sends bytes to the host. It blocks until the host reads them.
func (d *MockDevice) Inject(data []byte) error {
	d.lock.Lock()
	conn := d.conn
	d.lock.Unlock()
	if conn == nil {
		return errors.New("mock device not opened")
	}
	_, err := conn.pw.Write(data)
	return err
}

// Disconnect simulates the device being unplugged.
func (d *MockDevice) Disconnect() {
	d.lock.Lock()
	conn := d.conn
	d.conn = nil
	d.lock.Unlock()
	if conn != nil {
		conn.lock.Lock()
		conn.closed = true
		conn.lock.Unlock()
		conn.pw.CloseWithError(io.EOF)
	}
}

func (d *MockDevice) open() (*mockConn, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.failOpen != nil {
		return nil, d.failOpen
	}
	if d.conn != nil {
		return nil, errors.New("device busy")
	}
	pr, pw := io.Pipe()
	d.conn = &mockConn{dev: d, pr: pr, pw: pw}
	return d.conn, nil
}

func (d *MockDevice) record(b byte) {
	d.lock.Lock()
	d.written = append(d.written, b)
	d.lock.Unlock()
	select {
	case d.writeCh <- struct{}{}:
	default:
	}
}

type mockConn struct {
	dev *MockDevice
	pr  *io.PipeReader
	pw  *io.PipeWriter

	lock   sync.Mutex
	closed bool
}

func (c *mockConn) Read(p []byte) (int, error) {
	return c.pr.Read(p)
}

// Write records byte by byte, yielding in between, the way a slow UART
// drains its buffer. Unsynchronized writers would interleave.
func (c *mockConn) Write(p []byte) (int, error) {
	for n, b := range p {
		c.lock.Lock()
		closed := c.closed
		c.lock.Unlock()
		if closed {
			return n, io.ErrClosedPipe
		}
		c.dev.record(b)
		runtime.Gosched()
	}
	return len(p), nil
}

func (c *mockConn) Close() error {
	c.lock.Lock()
	c.closed = true
	c.lock.Unlock()
	c.pr.Close()
	c.dev.lock.Lock()
	if c.dev.conn == c {
		c.dev.conn = nil
	}
	c.dev.lock.Unlock()
	return nil
}

func dialMock(ctx context.Context, addr *Address) (io.ReadWriteCloser, error) {
	return OpenMockDevice(addr.Path).open()
}
