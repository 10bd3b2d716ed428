package comm

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func requireOpenError(t *testing.T, err error) *DeviceOpenError {
	var openErr *DeviceOpenError
	require.True(t, errors.As(err, &openErr), "unexpected error %v", err)
	return openErr
}

func TestOpenErrors(t *testing.T) {
	_, err := Open("", 9600)
	requireOpenError(t, err)

	_, err = Open("nowhere://device", 9600)
	openErr := requireOpenError(t, err)
	require.Equal(t, "nowhere://device", openErr.Address)
	require.True(t, errors.Is(err, ErrUnknownScheme))

	_, err = Open("/dev/psoc-arm-does-not-exist", 9600)
	requireOpenError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = OpenContext(ctx, "mock://open-canceled", 9600)
	requireOpenError(t, err)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestOpenMockFailure(t *testing.T) {
	const name = "open-fail"
	failure := errors.New("no such device")
	OpenMockDevice(name).FailOpen(failure)
	defer RemoveMockDevice(name)
	_, err := Open("mock://"+name, 9600)
	requireOpenError(t, err)
	require.True(t, errors.Is(err, failure))
}

func TestOpenMockBusy(t *testing.T) {
	link, _ := openMock(t, "open-busy")
	_, err := Open("mock://open-busy", 9600)
	requireOpenError(t, err)
	link.Close()
	link, err = Open("mock://open-busy", 9600)
	require.NoError(t, err)
	link.Close()
}

func TestRegisterDialer(t *testing.T) {
	const scheme = "stub"
	var dialed *Address
	RegisterDialer(scheme, DialFunc(func(ctx context.Context, addr *Address) (io.ReadWriteCloser, error) {
		dialed = addr
		return newStubConn(), nil
	}))
	defer func() {
		dialersLock.Lock()
		delete(dialers, scheme)
		dialersLock.Unlock()
	}()
	link, err := Open("stub://device?baud=57600", 9600)
	require.NoError(t, err)
	defer link.Close()
	require.Equal(t, &Address{Scheme: scheme, Path: "device", BaudRate: 57600}, dialed)
	require.Equal(t, dialed, link.Address())
}
