package comm

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/psoc-arm/pkg/framework"
)

// Receiver is called when bytes are received from the device.
type Receiver interface {
	BytesReceived(context.Context, []byte)
}

// ReceiveFunc is func type of Receiver.
type ReceiveFunc func(context.Context, []byte)

// BytesReceived implements Receiver.
func (f ReceiveFunc) BytesReceived(ctx context.Context, data []byte) {
	f(ctx, data)
}

// CloseNotifier is called once when the link is closed.
type CloseNotifier interface {
	LinkClosed(context.Context, error)
}

// CloseFunc is func type of CloseNotifier.
type CloseFunc func(context.Context, error)

// LinkClosed implements CloseNotifier.
func (f CloseFunc) LinkClosed(ctx context.Context, err error) {
	f(ctx, err)
}

// DefaultReadBufferSize is the size of the buffer used by each Read.
const DefaultReadBufferSize = 256

// Link owns an opened device.
// Receiver and Notifier must be set before Run.
type Link struct {
	Receiver       Receiver
	Notifier       CloseNotifier
	WriteTimeout   time.Duration // zero means no timeout
	ReadBufferSize int

	addr     *Address
	rwc      io.ReadWriteCloser
	sendLock sync.Mutex

	lock     sync.Mutex
	running  bool
	closed   bool
	notified bool
	err      error
	doneCh   chan struct{}
}

// NewLink wraps an opened stream.
func NewLink(rwc io.ReadWriteCloser, addr *Address) *Link {
	return &Link{
		ReadBufferSize: DefaultReadBufferSize,
		addr:           addr,
		rwc:            rwc,
		doneCh:         make(chan struct{}),
	}
}

// Address gets the address of the device.
func (l *Link) Address() *Address {
	return l.addr
}

// Closed indicates the link is closed.
func (l *Link) Closed() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.closed
}

// Err returns the reason the link was closed.
func (l *Link) Err() error {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.err
}

// Done returns a chan closed after the close notification is fired.
func (l *Link) Done() <-chan struct{} {
	return l.doneCh
}

// Send writes all bytes to the device.
// Concurrent calls are serialized so bytes are never interleaved.
func (l *Link) Send(data []byte) error {
	l.sendLock.Lock()
	defer l.sendLock.Unlock()
	if l.Closed() {
		return ErrLinkClosed
	}
	n, err := l.write(data)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		werr := &WriteError{Written: n, Size: len(data), Err: err}
		glog.Errorf("link %s: %v", l.name(), werr)
		l.shutdown(context.Background(), werr)
		return werr
	}
	if glog.V(2) {
		glog.Infof("SND %s % x", l.name(), data)
	}
	return nil
}

func (l *Link) write(data []byte) (int, error) {
	if l.WriteTimeout <= 0 {
		return l.rwc.Write(data)
	}
	type result struct {
		n   int
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		n, err := l.rwc.Write(data)
		resultCh <- result{n: n, err: err}
	}()
	select {
	case r := <-resultCh:
		return r.n, r.err
	case <-time.After(l.WriteTimeout):
		// the pending write is abandoned, closing the link stops further writes.
		return 0, ErrWriteTimeout
	}
}

// Run reads from the device and dispatches received bytes to Receiver
// until the link is closed or ctx is canceled.
// Notifier is fired once Run returns.
func (l *Link) Run(ctx context.Context) error {
	l.lock.Lock()
	if l.closed {
		l.lock.Unlock()
		return ErrLinkClosed
	}
	if l.running {
		l.lock.Unlock()
		return errors.New("link already running")
	}
	l.running = true
	l.lock.Unlock()

	defer l.notifyClosed(ctx)
	return fx.RunWithContextCancel(ctx, func() {
		l.shutdown(ctx, ctx.Err())
	}, func() error {
		return l.readLoop(ctx)
	})
}

func (l *Link) readLoop(ctx context.Context) error {
	size := l.ReadBufferSize
	if size <= 0 {
		size = DefaultReadBufferSize
	}
	buf := make([]byte, size)
	for {
		n, err := l.rwc.Read(buf)
		if n > 0 && !l.Closed() {
			data := make([]byte, n)
			copy(data, buf[:n])
			if glog.V(2) {
				glog.Infof("RCV %s % x", l.name(), data)
			}
			if r := l.Receiver; r != nil {
				r.BytesReceived(ctx, data)
			}
		}
		if err == nil && n == 0 {
			// no read timeout is ever set, so an empty read means the stream ended.
			err = io.EOF
		}
		if err != nil {
			if l.Closed() {
				return l.Err()
			}
			l.shutdown(ctx, err)
			return err
		}
	}
}

// Close implements io.Closer.
func (l *Link) Close() error {
	l.shutdown(context.Background(), ErrLinkClosed)
	return nil
}

func (l *Link) shutdown(ctx context.Context, reason error) {
	l.lock.Lock()
	if l.closed {
		l.lock.Unlock()
		return
	}
	l.closed, l.err = true, reason
	running := l.running
	l.lock.Unlock()

	if err := l.rwc.Close(); err != nil {
		glog.Warningf("link %s close error: %v", l.name(), err)
	}
	glog.Infof("link %s closed: %v", l.name(), reason)
	if !running {
		l.notifyClosed(ctx)
	}
}

func (l *Link) notifyClosed(ctx context.Context) {
	l.lock.Lock()
	if l.notified {
		l.lock.Unlock()
		return
	}
	l.notified, l.running = true, false
	err := l.err
	l.lock.Unlock()

	close(l.doneCh)
	if n := l.Notifier; n != nil {
		n.LinkClosed(ctx, err)
	}
}

func (l *Link) name() string {
	if l.addr == nil {
		return "<stream>"
	}
	return l.addr.String()
}
