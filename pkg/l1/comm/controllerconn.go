package comm

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/psoc-arm/pkg/framework"
	"github.com/robotalks/psoc-arm/pkg/l1"
	"github.com/robotalks/psoc-arm/pkg/l1/msgs"
)

// DefaultCommandExpiration is the default expiration expecting a result.
const DefaultCommandExpiration = 1 * time.Second

// ErrConnClosed fails commands pending or issued after the pipe ended.
var ErrConnClosed = errors.New("controller connection closed")

// ControllerConn implements l1.ControllerConn over a Pipe. Replies are
// matched to commands by sequence, and commands without a reply fail
// after Expiration.
type ControllerConn struct {
	Expiration time.Duration

	pipe Pipe

	lock      sync.Mutex
	lastSeq   uint32
	queue     list.List // *commandFuture ordered by expireAt
	bySeq     map[uint32]*commandFuture
	closedErr error
}

// Init initializes ControllerConn with defaults.
func (c *ControllerConn) Init(rw PacketReadWriter) {
	c.Expiration = DefaultCommandExpiration
	c.pipe.ReadWriter = rw
	c.pipe.Handler = msgs.HandleTypedMsgFunc(c.handleTypedMsg)
	c.pipe.OnClosed = c.pipeClosed
	c.bySeq = make(map[uint32]*commandFuture)
}

// DoCommand implements ControllerConn.
func (c *ControllerConn) DoCommand(msg fx.Message) l1.CommandFuture {
	c.lock.Lock()
	defer c.lock.Unlock()
	f := newCommandFuture(c.nextSeq(), time.Now().Add(c.Expiration))
	if c.closedErr != nil {
		f.resolve(l1.Result{Err: c.closedErr})
		return f
	}
	if err := c.pipe.SendCommandMsg(msg, f.seq); err != nil {
		f.resolve(l1.Result{Err: err})
		return f
	}
	f.elem = c.queue.PushBack(f)
	c.bySeq[f.seq] = f
	return f
}

// Pending returns the number of commands waiting for results.
func (c *ControllerConn) Pending() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.queue.Len()
}

// AddToLoop implements LoopAdder.
func (c *ControllerConn) AddToLoop(l *fx.Loop) {
	l.Add(&c.pipe)
	l.AddController(fx.PrLvIdle, fx.ControlFunc(c.purgeExpired))
}

// nextSeq skips 0, which marks events.
func (c *ControllerConn) nextSeq() uint32 {
	if c.lastSeq++; c.lastSeq == 0 {
		c.lastSeq++
	}
	return c.lastSeq
}

// settle must be called with lock held.
func (c *ControllerConn) settle(f *commandFuture, res l1.Result) {
	c.queue.Remove(f.elem)
	delete(c.bySeq, f.seq)
	f.resolve(res)
}

func (c *ControllerConn) handleTypedMsg(ctx context.Context, msg fx.Message, typed *msgs.Typed) error {
	if typed.IsEvent() {
		loopCtl := fx.LoopCtlFrom(ctx)
		loopCtl.PostMessage(msg)
		loopCtl.TriggerNext()
		return nil
	}
	res := l1.Result{Msg: msg}
	if cmdErr, ok := msg.(*msgs.CommandErr); ok {
		res.Err = cmdErr
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if f := c.bySeq[typed.Sequence]; f != nil {
		c.settle(f, res)
	} else {
		glog.V(2).Infof("drop reply seq=%d type=%x: no pending command", typed.Sequence, typed.TypeId)
	}
	return nil
}

func (c *ControllerConn) pipeClosed(err error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closedErr != nil {
		return
	}
	c.closedErr = fmt.Errorf("%w: %v", ErrConnClosed, err)
	for c.queue.Len() > 0 {
		c.settle(c.queue.Front().Value.(*commandFuture), l1.Result{Err: c.closedErr})
	}
}

func (c *ControllerConn) purgeExpired(cc fx.ControlContext) error {
	now := time.Now()
	c.lock.Lock()
	defer c.lock.Unlock()
	for c.queue.Len() > 0 {
		f := c.queue.Front().Value.(*commandFuture)
		if f.expireAt.After(now) {
			break
		}
		glog.V(1).Infof("command seq=%d expired", f.seq)
		c.settle(f, l1.Result{Err: context.DeadlineExceeded})
	}
	return nil
}

type commandFuture struct {
	seq      uint32
	expireAt time.Time
	elem     *list.Element
	result   chan l1.Result
}

func newCommandFuture(seq uint32, expireAt time.Time) *commandFuture {
	return &commandFuture{seq: seq, expireAt: expireAt, result: make(chan l1.Result, 1)}
}

func (f *commandFuture) resolve(res l1.Result) {
	f.result <- res
	close(f.result)
}

func (f *commandFuture) ResultChan() <-chan l1.Result {
	return f.result
}
