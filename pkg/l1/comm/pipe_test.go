package comm

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/psoc-arm/pkg/framework"
	"github.com/robotalks/psoc-arm/pkg/l1"
	"github.com/robotalks/psoc-arm/pkg/l1/msgs"
	armmsgs "github.com/robotalks/psoc-arm/pkg/psocarm/msgs"
)

// chanReadWriter is one end of an in-memory packet connection.
type chanReadWriter struct {
	in, out chan []byte
	closeCh chan struct{}
	once    *sync.Once
}

func newChanPair() (*chanReadWriter, *chanReadWriter) {
	a, b := make(chan []byte, 16), make(chan []byte, 16)
	closeCh, once := make(chan struct{}), &sync.Once{}
	return &chanReadWriter{in: a, out: b, closeCh: closeCh, once: once},
		&chanReadWriter{in: b, out: a, closeCh: closeCh, once: once}
}

func (c *chanReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-c.in:
		return pkt, nil
	case <-c.closeCh:
		return nil, io.EOF
	}
}

func (c *chanReadWriter) WritePacket(pkt []byte) error {
	select {
	case c.out <- pkt:
		return nil
	case <-c.closeCh:
		return io.ErrClosedPipe
	}
}

func (c *chanReadWriter) Close() error {
	c.once.Do(func() { close(c.closeCh) })
	return nil
}

func runLoop(t *testing.T, adders ...fx.LoopAdder) *fx.Loop {
	ctx, cancel := context.WithCancel(context.Background())
	loop := fx.NewLoop().Add(adders...)
	loop.Interval = 10 * time.Millisecond
	doneCh := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(doneCh)
	}()
	t.Cleanup(func() {
		cancel()
		<-doneCh
	})
	return loop
}

type statusController struct{}

func (c *statusController) Control(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		cmdMsg, ok := mctx.CurrentMessage().(*l1.CommandMsg)
		if !ok {
			return
		}
		if _, ok := cmdMsg.Command.Msg().(*armmsgs.ArmStatusQuery); ok {
			mctx.MessageTaken()
			cmdMsg.Command.Done(&armmsgs.ArmStatusReply{Status: &armmsgs.ArmStatus{State: "open"}})
		}
	}))
	return nil
}

func (c *statusController) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvControl, c)
}

func waitResult(t *testing.T, f l1.CommandFuture) l1.Result {
	select {
	case res := <-f.ResultChan():
		return res
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no result")
	}
	return l1.Result{}
}

func TestRegistrarAndControllerConn(t *testing.T) {
	ctlSide, connSide := newChanPair()
	var reg Registrar
	reg.Init(ctlSide)
	runLoop(t, &reg, &statusController{}, &UnsupportedCommands{})

	var conn ControllerConn
	conn.Init(connSide)
	runLoop(t, &conn)

	res := waitResult(t, conn.DoCommand(&armmsgs.ArmStatusQuery{}))
	require.NoError(t, res.Err)
	reply, ok := res.Msg.(*armmsgs.ArmStatusReply)
	require.True(t, ok)
	require.Equal(t, "open", reply.Status.State)

	res = waitResult(t, conn.DoCommand(&armmsgs.ArmCommand{Turret: 1}))
	require.Error(t, res.Err)
	require.Equal(t, msgs.ErrUnsupportedCommand.Error(), res.Err.Error())

	res = waitResult(t, conn.DoCommand(&armmsgs.ArmStatus{}))
	require.Equal(t, ErrNotCommand, res.Err)
}

func TestControllerConnExpiration(t *testing.T) {
	_, connSide := newChanPair()
	var conn ControllerConn
	conn.Init(connSide)
	conn.Expiration = 20 * time.Millisecond
	runLoop(t, &conn)

	f := conn.DoCommand(&armmsgs.ArmStatusQuery{})
	require.Equal(t, 1, conn.Pending())
	res := waitResult(t, f)
	require.Equal(t, context.DeadlineExceeded, res.Err)
	require.Zero(t, conn.Pending())
}

func TestControllerConnClosed(t *testing.T) {
	ctlSide, connSide := newChanPair()
	var conn ControllerConn
	conn.Init(connSide)
	runLoop(t, &conn)

	f := conn.DoCommand(&armmsgs.ArmStatusQuery{})
	require.Equal(t, 1, conn.Pending())
	<-ctlSide.in
	ctlSide.Close()

	res := waitResult(t, f)
	require.True(t, errors.Is(res.Err, ErrConnClosed), "%v", res.Err)
	require.Zero(t, conn.Pending())

	res = waitResult(t, conn.DoCommand(&armmsgs.ArmStatusQuery{}))
	require.True(t, errors.Is(res.Err, ErrConnClosed), "%v", res.Err)
	require.Zero(t, conn.Pending())
}

func TestPipeEvents(t *testing.T) {
	a, b := newChanPair()
	sender := NewPipe(a)
	require.Equal(t, ErrNotEvent, sender.SendEventMsg(&armmsgs.ArmStatusQuery{}))
	require.NoError(t, sender.SendEventMsg(&armmsgs.ArmStatus{State: "closed"}))

	received := make(chan fx.Message, 1)
	receiver := NewPipe(b)
	receiver.Handler = msgs.HandleTypedMsgFunc(func(ctx context.Context, msg fx.Message, typed *msgs.Typed) error {
		received <- msg
		return nil
	})
	errCh := make(chan error, 1)
	go func() { errCh <- receiver.Run(context.Background()) }()

	select {
	case msg := <-received:
		require.Equal(t, &armmsgs.ArmStatus{State: "closed"}, msg)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no event")
	}
	receiver.Close()
	require.Equal(t, io.EOF, <-errCh)
}

func TestPipeRepliesUndecodableCommand(t *testing.T) {
	a, b := newChanPair()
	receiver := NewPipe(a)
	go receiver.Run(context.Background())
	defer receiver.Close()

	pkt, err := (&msgs.Typed{TypeId: msgs.GroupCustom | 0x42, Sequence: 3}).Encode()
	require.NoError(t, err)
	require.NoError(t, b.WritePacket(pkt))

	data, err := b.ReadPacket()
	require.NoError(t, err)
	typed, err := msgs.DecodeTyped(data)
	require.NoError(t, err)
	require.Equal(t, uint32(3), typed.Sequence)
	require.Equal(t, msgs.CommandErrTypeID, typed.TypeId)
}
