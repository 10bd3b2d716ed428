// Package psocarm bridges arm commands to the PSoC arm firmware over a serial link.
package psocarm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/psoc-arm/pkg/framework"
	"github.com/robotalks/psoc-arm/pkg/l0/comm"
	"github.com/robotalks/psoc-arm/pkg/l1"
	l1msgs "github.com/robotalks/psoc-arm/pkg/l1/msgs"
	"github.com/robotalks/psoc-arm/pkg/psocarm/msgs"
)

// ControllerType is the L1 controller type.
const ControllerType = "psoc-arm"

// Controller owns the link to the arm and routes commands to it.
//
// The link is optional: when the device can't be opened, the controller
// stays in StateFailed and rejects every command.
type Controller struct {
	// Registrar receives status events, optional.
	Registrar l1.Registrar
	// Sink receives raw bytes after they are appended to the receive
	// buffer, optional. Must be set before Run.
	Sink comm.ByteSink

	address  string
	received comm.Buffer

	lock  sync.Mutex
	link  *comm.Link
	state State
	err   error
	alive bool
}

// NewController creates a Controller and opens the device at address.
// It never fails, check State or Err for the result.
func NewController(reg l1.Registrar, address string, baudRate int) *Controller {
	return NewControllerContext(context.Background(), reg, address, baudRate)
}

// NewControllerContext is NewController with the open bounded by ctx.
func NewControllerContext(ctx context.Context, reg l1.Registrar, address string, baudRate int) *Controller {
	c := &Controller{Registrar: reg, address: address}
	link, err := comm.OpenContext(ctx, address, baudRate)
	if err != nil {
		glog.Errorf("arm: %v", err)
		c.state, c.err = StateFailed, err
		return c
	}
	link.Receiver = comm.ReceiveFunc(c.bytesReceived)
	link.Notifier = comm.CloseFunc(c.linkClosed)
	c.link, c.state = link, StateOpen
	return c
}

// Link gets the link, nil if the device was never opened.
func (c *Controller) Link() *comm.Link {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.link
}

// State gets the current state.
func (c *Controller) State() State {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.state
}

// Err gets the reason of StateFailed or StateClosed.
func (c *Controller) Err() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.err
}

// Alive indicates bytes have been received from the device.
func (c *Controller) Alive() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.alive
}

// Received returns a copy of all raw bytes received.
func (c *Controller) Received() []byte {
	return c.received.Bytes()
}

// Status reports the current status.
func (c *Controller) Status() *msgs.ArmStatus {
	c.lock.Lock()
	defer c.lock.Unlock()
	status := &msgs.ArmStatus{
		State:         c.state.String(),
		Address:       c.address,
		Alive:         c.alive,
		ReceivedBytes: uint64(c.received.Len()),
	}
	if c.link != nil {
		status.Address = c.link.Address().String()
	}
	if c.err != nil {
		status.Error = c.err.Error()
	}
	return status
}

// HandleCommand sends an ArmCommand to the device.
func (c *Controller) HandleCommand(cmd *msgs.ArmCommand) error {
	if cmd.Turret > 0xffff || cmd.Shoulder > 0xffff {
		err := fmt.Errorf("%w: turret=%d shoulder=%d", ErrFieldRange, cmd.Turret, cmd.Shoulder)
		glog.Warningf("arm command rejected: %v", err)
		return err
	}
	return c.Move(uint16(cmd.Turret), uint16(cmd.Shoulder))
}

// Move encodes a frame and writes it to the device.
// It's only allowed in StateOpen.
func (c *Controller) Move(turret, shoulder uint16) error {
	link, err := c.openLink()
	if err != nil {
		glog.Warningf("arm command rejected: %v", err)
		return err
	}
	frame := comm.EncodeArmCommand(turret, shoulder)
	if err = link.Send(frame[:]); err != nil {
		var werr *comm.WriteError
		if errors.As(err, &werr) || errors.Is(err, comm.ErrLinkClosed) {
			c.markClosed(err)
		}
		return &StateError{State: c.State(), Err: err}
	}
	glog.V(2).Infof("arm moved turret=%d shoulder=%d", turret, shoulder)
	return nil
}

func (c *Controller) openLink() (*comm.Link, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.link == nil {
		return nil, &StateError{State: c.state, Err: ErrNoLink}
	}
	if c.state != StateOpen {
		return nil, &StateError{State: c.state, Err: comm.ErrLinkClosed}
	}
	return c.link, nil
}

func (c *Controller) bytesReceived(ctx context.Context, data []byte) {
	c.received.Write(data)
	if s := c.Sink; s != nil {
		if _, err := s.Write(data); err != nil {
			glog.Warningf("arm sink error: %v", err)
		}
	}
	c.lock.Lock()
	c.alive = true
	c.lock.Unlock()
}

// linkClosed is where reconnection would be hooked in.
// For now the controller stays closed and reports the status.
func (c *Controller) linkClosed(ctx context.Context, err error) {
	if c.markClosed(err) {
		glog.Warningf("arm link lost: %v", err)
	}
	if reg := c.Registrar; reg != nil {
		if err := reg.SendEvent(ctx, c.Status()); err != nil {
			glog.Warningf("arm status event error: %v", err)
		}
	}
}

func (c *Controller) markClosed(err error) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.state != StateOpen {
		return false
	}
	c.state, c.err = StateClosed, err
	return true
}

// Close closes the link if opened.
func (c *Controller) Close() error {
	if link := c.Link(); link != nil {
		return link.Close()
	}
	return nil
}

// AddToLoop implements LoopAdder.
func (c *Controller) AddToLoop(loop *fx.Loop) {
	loop.AddRunnable(fx.NamedRun(ControllerType, c))
	loop.AddController(fx.PrLvControl, c)
}

// Run implements Runnable. It reads from the device until ctx is canceled.
// A lost link doesn't stop Run, commands keep being rejected.
func (c *Controller) Run(ctx context.Context) error {
	if link := c.Link(); link != nil {
		if err := link.Run(ctx); err != nil && err != context.Canceled {
			glog.V(1).Infof("arm link stopped: %v", err)
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

// Control implements Controller.
func (c *Controller) Control(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		cmdMsg, ok := mctx.CurrentMessage().(*l1.CommandMsg)
		if !ok {
			return
		}
		var reply fx.Message
		switch m := cmdMsg.Command.Msg().(type) {
		case *msgs.ArmCommand:
			if err := c.HandleCommand(m); err != nil {
				reply = l1msgs.NewCommandErr(err)
			} else {
				reply = l1msgs.NewCommandOK()
			}
		case *msgs.ArmStatusQuery:
			reply = &msgs.ArmStatusReply{Status: c.Status()}
		default:
			return
		}
		mctx.MessageTaken()
		if err := cmdMsg.Command.Done(reply); err != nil {
			glog.Warningf("arm reply error: %v", err)
		}
	}))
	return nil
}
