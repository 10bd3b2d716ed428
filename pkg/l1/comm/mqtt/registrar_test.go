package mqtt

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/psoc-arm/pkg/framework"
	"github.com/robotalks/psoc-arm/pkg/l1"
	"github.com/robotalks/psoc-arm/pkg/l1/comm"
	"github.com/robotalks/psoc-arm/pkg/l1/comm/mqtt/mqtttest"
	"github.com/robotalks/psoc-arm/pkg/l1/msgs"
	armmsgs "github.com/robotalks/psoc-arm/pkg/psocarm/msgs"
)

const testBrokerURL = "mqtt://broker:1883/robo/"

var testInfo = l1.ControllerInfo{
	Ref: l1.ControllerRef{Type: "psoc-arm", ID: "a1"},
	Meta: l1.ControllerMeta{
		Description: "PSoC Arm Controller",
		Labels:      map[string]string{"port": "/dev/ttyUSB2"},
	},
}

// runLoop runs a loop until the returned stop is called or the test ends.
func runLoop(t *testing.T, adders ...fx.LoopAdder) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	loop := fx.NewLoop().Add(adders...)
	loop.Interval = 10 * time.Millisecond
	doneCh := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(doneCh)
	}()
	stop = func() {
		cancel()
		<-doneCh
	}
	t.Cleanup(stop)
	return stop
}

func waitRetained(t *testing.T, broker *mqtttest.Broker, topic string) []byte {
	var payload []byte
	require.Eventually(t, func() bool {
		var ok bool
		payload, ok = broker.Retained(topic)
		return ok
	}, testTimeout, 5*time.Millisecond)
	return payload
}

func TestRegistrarPublishesMeta(t *testing.T) {
	broker := useBroker(t)
	reg, err := NewRegistrar(testBrokerURL, testInfo)
	require.NoError(t, err)
	stop := runLoop(t, reg)

	var meta l1.ControllerMeta
	require.NoError(t, json.Unmarshal(waitRetained(t, broker, "robo/psoc-arm/a1/meta"), &meta))
	require.Equal(t, testInfo.Meta, meta)

	stop()
	_, ok := broker.Retained("robo/psoc-arm/a1/meta")
	require.False(t, ok, "meta not cleared")
	require.Equal(t, []uint{DisconnectQuiesce}, broker.Disconnects())
	require.Zero(t, broker.Connected())
}

func TestRegistrarNeverConnected(t *testing.T) {
	broker := useBroker(t)
	broker.FailConnect(assert.AnError)
	reg, err := NewRegistrar(testBrokerURL, testInfo)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- reg.Run(ctx) }()
	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(testTimeout):
		require.FailNow(t, "registrar not stopped")
	}
	require.Empty(t, broker.Disconnects())
}

func TestParseMeta(t *testing.T) {
	testCases := []struct {
		topic   string
		payload string
		online  bool
		ok      bool
	}{
		{"psoc-arm/a1/meta", `{"description":"arm"}`, true, true},
		{"psoc-arm/a1/meta", "", false, true},
		{"psoc-arm/a1/meta", "not json", true, true},
		{"psoc-arm/a1/msg", "{}", false, false},
		{"psoc-arm/meta", "{}", false, false},
		{"/a1/meta", "{}", false, false},
	}
	for _, tc := range testCases {
		info, online, ok := parseMeta(tc.topic, []byte(tc.payload))
		assert.Equal(t, tc.ok, ok, tc.topic)
		assert.Equal(t, tc.online, online, "%s %q", tc.topic, tc.payload)
		if ok {
			assert.Equal(t, "psoc-arm/a1", info.Ref.Name())
		}
	}
	info, _, _ := parseMeta("psoc-arm/a1/meta", []byte(`{"description":"arm"}`))
	assert.Equal(t, "arm", info.Meta.Description)
}

func TestDiscover(t *testing.T) {
	broker := useBroker(t)
	reg, err := NewRegistrar(testBrokerURL, testInfo)
	require.NoError(t, err)
	runLoop(t, reg)
	waitRetained(t, broker, "robo/psoc-arm/a1/meta")

	broker.Publish("robo/psoc-arm/a0/meta", []byte(`{"description":"old arm"}`), true)
	broker.Publish("robo/psoc-arm/gone/meta", []byte(`{"description":"gone"}`), true)
	broker.Publish("robo/psoc-arm/gone/meta", nil, true)

	connector, err := NewConnector(testBrokerURL)
	require.NoError(t, err)
	connector.DiscoverTimeout = 100 * time.Millisecond
	infoList, err := connector.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, infoList, 2)
	assert.Equal(t, "psoc-arm/a0", infoList[0].Ref.Name())
	assert.Equal(t, testInfo, infoList[1])
}

func TestDiscoverConnectError(t *testing.T) {
	broker := useBroker(t)
	broker.FailConnect(assert.AnError)
	connector, err := NewConnector(testBrokerURL)
	require.NoError(t, err)
	_, err = connector.Discover(context.Background())
	require.Equal(t, assert.AnError, err)
	_, err = connector.Connect(context.Background(), testInfo.Ref)
	require.Equal(t, assert.AnError, err)
}

type moveController struct {
	moves chan *armmsgs.ArmCommand
}

func (c *moveController) Control(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		cmdMsg, ok := mctx.CurrentMessage().(*l1.CommandMsg)
		if !ok {
			return
		}
		if cmd, ok := cmdMsg.Command.Msg().(*armmsgs.ArmCommand); ok {
			mctx.MessageTaken()
			c.moves <- cmd
			cmdMsg.Command.Done(&msgs.CommandOK{})
		}
	}))
	return nil
}

func (c *moveController) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvControl, c)
}

func TestCommandOverMQTT(t *testing.T) {
	broker := useBroker(t)
	reg, err := NewRegistrar(testBrokerURL, testInfo)
	require.NoError(t, err)
	ctl := &moveController{moves: make(chan *armmsgs.ArmCommand, 1)}
	runLoop(t, reg, ctl, &comm.UnsupportedCommands{})

	connector, err := NewConnector(testBrokerURL)
	require.NoError(t, err)
	conn, err := connector.Connect(context.Background(), testInfo.Ref)
	require.NoError(t, err)
	mqttConn := conn.(*ControllerConn)
	defer mqttConn.Close()
	runLoop(t, mqttConn)
	require.Eventually(t, func() bool {
		return broker.Subscribed("robo/psoc-arm/a1/cmd") && broker.Subscribed("robo/psoc-arm/a1/msg")
	}, testTimeout, 5*time.Millisecond)

	res := waitResult(t, conn.DoCommand(&armmsgs.ArmCommand{Turret: 300, Shoulder: 700}))
	require.NoError(t, res.Err)
	require.IsType(t, &msgs.CommandOK{}, res.Msg)
	select {
	case cmd := <-ctl.moves:
		require.Equal(t, &armmsgs.ArmCommand{Turret: 300, Shoulder: 700}, cmd)
	default:
		require.Fail(t, "command not handled")
	}

	res = waitResult(t, conn.DoCommand(&armmsgs.ArmStatusQuery{}))
	require.Error(t, res.Err)
	require.Equal(t, msgs.ErrUnsupportedCommand.Error(), res.Err.Error())

	require.NoError(t, reg.SendEvent(context.Background(), &armmsgs.ArmStatus{State: "closed"}))
}

func waitResult(t *testing.T, f l1.CommandFuture) l1.Result {
	select {
	case res := <-f.ResultChan():
		return res
	case <-time.After(testTimeout):
		require.FailNow(t, "no result")
	}
	return l1.Result{}
}
