package mqtt

import (
	"context"
	"encoding/json"

	"github.com/golang/glog"

	fx "github.com/robotalks/psoc-arm/pkg/framework"
	"github.com/robotalks/psoc-arm/pkg/l1"
	"github.com/robotalks/psoc-arm/pkg/l1/comm"
)

// Registrar implements l1.Registrar using MQTT.
type Registrar struct {
	Queue *Queue
	Info  l1.ControllerInfo

	metaJSON  string
	registrar comm.Registrar
}

// NewRegistrar creates a Registrar.
func NewRegistrar(brokerURL string, info l1.ControllerInfo) (*Registrar, error) {
	meta, err := json.Marshal(&info.Meta)
	if err != nil {
		return nil, err
	}
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+info.Ref.Name()+"/meta", nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("robo:" + info.Ref.Name())
	}
	r := &Registrar{
		Queue:    NewQueue(opts, topicPrefix),
		Info:     info,
		metaJSON: string(meta),
	}
	r.Queue.OnConnect = func(*Queue) { r.onConnected() }
	r.registrar.Init(NewPacketReadWriter(r.Queue).ForController(info.Ref))
	return r, nil
}

// SendEvent implements Registrar.
func (r *Registrar) SendEvent(ctx context.Context, msg fx.Message) error {
	return r.registrar.SendEvent(ctx, msg)
}

// AddToLoop implements LoopAdder.
func (r *Registrar) AddToLoop(loop *fx.Loop) {
	loop.Add(&r.registrar)
	loop.AddRunnable(r)
}

// Run implements Runnable.
func (r *Registrar) Run(ctx context.Context) error {
	token := r.Queue.Connect()
	go func() {
		if token.Wait() && token.Error() != nil {
			glog.Errorf("mqtt registrar %s: %v", r.Info.Ref.Name(), token.Error())
		}
	}()
	<-ctx.Done()
	// the will only fires on abnormal disconnect, clear meta explicitly.
	if r.Queue.Client.IsConnected() {
		if err := r.Queue.PubWait(r.metaTopic(), nil, 1, true, DefaultPublishTimeout); err != nil {
			glog.Warningf("mqtt registrar %s: clear meta: %v", r.Info.Ref.Name(), err)
		}
	}
	r.Queue.Close()
	return nil
}

func (r *Registrar) metaTopic() string {
	return r.Info.Ref.Name() + "/meta"
}

func (r *Registrar) onConnected() {
	glog.Infof("mqtt registrar %s online", r.Info.Ref.Name())
	r.Queue.PubWith(r.metaTopic(), []byte(r.metaJSON), 1, true)
}
