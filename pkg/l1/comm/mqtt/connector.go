package mqtt

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/robotalks/psoc-arm/pkg/l1"
	"github.com/robotalks/psoc-arm/pkg/l1/comm"
)

// Connector implements l1.Connector using MQTT.
type Connector struct {
	DiscoverTimeout time.Duration

	options     *paho.ClientOptions
	topicPrefix string
}

const (
	// DefaultDiscoverTimeout defines the default timeout value of discovery.
	DefaultDiscoverTimeout = 500 * time.Millisecond
	// DefaultConnectTimeout is used when the context has no deadline.
	DefaultConnectTimeout = 5 * time.Second
)

// NewConnector creates a Connector.
func NewConnector(brokerURL string) (*Connector, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	return &Connector{
		DiscoverTimeout: DefaultDiscoverTimeout,
		options:         opts,
		topicPrefix:     topicPrefix,
	}, nil
}

// Discover implements Connector.
// Controllers publish retained meta when online and clear it when offline,
// a cleared meta removes the controller from the result.
func (c *Connector) Discover(ctx context.Context) ([]l1.ControllerInfo, error) {
	type update struct {
		info   l1.ControllerInfo
		online bool
	}
	q := NewQueue(c.options, c.topicPrefix)
	updateCh := make(chan update, 1)
	q.Sub("+/+/meta", Handler(func(topic string, payload []byte) {
		info, online, ok := parseMeta(topic, payload)
		if !ok {
			return
		}
		select {
		case updateCh <- update{info: info, online: online}:
		case <-time.After(time.Second):
		}
	}))
	if err := q.ConnectWait(DefaultConnectTimeout); err != nil {
		return nil, err
	}
	defer q.Close()

	found := make(map[string]l1.ControllerInfo)
	timeout := time.After(c.timeout())
	for {
		select {
		case u := <-updateCh:
			if u.online {
				found[u.info.Ref.Name()] = u.info
			} else {
				delete(found, u.info.Ref.Name())
			}
		case <-timeout:
			res := make([]l1.ControllerInfo, 0, len(found))
			for _, info := range found {
				res = append(res, info)
			}
			sort.Slice(res, func(i, j int) bool { return res[i].Ref.Name() < res[j].Ref.Name() })
			return res, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// parseMeta parses a <type>/<id>/meta message. An empty payload means
// the controller is offline.
func parseMeta(topic string, payload []byte) (info l1.ControllerInfo, online, ok bool) {
	items := strings.Split(topic, "/")
	if len(items) != 3 || items[2] != "meta" || items[0] == "" || items[1] == "" {
		return info, false, false
	}
	info.Ref = l1.ControllerRef{Type: items[0], ID: items[1]}
	if len(payload) == 0 {
		return info, false, true
	}
	if err := json.Unmarshal(payload, &info.Meta); err != nil {
		glog.Warningf("discover %s: bad meta: %v", info.Ref.Name(), err)
	}
	return info, true, true
}

func (c *Connector) timeout() time.Duration {
	if c.DiscoverTimeout > 0 {
		return c.DiscoverTimeout
	}
	return DefaultDiscoverTimeout
}

// Connect implements Connector.
func (c *Connector) Connect(ctx context.Context, ref l1.ControllerRef) (l1.ControllerConn, error) {
	conn := &ControllerConn{
		Queue: NewQueue(c.options, c.topicPrefix),
	}
	conn.Init(NewPacketReadWriter(conn.Queue).ForConnector(ref))
	timeout := DefaultConnectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if err := conn.Queue.ConnectWait(timeout); err != nil {
		return nil, err
	}
	return conn, nil
}

// ControllerConn implements ControllerConn using MQTT.
type ControllerConn struct {
	comm.ControllerConn
	Queue *Queue
}

// Close disconnects from the broker.
func (c *ControllerConn) Close() error {
	return c.Queue.Close()
}
