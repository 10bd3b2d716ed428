// Package mqtttest provides an in-memory MQTT broker and paho.Client
// for tests.
//
// Publishes are flushed to the broker asynchronously, the way paho does.
// A Disconnect with zero quiesce may drop publishes not yet flushed.
package mqtttest

import (
	"errors"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const queueDepth = 64

// Broker routes messages between Clients and keeps retained messages.
type Broker struct {
	lock        sync.Mutex
	retained    map[string][]byte
	clients     map[*Client]struct{}
	connectErr  error
	disconnects []uint
}

// NewBroker creates an empty Broker.
func NewBroker() *Broker {
	return &Broker{
		retained: make(map[string][]byte),
		clients:  make(map[*Client]struct{}),
	}
}

// NewClient has the signature of paho.NewClient.
func (b *Broker) NewClient(opts *paho.ClientOptions) paho.Client {
	return &Client{broker: b, opts: *opts, subs: make(map[string]paho.MessageHandler)}
}

// FailConnect makes subsequent connects fail with err, nil restores.
func (b *Broker) FailConnect(err error) {
	b.lock.Lock()
	b.connectErr = err
	b.lock.Unlock()
}

// Publish publishes a message not coming from any client.
func (b *Broker) Publish(topic string, payload []byte, retain bool) {
	b.route(&message{topic: topic, payload: payload, retained: retain})
}

// Retained gets the retained payload of topic.
func (b *Broker) Retained(topic string) ([]byte, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	payload, ok := b.retained[topic]
	return payload, ok
}

// Connected returns the number of connected clients.
func (b *Broker) Connected() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.clients)
}

// Subscribed tells whether any connected client receives topic.
func (b *Broker) Subscribed(topic string) bool {
	b.lock.Lock()
	clients := make([]*Client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.lock.Unlock()
	for _, c := range clients {
		if c.subscribed(topic) {
			return true
		}
	}
	return false
}

// Disconnects returns the quiesce of every clean disconnect.
func (b *Broker) Disconnects() []uint {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]uint(nil), b.disconnects...)
}

func (b *Broker) attach(c *Client) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.connectErr != nil {
		return b.connectErr
	}
	b.clients[c] = struct{}{}
	return nil
}

func (b *Broker) detach(c *Client, quiesce uint) {
	b.lock.Lock()
	delete(b.clients, c)
	b.disconnects = append(b.disconnects, quiesce)
	b.lock.Unlock()
}

// route stores or clears the retained message, then delivers to every
// subscribed client once.
func (b *Broker) route(m *message) {
	b.lock.Lock()
	if m.retained {
		if len(m.payload) == 0 {
			delete(b.retained, m.topic)
		} else {
			b.retained[m.topic] = m.payload
		}
	}
	clients := make([]*Client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.lock.Unlock()
	live := &message{topic: m.topic, payload: m.payload, qos: m.qos}
	for _, c := range clients {
		if c.subscribed(m.topic) {
			c.deliver(live)
		}
	}
}

func (b *Broker) retainedFor(pattern string) (msgs []*message) {
	b.lock.Lock()
	defer b.lock.Unlock()
	for topic, payload := range b.retained {
		if match(topic, pattern) {
			msgs = append(msgs, &message{topic: topic, payload: payload, retained: true})
		}
	}
	return
}

var _ paho.Client = (*Client)(nil)

// Client implements paho.Client against a Broker.
type Client struct {
	broker *Broker
	opts   paho.ClientOptions

	lock      sync.Mutex
	connected bool
	subs      map[string]paho.MessageHandler
	outCh     chan *pubToken
	inCh      chan *message
	stopCh    chan uint
	doneCh    chan struct{}
}

// IsConnected implements paho.Client.
func (c *Client) IsConnected() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.connected
}

// IsConnectionOpen implements paho.Client.
func (c *Client) IsConnectionOpen() bool {
	return c.IsConnected()
}

// Connect implements paho.Client. OnConnect is called asynchronously.
func (c *Client) Connect() paho.Token {
	c.lock.Lock()
	if c.connected {
		c.lock.Unlock()
		return doneToken(nil)
	}
	if err := c.broker.attach(c); err != nil {
		c.lock.Unlock()
		return doneToken(err)
	}
	c.connected = true
	c.outCh = make(chan *pubToken, queueDepth)
	c.inCh = make(chan *message, queueDepth)
	c.stopCh = make(chan uint)
	c.doneCh = make(chan struct{})
	go c.outbound(c.outCh, c.stopCh, c.doneCh)
	go c.inbound(c.inCh, c.doneCh)
	c.lock.Unlock()
	if h := c.opts.OnConnect; h != nil {
		go h(c)
	}
	return doneToken(nil)
}

// Disconnect implements paho.Client. Publishes not yet flushed are only
// delivered when quiesce is not zero.
func (c *Client) Disconnect(quiesce uint) {
	c.lock.Lock()
	if !c.connected {
		c.lock.Unlock()
		return
	}
	c.connected = false
	c.subs = make(map[string]paho.MessageHandler)
	stopCh, doneCh := c.stopCh, c.doneCh
	c.lock.Unlock()
	stopCh <- quiesce
	<-doneCh
	c.broker.detach(c, quiesce)
}

// Publish implements paho.Client.
func (c *Client) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	var data []byte
	switch p := payload.(type) {
	case []byte:
		data = p
	case string:
		data = []byte(p)
	default:
		return doneToken(errors.New("unknown payload type"))
	}
	c.lock.Lock()
	connected, outCh, doneCh := c.connected, c.outCh, c.doneCh
	c.lock.Unlock()
	if !connected {
		return doneToken(paho.ErrNotConnected)
	}
	t := &pubToken{
		token: token{done: make(chan struct{})},
		msg:   &message{topic: topic, payload: data, qos: qos, retained: retained},
	}
	select {
	case outCh <- t:
		return t
	case <-doneCh:
		return doneToken(paho.ErrNotConnected)
	}
}

// Subscribe implements paho.Client.
func (c *Client) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	return c.SubscribeMultiple(map[string]byte{topic: qos}, callback)
}

// SubscribeMultiple implements paho.Client. Matching retained messages are
// delivered after subscribing.
func (c *Client) SubscribeMultiple(filters map[string]byte, callback paho.MessageHandler) paho.Token {
	c.lock.Lock()
	if !c.connected {
		c.lock.Unlock()
		return doneToken(paho.ErrNotConnected)
	}
	for topic := range filters {
		c.subs[topic] = callback
	}
	c.lock.Unlock()
	for topic := range filters {
		for _, m := range c.broker.retainedFor(topic) {
			c.deliver(m)
		}
	}
	return doneToken(nil)
}

// Unsubscribe implements paho.Client.
func (c *Client) Unsubscribe(topics ...string) paho.Token {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.connected {
		return doneToken(paho.ErrNotConnected)
	}
	for _, topic := range topics {
		delete(c.subs, topic)
	}
	return doneToken(nil)
}

// AddRoute implements paho.Client. Routes are not supported.
func (c *Client) AddRoute(topic string, callback paho.MessageHandler) {}

// OptionsReader implements paho.Client.
func (c *Client) OptionsReader() paho.ClientOptionsReader {
	return paho.ClientOptionsReader{}
}

func (c *Client) outbound(outCh chan *pubToken, stopCh chan uint, doneCh chan struct{}) {
	defer close(doneCh)
	for {
		select {
		case t := <-outCh:
			c.flush(t)
		case quiesce := <-stopCh:
			for quiesce > 0 {
				select {
				case t := <-outCh:
					c.flush(t)
				default:
					return
				}
			}
			return
		}
	}
}

func (c *Client) flush(t *pubToken) {
	c.broker.route(t.msg)
	close(t.done)
}

func (c *Client) inbound(inCh chan *message, doneCh chan struct{}) {
	for {
		select {
		case m := <-inCh:
			if h := c.handlerFor(m.topic); h != nil {
				h(c, m)
			}
		case <-doneCh:
			return
		}
	}
}

func (c *Client) subscribed(topic string) bool {
	return c.handlerFor(topic) != nil
}

func (c *Client) handlerFor(topic string) paho.MessageHandler {
	c.lock.Lock()
	defer c.lock.Unlock()
	for pattern, h := range c.subs {
		if match(topic, pattern) {
			return h
		}
	}
	return nil
}

func (c *Client) deliver(m *message) {
	c.lock.Lock()
	connected, inCh, doneCh := c.connected, c.inCh, c.doneCh
	c.lock.Unlock()
	if !connected {
		return
	}
	select {
	case inCh <- m:
	case <-doneCh:
	}
}

func match(topic, pattern string) bool {
	t, p := strings.Split(topic, "/"), strings.Split(pattern, "/")
	for n, token := range p {
		if token == "#" {
			return n+1 == len(p)
		}
		if n >= len(t) || (token != "+" && token != t[n]) {
			return false
		}
	}
	return len(t) == len(p)
}

type token struct {
	done chan struct{}
	err  error
}

func doneToken(err error) *token {
	t := &token{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *token) Wait() bool {
	<-t.done
	return true
}

func (t *token) WaitTimeout(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-t.done:
		return true
	case <-timer.C:
		return false
	}
}

func (t *token) Error() error {
	return t.err
}

type pubToken struct {
	token
	msg *message
}

type message struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func (m *message) Duplicate() bool   { return false }
func (m *message) Qos() byte         { return m.qos }
func (m *message) Retained() bool    { return m.retained }
func (m *message) Topic() string     { return m.topic }
func (m *message) MessageID() uint16 { return 0 }
func (m *message) Payload() []byte   { return m.payload }
func (m *message) Ack()              {}
