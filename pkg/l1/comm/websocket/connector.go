package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/websocket"

	"github.com/robotalks/psoc-arm/pkg/l1"
	"github.com/robotalks/psoc-arm/pkg/l1/comm"
)

// Connector implements l1.Connector by dialing a Server.
type Connector struct {
	// BaseURL is ws://host:port/path of the Server.
	BaseURL *url.URL
	Origin  string
}

// NewConnector creates a Connector from registry URL ws://host:port/path.
func NewConnector(registryURL string) (*Connector, error) {
	u, err := url.Parse(registryURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported websocket scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", registryURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	if u.Path == "" {
		u.Path = DefaultPath
	}
	return &Connector{BaseURL: u, Origin: "http://" + u.Host + "/"}, nil
}

func (c *Connector) urlFor(scheme, path string) string {
	u := *c.BaseURL
	u.Scheme = scheme
	u.Path += path
	return u.String()
}

// Discover implements Connector.
func (c *Connector) Discover(ctx context.Context) ([]l1.ControllerInfo, error) {
	scheme := "http"
	if c.BaseURL.Scheme == "wss" {
		scheme = "https"
	}
	req, err := http.NewRequest(http.MethodGet, c.urlFor(scheme, "/"), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discover failed: %s", resp.Status)
	}
	var res []l1.ControllerInfo
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, err
	}
	return res, nil
}

// Connect implements Connector.
func (c *Connector) Connect(ctx context.Context, ref l1.ControllerRef) (l1.ControllerConn, error) {
	config, err := websocket.NewConfig(c.urlFor(c.BaseURL.Scheme, "/"+ref.Name()), c.Origin)
	if err != nil {
		return nil, err
	}
	ws, err := websocket.DialConfig(config)
	if err != nil {
		return nil, err
	}
	ws.PayloadType = websocket.BinaryFrame
	conn := &ControllerConn{Conn: ws}
	conn.Init(New(ws))
	return conn, nil
}

// ControllerConn implements ControllerConn over a websocket connection.
type ControllerConn struct {
	comm.ControllerConn
	Conn *websocket.Conn
}

// Close closes the connection.
func (c *ControllerConn) Close() error {
	return c.Conn.Close()
}
