package websocket

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/psoc-arm/pkg/framework"
	"github.com/robotalks/psoc-arm/pkg/l1"
	"github.com/robotalks/psoc-arm/pkg/l1/comm"
	"github.com/robotalks/psoc-arm/pkg/l1/msgs"
)

// DefaultPath is the URL path prefix of the registry.
const DefaultPath = "/robo"

// Server implements l1.Registrar by accepting websocket clients directly.
// The controller is reachable at <path>/<type>/<id> and <path>/
// lists the controller info in JSON.
type Server struct {
	Listen string
	Path   string
	Info   l1.ControllerInfo

	lock  sync.RWMutex
	pipes map[*comm.Pipe]struct{}
	addr  net.Addr
	ready chan struct{}
}

// NewServer creates a Server.
func NewServer(listen string, info l1.ControllerInfo) *Server {
	return &Server{
		Listen: listen,
		Path:   DefaultPath,
		Info:   info,
		pipes:  make(map[*comm.Pipe]struct{}),
		ready:  make(chan struct{}),
	}
}

// URLFor builds the registry URL clients use to reach a server on listen.
func URLFor(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "ws://" + listen + DefaultPath
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "ws://" + net.JoinHostPort(host, port) + DefaultPath
}

// Addr returns the listening address once the server is ready.
func (s *Server) Addr() net.Addr {
	<-s.ready
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.addr
}

// SendEvent implements Registrar. The event is broadcast to all clients.
// Clients are written outside the lock, a stalled one doesn't block
// registration of others.
func (s *Server) SendEvent(ctx context.Context, msg fx.Message) error {
	s.lock.RLock()
	pipes := make([]*comm.Pipe, 0, len(s.pipes))
	for pipe := range s.pipes {
		pipes = append(pipes, pipe)
	}
	s.lock.RUnlock()
	var errs fx.AggregatedError
	for _, pipe := range pipes {
		errs.Add(pipe.SendEventMsg(msg))
	}
	return errs.Aggregate()
}

func (s *Server) addPipe(pipe *comm.Pipe) {
	s.lock.Lock()
	s.pipes[pipe] = struct{}{}
	s.lock.Unlock()
}

func (s *Server) removePipe(pipe *comm.Pipe) {
	s.lock.Lock()
	delete(s.pipes, pipe)
	s.lock.Unlock()
}

// Conns returns the number of connected clients.
func (s *Server) Conns() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.pipes)
}

// AddToLoop implements LoopAdder.
func (s *Server) AddToLoop(loop *fx.Loop) {
	loop.AddRunnable(s)
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Listen)
	if err != nil {
		close(s.ready)
		return err
	}
	s.lock.Lock()
	s.addr = ln.Addr()
	s.lock.Unlock()
	close(s.ready)
	glog.Infof("websocket registry listening on %s", ln.Addr())

	prefix := strings.TrimSuffix(s.Path, "/")
	mux := http.NewServeMux()
	mux.HandleFunc(prefix+"/", s.serveInfo)
	mux.Handle(prefix+"/"+s.Info.Ref.Name(), websocket.Server{
		Handler: func(conn *websocket.Conn) { s.serveConn(ctx, conn) },
	})
	srv := &http.Server{Handler: mux}
	return fx.RunWithContextCloser(ctx, srv, func() error {
		if err := srv.Serve(ln); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
}

func (s *Server) serveInfo(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != strings.TrimSuffix(s.Path, "/")+"/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode([]l1.ControllerInfo{s.Info})
}

func (s *Server) serveConn(ctx context.Context, conn *websocket.Conn) {
	conn.PayloadType = websocket.BinaryFrame
	pipe := comm.NewPipe(New(conn))
	pipe.Handler = msgs.HandleTypedMsgFunc(func(ctx context.Context, msg fx.Message, typed *msgs.Typed) error {
		comm.PostTypedMsg(ctx, pipe, msg, typed)
		return nil
	})
	s.addPipe(pipe)
	glog.Infof("websocket client connected: %s", conn.Request().RemoteAddr)

	err := pipe.Run(ctx)

	s.removePipe(pipe)
	glog.Infof("websocket client disconnected: %s: %v", conn.Request().RemoteAddr, err)
}
