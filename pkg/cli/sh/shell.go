package sh

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	fx "github.com/robotalks/psoc-arm/pkg/framework"
	"github.com/robotalks/psoc-arm/pkg/l1"
	env "github.com/robotalks/psoc-arm/pkg/l1/env/connector"
	"github.com/robotalks/psoc-arm/pkg/l1/msgs"
)

// DefaultCommandTimeout bounds waiting for a command result.
const DefaultCommandTimeout = time.Second

// Shell is the ishell backed robocli shell. It holds at most one
// controller connection.
type Shell struct {
	Interactive    bool
	OutputJSON     bool
	AutoConnect    bool
	CommandTimeout time.Duration

	Shell  *ishell.Shell
	Config *env.Config
	Loop   *ConnLoop
}

// ConnLoop is a running loop with a controller connection.
type ConnLoop struct {
	Ctx    context.Context
	Cancel func()
	Ref    l1.ControllerRef
	Loop   *fx.Loop
	Conn   l1.ControllerConn
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var errNotConnected = errors.New("not connected")

var (
	evalOnly   bool
	outputJSON bool

	commands = []*ishell.Cmd{
		&DiscoverCmd,
		&ConnectCmd,
		&DisconnectCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds registers more commands, called from init funcs.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive:    !evalOnly,
		OutputJSON:     outputJSON,
		CommandTimeout: DefaultCommandTimeout,
		Shell:          ishell.New(),
		Config:         conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps a command func requiring a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Loop == nil {
			c.Err(errNotConnected)
			return
		}
		fn(c)
	}
}

// DoCommand runs a command on the connected controller and prints the
// result.
func DoCommand(c *ishell.Context, msg fx.Message) error {
	s := ShellFrom(c)
	res, err := s.Do(msg)
	if err == nil {
		var out string
		if out, err = formatMessage("", res, s.OutputJSON); err == nil {
			c.Println(out)
			return nil
		}
	}
	c.Err(err)
	return err
}

// Do sends a command and waits up to CommandTimeout for its result.
func (s *Shell) Do(msg fx.Message) (fx.Message, error) {
	if s.Loop == nil {
		return nil, errNotConnected
	}
	timer := time.NewTimer(s.CommandTimeout)
	defer timer.Stop()
	select {
	case res := <-s.Loop.Conn.DoCommand(msg).ResultChan():
		return res.Msg, res.Err
	case <-timer.C:
		return nil, fmt.Errorf("command timeout: %w", context.DeadlineExceeded)
	}
}

// formatMessage renders a reply or an event. CommandOK is printed as OK
// unless JSON is requested.
func formatMessage(prefix string, msg fx.Message, asJSON bool) (string, error) {
	if _, ok := msg.(*msgs.CommandOK); ok && !asJSON {
		return prefix + "OK", nil
	}
	sm, ok := msg.(msgs.SerializableMessage)
	if !ok {
		return "", fmt.Errorf("unprintable message %T", msg)
	}
	if asJSON {
		out, err := json.Marshal(sm.Serializable())
		return string(out), err
	}
	name := reflect.Indirect(reflect.ValueOf(msg)).Type().Name()
	return fmt.Sprintf("%s%s %s", prefix, name, sm.Serializable().String()), nil
}

// parseConnectArgs accepts "TYPE ID", "TYPE/ID", "TYPE" or nothing. A
// ref is returned when it is fully given, otherwise the type, possibly
// empty, narrows discovery.
func parseConnectArgs(args []string) (ref *l1.ControllerRef, typ string, err error) {
	switch {
	case len(args) >= 2:
		return &l1.ControllerRef{Type: args[0], ID: args[1]}, "", nil
	case len(args) == 1 && strings.Contains(args[0], "/"):
		r, err := l1.ParseControllerRef(args[0])
		if err != nil {
			return nil, "", err
		}
		return &r, "", nil
	case len(args) == 1:
		return nil, args[0], nil
	}
	return nil, "", nil
}

func filterByType(infoList []l1.ControllerInfo, typ string) []l1.ControllerInfo {
	if typ == "" {
		return infoList
	}
	items := make([]l1.ControllerInfo, 0, len(infoList))
	for _, info := range infoList {
		if info.Ref.Type == typ {
			items = append(items, info)
		}
	}
	return items
}

// DiscoverControllers discovers controllers, of typ if not empty.
func (s *Shell) DiscoverControllers(typ string) ([]l1.ControllerInfo, error) {
	connector, err := s.Config.NewConnector()
	if err != nil {
		return nil, err
	}
	infoList, err := connector.Discover(context.TODO())
	if err != nil {
		return nil, err
	}
	return filterByType(infoList, typ), nil
}

// SelectController discovers controllers and asks for a choice when there
// is more than one. It returns nil when nothing is discovered.
func (s *Shell) SelectController(typ string) (*l1.ControllerInfo, error) {
	infoList, err := s.DiscoverControllers(typ)
	if err != nil || len(infoList) == 0 {
		return nil, err
	}
	if len(infoList) == 1 {
		return &infoList[0], nil
	}
	if !s.Interactive {
		return nil, fmt.Errorf("%d controllers discovered in non-interactive mode", len(infoList))
	}
	items := make([]string, len(infoList))
	for n, info := range infoList {
		items[n] = info.String()
	}
	return &infoList[s.Shell.MultiChoice(items, "Which one to connect?")], nil
}

// Connect connects controller with ref, replacing the current connection.
func (s *Shell) Connect(ref l1.ControllerRef) error {
	connector, err := s.Config.NewConnector()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	conn, err := connector.Connect(ctx, ref)
	if err != nil {
		cancel()
		return err
	}
	loop := fx.NewLoop()
	if adder, ok := conn.(fx.LoopAdder); ok {
		loop.Add(adder)
	}
	loop.AddController(fx.PrLvLow, fx.ControlFunc(s.printEvents))
	s.Disconnect()
	s.Loop = &ConnLoop{Ctx: ctx, Cancel: cancel, Ref: ref, Loop: loop, Conn: conn}
	go func() {
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			glog.Warningf("connection to %s lost: %v", ref.Name(), err)
		}
	}()
	s.Shell.SetPrompt(ref.Name() + " > ")
	return nil
}

// Disconnect disconnects current controller.
func (s *Shell) Disconnect() {
	if s.Loop == nil {
		return
	}
	s.Loop.Cancel()
	if closer, ok := s.Loop.Conn.(io.Closer); ok {
		closer.Close()
	}
	s.Loop = nil
	s.Shell.SetPrompt(unconnectedPrompt)
}

func (s *Shell) printEvents(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		msg, ok := mctx.CurrentMessage().(msgs.SerializableMessage)
		if !ok {
			return
		}
		mctx.MessageTaken()
		if out, err := formatMessage("EVENT ", msg, s.OutputJSON); err == nil {
			s.Shell.Println(out)
		}
	}))
	return nil
}

// Run runs the shell. With args it evaluates them as a single command.
func (s *Shell) Run(args ...string) {
	if ref := s.Config.Ref; s.AutoConnect && ref.IsValid() {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", ref.Name())
		}
		if err := s.Connect(ref); err != nil {
			glog.Exitf("connect %q failed: %v", ref.Name(), err)
		}
	}
	switch {
	case len(args) > 0:
		if err := s.Shell.Process(args...); err != nil {
			glog.Exit(err)
		}
	case s.Interactive:
		s.Shell.Run()
	default:
		glog.Exit("command expected")
	}
}

func runDiscover(c *ishell.Context) {
	s := ShellFrom(c)
	infoList, err := s.DiscoverControllers("")
	if err != nil {
		c.Err(err)
		return
	}
	if s.OutputJSON {
		if infoList == nil {
			infoList = []l1.ControllerInfo{}
		}
		out, err := json.Marshal(infoList)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	if len(infoList) == 0 {
		c.Println("No controllers found")
	}
	for _, info := range infoList {
		c.Println(info.String())
	}
}

func runConnect(c *ishell.Context) {
	s := ShellFrom(c)
	ref, typ, err := parseConnectArgs(c.Args)
	if err == nil && ref == nil {
		var info *l1.ControllerInfo
		if info, err = s.SelectController(typ); err == nil && info == nil {
			err = errors.New("no controller discovered")
		} else if info != nil {
			ref = &info.Ref
		}
	}
	if err == nil {
		err = s.Connect(*ref)
	}
	if err != nil {
		c.Err(err)
	}
}

var (
	// DiscoverCmd lists discovered controllers.
	DiscoverCmd = ishell.Cmd{
		Name:    "discover",
		Aliases: []string{"list", "l"},
		Func:    runDiscover,
	}

	// ConnectCmd connects a controller.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[TYPE ID | TYPE/ID | TYPE]",
		Func:    runConnect,
	}

	// DisconnectCmd disconnects current controller.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Func:    func(c *ishell.Context) { ShellFrom(c).Disconnect() },
	}
)

// Main parses flags, auto-connects the configured controller and runs.
func Main() {
	flag.Parse()
	s := New(env.NewConfig())
	s.AutoConnect = true
	s.Run(flag.Args()...)
}
