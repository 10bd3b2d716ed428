package l1

import (
	"context"
	"fmt"
	"sort"
	"strings"

	fx "github.com/robotalks/psoc-arm/pkg/framework"
)

// Registrar registers a robot (L1 controller) to an registry.
// It integrates with framework and helps an L1 controller to
// easily process messages.
type Registrar interface {
	// SendEvent sends an event to L2.
	SendEvent(context.Context, fx.Message) error
}

// Command represents a received command to be processed.
type Command interface {
	Msg() fx.Message
	Done(fx.Message) error
}

// CommandMsg wraps a Command as a Message.
type CommandMsg struct {
	Command Command
}

// NewMessage implements Message.
func (m *CommandMsg) NewMessage() fx.Message { return &CommandMsg{} }

// ControllerRef is a reference to an L1 controller.
type ControllerRef struct {
	// Type is controller type (robot type).
	Type string `yaml:"type"`
	// ID is unique ID of the device.
	ID string `yaml:"id"`
}

// Name retrieves the name from ref.
func (r ControllerRef) Name() string {
	return r.Type + "/" + r.ID
}

// ParseControllerRef parses "type/id".
func ParseControllerRef(name string) (ControllerRef, error) {
	pos := strings.Index(name, "/")
	if pos <= 0 || pos+1 >= len(name) || strings.Contains(name[pos+1:], "/") {
		return ControllerRef{}, fmt.Errorf("invalid controller %q, expect TYPE/ID", name)
	}
	return ControllerRef{Type: name[:pos], ID: name[pos+1:]}, nil
}

// IsValid indicates ControllerRef is valid.
func (r ControllerRef) IsValid() bool {
	return r.Type != "" && r.ID != ""
}

// ControllerMeta provides metadata for L1 controller.
type ControllerMeta struct {
	Description string            `json:"description,omitempty" yaml:"description"`
	Labels      map[string]string `json:"labels,omitempty" yaml:"labels"`
}

// ControllerInfo provides information of an L1 controller.
type ControllerInfo struct {
	Ref  ControllerRef  `yaml:",inline"`
	Meta ControllerMeta `yaml:",inline"`
}

// String formats the info for display, labels sorted by key.
func (i ControllerInfo) String() string {
	var sb strings.Builder
	sb.WriteString(i.Ref.Name())
	if i.Meta.Description != "" {
		sb.WriteString(": " + i.Meta.Description)
	}
	if len(i.Meta.Labels) > 0 {
		keys := make([]string, 0, len(i.Meta.Labels))
		for key := range i.Meta.Labels {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for n, key := range keys {
			keys[n] = key + "=" + i.Meta.Labels[key]
		}
		sb.WriteString(" [" + strings.Join(keys, ",") + "]")
	}
	return sb.String()
}

// Connector is used by L2 components to connect to an L1 controller.
type Connector interface {
	// Discover enumerates registered controllers.
	Discover(context.Context) ([]ControllerInfo, error)
	// Connect connects to the specified controller.
	Connect(context.Context, ControllerRef) (ControllerConn, error)
}

// ControllerConn is the connection to a controller.
type ControllerConn interface {
	// DoCommand executes a command.
	DoCommand(fx.Message) CommandFuture
}

// Result represents result of a command.
type Result struct {
	Msg fx.Message
	Err error
}

// CommandFuture is the future of sent command.
type CommandFuture interface {
	ResultChan() <-chan Result
}
