// Package msgs defines the L1 messages of the PSoC arm controller.
package msgs

import (
	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/psoc-arm/pkg/framework"
	"github.com/robotalks/psoc-arm/pkg/l1/msgs"
)

// ArmCommand moves the turret and the shoulder.
// Both values must fit in 16 bits.
type ArmCommand struct {
	Turret   uint32 `protobuf:"varint,1,opt,name=turret,proto3" json:"turret,omitempty"`
	Shoulder uint32 `protobuf:"varint,2,opt,name=shoulder,proto3" json:"shoulder,omitempty"`
}

// NewMessage implements Message.
func (m *ArmCommand) NewMessage() fx.Message { return &ArmCommand{} }

// TypeID implements SerializableMessage.
func (m *ArmCommand) TypeID() uint32 { return ArmCommandTypeID }

// Serializable implements SerializableMessage.
func (m *ArmCommand) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *ArmCommand) ProtoMessage() {}

// Reset implements proto.Message.
func (m *ArmCommand) Reset() { *m = ArmCommand{} }

// String implements proto.Message.
func (m *ArmCommand) String() string { return proto.CompactTextString(m) }

// ArmStatusQuery queries the status.
type ArmStatusQuery struct {
}

// NewMessage implements Message.
func (m *ArmStatusQuery) NewMessage() fx.Message { return &ArmStatusQuery{} }

// TypeID implements SerializableMessage.
func (m *ArmStatusQuery) TypeID() uint32 { return ArmStatusQueryTypeID }

// Serializable implements SerializableMessage.
func (m *ArmStatusQuery) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *ArmStatusQuery) ProtoMessage() {}

// Reset implements proto.Message.
func (m *ArmStatusQuery) Reset() { *m = ArmStatusQuery{} }

// String implements proto.Message.
func (m *ArmStatusQuery) String() string { return proto.CompactTextString(m) }

// ArmStatusReply is the response for ArmStatusQuery.
type ArmStatusReply struct {
	Status *ArmStatus `protobuf:"bytes,1,opt,name=status,proto3" json:"status,omitempty"`
}

// NewMessage implements Message.
func (m *ArmStatusReply) NewMessage() fx.Message { return &ArmStatusReply{} }

// TypeID implements SerializableMessage.
func (m *ArmStatusReply) TypeID() uint32 { return ArmStatusReplyTypeID }

// Serializable implements SerializableMessage.
func (m *ArmStatusReply) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *ArmStatusReply) ProtoMessage() {}

// Reset implements proto.Message.
func (m *ArmStatusReply) Reset() { *m = ArmStatusReply{} }

// String implements proto.Message.
func (m *ArmStatusReply) String() string { return proto.CompactTextString(m) }

// ArmStatus is an Event message reflecting the link status.
type ArmStatus struct {
	State         string `protobuf:"bytes,1,opt,name=state,proto3" json:"state,omitempty"`
	Address       string `protobuf:"bytes,2,opt,name=address,proto3" json:"address,omitempty"`
	Alive         bool   `protobuf:"varint,3,opt,name=alive,proto3" json:"alive,omitempty"`
	ReceivedBytes uint64 `protobuf:"varint,4,opt,name=received_bytes,proto3" json:"received_bytes,omitempty"`
	Error         string `protobuf:"bytes,5,opt,name=error,proto3" json:"error,omitempty"`
}

// NewMessage implements Message.
func (m *ArmStatus) NewMessage() fx.Message { return &ArmStatus{} }

// TypeID implements SerializableMessage.
func (m *ArmStatus) TypeID() uint32 { return ArmStatusEventTypeID }

// Serializable implements SerializableMessage.
func (m *ArmStatus) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *ArmStatus) ProtoMessage() {}

// Reset implements proto.Message.
func (m *ArmStatus) Reset() { *m = ArmStatus{} }

// String implements proto.Message.
func (m *ArmStatus) String() string { return proto.CompactTextString(m) }

// ArmTelemetry is an Event message carrying parsed telemetry.
// Reserved: raw bytes are collected but not parsed yet.
type ArmTelemetry struct {
	Data string `protobuf:"bytes,1,opt,name=data,proto3" json:"data,omitempty"`
}

// NewMessage implements Message.
func (m *ArmTelemetry) NewMessage() fx.Message { return &ArmTelemetry{} }

// TypeID implements SerializableMessage.
func (m *ArmTelemetry) TypeID() uint32 { return ArmTelemetryEventTypeID }

// Serializable implements SerializableMessage.
func (m *ArmTelemetry) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *ArmTelemetry) ProtoMessage() {}

// Reset implements proto.Message.
func (m *ArmTelemetry) Reset() { *m = ArmTelemetry{} }

// String implements proto.Message.
func (m *ArmTelemetry) String() string { return proto.CompactTextString(m) }

// TypeIDs
const (
	ArmCommandTypeID        uint32 = msgs.GroupArm | 0x0000
	ArmStatusQueryTypeID    uint32 = msgs.GroupArm | 0x0001
	ArmStatusReplyTypeID    uint32 = ArmStatusQueryTypeID | msgs.TypeIDMaskReply
	ArmStatusEventTypeID    uint32 = msgs.GroupArm | msgs.TypeIDKindEvent | 0x0000
	ArmTelemetryEventTypeID uint32 = msgs.GroupArm | msgs.TypeIDKindEvent | 0x0001
)

func init() {
	msgs.RegisterTypes(
		(*ArmCommand)(nil),
		(*ArmStatusQuery)(nil),
		(*ArmStatusReply)(nil),
		(*ArmStatus)(nil),
		(*ArmTelemetry)(nil),
	)
}
