package response

import (
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// ProtoValue carries a protobuf message as a Custom value.
type ProtoValue struct {
	Message proto.Message
}

// NewProto wraps msg in a Custom value.
func NewProto(msg proto.Message) Value {
	return NewCustom(ProtoValue{Message: msg})
}

func (p ProtoValue) Equal(other CustomValue) bool {
	o, ok := other.(ProtoValue)
	if !ok {
		return false
	}
	return proto.Equal(p.Message, o.Message)
}

func (p ProtoValue) Clone() CustomValue {
	if p.Message == nil {
		return p
	}
	return ProtoValue{Message: proto.Clone(p.Message)}
}

// MarshalJSON renders the message with the canonical protobuf JSON mapping.
func (p ProtoValue) MarshalJSON() ([]byte, error) {
	if p.Message == nil {
		return []byte("null"), nil
	}
	return protojson.Marshal(p.Message)
}
