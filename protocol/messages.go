package protocol

import (
	"encoding/json"
	"fmt"
)

// Type is the discriminator carried in every message's "type" field.
type Type string

const (
	TypeInit      Type = "init"
	TypeInitAck   Type = "init_ack"
	TypeListTools Type = "list_tools"
	TypeTools     Type = "tools"
	TypeCall      Type = "call"
	TypeResult    Type = "result"
	TypeError     Type = "error"
)

// Message is implemented by every protocol message variant.
type Message interface {
	MessageType() Type
}

// HandshakeRequest opens the session. It carries no correlation id; there is
// exactly one per session.
type HandshakeRequest struct {
	ProtocolVersion    string   `json:"protocolVersion"`
	ClientCapabilities []string `json:"clientCapabilities"`
}

// HandshakeResponse acknowledges a successful negotiation and advertises the
// tool catalog.
type HandshakeResponse struct {
	ProtocolVersion    string           `json:"protocolVersion"`
	ServerCapabilities []string         `json:"serverCapabilities"`
	Tools              []ToolDescriptor `json:"tools"`
}

// ToolListRequest asks for the current catalog.
type ToolListRequest struct {
	ID ID `json:"id,omitzero"`
}

// ToolListResponse returns the catalog in registration order.
type ToolListResponse struct {
	ID    ID               `json:"id,omitzero"`
	Tools []ToolDescriptor `json:"tools"`
}

// CallRequest invokes a tool.
type CallRequest struct {
	ID        ID        `json:"id"`
	Tool      string    `json:"tool"`
	Arguments Arguments `json:"arguments"`
}

// CallResponse carries either a value (OK) or an error, never both.
type CallResponse struct {
	ID    ID
	OK    bool
	Value Value
	Error *ErrorInfo
}

// ErrorNotice reports a session-fatal condition to the peer before the
// server closes the stream.
type ErrorNotice struct {
	ID    ID        `json:"id,omitzero"`
	Error ErrorInfo `json:"error"`
}

func (*HandshakeRequest) MessageType() Type  { return TypeInit }
func (*HandshakeResponse) MessageType() Type { return TypeInitAck }
func (*ToolListRequest) MessageType() Type   { return TypeListTools }
func (*ToolListResponse) MessageType() Type  { return TypeTools }
func (*CallRequest) MessageType() Type       { return TypeCall }
func (*CallResponse) MessageType() Type      { return TypeResult }
func (*ErrorNotice) MessageType() Type       { return TypeError }

// Success builds a successful response for id.
func Success(id ID, v Value) *CallResponse {
	return &CallResponse{ID: id, OK: true, Value: v}
}

// Failure builds an error response for id from err.
func Failure(id ID, err error) *CallResponse {
	return &CallResponse{ID: id, Error: InfoFor(err)}
}

// Marshal encodes m with its type discriminator.
func Marshal(m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("nil message")
	}
	var body any
	switch v := m.(type) {
	case *HandshakeRequest:
		c := *v
		if c.ClientCapabilities == nil {
			c.ClientCapabilities = []string{}
		}
		body = c
	case *HandshakeResponse:
		c := *v
		if c.ServerCapabilities == nil {
			c.ServerCapabilities = []string{}
		}
		if c.Tools == nil {
			c.Tools = []ToolDescriptor{}
		}
		body = c
	case *ToolListRequest:
		body = *v
	case *ToolListResponse:
		c := *v
		if c.Tools == nil {
			c.Tools = []ToolDescriptor{}
		}
		body = c
	case *CallRequest:
		c := *v
		if c.Arguments == nil {
			c.Arguments = Arguments{}
		}
		body = c
	case *CallResponse:
		w := resultWire{ID: v.ID, OK: v.OK}
		if v.OK {
			val := v.Value
			w.Value = &val
		} else {
			w.Error = v.Error
			if w.Error == nil {
				w.Error = &ErrorInfo{Kind: KindDomain, Message: "unknown error"}
			}
		}
		body = w
	case *ErrorNotice:
		body = *v
	default:
		return nil, fmt.Errorf("unsupported message %T", m)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", m.MessageType(), err)
	}
	return withType(m.MessageType(), payload), nil
}

// withType prepends the "type" member to an encoded JSON object.
func withType(t Type, obj []byte) []byte {
	head := `{"type":"` + string(t) + `"`
	if len(obj) <= 2 {
		return []byte(head + "}")
	}
	out := make([]byte, 0, len(head)+len(obj))
	out = append(out, head...)
	out = append(out, ',')
	return append(out, obj[1:]...)
}

// resultWire is the on-the-wire shape of a CallResponse.
type resultWire struct {
	ID    ID         `json:"id"`
	OK    bool       `json:"ok"`
	Value *Value     `json:"value,omitempty"`
	Error *ErrorInfo `json:"error,omitempty"`
}

// Unmarshal decodes one message, dispatching on its "type" member. Structural
// violations (unknown type, missing mandatory fields) are reported as
// FramingError.
//
// Member names match case-insensitively, as with encoding/json: {"TYPE":
// "call","ID":"1",...} decodes like its lower-case form. Type values are
// matched exactly.
func Unmarshal(data []byte) (Message, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, &FramingError{Reason: "invalid JSON", Err: err}
	}

	var (
		msg Message
		err error
	)
	switch head.Type {
	case TypeInit:
		m := &HandshakeRequest{}
		err = json.Unmarshal(data, m)
		if err == nil && m.ProtocolVersion == "" {
			return nil, &FramingError{Reason: "init message missing protocolVersion"}
		}
		msg = m
	case TypeInitAck:
		m := &HandshakeResponse{}
		err = json.Unmarshal(data, m)
		msg = m
	case TypeListTools:
		m := &ToolListRequest{}
		err = json.Unmarshal(data, m)
		msg = m
	case TypeTools:
		m := &ToolListResponse{}
		err = json.Unmarshal(data, m)
		msg = m
	case TypeCall:
		m := &CallRequest{}
		err = json.Unmarshal(data, m)
		if err == nil {
			if m.ID.IsZero() {
				return nil, &FramingError{Reason: "call message missing id"}
			}
			if m.Tool == "" {
				return nil, &FramingError{Reason: "call message missing tool"}
			}
			if m.Arguments == nil {
				m.Arguments = Arguments{}
			}
		}
		msg = m
	case TypeResult:
		var w resultWire
		err = json.Unmarshal(data, &w)
		if err == nil {
			if w.ID.IsZero() {
				return nil, &FramingError{Reason: "result message missing id"}
			}
			m := &CallResponse{ID: w.ID, OK: w.OK, Error: w.Error}
			if w.OK {
				if w.Error != nil {
					return nil, &FramingError{Reason: "result message has both value and error"}
				}
				if w.Value != nil {
					m.Value = *w.Value
				}
			} else if w.Error == nil {
				return nil, &FramingError{Reason: "failed result message missing error"}
			}
			msg = m
		}
	case TypeError:
		m := &ErrorNotice{}
		err = json.Unmarshal(data, m)
		msg = m
	case "":
		return nil, &FramingError{Reason: "message missing type"}
	default:
		return nil, &FramingError{Reason: fmt.Sprintf("unknown message type %q", head.Type)}
	}
	if err != nil {
		return nil, &FramingError{Reason: fmt.Sprintf("invalid %s message", head.Type), Err: err}
	}
	return msg, nil
}
