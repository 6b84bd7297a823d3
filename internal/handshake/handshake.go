// Package handshake negotiates protocol version and capabilities once per
// session, before any tool traffic is accepted.
package handshake

import (
	"slices"
	"sync"

	"github.com/SystemSolution21/adk-mcp/protocol"
)

// State is the coordinator's position in the handshake.
type State int

const (
	StateStart State = iota
	StateAwaitingClientInit
	StateNegotiated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateAwaitingClientInit:
		return "awaiting_client_init"
	case StateNegotiated:
		return "negotiated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of a successful negotiation.
type Result struct {
	Version      protocol.Version
	Capabilities []string
}

// Has reports whether capability was negotiated.
func (r Result) Has(capability string) bool {
	return slices.Contains(r.Capabilities, capability)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithVersion overrides the server protocol version (default protocol.CurrentVersion).
func WithVersion(v protocol.Version) Option {
	return func(c *Coordinator) { c.version = v }
}

// WithCapabilities sets the capabilities the server offers. "tools" is
// always offered.
func WithCapabilities(caps ...string) Option {
	return func(c *Coordinator) { c.offered = append(c.offered, caps...) }
}

// Coordinator runs the handshake state machine. It is safe for concurrent use.
type Coordinator struct {
	mu      sync.Mutex
	state   State
	version protocol.Version
	offered []string
	result  Result
}

// New returns a coordinator waiting for the client's init message.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		state:   StateAwaitingClientInit,
		version: protocol.CurrentVersion,
		offered: []string{protocol.CapabilityTools},
	}
	for _, opt := range opts {
		opt(c)
	}
	slices.Sort(c.offered)
	c.offered = slices.Compact(c.offered)
	return c
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Result returns the negotiated outcome; ok is false until negotiation succeeds.
func (c *Coordinator) Result() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.state == StateNegotiated
}

// Accept processes the first inbound message. On success it returns the
// init_ack carrying catalog. It fails with *protocol.ProtocolSequenceError
// when msg is not an init or the handshake already happened, and with
// *protocol.VersionMismatchError when versions are incompatible.
func (c *Coordinator) Accept(msg protocol.Message, catalog []protocol.ToolDescriptor) (*protocol.HandshakeResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateStart:
		c.state = StateAwaitingClientInit
	case StateAwaitingClientInit:
	default:
		return nil, &protocol.ProtocolSequenceError{State: c.state.String(), Got: msg.MessageType()}
	}

	req, ok := msg.(*protocol.HandshakeRequest)
	if !ok {
		c.state = StateFailed
		return nil, &protocol.ProtocolSequenceError{
			State:  c.state.String(),
			Got:    msg.MessageType(),
			Detail: "the first message must be init",
		}
	}

	peer, err := protocol.ParseVersion(req.ProtocolVersion)
	if err != nil {
		c.state = StateFailed
		return nil, &protocol.VersionMismatchError{Client: req.ProtocolVersion, Server: c.version.String()}
	}
	negotiated, ok := c.version.Negotiate(peer)
	if !ok {
		c.state = StateFailed
		return nil, &protocol.VersionMismatchError{Client: req.ProtocolVersion, Server: c.version.String()}
	}

	c.result = Result{
		Version:      negotiated,
		Capabilities: Intersect(req.ClientCapabilities, c.offered),
	}
	c.state = StateNegotiated

	tools := catalog
	if tools == nil {
		tools = []protocol.ToolDescriptor{}
	}
	return &protocol.HandshakeResponse{
		ProtocolVersion:    negotiated.String(),
		ServerCapabilities: slices.Clone(c.result.Capabilities),
		Tools:              tools,
	}, nil
}

// Check verifies that msg may be processed in the current state. Tool
// traffic before negotiation and a second init are sequence errors.
func (c *Coordinator) Check(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateNegotiated || msg.MessageType() == protocol.TypeInit {
		return &protocol.ProtocolSequenceError{State: c.state.String(), Got: msg.MessageType()}
	}
	return nil
}

// Intersect returns the sorted, de-duplicated set of names present in both a
// and b.
func Intersect(a, b []string) []string {
	out := []string{}
	for _, name := range a {
		if slices.Contains(b, name) && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}
