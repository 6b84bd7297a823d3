// Package protocol contains the wire types of the stdio tool protocol: the
// message variants, tool descriptors and their input schemas, the tagged
// Value used for arguments and results, and the error taxonomy.
//
// The package is free of transport logic. Framing lives in internal/framing
// and session handling in the stdio package; both exchange these types.
//
// # Messages
//
// Every frame is a JSON object whose "type" member selects the variant:
//
//	init       -> HandshakeRequest
//	init_ack   -> HandshakeResponse
//	list_tools -> ToolListRequest
//	tools      -> ToolListResponse
//	call       -> CallRequest
//	result     -> CallResponse
//	error      -> ErrorNotice
//
// Marshal and Unmarshal convert between the variants and their JSON form.
// Unmarshal reports structural problems as *FramingError.
//
// # Errors
//
// FramingError, ProtocolSequenceError and VersionMismatchError end a session.
// UnknownToolError, ArgumentValidationError and DomainError are scoped to one
// call and travel back to the peer as {kind, message}. KindOf classifies any
// error.
//
// Example (handler result):
//
//	v, err := protocol.ValueOf(map[string]any{"success": true})
//	if err != nil {
//	    return protocol.Value{}, err
//	}
//	return v, nil
package protocol
