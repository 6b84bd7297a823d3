// Package stdio serves one tool-protocol session over a byte stream, normally
// the process's stdin/stdout. The server is launched as a subprocess by its
// client; one process serves exactly one client.
//
// Characteristics
//
//	Connection model : 1 process <-> 1 client
//	Auth             : none; the OS user labels logs only
//	State            : memory only, gone when the process exits
//	Transport        : newline-delimited JSON frames
//
// A session moves through AwaitingHandshake, Ready, Draining and Closed. The
// first frame must be an init message; after a successful handshake the
// session answers list_tools and call messages until the client closes its
// end of the stream. Calls are processed one at a time unless both sides
// negotiate the "pipelining" capability, in which case calls run
// concurrently and responses are still written in arrival order.
//
// Example:
//
//	reg, _ := registry.New(tools...)
//	h := stdio.NewHandler(reg, stdio.WithLogger(logger))
//	if err := h.Serve(context.Background()); err != nil { log.Fatal(err) }
//
// Anything written to stdout by the process other than protocol frames
// corrupts the stream; log to a file or stderr instead.
package stdio
