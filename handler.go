package uringhttp

import (
	"fmt"

	"github.com/y001j/uringhttp/pool"
)

// Action is an action that occurs after the completion of an event.
type Action int

const (
	// None indicates that no action should occur following an event.
	None Action = iota

	// Close closes the connection.
	Close

	// Shutdown shuts the server down once the current iteration is processed.
	Shutdown
)

func (a Action) String() string {
	switch a {
	case None:
		return "none"
	case Close:
		return "close"
	case Shutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Conn identifies a connection in event callbacks. It is a value; holding
// on to it after OnClose is harmless because its token no longer resolves.
type Conn struct {
	Token pool.Token
	Fd    int
}

func (c Conn) String() string {
	return fmt.Sprintf("conn(fd=%d token=%#x)", c.Fd, uint64(c.Token))
}

type (
	// EventHandler represents the server events' callbacks for the Serve call.
	// Each event has an Action return value that is used to manage the state
	// of the connection and the server. Callbacks run on the loop goroutine
	// and must not block.
	EventHandler interface {
		// OnBoot fires when the server is ready for accepting connections.
		OnBoot(srv *Server) (action Action)

		// OnShutdown fires when the loop has stopped, before Serve returns.
		OnShutdown(srv *Server)

		// OnOpen fires when a new connection has been accepted. Close rejects it.
		OnOpen(c Conn) (action Action)

		// OnClose fires when a connection has been torn down.
		// The parameter err is the failure that caused it, nil for a peer close.
		OnClose(c Conn, err error) (action Action)

		// OnTraffic fires when a request has been received, before it is
		// routed. The request bytes are only valid during the call.
		OnTraffic(c Conn, request []byte) (action Action)

		// OnWritten fires once a whole response has been sent.
		OnWritten(c Conn) (action Action)
	}

	// BuiltinEventEngine is a built-in implementation of EventHandler which sets up each method with a default implementation,
	// you can compose it with your own implementation of EventHandler when you don't want to implement all methods
	// in EventHandler.
	BuiltinEventEngine struct{}
)

// OnBoot fires when the server is ready for accepting connections.
func (es *BuiltinEventEngine) OnBoot(_ *Server) (action Action) {
	return
}

// OnShutdown fires when the loop has stopped.
func (es *BuiltinEventEngine) OnShutdown(_ *Server) {
}

// OnOpen fires when a new connection has been accepted.
func (es *BuiltinEventEngine) OnOpen(_ Conn) (action Action) {
	return
}

// OnClose fires when a connection has been torn down.
func (es *BuiltinEventEngine) OnClose(_ Conn, _ error) (action Action) {
	return
}

// OnTraffic fires when a request has been received.
func (es *BuiltinEventEngine) OnTraffic(_ Conn, _ []byte) (action Action) {
	return
}

// OnWritten fires once a whole response has been sent.
func (es *BuiltinEventEngine) OnWritten(_ Conn) (action Action) {
	return
}
