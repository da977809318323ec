package uringhttp

import (
	"time"

	"github.com/panjf2000/gnet/v2/pkg/logging"

	"github.com/y001j/uringhttp/httpcodec"
)

// Defaults used for zero Options fields.
const (
	DefaultBacklogHint    = 64
	DefaultAcceptCapacity = 20
	DefaultInitialAccepts = 2
	DefaultBufferSize     = 4096
)

// Options are set when the server is constructed.
type Options struct {
	// BacklogHint sizes the proxy backlog created by NewFromRing.
	BacklogHint int

	// AcceptCapacity bounds the accepts outstanding on the listener.
	AcceptCapacity int

	// InitialAccepts is the number of accepts armed before the first wait.
	InitialAccepts int

	// BufferSize is the size of every connection buffer. It must hold the
	// largest response.
	BufferSize int

	// TickInterval arms a periodic timeout so the loop wakes up without
	// traffic and notices cancellation. Zero disables it.
	TickInterval time.Duration

	// Router resolves requests, httpcodec.DefaultRouter if nil.
	Router *httpcodec.Router

	// Handler receives events, a BuiltinEventEngine if nil.
	Handler EventHandler

	// Logger is the customized logger for logging info, if it is not set,
	// then the server uses the default logger powered by go.uber.org/zap.
	Logger logging.Logger
}

func (o Options) withDefaults() Options {
	if o.BacklogHint <= 0 {
		o.BacklogHint = DefaultBacklogHint
	}
	if o.AcceptCapacity <= 0 {
		o.AcceptCapacity = DefaultAcceptCapacity
	}
	if o.InitialAccepts <= 0 {
		o.InitialAccepts = DefaultInitialAccepts
	}
	if o.InitialAccepts > o.AcceptCapacity {
		o.InitialAccepts = o.AcceptCapacity
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.Router == nil {
		o.Router = httpcodec.DefaultRouter()
	}
	if o.Handler == nil {
		o.Handler = &BuiltinEventEngine{}
	}
	if o.Logger == nil {
		o.Logger = logging.GetDefaultLogger()
	}
	return o
}
