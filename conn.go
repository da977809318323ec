package uringhttp

import (
	"fmt"

	"github.com/y001j/uringhttp/httpcodec"
	"github.com/y001j/uringhttp/resource"
)

// Phase names the operation a connection is waiting on.
type Phase uint8

const (
	Accepting        Phase = iota // shared accept template, not a connection
	AwaitingReadable              // poll for POLLIN outstanding
	Receiving                     // recv outstanding
	ReadingResource               // resource read outstanding
	Sending                       // send outstanding
)

func (p Phase) String() string {
	switch p {
	case Accepting:
		return "accepting"
	case AwaitingReadable:
		return "awaiting-readable"
	case Receiving:
		return "receiving"
	case ReadingResource:
		return "reading-resource"
	case Sending:
		return "sending"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// State is the per-token record. Each variant carries exactly what its phase
// needs, so a connection cannot hold a buffer in a phase that does not own one.
type State interface {
	Phase() Phase
	socket() int
	// buffer returns the pool handle the state owns, if any.
	buffer() (int, bool)
}

type accepting struct{}

func (accepting) Phase() Phase        { return Accepting }
func (accepting) socket() int         { return -1 }
func (accepting) buffer() (int, bool) { return 0, false }

type awaitingReadable struct {
	fd int
}

func (s awaitingReadable) Phase() Phase        { return AwaitingReadable }
func (s awaitingReadable) socket() int         { return s.fd }
func (s awaitingReadable) buffer() (int, bool) { return 0, false }

type receiving struct {
	fd  int
	buf int
}

func (s receiving) Phase() Phase        { return Receiving }
func (s receiving) socket() int         { return s.fd }
func (s receiving) buffer() (int, bool) { return s.buf, true }

type readingResource struct {
	fd     int
	buf    int
	status httpcodec.Status
	res    resource.ID
}

func (s readingResource) Phase() Phase        { return ReadingResource }
func (s readingResource) socket() int         { return s.fd }
func (s readingResource) buffer() (int, bool) { return s.buf, true }

// sending tracks a response of total bytes of which off are on the wire.
type sending struct {
	fd    int
	buf   int
	off   int
	total int
}

func (s sending) Phase() Phase        { return Sending }
func (s sending) socket() int         { return s.fd }
func (s sending) buffer() (int, bool) { return s.buf, true }
