package uringhttp

import (
	"fmt"

	"go.uber.org/atomic"
)

// Stats are written by the loop and may be read from any goroutine.
type Stats struct {
	accepted     atomic.Uint64
	acceptFailed atomic.Uint64
	closed       atomic.Uint64
	requests     atomic.Uint64
	responses    atomic.Uint64
	failed       atomic.Uint64
	live         atomic.Int64
	backlogged   atomic.Int64
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Accepted     uint64
	AcceptFailed uint64
	Closed       uint64
	Requests     uint64
	Responses    uint64
	Failed       uint64
	Live         int64
	Backlogged   int64
}

// Snapshot copies the counters. Counters are read one by one, so a snapshot
// taken while serving may be off by the events of one iteration.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Accepted:     s.accepted.Load(),
		AcceptFailed: s.acceptFailed.Load(),
		Closed:       s.closed.Load(),
		Requests:     s.requests.Load(),
		Responses:    s.responses.Load(),
		Failed:       s.failed.Load(),
		Live:         s.live.Load(),
		Backlogged:   s.backlogged.Load(),
	}
}

func (s Snapshot) String() string {
	return fmt.Sprintf("accepted=%d accept_failed=%d closed=%d live=%d requests=%d responses=%d failed=%d backlogged=%d",
		s.Accepted, s.AcceptFailed, s.Closed, s.Live, s.Requests, s.Responses, s.Failed, s.Backlogged)
}
