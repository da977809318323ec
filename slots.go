package uringhttp

import (
	"fmt"

	"github.com/y001j/uringhttp/pool"
	"github.com/y001j/uringhttp/ring"
)

// Slots keeps a bounded number of accepts outstanding on the listener. All
// accepts share one token; each completion frees exactly one slot.
type Slots struct {
	accept      ring.Op
	outstanding int
	capacity    int

	batch []ring.Op
}

// NewSlots returns an admission controller for listenFd whose accepts carry token.
func NewSlots(listenFd, capacity int, token pool.Token) *Slots {
	if capacity <= 0 {
		panic(fmt.Sprintf("uringhttp: invalid accept capacity %d", capacity))
	}
	return &Slots{
		accept:   ring.Accept(listenFd).WithUserData(uint64(token)),
		capacity: capacity,
		batch:    make([]ring.Op, 0, capacity),
	}
}

// TopUp pushes up to want accepts without exceeding capacity and returns how
// many it pushed.
func (s *Slots) TopUp(want int, p *ring.Proxy) int {
	n := min(want, s.capacity-s.outstanding)
	if n <= 0 {
		return 0
	}
	s.batch = s.batch[:0]
	for i := 0; i < n; i++ {
		s.batch = append(s.batch, s.accept)
	}
	p.PushMany(s.batch)
	s.outstanding += n
	return n
}

// OnAcceptCompleted frees the slot of one accept completion, successful or not.
func (s *Slots) OnAcceptCompleted() {
	if s.outstanding == 0 {
		panic("uringhttp: accept completed with no accept outstanding")
	}
	s.outstanding--
}

// Outstanding is the number of accepts in the ring or its backlog.
func (s *Slots) Outstanding() int { return s.outstanding }

// Capacity is the admission bound.
func (s *Slots) Capacity() int { return s.capacity }
