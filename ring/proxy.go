package ring

import (
	"errors"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// Proxy owns a Ring and the backlog of operations the ring could not take.
// Nothing pushed through a Proxy is ever dropped: it is either in the
// submission side or in the backlog, in push order.
type Proxy struct {
	ring    Ring
	backlog backlog

	deferred uint64

	buffersRegistered bool
	filesRegistered   bool
	closed            bool
}

// NewProxy wraps r. backlogHint sizes the initial backlog; it grows on demand.
func NewProxy(r Ring, backlogHint int) *Proxy {
	return &Proxy{ring: r, backlog: newBacklog(backlogHint)}
}

// Push enqueues op, or defers it to the backlog when the submission side is
// full. While the backlog is non-empty new ops queue behind it so that
// deferred work keeps its order.
func (p *Proxy) Push(op Op) {
	if p.backlog.Len() == 0 && p.ring.TryPush(op) {
		return
	}
	p.defer1(op)
}

// PushMany enqueues all ops or defers all of them.
func (p *Proxy) PushMany(ops []Op) {
	if len(ops) == 0 {
		return
	}
	if p.backlog.Len() == 0 && p.ring.TryPushMany(ops) {
		return
	}
	for _, op := range ops {
		p.defer1(op)
	}
}

func (p *Proxy) defer1(op Op) {
	p.backlog.PushBack(op)
	p.deferred++
}

// SubmitAndWait flushes the submission side and blocks until at least min
// completions are visible. Transient kernel pressure (EBUSY, EAGAIN, EINTR,
// ETIME) reports zero submissions and no error.
func (p *Proxy) SubmitAndWait(min uint32) (int, error) {
	if p.closed {
		return 0, ErrClosed
	}
	n, err := p.ring.SubmitAndWait(min)
	if err != nil {
		if isTransient(err) {
			return 0, nil
		}
		return n, err
	}
	return n, nil
}

func isTransient(err error) bool {
	return errors.Is(err, unix.EBUSY) ||
		errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.EINTR) ||
		errors.Is(err, unix.ETIME)
}

// PollCompletion returns the next locally visible completion. ok is false once
// the visible set is drained; call it again on the next iteration.
func (p *Proxy) PollCompletion() (c Completion, ok bool) {
	return p.ring.Peek()
}

// DrainBacklog moves deferred ops into the submission side while there is
// room. When the submission side fills it is flushed to the kernel once and
// draining continues; it stops when the backlog is empty or the ring is full
// again. It returns the number of ops moved.
func (p *Proxy) DrainBacklog() int {
	moved := 0
	flushed := false
	for p.backlog.Len() > 0 {
		if p.ring.TryPush(p.backlog.Front()) {
			p.backlog.PopFront()
			moved++
			continue
		}
		if flushed {
			break
		}
		flushed = true
		if _, err := p.ring.Submit(); err != nil {
			break
		}
	}
	return moved
}

// Backlogged reports how many ops are waiting in the backlog.
func (p *Proxy) Backlogged() int { return p.backlog.Len() }

// Deferred reports how many ops have ever been diverted to the backlog.
func (p *Proxy) Deferred() uint64 { return p.deferred }

// RegisterBuffers pins bufs in the kernel buffer table, index i addressing
// bufs[i].
func (p *Proxy) RegisterBuffers(bufs [][]byte) error {
	if p.buffersRegistered {
		return ErrAlreadyRegistered
	}
	if len(bufs) == 0 {
		return ErrEmptyRegistration
	}
	if err := p.ring.RegisterBuffers(bufs); err != nil {
		return err
	}
	p.buffersRegistered = true
	return nil
}

// RegisterFiles installs fds in the kernel file table, index i addressing fds[i].
func (p *Proxy) RegisterFiles(fds []int32) error {
	if p.filesRegistered {
		return ErrAlreadyRegistered
	}
	if len(fds) == 0 {
		return ErrEmptyRegistration
	}
	if err := p.ring.RegisterFiles(fds); err != nil {
		return err
	}
	p.filesRegistered = true
	return nil
}

// Unregister drops registered buffers and files. Safe to call repeatedly.
func (p *Proxy) Unregister() error {
	var err error
	if p.buffersRegistered {
		err = multierr.Append(err, p.ring.UnregisterBuffers())
		p.buffersRegistered = false
	}
	if p.filesRegistered {
		err = multierr.Append(err, p.ring.UnregisterFiles())
		p.filesRegistered = false
	}
	return err
}

// Close unregisters everything and closes the ring.
func (p *Proxy) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return multierr.Combine(p.Unregister(), p.ring.Close())
}
