// Package ringtest provides an in-memory ring.Ring for exercising code that
// drives a ring without a kernel.
package ringtest

import (
	"github.com/y001j/uringhttp/ring"
)

// Ring is a deterministic ring.Ring. Pushed ops sit in the submission side
// until Submit or SubmitAndWait moves them in flight; tests then complete in
// flight ops in any order they like.
type Ring struct {
	// Capacity bounds the submission side.
	Capacity int

	// OnWait, when set, runs inside SubmitAndWait after queued ops were
	// moved in flight. It plays the kernel.
	OnWait func(r *Ring)

	// WaitErr, when set, is returned once by the next SubmitAndWait before
	// anything is submitted.
	WaitErr error
	// SubmitErr, when set, is returned once by the next Submit.
	SubmitErr error

	queued      []ring.Op
	inflight    []ring.Op
	completions []ring.Completion

	// Submitted records every op in the order the kernel received it.
	Submitted []ring.Op

	Buffers [][]byte
	Files   []int32
	Closed  bool

	Waits int
}

var _ ring.Ring = (*Ring)(nil)

// New returns a Ring whose submission side holds capacity ops.
func New(capacity int) *Ring {
	return &Ring{Capacity: capacity}
}

func (r *Ring) TryPush(op ring.Op) bool {
	if len(r.queued) >= r.Capacity {
		return false
	}
	r.queued = append(r.queued, op)
	return true
}

func (r *Ring) TryPushMany(ops []ring.Op) bool {
	if len(r.queued)+len(ops) > r.Capacity {
		return false
	}
	r.queued = append(r.queued, ops...)
	return true
}

func (r *Ring) flush() int {
	n := len(r.queued)
	r.inflight = append(r.inflight, r.queued...)
	r.Submitted = append(r.Submitted, r.queued...)
	r.queued = r.queued[:0]
	return n
}

func (r *Ring) Submit() (int, error) {
	if err := r.SubmitErr; err != nil {
		r.SubmitErr = nil
		return 0, err
	}
	return r.flush(), nil
}

func (r *Ring) SubmitAndWait(min uint32) (int, error) {
	r.Waits++
	if err := r.WaitErr; err != nil {
		r.WaitErr = nil
		return 0, err
	}
	n := r.flush()
	if r.OnWait != nil {
		r.OnWait(r)
	}
	return n, nil
}

func (r *Ring) Peek() (ring.Completion, bool) {
	if len(r.completions) == 0 {
		return ring.Completion{}, false
	}
	c := r.completions[0]
	r.completions = r.completions[1:]
	return c, true
}

// Queued returns the ops in the submission side.
func (r *Ring) Queued() []ring.Op {
	return append([]ring.Op(nil), r.queued...)
}

// Inflight returns the submitted, not yet completed ops.
func (r *Ring) Inflight() []ring.Op {
	return append([]ring.Op(nil), r.inflight...)
}

// Complete finishes the i-th in flight op with res and returns it.
func (r *Ring) Complete(i int, res int32) ring.Op {
	op := r.inflight[i]
	r.inflight = append(r.inflight[:i], r.inflight[i+1:]...)
	r.completions = append(r.completions, ring.Completion{UserData: op.UserData, Res: res})
	return op
}

// CompleteFirst finishes the first in flight op matching code, reporting
// whether one was found.
func (r *Ring) CompleteFirst(code ring.Opcode, res int32) (ring.Op, bool) {
	for i, op := range r.inflight {
		if op.Code == code {
			return r.Complete(i, res), true
		}
	}
	return ring.Op{}, false
}

// Post appends a completion that no op produced.
func (r *Ring) Post(c ring.Completion) {
	r.completions = append(r.completions, c)
}

func (r *Ring) RegisterBuffers(bufs [][]byte) error {
	r.Buffers = bufs
	return nil
}

func (r *Ring) UnregisterBuffers() error {
	r.Buffers = nil
	return nil
}

func (r *Ring) RegisterFiles(fds []int32) error {
	r.Files = fds
	return nil
}

func (r *Ring) UnregisterFiles() error {
	r.Files = nil
	return nil
}

func (r *Ring) Close() error {
	r.Closed = true
	return nil
}
