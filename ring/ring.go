// Package ring wraps a kernel submission/completion ring behind a safe
// push / submit / poll contract. Every conversion from Go memory to a kernel
// address happens inside this package.
package ring

import (
	"errors"

	"golang.org/x/sys/unix"
)

var (
	// ErrClosed is returned by operations on a closed ring.
	ErrClosed = errors.New("ring: closed")
	// ErrAlreadyRegistered is returned when buffers or files are registered twice.
	ErrAlreadyRegistered = errors.New("ring: already registered")
	// ErrEmptyRegistration is returned when registering an empty set.
	ErrEmptyRegistration = errors.New("ring: nothing to register")
)

// Completion is one completion queue entry.
type Completion struct {
	UserData uint64
	Res      int32
	Flags    uint32
}

// Err converts a negative result into its errno.
func (c Completion) Err() error {
	if c.Res < 0 {
		return unix.Errno(-c.Res)
	}
	return nil
}

// Ring is the kernel-facing side. Implementations are not safe for
// concurrent use.
type Ring interface {
	// TryPush places op in the submission side, false if it is full.
	TryPush(op Op) bool
	// TryPushMany places every op or none of them.
	TryPushMany(ops []Op) bool
	// Submit hands queued entries to the kernel without waiting.
	Submit() (int, error)
	// SubmitAndWait hands queued entries to the kernel and blocks until at
	// least min completions are available.
	SubmitAndWait(min uint32) (int, error)
	// Peek pops the next visible completion.
	Peek() (Completion, bool)

	RegisterBuffers(bufs [][]byte) error
	UnregisterBuffers() error
	RegisterFiles(fds []int32) error
	UnregisterFiles() error

	Close() error
}
