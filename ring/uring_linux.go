//go:build linux
// +build linux

package ring

import (
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

const (
	ioringOffSQRing = 0
	ioringOffCQRing = 0x8000000
	ioringOffSQEs   = 0x10000000

	ioringSetupClamp = 1 << 4

	ioringEnterGetEvents = 1 << 0

	ioringRegisterBuffers   = 0
	ioringUnregisterBuffers = 1
	ioringRegisterFiles     = 2
	ioringUnregisterFiles   = 3

	sqeSize    = 64
	cqeSize    = 16
	maxEntries = 32768
)

type sqringOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Flags       uint32
	Dropped     uint32
	Array       uint32
	Resv1       uint32
	UserAddr    uint64
}

type cqringOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Overflow    uint32
	Cqes        uint32
	Flags       uint32
	Resv1       uint32
	UserAddr    uint64
}

type uringParams struct {
	SQEntries    uint32
	CQEntries    uint32
	Flags        uint32
	SQThreadCPU  uint32
	SQThreadIdle uint32
	Features     uint32
	WQFd         uint32
	Resv         [3]uint32
	SQOff        sqringOffsets
	CQOff        cqringOffsets
}

type uringSQE struct {
	Opcode      uint8
	Flags       uint8
	Ioprio      uint16
	Fd          int32
	Off         uint64
	Addr        uint64
	Len         uint32
	OpFlags     uint32
	UserData    uint64
	BufIndex    uint16
	Personality uint16
	SpliceFdIn  int32
	Addr3       uint64
	_           uint64
}

type uringCQE struct {
	UserData uint64
	Res      int32
	Flags    uint32
}

func init() {
	if unsafe.Sizeof(uringSQE{}) != sqeSize || unsafe.Sizeof(uringCQE{}) != cqeSize {
		panic("ring: io_uring ABI struct size mismatch")
	}
}

// Uring is a Ring backed by a kernel io_uring instance.
type Uring struct {
	fd int

	sqMap  []byte
	cqMap  []byte
	sqeMap []byte

	sqHead    *uint32
	sqTail    *uint32
	sqMask    uint32
	sqEntries uint32
	sqArray   []uint32
	sqes      []uringSQE

	cqHead *uint32
	cqTail *uint32
	cqMask uint32
	cqes   []uringCQE

	tail    uint32
	pending uint32

	Features uint32
	closed   bool
}

var _ Ring = (*Uring)(nil)

// Setup creates an io_uring instance with at least entries submission slots.
// The kernel rounds entries up to a power of two.
func Setup(entries uint32) (*Uring, error) {
	n := entries
	if n > maxEntries {
		n = maxEntries
	}
	p := uringParams{Flags: ioringSetupClamp}
	fd, _, errno := unix.Syscall(unix.SYS_IO_URING_SETUP, uintptr(n), uintptr(unsafe.Pointer(&p)), 0)
	if errno != 0 {
		return nil, errors.Wrap(errno, "io_uring_setup")
	}
	r := &Uring{fd: int(fd), Features: p.Features}
	if err := r.mmap(&p); err != nil {
		_ = r.munmap()
		_ = unix.Close(r.fd)
		return nil, errors.Wrap(err, "io_uring mmap")
	}
	return r, nil
}

func (r *Uring) mmap(p *uringParams) error {
	const prot = unix.PROT_READ | unix.PROT_WRITE
	const flags = unix.MAP_SHARED | unix.MAP_POPULATE
	var err error

	sqSize := int(p.SQOff.Array + p.SQEntries*4)
	if r.sqMap, err = unix.Mmap(r.fd, ioringOffSQRing, sqSize, prot, flags); err != nil {
		return err
	}
	cqSize := int(p.CQOff.Cqes + p.CQEntries*cqeSize)
	if r.cqMap, err = unix.Mmap(r.fd, ioringOffCQRing, cqSize, prot, flags); err != nil {
		return err
	}
	if r.sqeMap, err = unix.Mmap(r.fd, ioringOffSQEs, int(p.SQEntries)*sqeSize, prot, flags); err != nil {
		return err
	}

	sq := unsafe.Pointer(&r.sqMap[0])
	r.sqHead = (*uint32)(unsafe.Add(sq, p.SQOff.Head))
	r.sqTail = (*uint32)(unsafe.Add(sq, p.SQOff.Tail))
	r.sqMask = *(*uint32)(unsafe.Add(sq, p.SQOff.RingMask))
	r.sqEntries = *(*uint32)(unsafe.Add(sq, p.SQOff.RingEntries))
	r.sqArray = unsafe.Slice((*uint32)(unsafe.Add(sq, p.SQOff.Array)), p.SQEntries)
	r.sqes = unsafe.Slice((*uringSQE)(unsafe.Pointer(&r.sqeMap[0])), p.SQEntries)
	r.tail = atomic.LoadUint32(r.sqTail)

	cq := unsafe.Pointer(&r.cqMap[0])
	r.cqHead = (*uint32)(unsafe.Add(cq, p.CQOff.Head))
	r.cqTail = (*uint32)(unsafe.Add(cq, p.CQOff.Tail))
	r.cqMask = *(*uint32)(unsafe.Add(cq, p.CQOff.RingMask))
	r.cqes = unsafe.Slice((*uringCQE)(unsafe.Add(cq, p.CQOff.Cqes)), p.CQEntries)
	return nil
}

func (r *Uring) munmap() error {
	var err error
	for _, m := range []*[]byte{&r.sqeMap, &r.cqMap, &r.sqMap} {
		if *m != nil {
			err = multierr.Append(err, unix.Munmap(*m))
			*m = nil
		}
	}
	return err
}

// Fd returns the ring descriptor.
func (r *Uring) Fd() int { return r.fd }

func (r *Uring) space() uint32 {
	return r.sqEntries - (r.tail - atomic.LoadUint32(r.sqHead))
}

func (r *Uring) TryPush(op Op) bool {
	if r.closed || r.space() == 0 {
		return false
	}
	r.fill(op)
	return true
}

func (r *Uring) TryPushMany(ops []Op) bool {
	if r.closed || r.space() < uint32(len(ops)) {
		return false
	}
	for _, op := range ops {
		r.fill(op)
	}
	return true
}

func (r *Uring) fill(op Op) {
	idx := r.tail & r.sqMask
	e := &r.sqes[idx]
	*e = uringSQE{
		Opcode:   uint8(op.Code),
		Flags:    op.Flags,
		Fd:       op.Fd,
		Off:      op.Offset,
		OpFlags:  op.OpFlags,
		UserData: op.UserData,
		BufIndex: op.BufIndex,
	}
	switch {
	case op.ts != nil:
		e.Addr = uint64(uintptr(unsafe.Pointer(op.ts)))
		e.Len = 1
	case len(op.Buf) > 0:
		e.Addr = uint64(uintptr(unsafe.Pointer(&op.Buf[0])))
		e.Len = uint32(len(op.Buf))
	}
	r.sqArray[idx] = idx
	r.tail++
	atomic.StoreUint32(r.sqTail, r.tail)
	r.pending++
}

func (r *Uring) enter(toSubmit, minComplete, flags uint32) (int, error) {
	n, _, errno := unix.Syscall6(unix.SYS_IO_URING_ENTER,
		uintptr(r.fd), uintptr(toSubmit), uintptr(minComplete), uintptr(flags), 0, 0)
	if errno != 0 {
		return 0, errno
	}
	r.pending -= uint32(n)
	return int(n), nil
}

func (r *Uring) Submit() (int, error) {
	if r.closed {
		return 0, ErrClosed
	}
	if r.pending == 0 {
		return 0, nil
	}
	return r.enter(r.pending, 0, 0)
}

func (r *Uring) SubmitAndWait(min uint32) (int, error) {
	if r.closed {
		return 0, ErrClosed
	}
	var flags uint32
	if min > 0 {
		flags = ioringEnterGetEvents
	}
	return r.enter(r.pending, min, flags)
}

func (r *Uring) Peek() (Completion, bool) {
	if r.closed {
		return Completion{}, false
	}
	head := atomic.LoadUint32(r.cqHead)
	if head == atomic.LoadUint32(r.cqTail) {
		return Completion{}, false
	}
	e := r.cqes[head&r.cqMask]
	atomic.StoreUint32(r.cqHead, head+1)
	return Completion{UserData: e.UserData, Res: e.Res, Flags: e.Flags}, true
}

func (r *Uring) register(opcode uintptr, arg unsafe.Pointer, n int) error {
	_, _, errno := unix.Syscall6(unix.SYS_IO_URING_REGISTER, uintptr(r.fd), opcode, uintptr(arg), uintptr(n), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func (r *Uring) RegisterBuffers(bufs [][]byte) error {
	if len(bufs) == 0 {
		return ErrEmptyRegistration
	}
	iov := make([]unix.Iovec, len(bufs))
	for i, b := range bufs {
		if len(b) == 0 {
			return errors.Errorf("register buffers: buffer %d is empty", i)
		}
		iov[i].Base = &b[0]
		iov[i].SetLen(len(b))
	}
	err := r.register(ioringRegisterBuffers, unsafe.Pointer(&iov[0]), len(iov))
	runtime.KeepAlive(iov)
	return errors.Wrap(err, "register buffers")
}

func (r *Uring) UnregisterBuffers() error {
	return errors.Wrap(r.register(ioringUnregisterBuffers, nil, 0), "unregister buffers")
}

func (r *Uring) RegisterFiles(fds []int32) error {
	if len(fds) == 0 {
		return ErrEmptyRegistration
	}
	err := r.register(ioringRegisterFiles, unsafe.Pointer(&fds[0]), len(fds))
	runtime.KeepAlive(fds)
	return errors.Wrap(err, "register files")
}

func (r *Uring) UnregisterFiles() error {
	return errors.Wrap(r.register(ioringUnregisterFiles, nil, 0), "unregister files")
}

// Close unmaps the rings and closes the descriptor. Outstanding operations are
// abandoned; the caller must not touch their buffers' kernel side afterwards.
func (r *Uring) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return multierr.Combine(r.munmap(), unix.Close(r.fd))
}
