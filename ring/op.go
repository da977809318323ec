package ring

import "fmt"

// Opcode is an io_uring operation code.
type Opcode uint8

// Subset of the kernel opcodes the server issues.
const (
	OpNop       Opcode = 0
	OpReadFixed Opcode = 4
	OpPollAdd   Opcode = 6
	OpTimeout   Opcode = 11
	OpAccept    Opcode = 13
	OpRead      Opcode = 22
	OpSend      Opcode = 26
	OpRecv      Opcode = 27
)

func (c Opcode) String() string {
	switch c {
	case OpNop:
		return "nop"
	case OpReadFixed:
		return "read_fixed"
	case OpPollAdd:
		return "poll_add"
	case OpTimeout:
		return "timeout"
	case OpAccept:
		return "accept"
	case OpRead:
		return "read"
	case OpSend:
		return "send"
	case OpRecv:
		return "recv"
	default:
		return fmt.Sprintf("opcode(%d)", uint8(c))
	}
}

// SQE flags.
const (
	FlagFixedFile uint8 = 1 << 0
	FlagIODrain   uint8 = 1 << 1
	FlagIOLink    uint8 = 1 << 2
	FlagAsync     uint8 = 1 << 4
)

// Poll masks for PollAdd.
const (
	PollIn  uint32 = 0x1
	PollOut uint32 = 0x4
)

// Timespec mirrors struct __kernel_timespec.
type Timespec struct {
	Sec  int64
	Nsec int64
}

// Op is a submission descriptor. It holds Go references rather than kernel
// addresses, so an Op parked in the backlog keeps its memory reachable.
// Buf must stay reachable until the operation completes; the owner of the
// buffer (pool or registry) is responsible for that.
type Op struct {
	Code     Opcode
	Flags    uint8
	Fd       int32
	Buf      []byte
	Offset   uint64
	OpFlags  uint32
	BufIndex uint16
	UserData uint64

	ts *Timespec
}

// Nop builds a no-op, used to probe the ring.
func Nop() Op {
	return Op{Code: OpNop, Fd: -1}
}

// Accept builds an accept on a listening socket. The peer address is not
// requested.
func Accept(fd int) Op {
	return Op{Code: OpAccept, Fd: int32(fd)}
}

// PollAdd builds a one-shot readiness watch.
func PollAdd(fd int, mask uint32) Op {
	return Op{Code: OpPollAdd, Fd: int32(fd), OpFlags: mask}
}

// Recv builds a socket receive into buf.
func Recv(fd int, buf []byte) Op {
	return Op{Code: OpRecv, Fd: int32(fd), Buf: buf}
}

// Send builds a socket send of buf.
func Send(fd int, buf []byte) Op {
	return Op{Code: OpSend, Fd: int32(fd), Buf: buf}
}

// Read builds a positional file read into buf.
func Read(fd int, buf []byte, offset uint64) Op {
	return Op{Code: OpRead, Fd: int32(fd), Buf: buf, Offset: offset}
}

// ReadFixed builds a read into a slice of registered buffer index.
func ReadFixed(fd int, buf []byte, offset uint64, index uint16) Op {
	return Op{Code: OpReadFixed, Fd: int32(fd), Buf: buf, Offset: offset, BufIndex: index}
}

// Timeout builds a pure timeout that completes with -ETIME after ts elapses.
// ts must stay reachable until completion.
func Timeout(ts *Timespec) Op {
	return Op{Code: OpTimeout, Fd: -1, ts: ts}
}

// WithUserData returns a copy of op carrying the correlation token.
func (op Op) WithUserData(token uint64) Op {
	op.UserData = token
	return op
}

// WithFixedFile returns a copy of op addressing a registered file by index.
func (op Op) WithFixedFile(index int) Op {
	op.Fd = int32(index)
	op.Flags |= FlagFixedFile
	return op
}

func (op Op) String() string {
	return fmt.Sprintf("%s(fd=%d len=%d ud=%#x)", op.Code, op.Fd, len(op.Buf), op.UserData)
}
