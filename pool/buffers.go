// Package pool provides index-addressed allocators whose handles stay valid
// while the memory behind them is in use by the kernel.
package pool

import "fmt"

// Buffers hands out fixed-size byte buffers by integer handle. A released
// handle goes to a free list and is reissued before any new buffer is
// allocated. Buffers are never freed, so their addresses stay valid for the
// lifetime of the pool.
type Buffers struct {
	size  int
	bufs  [][]byte
	inUse []bool
	free  []int
}

// NewBuffers returns a pool of size-byte buffers with room for hint handles.
func NewBuffers(size, hint int) *Buffers {
	if size <= 0 {
		panic(fmt.Sprintf("pool: invalid buffer size %d", size))
	}
	return &Buffers{
		size:  size,
		bufs:  make([][]byte, 0, hint),
		inUse: make([]bool, 0, hint),
		free:  make([]int, 0, hint),
	}
}

// Size is the length of every buffer.
func (p *Buffers) Size() int { return p.size }

// Acquire claims a buffer.
func (p *Buffers) Acquire() (int, []byte) {
	if n := len(p.free); n > 0 {
		h := p.free[n-1]
		p.free = p.free[:n-1]
		p.inUse[h] = true
		return h, p.bufs[h]
	}
	h := len(p.bufs)
	p.bufs = append(p.bufs, make([]byte, p.size))
	p.inUse = append(p.inUse, true)
	return h, p.bufs[h]
}

// Release returns h to the free list. It must only be called once the last
// operation referencing the buffer has completed; releasing a handle that is
// not in use panics.
func (p *Buffers) Release(h int) {
	p.check(h)
	p.inUse[h] = false
	p.free = append(p.free, h)
}

// Bytes returns the buffer behind a claimed handle.
func (p *Buffers) Bytes(h int) []byte {
	p.check(h)
	return p.bufs[h]
}

// InUse reports whether h is currently claimed.
func (p *Buffers) InUse(h int) bool {
	return h >= 0 && h < len(p.inUse) && p.inUse[h]
}

// Claimed is the number of handles currently in use.
func (p *Buffers) Claimed() int { return len(p.bufs) - len(p.free) }

// Allocated is the number of buffers ever allocated.
func (p *Buffers) Allocated() int { return len(p.bufs) }

func (p *Buffers) check(h int) {
	if !p.InUse(h) {
		panic(fmt.Sprintf("pool: buffer handle %d is not in use", h))
	}
}
