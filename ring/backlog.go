package ring

// backlog is a growable FIFO of ops that did not fit in the submission side.
type backlog struct {
	ops  []Op
	head int
	n    int
}

func newBacklog(hint int) backlog {
	if hint < 1 {
		hint = 1
	}
	return backlog{ops: make([]Op, hint)}
}

func (b *backlog) Len() int { return b.n }

func (b *backlog) PushBack(op Op) {
	if b.n == len(b.ops) {
		b.grow()
	}
	b.ops[(b.head+b.n)%len(b.ops)] = op
	b.n++
}

func (b *backlog) Front() Op {
	return b.ops[b.head]
}

func (b *backlog) PopFront() Op {
	op := b.ops[b.head]
	b.ops[b.head] = Op{}
	b.head = (b.head + 1) % len(b.ops)
	b.n--
	return op
}

func (b *backlog) grow() {
	ops := make([]Op, 2*len(b.ops))
	for i := 0; i < b.n; i++ {
		ops[i] = b.ops[(b.head+i)%len(b.ops)]
	}
	b.ops = ops
	b.head = 0
}
