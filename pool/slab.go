package pool

// Token addresses a Slab entry. The low 32 bits are the slot index and the
// high 32 bits its generation, so a token kept past Remove never resolves to
// the slot's next occupant.
type Token uint64

// NewToken packs index and generation.
func NewToken(index, gen uint32) Token {
	return Token(uint64(gen)<<32 | uint64(index))
}

// Index is the slot index.
func (t Token) Index() uint32 { return uint32(t) }

// Gen is the slot generation.
func (t Token) Gen() uint32 { return uint32(t >> 32) }

type slot[T any] struct {
	val      T
	gen      uint32
	occupied bool
}

// Slab is a generation-checked arena.
type Slab[T any] struct {
	slots []slot[T]
	free  []uint32
	n     int
}

// NewSlab returns a Slab with room for hint entries.
func NewSlab[T any](hint int) *Slab[T] {
	return &Slab[T]{slots: make([]slot[T], 0, hint)}
}

// Insert stores v and returns its token.
func (s *Slab[T]) Insert(v T) Token {
	var idx uint32
	if n := len(s.free); n > 0 {
		idx = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		idx = uint32(len(s.slots))
		s.slots = append(s.slots, slot[T]{gen: 1})
	}
	sl := &s.slots[idx]
	sl.val = v
	sl.occupied = true
	s.n++
	return NewToken(idx, sl.gen)
}

func (s *Slab[T]) lookup(t Token) *slot[T] {
	idx := t.Index()
	if int(idx) >= len(s.slots) {
		return nil
	}
	sl := &s.slots[idx]
	if !sl.occupied || sl.gen != t.Gen() {
		return nil
	}
	return sl
}

// Get returns the value behind t.
func (s *Slab[T]) Get(t Token) (T, bool) {
	if sl := s.lookup(t); sl != nil {
		return sl.val, true
	}
	var zero T
	return zero, false
}

// Set replaces the value behind t, reporting whether t was live.
func (s *Slab[T]) Set(t Token, v T) bool {
	sl := s.lookup(t)
	if sl == nil {
		return false
	}
	sl.val = v
	return true
}

// Remove frees t's slot and bumps its generation.
func (s *Slab[T]) Remove(t Token) (T, bool) {
	var zero T
	sl := s.lookup(t)
	if sl == nil {
		return zero, false
	}
	v := sl.val
	sl.val = zero
	sl.occupied = false
	sl.gen++
	if sl.gen == 0 {
		sl.gen = 1
	}
	s.free = append(s.free, t.Index())
	s.n--
	return v, true
}

// Len is the number of live entries.
func (s *Slab[T]) Len() int { return s.n }

// Range calls fn for every live entry until fn returns false.
func (s *Slab[T]) Range(fn func(Token, T) bool) {
	for i := range s.slots {
		sl := &s.slots[i]
		if sl.occupied && !fn(NewToken(uint32(i), sl.gen), sl.val) {
			return
		}
	}
}
