package nstruct

import (
	"math"
	"sync/atomic"
)

// IdGen allocates struct ids. The first id is 1 and ids only grow.
// Once math.MaxInt32 has been handed out or reserved, Next fails with
// ErrIDsExhausted instead of wrapping.
type IdGen struct {
	cur atomic.Int64
}

// NewIdGen returns a generator whose first id is 1.
func NewIdGen() *IdGen {
	g := &IdGen{}
	g.cur.Store(1)
	return g
}

// Next returns the current id and advances the counter.
func (g *IdGen) Next() (int32, error) {
	for {
		cur := g.cur.Load()
		if cur > math.MaxInt32 {
			return 0, ErrIDsExhausted
		}
		if g.cur.CompareAndSwap(cur, cur+1) {
			return int32(cur), nil
		}
	}
}

// Peek returns the id Next would return, or 0 when ids are exhausted.
func (g *IdGen) Peek() int32 {
	cur := g.cur.Load()
	if cur > math.MaxInt32 {
		return 0
	}
	return int32(cur)
}

// Reserve makes sure id is never handed out by Next.
func (g *IdGen) Reserve(id int32) {
	for {
		cur := g.cur.Load()
		if int64(id) < cur {
			return
		}
		if g.cur.CompareAndSwap(cur, int64(id)+1) {
			return
		}
	}
}
