package simix

import "container/heap"

// timerEntry is one scheduled callback keyed on absolute virtual time
// (spec.md §4.D's "Timers"). seq breaks ties in insertion order so
// equal-key timers fire FIFO, matching the spec's documented rule.
type timerEntry struct {
	at       float64
	seq      uint64
	fire     func()
	canceled bool
	index    int // heap index, maintained by container/heap
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x interface{}) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// timerQueue is a thin wrapper around timerHeap tracking its own
// insertion sequence counter.
type timerQueue struct {
	h   timerHeap
	seq uint64
}

func newTimerQueue() *timerQueue { return &timerQueue{} }

// schedule inserts a new timer firing fn at absolute time at.
func (q *timerQueue) schedule(at float64, fn func()) *timerEntry {
	e := &timerEntry{at: at, seq: q.seq, fire: fn}
	q.seq++
	heap.Push(&q.h, e)
	return e
}

// cancel marks e so popDue skips it without disturbing heap ordering.
func (q *timerQueue) cancel(e *timerEntry) {
	if e != nil {
		e.canceled = true
	}
}

// nextAt reports the earliest pending (non-canceled) timer's time, or
// +Inf if none remain.
func (q *timerQueue) nextAt(posInf float64) float64 {
	for len(q.h) > 0 && q.h[0].canceled {
		heap.Pop(&q.h)
	}
	if len(q.h) == 0 {
		return posInf
	}
	return q.h[0].at
}

// popDue fires every timer whose key is <= clock, in heap (time, then
// insertion) order.
func (q *timerQueue) popDue(clock float64) {
	for len(q.h) > 0 {
		top := q.h[0]
		if top.canceled {
			heap.Pop(&q.h)
			continue
		}
		if top.at > clock {
			return
		}
		heap.Pop(&q.h)
		top.fire()
	}
}
