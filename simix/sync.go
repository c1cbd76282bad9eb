package simix

// Mutex is a simulated mutex: a current owner (nil if free) and a FIFO
// of blocked actors (spec.md §3's "Synchronization primitives"). All
// mutation happens inside maestro's simcall handlers (§5), so no
// internal locking is needed here.
type Mutex struct {
	owner  *Actor
	queue  []*Actor
}

// NewMutex creates an unlocked mutex.
func NewMutex() *Mutex { return &Mutex{} }

func (m *Mutex) tryAcquire(a *Actor) bool {
	if m.owner == nil {
		m.owner = a
		return true
	}
	return false
}

func (m *Mutex) enqueue(a *Actor) { m.queue = append(m.queue, a) }

// release clears ownership and pops the next waiter in arrival order
// (spec.md §8's mutex-fairness property), or nil if the queue is empty.
func (m *Mutex) release() *Actor {
	m.owner = nil
	if len(m.queue) == 0 {
		return nil
	}
	next := m.queue[0]
	m.queue = m.queue[1:]
	m.owner = next
	return next
}

// Owner returns the actor currently holding the mutex, or nil.
func (m *Mutex) Owner() *Actor { return m.owner }

// Cond is a simulated condition variable: a sleepers queue, woken in
// arrival order by Signal/Broadcast.
type Cond struct {
	sleepers []*Actor
}

// NewCond creates an empty condition variable.
func NewCond() *Cond { return &Cond{} }

func (c *Cond) enqueue(a *Actor) { c.sleepers = append(c.sleepers, a) }

func (c *Cond) popOne() *Actor {
	if len(c.sleepers) == 0 {
		return nil
	}
	a := c.sleepers[0]
	c.sleepers = c.sleepers[1:]
	return a
}

func (c *Cond) popAll() []*Actor {
	all := c.sleepers
	c.sleepers = nil
	return all
}

// removeIfPresent drops a from the sleepers queue, for timeout
// cancellation; a no-op if a already woke through Signal/Broadcast.
func (c *Cond) removeIfPresent(a *Actor) bool {
	for i, s := range c.sleepers {
		if s == a {
			c.sleepers = append(c.sleepers[:i], c.sleepers[i+1:]...)
			return true
		}
	}
	return false
}

// Semaphore is a simulated counting semaphore with a sleepers queue.
// A negative count passed to NewSemaphore means unbounded (never blocks).
type Semaphore struct {
	count    int
	infinite bool
	sleepers []*Actor
}

// NewSemaphore creates a semaphore starting at count permits; count < 0
// means unbounded (the "infinite" sentinel of spec.md §3).
func NewSemaphore(count int) *Semaphore {
	if count < 0 {
		return &Semaphore{infinite: true}
	}
	return &Semaphore{count: count}
}

func (s *Semaphore) tryAcquire() bool {
	if s.infinite {
		return true
	}
	if s.count > 0 {
		s.count--
		return true
	}
	return false
}

func (s *Semaphore) enqueue(a *Actor) { s.sleepers = append(s.sleepers, a) }

// removeIfPresent drops a from the sleepers queue, for timeout
// cancellation.
func (s *Semaphore) removeIfPresent(a *Actor) bool {
	for i, w := range s.sleepers {
		if w == a {
			s.sleepers = append(s.sleepers[:i], s.sleepers[i+1:]...)
			return true
		}
	}
	return false
}

// release increments the count (no-op if infinite) and pops the next
// sleeper in FIFO order, or nil.
func (s *Semaphore) release() *Actor {
	if !s.infinite {
		s.count++
	}
	if len(s.sleepers) == 0 {
		return nil
	}
	a := s.sleepers[0]
	s.sleepers = s.sleepers[1:]
	if !s.infinite {
		s.count--
	}
	return a
}
