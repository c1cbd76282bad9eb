// Package kcontext implements the context-switcher interface of
// spec.md §4.C: a suspended point of execution that maestro can
// create, start, resume, and stop. Five backend names are accepted
// (raw, boost, ucontext, thread, serial per config.ContextFactory) but
// all share one portable implementation here: a dedicated goroutine per
// actor, handed control and taken back via a pair of unbuffered
// channels. Go has no portable raw-assembly or ucontext(3) stack swap
// exposed to user code the way the teacher's C ancestor does, so "raw"/
// "boost"/"ucontext" are accepted as configuration values (kept for
// compatibility with spec.md §6's recognized keys) but all resolve to
// this same goroutine-backed context. simix's scheduler runs one
// context at a time whichever name is configured; nothing reads
// config.ContextFactory to select a backend or a degree of parallelism.
package kcontext

import "fmt"

// EntryFn is the actor body. It receives its own Context so it can call
// Suspend on itself at a simcall boundary, and its argv.
type EntryFn func(ctx *Context, argv []interface{})

// CleanupFn runs once, when entry_fn returns or the context is killed
// before ever starting.
type CleanupFn func()

// Context is one suspended point of execution, backed by a single
// dedicated goroutine.
type Context struct {
	entry   EntryFn
	argv    []interface{}
	cleanup CleanupFn
	owner   interface{}

	resumeCh  chan struct{}
	suspendCh chan struct{}

	started bool
	dying   bool
	dead    bool
	panicVal interface{}
}

// Create allocates a context bound to entry_fn/argv/cleanup_fn/owner.
// It does not start the goroutine; call Start exactly once to do that.
func Create(entry EntryFn, argv []interface{}, cleanup CleanupFn, owner interface{}) *Context {
	return &Context{
		entry:     entry,
		argv:      argv,
		cleanup:   cleanup,
		owner:     owner,
		resumeCh:  make(chan struct{}),
		suspendCh: make(chan struct{}),
	}
}

// Owner returns the opaque owner actor handle passed to Create.
func (c *Context) Owner() interface{} { return c.owner }

// Dying reports whether Kill has been called: the next Resume call
// should expect the context to run its cleanup and terminate rather
// than resume its entry logic (spec.md §4.C's cooperative cancellation).
func (c *Context) Dying() bool { return c.dying }

// Dead reports whether the context has finished: entry_fn returned and
// its goroutine exited, or it was killed and Resume ran its cleanup (in
// that case the goroutine stays parked rather than exiting).
func (c *Context) Dead() bool { return c.dead }

// Kill sets the "I want to die" flag. It does not itself stop the
// goroutine: the cleanup only happens the next time the context is
// scheduled, when Resume (or the Resume inside Start) runs cleanup on
// the caller's goroutine and marks the context dead without waking the
// context's goroutine, so user code never executes again after the kill
// request.
func (c *Context) Kill() { c.dying = true }

// Start launches the context's goroutine and performs the first
// Resume, blocking until the actor suspends (issues a simcall) or
// returns. Call exactly once per Context.
func (c *Context) Start() {
	if c.started {
		panic("kcontext: Start called twice")
	}
	c.started = true
	go func() {
		<-c.resumeCh
		if !c.dying {
			func() {
				defer func() {
					if r := recover(); r != nil {
						c.panicVal = r
					}
				}()
				c.entry(c, c.argv)
			}()
		}
		c.stopInternal()
	}()
	c.Resume()
}

// Resume hands control to ctx's goroutine and blocks until it suspends
// again or terminates. Called from maestro.
//
// If ctx was killed while already parked inside Suspend (mid-entry_fn),
// there is no cooperative point left to unwind its call stack from the
// outside — entry_fn is paused arbitrarily deep inside user code. Resume
// instead runs cleanup directly and marks the context dead without ever
// waking that goroutine again; it stays parked on resumeCh forever. This
// mirrors the raw/ucontext heritage this interface is modeled on, where a
// killed process's stack is simply never switched back to, not unwound.
func (c *Context) Resume() {
	if c.dead {
		panic("kcontext: Resume called on a dead context")
	}
	if c.dying {
		if c.cleanup != nil {
			c.cleanup()
		}
		c.dead = true
		return
	}
	c.resumeCh <- struct{}{}
	<-c.suspendCh
}

// Suspend yields control back to whoever is blocked in Resume. Called
// from inside the context's own goroutine, at a simcall boundary.
func (c *Context) Suspend() {
	c.suspendCh <- struct{}{}
	<-c.resumeCh
}

// stopInternal runs the cleanup hook and signals the final suspend so
// the blocked Resume/Start caller returns; the goroutine then exits.
// Matches spec.md §4.C's stop(ctx): "runs cleanup_fn, marks 'I want to
// die', and yields; the actual destruction happens later in maestro."
func (c *Context) stopInternal() {
	c.dying = true
	if c.cleanup != nil {
		c.cleanup()
	}
	c.dead = true
	c.suspendCh <- struct{}{}
}

// Panic returns the recovered panic value from entry_fn, if any, so
// maestro can decide whether to abort the whole simulation (spec.md §7:
// "any internal panic aborts the whole simulation with a stack trace").
func (c *Context) Panic() interface{} { return c.panicVal }

// Destroy releases ctx's resources. Go's garbage collector reclaims the
// goroutine's stack once it exits and the Context becomes unreachable,
// so there is no explicit stack-free step; Destroy exists to satisfy
// spec.md §4.C's interface and to catch use-after-destroy.
func (c *Context) Destroy() {
	if !c.dead {
		panic(fmt.Sprintf("kcontext: Destroy called on a context that never finished (dying=%v)", c.dying))
	}
}
