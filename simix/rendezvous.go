package simix

import "github.com/nmxmxh/simcore/activity"

type commDirection int

const (
	dirSend commDirection = iota
	dirRecv
)

// pendingComm is one unmatched post sitting in a Rendezvous FIFO: either
// a send or a recv waiting for its counterpart.
type pendingComm struct {
	dir   commDirection
	actor *Actor
	size  float64
	tag   interface{}
	match activity.MatchFn
	act   *activity.Action
}

// Rendezvous is a named meeting place for communications (spec.md §3's
// "Rendezvous point"): a FIFO of unmatched posts. It usually holds only
// sends or only recvs, but sends and recvs whose match predicates
// reject each other wait in it side by side.
type Rendezvous struct {
	Name string
	fifo []*pendingComm
}

// NewRendezvous creates an empty, named rendezvous point.
func NewRendezvous(name string) *Rendezvous { return &Rendezvous{Name: name} }

// findMatch scans the FIFO for the first pending entry of the opposite
// direction whose match predicate accepts data, per spec.md §4.D's
// rendezvous-matching rule. A nil match matches anything.
func (r *Rendezvous) findMatch(wantDir commDirection, localTag interface{}, match activity.MatchFn) (*pendingComm, int) {
	want := dirSend
	if wantDir == dirSend {
		want = dirRecv
	}
	for i, p := range r.fifo {
		if p.dir != want {
			continue
		}
		var fn activity.MatchFn
		if match != nil {
			fn = match
		} else if p.match != nil {
			fn = p.match
		}
		if fn == nil || fn(localTag, p.tag) {
			return p, i
		}
	}
	return nil, -1
}

func (r *Rendezvous) unlinkAt(i int) {
	r.fifo = append(r.fifo[:i], r.fifo[i+1:]...)
}

func (r *Rendezvous) enqueue(p *pendingComm) { r.fifo = append(r.fifo, p) }
