// Package queue implements the per-LP checkpoint chain: a doubly
// linked list of blobs with backward navigation for chained restore
// and a fossil collection sweep (spec.md §3 "ownership and lifecycle",
// §4.6).
//
// The shape is grounded on common.Queue's linked-list queue
// (common/queue.go) from the teacher package, extended with the
// backward Prev() navigation the restorer needs and a Collect method
// fossil collection uses; common.Queue itself has no such navigation
// since gcsfuse only ever walks its queues forward.
package queue

import "github.com/rootsim-go/ckptengine/internal/blob"

// Node is one link in an LP's checkpoint chain. The engine never walks
// a Queue forward; the Restorer only ever follows a node handed to it
// and then calls Prev repeatedly (spec.md §3).
type Node struct {
	Blob      *blob.Blob
	Timestamp uint64

	prev *Node
	next *Node
}

// GetBlob returns the node's blob.
func (n *Node) GetBlob() *blob.Blob { return n.Blob }

// Prev returns the previous (older) node in the chain, or nil if n is
// the oldest node currently retained.
func (n *Node) Prev() *Node { return n.prev }

// Queue is one LP's checkpoint chain, ordered oldest (Front) to newest
// (Back). The host is responsible for scheduling checkpoints into it;
// the engine only reads nodes back out via Prev navigation.
type Queue struct {
	lpID        string
	front, back *Node
	size        int
}

// New creates an empty checkpoint queue for the given LP.
func New(lpID string) *Queue { return &Queue{lpID: lpID} }

// IsEmpty reports whether the queue holds no nodes.
func (q *Queue) IsEmpty() bool { return q.size == 0 }

// Len returns the number of nodes currently retained.
func (q *Queue) Len() int { return q.size }

// Front returns the oldest retained node, or nil if the queue is empty.
func (q *Queue) Front() *Node { return q.front }

// Back returns the most recently pushed node, or nil if the queue is
// empty.
func (q *Queue) Back() *Node { return q.back }

// Push appends a newly produced checkpoint as the new Back, linked
// behind the previous Back so a Restore starting from it can walk
// backward via Prev.
func (q *Queue) Push(b *blob.Blob, timestamp uint64) *Node {
	n := &Node{Blob: b, Timestamp: timestamp, prev: q.back}
	if q.size == 0 {
		q.front = n
	} else {
		q.back.next = n
	}
	q.back = n
	q.size++
	return n
}

// Collect reclaims every node older than gvt, retaining the newest
// node at or before gvt: a future restore can never be asked to go
// further back than the global virtual time, but the node at exactly
// the horizon must stay reachable (spec.md §4.6, GLOSSARY "Fossil
// collection"). discard is invoked on each reclaimed node's blob; it
// may be nil.
func (q *Queue) Collect(gvt uint64, discard func(*blob.Blob)) int {
	collected := 0
	for q.front != nil && q.front.next != nil && q.front.next.Timestamp <= gvt {
		old := q.front
		q.front = q.front.next
		q.front.prev = nil
		old.next = nil
		if discard != nil {
			discard(old.Blob)
		} else {
			blob.Discard(old.Blob)
		}
		q.size--
		collected++
	}
	return collected
}
