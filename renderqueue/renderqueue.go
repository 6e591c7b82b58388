// Package renderqueue implements the rewindable render memblockq used
// by sink input's peek/drop/rewind protocol (§4.4): a FIFO of
// previously-rendered chunks that can be read forward, rewound
// backward (re-exposing already-rendered data without recomputing it)
// and dropped (permanently discarding data the mixer has consumed).
//
// Grounded on the reference track's doubly-linked list of non-
// overlapping clips (track.go): appends always land at the tail here
// (there is no out-of-order insertion to reconcile), so the overlap
// resolution track.go needs is dropped, but the link-chasing traversal
// by absolute position is kept.
package renderqueue

import "pipelined.dev/signal"

type link struct {
	at   int
	data signal.Floating
	next *link
}

func (l *link) end() int { return l.at + l.data.Length() }

// Queue is one stream's render memblockq.
type Queue struct {
	head, tail *link

	written int // absolute position of the next Append
	dropped int // absolute position below which data has been freed
	read    int // absolute read cursor, dropped <= read <= written
}

// New returns an empty queue.
func New() *Queue { return &Queue{} }

// Append adds a newly rendered chunk to the tail (§4.4's peek contract,
// after soft-volume/resample have already been applied).
func (q *Queue) Append(data signal.Floating) {
	l := &link{at: q.written, data: data}
	if q.tail == nil {
		q.head, q.tail = l, l
	} else {
		q.tail.next = l
		q.tail = l
	}
	q.written += data.Length()
}

// Buffered is the amount of data retained (read or not), available to
// Rewind back into.
func (q *Queue) Buffered() int { return q.written - q.dropped }

// Readable is the amount of not-yet-read data available to Read.
func (q *Queue) Readable() int { return q.written - q.read }

// Read copies up to out.Length() samples starting at the read cursor
// into out, advancing the cursor, and returns the number of samples
// copied.
func (q *Queue) Read(out signal.Floating) int {
	n := out.Length()
	if avail := q.Readable(); n > avail {
		n = avail
	}
	if n <= 0 {
		return 0
	}
	pos := q.read
	end := pos + n
	cur := q.nodeAt(pos)
	copied := 0
	for copied < n && cur != nil {
		lo := pos - cur.at
		hi := cur.data.Length()
		if cur.end() > end {
			hi = end - cur.at
		}
		copied += signal.AsFloating(signal.Slice(cur.data, lo, hi), out.Slice(copied, n))
		pos = cur.at + hi
		if pos >= cur.end() {
			cur = cur.next
		}
	}
	q.read += copied
	return copied
}

// Rewind moves the read cursor backward by up to n samples, without
// discarding any data, re-exposing it to the next Read. Returns the
// amount actually rewound (clamped to what remains buffered).
func (q *Queue) Rewind(n int) int {
	if max := q.read - q.dropped; n > max {
		n = max
	}
	if n < 0 {
		n = 0
	}
	q.read -= n
	return n
}

// Drop permanently discards up to n samples of already-read data from
// the head, freeing the underlying links once fully consumed.
func (q *Queue) Drop(n int) int {
	if max := q.read - q.dropped; n > max {
		n = max
	}
	if n < 0 {
		n = 0
	}
	q.dropped += n
	for q.head != nil && q.head.end() <= q.dropped {
		q.head = q.head.next
	}
	if q.head == nil {
		q.tail = nil
	}
	return n
}

// Flush discards every buffered sample, read or not, resetting the
// queue to empty at its current absolute position (§4.4
// process-underrun: "the queue is then silenced").
func (q *Queue) Flush() {
	q.head, q.tail = nil, nil
	q.dropped = q.written
	q.read = q.written
}

func (q *Queue) nodeAt(pos int) *link {
	for l := q.head; l != nil; l = l.next {
		if l.end() > pos {
			return l
		}
	}
	return nil
}
