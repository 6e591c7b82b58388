// Package capturebuffer implements the per-output delay queue from the
// capture push contract (§4.3 step 2-3): chunks accumulate here after
// a source broadcast until the source output's consumer is ready for
// them, and any excess over the stream's rewind limit is dequeued and
// processed (muted, soft-volumed, resampled) piece by piece.
//
// Grounded on the reference asset's grow-by-append accumulation
// (asset.go): asset.go grows one contiguous buffer across the signed/
// unsigned/floating signal kinds so a whole recording can later be
// replayed; this queue keeps the same "accumulate, then drain" shape
// but at chunk granularity, since the push contract needs to inspect
// and transform each piece independently rather than replay a whole
// buffer. Only signal.Floating is handled: the device core never holds
// sample data in any other representation (an explicit Non-goal,
// audio encode/decode, would be needed to get signed/unsigned PCM this
// far up the stack).
package capturebuffer

import "pipelined.dev/signal"

// Queue is one source output's delay queue.
type Queue struct {
	pieces []signal.Floating
	length int
}

// New returns an empty delay queue.
func New() *Queue { return &Queue{} }

// Push appends a newly broadcast chunk.
func (q *Queue) Push(piece signal.Floating) {
	q.pieces = append(q.pieces, piece)
	q.length += piece.Length()
}

// Len is the total buffered sample count across every piece.
func (q *Queue) Len() int { return q.length }

// DrainExcess dequeues whole pieces from the head until Len() <= limit,
// returning them in order for the caller to mute/volume/resample and
// hand to push (§4.3 step 3).
func (q *Queue) DrainExcess(limit int) []signal.Floating {
	if limit < 0 {
		limit = 0
	}
	var out []signal.Floating
	for q.length > limit && len(q.pieces) > 0 {
		p := q.pieces[0]
		q.pieces = q.pieces[1:]
		q.length -= p.Length()
		out = append(out, p)
	}
	return out
}

// Flush drains every piece, used when an output is detached mid-move.
func (q *Queue) Flush() []signal.Floating {
	out := q.pieces
	q.pieces = nil
	q.length = 0
	return out
}
