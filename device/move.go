package device

// MoveQueue holds the streams drained from a device by MoveAllStart,
// pending re-attachment elsewhere (§4.1 move_all_start/finish/fail),
// used when a device is being removed or reconfigured.
type MoveQueue struct {
	streams []AttachedStream
}

// Len returns the number of streams queued for re-attachment.
func (q *MoveQueue) Len() int { return len(q.streams) }

// MoveAllStart drains every attached stream off the device into a
// MoveQueue for the caller to re-home one at a time via Finish or Fail.
func (d *Device) MoveAllStart() *MoveQueue {
	d.mu.Lock()
	defer d.mu.Unlock()
	q := &MoveQueue{streams: d.streams}
	d.streams = nil
	d.corkedCount = 0
	d.updateStatusLocked()
	return q
}

// MoveAllFinish re-attaches every queued stream using attach, which
// should perform the stream's own two-phase move onto a new device
// (§4.3/§4.4 finish_move). Streams attach reports an error for are
// passed to onFail instead, matching "re-attach each ... or fail-move
// one by one".
func (q *MoveQueue) MoveAllFinish(attach func(AttachedStream) error, onFail func(AttachedStream)) {
	for _, s := range q.streams {
		if err := attach(s); err != nil && onFail != nil {
			onFail(s)
		}
	}
	q.streams = nil
}

// MoveAllFail hands every queued stream to fail, matching fail_move on
// every stream at once when no destination can be found for any of
// them.
func (q *MoveQueue) MoveAllFail(fail func(AttachedStream)) {
	for _, s := range q.streams {
		fail(s)
	}
	q.streams = nil
}
