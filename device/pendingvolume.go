package device

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pipelined/device/volume"
)

// pendingVolumeChange is one scheduled hardware volume write (§5
// "Deferred hardware volume"): a time and the volume to commit at it.
type pendingVolumeChange struct {
	at  time.Time
	vol volume.ChannelVolume
}

func (c pendingVolumeChange) average() float64 {
	if len(c.vol) == 0 {
		return 0
	}
	var sum float64
	for _, l := range c.vol {
		sum += float64(l)
	}
	return sum / float64(len(c.vol))
}

// pendingVolumeQueue schedules hardware volume writes so that a louder
// change lands at least a safety margin after, and a quieter change at
// least a safety margin before, each earlier pending change, and
// superseded changes are dropped (§5's push/apply rules).
type pendingVolumeQueue struct {
	mu           sync.Mutex
	changes      []pendingVolumeChange
	safety       time.Duration
	extraDelay   time.Duration
	now          func() time.Time
}

func newPendingVolumeQueue(capacityHint int) pendingVolumeQueue {
	return pendingVolumeQueue{
		changes:    make([]pendingVolumeChange, 0, capacityHint),
		safety:     10 * time.Millisecond,
		extraDelay: 0,
		now:        time.Now,
	}
}

// push inserts a new change, applying the §5 push rule: scanning the
// existing queue in reverse, a change whose average gain is above an
// earlier pending change's is moved to at least `safety` after it, and
// one whose average is below is moved to at least `safety` before it;
// once placed, every change not scheduled before it is superseded and
// dropped.
func (q *pendingVolumeQueue) push(c pendingVolumeChange) pendingVolumeChange {
	q.mu.Lock()
	defer q.mu.Unlock()

	c.at = c.at.Add(q.extraDelay)
	for i := len(q.changes) - 1; i >= 0; i-- {
		p := q.changes[i]
		switch {
		case p.average() < c.average():
			if c.at.Before(p.at.Add(q.safety)) {
				c.at = p.at.Add(q.safety)
			}
		case p.average() > c.average():
			if c.at.After(p.at.Add(-q.safety)) {
				c.at = p.at.Add(-q.safety)
			}
		}
	}

	kept := q.changes[:0:0]
	for _, p := range q.changes {
		if p.at.Before(c.at) {
			kept = append(kept, p)
		}
	}
	kept = append(kept, c)
	sort.Slice(kept, func(i, j int) bool { return kept[i].at.Before(kept[j].at) })
	q.changes = kept
	return c
}

// due pops and returns every change scheduled at or before now.
func (q *pendingVolumeQueue) due(now time.Time) []pendingVolumeChange {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := 0
	for i < len(q.changes) && !q.changes[i].at.After(now) {
		i++
	}
	due := append([]pendingVolumeChange(nil), q.changes[:i]...)
	q.changes = q.changes[i:]
	return due
}

// scheduleHardwareVolume implements the scheduling half of §5's
// deferred-volume rule: the write itself happens on the next IO-thread
// tick via ApplyPendingVolume, which the driver's IO loop is expected
// to call once per iteration.
func (d *Device) scheduleHardwareVolume(ctx context.Context, v volume.ChannelVolume) {
	d.pending.push(pendingVolumeChange{at: d.pending.now(), vol: v})
}

// ApplyPendingVolume commits every hardware volume change scheduled at
// or before now by calling the driver's WriteHWVolume (§5 "Apply
// rule"). Callers (normally the IO thread's per-tick loop) invoke this
// once per iteration when FlagDeferredVolume is set.
func (d *Device) ApplyPendingVolume(now time.Time) error {
	due := d.pending.due(now)
	if len(due) == 0 {
		return nil
	}
	d.mu.Lock()
	write := d.driver.WriteHWVolume
	d.mu.Unlock()
	if write == nil {
		return nil
	}
	for _, c := range due {
		if err := write(c.vol); err != nil {
			return err
		}
	}
	return nil
}
