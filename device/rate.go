package device

import (
	"context"
	"fmt"

	"github.com/pipelined/device/sample"

	"pipelined.dev/signal"
)

// UpdateRate implements §4.1's update_rate: refuses while any
// non-corked stream is attached (RUNNING), picks between the device's
// default and alternate rate by family match unless passthrough, and
// round-trips the change through the suspend state machine so the
// driver sees a clean suspend/resume around the format change.
func (d *Device) UpdateRate(ctx context.Context, rate signal.Frequency, passthrough bool) (signal.Frequency, error) {
	d.mu.Lock()
	if d.state == StateRunning {
		d.mu.Unlock()
		return 0, fmt.Errorf("device: %w: update_rate refused while running", ErrBadState)
	}

	chosen := d.spec.Rate
	if !passthrough {
		m4, m11 := sample.RateFamily(rate)
		if !m4 && !m11 {
			d.mu.Unlock()
			return 0, fmt.Errorf("device: %w: rate %d is not a multiple of 4000 or 11025 Hz", ErrInvalid, rate)
		}
		if sample.SameFamily(d.alternateRate, rate) && d.alternateRate != 0 {
			chosen = d.alternateRate
		} else if sample.SameFamily(d.spec.Rate, rate) {
			chosen = d.spec.Rate
		} else {
			d.mu.Unlock()
			return 0, fmt.Errorf("device: %w: rate %d matches neither default nor alternate family", ErrInvalid, rate)
		}
	} else {
		chosen = rate
	}
	updateRate := d.driver.UpdateRate
	streams := append([]AttachedStream(nil), d.streams...)
	d.mu.Unlock()

	if err := d.Suspend(ctx, true, CauseInternal); err != nil {
		return 0, err
	}
	if updateRate != nil {
		if err := updateRate(chosen); err != nil {
			d.Suspend(ctx, false, CauseInternal)
			return 0, err
		}
	}
	d.mu.Lock()
	d.spec.Rate = chosen
	d.mu.Unlock()
	if err := d.Suspend(ctx, false, CauseInternal); err != nil {
		return 0, err
	}

	for _, s := range streams {
		if s.Corked() {
			s.Suspend(false) // gives corked streams a chance to re-resample
		}
	}
	return chosen, nil
}
