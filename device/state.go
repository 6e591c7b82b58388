package device

import (
	"context"
	"fmt"
)

// SuspendCause is a bitmask of independent reasons a device may be
// suspended (§4.1 suspend); the device is SUSPENDED iff the mask is
// non-zero.
type SuspendCause uint32

const (
	CauseApplication SuspendCause = 1 << iota
	CauseUser
	CauseIdle
	CauseSession
	CauseInternal
	// CausePassthrough is the only cause a monitor source accepts
	// (§4.1: "For monitor sources, only the passthrough cause is
	// accepted; all other causes are rejected as not supported").
	CausePassthrough
)

// Suspend sets or clears cause in the device's suspend-cause mask and
// drives the state machine to SUSPENDED or back to RUNNING/IDLE if the
// "any cause set" status flips.
func (d *Device) Suspend(ctx context.Context, on bool, cause SuspendCause) error {
	d.mu.Lock()
	if d.monitorOf != nil && cause != CausePassthrough {
		d.mu.Unlock()
		return fmt.Errorf("device: %w: monitor source only accepts the passthrough suspend cause", ErrNotSupported)
	}
	wasAny := d.suspendCause != 0
	if on {
		d.suspendCause |= uint32(cause)
	} else {
		d.suspendCause &^= uint32(cause)
	}
	isAny := d.suspendCause != 0

	var opening, closing bool
	switch {
	case !wasAny && isAny:
		d.state = StateSuspended
		closing = true
	case wasAny && !isAny:
		d.state = d.resolveOpenStateLocked()
		d.updateStatusLocked()
		opening = true
	}
	streams := append([]AttachedStream(nil), d.streams...)
	setState := d.driver.SetState
	state := d.state
	d.mu.Unlock()

	if setState != nil && (opening || closing) {
		if err := setState(state); err != nil {
			return err
		}
	}
	if opening || closing {
		for _, s := range streams {
			s.Suspend(closing)
		}
	}
	return nil
}

// SetPort activates the named port (§4.1 set_port): fails if the port
// is unknown, no-ops if already active, and on success records the port
// as active. The device keeps no latency offset of its own, so the
// port's LatencyOffset is not applied anywhere.
func (d *Device) SetPort(ctx context.Context, name string, save bool) error {
	d.mu.Lock()
	port, ok := d.ports[name]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("device: %w: unknown port %q", ErrNoEntity, name)
	}
	if d.activePort == port {
		d.mu.Unlock()
		return nil
	}
	setPort := d.driver.SetPort
	deferred := d.flags.has(FlagDeferredVolume)
	ioQueue := d.ioQueue
	d.mu.Unlock()

	if deferred {
		// Port activation on a deferred-volume device is a round trip
		// to the IO thread (§4.5, §8 invariant 9): Send blocks until
		// runIO has called the driver and replied.
		reply, err := ioQueue.Send(ctx, ioSetPort, name)
		if err != nil {
			return err
		}
		if replyErr, _ := reply.(error); replyErr != nil {
			return replyErr
		}
	} else if setPort != nil {
		if err := setPort(name); err != nil {
			return err
		}
	}

	d.mu.Lock()
	d.activePort = port
	d.savePort = save
	d.mu.Unlock()
	return nil
}
