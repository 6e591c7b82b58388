package device

import (
	"context"
	"fmt"

	"github.com/pipelined/device/ioqueue"
	"github.com/pipelined/device/volume"
)

// IO message kinds exchanged between the control thread and this
// device's IO-thread goroutine (§5).
const (
	ioSetPort   = "SET_PORT"
	ioSetMute   = "SET_MUTE"
	ioSetVolume = "SET_VOLUME"
)

// runIO is the device's IO thread (§5, §9 "Callback-driven IO loop"):
// it owns the driver calls that must be made from IO-thread context,
// draining d.ioQueue strictly in FIFO order until ctx is canceled
// (normally from Unlink).
func (d *Device) runIO(ctx context.Context) {
	for {
		msg, ok := d.ioQueue.Drain(ctx)
		if !ok {
			return
		}
		msg.Reply(d.handleIOMessage(msg))
	}
}

func (d *Device) handleIOMessage(msg ioqueue.Message) error {
	d.mu.Lock()
	driver := d.driver
	d.mu.Unlock()

	switch msg.Kind {
	case ioSetPort:
		if driver.SetPort == nil {
			return nil
		}
		name, _ := msg.Value.(string)
		return driver.SetPort(name)
	case ioSetMute:
		if driver.SetMute == nil {
			return nil
		}
		mute, _ := msg.Value.(bool)
		return driver.SetMute(mute)
	case ioSetVolume:
		if driver.SetVolume == nil {
			return nil
		}
		v, _ := msg.Value.(volume.ChannelVolume)
		applied, err := driver.SetVolume(v)
		if err != nil {
			return err
		}
		d.mu.Lock()
		d.realVolume = applied
		d.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("device: %w: unhandled io message %q", ErrNotImplemented, msg.Kind)
	}
}
