package device

import "github.com/pipelined/device/mixerpath"

// Availability is a port's jack-derived plug state (§4.5).
type Availability int

const (
	AvailabilityUnknown Availability = iota
	AvailabilityYes
	AvailabilityNo
)

// Port is a device port: a named, prioritized binding to a mixer path
// and (optionally) one of its settings (§4.5).
type Port struct {
	Name         string
	Description  string
	Direction    mixerpath.Direction
	Priority     int
	Path         *mixerpath.Path
	Setting      string
	Availability Availability
	LatencyOffset int64
}

// SetAvailability updates the port's jack-derived plug state (§4.5
// "Jack state").
func (p *Port) SetAvailability(a Availability) { p.Availability = a }

// Ports returns the device's configured ports, keyed by name.
func (d *Device) Ports() map[string]*Port {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]*Port, len(d.ports))
	for k, v := range d.ports {
		out[k] = v
	}
	return out
}

// ActivePort returns the currently active port, or nil if the device
// has none configured.
func (d *Device) ActivePort() *Port {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.activePort
}
