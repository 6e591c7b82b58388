// Package device implements the audio device core (§3, §4.1): the
// shared model for a source (capture device) and a sink (playback
// device), its state machine, its flat/non-flat volume algorithms, its
// ports, and the deferred hardware-volume scheduler.
//
// Per-device behavior that would otherwise be a table of function
// pointers (§9 "Dynamic dispatch") is the Driver struct of function
// fields: every one is individually optional and a nil one is skipped.
// Flags are not checked against which fields are set.
package device

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/pipelined/device/events"
	"github.com/pipelined/device/ioqueue"
	"github.com/pipelined/device/mixerpath"
	"github.com/pipelined/device/sample"
	"github.com/pipelined/device/volume"

	"pipelined.dev/signal"
)

// Flags are the independently toggleable capability bits from §3.
type Flags uint32

const (
	FlagLatencyQuery Flags = 1 << iota
	FlagDynamicLatency
	FlagHWVolume
	FlagHWMute
	FlagDeferredVolume
	FlagDecibelVolume
	FlagFlatVolume
	FlagSharedVolumeWithMaster
)

func (f Flags) has(bit Flags) bool { return f&bit != 0 }

// State is the device lifecycle state (§4.1's state machine).
type State int

const (
	StateInit State = iota
	StateIdle
	StateSuspended
	StateRunning
	StateUnlinked
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateIdle:
		return "idle"
	case StateSuspended:
		return "suspended"
	case StateRunning:
		return "running"
	case StateUnlinked:
		return "unlinked"
	}
	return "unknown"
}

// opened reports whether the state is one a driver considers "open"
// (able to move data), as distinct from suspended/init/unlinked.
func (s State) opened() bool { return s == StateIdle || s == StateRunning }

// AttachedStream is everything the device core needs from a source
// output or sink input to run the volume-propagation algorithms and
// lifecycle bookkeeping of §4.1/§4.3/§4.4, without importing either
// stream package (they import this one).
type AttachedStream interface {
	Index() uint32
	Volume() volume.ChannelVolume
	ChannelMap() sample.Map
	VolumeFactor() volume.Linear
	SetRealRatio(volume.ChannelVolume)
	SetReferenceRatio(volume.ChannelVolume)
	SetSoftVolume(volume.ChannelVolume)
	// OriginDevice is non-nil only for a stream whose device shares
	// volume with a master stream elsewhere in the tree.
	OriginDevice() *Device
	Corked() bool
	Suspend(suspended bool)
}

// Driver is the optional per-device implementation (§9). Every method
// is nil-able and a nil one is skipped; no flag makes one mandatory.
type Driver struct {
	SetVolume              func(real volume.ChannelVolume) (volume.ChannelVolume, error)
	GetVolume              func() (volume.ChannelVolume, error)
	SetMute                func(bool) error
	GetMute                func() (bool, error)
	SetPort                func(name string) error
	UpdateRate             func(rate signal.Frequency) error
	UpdateRequestedLatency func(latency int) error
	GetFormats             func() []sample.Spec
	SetState               func(State) error
	WriteHWVolume          func(volume.ChannelVolume) error
}

// NewData is the builder input for New (§3 "Lifecycle").
type NewData struct {
	Name          string
	Properties    map[string]string
	DriverName    string
	Direction     mixerpath.Direction
	Spec          sample.Spec
	AlternateRate signal.Frequency
	Flags         Flags
	Volume        volume.ChannelVolume // must be nil if Flags has FlagSharedVolumeWithMaster
	ShareRoot     *Device
	MonitorOf     *Device
	Driver        Driver
	Ports         []*Port
	BaseVolume    volume.Linear
	VolumeSteps   int
	Bus           events.Bus
	Logger        *log.Logger
}

// Device is the core object for a source or sink (§3).
type Device struct {
	mu sync.Mutex

	index      uint32
	name       string
	properties map[string]string
	driverName string

	direction     mixerpath.Direction
	spec          sample.Spec
	alternateRate signal.Frequency

	flags Flags
	state State

	suspendCause uint32

	referenceVolume volume.ChannelVolume
	realVolume      volume.ChannelVolume
	mute            bool
	saveVolume      bool
	saveMute        bool
	savePort        bool
	baseVolume      volume.Linear
	volumeSteps     int

	ports      map[string]*Port
	activePort *Port

	streams     []AttachedStream
	corkedCount int

	monitorOf *Device
	shareRoot *Device
	children  []*Device

	driver Driver

	pending pendingVolumeQueue

	mixerDirty atomic.Bool

	// ioQueue is the control-thread/IO-thread rendezvous (§5): every
	// driver call documented as requiring an IO-thread round trip
	// (set port, set mute, the synchronous half of set volume) is sent
	// here and handled by the runIO goroutine started in New.
	ioQueue  *ioqueue.Queue
	ioCancel context.CancelFunc

	bus events.Bus
	log *log.Logger
}

// Index is the stable numeric index assigned at registration (§3).
func (d *Device) Index() uint32 { return d.index }

// Name is the device's unique name.
func (d *Device) Name() string { return d.name }

// State returns the current lifecycle state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Direction reports whether this is a source (Capture) or sink
// (Playback) device.
func (d *Device) Direction() mixerpath.Direction { return d.direction }

// ReferenceVolume returns the device's reference volume: what the
// user asked for, independent of what hardware is currently applying
// (§3 "volume triple").
func (d *Device) ReferenceVolume() volume.ChannelVolume {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append(volume.ChannelVolume(nil), d.referenceVolume...)
}

// IsFlatVolume reports whether FlagFlatVolume is set.
func (d *Device) IsFlatVolume() bool { return d.flags.has(FlagFlatVolume) }

// Streams returns a snapshot of the device's attached streams.
func (d *Device) Streams() []AttachedStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]AttachedStream(nil), d.streams...)
}

// Spec returns the device's primary sample spec.
func (d *Device) Spec() sample.Spec {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.spec
}

// Flags returns the device's capability flags.
func (d *Device) Flags() Flags { return d.flags }

// New validates data and returns a device in StateInit (§4.1 `new`).
// It does not register the device into any registry; callers that
// maintain a name/index registry do so around New, matching the
// reference's separation of device construction from core
// registration.
func New(index uint32, data NewData) (*Device, error) {
	spec := data.Spec.WithDefaultMap()
	if !spec.Valid() {
		return nil, fmt.Errorf("device: invalid sample spec")
	}
	if data.Flags.has(FlagSharedVolumeWithMaster) && data.Volume != nil {
		return nil, fmt.Errorf("device: %w: a shared-volume device must not set an explicit volume", ErrInvalid)
	}
	if data.Flags.has(FlagSharedVolumeWithMaster) && data.ShareRoot == nil {
		return nil, fmt.Errorf("device: %w: FlagSharedVolumeWithMaster requires ShareRoot", ErrInvalid)
	}

	logger := data.Logger
	if logger == nil {
		logger = log.Default()
	}
	bus := data.Bus
	if bus == nil {
		bus = events.Nop{}
	}

	d := &Device{
		index:         index,
		name:          data.Name,
		properties:    data.Properties,
		driverName:    data.DriverName,
		direction:     data.Direction,
		spec:          spec,
		alternateRate: data.AlternateRate,
		flags:         data.Flags,
		state:         StateInit,
		driver:        data.Driver,
		monitorOf:     data.MonitorOf,
		shareRoot:     data.ShareRoot,
		baseVolume:    data.BaseVolume,
		volumeSteps:   data.VolumeSteps,
		bus:           bus,
		log:           logger,
		ports:         map[string]*Port{},
	}
	if d.shareRoot != nil {
		d.flags |= FlagSharedVolumeWithMaster
	} else {
		d.flags |= FlagDecibelVolume
	}

	for _, p := range data.Ports {
		d.ports[p.Name] = p
	}
	d.activePort = highestPriorityPort(d.ports)

	if d.shareRoot != nil {
		d.shareRoot.AttachSharingChild(d)
	}

	if data.Volume != nil {
		d.referenceVolume = append(volume.ChannelVolume(nil), data.Volume...)
	} else {
		d.referenceVolume = volume.NormVolume(spec.Channels)
	}
	d.realVolume = append(volume.ChannelVolume(nil), d.referenceVolume...)

	d.pending = newPendingVolumeQueue(8)

	d.ioQueue = ioqueue.New(8)
	ioCtx, cancel := context.WithCancel(context.Background())
	d.ioCancel = cancel
	go d.runIO(ioCtx)

	return d, nil
}

func highestPriorityPort(ports map[string]*Port) *Port {
	var best *Port
	for _, p := range ports {
		if best == nil || p.Priority > best.Priority {
			best = p
		}
	}
	return best
}

// Put finalizes volume initialization by copying the sharing root's
// volumes down and transitions INIT -> SUSPENDED|IDLE (§4.1 `put`).
func (d *Device) Put() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateInit {
		return fmt.Errorf("device: %w: put called outside INIT", ErrBadState)
	}
	if d.shareRoot != nil {
		root := d.rootLocked()
		d.referenceVolume = remapToDevice(root.referenceVolume, root.spec.Map, d.spec.Map)
		d.realVolume = remapToDevice(root.realVolume, root.spec.Map, d.spec.Map)
	}
	d.state = d.resolveOpenStateLocked()
	d.bus.Publish(events.Event{Kind: events.KindDevice, Change: events.ChangeNew, Index: d.index})
	return nil
}

func remapToDevice(v volume.ChannelVolume, from, to sample.Map) volume.ChannelVolume {
	return volume.Remap(v, from, to, nil)
}

func (d *Device) resolveOpenStateLocked() State {
	if d.suspendCause != 0 {
		return StateSuspended
	}
	return StateIdle
}

// rootLocked walks the sharing chain to its non-sharing root, capped at
// 100 hops (§8 invariant 1, §9 "Cyclic sharing graph").
func (d *Device) rootLocked() *Device {
	cur := d
	for i := 0; i < 100 && cur.shareRoot != nil; i++ {
		cur = cur.shareRoot
	}
	return cur
}

// Root returns the non-sharing root of d's sharing tree (itself if d
// does not share).
func (d *Device) Root() *Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rootLocked()
}

// Unlink removes the device from service: it is marked UNLINKED and
// every attached stream is handed to kill for the caller to dispose of
// (the registry itself, and any move-on-removal policy, are the
// caller's concern per §1's scoping of "mainloop/module loader" as an
// external collaborator).
func (d *Device) Unlink() []AttachedStream {
	d.mu.Lock()
	streams := d.streams
	d.streams = nil
	d.state = StateUnlinked
	d.driver = Driver{}
	cancel := d.ioCancel
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.bus.Publish(events.Event{Kind: events.KindDevice, Change: events.ChangeRemoved, Index: d.index})
	return streams
}

// Attach adds a stream to the device's ordered set and recomputes
// status/flat-volume (§3 "outputs/inputs: ordered set").
func (d *Device) Attach(s AttachedStream) error {
	d.mu.Lock()
	d.streams = append(d.streams, s)
	if s.Corked() {
		d.corkedCount++
	}
	d.updateStatusLocked()
	d.mu.Unlock()
	if d.flags.has(FlagFlatVolume) {
		return d.SetVolume(context.Background(), nil, false, false)
	}
	return nil
}

// Detach removes a stream from the device's ordered set.
func (d *Device) Detach(s AttachedStream) {
	d.mu.Lock()
	for i, cur := range d.streams {
		if cur.Index() == s.Index() {
			d.streams = append(d.streams[:i], d.streams[i+1:]...)
			if s.Corked() {
				d.corkedCount--
			}
			break
		}
	}
	d.updateStatusLocked()
	d.mu.Unlock()
}

// SetCorked updates the corked-stream accounting when a stream's cork
// state flips, recomputing RUNNING/IDLE (§4.1 `update_status`).
func (d *Device) SetCorked(wasCorked, isCorked bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case wasCorked && !isCorked:
		d.corkedCount--
	case !wasCorked && isCorked:
		d.corkedCount++
	}
	d.updateStatusLocked()
}

// UpdateStatus resolves the device to RUNNING if any non-corked stream
// is attached, else IDLE (§4.1).
func (d *Device) UpdateStatus() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updateStatusLocked()
}

func (d *Device) updateStatusLocked() {
	if d.state != StateRunning && d.state != StateIdle {
		return
	}
	if len(d.streams)-d.corkedCount > 0 {
		d.state = StateRunning
	} else {
		d.state = StateIdle
	}
}

// MarkMixerDirty flags that the mixer may have changed externally
// (§5's mixer dirty flag), e.g. a driver regaining access after a
// session suspend.
func (d *Device) MarkMixerDirty() { d.mixerDirty.Store(true) }

// ReconcileIfDirty consumes the dirty flag, if set, and re-applies the
// active port, volume and mute.
func (d *Device) ReconcileIfDirty(ctx context.Context) error {
	if !d.mixerDirty.CompareAndSwap(true, false) {
		return nil
	}
	d.mu.Lock()
	port := d.activePort
	mute := d.mute
	d.mu.Unlock()
	// SetPort and SetMute return early for an unchanged value, so the
	// port and mute are re-sent to the IO thread directly.
	if port != nil {
		if reply, err := d.ioQueue.Send(ctx, ioSetPort, port.Name); err != nil {
			return err
		} else if replyErr, _ := reply.(error); replyErr != nil {
			return replyErr
		}
	}
	if err := d.SetVolume(ctx, nil, false, d.saveVolume); err != nil {
		return err
	}
	reply, err := d.ioQueue.Send(ctx, ioSetMute, mute)
	if err != nil {
		return err
	}
	replyErr, _ := reply.(error)
	return replyErr
}
