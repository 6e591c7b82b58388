// Package padriver wires a real audio backend to the device core
// through github.com/gordonklaus/portaudio, matching the "driver
// object" pattern §9 asks for: a concrete device.Driver plus a small
// IO pump that takes the place of the out-of-scope hardware binding
// (§1). It gives the module at least one non-trait driver, the way
// samoyed wires its TNC connection behind a plain struct rather than
// leaving only an interface.
//
// The pump is deliberately thin: portaudio has no mixer-control
// surface, so it never implements mixerpath.Backend. It owns only
// capture/playback callbacks and the rate-switch hook the device core
// drives through device.Driver.
package padriver

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"

	"github.com/pipelined/device/broadcast"
	"github.com/pipelined/device/device"
	"github.com/pipelined/device/mixerbus"

	"pipelined.dev/pipe"
	"pipelined.dev/pipe/mutable"
	"pipelined.dev/signal"
)

// Config names which portaudio device to open and at what rate;
// UseDefault selects the portaudio default for the given direction,
// otherwise DeviceIndex indexes portaudio.Devices().
type Config struct {
	DeviceIndex     int
	UseDefault      bool
	Channels        int
	SampleRate      signal.Frequency
	FramesPerBuffer int
	Logger          *log.Logger
}

// CaptureDriver owns a portaudio input stream and fans every captured
// block out through a broadcast.Hub, standing in for "hardware capture
// -> source.post(chunk)" (§2's capture data flow).
type CaptureDriver struct {
	mu     sync.Mutex
	cfg    Config
	stream *portaudio.Stream
	hub    *broadcast.Hub
	buf    []float32
	log    *log.Logger
	dev    *device.Device
}

// BindDevice associates this driver with the device.Device it feeds,
// so a transient stream loss can mark the device's mixer dirty and a
// later successful read can reconcile it (§5's mixer dirty flag).
func (c *CaptureDriver) BindDevice(d *device.Device) { c.dev = d }

// NewCaptureDriver records cfg for a capture stream; the portaudio
// input device is resolved and the stream opened by Open.
func NewCaptureDriver(cfg Config, hub *broadcast.Hub) (*CaptureDriver, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = 1024
	}
	return &CaptureDriver{cfg: cfg, hub: hub, log: logger}, nil
}

// Open starts the underlying portaudio stream; call before the device
// transitions out of StateInit.
func (c *CaptureDriver) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	dev, err := inputDevice(c.cfg)
	if err != nil {
		return err
	}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: c.cfg.Channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(c.cfg.SampleRate),
		FramesPerBuffer: c.cfg.FramesPerBuffer,
	}
	c.buf = make([]float32, c.cfg.FramesPerBuffer*c.cfg.Channels)
	stream, err := portaudio.OpenStream(params, c.buf)
	if err != nil {
		return fmt.Errorf("padriver: open capture stream: %w", err)
	}
	c.stream = stream
	return stream.Start()
}

// Close stops and releases the portaudio stream.
func (c *CaptureDriver) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return nil
	}
	err := c.stream.Stop()
	if cerr := c.stream.Close(); err == nil {
		err = cerr
	}
	c.stream = nil
	return err
}

// Run blocks, reading one buffer per iteration and posting it to the
// hub, until ctx is cancelled. Intended to run on its own goroutine as
// the IO thread §5 describes.
func (c *CaptureDriver) Run(ctx context.Context) error {
	alloc := signal.Allocator{Channels: c.cfg.Channels, Length: c.cfg.FramesPerBuffer, Capacity: c.cfg.FramesPerBuffer}
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		c.mu.Lock()
		stream := c.stream
		c.mu.Unlock()
		if stream == nil {
			return fmt.Errorf("padriver: capture stream not open")
		}
		if err := stream.Read(); err != nil {
			c.log.Warn("padriver: capture read failed", "error", err)
			if c.dev != nil {
				c.dev.MarkMixerDirty()
			}
			continue
		}
		if c.dev != nil {
			if err := c.dev.ReconcileIfDirty(ctx); err != nil {
				c.log.Warn("padriver: reconcile after resume failed", "error", err)
			}
		}
		out := alloc.Float64()
		writeInterleavedFloat32(c.buf, out)
		c.hub.Post(out)
	}
}

// Source returns a pipe.SourceAllocatorFunc wrapping this capture
// stream, so it can sit in a pipe.Line instead of being driven through
// Run directly (§9's "pipe-style source/sink allocator" adapter).
func (c *CaptureDriver) Source() pipe.SourceAllocatorFunc {
	return func(_ mutable.Context, bufferSize int) (pipe.Source, error) {
		if err := c.Open(); err != nil {
			return pipe.Source{}, err
		}
		return pipe.Source{
			Output: pipe.SignalProperties{
				Channels:   c.cfg.Channels,
				SampleRate: c.cfg.SampleRate,
			},
			SourceFunc: func(out signal.Floating) (int, error) {
				c.mu.Lock()
				stream := c.stream
				c.mu.Unlock()
				if stream == nil {
					return 0, fmt.Errorf("padriver: capture stream not open")
				}
				if err := stream.Read(); err != nil {
					return 0, err
				}
				writeInterleavedFloat32(c.buf, out)
				return out.Length(), nil
			},
		}, nil
	}
}

// Driver returns the device.Driver hooks this capture stream can
// service: a rate switch reopens the stream at the new rate.
func (c *CaptureDriver) Driver() device.Driver {
	return device.Driver{
		UpdateRate: func(rate signal.Frequency) error {
			c.mu.Lock()
			c.cfg.SampleRate = rate
			c.mu.Unlock()
			if err := c.Close(); err != nil {
				return err
			}
			return c.Open()
		},
	}
}

// PlaybackDriver owns a portaudio output stream, pulling mixed frames
// from a mixerbus.Bus and writing them out, standing in for "mixer sums
// into hardware buffer" (§2's playback data flow).
type PlaybackDriver struct {
	mu     sync.Mutex
	cfg    Config
	stream *portaudio.Stream
	bus    *mixerbus.Bus
	buf    []float32
	log    *log.Logger
	dev    *device.Device
}

// BindDevice associates this driver with the device.Device it feeds,
// mirroring CaptureDriver.BindDevice.
func (p *PlaybackDriver) BindDevice(d *device.Device) { p.dev = d }

// NewPlaybackDriver records cfg for a playback stream; the portaudio
// output device is resolved by Open.
func NewPlaybackDriver(cfg Config, bus *mixerbus.Bus) (*PlaybackDriver, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = 1024
	}
	return &PlaybackDriver{cfg: cfg, bus: bus, log: logger}, nil
}

// Open starts the underlying portaudio output stream.
func (p *PlaybackDriver) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	dev, err := outputDevice(p.cfg)
	if err != nil {
		return err
	}
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: p.cfg.Channels,
			Latency:  dev.DefaultLowOutputLatency,
		},
		SampleRate:      float64(p.cfg.SampleRate),
		FramesPerBuffer: p.cfg.FramesPerBuffer,
	}
	p.buf = make([]float32, p.cfg.FramesPerBuffer*p.cfg.Channels)
	stream, err := portaudio.OpenStream(params, p.buf)
	if err != nil {
		return fmt.Errorf("padriver: open playback stream: %w", err)
	}
	p.stream = stream
	return stream.Start()
}

// Close stops and releases the portaudio stream.
func (p *PlaybackDriver) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return nil
	}
	err := p.stream.Stop()
	if cerr := p.stream.Close(); err == nil {
		err = cerr
	}
	p.stream = nil
	return err
}

// Run drains the bus's summed-frame channel and writes each one to
// portaudio until ctx is cancelled or the bus closes its channel.
func (p *PlaybackDriver) Run(ctx context.Context) error {
	frames := p.bus.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case buf, ok := <-frames:
			if !ok {
				return nil
			}
			interleaveFloat32(buf, p.buf)
			p.mu.Lock()
			stream := p.stream
			p.mu.Unlock()
			if stream == nil {
				return fmt.Errorf("padriver: playback stream not open")
			}
			if err := stream.Write(); err != nil {
				p.log.Warn("padriver: playback write failed", "error", err)
				if p.dev != nil {
					p.dev.MarkMixerDirty()
				}
				continue
			}
			if p.dev != nil {
				if err := p.dev.ReconcileIfDirty(ctx); err != nil {
					p.log.Warn("padriver: reconcile after resume failed", "error", err)
				}
			}
		}
	}
}

// Sink returns a pipe.SinkAllocatorFunc wrapping this playback stream,
// the Sink-side counterpart to CaptureDriver.Source.
func (p *PlaybackDriver) Sink() pipe.SinkAllocatorFunc {
	return func(bufferSize int, props pipe.SignalProperties) (pipe.Sink, error) {
		if err := p.Open(); err != nil {
			return pipe.Sink{}, err
		}
		return pipe.Sink{
			SinkFunc: func(in signal.Floating) error {
				interleaveFloat32(in, p.buf)
				p.mu.Lock()
				stream := p.stream
				p.mu.Unlock()
				if stream == nil {
					return fmt.Errorf("padriver: playback stream not open")
				}
				return stream.Write()
			},
			FlushFunc: func(context.Context) error {
				return p.Close()
			},
		}, nil
	}
}

// Driver returns the device.Driver hooks this playback stream can
// service.
func (p *PlaybackDriver) Driver() device.Driver {
	return device.Driver{
		UpdateRate: func(rate signal.Frequency) error {
			p.mu.Lock()
			p.cfg.SampleRate = rate
			p.mu.Unlock()
			if err := p.Close(); err != nil {
				return err
			}
			return p.Open()
		},
	}
}

func inputDevice(cfg Config) (*portaudio.DeviceInfo, error) {
	if cfg.UseDefault {
		return portaudio.DefaultInputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	if cfg.DeviceIndex < 0 || cfg.DeviceIndex >= len(devices) {
		return nil, fmt.Errorf("padriver: input device index %d out of range", cfg.DeviceIndex)
	}
	return devices[cfg.DeviceIndex], nil
}

func outputDevice(cfg Config) (*portaudio.DeviceInfo, error) {
	if cfg.UseDefault {
		return portaudio.DefaultOutputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	if cfg.DeviceIndex < 0 || cfg.DeviceIndex >= len(devices) {
		return nil, fmt.Errorf("padriver: output device index %d out of range", cfg.DeviceIndex)
	}
	return devices[cfg.DeviceIndex], nil
}

// writeInterleavedFloat32 copies a portaudio interleaved capture buffer
// into a signal.Floating, sample by sample; both use the same
// (frame, channel) interleaving so no reshaping is needed beyond the
// float32->float64 widening.
func writeInterleavedFloat32(src []float32, dst signal.Floating) {
	n := dst.Len()
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		dst.SetSample(i, float64(src[i]))
	}
}

// interleaveFloat32 writes a signal.Floating buffer into dst in
// portaudio's interleaved layout, zero-padding any frames the buffer
// doesn't cover.
func interleaveFloat32(buf signal.Floating, dst []float32) {
	n := buf.Len()
	for i := range dst {
		if i < n {
			dst[i] = float32(buf.Sample(i))
		} else {
			dst[i] = 0
		}
	}
}
