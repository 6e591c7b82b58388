// Command devicectl is a small inspection and demo tool for the device
// core: it resolves the bundled mixer-path and profile-set fixtures
// against an in-memory backend and drives the volume algorithms
// directly, the way samoyed's appserver resolves its flags and runs
// one network loop, just against this module's pieces instead of a
// TNC connection.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/pipelined/device/config"
	"github.com/pipelined/device/device"
	"github.com/pipelined/device/mixerpath"
	"github.com/pipelined/device/sample"
	"github.com/pipelined/device/sourceoutput"
	"github.com/pipelined/device/volume"
)

func main() {
	var verbose = pflag.BoolP("verbose", "v", false, "Enable debug logging.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: devicectl [options] <probe|dump|volume-demo>\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help || len(pflag.Args()) != 1 {
		pflag.Usage()
		if *help {
			os.Exit(0)
		}
		os.Exit(1)
	}

	logger := log.Default()
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	var err error
	switch pflag.Arg(0) {
	case "probe":
		err = runProbe(logger)
	case "dump":
		err = runDump()
	case "volume-demo":
		err = runVolumeDemo(logger)
	default:
		pflag.Usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "devicectl: %v\n", err)
		os.Exit(1)
	}
}

// runProbe resolves the bundled output/headphone/input path fixtures
// against the in-memory demo backend, condenses each direction's path
// set and prints the port bindings that survive (§6).
func runProbe(logger *log.Logger) error {
	backend := newDemoBackend()

	playback, err := parsePaths(mixerpath.Playback, demoPathOutput, demoPathHeadphones)
	if err != nil {
		return err
	}
	capture, err := parsePaths(mixerpath.Capture, demoPathInput)
	if err != nil {
		return err
	}

	for _, ps := range []*mixerpath.PathSet{playback, capture} {
		if err := ps.Probe(backend); err != nil {
			return fmt.Errorf("probe: %w", err)
		}
		ps.Condense()
	}

	printPorts("playback", playback, logger)
	printPorts("capture", capture, logger)
	return nil
}

func parsePaths(dir mixerpath.Direction, sources ...string) (*mixerpath.PathSet, error) {
	ps := &mixerpath.PathSet{Direction: dir}
	for _, src := range sources {
		p, err := config.ParsePath(src)
		if err != nil {
			return nil, fmt.Errorf("parse path: %w", err)
		}
		ps.Paths = append(ps.Paths, p)
	}
	return ps, nil
}

func printPorts(label string, ps *mixerpath.PathSet, logger *log.Logger) {
	for _, p := range ps.Paths {
		if p.Dropped() {
			logger.Debug("path dropped during probe", "direction", label, "path", p.Name)
			continue
		}
		for _, b := range p.PortBindings() {
			fmt.Printf("%-10s %-28s %s\n", label, b.Name, b.Description)
		}
	}
}

// dumpDoc is the yaml.v3-serialized shape `dump` emits: just enough of
// the parsed profile set to show the config layer round-tripping
// through a structured encoder, the way a packaged build would expose
// its resolved configuration for support bundles.
type dumpDoc struct {
	AutoProfiles bool              `yaml:"auto_profiles"`
	Mappings     map[string]string `yaml:"mappings"`
	Profiles     map[string]string `yaml:"profiles"`
}

// runDump parses the bundled profile-set fixture and prints it back out
// as YAML.
func runDump() error {
	set, err := config.ParseProfileSet(demoProfileSet)
	if err != nil {
		return fmt.Errorf("parse profile set: %w", err)
	}

	doc := dumpDoc{
		AutoProfiles: set.AutoProfiles,
		Mappings:     map[string]string{},
		Profiles:     map[string]string{},
	}
	for name, m := range set.Mappings {
		doc.Mappings[name] = m.Description
	}
	for name, p := range set.Profiles {
		doc.Profiles[name] = p.Description
	}

	enc := yaml.NewEncoder(os.Stdout)
	defer enc.Close()
	return enc.Encode(doc)
}

// runVolumeDemo replays the flat-volume scenario: a stereo source
// device in flat-volume mode gets two source outputs attached at
// different volumes, and the device's real volume and each stream's
// real_ratio are printed before and after the second attach (§4.1).
func runVolumeDemo(logger *log.Logger) error {
	spec := sample.Spec{Rate: 44100, Channels: 2}.WithDefaultMap()

	src, err := device.New(0, device.NewData{
		Name:      "demo-source",
		Direction: mixerpath.Capture,
		Spec:      spec,
		Flags:     device.FlagFlatVolume,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("new device: %w", err)
	}
	if err := src.Put(); err != nil {
		return fmt.Errorf("put device: %w", err)
	}

	ctx := context.Background()

	outX, err := sourceoutput.New(1, src, spec, 0, 0)
	if err != nil {
		return fmt.Errorf("new source output X: %w", err)
	}
	outX.SetVolume(volume.ChannelVolume{volume.Norm / 2, volume.Norm / 2})
	if err := src.SetVolume(ctx, nil, false, false); err != nil {
		return fmt.Errorf("recompute after X: %w", err)
	}
	if err := printVolumeState(ctx, src, "after attaching X", outX); err != nil {
		return err
	}

	outY, err := sourceoutput.New(2, src, spec, 0, 0)
	if err != nil {
		return fmt.Errorf("new source output Y: %w", err)
	}
	outY.SetVolume(volume.ChannelVolume{
		volume.Norm / 5, // 0.2 of Norm
		volume.Norm,
	})
	if err := src.SetVolume(ctx, nil, false, false); err != nil {
		return fmt.Errorf("recompute after Y: %w", err)
	}
	return printVolumeState(ctx, src, "after attaching Y", outX, outY)
}

func printVolumeState(ctx context.Context, d *device.Device, label string, streams ...*sourceoutput.SourceOutput) error {
	real, err := d.GetVolume(ctx, false)
	if err != nil {
		return fmt.Errorf("get volume: %w", err)
	}
	fmt.Printf("%s: device real_volume=%s\n", label, formatVolume(real))
	for i, s := range streams {
		fmt.Printf("  stream[%d] real_ratio=%s\n", i, formatVolume(s.RealRatio()))
	}
	return nil
}

func formatVolume(v volume.ChannelVolume) string {
	out := "["
	for i, l := range v {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%.3f", float64(l)/float64(volume.Norm))
	}
	return out + "]"
}
