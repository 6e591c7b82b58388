package mixerpath

// Availability mirrors the port availability tri-state driven by jack
// events (§4.5, §GLOSSARY).
type Availability int

const (
	AvailableUnknown Availability = iota
	AvailableYes
	AvailableNo
)

// Jack is a plug-detect control bound to a path (§3, §6 `[Jack <name>]`).
type Jack struct {
	Name string

	// StatePlugged/StateUnplugged map the hardware's plugged/unplugged
	// signal onto port availability; most jacks map plugged->yes,
	// unplugged->no, but some (e.g. a jack that only detects removal)
	// map one side to unknown.
	StatePlugged   Availability
	StateUnplugged Availability

	Required       Required
	RequiredAny    Required
	RequiredAbsent Required

	present bool
	handle  JackHandle
}

// Present reports whether the jack resolved to a live hardware control.
func (j *Jack) Present() bool { return j.present }

// Probe resolves the jack's name against backend.
func (j *Jack) Probe(backend Backend) error {
	h, ok := backend.JackByName(j.Name)
	if !ok {
		j.present = false
		if j.Required != RequiredIgnore {
			return &probeErr{msg: "mixerpath: required jack " + j.Name + " absent"}
		}
		return nil
	}
	j.handle = h
	j.present = true
	return nil
}

// CurrentAvailability reads the live jack state and maps it through
// StatePlugged/StateUnplugged.
func (j *Jack) CurrentAvailability() Availability {
	if !j.present {
		return AvailableUnknown
	}
	if j.handle.Plugged() {
		return j.StatePlugged
	}
	return j.StateUnplugged
}

// Watch subscribes fn to plug/unplug transitions, translated to
// Availability; it is a no-op if the jack is absent.
func (j *Jack) Watch(fn func(Availability)) (cancel func()) {
	if !j.present {
		return func() {}
	}
	return j.handle.Watch(func(plugged bool) {
		if plugged {
			fn(j.StatePlugged)
		} else {
			fn(j.StateUnplugged)
		}
	})
}
