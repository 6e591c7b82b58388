package mixerpath

import "fmt"

// PathSet is the collection of paths applicable to one device direction
// (§2, §4.2). Probe resolves every path against a live backend, then
// Condense removes redundant paths and synthesizes each surviving
// path's Settings.
type PathSet struct {
	Direction Direction
	Paths     []*Path
}

// Probe resolves every path in the set, dropping those whose required
// elements, jacks or required-any constraints fail (§4.2, §7).
func (ps *PathSet) Probe(backend Backend) error {
	for _, p := range ps.Paths {
		p.Direction = ps.Direction
		if err := p.Probe(backend); err != nil {
			return err
		}
		if !p.dropped {
			if err := p.ApplyZeroElements(ps.Direction); err != nil {
				return fmt.Errorf("mixerpath: applying fixed elements for path %q: %w", p.Name, err)
			}
		}
	}
	survivors := ps.Paths[:0]
	for _, p := range ps.Paths {
		if !p.dropped {
			survivors = append(survivors, p)
		}
	}
	ps.Paths = survivors
	return nil
}

// Condense removes any path that is a subset of another path in the set
// (§4.2, §8 invariant 8), then de-duplicates option names and
// synthesizes each surviving path's Settings.
func (ps *PathSet) Condense() {
	keep := make([]bool, len(ps.Paths))
	for i := range ps.Paths {
		keep[i] = true
	}
	for i, a := range ps.Paths {
		if !keep[i] {
			continue
		}
		for j, b := range ps.Paths {
			if i == j || !keep[j] {
				continue
			}
			if isSubsetPath(a, b) && !(isSubsetPath(b, a) && j < i) {
				keep[i] = false
				break
			}
		}
	}
	survivors := make([]*Path, 0, len(ps.Paths))
	for i, p := range ps.Paths {
		if keep[i] {
			survivors = append(survivors, p)
		}
	}
	ps.Paths = survivors

	for _, p := range ps.Paths {
		uniqueOptionNames(p)
		synthesizeSettings(p)
	}
}

// isSubsetPath reports whether a ⊆ b per §4.2: every jack in a exists in
// b with the same availability mapping, and walking elements pairwise by
// name, each a-element is a subset of its b-counterpart.
func isSubsetPath(a, b *Path) bool {
	bJacks := map[string]*Jack{}
	for _, j := range b.Jacks {
		bJacks[j.Name] = j
	}
	for _, aj := range a.Jacks {
		bj, ok := bJacks[aj.Name]
		if !ok {
			return false
		}
		if aj.StatePlugged != bj.StatePlugged || aj.StateUnplugged != bj.StateUnplugged {
			return false
		}
	}

	bElements := map[string]*Element{}
	for _, e := range b.Elements {
		bElements[e.Name] = e
	}
	for _, ae := range a.Elements {
		be, ok := bElements[ae.Name]
		if !ok {
			return false
		}
		if !elementSubset(ae, be) {
			return false
		}
	}
	return true
}

func elementSubset(a, b *Element) bool {
	if !volumeUseSubset(a, b) {
		return false
	}
	if !switchUseSubset(a, b) {
		return false
	}
	return optionsSubset(a, b)
}

func volumeUseSubset(a, b *Element) bool {
	switch a.VolumeUse {
	case VolumeIgnore:
		return true
	case VolumeConstant:
		return b.VolumeUse == VolumeConstant
	default:
		if b.VolumeUse != VolumeMerge {
			return a.VolumeUse == b.VolumeUse
		}
		if a.VolumeUse == VolumeMerge {
			if !overrideMapsEqual(a, b) {
				return false
			}
		}
		aMax := a.maxDB
		if a.HasVolumeLimit {
			if limitDB, ok := dbAtLimit(a, a.effectiveDir); ok && limitDB < aMax {
				aMax = limitDB
			}
		}
		bMax := b.maxDB
		if b.HasVolumeLimit {
			if limitDB, ok := dbAtLimit(b, b.effectiveDir); ok && limitDB < bMax {
				bMax = limitDB
			}
		}
		return aMax <= bMax
	}
}

func overrideMapsEqual(a, b *Element) bool {
	if len(a.OverrideMap) != len(b.OverrideMap) {
		return false
	}
	for k, v := range a.OverrideMap {
		if bv, ok := b.OverrideMap[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func switchUseSubset(a, b *Element) bool {
	switch a.SwitchUse {
	case SwitchIgnore:
		return true
	case SwitchOn, SwitchOff:
		if b.SwitchUse == SwitchSelect {
			return hasMatchingOption(a, b)
		}
		return a.SwitchUse == b.SwitchUse
	default:
		return a.SwitchUse == b.SwitchUse
	}
}

func hasMatchingOption(a, b *Element) bool {
	// a declares ON/OFF rather than a named option; treat it as a
	// subset of b's SELECT only if b exposes an option at all.
	return len(b.options) > 0
}

func optionsSubset(a, b *Element) bool {
	bNames := map[string]bool{}
	for _, o := range b.options {
		bNames[o.AlsaName] = true
	}
	for _, o := range a.options {
		if !bNames[o.AlsaName] {
			return false
		}
	}
	return true
}

// uniqueOptionNames appends "-N" to option tags that collide within a
// path, after condensation (§4.2).
func uniqueOptionNames(p *Path) {
	seen := map[string]int{}
	for _, el := range p.Elements {
		for _, opt := range el.options {
			count := seen[opt.Name]
			seen[opt.Name] = count + 1
			if count > 0 {
				opt.Name = fmt.Sprintf("%s-%d", opt.Name, count)
			}
		}
	}
}

// synthesizeSettings builds the Cartesian product of every SELECT
// element's present options, one Setting per combination (§4.2).
func synthesizeSettings(p *Path) {
	var selectElements []*Element
	for _, el := range p.Elements {
		if !el.present {
			continue
		}
		if el.EnumUse == EnumSelect || el.SwitchUse == SwitchSelect {
			var present []*Option
			for _, o := range el.options {
				if o.present {
					present = append(present, o)
				}
			}
			if len(present) > 0 {
				selectElements = append(selectElements, el)
				el.options = present
			}
		}
	}
	if len(selectElements) == 0 {
		p.Settings = nil
		return
	}
	combos := []map[string]string{{}}
	descs := []string{""}
	for _, el := range selectElements {
		var next []map[string]string
		var nextDescs []string
		for ci, combo := range combos {
			for _, opt := range el.options {
				nc := make(map[string]string, len(combo)+1)
				for k, v := range combo {
					nc[k] = v
				}
				nc[el.Name] = opt.Name
				next = append(next, nc)
				d := descs[ci]
				if d != "" {
					d += " / "
				}
				d += opt.Name
				nextDescs = append(nextDescs, d)
			}
		}
		combos = next
		descs = nextDescs
	}
	settings := make([]*Setting, 0, len(combos))
	for i, combo := range combos {
		name := settingName(combo, selectElements)
		settings = append(settings, &Setting{
			Name:        name,
			Description: descs[i],
			Options:     combo,
		})
	}
	p.Settings = settings
}

func settingName(combo map[string]string, elements []*Element) string {
	name := ""
	for _, el := range elements {
		if name != "" {
			name += "+"
		}
		name += combo[el.Name]
	}
	return name
}
