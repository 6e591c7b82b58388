package mixerpath

import (
	"fmt"
	"sort"

	"github.com/pipelined/device/volume"
)

// DBFix overrides a control's native dB reporting with a configured
// table of (step, millibel) points, linearly interpolated between them
// (§6, `[DecibelFix <alsa-name>]`). Some hardware reports dB incorrectly
// or not at all; a dB-fix lets the path description supply the truth.
type DBFix struct {
	// points are sorted by Step, strictly monotone in MilliBel as
	// required by the config format.
	points []dbPoint
}

type dbPoint struct {
	Step    int
	MilliBel int
}

// NewDBFix builds a fix table from (step, millibel) pairs. Returns an
// error if fewer than two points are given or the millibel values are
// not strictly monotone in step order.
func NewDBFix(pairs map[int]int) (*DBFix, error) {
	if len(pairs) < 2 {
		return nil, fmt.Errorf("mixerpath: dB fix needs at least two points, got %d", len(pairs))
	}
	points := make([]dbPoint, 0, len(pairs))
	for step, mb := range pairs {
		points = append(points, dbPoint{Step: step, MilliBel: mb})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Step < points[j].Step })
	increasing := points[1].MilliBel > points[0].MilliBel
	for i := 1; i < len(points); i++ {
		if increasing && points[i].MilliBel <= points[i-1].MilliBel {
			return nil, fmt.Errorf("mixerpath: dB fix values must be strictly monotone")
		}
		if !increasing && points[i].MilliBel >= points[i-1].MilliBel {
			return nil, fmt.Errorf("mixerpath: dB fix values must be strictly monotone")
		}
	}
	return &DBFix{points: points}, nil
}

// MinStep and MaxStep are the step range the fix table covers; the
// element's hardware range is clamped to this range during probing.
func (f *DBFix) MinStep() int { return f.points[0].Step }
func (f *DBFix) MaxStep() int { return f.points[len(f.points)-1].Step }

// MinDB and MaxDB are the millibel values at the fix's step extremes.
func (f *DBFix) MinDB() int { return f.points[0].MilliBel }
func (f *DBFix) MaxDB() int { return f.points[len(f.points)-1].MilliBel }

// DBAtStep interpolates the millibel value for an arbitrary step,
// clamping to the table's range.
func (f *DBFix) DBAtStep(step int) int {
	if step <= f.points[0].Step {
		return f.points[0].MilliBel
	}
	if step >= f.points[len(f.points)-1].Step {
		return f.points[len(f.points)-1].MilliBel
	}
	for i := 1; i < len(f.points); i++ {
		if step <= f.points[i].Step {
			lo, hi := f.points[i-1], f.points[i]
			frac := float64(step-lo.Step) / float64(hi.Step-lo.Step)
			return lo.MilliBel + int(frac*float64(hi.MilliBel-lo.MilliBel))
		}
	}
	return f.points[len(f.points)-1].MilliBel
}

// StepAtDB is the inverse of DBAtStep: the smallest step whose
// interpolated dB is >= target when mode is RoundUp, the largest step
// whose dB is <= target when RoundDown, or whichever of the two
// surrounding steps is numerically closer when RoundNearest (used for
// deferred-volume devices per §4.2's "nearest selectable dB").
func (f *DBFix) StepAtDB(targetMB int, mode RoundMode) int {
	if targetMB <= f.points[0].MilliBel {
		return f.points[0].Step
	}
	if targetMB >= f.points[len(f.points)-1].MilliBel {
		return f.points[len(f.points)-1].Step
	}
	for i := 1; i < len(f.points); i++ {
		lo, hi := f.points[i-1], f.points[i]
		if targetMB <= hi.MilliBel {
			// Invert the linear interpolation between lo and hi exactly.
			num := (targetMB - lo.MilliBel) * (hi.Step - lo.Step)
			den := hi.MilliBel - lo.MilliBel
			down := lo.Step + num/den
			up := down
			if num%den != 0 {
				up++
			}
			switch mode {
			case RoundUp:
				return up
			case RoundDown:
				return down
			default:
				if targetMB-f.DBAtStep(down) <= f.DBAtStep(up)-targetMB {
					return down
				}
				return up
			}
		}
	}
	return f.points[len(f.points)-1].Step
}

// ToLinear converts a millibel value to a linear gain via volume.FromDB,
// the shared dB<->linear conversion.
func ToLinear(milliBel int) volume.Linear {
	return volume.FromDB(float64(milliBel) / 100)
}

// ToMilliBel is the inverse of ToLinear.
func ToMilliBel(l volume.Linear) int {
	return int(l.DB() * 100)
}
