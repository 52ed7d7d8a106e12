package transform

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/gimbalkit/gimbal"
	"github.com/gimbalkit/gimbal/prefs"
)

// flipPairs lists the component indices of each axis pair in the order
// the flips are applied: xy, then xz, then yz.
var flipPairs = [3][2]int{{0, 1}, {0, 2}, {1, 2}}

// ApplyPrefs remaps one motion sample through the user preferences:
// sensitivity multiply, per-axis inversion, then sequential axis-pair
// swaps. Translation and rotation are adjusted independently; the input
// event is not modified.
func ApplyPrefs(ev gimbal.MotionEvent, cfg prefs.Config) gimbal.MotionEvent {
	out := ev
	out.Translation = applyAxisConfig(ev.Translation, cfg.Translate)
	out.Rotation = applyAxisConfig(ev.Rotation, cfg.Rotate)
	return out
}

func applyAxisConfig(v mgl64.Vec3, cfg prefs.AxisConfig) mgl64.Vec3 {
	for i := range v {
		v[i] *= cfg.Sensitivity
	}
	for i, invert := range cfg.Invert {
		if invert {
			v[i] = -v[i]
		}
	}
	// Sequential by contract: a component moved by an earlier pair is
	// moved again when a later enabled pair includes its new slot.
	for p, flip := range cfg.Flip {
		if flip {
			a, b := flipPairs[p][0], flipPairs[p][1]
			v[a], v[b] = v[b], v[a]
		}
	}
	return v
}
