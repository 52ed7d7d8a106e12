package transform

import "github.com/go-gl/mathgl/mgl64"

// ViewAligned builds the orientation the motion axes are expressed in:
// the active view's rotation with disabled axes replaced by the global
// (identity) angle. use selects per Euler axis whether the view or the
// world frame wins. The result carries no translation.
func ViewAligned(view mgl64.Mat4, use [3]bool) mgl64.Mat4 {
	r := NormalizedRotation(WithTranslation(view, mgl64.Vec3{}))
	eul := Mat3ToEuler(r)
	for i, enabled := range use {
		if !enabled {
			eul[i] = 0
		}
	}
	return EulerToMat4(eul)
}
