// Package transform turns preference-adjusted motion samples into
// incremental pose updates for a host entity: preference remapping, view
// alignment, the gesture session state machine and the write-through
// matrix memo that shields the pipeline from host read-back drift.
//
// All matrices are mgl64 column-major with column vectors; rotations use
// the XYZ Euler convention (R = Rz·Ry·Rx) throughout, matching the pose
// conventions of the host editors this feeds.
package transform

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// eulerEps guards the gimbal-degenerate branch of the decomposition.
const eulerEps = 1e-6

// EulerToMat3 builds the rotation matrix for XYZ Euler angles.
func EulerToMat3(e mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Rotate3DZ(e[2]).Mul3(mgl64.Rotate3DY(e[1])).Mul3(mgl64.Rotate3DX(e[0]))
}

// EulerToMat4 is EulerToMat3 lifted to a homogeneous matrix.
func EulerToMat4(e mgl64.Vec3) mgl64.Mat4 {
	return EulerToMat3(e).Mat4()
}

// Mat3ToEuler decomposes a normalized rotation matrix into XYZ Euler
// angles. Away from the y = ±π/2 degeneracy two decompositions exist;
// the one with the smaller total angle is returned so repeated
// compose/decompose round trips stay stable.
func Mat3ToEuler(m mgl64.Mat3) mgl64.Vec3 {
	// Column-major: element (row r, col c) is m[c*3+r].
	m00, m10, m20 := m[0], m[1], m[2]
	_, m11, m21 := m[3], m[4], m[5]
	m12, m22 := m[7], m[8]

	cy := math.Hypot(m00, m10)
	if cy <= eulerEps {
		return mgl64.Vec3{math.Atan2(-m12, m11), math.Atan2(-m20, cy), 0}
	}

	e1 := mgl64.Vec3{math.Atan2(m21, m22), math.Atan2(-m20, cy), math.Atan2(m10, m00)}
	e2 := mgl64.Vec3{math.Atan2(-m21, -m22), math.Atan2(-m20, -cy), math.Atan2(-m10, -m00)}
	if totalAngle(e2) < totalAngle(e1) {
		return e2
	}
	return e1
}

func totalAngle(e mgl64.Vec3) float64 {
	return math.Abs(e[0]) + math.Abs(e[1]) + math.Abs(e[2])
}

// Translation extracts the translation column of a pose matrix.
func Translation(m mgl64.Mat4) mgl64.Vec3 {
	return mgl64.Vec3{m[12], m[13], m[14]}
}

// WithTranslation returns m with its translation column replaced.
func WithTranslation(m mgl64.Mat4, t mgl64.Vec3) mgl64.Mat4 {
	m[12], m[13], m[14] = t[0], t[1], t[2]
	return m
}

// NormalizedRotation extracts the rotation block of a pose matrix with
// any scale divided out, so it is safe to hand to Mat3ToEuler.
func NormalizedRotation(m mgl64.Mat4) mgl64.Mat3 {
	r := m.Mat3()
	for c := 0; c < 3; c++ {
		col := mgl64.Vec3{r[c*3], r[c*3+1], r[c*3+2]}
		if l := col.Len(); l > 0 {
			col = col.Mul(1 / l)
		}
		r[c*3], r[c*3+1], r[c*3+2] = col[0], col[1], col[2]
	}
	return r
}

// Compose assembles a pose matrix from location, XYZ Euler rotation and
// per-axis scale, in the usual T·R·S order.
func Compose(loc, eul, scale mgl64.Vec3) mgl64.Mat4 {
	r := EulerToMat3(eul)
	for c := 0; c < 3; c++ {
		r[c*3] *= scale[c]
		r[c*3+1] *= scale[c]
		r[c*3+2] *= scale[c]
	}
	m := r.Mat4()
	return WithTranslation(m, loc)
}

// invSafe inverts a matrix, degrading to identity for a singular input
// instead of propagating NaNs through the pipeline.
func invSafe(m mgl64.Mat4) mgl64.Mat4 {
	if math.Abs(m.Det()) < 1e-12 {
		return mgl64.Ident4()
	}
	return m.Inv()
}
