package transform_test

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/gimbalkit/gimbal/transform"
)

func TestViewAligned(t *testing.T) {
	allAxes := [3]bool{true, true, true}
	rotZ := transform.EulerToMat4(mgl64.Vec3{0, 0, math.Pi / 4})

	tests := []struct {
		name string
		view mgl64.Mat4
		use  [3]bool
		want mgl64.Mat4
	}{
		{
			name: "identity stays identity",
			view: mgl64.Ident4(),
			use:  allAxes,
			want: mgl64.Ident4(),
		},
		{
			name: "translation is stripped",
			view: mgl64.Translate3D(10, -20, 30),
			use:  allAxes,
			want: mgl64.Ident4(),
		},
		{
			name: "rotation passes through",
			view: rotZ,
			use:  allAxes,
			want: rotZ,
		},
		{
			name: "disabled axis collapses to identity",
			view: rotZ,
			use:  [3]bool{true, true, false},
			want: mgl64.Ident4(),
		},
		{
			name: "scale is normalized away",
			view: rotZ.Mul4(mgl64.Scale3D(3, 3, 3)),
			use:  allAxes,
			want: rotZ,
		},
		{
			name: "no axes leaves identity",
			view: transform.EulerToMat4(mgl64.Vec3{0.3, -0.2, 0.5}),
			use:  [3]bool{},
			want: mgl64.Ident4(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := transform.ViewAligned(tt.view, tt.use)
			assertMat4Near(t, tt.want, got)
		})
	}
}

func TestViewAlignedMixedAxes(t *testing.T) {
	view := transform.EulerToMat4(mgl64.Vec3{0.3, 0, 0.5})
	got := transform.ViewAligned(view, [3]bool{true, true, false})
	assertMat4Near(t, transform.EulerToMat4(mgl64.Vec3{0.3, 0, 0}), got)
}
