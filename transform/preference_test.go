package transform_test

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"

	"github.com/gimbalkit/gimbal"
	"github.com/gimbalkit/gimbal/prefs"
	"github.com/gimbalkit/gimbal/transform"
)

func neutralConfig() prefs.Config {
	cfg := prefs.Default()
	cfg.Translate.Sensitivity = 1
	cfg.Rotate.Sensitivity = 1
	return cfg
}

func TestApplyPrefsNeutral(t *testing.T) {
	ev := gimbal.MotionEvent{
		Translation: mgl64.Vec3{1, -2, 3},
		Rotation:    mgl64.Vec3{-4, 5, -6},
		Period:      16,
	}
	got := transform.ApplyPrefs(ev, neutralConfig())
	assert.Equal(t, ev, got)
}

func TestApplyPrefsSensitivity(t *testing.T) {
	cfg := neutralConfig()
	cfg.Translate.Sensitivity = 0.5
	cfg.Rotate.Sensitivity = 2

	got := transform.ApplyPrefs(gimbal.MotionEvent{
		Translation: mgl64.Vec3{2, 4, 6},
		Rotation:    mgl64.Vec3{1, 2, 3},
	}, cfg)

	assert.Equal(t, mgl64.Vec3{1, 2, 3}, got.Translation)
	assert.Equal(t, mgl64.Vec3{2, 4, 6}, got.Rotation)
}

func TestApplyPrefsInvert(t *testing.T) {
	cfg := neutralConfig()
	cfg.Translate.Invert = [3]bool{true, false, true}
	cfg.Rotate.Invert = [3]bool{false, true, false}

	got := transform.ApplyPrefs(gimbal.MotionEvent{
		Translation: mgl64.Vec3{1, 2, 3},
		Rotation:    mgl64.Vec3{4, 5, 6},
	}, cfg)

	assert.Equal(t, mgl64.Vec3{-1, 2, -3}, got.Translation)
	assert.Equal(t, mgl64.Vec3{4, -5, 6}, got.Rotation)
}

// Flips apply in a fixed xy, xz, yz order, each acting on the result of
// the previous swap rather than the original axes.
func TestApplyPrefsFlipOrder(t *testing.T) {
	tests := []struct {
		name string
		flip [3]bool
		want mgl64.Vec3
	}{
		{"none", [3]bool{}, mgl64.Vec3{1, 2, 3}},
		{"xy", [3]bool{true, false, false}, mgl64.Vec3{2, 1, 3}},
		{"xz", [3]bool{false, true, false}, mgl64.Vec3{3, 2, 1}},
		{"yz", [3]bool{false, false, true}, mgl64.Vec3{1, 3, 2}},
		{"xy then xz", [3]bool{true, true, false}, mgl64.Vec3{3, 1, 2}},
		{"all three", [3]bool{true, true, true}, mgl64.Vec3{3, 2, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := neutralConfig()
			cfg.Translate.Flip = tt.flip
			got := transform.ApplyPrefs(gimbal.MotionEvent{
				Translation: mgl64.Vec3{1, 2, 3},
			}, cfg)
			assert.Equal(t, tt.want, got.Translation)
		})
	}
}

func TestApplyPrefsAxesIndependent(t *testing.T) {
	cfg := neutralConfig()
	cfg.Translate.Flip = [3]bool{true, false, false}
	cfg.Rotate.Invert = [3]bool{true, true, true}

	got := transform.ApplyPrefs(gimbal.MotionEvent{
		Translation: mgl64.Vec3{1, 2, 3},
		Rotation:    mgl64.Vec3{1, 2, 3},
	}, cfg)

	assert.Equal(t, mgl64.Vec3{2, 1, 3}, got.Translation)
	assert.Equal(t, mgl64.Vec3{-1, -2, -3}, got.Rotation)
}
