// Package hid reads 3Dconnexion devices directly over raw HID reports,
// for hosts without a spnav daemon. Each supported product carries a
// DeviceSpec describing where in which report its axes and buttons
// live; decoded reports become the same motion and button events the
// daemon socket produces, so the rest of the pipeline does not care
// which transport delivered them.
package hid

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// AxisSpec locates one axis sample inside a report. Lo and Hi index the
// low and high byte of a little-endian int16, counted from the report
// ID byte at index 0. Scale multiplies the decoded value; -1 flips the
// axis and other magnitudes apply per-axis scaling.
type AxisSpec struct {
	Channel byte    `toml:"channel"`
	Lo      int     `toml:"lo"`
	Hi      int     `toml:"hi"`
	Scale   float64 `toml:"scale"`
}

// ButtonSpec locates one button bit inside a report.
type ButtonSpec struct {
	Channel byte `toml:"channel"`
	Byte    int  `toml:"byte"`
	Bit     uint `toml:"bit"`
}

// AxisMap names the six degrees of freedom of a device.
type AxisMap struct {
	X     AxisSpec `toml:"x"`
	Y     AxisSpec `toml:"y"`
	Z     AxisSpec `toml:"z"`
	Roll  AxisSpec `toml:"roll"`
	Pitch AxisSpec `toml:"pitch"`
	Yaw   AxisSpec `toml:"yaw"`
}

// list returns the axes in event order: translation x, y, z then
// rotation roll, pitch, yaw.
func (m AxisMap) list() [6]AxisSpec {
	return [6]AxisSpec{m.X, m.Y, m.Z, m.Roll, m.Pitch, m.Yaw}
}

// DeviceSpec is the report layout of one product. AxisScale is the full
// deflection magnitude of the raw samples; decoded axes are normalized
// by it and scaled to the daemon's +-500 value range.
type DeviceSpec struct {
	Name      string       `toml:"name"`
	VendorID  uint16       `toml:"vendor_id"`
	ProductID uint16       `toml:"product_id"`
	AxisScale float64      `toml:"axis_scale"`
	Axes      AxisMap      `toml:"axes"`
	Buttons   []ButtonSpec `toml:"buttons"`
}

const defaultAxisScale = 350

// Wire layouts come in two shapes: older devices split translation and
// rotation over report channels 1 and 2, newer wireless ones pack all
// six axes into a single 13-byte channel-1 report.
func splitAxes() AxisMap {
	return AxisMap{
		X:     AxisSpec{Channel: 1, Lo: 1, Hi: 2, Scale: 1},
		Y:     AxisSpec{Channel: 1, Lo: 3, Hi: 4, Scale: -1},
		Z:     AxisSpec{Channel: 1, Lo: 5, Hi: 6, Scale: -1},
		Pitch: AxisSpec{Channel: 2, Lo: 1, Hi: 2, Scale: -1},
		Roll:  AxisSpec{Channel: 2, Lo: 3, Hi: 4, Scale: -1},
		Yaw:   AxisSpec{Channel: 2, Lo: 5, Hi: 6, Scale: 1},
	}
}

func packedAxes() AxisMap {
	return AxisMap{
		X:     AxisSpec{Channel: 1, Lo: 1, Hi: 2, Scale: 1},
		Y:     AxisSpec{Channel: 1, Lo: 3, Hi: 4, Scale: -1},
		Z:     AxisSpec{Channel: 1, Lo: 5, Hi: 6, Scale: -1},
		Pitch: AxisSpec{Channel: 1, Lo: 7, Hi: 8, Scale: -1},
		Roll:  AxisSpec{Channel: 1, Lo: 9, Hi: 10, Scale: -1},
		Yaw:   AxisSpec{Channel: 1, Lo: 11, Hi: 12, Scale: 1},
	}
}

func twoButtons() []ButtonSpec {
	return []ButtonSpec{
		{Channel: 3, Byte: 1, Bit: 0},
		{Channel: 3, Byte: 1, Bit: 1},
	}
}

func proButtons() []ButtonSpec {
	return []ButtonSpec{
		{Channel: 3, Byte: 1, Bit: 0}, // menu
		{Channel: 3, Byte: 3, Bit: 7}, // alt
		{Channel: 3, Byte: 4, Bit: 1}, // ctrl
		{Channel: 3, Byte: 4, Bit: 0}, // shift
		{Channel: 3, Byte: 3, Bit: 6}, // esc
		{Channel: 3, Byte: 2, Bit: 4}, // 1
		{Channel: 3, Byte: 2, Bit: 5}, // 2
		{Channel: 3, Byte: 2, Bit: 6}, // 3
		{Channel: 3, Byte: 2, Bit: 7}, // 4
		{Channel: 3, Byte: 2, Bit: 0}, // roll clockwise
		{Channel: 3, Byte: 1, Bit: 2}, // top
		{Channel: 3, Byte: 4, Bit: 2}, // rotation
		{Channel: 3, Byte: 1, Bit: 5}, // front
		{Channel: 3, Byte: 1, Bit: 4}, // rear
		{Channel: 3, Byte: 1, Bit: 1}, // fit
	}
}

func pilotButtons() []ButtonSpec {
	return []ButtonSpec{
		{Channel: 3, Byte: 4, Bit: 0}, // shift
		{Channel: 3, Byte: 3, Bit: 6}, // esc
		{Channel: 3, Byte: 4, Bit: 1}, // ctrl
		{Channel: 3, Byte: 3, Bit: 7}, // alt
		{Channel: 3, Byte: 3, Bit: 1}, // 1
		{Channel: 3, Byte: 3, Bit: 2}, // 2
		{Channel: 3, Byte: 2, Bit: 6}, // 3
		{Channel: 3, Byte: 2, Bit: 7}, // 4
		{Channel: 3, Byte: 3, Bit: 0}, // 5
		{Channel: 3, Byte: 1, Bit: 0}, // menu
		{Channel: 3, Byte: 4, Bit: 6}, // minus
		{Channel: 3, Byte: 4, Bit: 5}, // plus
		{Channel: 3, Byte: 4, Bit: 4}, // dominant
		{Channel: 3, Byte: 4, Bit: 3}, // pan/zoom
		{Channel: 3, Byte: 4, Bit: 2}, // rotation
		{Channel: 3, Byte: 2, Bit: 0}, // roll clockwise
		{Channel: 3, Byte: 1, Bit: 2}, // top
		{Channel: 3, Byte: 1, Bit: 5}, // front
		{Channel: 3, Byte: 1, Bit: 4}, // rear
		{Channel: 3, Byte: 2, Bit: 2}, // iso
		{Channel: 3, Byte: 1, Bit: 1}, // fit
	}
}

func builtinSpecs() []DeviceSpec {
	return []DeviceSpec{
		{
			Name: "SpaceNavigator", VendorID: 0x46d, ProductID: 0xc626,
			AxisScale: defaultAxisScale, Axes: splitAxes(), Buttons: twoButtons(),
		},
		{
			Name: "SpaceMouse Compact", VendorID: 0x256f, ProductID: 0xc635,
			AxisScale: defaultAxisScale, Axes: splitAxes(), Buttons: twoButtons(),
		},
		{
			Name: "SpaceMouse Pro Wireless", VendorID: 0x256f, ProductID: 0xc632,
			AxisScale: defaultAxisScale, Axes: packedAxes(), Buttons: proButtons(),
		},
		{
			Name: "SpaceMouse Pro", VendorID: 0x46d, ProductID: 0xc62b,
			AxisScale: defaultAxisScale, Axes: splitAxes(), Buttons: proButtons(),
		},
		{
			Name: "SpaceMouse Wireless", VendorID: 0x256f, ProductID: 0xc62e,
			AxisScale: defaultAxisScale, Axes: packedAxes(), Buttons: twoButtons(),
		},
		{
			Name: "3Dconnexion Universal Receiver", VendorID: 0x256f, ProductID: 0xc652,
			AxisScale: defaultAxisScale, Axes: packedAxes(), Buttons: proButtons(),
		},
		{
			Name: "SpacePilot Pro", VendorID: 0x46d, ProductID: 0xc629,
			AxisScale: defaultAxisScale, Axes: splitAxes(), Buttons: pilotButtons(),
		},
	}
}

// Registry holds the known device specs. The zero registry is empty;
// NewRegistry starts from the built-in product table.
type Registry struct {
	specs []DeviceSpec
}

// NewRegistry returns a registry seeded with the built-in products.
func NewRegistry() *Registry {
	return &Registry{specs: builtinSpecs()}
}

// Specs returns the registered specs in registration order.
func (r *Registry) Specs() []DeviceSpec { return r.specs }

// Lookup finds the spec for a vendor/product pair.
func (r *Registry) Lookup(vendor, product uint16) (DeviceSpec, bool) {
	for _, s := range r.specs {
		if s.VendorID == vendor && s.ProductID == product {
			return s, true
		}
	}
	return DeviceSpec{}, false
}

func (r *Registry) add(spec DeviceSpec) {
	if spec.AxisScale == 0 {
		spec.AxisScale = defaultAxisScale
	}
	for i, s := range r.specs {
		if s.VendorID == spec.VendorID && s.ProductID == spec.ProductID {
			r.specs[i] = spec
			return
		}
	}
	r.specs = append(r.specs, spec)
}

type specFile struct {
	Devices []DeviceSpec `toml:"device"`
}

// LoadFile merges device specs from a TOML file into the registry. A
// spec for an already-known vendor/product pair replaces the built-in
// one. A missing file is not an error.
func (r *Registry) LoadFile(path string) error {
	var f specFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("loading device specs %s: %w", path, err)
	}
	for _, spec := range f.Devices {
		if spec.Name == "" {
			return fmt.Errorf("loading device specs %s: device without a name", path)
		}
		r.add(spec)
	}
	return nil
}
