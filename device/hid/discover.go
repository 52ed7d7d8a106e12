package hid

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultSysfsPath is where the kernel lists hidraw class devices.
const DefaultSysfsPath = "/sys/class/hidraw"

// DeviceInfo is one discovered hidraw node matching a registered spec.
type DeviceInfo struct {
	Path string // device node, e.g. /dev/hidraw0
	Name string // kernel HID name string
	Spec DeviceSpec
}

// Discover scans the hidraw class for nodes whose HID id matches a
// registered spec.
func (r *Registry) Discover() ([]DeviceInfo, error) {
	return r.DiscoverAt(DefaultSysfsPath, "/dev")
}

// DiscoverAt is Discover with explicit sysfs and device directories.
func (r *Registry) DiscoverAt(sysfs, devDir string) ([]DeviceInfo, error) {
	entries, err := os.ReadDir(sysfs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning %s: %w", sysfs, err)
	}
	var found []DeviceInfo
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(sysfs, e.Name(), "device", "uevent"))
		if err != nil {
			continue
		}
		name, vendor, product, ok := parseUevent(data)
		if !ok {
			continue
		}
		spec, ok := r.Lookup(vendor, product)
		if !ok {
			continue
		}
		found = append(found, DeviceInfo{
			Path: filepath.Join(devDir, e.Name()),
			Name: name,
			Spec: spec,
		})
	}
	return found, nil
}

// parseUevent pulls the HID name and id out of a sysfs uevent file. The
// id line looks like HID_ID=0003:0000046D:0000C626.
func parseUevent(data []byte) (name string, vendor, product uint16, ok bool) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	var haveID bool
	for sc.Scan() {
		line := sc.Text()
		if v, found := strings.CutPrefix(line, "HID_NAME="); found {
			name = v
			continue
		}
		v, found := strings.CutPrefix(line, "HID_ID=")
		if !found {
			continue
		}
		parts := strings.Split(v, ":")
		if len(parts) != 3 {
			continue
		}
		ven, err1 := strconv.ParseUint(parts[1], 16, 32)
		prod, err2 := strconv.ParseUint(parts[2], 16, 32)
		if err1 != nil || err2 != nil {
			continue
		}
		vendor, product = uint16(ven), uint16(prod)
		haveID = true
	}
	return name, vendor, product, haveID
}
