package cmd

import (
	"fmt"
	"log/slog"

	"github.com/gimbalkit/gimbal/device/evdev"
	"github.com/gimbalkit/gimbal/device/hid"
)

type Devices struct {
	All bool `help:"Also list supported products that are not currently attached"`
}

// Run scans hidraw and evdev for attached 6-DoF devices.
func (d *Devices) Run(logger *slog.Logger) error {
	reg, err := loadDeviceRegistry()
	if err != nil {
		return err
	}

	hidInfos, err := reg.Discover()
	if err != nil {
		logger.Warn("hidraw scan failed", "error", err)
	}
	evInfos, err := evdev.Detect(func(vendor, product uint16) bool {
		_, ok := reg.Lookup(vendor, product)
		return ok
	})
	if err != nil {
		logger.Warn("evdev scan failed", "error", err)
	}

	if len(hidInfos) == 0 && len(evInfos) == 0 {
		fmt.Println("no supported 6-DoF devices attached")
	}
	for _, info := range hidInfos {
		fmt.Printf("%-16s %04x:%04x  %s\n",
			info.Path, info.Spec.VendorID, info.Spec.ProductID, info.Name)
	}
	for _, info := range evInfos {
		fmt.Printf("%-16s %04x:%04x  %s\n",
			info.Path, info.Vendor, info.Product, info.Name)
	}

	if d.All {
		fmt.Println()
		fmt.Println("supported products:")
		for _, spec := range reg.Specs() {
			fmt.Printf("  %04x:%04x  %s\n", spec.VendorID, spec.ProductID, spec.Name)
		}
	}
	return nil
}
