//go:build linux

package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/gimbalkit/gimbal/device/hid"
)

const udevRulesPath = "/etc/udev/rules.d/70-gimbal.rules"

// Setup installs udev rules so console users can open the hidraw and
// evdev nodes of supported devices without root. Needs root itself.
type Setup struct {
	Uninstall bool `help:"Remove the installed udev rules"`
}

func (s *Setup) Run(logger *slog.Logger) error {
	if s.Uninstall {
		return removeUdevRules(logger)
	}
	return installUdevRules(logger)
}

func installUdevRules(logger *slog.Logger) error {
	reg, err := loadDeviceRegistry()
	if err != nil {
		return err
	}

	if err := os.WriteFile(udevRulesPath, []byte(udevRulesContent(reg)), 0o644); err != nil {
		return err
	}

	steps := [][]string{
		{"control", "--reload-rules"},
		{"trigger", "--subsystem-match=hidraw"},
		{"trigger", "--subsystem-match=input"},
	}
	for _, args := range steps {
		if err := runUdevadm(args...); err != nil {
			return err
		}
	}

	logger.Info("udev rules installed", "path", udevRulesPath)
	return nil
}

func removeUdevRules(logger *slog.Logger) error {
	var errs []error

	if err := os.Remove(udevRulesPath); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}
	if err := runUdevadm("control", "--reload-rules"); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	logger.Info("udev rules removed", "path", udevRulesPath)
	return nil
}

// udevRulesContent emits one hidraw and one input rule per registered
// product, so user-added device specs get access rules too. The input
// rule also clears the joystick classification these devices otherwise
// receive.
func udevRulesContent(reg *hid.Registry) string {
	var b strings.Builder
	b.WriteString("# 6-DoF input devices: grant console users direct access\n")
	for _, spec := range reg.Specs() {
		fmt.Fprintf(&b,
			"SUBSYSTEM==\"hidraw\", ATTRS{idVendor}==\"%04x\", ATTRS{idProduct}==\"%04x\", TAG+=\"uaccess\"\n",
			spec.VendorID, spec.ProductID)
		fmt.Fprintf(&b,
			"SUBSYSTEM==\"input\", ATTRS{id/vendor}==\"%04x\", ATTRS{id/product}==\"%04x\", TAG+=\"uaccess\", ENV{ID_INPUT_JOYSTICK}=\"\"\n",
			spec.VendorID, spec.ProductID)
	}
	return b.String()
}

func runUdevadm(args ...string) error {
	cmd := exec.Command("udevadm", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("udevadm %s failed: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return nil
}
