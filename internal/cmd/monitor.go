package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gimbalkit/gimbal"
	"github.com/gimbalkit/gimbal/device/evdev"
	"github.com/gimbalkit/gimbal/device/hid"
	"github.com/gimbalkit/gimbal/internal/configpaths"
	"github.com/gimbalkit/gimbal/internal/log"
	"github.com/gimbalkit/gimbal/listener"
	"github.com/gimbalkit/gimbal/spnav"
)

type Monitor struct {
	Socket   string        `help:"Daemon socket path; empty tries $SPNAV_SOCKET then the default" env:"GIMBAL_SOCKET"`
	Hidraw   string        `help:"Read this hidraw node directly instead of the daemon" type:"path"`
	Evdev    string        `help:"Read this evdev node directly instead of the daemon" type:"path"`
	Grab     bool          `help:"Grab the evdev node so other readers stop seeing it"`
	Buttons  bool          `help:"Print button events only"`
	Interval time.Duration `help:"Queue drain interval" default:"50ms"`
}

// Run is called by Kong when the monitor command is executed.
func (m *Monitor) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if m.Hidraw != "" && m.Evdev != "" {
		return errors.New("pick one of --hidraw or --evdev")
	}

	src, name, err := m.openSource(logger, rawLogger)
	if err != nil {
		return err
	}

	lst, err := listener.New(src, logger)
	if err != nil {
		_ = src.Close()
		return err
	}
	defer func() { _ = lst.Kill() }()

	if !m.Buttons {
		lst.ActivateMotion()
	}
	lst.ActivateButtons()

	logger.Info("Monitoring device events", "source", name)

	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, ev := range lst.MotionEvents() {
				fmt.Printf("motion  t=(%+5.0f %+5.0f %+5.0f)  r=(%+5.0f %+5.0f %+5.0f)  period=%dms\n",
					ev.Translation.X(), ev.Translation.Y(), ev.Translation.Z(),
					ev.Rotation.X(), ev.Rotation.Y(), ev.Rotation.Z(), ev.Period)
			}
			for _, ev := range lst.ButtonEvents() {
				state := "released"
				if ev.Pressed {
					state = "pressed"
				}
				fmt.Printf("button  %d %s\n", ev.Button, state)
			}
		}
	}
}

func (m *Monitor) openSource(logger *slog.Logger, rawLogger log.RawLogger) (gimbal.Source, string, error) {
	switch {
	case m.Hidraw != "":
		reg, err := loadDeviceRegistry()
		if err != nil {
			return nil, "", err
		}
		infos, err := reg.Discover()
		if err != nil {
			return nil, "", err
		}
		for _, info := range infos {
			if info.Path != m.Hidraw {
				continue
			}
			src, err := hid.Open(info.Path, info.Spec, logger,
				hid.WithPacketLog(func(pkt []byte) { rawLogger.Log(false, pkt) }))
			if err != nil {
				return nil, "", err
			}
			return src, info.Name, nil
		}
		return nil, "", fmt.Errorf("%s is not a supported 6-DoF device", m.Hidraw)

	case m.Evdev != "":
		var opts []evdev.Option
		if m.Grab {
			opts = append(opts, evdev.WithGrab())
		}
		src, err := evdev.Open(m.Evdev, logger, opts...)
		if err != nil {
			return nil, "", err
		}
		return src, src.Name(), nil

	default:
		conn, err := spnav.Dial(m.Socket,
			spnav.WithPacketLog(func(pkt []byte) { rawLogger.Log(false, pkt) }))
		if err != nil {
			return nil, "", err
		}
		return conn, conn.Path(), nil
	}
}

// loadDeviceRegistry returns the built-in product table merged with the
// user's device spec file, if one exists.
func loadDeviceRegistry() (*hid.Registry, error) {
	reg := hid.NewRegistry()
	path, err := configpaths.DefaultDeviceSpecsPath()
	if err != nil {
		return reg, nil
	}
	if err := reg.LoadFile(path); err != nil {
		return nil, err
	}
	return reg, nil
}
