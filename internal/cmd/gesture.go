package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/term"

	"github.com/gimbalkit/gimbal"
	"github.com/gimbalkit/gimbal/internal/configpaths"
	"github.com/gimbalkit/gimbal/internal/log"
	"github.com/gimbalkit/gimbal/listener"
	"github.com/gimbalkit/gimbal/prefs"
	"github.com/gimbalkit/gimbal/spnav"
	"github.com/gimbalkit/gimbal/spnavtest"
	"github.com/gimbalkit/gimbal/transform"
)

type Gesture struct {
	Socket        string        `help:"Daemon socket path; empty tries $SPNAV_SOCKET then the default" env:"GIMBAL_SOCKET"`
	Prefs         string        `help:"Preference file (default: user config dir)" type:"path"`
	Pose          bool          `help:"Pose preset: rotation ignores the gesture lock, translation is never applied"`
	View          string        `help:"Viewpoint the gesture is aligned to" enum:"top,front,right" default:"top"`
	LockTranslate bool          `help:"Start with translation locked"`
	LockLoc       string        `help:"Comma-separated entity location axes to hold, e.g. x,z"`
	LockRot       string        `help:"Comma-separated entity rotation axes to hold"`
	Rounding      int           `help:"Decimal places the demo entity keeps on writes; negative keeps full precision" default:"3"`
	Fake          bool          `help:"Drive the gesture from a built-in scripted device instead of a daemon"`
	Interval      time.Duration `help:"Session tick interval" default:"16ms"`
}

// Run drives one interactive gesture against a demo entity and prints
// its pose each tick. Esc or q cancels (restoring the initial pose),
// Enter confirms, Tab flips the translate/rotate locks, r resets them
// and b (or Space) toggles bend mode. Device buttons do the same via
// their own bindings.
func (g *Gesture) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lockLoc, err := axisMask(g.LockLoc)
	if err != nil {
		return err
	}
	lockRot, err := axisMask(g.LockRot)
	if err != nil {
		return err
	}

	provider, err := g.startPrefs(ctx, logger)
	if err != nil {
		return err
	}

	src, cleanup, err := g.openSource(ctx, logger, rawLogger)
	if err != nil {
		return err
	}
	defer cleanup()

	lst, err := listener.New(src, logger)
	if err != nil {
		_ = src.Close()
		return err
	}
	defer func() { _ = lst.Kill() }()
	lst.ActivateButtons()

	entity := &consoleEntity{
		matrix:   mgl64.Ident4(),
		rounding: g.Rounding,
		lockLoc:  lockLoc,
		lockRot:  lockRot,
	}
	target, err := transform.SelectTarget([]transform.Entity{entity})
	if err != nil {
		return err
	}

	policy := transform.Policy{}
	if g.Pose {
		policy = transform.PosePolicy()
	}
	bindings := transform.DefaultBindings()
	session := transform.NewSession(lst, provider, transform.Options{
		View:          viewPreset(g.View),
		Bindings:      &bindings,
		Policy:        policy,
		LockTranslate: g.LockTranslate,
		Logger:        logger,
	})

	keys := make(chan byte, 16)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("terminal raw mode: %w", err)
		}
		defer func() { _ = term.Restore(fd, oldState) }()
		go readKeys(keys)
	} else {
		logger.Warn("stdin is not a terminal; keyboard bindings disabled")
	}

	fmt.Print("move the device to transform; Enter confirms, Esc cancels\r\n")
	session.Start()

	ticker := time.NewTicker(g.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Print("\r\n")
			return nil
		case <-ticker.C:
		}

		for _, ev := range lst.ButtonEvents() {
			session.HandleInput(buttonInput(ev))
		}
	drainKeys:
		for {
			select {
			case b, ok := <-keys:
				if !ok {
					break drainKeys
				}
				if in, ok := keyInput(b, bindings); ok {
					session.HandleInput(in)
				}
			default:
				break drainKeys
			}
		}

		status := session.Tick(target)
		printPose(entity, session)
		if status == transform.Finished {
			fmt.Print("\r\ngesture finished\r\n")
			return nil
		}
	}
}

// startPrefs loads the preference file and keeps it live behind the
// returned provider.
func (g *Gesture) startPrefs(ctx context.Context, logger *slog.Logger) (transform.ConfigProvider, error) {
	path := g.Prefs
	if path == "" {
		var err error
		path, err = configpaths.DefaultPrefsPath()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := prefs.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Info("Preferences loaded", "path", path)

	var mu sync.Mutex
	if err := prefs.Watch(ctx, path, logger, func(c prefs.Config) {
		mu.Lock()
		cfg = c
		mu.Unlock()
	}); err != nil {
		logger.Warn("preference watch unavailable", "error", err)
	}

	return func() prefs.Config {
		mu.Lock()
		defer mu.Unlock()
		return cfg
	}, nil
}

func (g *Gesture) openSource(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) (gimbal.Source, func(), error) {
	if !g.Fake {
		conn, err := spnav.Dial(g.Socket,
			spnav.WithPacketLog(func(pkt []byte) { rawLogger.Log(false, pkt) }))
		if err != nil {
			return nil, nil, err
		}
		return conn, func() {}, nil
	}

	dir, err := os.MkdirTemp("", "gimbal-fake")
	if err != nil {
		return nil, nil, err
	}
	sock := filepath.Join(dir, "spnav.sock")

	daemon := spnavtest.New(logger)
	if err := daemon.Listen(sock); err != nil {
		_ = os.RemoveAll(dir)
		return nil, nil, err
	}
	go runFakeScript(ctx, daemon)

	conn, err := spnav.Dial(sock)
	if err != nil {
		_ = daemon.Close()
		_ = os.RemoveAll(dir)
		return nil, nil, err
	}
	cleanup := func() {
		_ = daemon.Close()
		_ = os.RemoveAll(dir)
	}
	return conn, cleanup, nil
}

// runFakeScript plays bursts of motion with a rest packet between them,
// the way a real device behaves when nudged and released.
func runFakeScript(ctx context.Context, daemon *spnavtest.Daemon) {
	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()
	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		tick++
		phase := float64(tick) / 40
		switch step := tick % 90; {
		case step < 60:
			daemon.SendMotion(spnav.MotionPacket{
				X:      int32(120 * math.Sin(phase)),
				Z:      int32(80 * math.Cos(phase/2)),
				RY:     int32(60 * math.Sin(phase/3)),
				Period: 16,
			})
		case step == 60:
			daemon.SendMotion(spnav.MotionPacket{Period: 16})
		}
	}
}

// viewPreset returns the viewing orientation for a named preset. Top is
// the identity orientation and reports no provider at all.
func viewPreset(name string) transform.ViewProvider {
	switch name {
	case "front":
		return fixedView{m: mgl64.HomogRotate3DX(-math.Pi / 2)}
	case "right":
		return fixedView{m: mgl64.HomogRotate3DX(-math.Pi / 2).Mul4(mgl64.HomogRotate3DZ(-math.Pi / 2))}
	default:
		return nil
	}
}

// fixedView pins the session to one viewing orientation, standing in
// for a host's live camera.
type fixedView struct{ m mgl64.Mat4 }

func (v fixedView) ViewMatrix() (mgl64.Mat4, bool) { return v.m, true }

// consoleEntity is the demo target: a free-floating transform that
// optionally rounds written values, standing in for a host that snaps
// or constrains writes.
type consoleEntity struct {
	matrix   mgl64.Mat4
	rounding int
	lockLoc  [3]bool
	lockRot  [3]bool
}

func (e *consoleEntity) Matrix() mgl64.Mat4 { return e.matrix }

func (e *consoleEntity) SetMatrix(m mgl64.Mat4) {
	if e.rounding >= 0 {
		scale := math.Pow(10, float64(e.rounding))
		for i, v := range m {
			m[i] = math.Round(v*scale) / scale
		}
	}
	e.matrix = m
}

func (e *consoleEntity) LockedLocation() [3]bool { return e.lockLoc }
func (e *consoleEntity) LockedRotation() [3]bool { return e.lockRot }
func (e *consoleEntity) Scale() mgl64.Vec3       { return mgl64.Vec3{1, 1, 1} }

func readKeys(keys chan<- byte) {
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			close(keys)
			return
		}
		if n > 0 {
			keys <- buf[0]
		}
	}
}

// keyInput maps a terminal byte onto the session's input codes. Raw mode
// delivers ctrl-c as 0x03, which cancels like Esc.
func keyInput(b byte, bind transform.Bindings) (transform.Input, bool) {
	var code string
	switch b {
	case 0x1b, 'q', 'Q', 0x03:
		code = "ESC"
	case '\r', '\n':
		code = "RET"
	case '\t':
		code = bind.FlipLock
	case 'r', 'R':
		code = bind.ResetLock
	case 'b', 'B', ' ':
		code = bind.ToggleBend
	default:
		return transform.Input{}, false
	}
	return transform.Input{Code: code, Value: transform.Release}, true
}

// buttonInput maps a device button event onto the session's input codes.
// Two-button devices carry fit on 0 and menu on 1.
func buttonInput(ev gimbal.ButtonEvent) transform.Input {
	code := fmt.Sprintf("NDOF_BUTTON_%d", ev.Button)
	switch ev.Button {
	case 0:
		code = "NDOF_BUTTON_FIT"
	case 1:
		code = "NDOF_BUTTON_MENU"
	}
	value := transform.Release
	if ev.Pressed {
		value = transform.Press
	}
	return transform.Input{Code: code, Value: value}
}

func printPose(e *consoleEntity, s *transform.Session) {
	m := e.Matrix()
	loc := transform.Translation(m)
	eul := transform.Mat3ToEuler(transform.NormalizedRotation(m))

	var flags string
	if s.LockedTranslate() {
		flags += "  [move locked]"
	}
	if s.LockedRotate() {
		flags += "  [turn locked]"
	}
	if s.BendMode() {
		flags += "  [bend]"
	}
	fmt.Printf("\rloc (%7.2f %7.2f %7.2f)  rot (%6.1f %6.1f %6.1f)deg%s    ",
		loc.X(), loc.Y(), loc.Z(),
		mgl64.RadToDeg(eul.X()), mgl64.RadToDeg(eul.Y()), mgl64.RadToDeg(eul.Z()),
		flags)
}

func axisMask(s string) ([3]bool, error) {
	var mask [3]bool
	if s == "" {
		return mask, nil
	}
	for _, part := range strings.Split(s, ",") {
		switch strings.TrimSpace(strings.ToLower(part)) {
		case "x":
			mask[0] = true
		case "y":
			mask[1] = true
		case "z":
			mask[2] = true
		case "":
		default:
			return mask, fmt.Errorf("unknown axis %q", part)
		}
	}
	return mask, nil
}
