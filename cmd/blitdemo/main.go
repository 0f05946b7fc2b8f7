package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xwindow"

	"github.com/1broseidon/softblit"
	"github.com/1broseidon/softblit/internal/config"
	"github.com/1broseidon/softblit/internal/framelog"
	"github.com/1broseidon/softblit/internal/x11"
)

func main() {
	configPath := flag.String("config", "", "config file (default ~/.config/blitdemo/config.yaml)")
	pattern := flag.String("pattern", "", "override pattern kind: gradient, checker or image")
	imagePath := flag.String("image", "", "PNG to display (implies -pattern image)")
	verify := flag.Bool("verify", false, "fetch the window back after each present and compare")
	frames := flag.Int("frames", 120, "animation frames to render before going idle")
	flag.Parse()

	if err := run(*configPath, *pattern, *imagePath, *verify, *frames); err != nil {
		slog.Error("blitdemo failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path, pattern, imagePath string) (*config.Config, error) {
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if imagePath != "" {
		cfg.Pattern.Kind = config.PatternImage
		cfg.Pattern.Image = imagePath
	}
	if pattern != "" {
		cfg.Pattern.Kind = config.PatternKind(pattern)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(configPath, pattern, imagePath string, verify bool, frames int) error {
	cfg, err := loadConfig(configPath, pattern, imagePath)
	if err != nil {
		return err
	}

	logger, err := framelog.NewLogger(framelog.LogConfig{
		Enabled:   cfg.Log.Enabled,
		Level:     framelog.ParseLogLevel(cfg.Log.Level),
		FilePath:  cfg.Log.Path,
		MaxSizeMB: cfg.Log.MaxSizeMB,
		MaxFiles:  cfg.Log.MaxFiles,
	})
	if err != nil {
		return err
	}
	defer logger.Close()

	conn, err := x11.NewConnection()
	if err != nil {
		return fmt.Errorf("failed to connect to X server: %w", err)
	}
	defer conn.Close()

	win, err := createWindow(conn, cfg)
	if err != nil {
		return err
	}

	surf, err := softblit.New(conn.XUtil.Conn(), win.Id)
	if err != nil {
		return fmt.Errorf("failed to create surface: %w", err)
	}
	defer surf.Close()

	ren, err := newRenderer(cfg)
	if err != nil {
		return err
	}

	a := &app{
		cfg:    cfg,
		log:    logger,
		surf:   surf,
		ren:    ren,
		verify: verify,
	}
	if err := a.resize(uint32(cfg.Window.Width), uint32(cfg.Window.Height)); err != nil {
		return err
	}

	// Animate on the main goroutine before going event-driven; the
	// surface must not be shared across goroutines.
	for i := 0; i < frames; i++ {
		if err := a.drawFrame(); err != nil {
			return err
		}
	}

	slog.Info("entering event loop", "window", win.Id, "size",
		fmt.Sprintf("%dx%d", cfg.Window.Width, cfg.Window.Height))

	xevent.ExposeFun(func(xu *xgbutil.XUtil, ev xevent.ExposeEvent) {
		if ev.Count > 0 {
			return
		}
		a.log.Log(framelog.ActionExpose, map[string]interface{}{
			"x": ev.X, "y": ev.Y, "width": ev.Width, "height": ev.Height,
		})
		if err := a.drawFrame(); err != nil {
			slog.Error("redraw failed", "error", err)
		}
	}).Connect(conn.XUtil, win.Id)

	xevent.ConfigureNotifyFun(func(xu *xgbutil.XUtil, ev xevent.ConfigureNotifyEvent) {
		w, h := uint32(ev.Width), uint32(ev.Height)
		if w == 0 || h == 0 {
			return
		}
		if err := a.resize(w, h); err != nil {
			slog.Error("resize failed", "error", err)
			return
		}
		if err := a.drawFrame(); err != nil {
			slog.Error("redraw failed", "error", err)
		}
	}).Connect(conn.XUtil, win.Id)

	xevent.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		conn.Quit()
	}).Connect(conn.XUtil, win.Id)

	conn.EventLoop()
	return nil
}

func createWindow(conn *x11.Connection, cfg *config.Config) (*xwindow.Window, error) {
	win, err := xwindow.Generate(conn.XUtil)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate window id: %w", err)
	}

	x, y := 0, 0
	if cfg.Window.Center {
		if mon, err := conn.GetActiveMonitor(); err == nil {
			x = mon.X + (mon.Width-cfg.Window.Width)/2
			y = mon.Y + (mon.Height-cfg.Window.Height)/2
		}
	}

	err = win.CreateChecked(conn.Root, x, y, cfg.Window.Width, cfg.Window.Height,
		xproto.CwBackPixel|xproto.CwEventMask,
		0,
		xproto.EventMaskExposure|xproto.EventMaskStructureNotify|xproto.EventMaskKeyPress)
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	ewmh.WmNameSet(conn.XUtil, win.Id, cfg.Window.Title)
	win.Map()
	return win, nil
}

// app owns the per-frame presentation state.
type app struct {
	cfg    *config.Config
	log    *framelog.Logger
	surf   *softblit.Surface
	ren    *renderer
	verify bool

	frame  int
	width  uint32
	height uint32
}

func (a *app) resize(width, height uint32) error {
	if err := a.surf.Resize(width, height); err != nil {
		return err
	}
	a.width, a.height = width, height
	a.ren.invalidate()
	a.log.Log(framelog.ActionResize, map[string]interface{}{
		"width": width, "height": height,
	})
	return nil
}

func (a *app) drawFrame() error {
	v, err := a.surf.Buffer()
	if err != nil {
		return err
	}

	w, h := int(a.width), int(a.height)
	a.ren.render(v.Pixels(), w, h, a.frame)

	var damage []softblit.Rect
	incremental := v.Age() == 1 && a.cfg.Damage.Mode == config.DamageTiles
	if incremental {
		damage = a.ren.dirtyTiles(w, h, a.cfg.Damage.TileSize)
	}

	if incremental && len(damage) == 0 {
		// Nothing changed on screen; hand the buffer back untouched.
		v.Release()
	} else if incremental {
		if err := v.PresentWithDamage(damage); err != nil {
			return err
		}
	} else {
		if err := v.Present(); err != nil {
			return err
		}
	}
	a.ren.remember()
	a.frame++

	a.log.Log(framelog.ActionPresent, map[string]interface{}{
		"frame": a.frame, "incremental": incremental, "rects": len(damage),
	})

	if a.verify {
		return a.verifyFrame()
	}
	return nil
}

// verifyFrame reads the window back and compares it to what was rendered.
// The unused X channel is masked out; servers do not preserve it.
func (a *app) verifyFrame() error {
	shown, err := a.surf.Fetch()
	if err != nil {
		return err
	}
	want := a.ren.lastFrame()
	mismatches := 0
	for i := range shown {
		if shown[i]&0x00ffffff != want[i]&0x00ffffff {
			mismatches++
		}
	}
	a.log.Log(framelog.ActionFetch, map[string]interface{}{
		"frame": a.frame, "mismatches": mismatches,
	})
	if mismatches > 0 {
		return fmt.Errorf("frame %d: %d pixels differ from what was presented", a.frame, mismatches)
	}
	return nil
}
