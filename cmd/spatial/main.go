package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/karanbalaji/spatial-presenter/internal/app"
	"github.com/karanbalaji/spatial-presenter/internal/capture"
	"github.com/karanbalaji/spatial-presenter/internal/config"
	"github.com/karanbalaji/spatial-presenter/internal/deck"
	"github.com/karanbalaji/spatial-presenter/internal/detector"
	"github.com/karanbalaji/spatial-presenter/internal/nav"
	"github.com/karanbalaji/spatial-presenter/internal/plugin"
	"github.com/karanbalaji/spatial-presenter/internal/server"
	"github.com/karanbalaji/spatial-presenter/internal/speech"
	"github.com/karanbalaji/spatial-presenter/internal/store"
	"github.com/karanbalaji/spatial-presenter/internal/tray"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath  string
		printConfig bool
		showVersion bool
		noTray      bool
	)

	flag.StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	flag.BoolVar(&printConfig, "print-config", false, "Print the effective configuration and exit")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.BoolVar(&noTray, "no-tray", false, "Run without the menu-bar icon")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	if printConfig {
		out, err := cfg.YAML()
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to render config:", err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	if err := run(cfg, logger, cfg.Tray.Enabled && !noTray); err != nil {
		logger.Error("spatial exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(cfg config.Config, logger *slog.Logger, withTray bool) error {
	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return err
	}
	defer st.Close()

	d := deck.New(st.Slides(), st.Settings(), logger.With(slog.String("component", "deck")))
	if err := d.Load(); err != nil {
		return err
	}

	ctrl := nav.New(d, nav.Options{
		Window:    cfg.Navigation.Debounce(),
		Logger:    logger.With(slog.String("component", "nav")),
		OnOutcome: app.ObserveOutcome,
	})

	plugins := plugin.NewManager(cfg.Hooks.PluginDir, logger.With(slog.String("component", "plugin")))
	if err := plugins.Discover(); err != nil {
		logger.Warn("plugin discovery failed", slog.String("dir", cfg.Hooks.PluginDir), slog.String("error", err.Error()))
	}
	hooks := plugin.NewHooks(plugins, plugin.NewExecutor(cfg.Hooks.Timeout()), logger.With(slog.String("component", "hooks")))

	appCfg := app.Config{
		Deck:            d,
		Controller:      ctrl,
		Hooks:           hooks,
		FPS:             cfg.Gesture.FPS,
		MotionThreshold: cfg.Gesture.MotionThreshold,
		MotionHold:      cfg.Gesture.MotionHoldFrames,
		Logger:          logger,
	}
	if cfg.Gesture.Enabled {
		appCfg.Camera = capture.NewCamera(cfg.Gesture.CameraID)
		appCfg.Detector = newDetector(cfg.Gesture, logger)
	}
	if cfg.Speech.Enabled {
		appCfg.Speech = newRecognizer(cfg.Speech.Command)
		appCfg.SpeechBackoff = speech.NewBackoff(cfg.Speech.RestartInitial(), cfg.Speech.RestartMax())
	}
	session := app.New(appCfg)

	srvCfg := server.Config{
		StaticDir: findWebDir(cfg.Server.StaticDir, cfg.Data.Dir),
		Deck:      d,
		App:       session,
		Logger:    logger.With(slog.String("component", "server")),
	}
	if appCfg.Camera != nil {
		srvCfg.Frames = session
	}
	if srvCfg.StaticDir != "" {
		logger.Info("serving presenter view", slog.String("dir", srvCfg.StaticDir))
	}
	srv := server.New(srvCfg)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := session.Start(ctx); err != nil {
		return err
	}
	defer session.Stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	if withTray {
		t := newTray(ctrl, d, session, presenterURL(cfg.Server.Addr), stop, logger)
		done := make(chan error, 1)
		go func() {
			var err error
			select {
			case <-ctx.Done():
			case err = <-serveErr:
			}
			done <- err
			t.Quit()
		}()
		// systray needs the main thread.
		t.Run()
		stop()
		runErr = <-done
	} else {
		select {
		case <-ctx.Done():
		case runErr = <-serveErr:
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", slog.String("error", err.Error()))
	}
	return runErr
}

// newDetector returns nil when no recognizer service is available, which
// leaves gesture input to the browser-side classifier.
func newDetector(cfg config.GestureConfig, logger *slog.Logger) detector.Detector {
	d, err := detector.NewRecognizerDetector(detector.Config{
		Command:       cfg.RecognizerCommand,
		MaxHands:      1,
		MinConfidence: cfg.MinDetection,
	})
	if err != nil {
		logger.Warn("hand recognizer unavailable", slog.String("error", err.Error()))
		return nil
	}
	return d
}

// newRecognizer returns a recognizer that reports the configuration error on
// its first Listen, so the failure surfaces in the session status.
func newRecognizer(command string) speech.Recognizer {
	rec, err := speech.NewExecRecognizer(command)
	if err != nil {
		if !errors.Is(err, speech.ErrUnsupported) {
			err = fmt.Errorf("%w: %v", speech.ErrUnsupported, err)
		}
		return speech.RecognizerFunc(func(context.Context, func(string)) error { return err })
	}
	return rec
}

func newTray(ctrl *nav.Controller, d *deck.Deck, session *app.App, url string, quit func(), logger *slog.Logger) *tray.Tray {
	t := tray.New()
	t.OnNavigate(func(intent nav.Intent) { session.Navigate(nav.SourceManual, intent) })
	t.OnToggle(session.SetGestureEnabled)
	t.OnOpen(func() {
		if err := openBrowser(url); err != nil {
			logger.Error("open presenter", slog.String("url", url), slog.String("error", err.Error()))
		}
	})
	t.OnQuit(quit)

	st := ctrl.Snapshot()
	t.SetSlide(st.Index, st.Count)
	ctrl.Subscribe(func(tr nav.Transition) { t.SetSlide(tr.To, tr.Count) })
	d.OnChange(func() {
		st := ctrl.Snapshot()
		t.SetSlide(st.Index, st.Count)
	})
	session.WatchStatus(func(s app.Status) { t.SetLastGesture(s.LastGesture) })
	return t
}

func presenterURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://localhost:8080/"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir returns the configured directory if it exists, otherwise the
// first of "web", "../web" and <data dir>/web that does.
func findWebDir(configured, dataDir string) string {
	candidates := []string{configured, "web", "../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
