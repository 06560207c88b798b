// Program instrumon connects to a rocket test stand's telemetry feed, keeps a
// rolling history of every channel in memory, and draws live plots in the
// terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"

	"instrumon/config"
	"instrumon/downsample"
	"instrumon/ingest"
	"instrumon/pipeline"
	"instrumon/render"
	"instrumon/router"
	"instrumon/stats"
	"instrumon/ui"
)

const (
	defaultConfigPath = "data/config"
	envConfigPath     = "INSTRUMON_CONFIG"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

// Purpose: Report whether stdout is a TTY for UI gating.
// Key aspects: Uses term.IsTerminal on stdout fd.
// Upstream: main UI selection.
// Downstream: term.IsTerminal.
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Purpose: Load configuration from the flag, env or default location.
// Key aspects: An explicit flag must exist; env and default fall back to built-in defaults when missing.
// Upstream: main startup.
// Downstream: config.Load and config.IsNotExist.
func loadConfig(flagPath string) (*config.Config, string, error) {
	if path := strings.TrimSpace(flagPath); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, path, err
		}
		return cfg, cfg.LoadedFrom, nil
	}
	candidates := make([]string, 0, 2)
	if envPath := strings.TrimSpace(os.Getenv(envConfigPath)); envPath != "" {
		candidates = append(candidates, envPath)
	}
	candidates = append(candidates, defaultConfigPath)
	for _, path := range candidates {
		cfg, err := config.Load(path)
		if err != nil {
			if config.IsNotExist(err) {
				continue
			}
			return nil, path, err
		}
		return cfg, cfg.LoadedFrom, nil
	}
	return config.Default(), "built-in defaults", nil
}

// initialSettings converts the display section into pipeline settings.
func initialSettings(cfg *config.Config) render.Settings {
	s := render.DefaultSettings()
	s.WindowLength = cfg.Display.DefaultWindowSeconds * cfg.Buffer.SampleRateHz
	s.Multiplier = cfg.Display.Multiplier
	s.Divider = cfg.Display.Divider
	if method, err := downsample.ParseMethod(cfg.Display.Method); err == nil {
		s.Method = method
	}
	return s
}

// selectSurface picks the console renderer for the configured mode. It
// returns nil when running headless.
func selectSurface(cfg *config.Config, settings render.Settings) ui.Surface {
	mode := cfg.UI.Mode
	if mode != config.UIModeHeadless && !isStdoutTTY() {
		log.Printf("UI disabled (%s requires an interactive console)", mode)
		return nil
	}
	switch mode {
	case config.UIModeTview:
		return ui.NewDashboard(ui.DashboardOptions{
			UI:            cfg.UI,
			SampleRate:    cfg.Buffer.SampleRateHz,
			PresetSeconds: cfg.Display.WindowPresetsSeconds,
			Settings:      settings,
		})
	case config.UIModeANSI:
		return newANSIConsole(cfg.UI, cfg.Buffer.SampleRateHz)
	default:
		log.Printf("UI disabled (mode=headless)")
		return nil
	}
}

// Purpose: Program entrypoint; wires configuration, ingest, pipeline and UI.
// Key aspects: All long-running parts share one context; quitting the UI or a signal cancels it.
// Upstream: OS process start.
// Downstream: pipeline.Run, ingest.Ingestor.Run, statusReporter.run, Collectors.Serve.
func main() {
	configFlag := flag.String("config", "", "config file or directory (default $"+envConfigPath+" or "+defaultConfigPath+")")
	printConfig := flag.Bool("print-config", false, "print the effective configuration and exit")
	flag.Parse()

	cfg, configSource, err := loadConfig(*configFlag)
	if err != nil {
		log.Fatalf("Error loading config from %s: %v", configSource, err)
	}
	if *printConfig {
		cfg.Print()
		return
	}

	plog, err := setupLogging(cfg.Logging, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging: session files disabled: %v\n", err)
	}
	defer plog.Close()
	log.SetFlags(0)
	log.SetOutput(plog)

	tracker := stats.NewTracker()
	src, label := buildSource(cfg.Source)
	plog.SetBanner(func() []string {
		head := fmt.Sprintf("instrumon %s config=%s source=%s", Version, configSource, label)
		return append([]string{head}, tracker.SnapshotLines()...)
	})

	settings := initialSettings(cfg)
	surface := selectSurface(cfg, settings)
	if surface != nil {
		surface.WaitReady()
		defer surface.Stop()
		plog.SetConsole(surface.SystemWriter(), false)
	} else {
		cfg.Print()
	}
	log.Printf("instrumon %s starting (config: %s)", Version, configSource)

	var collectors *stats.Collectors
	if cfg.Metrics.Enabled {
		collectors = stats.NewCollectors()
		tracker.Mirror(collectors)
	}

	// A nil *ui.Dashboard stored in the interface would not read as nil.
	var display pipeline.Display
	if surface != nil {
		display = surface
	}
	var minFrame time.Duration
	if cfg.UI.TargetFPS > 0 {
		minFrame = time.Second / time.Duration(cfg.UI.TargetFPS)
	}
	pipe := pipeline.New(pipeline.Config{
		Capacity:         cfg.Buffer.Capacity(),
		QueueSize:        cfg.Pipeline.QueueSize,
		Router:           router.Options{AllowUnknown: cfg.Router.AllowUnknownFields},
		Settings:         settings,
		MinFrameInterval: minFrame,
	}, display, tracker)
	pipe.SetCollectors(collectors)

	deduper := newDropLogDeduper(time.Duration(cfg.Logging.DropDedupeWindow())*time.Second, defaultDropLogDedupeMaxKeys)
	pipe.SetMalformedHandler(func(err error) {
		if line, ok := deduper.Process(malformedDedupeKey(err), "Pipeline: dropped record: "+err.Error()); ok {
			log.Print(line)
		}
	})
	if dash, ok := surface.(*ui.Dashboard); ok {
		dash.Bind(pipe)
	}

	ingestor := ingest.NewIngestor(src, ingest.NewConverter(buildConversions(cfg.Channels)), pipe.Submit, tracker)
	ingestor.SetErrorHandler(func(source string, err error) {
		if line, ok := deduper.Process(decodeDedupeKey(source), source+": "+err.Error()); ok {
			log.Print(line)
		}
	})
	log.Printf("Ingest: %s", label)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	idleAfter := time.Duration(cfg.Source.IdleAfterMS) * time.Millisecond
	reporter := &statusReporter{
		label:     label,
		tracker:   tracker,
		source:    ingestor,
		pipe:      pipe,
		queueCap:  cfg.Pipeline.QueueSize,
		idleAfter: idleAfter,
		surface:   surface,
		plog:      plog,
	}

	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}
	spawn(func() {
		if err := pipe.Run(ctx); err != nil {
			log.Printf("Pipeline: %v", err)
		}
	})
	spawn(func() { ingestor.Run(ctx) })
	spawn(func() { reporter.run(ctx) })
	spawn(func() { runIngestHealthMonitor(ctx, ingestor, idleAfter) })
	if collectors != nil {
		spawn(func() {
			if err := collectors.Serve(ctx, cfg.Metrics.Address); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("%v", err)
			}
		})
	}

	var quit <-chan struct{}
	if surface != nil {
		quit = surface.Done()
	}
	select {
	case <-ctx.Done():
		log.Printf("Shutdown: signal received")
	case <-quit:
		log.Printf("Shutdown: quit requested")
	}
	cancel()
	wg.Wait()
	plog.Record(reporter.statsLines(), true)
}
