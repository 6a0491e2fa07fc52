package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/soundlab/internal/api"
	"github.com/banshee-data/soundlab/internal/config"
	"github.com/banshee-data/soundlab/internal/monitoring"
	"github.com/banshee-data/soundlab/internal/pulse"
	"github.com/banshee-data/soundlab/internal/session"
	"github.com/banshee-data/soundlab/internal/store"
	"github.com/banshee-data/soundlab/internal/timeutil"
	"github.com/banshee-data/soundlab/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a .json or .yaml config file (default "+config.DefaultConfigPath+" if present)")
	listen      = flag.String("listen", ":8080", "Listen address")
	devMode     = flag.Bool("dev", false, "Run in dev mode (console logging at debug level)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// loadConfig reads path, or the default path when it exists. No file means
// every default applies.
func loadConfig(path string) (*config.LabConfig, error) {
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err != nil {
			return config.EmptyLabConfig(), nil
		}
		path = config.DefaultConfigPath
	}
	return config.LoadLabConfig(path)
}

// sessionOptions maps the config onto the options of every new session.
func sessionOptions(cfg *config.LabConfig) session.Options {
	opts := session.Options{
		DefaultTemperatureC: cfg.GetDefaultTemperatureC(),
		Settle:              cfg.GetSettleDuration(),
		Tolerances: pulse.Tolerances{
			DelayMs:     cfg.GetDelayToleranceMs(),
			VelocityMPS: cfg.GetVelocityToleranceMPS(),
			TheoryMPS:   cfg.GetTheoryToleranceMPS(),
		},
		TTL: cfg.GetSessionTTL(),
	}
	if seed, ok := cfg.GetSeed(); ok {
		opts.Seed = &seed
	}
	return opts
}

// flagSet reports whether the named flag was given on the command line.
func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("soundlab"))
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	addr := cfg.GetListen()
	if flagSet("listen") {
		addr = *listen
	}
	if addr == "" {
		log.Fatal("Listen address is required")
	}

	level := cfg.GetLogLevel()
	if *devMode {
		level = "debug"
	}
	logger, err := monitoring.NewZapLogger(level, *devMode)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer monitoring.UseZap(logger)()

	attempts, err := store.Open()
	if err != nil {
		log.Fatalf("failed to open attempt log: %v", err)
	}
	defer attempts.Close()

	manager := session.NewManager(sessionOptions(cfg), timeutil.RealClock{}, attempts)
	manager.OnEnd(func(ctx context.Context, id string) {
		if n, err := attempts.Purge(ctx, id); err != nil {
			monitoring.Logf("failed to purge attempts of session %s: %v", id, err)
		} else if n > 0 {
			monitoring.Logf("purged %d attempts of session %s", n, id)
		}
	})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// idle session sweeper
	wg.Add(1)
	go func() {
		defer wg.Done()
		manager.Run(ctx, cfg.GetSweepInterval())
		monitoring.Logf("session sweeper terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(manager, attempts).ServeMux()
		server := &http.Server{
			Addr:              addr,
			Handler:           api.LoggingMiddleware(mux),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			monitoring.Logf("%s listening on %s", version.String("soundlab"), addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		monitoring.Logf("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			monitoring.Logf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				monitoring.Logf("HTTP server force close error: %v", err)
			}
		}
		monitoring.Logf("HTTP server routine stopped")
	}()

	wg.Wait()
	monitoring.Logf("Graceful shutdown complete")
}
