package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dougsko/automagic/pkg/config"
	"github.com/dougsko/automagic/pkg/logging"
	"github.com/dougsko/automagic/pkg/verbose"
	flag "github.com/spf13/pflag"
)

var (
	configPath = flag.StringP("config", "c", config.DefaultConfigPath(), "Configuration file path")
	version    = flag.BoolP("version", "v", false, "Show version information")
	debug      = flag.BoolP("debug", "d", false, "Log at debug level")
	trace      = flag.Bool("verbose", false, "Hex dump every received datagram and written frame")
)

const (
	Version = "0.1.0-dev"
	Build   = "development"
)

// loadConfig reads path, writing a default configuration there on first run.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.DefaultConfig()
		if err := cfg.Save(path); err != nil {
			return nil, err
		}
		log.Printf("Wrote default configuration to %s", path)
		return cfg, nil
	}
	return cfg, err
}

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("automagicd version %s (%s)\n", Version, Build)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if *debug {
		cfg.Logging.Level = "debug"
	}

	// Initialize logging system
	if err := logging.InitGlobalLogger(cfg); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseGlobalLogger()
	verbose.SetEnabled(*trace)

	logging.Infof("main", "automagicd version %s starting...", Version)
	logging.Infof("main", "Radio: %s on %q", cfg.Radio.Model, cfg.Radio.Device)
	logging.Infof("main", "Web interface: http://%s:%d", cfg.Web.BindAddress, cfg.Web.Port)

	daemon := NewDaemon(cfg, *configPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := daemon.Start(ctx); err != nil {
		logging.Errorf("main", "Failed to start daemon: %v", err)
		os.Exit(1)
	}

	logging.Info("main", "automagicd started successfully")

	// Wait for a shutdown signal or a failed listener
	select {
	case <-ctx.Done():
		logging.Info("main", "Shutting down...")
	case <-daemon.Done():
		logging.Warn("main", "A component stopped, shutting down...")
	}

	if err := daemon.Stop(); err != nil {
		logging.Errorf("main", "Error during shutdown: %v", err)
		logging.CloseGlobalLogger()
		os.Exit(1)
	}

	logging.Info("main", "automagicd stopped")
}
