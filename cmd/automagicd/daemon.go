package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dougsko/automagic/pkg/config"
	"github.com/dougsko/automagic/pkg/engine"
	"github.com/dougsko/automagic/pkg/hardware"
	"github.com/dougsko/automagic/pkg/listener"
	"github.com/dougsko/automagic/pkg/logging"
	"github.com/dougsko/automagic/pkg/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Daemon wires the listeners, the engine and its control surfaces
type Daemon struct {
	configPath string
	configMu   sync.RWMutex
	config     *config.Config

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	store     *storage.BandStore
	ports     *hardware.Manager
	engine    *engine.Engine
	server    *engine.Server
	webServer *http.Server
}

// NewDaemon creates a daemon; nothing is opened until Start
func NewDaemon(cfg *config.Config, configPath string) *Daemon {
	return &Daemon{
		configPath: configPath,
		config:     cfg,
	}
}

func (d *Daemon) currentConfig() *config.Config {
	d.configMu.RLock()
	defer d.configMu.RUnlock()
	return d.config
}

func portConfig(cfg *config.Config) hardware.PortConfig {
	return hardware.PortConfig{
		Device:   cfg.Radio.Device,
		BaudRate: cfg.Radio.BaudRate,
	}
}

func radioSettings(cfg *config.Config) (engine.RadioSettings, error) {
	addr, err := cfg.RadioAddress()
	if err != nil {
		return engine.RadioSettings{}, err
	}
	return engine.RadioSettings{
		Address:      addr,
		EdgeSet:      cfg.Radio.EdgeSet,
		ZoomWidthKHz: cfg.Scope.ZoomWidth,
	}, nil
}

// Start opens the store and the serial port, then starts the listeners,
// the control socket, the web server and the config watcher.
func (d *Daemon) Start(ctx context.Context) error {
	cfg := d.currentConfig()

	rs, err := radioSettings(cfg)
	if err != nil {
		return err
	}

	d.store, err = storage.NewBandStore(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open settings store: %w", err)
	}
	if err := d.store.Load(); err != nil {
		logging.Warnf("daemon", "some stored settings were unreadable, defaults kept: %v", err)
	}

	// A radio that is missing at startup is not fatal; the port can be
	// reset later from the web interface or by editing the config.
	d.ports = hardware.NewManager(portConfig(cfg))
	if err := d.ports.Open(); err != nil {
		logging.Warnf("daemon", "radio not available: %v", err)
	}

	d.engine = engine.New(rs, d.store, d.ports)
	d.engine.SetBarefoot(d.store.GetBool(storage.KeyBarefoot, false))

	ctx, d.cancel = context.WithCancel(ctx)
	d.group, d.ctx = errgroup.WithContext(ctx)

	d.startListeners(cfg)

	d.server = engine.NewServer(d.engine, cfg.API.UnixSocket)
	if err := d.server.Start(); err != nil {
		d.cancel()
		d.group.Wait()
		return fmt.Errorf("failed to start control socket: %w", err)
	}

	d.startWebServer(cfg)

	d.group.Go(func() error {
		err := config.Watch(d.ctx, d.configPath, d.applyConfig, func(err error) {
			logging.Warnf("config", "%v", err)
		})
		if err != nil {
			logging.Warnf("daemon", "config reload disabled: %v", err)
		}
		return nil
	})

	return nil
}

func (d *Daemon) startListeners(cfg *config.Config) {
	var listeners []*listener.Listener
	if cfg.N1MM.Enabled {
		listeners = append(listeners, listener.New("n1mm", cfg.N1MM.Port,
			listener.N1MMDecoder{RadioNr: cfg.N1MM.RadioNr, FreqUnitHz: cfg.N1MM.FreqUnitHz},
			d.engine))
	}
	if cfg.DXLog.Enabled {
		listeners = append(listeners, listener.New("dxlog", cfg.DXLog.Port,
			listener.DXLogDecoder{Station: cfg.DXLog.Station},
			d.engine))
	}
	if len(listeners) == 0 {
		logging.Warn("daemon", "no logger listener enabled, waiting for manual control only")
	}

	for _, l := range listeners {
		l := l
		d.group.Go(func() error {
			if err := l.Run(d.ctx); err != nil {
				return fmt.Errorf("%s listener: %w", l.Name(), err)
			}
			return nil
		})
	}
}

func (d *Daemon) startWebServer(cfg *config.Config) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestLogger(), gin.Recovery())
	d.registerRoutes(router)

	addr := fmt.Sprintf("%s:%d", cfg.Web.BindAddress, cfg.Web.Port)
	d.webServer = &http.Server{
		Addr:    addr,
		Handler: router,
	}

	d.group.Go(func() error {
		logging.Infof("web", "Starting web server on %s", addr)
		if err := d.webServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	})
	d.group.Go(func() error {
		<-d.ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.webServer.Shutdown(ctx); err != nil {
			logging.Warnf("web", "shutdown error: %v", err)
		}
		return nil
	})
}

// requestLogger logs every request through the daemon's logger
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Debugf("web", "%s %s %d %s", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}

// applyConfig takes over a reloaded configuration. Radio and scope settings
// apply immediately; listener and server changes need a restart.
func (d *Daemon) applyConfig(cfg *config.Config) {
	d.configMu.Lock()
	old := d.config
	d.config = cfg
	d.configMu.Unlock()

	logging.Info("daemon", "configuration reloaded")

	if portConfig(cfg) != portConfig(old) {
		if err := d.ports.Reset(portConfig(cfg)); err != nil {
			logging.Warnf("daemon", "radio not available: %v", err)
		}
	}

	rs, err := radioSettings(cfg)
	if err != nil {
		logging.Warnf("daemon", "keeping radio settings: %v", err)
	} else if rs != d.engine.RadioSettings() {
		if err := d.engine.ApplyRadioSettings(rs); err != nil {
			logging.Warnf("daemon", "failed to push new radio settings: %v", err)
		}
	}

	if cfg.N1MM != old.N1MM || cfg.DXLog != old.DXLog || cfg.Web != old.Web ||
		cfg.API != old.API || cfg.Storage != old.Storage {
		logging.Warn("daemon", "listener, web, socket or storage settings changed; restart required")
	}
}

// Done is closed when the daemon stops on its own, for example because a
// listener could not bind its port.
func (d *Daemon) Done() <-chan struct{} {
	return d.ctx.Done()
}

// Stop shuts everything down and flushes the settings store
func (d *Daemon) Stop() error {
	logging.Info("daemon", "Stopping daemon...")

	d.cancel()
	err := d.group.Wait()

	if d.server != nil {
		err = multierr.Append(err, d.server.Stop())
	}

	err = multierr.Append(err, d.engine.Save())
	err = multierr.Append(err, d.store.Close())
	err = multierr.Append(err, d.ports.Close())

	logging.Info("daemon", "Daemon stopped")
	return err
}
