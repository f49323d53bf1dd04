package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/OCAP2/markerpack/internal/config"
	"github.com/OCAP2/markerpack/internal/dispatcher"
	"github.com/OCAP2/markerpack/internal/handlers"
	"github.com/OCAP2/markerpack/internal/logging"
	"github.com/OCAP2/markerpack/internal/monitor"
	intOtel "github.com/OCAP2/markerpack/internal/otel"
	"github.com/OCAP2/markerpack/internal/overlay"
	"github.com/OCAP2/markerpack/internal/packio"
	"github.com/OCAP2/markerpack/internal/parser"
	"github.com/OCAP2/markerpack/internal/session"
	"github.com/OCAP2/markerpack/internal/storage"
	"github.com/OCAP2/markerpack/internal/storage/memory"
)

const shutdownTimeout = 10 * time.Second

// app owns every long-lived component of a serve run.
type app struct {
	logManager *logging.SlogManager
	logger     *slog.Logger
	files      []*os.File
	telemetry  *intOtel.Provider
	store      storage.Store
	service    *overlay.Service
	monitor    *monitor.Service
	dispatcher *dispatcher.Dispatcher
}

func (a *app) openFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	a.files = append(a.files, f)
	return f, nil
}

// setupLogging returns the writer every log destination shares. stdout
// carries command responses, so logs never go there.
func (a *app) setupLogging(stderr io.Writer, sess *session.Context) (io.Writer, error) {
	var out io.Writer = stderr
	logsDir := config.GetString("logsDir")
	if logsDir != "" {
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs directory: %w", err)
		}
		f, err := a.openFile(logging.LogFilePath(logsDir, BinaryName, time.Now()))
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		out = f
	}

	ocfg := config.GetOtelConfig()
	tcfg := intOtel.Config{
		Enabled:        ocfg.Enabled,
		ServiceName:    ocfg.ServiceName,
		ExportInterval: ocfg.ExportInterval,
	}
	if ocfg.Enabled {
		dir := logsDir
		if dir == "" {
			dir = "."
		}
		logs, err := a.openFile(filepath.Join(dir, BinaryName+".otel-logs.jsonl"))
		if err != nil {
			return nil, fmt.Errorf("opening OTel log file: %w", err)
		}
		metrics, err := a.openFile(filepath.Join(dir, BinaryName+".otel-metrics.jsonl"))
		if err != nil {
			return nil, fmt.Errorf("opening OTel metric file: %w", err)
		}
		tcfg.LogWriter, tcfg.MetricWriter = logs, metrics
	}
	telemetry, err := intOtel.New(tcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OTel: %w", err)
	}
	a.telemetry = telemetry

	a.logManager = logging.NewSlogManager()
	a.logManager.ContextProvider = sess.LogAttrs
	a.logManager.Setup(out, config.GetString("logLevel"), telemetry.LoggerProvider())
	a.logger = a.logManager.Logger()
	return out, nil
}

// loadContent reads the pack directory. A directory without a manifest
// starts an empty pack.
func (a *app) loadContent(dir string) (overlay.Content, error) {
	content, entityErrs, err := packio.LoadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		a.logger.Warn("No marker pack found, starting empty", "dir", dir)
		return overlay.Content{}, nil
	}
	if err != nil {
		return content, fmt.Errorf("loading pack %s: %w", dir, err)
	}
	for _, e := range entityErrs {
		a.logger.Warn("Skipped pack entity", "entity", e.Entity, "error", e.Err)
	}
	return content, nil
}

func newApp(ctx context.Context, stderr io.Writer) (*app, error) {
	a := &app{}
	sess := session.NewContext()

	logOut, err := a.setupLogging(stderr, sess)
	if err != nil {
		a.closeFiles()
		return nil, err
	}
	level := config.GetString("logLevel")
	a.logger.Info("Starting up...", "version", CurrentVersion, "build", BuildDate)

	storageCfg := config.GetStorageConfig()
	a.store, err = initStore(storageCfg, logging.NewZerolog(logOut, level, "storage"))
	if err != nil {
		_ = a.shutdown()
		return nil, err
	}

	account := config.GetString("account")
	data, err := a.store.LoadAccount(ctx, account)
	if err != nil {
		_ = a.shutdown()
		return nil, fmt.Errorf("loading account %q: %w", account, err)
	}

	packDir := config.GetString("packDir")
	content, err := a.loadContent(packDir)
	if err != nil {
		_ = a.shutdown()
		return nil, err
	}
	pack, packErrs := overlay.NewPack(account, data, content)
	for _, e := range packErrs {
		a.logger.Warn("Skipped pack entity", "error", e)
	}
	stats := pack.Stats()
	a.logger.Info("Marker pack loaded", "dir", packDir,
		"categories", stats.Categories, "markers", stats.Markers, "trails", stats.Trails)

	a.service = overlay.NewService(pack, overlay.Dependencies{
		Store:         a.store,
		Session:       sess,
		Logger:        a.logger,
		FlushInterval: storageCfg.FlushInterval,
	})
	a.service.Start()

	a.monitor = monitor.NewService(monitor.Dependencies{
		Source:   a.service,
		Logger:   a.logger,
		Meter:    a.telemetry.Meter("github.com/OCAP2/markerpack/internal/monitor"),
		Dir:      config.GetString("status.dir"),
		Interval: config.GetDuration("status.interval"),
	})
	if err := a.monitor.RegisterMetrics(); err != nil {
		a.logger.Warn("Failed to register status metrics", "error", err)
	}
	if err := a.monitor.Start(); err != nil {
		a.logger.Warn("Status monitor not started", "error", err)
	}

	a.dispatcher, err = dispatcher.New(logging.NewDispatcherLogger(logging.NewZerolog(logOut, level, "dispatcher")))
	if err != nil {
		_ = a.shutdown()
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	h, err := handlers.New(handlers.Dependencies{
		Service:   a.service,
		Parser:    parser.NewParser(a.logger),
		Logger:    a.logger,
		Telemetry: a.telemetry,
		PackDir:   packDir,
		Version:   CurrentVersion,
		BuildDate: BuildDate,
	})
	if err != nil {
		_ = a.shutdown()
		return nil, err
	}
	h.RegisterHandlers(a.dispatcher)

	return a, nil
}

// shutdown stops components in reverse start order and writes every
// pending activation record.
func (a *app) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.service != nil {
		if err := a.service.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("saving activation data: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing storage: %w", err))
		}
	}
	if a.logger != nil {
		a.logger.Info("Shut down", "errors", len(errs))
	}
	if a.logManager != nil {
		if err := a.logManager.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closeFiles()
	return errors.Join(errs...)
}

func (a *app) closeFiles() {
	for _, f := range a.files {
		_ = f.Close()
	}
	a.files = nil
}

// commandList returns the commands serve accepts.
func commandList() []string {
	pack, _ := overlay.NewPack("", nil, overlay.Content{})
	svc := overlay.NewService(pack, overlay.Dependencies{Store: memory.New(config.MemoryConfig{}, zerolog.Nop())})
	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	if err != nil {
		return nil
	}
	defer d.Close()
	h, err := handlers.New(handlers.Dependencies{Service: svc})
	if err != nil {
		return nil
	}
	h.RegisterHandlers(d)
	return d.Commands()
}
