package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/OCAP2/markerpack/internal/overlay"
	"github.com/OCAP2/markerpack/pkg/core"
)

// StatusFile is the name of the status file written to Dir.
const StatusFile = "status.json"

// Source is implemented by *overlay.Service.
type Source interface {
	Status() overlay.Status
	Context() (core.Context, bool)
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Source   Source
	Logger   *slog.Logger
	Meter    metric.Meter // optional
	Dir      string       // status file directory, empty disables the file
	Interval time.Duration
	Clock    func() time.Time
}

// Snapshot is the content of the status file.
type Snapshot struct {
	Time    time.Time      `json:"time"`
	Context *core.Context  `json:"context,omitempty"`
	Status  overlay.Status `json:"status"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Snapshot returns the current program status.
func (s *Service) Snapshot() Snapshot {
	snap := Snapshot{
		Time:   s.deps.Clock(),
		Status: s.deps.Source.Status(),
	}
	if ctx, ok := s.deps.Source.Context(); ok {
		snap.Context = &ctx
	}
	return snap
}

// WriteStatus replaces the status file with the current snapshot.
func (s *Service) WriteStatus() error {
	if s.deps.Dir == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling status: %w", err)
	}
	path := filepath.Join(s.deps.Dir, StatusFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing status: %w", err)
	}
	return os.Rename(tmp, path)
}

// RegisterMetrics exposes pack and queue sizes as observable gauges.
func (s *Service) RegisterMetrics() error {
	if s.deps.Meter == nil {
		return nil
	}
	gauges := []struct {
		name, desc string
		value      func(overlay.Status) int
	}{
		{"markerpack.markers", "Markers in the pack", func(st overlay.Status) int { return st.Pack.Markers }},
		{"markerpack.trails", "Trails in the pack", func(st overlay.Status) int { return st.Pack.Trails }},
		{"markerpack.categories", "Categories in the pack", func(st overlay.Status) int { return st.Pack.Categories }},
		{"markerpack.activation.live", "Activation records not persisted", func(st overlay.Status) int { return st.Pack.Activation.Live }},
		{"markerpack.write_queue.length", "Records waiting to be written", func(st overlay.Status) int { return st.QueueLength }},
	}

	instruments := make([]metric.Observable, 0, len(gauges))
	for _, g := range gauges {
		inst, err := s.deps.Meter.Int64ObservableGauge(g.name, metric.WithDescription(g.desc))
		if err != nil {
			return fmt.Errorf("creating gauge %s: %w", g.name, err)
		}
		instruments = append(instruments, inst)
	}

	_, err := s.deps.Meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		st := s.deps.Source.Status()
		for i, g := range gauges {
			o.ObserveInt64(instruments[i].(metric.Int64Observable), int64(g.value(st)))
		}
		return nil
	}, instruments...)
	if err != nil {
		return fmt.Errorf("registering gauge callback: %w", err)
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if s.deps.Dir != "" {
		if err := os.MkdirAll(s.deps.Dir, 0755); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("creating status directory: %w", err)
		}
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)

		s.deps.Logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.WriteStatus(); err != nil {
					s.deps.Logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
