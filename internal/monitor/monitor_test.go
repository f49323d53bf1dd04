package monitor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/OCAP2/markerpack/internal/overlay"
	"github.com/OCAP2/markerpack/pkg/core"
)

var t0 = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	status overlay.Status
	ctx    *core.Context
}

func (f *fakeSource) Status() overlay.Status { return f.status }

func (f *fakeSource) Context() (core.Context, bool) {
	if f.ctx == nil {
		return core.Context{}, false
	}
	return *f.ctx, true
}

func newSource() *fakeSource {
	src := &fakeSource{}
	src.status.Pack.Markers = 12
	src.status.Pack.Trails = 3
	src.status.Pack.Categories = 5
	src.status.QueueLength = 2
	return src
}

func TestSnapshot(t *testing.T) {
	src := newSource()
	svc := NewService(Dependencies{Source: src, Clock: func() time.Time { return t0 }})

	snap := svc.Snapshot()
	assert.Equal(t, t0, snap.Time)
	assert.Nil(t, snap.Context)
	assert.Equal(t, 12, snap.Status.Pack.Markers)

	src.ctx = &core.Context{MapID: 15, Character: "Alice"}
	snap = svc.Snapshot()
	require.NotNil(t, snap.Context)
	assert.Equal(t, uint16(15), snap.Context.MapID)
}

func TestWriteStatus(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(Dependencies{Source: newSource(), Dir: dir, Clock: func() time.Time { return t0 }})

	require.NoError(t, svc.WriteStatus())

	data, err := os.ReadFile(filepath.Join(dir, StatusFile))
	require.NoError(t, err)
	var got Snapshot
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 3, got.Status.Pack.Trails)
	assert.Equal(t, 2, got.Status.QueueLength)
	assert.True(t, got.Time.Equal(t0))
}

func TestWriteStatus_NoDir(t *testing.T) {
	svc := NewService(Dependencies{Source: newSource()})
	assert.NoError(t, svc.WriteStatus())
}

func TestStartStop(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "status")
	svc := NewService(Dependencies{Source: newSource(), Dir: dir, Interval: 10 * time.Millisecond})

	require.NoError(t, svc.Start())
	require.NoError(t, svc.Start())
	assert.True(t, svc.IsRunning())

	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, StatusFile))
		return err == nil
	}, time.Second, 10*time.Millisecond)

	svc.Stop()
	svc.Stop()
	assert.False(t, svc.IsRunning())
}

func TestRegisterMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	svc := NewService(Dependencies{Source: newSource(), Meter: provider.Meter("test")})
	require.NoError(t, svc.RegisterMetrics())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	values := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			gauge, ok := m.Data.(metricdata.Gauge[int64])
			require.True(t, ok, m.Name)
			require.Len(t, gauge.DataPoints, 1)
			values[m.Name] = gauge.DataPoints[0].Value
		}
	}
	assert.Equal(t, map[string]int64{
		"markerpack.markers":            12,
		"markerpack.trails":             3,
		"markerpack.categories":         5,
		"markerpack.activation.live":    0,
		"markerpack.write_queue.length": 2,
	}, values)
}

func TestRegisterMetrics_NoMeter(t *testing.T) {
	svc := NewService(Dependencies{Source: newSource()})
	assert.NoError(t, svc.RegisterMetrics())
}
