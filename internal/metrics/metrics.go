// Package metrics records session lifecycle outcomes as OpenTelemetry counters.
package metrics

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/dtroode/authkeeper-server/internal/model"
)

const (
	ScopeName = "github.com/dtroode/authkeeper-server"

	LoginCounter   = "authkeeper.login"
	RefreshCounter = "authkeeper.refresh"
	GuardCounter   = "authkeeper.guard"
)

// Recorder implements model.Recorder.
type Recorder struct {
	login   metric.Int64Counter
	refresh metric.Int64Counter
	guard   metric.Int64Counter
}

var _ model.Recorder = (*Recorder)(nil)

// NewRecorder creates the counters on meter.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	login, err := meter.Int64Counter(LoginCounter, metric.WithDescription("Login attempts by outcome"))
	if err != nil {
		return nil, fmt.Errorf("create counter %s: %w", LoginCounter, err)
	}
	refresh, err := meter.Int64Counter(RefreshCounter, metric.WithDescription("Refresh attempts by grant and outcome"))
	if err != nil {
		return nil, fmt.Errorf("create counter %s: %w", RefreshCounter, err)
	}
	guard, err := meter.Int64Counter(GuardCounter, metric.WithDescription("Route guard decisions by outcome"))
	if err != nil {
		return nil, fmt.Errorf("create counter %s: %w", GuardCounter, err)
	}

	return &Recorder{login: login, refresh: refresh, guard: guard}, nil
}

func (r *Recorder) RecordLogin(ctx context.Context, outcome string) {
	r.login.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (r *Recorder) RecordRefresh(ctx context.Context, grant, outcome string) {
	r.refresh.Add(ctx, 1, metric.WithAttributes(
		attribute.String("grant", grant),
		attribute.String("outcome", outcome),
	))
}

func (r *Recorder) RecordGuard(ctx context.Context, outcome string) {
	r.guard.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Point is one counter series.
type Point struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes"`
	Value      int64             `json:"value"`
}

// Collector reads the current counter values from an in-process reader.
type Collector struct {
	reader sdkmetric.Reader
}

// NewLocalProvider builds a meter provider backed by a manual reader, so
// counters can be served without an external exporter.
func NewLocalProvider() (*sdkmetric.MeterProvider, *Collector) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return provider, &Collector{reader: reader}
}

// Snapshot collects all int64 sum series, sorted by name then attributes.
func (c *Collector) Snapshot(ctx context.Context) ([]Point, error) {
	var rm metricdata.ResourceMetrics
	if err := c.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}

	var points []Point
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				attrs := make(map[string]string, dp.Attributes.Len())
				for _, kv := range dp.Attributes.ToSlice() {
					attrs[string(kv.Key)] = kv.Value.Emit()
				}
				points = append(points, Point{Name: m.Name, Attributes: attrs, Value: dp.Value})
			}
		}
	}

	sort.Slice(points, func(i, j int) bool {
		if points[i].Name != points[j].Name {
			return points[i].Name < points[j].Name
		}
		return fmt.Sprint(points[i].Attributes) < fmt.Sprint(points[j].Attributes)
	})
	return points, nil
}

// Nop discards everything.
type Nop struct{}

var _ model.Recorder = Nop{}

func (Nop) RecordLogin(context.Context, string)           {}
func (Nop) RecordRefresh(context.Context, string, string) {}
func (Nop) RecordGuard(context.Context, string)           {}
