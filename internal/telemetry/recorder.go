package telemetry

import (
	"context"

	"github.com/simrelay/simrelay/internal/infrastructure/logging"
)

// MetricSink receives the numeric readings of a report as time-series
// points. The influxdb wrapper implements it; a nil sink disables the
// shadow write.
type MetricSink interface {
	WriteReport(ctx context.Context, report Report) error
}

// Recorder persists reports and shadows their readings to an optional
// metric sink. SQLite is the source of truth: a sink failure is logged
// and does not fail the save.
type Recorder struct {
	repo   Repository
	sink   MetricSink
	logger *logging.Logger
}

// NewRecorder creates a recorder. sink may be nil.
func NewRecorder(repo Repository, sink MetricSink, logger *logging.Logger) *Recorder {
	return &Recorder{repo: repo, sink: sink, logger: logger}
}

// Save appends report to storage and, when a sink is configured, writes
// its readings as metric points.
func (r *Recorder) Save(ctx context.Context, report Report) error {
	if err := r.repo.Insert(ctx, report); err != nil {
		return err
	}

	if r.sink != nil {
		if err := r.sink.WriteReport(ctx, report); err != nil {
			r.logger.Warn("metric sink write failed", "device_id", report.DeviceID, "error", err)
		}
	}

	r.logger.Info("report saved", "device_id", report.DeviceID, "type", report.Type)
	return nil
}
