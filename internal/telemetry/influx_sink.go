package telemetry

import (
	"context"
	"time"

	"github.com/simrelay/simrelay/internal/infrastructure/influxdb"
)

// InfluxSink implements MetricSink over the InfluxDB wrapper. Report
// timestamps are parsed when present; unparseable or missing timestamps
// fall back to the ingest time.
type InfluxSink struct {
	client *influxdb.Client
}

// NewInfluxSink wraps client as a metric sink.
func NewInfluxSink(client *influxdb.Client) *InfluxSink {
	return &InfluxSink{client: client}
}

// WriteReport writes the report's readings as a telemetry point.
func (s *InfluxSink) WriteReport(_ context.Context, report Report) error {
	ts := time.Now().UTC()
	if report.TS != "" {
		if parsed, err := time.Parse(time.RFC3339, report.TS); err == nil {
			ts = parsed
		}
	}

	s.client.WriteTelemetry(report.DeviceID, report.TempValue(), report.HumidityValue(), ts)
	return nil
}
