// Package influxdb wraps the InfluxDB v2 client as the relay's optional
// telemetry metric sink. Sensor readings from device reports are written
// as non-blocking batched points; SQLite remains the source of truth and
// a sink failure never fails a report save.
package influxdb
