// Package influxdb is a narrow read-only client for the external telemetry
// store. Devices publish telemetry to the broker, a separate ingestion agent
// writes it into InfluxDB; this package only answers one question — which of
// a device's sensor fields have reported recently — for the admin API.
package influxdb
