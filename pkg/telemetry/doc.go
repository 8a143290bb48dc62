// Package telemetry bundles the observability concerns of Flowport:
// structured logging (zerolog), Prometheus metrics, OpenTelemetry tracing,
// and the in-process progress event bus that feeds CLI output.
package telemetry
