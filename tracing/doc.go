// Package tracing wraps OpenTelemetry spans for the trip manager. Spans are
// no-ops until Init or InitWithExporter installs a provider.
package tracing
