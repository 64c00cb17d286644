// Package instrumentation provides OpenTelemetry metrics and tracing for
// leadflow.
//
// # Metrics
//
//   - leadflow_runs_total / leadflow_run_duration_seconds: automation runs by status
//   - leadflow_leads_classified_total: leads by chosen action (welcome, follow_up, none)
//   - leadflow_emails_total: emails by kind (welcome, follow_up, summary) and status
//   - google_api_operations_total / google_api_operation_duration_seconds:
//     Sheets and Gmail calls by service, operation and status
//   - http_requests_total / http_request_duration_seconds: trigger endpoint traffic
//
// # Tracing
//
// Each run is a "leadflow.run" span; Google API calls are child spans named
// "google.<service>.<operation>".
//
// # Configuration
//
// DefaultConfig reads INSTRUMENTATION_ENABLED, METRICS_EXPORTER (prometheus,
// otlp, stdout), TRACING_EXPORTER (otlp, stdout, none),
// OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE,
// OTEL_TRACES_SAMPLER_ARG and OTEL_SERVICE_NAME.
package instrumentation
