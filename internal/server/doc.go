// Package server exposes the lead automation over HTTP.
//
// # Endpoints
//
// The trigger server is a chi router:
//   - GET  /                 plain-text liveness banner
//   - POST /run              runs the automation once and reports the outcome
//   - GET  /healthz          liveness probe
//   - GET  /readyz           readiness probe
//   - GET  /healthz/detailed uptime and last run
//
// POST /run answers {"status":"success","message":...,"summary":{...}} with
// 200, or {"status":"error","message":...} with 500. A request that arrives
// while a run is in progress gets 409.
//
// Prometheus metrics are served by MetricsServer on a separate port so
// they are not exposed next to the trigger.
package server
