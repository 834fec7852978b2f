// Package proxy implements the QTSP intermediary: a small HTTP server that
// keeps the provider client credentials off the capture devices.
//
// Routes:
//
//	POST /api/qtsp-auth           client-credentials exchange against the login URL
//	ANY  /api/qtsp-proxy?path=... pass-through to <provider base>/<path>
//	GET  /healthz                 liveness
//	GET  /metrics                 Prometheus exposition
//
// Provider failures are returned with the provider's status code and a JSON
// body of the form {"error": "...", "details": "..."}.
package proxy
