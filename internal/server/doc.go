// Package server exposes an engine over HTTP with gin.
//
// Routes:
//
//	GET  /health                 liveness probe
//	GET  /nodes                  node types with JSON Schema ports
//	POST /compatibility          {source, target} shape texts -> {compatible, faulty}
//	POST /jobs                   submit a project; ?run=true starts it immediately
//	GET  /jobs/:id               job record
//	GET  /jobs/:id/events        server-sent event stream; attaching starts the run
//	POST /jobs/:id/terminate     stop a job with an optional {reason}
//
// Every JSON response uses the [APIResponse] envelope.
package server
