// Package engine executes submitted projects.
//
// An Engine owns the builtin node definitions and handlers, the converter
// registry and the registered integrations. Submit turns a project into a Job;
// Job.Run evaluates every terminator node and reports progress through the
// job's event stream.
//
// Evaluation is demand driven: a node evaluates its dependencies first,
// converting each value along the edge to the declared input type. Results are
// memoized per job and concurrent requests for the same node share one
// in-flight evaluation. When an input carries a sequence (the output of a
// generator node, or of a node fanned out over one), the handler runs once
// per element and the results are concatenated in order. Several inputs that
// follow the same generator advance together.
//
// Before any handler runs, the job checks the reachable graph for missing
// definitions and handlers, dangling references, incompatible edges, cycles
// and nodes that would have to combine two unrelated sequences.
package engine
