package observability

// Attribute keys, span names and metric names shared by nodeflow components.

// --- General ---

const (
	AttrError             = "error"
	AttrStatus            = "status"
	AttrStatusDescription = "status.description"
	AttrErrorCode         = "error.code"
)

// --- Jobs ---

const (
	AttrJobID          = "job.id"
	AttrJobState       = "job.state"
	AttrJobReason      = "job.reason"
	AttrJobNodeCount   = "job.node_count"
	AttrJobTerminators = "job.terminators"
	AttrJobArtifacts   = "job.artifacts"
)

// --- Nodes ---

const (
	AttrNodeID          = "node.id"
	AttrNodeType        = "node.type"
	AttrNodePurpose     = "node.purpose"
	AttrNodeCached      = "node.cached"
	AttrNodeFanOut      = "node.fan_out"
	AttrNodeInvocations = "node.invocations"
	AttrNodeField       = "node.field"
	AttrNodeOutputs     = "node.outputs"
)

// --- Types and converters ---

const (
	AttrTypeSource = "type.source"
	AttrTypeTarget = "type.target"
	AttrTypeFaulty = "type.faulty"
)

// --- Integrations ---

const (
	AttrIntegrationID = "integration.id"
	AttrResourceID    = "integration.resource_id"
	AttrResourceCount = "integration.resource_count"
)

// --- HTTP ---

const (
	AttrHTTPMethod           = "http.method"
	AttrHTTPURL              = "http.url"
	AttrHTTPRoute            = "http.route"
	AttrHTTPStatusCode       = "http.status_code"
	AttrHTTPResponseBodySize = "http.response.body_size"
	AttrHTTPDuration         = "http.duration"
)

// --- Storage ---

const (
	AttrStoreBackend = "store.backend"
	AttrStoreTable   = "store.table"
)

// --- Span names ---

const (
	SpanJobRun          = "job.run"
	SpanJobPreflight    = "job.preflight"
	SpanNodeEvaluate    = "node.evaluate"
	SpanIntegrationInit = "integration.setup"
	SpanHTTPRequest     = "http.request"
)

// --- Span events ---

const (
	EventNodeCacheHit       = "node.cache_hit"
	EventNodeFanOut         = "node.fan_out"
	EventConversionFailed   = "conversion.failed"
	EventHandlerInvoked     = "handler.invoked"
	EventNotificationDrop   = "notification.dropped"
	EventHTTPRequestSent    = "http.request.sent"
	EventHTTPResponse       = "http.response.received"
	EventHTTPRequestFailure = "http.request.error"
)

// --- Metric names ---

const (
	MetricJobCount            = "nodeflow.job.count"
	MetricJobDuration         = "nodeflow.job.duration"
	MetricNodeCount           = "nodeflow.node.count"
	MetricNodeDuration        = "nodeflow.node.duration"
	MetricConversionFailures  = "nodeflow.conversion.failures"
	MetricNotificationsDrop   = "nodeflow.notifications.dropped"
	MetricHTTPRequestDuration = "nodeflow.http.request.duration"
)
