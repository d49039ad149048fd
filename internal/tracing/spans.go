package tracing

// Span attribute keys.
const (
	AttrHTTPMethod     = "http.method"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.status_code"
	AttrRequestID      = "request.id"

	AttrResourceID      = "resource.id"
	AttrResourceVersion = "resource.version"
	AttrRequestedVer    = "resource.requested_version"
	AttrWakeReason      = "wake.reason"

	AttrErrorCode = "error.code"
)

// Span name prefixes.
const (
	SpanPrefixServer = "http.server "
	SpanPrefixClient = "http.client "
)

// Event names.
const (
	EventWaitStarted   = "wait.started"
	EventWaitFinished  = "wait.finished"
	EventCacheHit      = "cache.hit"
	EventRecordWritten = "record.written"
)
