package common

type contextKey string

const (
	RequestIDContextKey   contextKey = "request_id"
	RouteContextKey       contextKey = "route"
	ForwardPathContextKey contextKey = "forward_path"
	LatencyContextKey     contextKey = "__execution_time"
	SkipAccessLogKey      contextKey = "__skip_access_log"
)
