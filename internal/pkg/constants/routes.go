package constants

// Static route constants
const (
	APIPrefix   = "/api/v1"
	AdminPrefix = "/admin"
	// Metrics endpoint exposed outside the API prefix
	MetricsRoute = "/metrics"
)
