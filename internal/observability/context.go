package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey  contextKey = "request_id"
	analysisIDKey contextKey = "analysis_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithAnalysisID adds an analysis ID to the context.
func WithAnalysisID(ctx context.Context, analysisID string) context.Context {
	return context.WithValue(ctx, analysisIDKey, analysisID)
}

// AnalysisIDFromContext retrieves the analysis ID from context.
// Returns empty string if not present.
func AnalysisIDFromContext(ctx context.Context) string {
	return stringValue(ctx, analysisIDKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v := ctx.Value(key); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
