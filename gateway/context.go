package gateway

import "context"

type contextKey string

const contextKeyRequestID contextKey = "requestID"

// RequestIDFromContext returns the request id assigned by the gateway, if any.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}
