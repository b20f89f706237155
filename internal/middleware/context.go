// Package middleware provides the HTTP middleware chain of the provider
// search API: request ids, structured logging, metrics, tracing, CORS,
// rate limiting and admin authentication.
package middleware

import "context"

type (
	subjectKey   struct{}
	errorCodeKey struct{}
	requestIDKey struct{}
)

// SetSubject stores the authenticated token subject in the context.
func SetSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// GetSubject returns the token subject, or "" for anonymous requests.
func GetSubject(ctx context.Context) string {
	sub, _ := ctx.Value(subjectKey{}).(string)
	return sub
}

// SetErrorCode stores the API error code of the response being written.
// Pair it with UpdateResponseContext so the request log sees it.
func SetErrorCode(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, errorCodeKey{}, code)
}

// GetErrorCode returns the error code stored by SetErrorCode.
func GetErrorCode(ctx context.Context) string {
	code, _ := ctx.Value(errorCodeKey{}).(string)
	return code
}

// GetRequestID returns the id assigned by RequestID.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
