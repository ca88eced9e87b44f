package core

import "context"

type contextKey string

const (
	ctxKeyIPAddress contextKey = "requester_ip"
	ctxKeyUserAgent contextKey = "requester_ua"
	ctxKeyProgress  contextKey = "progress"
)

// ProgressFunc receives progress reports from long-running service calls.
type ProgressFunc func(stage string, done, total int)

// ContextWithRequester records who started an operation, for job logs.
func ContextWithRequester(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyIPAddress, ip)
	return context.WithValue(ctx, ctxKeyUserAgent, userAgent)
}

// RequesterFromContext returns the IP address and User-Agent stored by
// ContextWithRequester.
func RequesterFromContext(ctx context.Context) (ip, userAgent string) {
	ip, _ = ctx.Value(ctxKeyIPAddress).(string)
	userAgent, _ = ctx.Value(ctxKeyUserAgent).(string)
	return ip, userAgent
}

// ContextWithProgress attaches a progress callback.
func ContextWithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, ctxKeyProgress, fn)
}

// ReportProgress forwards a report to the callback on ctx, if any.
func ReportProgress(ctx context.Context, stage string, done, total int) {
	if fn, ok := ctx.Value(ctxKeyProgress).(ProgressFunc); ok && fn != nil {
		fn(stage, done, total)
	}
}
