package dcontext

import "context"

// DetachedContext returns a context that will not be canceled when the
// parent context is canceled. Used for work that must run to completion
// even after the request or tick that started it has ended, e.g. the
// bounded HTTP server shutdown in cmd/gdelt-ingest after the run context
// has been canceled.
func DetachedContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
