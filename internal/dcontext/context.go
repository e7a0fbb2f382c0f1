package dcontext

import "context"

type versionKey struct{}

// Background returns a non-nil, empty root context, the same way
// context.Background does, kept as the single entry point callers use to
// build up the request/tick-scoped context chain.
func Background() context.Context {
	return context.Background()
}

// WithVersion returns a context with the application version attached,
// picked up by GetLogger via the "version" key.
func WithVersion(ctx context.Context, version string) context.Context {
	ctx = context.WithValue(ctx, versionKey{}, version)
	return WithLogger(ctx, GetLoggerWithField(ctx, "version", version))
}

// GetVersion returns the version set by WithVersion, or "" if none was set.
func GetVersion(ctx context.Context) string {
	if v, ok := ctx.Value(versionKey{}).(string); ok {
		return v
	}
	return ""
}
