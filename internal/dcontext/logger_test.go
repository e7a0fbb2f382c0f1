package dcontext

import "testing"

func TestGetLoggerWithField(t *testing.T) {
	ctx := Background()
	log := GetLoggerWithField(ctx, "archive", "a.zip")
	if log == nil {
		t.Fatal("GetLoggerWithField() returned nil logger")
	}
}

func TestWithLoggerRoundTrip(t *testing.T) {
	ctx := Background()
	log := GetLogger(ctx)
	ctx = WithLogger(ctx, log)
	if GetLogger(ctx) == nil {
		t.Fatal("GetLogger() returned nil after WithLogger")
	}
}
