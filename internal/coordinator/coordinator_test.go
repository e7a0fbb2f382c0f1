package coordinator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gdelt-collective/ingest/ingest"
)

func TestParseManifest(t *testing.T) {
	body := "47284 111 http://data.gdeltproject.org/gdeltv2/20250323151500.translation.export.CSV.zip\n" +
		"80433 222 http://data.gdeltproject.org/gdeltv2/20250323151500.translation.mentions.CSV.zip\n" +
		"\n" +
		"123 h1\n"

	descriptors, malformed := parseManifest(body)
	if malformed != 1 {
		t.Fatalf("malformed = %d, want 1", malformed)
	}
	if len(descriptors) != 2 {
		t.Fatalf("len(descriptors) = %d, want 2", len(descriptors))
	}
	if descriptors[0].FileName != "20250323151500.translation.export.CSV.zip" {
		t.Fatalf("descriptors[0].FileName = %q", descriptors[0].FileName)
	}
	if descriptors[0].SizeBytes != 47284 {
		t.Fatalf("descriptors[0].SizeBytes = %d, want 47284", descriptors[0].SizeBytes)
	}
	if descriptors[0].ExpectedHash != "111" {
		t.Fatalf("descriptors[0].ExpectedHash = %q, want %q", descriptors[0].ExpectedHash, "111")
	}
}

func TestParseManifestEmpty(t *testing.T) {
	descriptors, malformed := parseManifest("")
	if len(descriptors) != 0 || malformed != 0 {
		t.Fatalf("parseManifest(\"\") = %v, %d, want empty", descriptors, malformed)
	}
}

func TestFilterSupported(t *testing.T) {
	in := []ingest.ArchiveDescriptor{
		{FileName: "a.translation.export.CSV.zip", URL: "http://x/a.translation.export.CSV.zip"},
		{FileName: "a.unsupported.zip", URL: "http://x/a.unsupported.zip"},
	}
	out := filterSupported(in)
	if len(out) != 1 {
		t.Fatalf("filterSupported() returned %d entries, want 1", len(out))
	}
	if out[0].FileName != "a.translation.export.CSV.zip" {
		t.Fatalf("filterSupported() kept %q", out[0].FileName)
	}
}

type fakeHashStore struct {
	changed map[string]bool
}

func (f *fakeHashStore) IsNewOrChanged(ctx context.Context, archiveName, hash string) (bool, error) {
	return f.changed[archiveName], nil
}

type fakeProcessor struct {
	fail map[string]bool
}

func (f *fakeProcessor) Process(ctx context.Context, d ingest.ArchiveDescriptor) ingest.ArchiveResult {
	if f.fail[d.FileName] {
		return ingest.ArchiveResult{Descriptor: d, Err: errors.New("boom")}
	}
	return ingest.ArchiveResult{Descriptor: d, ProducedURLs: []string{"url-" + d.FileName}}
}

func TestTickHappyPath(t *testing.T) {
	manifest := "47284 111 http://data.gdeltproject.org/gdeltv2/20250323151500.translation.export.CSV.zip\n" +
		"80433 222 http://data.gdeltproject.org/gdeltv2/20250323151500.translation.mentions.CSV.zip\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(manifest))
	}))
	defer srv.Close()

	hashStore := &fakeHashStore{changed: map[string]bool{
		"20250323151500.translation.export.CSV.zip":   true,
		"20250323151500.translation.mentions.CSV.zip": true,
	}}
	proc := &fakeProcessor{fail: map[string]bool{}}

	c := New(srv.Client(), srv.URL, hashStore, proc)
	results, err := c.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Tick() returned %d results, want 2", len(results))
	}
	for _, r := range results {
		if !r.Success() {
			t.Fatalf("archive %s unexpectedly failed: %v", r.Descriptor.FileName, r.Err)
		}
	}
}

func TestTickIsolatesFailure(t *testing.T) {
	manifest := "47284 111 http://data.gdeltproject.org/gdeltv2/a.translation.export.CSV.zip\n" +
		"80433 222 http://data.gdeltproject.org/gdeltv2/b.translation.mentions.CSV.zip\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(manifest))
	}))
	defer srv.Close()

	hashStore := &fakeHashStore{changed: map[string]bool{
		"a.translation.export.CSV.zip":   true,
		"b.translation.mentions.CSV.zip": true,
	}}
	proc := &fakeProcessor{fail: map[string]bool{"a.translation.export.CSV.zip": true}}

	c := New(srv.Client(), srv.URL, hashStore, proc)
	results, err := c.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	successCount := 0
	for _, r := range results {
		if r.Success() {
			successCount++
		}
	}
	if successCount != 1 {
		t.Fatalf("successCount = %d, want 1", successCount)
	}
}

func TestTickManifestFetchFailurePropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL, &fakeHashStore{changed: map[string]bool{}}, &fakeProcessor{})
	_, err := c.Tick(context.Background())
	if err == nil {
		t.Fatal("Tick() expected error on manifest fetch failure")
	}
}

func TestTickUnsupportedLineSkipped(t *testing.T) {
	manifest := "123 h1 http://data.gdeltproject.org/gdeltv2/x.translation.export.CSV.zip\n" +
		"123 h2 http://data.gdeltproject.org/gdeltv2/x.unsupported.zip\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(manifest))
	}))
	defer srv.Close()

	hashStore := &fakeHashStore{changed: map[string]bool{"x.translation.export.CSV.zip": true}}
	proc := &fakeProcessor{fail: map[string]bool{}}

	c := New(srv.Client(), srv.URL, hashStore, proc)
	results, err := c.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Tick() returned %d results, want 1", len(results))
	}
}
