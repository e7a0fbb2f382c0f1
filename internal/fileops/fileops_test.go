package fileops

import (
	"archive/zip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestDownload(t *testing.T) {
	const body = "archive contents"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	dir := t.TempDir()
	target := filepath.Join(dir, "sub", "archive.zip")

	path, err := Download(context.Background(), srv.Client(), srv.URL, target)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if path != target {
		t.Fatalf("Download() path = %q, want %q", path, target)
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(got) != body {
		t.Fatalf("downloaded content = %q, want %q", got, body)
	}

	entries, err := os.ReadDir(filepath.Dir(target))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != filepath.Base(target) {
			t.Fatalf("leftover temp file found: %s", e.Name())
		}
	}
}

func TestDownloadNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	_, err := Download(context.Background(), srv.Client(), srv.URL, filepath.Join(dir, "a.zip"))
	if err == nil {
		t.Fatal("Download() expected error for 404 response")
	}
}

func TestMD5(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	got, err := MD5(path)
	if err != nil {
		t.Fatalf("MD5() error = %v", err)
	}
	const want = "5eb63bbbe01eeed093cb22bb8f5acdc3"
	if got != want {
		t.Fatalf("MD5() = %s, want %s", got, want)
	}
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
}

func TestExtractZip(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "archive.zip")
	writeZip(t, zipPath, map[string]string{
		"a.csv":     "a-contents",
		"sub/b.csv": "b-contents",
	})

	targetDir := filepath.Join(dir, "extracted")
	written, err := ExtractZip(zipPath, targetDir)
	if err != nil {
		t.Fatalf("ExtractZip() error = %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("ExtractZip() wrote %d files, want 2", len(written))
	}

	got, err := os.ReadFile(filepath.Join(targetDir, "a.csv"))
	if err != nil {
		t.Fatalf("read extracted a.csv: %v", err)
	}
	if string(got) != "a-contents" {
		t.Fatalf("a.csv content = %q, want %q", got, "a-contents")
	}
}

func TestExtractZipDirectoryEntry(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "archive.zip")
	writeZip(t, zipPath, map[string]string{
		"empty/": "",
	})

	targetDir := filepath.Join(dir, "extracted")
	written, err := ExtractZip(zipPath, targetDir)
	if err != nil {
		t.Fatalf("ExtractZip() error = %v", err)
	}
	if len(written) != 0 {
		t.Fatalf("ExtractZip() wrote %d files for directory-only entry, want 0", len(written))
	}
	if info, err := os.Stat(filepath.Join(targetDir, "empty")); err != nil || !info.IsDir() {
		t.Fatalf("expected directory %q to be created", "empty")
	}
}

func TestExtractZipTraversal(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "evil.zip")
	writeZip(t, zipPath, map[string]string{
		"../../etc/passwd": "pwned",
	})

	targetDir := filepath.Join(dir, "extracted")
	_, err := ExtractZip(zipPath, targetDir)
	if err == nil {
		t.Fatal("ExtractZip() expected ZipTraversalError for escaping entry")
	}
}

func TestEnsureDirIdempotent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a", "b")

	if _, err := EnsureDir(target); err != nil {
		t.Fatalf("EnsureDir() first call error = %v", err)
	}
	if _, err := EnsureDir(target); err != nil {
		t.Fatalf("EnsureDir() second call error = %v", err)
	}
}

func TestEnsureDirRejectsFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notadir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if _, err := EnsureDir(file); err == nil {
		t.Fatal("EnsureDir() expected error for existing non-directory path")
	}
}
