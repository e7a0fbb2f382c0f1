package ingest

import "fmt"

// TransportError is returned for manifest-fetch or archive-download
// failures: non-2xx responses, socket failures, or timeouts. The request is
// not retried; the error is returned on the first failed attempt.
type TransportError struct {
	URL    string
	Status int
	Cause  error
}

func (e TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport error fetching %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("transport error fetching %s: %v", e.URL, e.Cause)
}

func (e TransportError) Unwrap() error { return e.Cause }

// IntegrityError is returned when a downloaded archive's computed MD5 does
// not match the manifest's expected hash. It is not retried automatically;
// the archive becomes eligible again on the next scheduled tick.
type IntegrityError struct {
	FileName string
	Computed string
	Expected string
}

func (e IntegrityError) Error() string {
	return fmt.Sprintf("hash mismatch for %s: %s != %s", e.FileName, e.Computed, e.Expected)
}

// ZipTraversalError is raised when a ZIP entry's normalized path would
// escape the extraction root (Zip-Slip). It is fatal for the archive; no
// member is written for it.
type ZipTraversalError struct {
	EntryName string
	TargetDir string
}

func (e ZipTraversalError) Error() string {
	return fmt.Sprintf("zip entry %q escapes extraction root %q", e.EntryName, e.TargetDir)
}

// ExtractionError wraps any other failure encountered while unpacking an
// archive (malformed central directory, I/O fault mid-copy, and so on).
type ExtractionError struct {
	Path  string
	Cause error
}

func (e ExtractionError) Error() string {
	return fmt.Sprintf("extraction error for %s: %v", e.Path, e.Cause)
}

func (e ExtractionError) Unwrap() error { return e.Cause }

// StorageError is returned by ObjectStore operations. An upload-time
// StorageError triggers a best-effort rollback of prior uploads for the
// same archive.
type StorageError struct {
	Op     string
	Object string
	Cause  error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("object store %s failed for %s: %v", e.Op, e.Object, e.Cause)
}

func (e StorageError) Unwrap() error { return e.Cause }

// StatusStoreError is non-fatal for the pipeline: it is logged, and
// eventual consistency is restored by a future RetryScheduler sweep or
// upstream re-announcement.
type StatusStoreError struct {
	Op    string
	Key   string
	Cause error
}

func (e StatusStoreError) Error() string {
	return fmt.Sprintf("status store %s failed for %s: %v", e.Op, e.Key, e.Cause)
}

func (e StatusStoreError) Unwrap() error { return e.Cause }

// ClassificationError is returned by TopicResolver when an archive's file
// name does not match any recognized pattern. The Listener drops the
// event; the archive's hash may already have been committed, and since no
// URL was registered the retry loop cannot recover it (§4.7, §9 Open
// Questions).
type ClassificationError struct {
	FileName string
}

func (e ClassificationError) Error() string {
	return fmt.Sprintf("no topic classification for archive %q", e.FileName)
}
