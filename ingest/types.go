// Package ingest defines the core data types and error kinds shared across
// the ingestion pipeline's components (FileOps, HashStore, StatusStore,
// ObjectStore, ArchiveProcessor, Coordinator, the EventBus, and the
// RetryScheduler).
package ingest

// ArchiveDescriptor is one parsed line of the GDELT manifest. It is
// immutable once constructed and discarded once the pipeline resolves the
// archive it describes.
type ArchiveDescriptor struct {
	FileName     string
	URL          string
	ExpectedHash string
	SizeBytes    int64
}

// ArchiveResult is the tagged outcome of a single ArchiveProcessor run.
// Exactly one of Err being nil or non-nil determines which variant applies;
// ProducedURLs is only meaningful when Err is nil.
type ArchiveResult struct {
	Descriptor   ArchiveDescriptor
	ProducedURLs []string
	Err          error
}

// Success reports whether the pipeline run completed without error.
func (r ArchiveResult) Success() bool {
	return r.Err == nil
}

// ExtractedEvent is emitted exactly once per successful archive, after all
// of its members have been uploaded to the object store and before the
// archive's hash is committed (§4.5 step 7 precedes step 8).
type ExtractedEvent struct {
	Descriptor   ArchiveDescriptor
	ProducedURLs []string
}

// FileSendRecord tracks delivery status for a single produced object URL.
// It is created with Sent=false when the Listener registers the URL and
// flipped to true only once the message broker has acknowledged a publish
// attempt for it.
type FileSendRecord struct {
	ArchiveFileName string `json:"archiveFileName"`
	FileURL         string `json:"fileUrl"`
	Sent            bool   `json:"sent"`
}

// ArchiveHashRecord is the committed MD5 for a given archive name. It is
// written only after that archive's pipeline has completed end to end.
type ArchiveHashRecord struct {
	ArchiveName string `json:"archiveName"`
	HashHex     string `json:"hashHex"`
}
