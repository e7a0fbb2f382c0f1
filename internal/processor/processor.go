// Package processor implements the ArchiveProcessor: the per-archive
// pipeline that downloads, verifies, extracts, uploads and announces one
// GDELT translation archive.
package processor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gdelt-collective/ingest/internal/dcontext"
	"github.com/gdelt-collective/ingest/internal/fileops"
	"github.com/gdelt-collective/ingest/ingest"
)

// HashStore is the subset of internal/kv.HashStore the processor needs.
type HashStore interface {
	Put(ctx context.Context, archiveName, hash string) error
}

// ObjectStore is the subset of internal/objectstore.Store the processor
// needs.
type ObjectStore interface {
	Put(ctx context.Context, objectName, localPath string) (string, error)
	Delete(ctx context.Context, objectName string) error
}

// EventBus is the subset of internal/eventbus.Bus the processor needs.
type EventBus interface {
	Publish(event ingest.ExtractedEvent) error
}

// Processor runs the full per-archive pipeline described in §4.5. It holds
// no per-archive state; a single Processor value is shared by every
// concurrently running archive task.
type Processor struct {
	client      *http.Client
	downloadDir string
	objectStore ObjectStore
	hashStore   HashStore
	bus         EventBus
}

// New builds a Processor. downloadDir is the scratch root archives are
// downloaded and extracted under; it is created if missing.
func New(client *http.Client, downloadDir string, objectStore ObjectStore, hashStore HashStore, bus EventBus) *Processor {
	return &Processor{
		client:      client,
		downloadDir: downloadDir,
		objectStore: objectStore,
		hashStore:   hashStore,
		bus:         bus,
	}
}

// Process runs descriptor through the full pipeline, returning an
// ArchiveResult whose Err is nil iff every step succeeded.
func (p *Processor) Process(ctx context.Context, descriptor ingest.ArchiveDescriptor) ingest.ArchiveResult {
	log := dcontext.GetLoggerWithField(ctx, "archive", descriptor.FileName)

	tempDir, err := fileops.EnsureDir(filepath.Join(p.downloadDir, fmt.Sprintf("%s-%d", descriptor.FileName, time.Now().UnixNano())))
	if err != nil {
		return ingest.ArchiveResult{Descriptor: descriptor, Err: fmt.Errorf("processor: create temp dir: %w", err)}
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			log.Warnf("processor: cleanup of %s failed: %v", tempDir, err)
		}
	}()

	if _, err := fileops.EnsureDir(p.downloadDir); err != nil {
		return ingest.ArchiveResult{Descriptor: descriptor, Err: fmt.Errorf("processor: ensure download root: %w", err)}
	}

	archivePath := filepath.Join(p.downloadDir, descriptor.FileName)
	if _, err := fileops.Download(ctx, p.client, descriptor.URL, archivePath); err != nil {
		return ingest.ArchiveResult{Descriptor: descriptor, Err: err}
	}
	defer func() {
		if err := os.Remove(archivePath); err != nil && !os.IsNotExist(err) {
			log.Warnf("processor: delete downloaded archive %s failed: %v", archivePath, err)
		}
	}()

	computed, err := fileops.MD5(archivePath)
	if err != nil {
		return ingest.ArchiveResult{Descriptor: descriptor, Err: fmt.Errorf("processor: digest archive: %w", err)}
	}
	if computed != descriptor.ExpectedHash {
		return ingest.ArchiveResult{
			Descriptor: descriptor,
			Err:        ingest.IntegrityError{FileName: descriptor.FileName, Computed: computed, Expected: descriptor.ExpectedHash},
		}
	}

	members, err := fileops.ExtractZip(archivePath, tempDir)
	if err != nil {
		return ingest.ArchiveResult{Descriptor: descriptor, Err: err}
	}

	uploaded, uploadedObjects, err := p.uploadAll(ctx, members)
	if err != nil {
		for _, objectName := range uploadedObjects {
			if delErr := p.objectStore.Delete(ctx, objectName); delErr != nil {
				log.Warnf("processor: rollback delete of %s failed: %v", objectName, delErr)
			}
		}
		return ingest.ArchiveResult{Descriptor: descriptor, Err: err}
	}

	if err := p.bus.Publish(ingest.ExtractedEvent{Descriptor: descriptor, ProducedURLs: uploaded}); err != nil {
		return ingest.ArchiveResult{Descriptor: descriptor, ProducedURLs: uploaded, Err: fmt.Errorf("processor: event dispatch: %w", err)}
	}

	if err := p.hashStore.Put(ctx, descriptor.FileName, descriptor.ExpectedHash); err != nil {
		return ingest.ArchiveResult{Descriptor: descriptor, ProducedURLs: uploaded, Err: err}
	}

	return ingest.ArchiveResult{Descriptor: descriptor, ProducedURLs: uploaded}
}

// uploadAll uploads every extracted member in order, streaming each
// straight from disk (§4.4: content length is the file size, memory use is
// independent of member size), and deletes each local file after a
// successful upload (best-effort). It returns the produced URLs alongside
// the object names actually written, so the caller can roll the latter back
// on a later failure.
func (p *Processor) uploadAll(ctx context.Context, members []string) ([]string, []string, error) {
	log := dcontext.GetLogger(ctx)

	var uploadedURLs []string
	var uploadedObjects []string

	for _, member := range members {
		objectName := filepath.Base(member)

		url, err := p.objectStore.Put(ctx, objectName, member)
		if err != nil {
			return uploadedURLs, uploadedObjects, err
		}

		uploadedURLs = append(uploadedURLs, url)
		uploadedObjects = append(uploadedObjects, objectName)

		if err := os.Remove(member); err != nil {
			log.Warnf("processor: delete local member %s failed: %v", member, err)
		}
	}

	return uploadedURLs, uploadedObjects, nil
}
