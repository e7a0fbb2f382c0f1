// Package coordinator implements the Coordinator: the periodic tick that
// fetches the GDELT manifest, filters it down to new or changed archives,
// and fans out an ArchiveProcessor run for each survivor.
package coordinator

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/gdelt-collective/ingest/internal/dcontext"
	"github.com/gdelt-collective/ingest/ingest"
)

var supportedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`translation\.export\.CSV\.zip$`),
	regexp.MustCompile(`translation\.mentions\.CSV\.zip$`),
}

// HashStore is the subset of internal/kv.HashStore the Coordinator needs.
type HashStore interface {
	IsNewOrChanged(ctx context.Context, archiveName, hash string) (bool, error)
}

// Processor is the subset of internal/processor.Processor the Coordinator
// needs.
type Processor interface {
	Process(ctx context.Context, descriptor ingest.ArchiveDescriptor) ingest.ArchiveResult
}

// Coordinator drives one tick of the ingestion pipeline: manifest fetch,
// parse, filter, and fan-out.
type Coordinator struct {
	client      *http.Client
	manifestURL string
	hashStore   HashStore
	processor   Processor
}

// New builds a Coordinator polling manifestURL.
func New(client *http.Client, manifestURL string, hashStore HashStore, processor Processor) *Coordinator {
	return &Coordinator{client: client, manifestURL: manifestURL, hashStore: hashStore, processor: processor}
}

// Tick runs one full pass: fetch, parse, filter, fan out, aggregate. A
// manifest-fetch failure is a top-level failure and is returned to the
// caller; a failure in any single archive is captured in its ArchiveResult
// and never cancels its siblings.
func (c *Coordinator) Tick(ctx context.Context) ([]ingest.ArchiveResult, error) {
	log := dcontext.GetLogger(ctx)

	body, err := c.fetchManifest(ctx)
	if err != nil {
		return nil, err
	}

	descriptors, malformed := parseManifest(body)
	if malformed > 0 {
		log.Warnf("coordinator: skipped %d malformed manifest lines", malformed)
	}

	descriptors = filterSupported(descriptors)
	descriptors = c.filterUnprocessed(ctx, descriptors)

	results := c.fanOut(ctx, descriptors)

	succeeded := 0
	for _, r := range results {
		if r.Success() {
			succeeded++
		} else {
			log.Warnf("coordinator: archive %s failed: %v", r.Descriptor.FileName, r.Err)
		}
	}
	log.Infof("coordinator: tick complete, %d/%d archives succeeded", succeeded, len(results))

	return results, nil
}

func (c *Coordinator) fetchManifest(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.manifestURL, nil)
	if err != nil {
		return "", ingest.TransportError{URL: c.manifestURL, Cause: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", ingest.TransportError{URL: c.manifestURL, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", ingest.TransportError{URL: c.manifestURL, Status: resp.StatusCode}
	}

	var sb strings.Builder
	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			sb.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}

	return sb.String(), nil
}

// parseManifest splits body into ArchiveDescriptors, counting lines that
// don't carry at least 3 whitespace-separated tokens as malformed (§4.6
// step 2, B3).
func parseManifest(body string) ([]ingest.ArchiveDescriptor, int) {
	var descriptors []ingest.ArchiveDescriptor
	malformed := 0

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		tokens := strings.Fields(line)
		if len(tokens) < 3 {
			malformed++
			continue
		}

		sizeBytes, err := strconv.ParseInt(tokens[0], 10, 64)
		if err != nil {
			malformed++
			continue
		}

		url := tokens[2]
		fileName := url
		if idx := strings.LastIndex(url, "/"); idx >= 0 {
			fileName = url[idx+1:]
		}

		descriptors = append(descriptors, ingest.ArchiveDescriptor{
			FileName:     fileName,
			URL:          url,
			ExpectedHash: strings.ToLower(tokens[1]),
			SizeBytes:    sizeBytes,
		})
	}

	return descriptors, malformed
}

func filterSupported(descriptors []ingest.ArchiveDescriptor) []ingest.ArchiveDescriptor {
	var out []ingest.ArchiveDescriptor
	for _, d := range descriptors {
		for _, pattern := range supportedPatterns {
			if pattern.MatchString(d.URL) {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

func (c *Coordinator) filterUnprocessed(ctx context.Context, descriptors []ingest.ArchiveDescriptor) []ingest.ArchiveDescriptor {
	log := dcontext.GetLogger(ctx)

	var out []ingest.ArchiveDescriptor
	for _, d := range descriptors {
		changed, err := c.hashStore.IsNewOrChanged(ctx, d.FileName, d.ExpectedHash)
		if err != nil {
			log.Warnf("coordinator: hash lookup failed for %s, processing anyway: %v", d.FileName, err)
			changed = true
		}
		if changed {
			out = append(out, d)
		}
	}
	return out
}

// fanOut starts one Processor.Process call per descriptor and waits for
// all of them, without canceling siblings on individual failure (§4.6,
// §9 task orchestration with futures).
func (c *Coordinator) fanOut(ctx context.Context, descriptors []ingest.ArchiveDescriptor) []ingest.ArchiveResult {
	results := make([]ingest.ArchiveResult, len(descriptors))

	var wg sync.WaitGroup
	for i, d := range descriptors {
		wg.Add(1)
		go func(i int, d ingest.ArchiveDescriptor) {
			defer wg.Done()
			results[i] = c.processor.Process(ctx, d)
		}(i, d)
	}
	wg.Wait()

	return results
}
