// Package retry implements the RetryScheduler: a periodic sweep of
// StatusStore for unsent delivery records, adapted from the registry's TTL
// expiration scheduler's select/ticker mainloop.
package retry

import (
	"context"
	"time"

	"github.com/gdelt-collective/ingest/internal/dcontext"
	"github.com/gdelt-collective/ingest/ingest"
)

// StatusStore is the subset of internal/kv.StatusStore the scheduler needs.
type StatusStore interface {
	Pending(ctx context.Context) ([]ingest.FileSendRecord, error)
}

// TopicResolver is the subset of internal/topic.Resolver the scheduler
// needs.
type TopicResolver interface {
	Resolve(archiveFileName string) (string, error)
}

// Publisher is the subset of internal/publisher.Publisher the scheduler
// needs.
type Publisher interface {
	Send(ctx context.Context, topic, url string)
}

// Scheduler periodically re-publishes every StatusStore record still
// marked unsent (§4.9). It performs no de-duplication; downstream
// idempotent-producer and consumer-side dedup semantics bear that cost.
type Scheduler struct {
	status    StatusStore
	resolver  TopicResolver
	publisher Publisher
	interval  time.Duration
}

// New builds a Scheduler sweeping every interval.
func New(status StatusStore, resolver TopicResolver, publisher Publisher, interval time.Duration) *Scheduler {
	return &Scheduler{status: status, resolver: resolver, publisher: publisher, interval: interval}
}

// Run blocks, sweeping on every tick until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	log := dcontext.GetLogger(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				log.Warnf("retry: sweep failed: %v", err)
			}
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) error {
	log := dcontext.GetLogger(ctx)

	records, err := s.status.Pending(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	log.Infof("retry: resweeping %d pending records", len(records))

	for _, r := range records {
		topic, err := s.resolver.Resolve(r.ArchiveFileName)
		if err != nil {
			log.Warnf("retry: cannot classify %s, dropping: %v", r.ArchiveFileName, err)
			continue
		}
		s.publisher.Send(ctx, topic, r.FileURL)
	}

	return nil
}
