package eventbus

import (
	"context"
	"fmt"

	events "github.com/docker/go-events"

	"github.com/gdelt-collective/ingest/ingest"
)

// StatusStore is the subset of internal/kv.StatusStore the Listener needs.
type StatusStore interface {
	Register(ctx context.Context, archiveFileName, fileURL string) (bool, error)
}

// TopicResolver is the subset of internal/topic.Resolver the Listener needs.
type TopicResolver interface {
	Resolve(archiveFileName string) (string, error)
}

// Publisher is the subset of internal/publisher.Publisher the Listener
// needs.
type Publisher interface {
	Send(ctx context.Context, topic, url string)
}

// Listener is the terminal events.Sink for the EventBus: the one place the
// spec's §4.7 dispatch sequence runs (topic resolution, status
// registration, publish) for every produced URL of an ExtractedEvent.
type Listener struct {
	status    StatusStore
	resolver  TopicResolver
	publisher Publisher
}

// NewListener builds a Listener wiring status, resolver and publisher
// together.
func NewListener(status StatusStore, resolver TopicResolver, publisher Publisher) *Listener {
	return &Listener{status: status, resolver: resolver, publisher: publisher}
}

var _ events.Sink = (*Listener)(nil)

// Write implements events.Sink. It resolves the archive's topic once and,
// for every produced URL, registers delivery status before handing the URL
// to the Publisher. A ClassificationError drops the whole event: dispatch is
// asynchronous, so the archive's hash may already have been committed, and
// with no URL registered the retry loop cannot recover it (§9 Open
// Questions).
func (l *Listener) Write(event events.Event) error {
	ev, ok := event.(ingest.ExtractedEvent)
	if !ok {
		return fmt.Errorf("eventbus: unexpected event type %T", event)
	}

	topic, err := l.resolver.Resolve(ev.Descriptor.FileName)
	if err != nil {
		return err
	}

	ctx := context.Background()
	for _, url := range ev.ProducedURLs {
		if _, err := l.status.Register(ctx, ev.Descriptor.FileName, url); err != nil {
			return err
		}
		l.publisher.Send(ctx, topic, url)
	}

	return nil
}

// Close is a no-op; the Listener holds no resources of its own.
func (l *Listener) Close() error {
	return nil
}
