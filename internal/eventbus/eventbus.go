// Package eventbus implements the pipeline's EventBus: an unbounded,
// goroutine-driven queue in front of a terminal Listener sink, adapted from
// the registry notification system's eventQueue onto docker/go-events' Sink
// contract.
package eventbus

import (
	"container/list"
	"fmt"
	"sync"

	events "github.com/docker/go-events"

	"github.com/gdelt-collective/ingest/internal/dcontext"
	"github.com/gdelt-collective/ingest/ingest"
)

// ErrClosed is returned by Publish once the bus has been closed.
var ErrClosed = fmt.Errorf("eventbus: closed")

// Bus accepts ExtractedEvents for asynchronous dispatch to a single
// events.Sink. It is unbounded and safe for concurrent Publish calls from
// multiple ArchiveProcessor goroutines.
type Bus struct {
	sink   events.Sink
	events *list.List
	cond   *sync.Cond
	mu     sync.Mutex
	closed bool
}

// New builds a Bus wrapping sink, starting its dispatch goroutine
// immediately. sink is typically a *Listener.
func New(sink events.Sink) *Bus {
	b := &Bus{
		sink:   sink,
		events: list.New(),
	}
	b.cond = sync.NewCond(&b.mu)
	go b.run()
	return b
}

// Publish enqueues event for asynchronous dispatch to the Sink. It never
// blocks on the sink itself; dispatch happens on the Bus's own goroutine.
// The enqueue precedes the calling ArchiveProcessor's hash commit (§4.5 step
// 7 precedes step 8); the Sink itself may run before or after that commit.
func (b *Bus) Publish(event ingest.ExtractedEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	b.events.PushBack(event)
	b.cond.Signal()
	return nil
}

// Close stops accepting new events, flushes whatever is queued, and closes
// the underlying Sink.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("eventbus: already closed")
	}
	b.closed = true
	b.cond.Signal()
	b.mu.Unlock()

	b.mu.Lock()
	for b.events.Len() > 0 {
		b.cond.Wait()
	}
	b.mu.Unlock()

	return b.sink.Close()
}

func (b *Bus) run() {
	log := dcontext.GetLogger(dcontext.Background())
	for {
		event, ok := b.next()
		if !ok {
			return
		}
		if err := b.sink.Write(event); err != nil {
			log.Errorf("eventbus: error writing event, dropped: %v", err)
		}

		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	}
}

func (b *Bus) next() (events.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.events.Len() < 1 {
		if b.closed {
			return nil, false
		}
		b.cond.Wait()
	}

	front := b.events.Front()
	event := front.Value.(events.Event)
	b.events.Remove(front)
	return event, true
}
