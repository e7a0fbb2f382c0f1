package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gdelt-collective/ingest/ingest"
)

type fakeStatusStore struct {
	mu        sync.Mutex
	registers []string
}

func (f *fakeStatusStore) Register(ctx context.Context, archiveFileName, fileURL string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers = append(f.registers, fileURL)
	return true, nil
}

type fakeResolver struct {
	fail bool
}

func (f *fakeResolver) Resolve(archiveFileName string) (string, error) {
	if f.fail {
		return "", errors.New("cannot classify")
	}
	return "events-topic", nil
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakePublisher) Send(ctx context.Context, topic, url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, url)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestBusDispatchesToListener(t *testing.T) {
	status := &fakeStatusStore{}
	publisher := &fakePublisher{}
	listener := NewListener(status, &fakeResolver{}, publisher)
	bus := New(listener)
	defer bus.Close()

	event := ingest.ExtractedEvent{
		Descriptor:   ingest.ArchiveDescriptor{FileName: "a.translation.export.CSV.zip"},
		ProducedURLs: []string{"url1", "url2"},
	}
	if err := bus.Publish(event); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	waitFor(t, func() bool {
		publisher.mu.Lock()
		defer publisher.mu.Unlock()
		return len(publisher.sent) == 2
	})

	status.mu.Lock()
	defer status.mu.Unlock()
	if len(status.registers) != 2 {
		t.Fatalf("registers = %v, want 2 entries", status.registers)
	}
}

func TestBusPublishAfterCloseFails(t *testing.T) {
	bus := New(NewListener(&fakeStatusStore{}, &fakeResolver{}, &fakePublisher{}))
	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := bus.Publish(ingest.ExtractedEvent{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Publish() after Close error = %v, want ErrClosed", err)
	}
}

func TestListenerClassificationErrorDropsEvent(t *testing.T) {
	status := &fakeStatusStore{}
	listener := NewListener(status, &fakeResolver{fail: true}, &fakePublisher{})

	event := ingest.ExtractedEvent{
		Descriptor:   ingest.ArchiveDescriptor{FileName: "unknown.zip"},
		ProducedURLs: []string{"url1"},
	}
	if err := listener.Write(event); err == nil {
		t.Fatal("Write() expected ClassificationError")
	}

	status.mu.Lock()
	defer status.mu.Unlock()
	if len(status.registers) != 0 {
		t.Fatalf("registers = %v, want none", status.registers)
	}
}
