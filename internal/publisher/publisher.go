// Package publisher implements the fire-and-observe Publisher over a
// Kafka-compatible bus using sarama's AsyncProducer.
package publisher

import (
	"context"

	"github.com/Shopify/sarama"

	"github.com/gdelt-collective/ingest/internal/dcontext"
)

// StatusStore is the subset of internal/kv.StatusStore the Publisher needs.
type StatusStore interface {
	MarkSent(ctx context.Context, fileURL string) (bool, error)
}

// Publisher sends object URLs to a topic asynchronously, marking delivery
// status in StatusStore exactly once per broker acknowledgment (§4.8).
type Publisher struct {
	producer sarama.AsyncProducer
	status   StatusStore
}

// New builds a Publisher over bootstrapServers and starts its
// success/error consumer goroutines. Callers must call Close on shutdown.
func New(bootstrapServers []string, status StatusStore) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(bootstrapServers, cfg)
	if err != nil {
		return nil, err
	}

	p := &Publisher{producer: producer, status: status}
	go p.consumeSuccesses()
	go p.consumeErrors()
	return p, nil
}

// Send enqueues a produce request for url on topic. It never blocks the
// caller; StatusStore.MarkSent is applied on the Publisher's own consumer
// goroutine once the broker acknowledges the message. Failed sends are
// logged; no status change is made, leaving the record to the
// RetryScheduler's next sweep.
func (p *Publisher) Send(ctx context.Context, topic, url string) {
	p.producer.Input() <- &sarama.ProducerMessage{
		Topic:    topic,
		Value:    sarama.StringEncoder(url),
		Metadata: url,
	}
}

func (p *Publisher) consumeSuccesses() {
	log := dcontext.GetLogger(dcontext.Background())
	ctx := context.Background()
	for msg := range p.producer.Successes() {
		url, _ := msg.Metadata.(string)
		if _, err := p.status.MarkSent(ctx, url); err != nil {
			log.Errorf("publisher: marksent failed for %s: %v", url, err)
		}
	}
}

func (p *Publisher) consumeErrors() {
	log := dcontext.GetLogger(dcontext.Background())
	for err := range p.producer.Errors() {
		url, _ := err.Msg.Metadata.(string)
		log.Warnf("publisher: send failed for %s: %v", url, err.Err)
	}
}

// Close shuts down the underlying producer, waiting for its consumer
// goroutines to drain.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
