// Package events publishes committed activity entries to Kafka so downstream
// consumers (reporting, notifications) can follow the log without polling it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/warp/rental-engine/rental"
)

// DefaultTopic receives every activity entry.
const DefaultTopic = "rental.activity"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Envelope is the message value.
type Envelope struct {
	EventType  rental.ActivityKind  `json:"event_type"`
	OccurredAt time.Time            `json:"occurred_at"`
	Entry      rental.ActivityEntry `json:"entry"`
}

// Publisher is a rental.ActivityListener that writes each entry to Kafka,
// keyed by employee so one employee's entries stay ordered. Entries are
// queued and written by a background worker; recording never waits for the
// broker.
type Publisher struct {
	writer  messageWriter
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan rental.ActivityEntry
	done   chan struct{}
}

// QueueSize bounds the entries waiting for the worker. When full, new entries
// are dropped and logged.
const QueueSize = 1024

// maxBatch caps the entries sent in one WriteMessages call.
const maxBatch = 100

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return newPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}, QueueSize)
}

func newPublisher(w messageWriter, queueSize int) *Publisher {
	p := &Publisher{
		writer:  w,
		timeout: 5 * time.Second,
		queue:   make(chan rental.ActivityEntry, queueSize),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// ActivityRecorded queues entry for publishing. The entry is already
// committed, so a full queue or a failed publish is logged and dropped.
func (p *Publisher) ActivityRecorded(_ context.Context, entry rental.ActivityEntry) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		log.Printf("[Events] Publisher closed, dropping %s %s", entry.Kind, entry.ID)
		return
	}
	select {
	case p.queue <- entry:
	default:
		log.Printf("[Events] Queue full, dropping %s %s", entry.Kind, entry.ID)
	}
}

// run drains the queue until Close, writing whatever is pending as one batch.
func (p *Publisher) run() {
	defer close(p.done)
	for entry := range p.queue {
		batch := []rental.ActivityEntry{entry}
	drain:
		for len(batch) < maxBatch {
			select {
			case next, ok := <-p.queue:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		if err := p.Publish(context.Background(), batch...); err != nil {
			log.Printf("[Events] Failed to publish %d entries: %v", len(batch), err)
		}
	}
}

// Publish writes entries and waits for the broker acknowledgement.
func (p *Publisher) Publish(ctx context.Context, entries ...rental.ActivityEntry) error {
	msgs := make([]kafka.Message, 0, len(entries))
	for _, entry := range entries {
		value, err := json.Marshal(Envelope{EventType: entry.Kind, OccurredAt: entry.CreatedAt, Entry: entry})
		if err != nil {
			return fmt.Errorf("encode activity entry: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(entry.EmployeeID),
			Value: value,
			Time:  entry.CreatedAt,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(entry.Kind)},
			},
		})
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	return p.writer.WriteMessages(ctx, msgs...)
}

// Close stops accepting entries, publishes what is queued and closes the
// writer. It is safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	return p.writer.Close()
}
