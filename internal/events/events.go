package events

import (
	"context"
	"encoding/json"
	"time"

	skafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event types published on the shipment topic.
const (
	ShipmentCommitted    = "shipment.committed"
	ShipmentPaid         = "shipment.paid"
	ShipmentLabelPrinted = "shipment.label_printed"
)

// Event is the envelope written to the topic.
type Event struct {
	Type       string    `json:"type"`
	Resi       string    `json:"resi"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data,omitempty"`
}

// Publisher sends shipment events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, key string, value any) error
	Close() error
}

// Writer is the subset of kafka.Writer the producer needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// KafkaProducer publishes JSON values keyed by resi.
type KafkaProducer struct {
	writer Writer
}

// batchTimeout bounds how long a synchronous write waits for its batch to
// fill; events are published one per request.
const batchTimeout = 10 * time.Millisecond

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := &skafka.Writer{
		Addr:         skafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &skafka.Hash{},
		RequiredAcks: skafka.RequireOne,
		BatchTimeout: batchTimeout,
	}
	return &KafkaProducer{writer: w}
}

// NewKafkaProducerWithWriter allows injecting a test writer.
func NewKafkaProducerWithWriter(w Writer) *KafkaProducer {
	return &KafkaProducer{writer: w}
}

func (p *KafkaProducer) Publish(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, skafka.Message{Key: []byte(key), Value: b})
}

func (p *KafkaProducer) Close() error { return p.writer.Close() }

// LogPublisher only logs events; used when no broker is configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, key string, value any) error {
	p.log.Debug("event", zap.String("key", key), zap.Any("value", value))
	return nil
}

func (p *LogPublisher) Close() error { return nil }
