package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Kafka publishes events to a Kafka topic, keyed by record number so one
// record's events stay ordered within a partition.
type Kafka struct {
	client *kgo.Client
	topic  string
	log    *slog.Logger
}

func NewKafka(brokers []string, topic string, log *slog.Logger) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}
	return &Kafka{client: client, topic: topic, log: log}, nil
}

func (k *Kafka) Publish(_ context.Context, event Event) {
	value, err := json.Marshal(event)
	if err != nil {
		k.log.Error("event marshal failed", "record", event.RecordNumber, "error", err)
		return
	}

	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(event.RecordNumber),
		Value: value,
	}
	// Detached from the request context: the submission that produced the
	// event may finish before the broker acknowledges it, and cancelling the
	// in-flight produce would drop the event.
	k.client.Produce(context.Background(), record, func(_ *kgo.Record, err error) {
		if err != nil {
			k.log.Error("event publish failed",
				"record", event.RecordNumber, "kind", event.Kind, "error", err)
		}
	})
}

func (k *Kafka) Close() {
	k.client.Close()
}
