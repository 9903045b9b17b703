// Package broker publishes domain events to Kafka.
package broker

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Brokers []string
	Topic   string
}

// Kafka publishes to a single topic with a synchronous producer.
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
	log      logrus.FieldLogger
}

func NewKafka(cfg Config, log logrus.FieldLogger) (*Kafka, error) {
	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3
	sc.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}

	return NewKafkaWithProducer(producer, cfg.Topic, log), nil
}

func NewKafkaWithProducer(producer sarama.SyncProducer, topic string, log logrus.FieldLogger) *Kafka {
	return &Kafka{producer: producer, topic: topic, log: log}
}

// Publish sends value keyed by key. The producer has no context support, so
// ctx is only checked before sending.
func (k *Kafka) Publish(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("sending message to %s: %w", k.topic, err)
	}

	k.log.WithFields(logrus.Fields{
		"topic":     k.topic,
		"key":       key,
		"partition": partition,
		"offset":    offset,
	}).Debug("message published")
	return nil
}

func (k *Kafka) Close() error {
	return k.producer.Close()
}

// Nop drops every message. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(ctx context.Context, key string, value []byte) error { return nil }

func (Nop) Close() error { return nil }
