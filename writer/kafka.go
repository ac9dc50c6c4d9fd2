package writer

import (
	"context"
	"encoding/json"
	"fmt"

	kafka "github.com/segmentio/kafka-go"

	appconfig "optionflow/config"
	"optionflow/logger"
)

// KafkaWriter publishes each valuation snapshot as one JSON message, keyed by
// snapshot id so downstream consumers can partition by run.
type KafkaWriter struct {
	config *appconfig.Config
	writer *kafka.Writer
	log    *logger.Log
}

func NewKafkaWriter(cfg *appconfig.Config) (*KafkaWriter, error) {
	if len(cfg.Storage.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	kw := &KafkaWriter{
		config: cfg,
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Storage.Kafka.Brokers...),
			Topic:    cfg.Storage.Kafka.Topic,
			Balancer: &kafka.LeastBytes{},
		},
		log: logger.GetLogger(),
	}
	kw.log.WithComponent("kafka_writer").WithFields(logger.Fields{
		"brokers": cfg.Storage.Kafka.Brokers,
		"topic":   cfg.Storage.Kafka.Topic,
	}).Info("kafka writer initialized")
	return kw, nil
}

// Publish sends the export to the configured topic.
func (kw *KafkaWriter) Publish(ctx context.Context, export *ValuationExport) error {
	data, err := json.Marshal(export)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(export.SnapshotID),
		Value: data,
	}
	if err := kw.writer.WriteMessages(ctx, msg); err != nil {
		kw.log.WithComponent("kafka_writer").WithError(err).Warn("failed to publish snapshot")
		return err
	}
	kw.log.WithComponent("kafka_writer").WithFields(logger.Fields{
		"snapshot_id": export.SnapshotID,
		"positions":   len(export.Valuations),
	}).Debug("snapshot published to kafka")
	return nil
}

func (kw *KafkaWriter) Close() error {
	return kw.writer.Close()
}
