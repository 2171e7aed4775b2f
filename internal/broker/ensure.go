package broker

import (
	"context"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/evswap/bss-relay/internal/config"
)

// EnsureTopic creates the swap event stream topic when it does not exist
// yet, so a fresh environment works without manual broker setup.
func EnsureTopic(ctx context.Context, cfg *config.Config) error {
	bootstrap := cfg.KafkaBrokers[0]
	cfg.Logger.Printf("kafka ensuring topic %s on bootstrap %s", cfg.KafkaTopic, bootstrap)

	conn, err := kafka.DialContext(ctx, "tcp", bootstrap)
	if err != nil {
		return err
	}
	defer conn.Close()

	if parts, err := conn.ReadPartitions(cfg.KafkaTopic); err == nil && len(parts) > 0 {
		cfg.Logger.Printf("kafka topic %s already exists", cfg.KafkaTopic)
		return nil
	}

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	ctrlConn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer ctrlConn.Close()

	cfg.Logger.Printf("kafka creating topic %s (partitions=%d rf=%d)",
		cfg.KafkaTopic, cfg.KafkaTopicPartitions, cfg.KafkaReplicationFactor)

	return ctrlConn.CreateTopics(kafka.TopicConfig{
		Topic:             cfg.KafkaTopic,
		NumPartitions:     cfg.KafkaTopicPartitions,
		ReplicationFactor: cfg.KafkaReplicationFactor,
	})
}
