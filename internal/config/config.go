package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"
)

type Config struct {
	MQTTBrokerURL string
	MQTTClientID  string
	MQTTUsername  string
	MQTTPassword  string
	MQTTQoS       byte

	StorageBaseURL   string
	StorageTimeoutMs int

	KafkaBrokers           []string
	KafkaTopic             string
	KafkaTopicPartitions   int
	KafkaReplicationFactor int

	HTTPListenAddr string
	HubSendBuffer  int

	Workers          int
	WorkerQueueSize  int
	HandlerTimeoutMs int
	PublishTimeoutMs int
	ShutdownGraceMs  int

	Logger *log.Logger
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvQoS(key string, fallback byte) byte {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 2 {
			return byte(n)
		}
	}
	return fallback
}

// KafkaEnabled reports whether the swap event stream sink is configured.
// An empty KAFKA_BROKERS disables it; the relay's user-visible path does
// not depend on Kafka being reachable.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func (c *Config) String() string {
	return fmt.Sprintf(`
MQTT:
  BrokerURL:   %s
  ClientID:    %s
  Username:    %s
  QoS:         %d

Storage:
  BaseURL:     %s
  TimeoutMs:   %d

Kafka:
  Brokers:     %v
  Topic:       %s
  Partitions:  %d
  RF:          %d

HTTP:
  ListenAddr:  %s
  HubBuffer:   %d

Relay:
  Workers:           %d
  WorkerQueueSize:   %d
  HandlerTimeoutMs:  %d
  PublishTimeoutMs:  %d
  ShutdownGraceMs:   %d
`, c.MQTTBrokerURL, c.MQTTClientID, c.MQTTUsername, c.MQTTQoS,
		c.StorageBaseURL, c.StorageTimeoutMs,
		c.KafkaBrokers, c.KafkaTopic, c.KafkaTopicPartitions, c.KafkaReplicationFactor,
		c.HTTPListenAddr, c.HubSendBuffer,
		c.Workers, c.WorkerQueueSize, c.HandlerTimeoutMs, c.PublishTimeoutMs, c.ShutdownGraceMs)
}

func LoadConfig() (*Config, error) {
	var brokers []string
	for _, b := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		if s := strings.TrimSpace(b); s != "" {
			brokers = append(brokers, s)
		}
	}

	cfg := &Config{
		MQTTBrokerURL: getenv("MQTT_BROKER_URL", "tcp://localhost:1883"),
		MQTTClientID:  getenv("MQTT_CLIENT_ID", "bss-relay"),
		MQTTUsername:  os.Getenv("MQTT_USERNAME"),
		MQTTPassword:  os.Getenv("MQTT_PASSWORD"),
		MQTTQoS:       getenvQoS("MQTT_QOS", 1),

		StorageBaseURL:   getenv("STORAGE_BASE_URL", "http://localhost:5000"),
		StorageTimeoutMs: getenvInt("STORAGE_TIMEOUT_MS", 5000),

		KafkaBrokers:           brokers,
		KafkaTopic:             getenv("KAFKA_TOPIC", "bss-swap-events"),
		KafkaTopicPartitions:   getenvInt("KAFKA_TOPIC_PARTITIONS", 3),
		KafkaReplicationFactor: getenvInt("KAFKA_REPLICATION_FACTOR", 1),

		HTTPListenAddr: getenv("HTTP_LISTEN_ADDR", ":8080"),
		HubSendBuffer:  getenvInt("HUB_SEND_BUFFER", 64),

		Workers:          getenvInt("RELAY_WORKERS", runtime.NumCPU()),
		WorkerQueueSize:  getenvInt("RELAY_WORKER_QUEUE_SIZE", 256),
		HandlerTimeoutMs: getenvInt("HANDLER_TIMEOUT_MS", 10_000),
		PublishTimeoutMs: getenvInt("PUBLISH_TIMEOUT_MS", 5000),
		ShutdownGraceMs:  getenvInt("SHUTDOWN_GRACE_MS", 10_000),

		Logger: log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds),
	}

	if strings.TrimSpace(cfg.StorageBaseURL) == "" {
		return nil, errors.New("STORAGE_BASE_URL must not be empty")
	}
	if cfg.Workers <= 0 {
		return nil, errors.New("RELAY_WORKERS must be > 0")
	}
	if cfg.WorkerQueueSize <= 0 {
		return nil, errors.New("RELAY_WORKER_QUEUE_SIZE must be > 0")
	}
	if cfg.HandlerTimeoutMs <= 0 || cfg.PublishTimeoutMs <= 0 {
		return nil, errors.New("handler and publish timeouts must be > 0")
	}

	return cfg, nil
}
