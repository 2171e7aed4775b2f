package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "tcp://localhost:1883", cfg.MQTTBrokerURL)
	require.Equal(t, "bss-relay", cfg.MQTTClientID)
	require.Equal(t, byte(1), cfg.MQTTQoS)
	require.Equal(t, "http://localhost:5000", cfg.StorageBaseURL)
	require.False(t, cfg.KafkaEnabled())
	require.Greater(t, cfg.Workers, 0)
	require.NotNil(t, cfg.Logger)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("MQTT_BROKER_URL", "tcp://broker:1883")
	t.Setenv("MQTT_QOS", "2")
	t.Setenv("STORAGE_BASE_URL", "http://storage:5000")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("RELAY_WORKERS", "8")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "tcp://broker:1883", cfg.MQTTBrokerURL)
	require.Equal(t, byte(2), cfg.MQTTQoS)
	require.Equal(t, "http://storage:5000", cfg.StorageBaseURL)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.True(t, cfg.KafkaEnabled())
	require.Equal(t, 8, cfg.Workers)
}

func TestLoadConfigClampsInvalidQoS(t *testing.T) {
	t.Setenv("MQTT_QOS", "7")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, byte(1), cfg.MQTTQoS)
}

func TestLoadConfigRejectsNonPositiveWorkers(t *testing.T) {
	t.Setenv("RELAY_WORKERS", "0")

	_, err := LoadConfig()
	require.Error(t, err)
}
