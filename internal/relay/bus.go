package relay

import (
	"context"
	"errors"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/evswap/bss-relay/internal/config"
	"github.com/evswap/bss-relay/internal/observability"
	"github.com/evswap/bss-relay/internal/topic"
)

// BuildClient configures the paho client. Subscriptions are re-established
// inside OnConnect so a broker reconnect restores them; reconnection itself
// is the client's native retry loop.
func BuildClient(cfg *config.Config, sup *Supervisor) mqtt.Client {
	h := func(_ mqtt.Client, msg mqtt.Message) {
		sup.Receive(msg.Topic(), msg.Payload())
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBrokerURL).
		SetClientID(cfg.MQTTClientID).
		SetCleanSession(false).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
	}
	if cfg.MQTTPassword != "" {
		opts.SetPassword(cfg.MQTTPassword)
	}

	opts.OnConnect = func(c mqtt.Client) {
		cfg.Logger.Printf("connected to broker: %s", cfg.MQTTBrokerURL)
		observability.SetBusConnected(true)
		filters := make(map[string]byte, len(topic.Subscriptions))
		for _, f := range topic.Subscriptions {
			filters[f] = cfg.MQTTQoS
		}
		if token := c.SubscribeMultiple(filters, h); token.Wait() && token.Error() != nil {
			cfg.Logger.Printf("mqtt subscribe error: %v", token.Error())
		} else {
			cfg.Logger.Printf("subscribed to %d station filters (QoS %d)", len(filters), cfg.MQTTQoS)
		}
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		cfg.Logger.Printf("mqtt connection lost: %v", err)
		observability.SetBusConnected(false)
	}

	return mqtt.NewClient(opts)
}

// ConnectWithBackoff retries the initial connect until it succeeds or the
// context is cancelled.
func ConnectWithBackoff(ctx context.Context, cfg *config.Config, client mqtt.Client, start, max time.Duration) {
	backoff := start
	for {
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			cfg.Logger.Printf("mqtt connect error: %v; retrying in %s", token.Error(), backoff)
			select {
			case <-time.After(backoff):
				if backoff < max {
					backoff *= 2
				}
			case <-ctx.Done():
				cfg.Logger.Println("context cancelled before mqtt connect")
				return
			}
			continue
		}
		break
	}
}

// PahoBus adapts the paho client to the publisher's Bus interface with a
// bounded acknowledgement wait.
type PahoBus struct {
	Client  mqtt.Client
	Timeout time.Duration
}

func (b PahoBus) Publish(busTopic string, qos byte, payload []byte) error {
	token := b.Client.Publish(busTopic, qos, false, payload)
	if !token.WaitTimeout(b.Timeout) {
		return errors.New("mqtt publish ack timeout")
	}
	return token.Error()
}
