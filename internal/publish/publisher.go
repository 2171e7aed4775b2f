// Package publish emits results back to the originating station over the
// bus and fans equivalent events out to live subscribers and the swap event
// stream. The sinks are independent: a failure to reach one is logged and
// never suppresses delivery to the others.
package publish

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/evswap/bss-relay/internal/model"
	"github.com/evswap/bss-relay/internal/observability"
	"github.com/evswap/bss-relay/internal/topic"
)

// QoSResponse is used for every station-bound message. Auth responses and
// confirmations are user-visible, so they ride the bus's highest delivery
// guarantee; advisory notices (initiated, refused) never touch the bus and
// go to the fan-out sinks only.
const QoSResponse byte = 2

// Bus publishes one message toward a station topic.
type Bus interface {
	Publish(topic string, qos byte, payload []byte) error
}

// Subscribers receives the fan-out of every relay event.
type Subscribers interface {
	Broadcast(event model.Event)
}

// EventStream is the analytics feed. May be nil when Kafka is not
// configured.
type EventStream interface {
	Append(ctx context.Context, event model.Event) error
}

type Publisher struct {
	bus    Bus
	subs   Subscribers
	stream EventStream
	logger *log.Logger
	now    func() time.Time
}

func NewPublisher(bus Bus, subs Subscribers, stream EventStream, logger *log.Logger) *Publisher {
	return &Publisher{bus: bus, subs: subs, stream: stream, logger: logger, now: time.Now}
}

// AuthResponse answers an auth request on the bus and fans it out.
func (p *Publisher) AuthResponse(ctx context.Context, stationID string, resp model.AuthResponse) {
	p.toBus(topic.AuthResponse(stationID), QoSResponse, resp)
	p.fanOut(ctx, stationID, "auth_response", resp)
}

// SwapInitiated is advisory: fan-out only, no bus response.
func (p *Publisher) SwapInitiated(ctx context.Context, stationID string, notice model.SwapInitiated) {
	p.fanOut(ctx, stationID, "swap_initiated", notice)
}

// SwapConfirmation confirms a recorded swap to the station and fans the
// result out.
func (p *Publisher) SwapConfirmation(ctx context.Context, stationID string, conf model.SwapConfirmation) {
	p.toBus(topic.SwapConfirmation(stationID), QoSResponse, conf)
	p.fanOut(ctx, stationID, "swap_result", conf)
}

// SwapError surfaces a failed record write to the station and fans the
// result out. This is the notification §4.3 must never drop.
func (p *Publisher) SwapError(ctx context.Context, stationID string, swapErr model.SwapError) {
	p.toBus(topic.SwapError(stationID), QoSResponse, swapErr)
	p.fanOut(ctx, stationID, "swap_result", swapErr)
}

// SwapRefused is advisory: fan-out only, no bus response.
func (p *Publisher) SwapRefused(ctx context.Context, stationID string, notice model.RefusedNotice) {
	p.fanOut(ctx, stationID, "swap_refused", notice)
}

func (p *Publisher) toBus(busTopic string, qos byte, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		p.logger.Printf("bus marshal error: topic=%s err=%v", busTopic, err)
		observability.RecordSinkError("bus")
		return
	}
	if err := p.bus.Publish(busTopic, qos, b); err != nil {
		p.logger.Printf("bus publish error: topic=%s err=%v", busTopic, err)
		observability.RecordSinkError("bus")
		return
	}
	p.logger.Printf("bus tx: topic=%s qos=%d bytes=%d", busTopic, qos, len(b))
}

func (p *Publisher) fanOut(ctx context.Context, stationID, name string, data any) {
	event := model.Event{
		ID:        uuid.NewString(),
		Name:      name,
		StationID: stationID,
		Data:      data,
		EmittedAt: p.now().UTC().Format(time.RFC3339),
	}

	p.subs.Broadcast(event)

	if p.stream != nil {
		if err := p.stream.Append(ctx, event); err != nil {
			p.logger.Printf("event stream append error: event=%s station=%s err=%v", name, stationID, err)
			observability.RecordSinkError("stream")
		}
	}
}
