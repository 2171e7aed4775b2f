// Package relay owns the bus connection lifecycle and the dispatch path
// between blocking bus I/O and the handlers. Inbound messages are pulled
// off the paho delivery goroutine onto a bounded queue and processed by a
// fixed worker pool; stations are hashed to workers so messages stay
// ordered per station and one station's slow collaborator call cannot
// stall the rest of the network.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"github.com/evswap/bss-relay/internal/config"
	"github.com/evswap/bss-relay/internal/model"
	"github.com/evswap/bss-relay/internal/observability"
	"github.com/evswap/bss-relay/internal/publish"
	"github.com/evswap/bss-relay/internal/record"
	"github.com/evswap/bss-relay/internal/session"
	"github.com/evswap/bss-relay/internal/topic"
)

type inbound struct {
	stationID string
	kind      topic.Kind
	payload   []byte
}

type Supervisor struct {
	logger         *log.Logger
	correlator     *session.Correlator
	writer         *record.Writer
	pub            *publish.Publisher
	handlerTimeout time.Duration
	now            func() time.Time

	queues []chan inbound
	wg     sync.WaitGroup
}

type Option func(*Supervisor)

// WithClock overrides the time source for generated response timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) { s.now = now }
}

func NewSupervisor(cfg *config.Config, correlator *session.Correlator, writer *record.Writer, opts ...Option) *Supervisor {
	s := &Supervisor{
		logger:         cfg.Logger,
		correlator:     correlator,
		writer:         writer,
		handlerTimeout: time.Duration(cfg.HandlerTimeoutMs) * time.Millisecond,
		now:            time.Now,
		queues:         make([]chan inbound, cfg.Workers),
	}
	for i := range s.queues {
		s.queues[i] = make(chan inbound, cfg.WorkerQueueSize)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPublisher wires the response publisher. The publisher needs the bus
// client and the client's message handler needs the supervisor, so the
// publisher is attached after both exist and before Start.
func (s *Supervisor) SetPublisher(pub *publish.Publisher) {
	s.pub = pub
}

// Start launches the worker pool.
func (s *Supervisor) Start() {
	for _, q := range s.queues {
		s.wg.Add(1)
		go func(q chan inbound) {
			defer s.wg.Done()
			for msg := range q {
				s.process(msg)
			}
		}(q)
	}
}

// Stop closes the inbound queues and waits for in-flight handlers to
// finish, up to the grace period. Call only after the bus subscription has
// been torn down.
func (s *Supervisor) Stop(grace time.Duration) {
	for _, q := range s.queues {
		close(q)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Println("relay workers drained")
	case <-time.After(grace):
		s.logger.Println("relay shutdown grace expired — abandoning in-flight handlers")
	}
}

// Receive routes one raw bus message onto the worker queue for its station.
// It runs on the paho delivery goroutine and blocks when the queue is full,
// backpressuring the bus client instead of dropping messages.
func (s *Supervisor) Receive(busTopic string, payload []byte) {
	stationID, kind := topic.Parse(busTopic)
	s.logger.Printf("bus rx: topic=%s kind=%s bytes=%d payload=%s",
		busTopic, kind, len(payload), model.Truncate(payload, 512))
	observability.RecordReceived(kind.String())

	if kind == topic.KindUnknown {
		observability.RecordDropped("malformed_topic")
		return
	}

	s.queues[s.workerFor(stationID)] <- inbound{stationID: stationID, kind: kind, payload: payload}
}

func (s *Supervisor) workerFor(stationID string) int {
	h := fnv.New32a()
	h.Write([]byte(stationID))
	return int(h.Sum32() % uint32(len(s.queues)))
}

func (s *Supervisor) process(msg inbound) {
	ctx, cancel := context.WithTimeout(context.Background(), s.handlerTimeout)
	defer cancel()

	switch msg.kind {
	case topic.KindAuthRequest:
		s.handleAuth(ctx, msg)
	case topic.KindSwapInitiate:
		s.handleInitiate(ctx, msg)
	case topic.KindSwapActivity:
		s.handleActivity(ctx, msg)
	case topic.KindSwapRefused:
		s.handleRefused(ctx, msg)
	}
}

func (s *Supervisor) handleAuth(ctx context.Context, msg inbound) {
	var req model.AuthRequest
	if !s.decode(msg, &req) {
		return
	}

	resp := s.correlator.OnAuthRequest(ctx, msg.stationID, req)
	s.pub.AuthResponse(ctx, msg.stationID, resp)
}

func (s *Supervisor) handleInitiate(ctx context.Context, msg inbound) {
	var in model.SwapInitiate
	if !s.decode(msg, &in) {
		return
	}

	notice, replaced := s.correlator.OnSwapInitiate(msg.stationID, in)
	if replaced {
		observability.RecordAbandoned()
	}
	observability.SetOpenAttempts(s.correlator.OpenAttempts())

	s.logger.Printf("swap initiated: station=%s user=%d battery_in=%s health=%s",
		msg.stationID, in.UserID, in.BatteryInID, in.BatteryInHealthStatus)
	s.pub.SwapInitiated(ctx, msg.stationID, notice)
}

func (s *Supervisor) handleActivity(ctx context.Context, msg inbound) {
	var act model.SwapActivity
	if !s.decode(msg, &act) {
		return
	}

	rec, err := s.correlator.OnSwapActivity(msg.stationID, act)
	if errors.Is(err, session.ErrNoOpenAttempt) {
		s.logger.Printf("stale activity dropped: station=%s user=%d", msg.stationID, act.UserID)
		observability.RecordDropped("stale_attempt")
		return
	}
	observability.SetOpenAttempts(s.correlator.OpenAttempts())

	swapID, writeErr := s.writer.Write(ctx, rec)
	ts := s.now().UTC().Format(time.RFC3339)
	if writeErr != nil {
		observability.RecordWrite("error")
		s.pub.SwapError(ctx, msg.stationID, model.SwapError{
			Status:    "error",
			Message:   "Failed to record swap",
			Error:     writeErr.Detail,
			Timestamp: ts,
		})
		return
	}

	observability.RecordWrite("ok")
	s.pub.SwapConfirmation(ctx, msg.stationID, model.SwapConfirmation{
		Status:    "success",
		Message:   "Swap recorded successfully",
		SwapID:    swapID,
		Timestamp: ts,
	})
}

func (s *Supervisor) handleRefused(ctx context.Context, msg inbound) {
	var ref model.SwapRefused
	if !s.decode(msg, &ref) {
		return
	}

	notice, err := s.correlator.OnSwapRefused(msg.stationID, ref)
	if errors.Is(err, session.ErrNoOpenAttempt) {
		s.logger.Printf("stale refusal dropped: station=%s user=%d", msg.stationID, ref.UserID)
		observability.RecordDropped("stale_attempt")
		return
	}
	observability.SetOpenAttempts(s.correlator.OpenAttempts())

	s.logger.Printf("swap refused: station=%s user=%d battery=%s reason=%q soc=%.1f soh=%.1f temp=%.1f",
		msg.stationID, ref.UserID, ref.BatteryID, ref.Reason, ref.SoC, ref.SoH, ref.Temperature)
	s.pub.SwapRefused(ctx, msg.stationID, notice)
}

func (s *Supervisor) decode(msg inbound, v interface{ Validate() error }) bool {
	if err := json.Unmarshal(msg.payload, v); err != nil {
		s.logger.Printf("invalid payload dropped: station=%s kind=%s err=%v payload=%s",
			msg.stationID, msg.kind, err, model.Truncate(msg.payload, 512))
		observability.RecordDropped("malformed_payload")
		return false
	}
	if err := v.Validate(); err != nil {
		s.logger.Printf("invalid payload dropped: station=%s kind=%s err=%v", msg.stationID, msg.kind, err)
		observability.RecordDropped("malformed_payload")
		return false
	}
	return true
}
