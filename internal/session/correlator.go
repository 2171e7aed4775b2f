// Package session tracks in-flight swap attempts per (station, user) and
// advances them as auth, initiate, activity and refused events arrive.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/evswap/bss-relay/internal/model"
	"github.com/evswap/bss-relay/internal/storage"
)

// ErrNoOpenAttempt is returned for activity/refused events with no matching
// open attempt: stale events and duplicates of an already-terminal attempt
// are dropped by the caller, never re-recorded.
var ErrNoOpenAttempt = errors.New("session: no open swap attempt")

// UserDirectory resolves RFID codes to user ids. Implemented by the storage
// client; lookups are remote and must honor the context deadline.
type UserDirectory interface {
	FindUserByCard(ctx context.Context, rfidCode string) (int, error)
}

type attemptKey struct {
	stationID string
	userID    int
}

// SwapAttempt is the in-memory state of one swap cycle between initiate and
// its terminal outcome. It never survives past resolution.
type SwapAttempt struct {
	StationID         string
	UserID            int
	ReturnedBatteryID string
	HealthStatus      string
	StartSoC          float64
	SoH               float64
	Temperature       float64
	StartTime         string
}

type Correlator struct {
	users  UserDirectory
	logger *log.Logger
	now    func() time.Time

	mu   sync.Mutex
	open map[attemptKey]*SwapAttempt
}

type Option func(*Correlator)

// WithClock overrides the time source used for substituted timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Correlator) { c.now = now }
}

func NewCorrelator(users UserDirectory, logger *log.Logger, opts ...Option) *Correlator {
	c := &Correlator{
		users:  users,
		logger: logger,
		now:    time.Now,
		open:   map[attemptKey]*SwapAttempt{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnAuthRequest resolves the card behind an auth request. It opens no
// attempt; the call is stateless aside from the directory lookup.
func (c *Correlator) OnAuthRequest(ctx context.Context, stationID string, req model.AuthRequest) model.AuthResponse {
	ts := c.normalize(req.Timestamp)

	userID, err := c.users.FindUserByCard(ctx, req.RFID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return model.AuthResponse{Status: "failure", Message: "Card not found", Timestamp: ts}
	case err != nil:
		c.logger.Printf("auth lookup error: station=%s rfid=%s err=%v", stationID, req.RFID, err)
		return model.AuthResponse{Status: "failure", Message: "Authorization service unavailable", Timestamp: ts}
	}

	return model.AuthResponse{Status: "success", UserID: &userID, Message: "Access granted", Timestamp: ts}
}

// OnSwapInitiate opens the attempt for (station, user). An initiate while a
// prior attempt is still open replaces it: the kiosk is authoritative for
// what is physically happening at the bay, so the stale attempt is treated
// as abandoned. Returns the advisory fan-out payload and whether a stale
// attempt was replaced.
func (c *Correlator) OnSwapInitiate(stationID string, in model.SwapInitiate) (model.SwapInitiated, bool) {
	ts := c.normalize(in.Timestamp)
	key := attemptKey{stationID: stationID, userID: in.UserID}

	c.mu.Lock()
	_, replaced := c.open[key]
	c.open[key] = &SwapAttempt{
		StationID:         stationID,
		UserID:            in.UserID,
		ReturnedBatteryID: in.BatteryInID,
		HealthStatus:      in.BatteryInHealthStatus,
		StartSoC:          in.SoC,
		SoH:               in.SoH,
		Temperature:       in.Temperature,
		StartTime:         ts,
	}
	c.mu.Unlock()

	if replaced {
		c.logger.Printf("stale attempt abandoned: station=%s user=%d", stationID, in.UserID)
	}

	return model.SwapInitiated{
		UserID:       in.UserID,
		BatteryID:    in.BatteryInID,
		HealthStatus: in.BatteryInHealthStatus,
		SoC:          in.SoC,
		SoH:          in.SoH,
		Temperature:  in.Temperature,
		Timestamp:    ts,
	}, replaced
}

// OnSwapActivity closes the open attempt and produces the record payload for
// the writer gateway. The attempt is evicted before the caller publishes, so
// a duplicate activity event is already stale by the time it is dispatched.
func (c *Correlator) OnSwapActivity(stationID string, act model.SwapActivity) (model.SwapRecord, error) {
	ts := c.normalize(act.Timestamp)
	key := attemptKey{stationID: stationID, userID: act.UserID}

	c.mu.Lock()
	attempt, ok := c.open[key]
	delete(c.open, key)
	c.mu.Unlock()

	if !ok {
		return model.SwapRecord{}, ErrNoOpenAttempt
	}

	startTime := attempt.StartTime
	if startTime == "" {
		startTime = ts
	}

	return model.SwapRecord{
		UserID:                 act.UserID,
		IssuedBatteryID:        act.BatteryOutID,
		ReturnedBatteryID:      act.BatteryInID,
		PickupStationID:        stationID,
		DepositStationID:       stationID,
		StartTime:              startTime,
		EndTime:                ts,
		BatteryPercentageStart: act.BatteryInData.SoC,
		BatteryPercentageEnd:   act.BatteryOutData.SoC,
		AhUsed:                 0,
	}, nil
}

// OnSwapRefused closes the open attempt with no record write and produces
// the refusal notice with a relay-generated timestamp.
func (c *Correlator) OnSwapRefused(stationID string, ref model.SwapRefused) (model.RefusedNotice, error) {
	key := attemptKey{stationID: stationID, userID: ref.UserID}

	c.mu.Lock()
	_, ok := c.open[key]
	delete(c.open, key)
	c.mu.Unlock()

	if !ok {
		return model.RefusedNotice{}, ErrNoOpenAttempt
	}

	return model.RefusedNotice{
		UserID:      ref.UserID,
		BatteryID:   ref.BatteryID,
		Reason:      ref.Reason,
		SoC:         ref.SoC,
		SoH:         ref.SoH,
		Temperature: ref.Temperature,
		Timestamp:   c.normalize(""),
	}, nil
}

// OpenAttempts reports the number of in-flight attempts. Exposed for the
// open-attempts gauge.
func (c *Correlator) OpenAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.open)
}

func (c *Correlator) normalize(ts string) string {
	return NormalizeTimestamp(ts, c.now())
}

// NormalizeTimestamp canonicalizes an ISO-8601 timestamp, with or without a
// trailing zone marker, to RFC3339 UTC. Empty or unparseable values are
// substituted with now so records stay comparable.
func NormalizeTimestamp(ts string, now time.Time) string {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return now.UTC().Format(time.RFC3339)
}
