// Package model holds the wire payloads exchanged with the stations over
// MQTT, the fan-out envelope sent to live subscribers, and the swap record
// shape written to the storage service.
package model

import (
	"errors"
	"strings"
)

// BatteryData is the battery telemetry block nested in swap activity events.
type BatteryData struct {
	SoC float64 `json:"soc"`
	SoH float64 `json:"soh"`
}

// AuthRequest arrives on bss/{id}/user/auth/request.
type AuthRequest struct {
	RFID      string `json:"rfid"`
	Timestamp string `json:"timestamp"`
}

func (r AuthRequest) Validate() error {
	if strings.TrimSpace(r.RFID) == "" {
		return errors.New("missing field: rfid")
	}
	return nil
}

// AuthResponse goes back on bss/{id}/user/auth/response and is fanned out
// as the auth_response event.
type AuthResponse struct {
	Status    string `json:"status"`
	UserID    *int   `json:"user_id,omitempty"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// SwapInitiate arrives on bss/{id}/swap/initiate when a battery is inserted.
type SwapInitiate struct {
	UserID                int     `json:"user_id"`
	BatteryInID           string  `json:"battery_in_id"`
	BatteryInHealthStatus string  `json:"battery_in_health_status"`
	SoC                   float64 `json:"soc"`
	SoH                   float64 `json:"soh"`
	Temperature           float64 `json:"temperature"`
	Timestamp             string  `json:"timestamp"`
}

func (s SwapInitiate) Validate() error {
	if s.UserID == 0 {
		return errors.New("missing field: user_id")
	}
	if strings.TrimSpace(s.BatteryInID) == "" {
		return errors.New("missing field: battery_in_id")
	}
	return nil
}

// SwapInitiated is the advisory fan-out payload for a started swap cycle.
type SwapInitiated struct {
	UserID       int     `json:"user_id"`
	BatteryID    string  `json:"battery_id"`
	HealthStatus string  `json:"health_status"`
	SoC          float64 `json:"soc"`
	SoH          float64 `json:"soh"`
	Temperature  float64 `json:"temperature"`
	Timestamp    string  `json:"timestamp"`
}

// SwapActivity arrives on bss/{id}/swap/activity once the station has issued
// the replacement battery.
type SwapActivity struct {
	UserID         int         `json:"user_id"`
	BatteryInID    string      `json:"battery_in_id"`
	BatteryOutID   string      `json:"battery_out_id"`
	BatteryInData  BatteryData `json:"battery_in_data"`
	BatteryOutData BatteryData `json:"battery_out_data"`
	Timestamp      string      `json:"timestamp"`
}

func (s SwapActivity) Validate() error {
	if s.UserID == 0 {
		return errors.New("missing field: user_id")
	}
	if strings.TrimSpace(s.BatteryInID) == "" {
		return errors.New("missing field: battery_in_id")
	}
	if strings.TrimSpace(s.BatteryOutID) == "" {
		return errors.New("missing field: battery_out_id")
	}
	return nil
}

// SwapRefused arrives on bss/{id}/swap/refused when the station rejects the
// returned battery. The station sends no timestamp; the relay generates one.
type SwapRefused struct {
	UserID      int     `json:"user_id"`
	BatteryID   string  `json:"battery_id"`
	Reason      string  `json:"reason"`
	SoC         float64 `json:"soc"`
	SoH         float64 `json:"soh"`
	Temperature float64 `json:"temperature"`
}

func (s SwapRefused) Validate() error {
	if s.UserID == 0 {
		return errors.New("missing field: user_id")
	}
	if strings.TrimSpace(s.BatteryID) == "" {
		return errors.New("missing field: battery_id")
	}
	return nil
}

// RefusedNotice is the fan-out payload for a refused swap: the inbound fields
// plus the relay-generated timestamp.
type RefusedNotice struct {
	UserID      int     `json:"user_id"`
	BatteryID   string  `json:"battery_id"`
	Reason      string  `json:"reason"`
	SoC         float64 `json:"soc"`
	SoH         float64 `json:"soh"`
	Temperature float64 `json:"temperature"`
	Timestamp   string  `json:"timestamp"`
}

// SwapRecord is the durable artifact handed to the storage service. The
// relay holds no reference to it after the create call returns.
type SwapRecord struct {
	UserID                 int     `json:"user_id"`
	IssuedBatteryID        string  `json:"issued_battery_id"`
	ReturnedBatteryID      string  `json:"returned_battery_id"`
	PickupStationID        string  `json:"pickup_station_id"`
	DepositStationID       string  `json:"deposit_station_id"`
	StartTime              string  `json:"start_time"`
	EndTime                string  `json:"end_time"`
	BatteryPercentageStart float64 `json:"battery_percentage_start"`
	BatteryPercentageEnd   float64 `json:"battery_percentage_end"`
	AhUsed                 float64 `json:"ah_used"`
}

// SwapConfirmation goes back on bss/{id}/swap/confirmation after a
// successful record write.
type SwapConfirmation struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	SwapID    int    `json:"swap_id"`
	Timestamp string `json:"timestamp"`
}

// SwapError goes back on bss/{id}/swap/error when the record write fails.
type SwapError struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// Event is the envelope broadcast to live subscribers and appended to the
// swap event stream. Name is one of auth_response, swap_initiated,
// swap_result, swap_refused.
type Event struct {
	ID        string `json:"event_id"`
	Name      string `json:"event"`
	StationID string `json:"station_id"`
	Data      any    `json:"data"`
	EmittedAt string `json:"emitted_at"`
}

// Truncate bounds payload samples in log lines.
func Truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "…"
}
