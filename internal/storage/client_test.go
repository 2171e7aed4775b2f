package storage

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/evswap/bss-relay/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, 2*time.Second, log.New(io.Discard, "", 0))
}

func TestFindUserByCardResolvesUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/cards/A1B2C3D4", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]int{"user_id": 5})
	})

	userID, err := client.FindUserByCard(context.Background(), "A1B2C3D4")
	require.NoError(t, err)
	require.Equal(t, 5, userID)
}

func TestFindUserByCardMapsNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"card not found"}`, http.StatusNotFound)
	})

	_, err := client.FindUserByCard(context.Background(), "MISSING")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFindUserByCardMapsServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.FindUserByCard(context.Background(), "A1B2C3D4")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusInternalServerError, statusErr.Code)
}

func TestCreateSwapReturnsAssignedID(t *testing.T) {
	var received model.SwapRecord
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/swaps", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]int{"swap_id": 17})
	})

	rec := model.SwapRecord{
		UserID:                 5,
		IssuedBatteryID:        "BAT-42",
		ReturnedBatteryID:      "BAT-11",
		PickupStationID:        "station-2",
		DepositStationID:       "station-2",
		StartTime:              "2026-03-14T09:28:00Z",
		EndTime:                "2026-03-14T09:29:00Z",
		BatteryPercentageStart: 82,
		BatteryPercentageEnd:   95,
	}

	id, err := client.CreateSwap(context.Background(), rec)
	require.NoError(t, err)
	require.Equal(t, 17, id)
	require.Equal(t, rec, received)
}

func TestCreateSwapMapsRejection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"issued battery unknown"}`, http.StatusBadRequest)
	})

	_, err := client.CreateSwap(context.Background(), model.SwapRecord{})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadRequest, statusErr.Code)
	require.Contains(t, statusErr.Body, "issued battery unknown")
}

func TestCreateSwapHonorsContextDeadline(t *testing.T) {
	started := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.CreateSwap(ctx, model.SwapRecord{})
	require.Error(t, err)
	<-started
}
