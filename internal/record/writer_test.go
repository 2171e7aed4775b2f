package record

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evswap/bss-relay/internal/model"
	"github.com/evswap/bss-relay/internal/storage"
)

type stubStore struct {
	id    int
	err   error
	calls int
	last  model.SwapRecord
}

func (s *stubStore) CreateSwap(_ context.Context, rec model.SwapRecord) (int, error) {
	s.calls++
	s.last = rec
	return s.id, s.err
}

func discardLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestWriteReturnsAssignedID(t *testing.T) {
	store := &stubStore{id: 17}
	w := NewWriter(store, discardLogger())

	rec := model.SwapRecord{UserID: 5, DepositStationID: "station-2"}
	id, writeErr := w.Write(context.Background(), rec)

	require.Nil(t, writeErr)
	require.Equal(t, 17, id)
	require.Equal(t, 1, store.calls)
	require.Equal(t, rec, store.last)
}

func TestWriteMapsRejection(t *testing.T) {
	store := &stubStore{err: &storage.StatusError{Code: 400, Body: `{"error":"unknown battery"}`}}
	w := NewWriter(store, discardLogger())

	_, writeErr := w.Write(context.Background(), model.SwapRecord{})

	require.NotNil(t, writeErr)
	require.Equal(t, CodeRejected, writeErr.Code)
	require.Contains(t, writeErr.Detail, "unknown battery")
}

func TestWriteMapsUnavailability(t *testing.T) {
	store := &stubStore{err: errors.New("dial tcp: connection refused")}
	w := NewWriter(store, discardLogger())

	_, writeErr := w.Write(context.Background(), model.SwapRecord{})

	require.NotNil(t, writeErr)
	require.Equal(t, CodeUnavailable, writeErr.Code)
	require.Contains(t, writeErr.Detail, "connection refused")
}

func TestWriteCallsStoreExactlyOnce(t *testing.T) {
	store := &stubStore{err: errors.New("timeout")}
	w := NewWriter(store, discardLogger())

	w.Write(context.Background(), model.SwapRecord{})
	require.Equal(t, 1, store.calls)
}
