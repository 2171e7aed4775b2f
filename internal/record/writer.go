// Package record is the sole path by which a completed swap becomes a
// durable record. It calls the storage service exactly once per resolved
// activity event and maps the outcome; it never retries silently and never
// swallows a failure.
package record

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/evswap/bss-relay/internal/model"
	"github.com/evswap/bss-relay/internal/storage"
)

// WriteError codes.
const (
	CodeRejected    = "rejected"    // storage validated and refused the record
	CodeUnavailable = "unavailable" // storage unreachable or timed out
)

type WriteError struct {
	Code   string
	Detail string
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("record write %s: %s", e.Code, e.Detail)
}

// SwapStore is the storage collaborator's create-swap operation.
type SwapStore interface {
	CreateSwap(ctx context.Context, rec model.SwapRecord) (int, error)
}

type Writer struct {
	store  SwapStore
	logger *log.Logger
}

func NewWriter(store SwapStore, logger *log.Logger) *Writer {
	return &Writer{store: store, logger: logger}
}

// Write persists the record and returns the assigned swap id, or a
// WriteError classifying the failure for the error response.
func (w *Writer) Write(ctx context.Context, rec model.SwapRecord) (int, *WriteError) {
	id, err := w.store.CreateSwap(ctx, rec)
	if err == nil {
		w.logger.Printf("swap recorded: id=%d station=%s user=%d", id, rec.DepositStationID, rec.UserID)
		return id, nil
	}

	var statusErr *storage.StatusError
	if errors.As(err, &statusErr) {
		w.logger.Printf("swap write rejected: station=%s user=%d status=%d body=%s",
			rec.DepositStationID, rec.UserID, statusErr.Code, model.Truncate([]byte(statusErr.Body), 256))
		return 0, &WriteError{Code: CodeRejected, Detail: statusErr.Body}
	}

	w.logger.Printf("swap write failed: station=%s user=%d err=%v", rec.DepositStationID, rec.UserID, err)
	return 0, &WriteError{Code: CodeUnavailable, Detail: err.Error()}
}
