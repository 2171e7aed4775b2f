// Package storage is the client for the persistent-storage service: RFID
// card lookup and durable swap-record creation. The service is a remote
// dependency — every call carries a timeout and maps transport or non-2xx
// results into errors the relay can act on.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/evswap/bss-relay/internal/model"
)

// ErrNotFound is returned by FindUserByCard when no card matches the code.
var ErrNotFound = errors.New("storage: not found")

// StatusError is a non-2xx reply from the storage service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("storage: status %d: %s", e.Code, model.Truncate([]byte(e.Body), 256))
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *log.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// FindUserByCard resolves an RFID code to the owning user id. A 404 maps to
// ErrNotFound; anything else non-2xx maps to a StatusError.
func (c *Client) FindUserByCard(ctx context.Context, rfidCode string) (int, error) {
	endpoint := c.baseURL + "/api/cards/" + url.PathEscape(rfidCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, readStatusError(resp)
	}

	var out struct {
		UserID int `json:"user_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("storage: decode card response: %w", err)
	}
	return out.UserID, nil
}

// CreateSwap persists a completed swap and returns the assigned swap id.
func (c *Client) CreateSwap(ctx context.Context, rec model.SwapRecord) (int, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/swaps", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return 0, readStatusError(resp)
	}

	var out struct {
		SwapID int `json:"swap_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("storage: decode swap response: %w", err)
	}
	return out.SwapID, nil
}

func readStatusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return &StatusError{Code: resp.StatusCode, Body: string(b)}
}
