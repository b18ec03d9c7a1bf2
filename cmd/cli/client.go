package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"
)

// envelope mirrors the API response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// apiError is a non-2xx answer from the API.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
}

// idempotencyKeyHeader matches the header the API deduplicates mutations on.
const idempotencyKeyHeader = "Idempotency-Key"

type apiClient struct {
	baseURL        string
	http           *http.Client
	maxElapsed     time.Duration
	idempotencyKey string
}

// newAPIClient creates a client for one CLI invocation. Every mutation it
// sends, retries included, carries the same idempotency key.
func newAPIClient(baseURL string, timeout, maxElapsed time.Duration) *apiClient {
	return &apiClient{
		baseURL:        baseURL,
		http:           &http.Client{Timeout: timeout},
		maxElapsed:     maxElapsed,
		idempotencyKey: ulid.Make().String(),
	}
}

// do sends a request and decodes the envelope's data into out. Transport
// errors and 5xx answers are retried with backoff; 4xx answers are not,
// except a 409 for a mutation whose earlier attempt is still in flight.
func (c *apiClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = c.maxElapsed

	var env envelope
	err := backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		mutating := method == http.MethodPost || method == http.MethodDelete
		if mutating {
			req.Header.Set(idempotencyKeyHeader, c.idempotencyKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		env = envelope{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &env); err != nil {
				return backoff.Permanent(fmt.Errorf("decode response: %w", err))
			}
		}

		if resp.StatusCode >= 500 || (mutating && resp.StatusCode == http.StatusConflict) {
			return &apiError{Status: resp.StatusCode, Message: env.Message}
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(&apiError{Status: resp.StatusCode, Message: env.Message})
		}
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		return err
	}

	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}
