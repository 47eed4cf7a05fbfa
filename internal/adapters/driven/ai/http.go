package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/semdex/internal/core/domain"
)

// defaultTimeout bounds one embedding call. Large images on a CPU-only
// model server are the slow case.
const defaultTimeout = 60 * time.Second

// maxErrorBody caps how much of a failed response is quoted in errors
const maxErrorBody = 512

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

// postJSON sends body to url and decodes a 2xx response into out.
//
// Transport failures, 429 and 5xx are reported as domain.ErrServiceUnavailable
// because a later attempt may succeed. Other non-2xx statuses are
// domain.ErrEmbeddingFailed.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError(resp.StatusCode, snippet)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrEmbeddingFailed, err)
	}
	return nil
}

// getOK issues a GET and treats any 2xx as healthy
func getOK(ctx context.Context, client *http.Client, url string, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, nil)
	}
	return nil
}

func statusError(status int, body []byte) error {
	kind := domain.ErrEmbeddingFailed
	if status == http.StatusTooManyRequests || status >= 500 {
		kind = domain.ErrServiceUnavailable
	}
	if len(body) > 0 {
		return fmt.Errorf("%w: status %d: %s", kind, status, bytes.TrimSpace(body))
	}
	return fmt.Errorf("%w: status %d", kind, status)
}

// textOnly rejects kinds a text embedding model cannot read
func textOnly(provider domain.AIProvider, kind domain.ContentKind) error {
	if kind != domain.ContentKindText {
		return fmt.Errorf("%w: %s embeds text only, got %s input", domain.ErrNotSupported, provider, kind)
	}
	return nil
}
