package shelterboard

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPDoer abstracts the HTTP client for test injection.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DriveDownloadURL builds the Google Drive direct-download link for a
// shared file ID.
func DriveDownloadURL(fileID string) string {
	return "https://drive.google.com/uc?export=download&id=" + url.QueryEscape(fileID)
}

// HTTPSource fetches the dataset from a remote link with retries and a
// circuit breaker. Responses with Content-Encoding: gzip are decompressed;
// payloads beyond the configured cap are rejected.
type HTTPSource struct {
	url     string
	client  HTTPDoer
	maxBody int64
	timeout time.Duration
	retryer *Retryer
	breaker *CircuitBreaker
}

// NewHTTPSource creates a source for the given URL using the source
// configuration's size cap, timeout, and retry settings.
func NewHTTPSource(rawURL string, cfg SourceConfig) *HTTPSource {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 64 << 20
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPSource{
		url:     rawURL,
		client:  &http.Client{Timeout: timeout},
		maxBody: maxBody,
		timeout: timeout,
		retryer: NewRetryer(cfg.Retry),
		breaker: NewCircuitBreaker(5, 30*time.Second),
	}
}

// Fetch retrieves the payload. Terminal statuses (4xx except 429) fail
// immediately; connection errors, 429, and 5xx are retried with backoff
// until the breaker opens.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	var payload []byte
	err := s.retryer.Do(ctx, func() error {
		return s.breaker.Execute(func() error {
			data, err := s.fetchOnce(ctx)
			if err != nil {
				return err
			}
			payload = data
			return nil
		})
	})
	if err != nil {
		return nil, newLoadError(LoadErrorTypeFetch, "fetch dataset", s.url, err)
	}
	return payload, nil
}

func (s *HTTPSource) fetchOnce(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/csv, */*")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 1024)
		return nil, &StatusError{Code: resp.StatusCode, URL: s.url}
	}

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip response: %w", err)
		}
		defer func() { _ = gz.Close() }()
		body = gz
	}

	data, err := io.ReadAll(io.LimitReader(body, s.maxBody+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.maxBody {
		return nil, fmt.Errorf("payload exceeds %d bytes", s.maxBody)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	return data, nil
}

// Describe returns the fetch URL.
func (s *HTTPSource) Describe() string {
	return s.url
}

// BreakerState exposes the circuit breaker state for the stats endpoint.
func (s *HTTPSource) BreakerState() string {
	return s.breaker.State()
}
