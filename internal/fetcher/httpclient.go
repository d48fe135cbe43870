package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"resty.dev/v3"
)

const (
	// DefaultTimeout bounds a single source call.
	DefaultTimeout = 10 * time.Second

	userAgent = "Mozilla/5.0 (compatible; mervalboard/1.0)"
)

// NewHTTPClient creates the HTTP client shared by the quote sources.
// Retries are disabled: a failed call falls through to the next source
// in the chain instead of being repeated.
func NewHTTPClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent)
}

// Relay routes a request through a URL-prefix proxy such as
// "https://api.allorigins.win/raw?url=". The zero value calls the target directly.
type Relay string

// Wrap returns the URL to request for target.
func (r Relay) Wrap(target string) string {
	if r == "" {
		return target
	}
	return string(r) + url.QueryEscape(target)
}

// GetJSON issues a GET for rawURL and decodes a 2xx JSON body into result.
// Relays frequently answer with text/plain, so the body is always decoded as JSON.
func GetJSON(ctx context.Context, client *resty.Client, rawURL string, result any) error {
	resp, err := client.R().
		SetContext(ctx).
		SetForceResponseContentType("application/json").
		SetResult(result).
		Get(rawURL)

	if err != nil {
		return ClassifyTransportError(err)
	}

	if !resp.IsSuccess() {
		return ClassifyHTTPError(resp.StatusCode())
	}

	return nil
}

// LogUnavailable records why a source produced no quote.
func LogUnavailable(logger *slog.Logger, source, symbol string, err error) {
	attrs := []any{
		"source", source,
		"symbol", symbol,
		"error", err.Error(),
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		attrs = append(attrs, "error_type", string(fe.Type))
		if fe.StatusCode > 0 {
			attrs = append(attrs, "status_code", fe.StatusCode)
		}
	}
	logger.Debug("quote source unavailable", attrs...)
}
