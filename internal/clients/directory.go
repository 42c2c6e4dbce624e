package clients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// ErrDirectoryUnavailable covers every directory failure except a
// well-formed "not found" answer.
var ErrDirectoryUnavailable = errors.New("directory service unavailable")

type DirectoryClient struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewDirectoryClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *DirectoryClient {
	return &DirectoryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// StudentExists reports whether the directory knows studentID. A 404 status
// or an envelope code of 404 is a negative answer; timeouts, 5xx responses
// and malformed bodies return ErrDirectoryUnavailable.
func (c *DirectoryClient) StudentExists(ctx context.Context, studentID string) (bool, error) {
	endpoint := c.baseURL + "/api/students?" + url.Values{"studentid": {studentID}}.Encode()
	c.logger.DebugContext(ctx, "calling directory service", "url", endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("%w: build request: %w", ErrDirectoryUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: unexpected status %d", ErrDirectoryUnavailable, resp.StatusCode)
	}

	body, err := decodeEnvelope(resp.Body)
	if err != nil {
		return false, fmt.Errorf("%w: decode response: %w", ErrDirectoryUnavailable, err)
	}

	switch body.Code {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("%w: response code %d: %s", ErrDirectoryUnavailable, body.Code, body.Message)
	}
}
