package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

var (
	ErrCourseNotFound     = errors.New("course not found in catalog")
	ErrCatalogUnavailable = errors.New("catalog service unavailable")
)

// CourseSnapshot is the catalog's view of a course at lookup time.
type CourseSnapshot struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Capacity int    `json:"capacity"`
	Enrolled int    `json:"enrolled"`
}

type CatalogClient struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewCatalogClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *CatalogClient {
	return &CatalogClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// GetCourseByCode resolves a human-facing course code to the catalog's
// snapshot. ErrCourseNotFound and ErrCatalogUnavailable are distinct.
func (c *CatalogClient) GetCourseByCode(ctx context.Context, code string) (CourseSnapshot, error) {
	endpoint := c.baseURL + "/api/courses/code/" + url.PathEscape(code)
	c.logger.DebugContext(ctx, "calling catalog service", "url", endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return CourseSnapshot{}, fmt.Errorf("%w: build request: %w", ErrCatalogUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return CourseSnapshot{}, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return CourseSnapshot{}, ErrCourseNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return CourseSnapshot{}, fmt.Errorf("%w: unexpected status %d", ErrCatalogUnavailable, resp.StatusCode)
	}

	body, err := decodeEnvelope(resp.Body)
	if err != nil {
		return CourseSnapshot{}, fmt.Errorf("%w: decode response: %w", ErrCatalogUnavailable, err)
	}
	if body.Code == http.StatusNotFound || !body.hasData() {
		return CourseSnapshot{}, ErrCourseNotFound
	}

	var course CourseSnapshot
	if err := json.Unmarshal(body.Data, &course); err != nil {
		return CourseSnapshot{}, fmt.Errorf("%w: decode course: %w", ErrCatalogUnavailable, err)
	}
	if course.ID == "" || course.Capacity < 0 || course.Enrolled < 0 {
		return CourseSnapshot{}, fmt.Errorf("%w: malformed course %q", ErrCatalogUnavailable, code)
	}
	if course.Code == "" {
		course.Code = code
	}
	return course, nil
}

// UpdateEnrolledCount pushes the enrolled count for courseID. Any non-2xx
// answer is an error; callers decide whether it matters.
func (c *CatalogClient) UpdateEnrolledCount(ctx context.Context, courseID string, enrolled int) error {
	endpoint := c.baseURL + "/api/courses/" + url.PathEscape(courseID)

	payload, err := json.Marshal(map[string]int{"enrolled": enrolled})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrCatalogUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: update enrolled count: status %d", ErrCatalogUnavailable, resp.StatusCode)
	}
	return nil
}
