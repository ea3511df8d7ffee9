package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/your-org/ci-breakage-dashboard/pkg/logger"
	"github.com/your-org/ci-breakage-dashboard/pkg/metrics"
	"github.com/your-org/ci-breakage-dashboard/pkg/models"
)

// Analytics API endpoints consumed by the dashboard
const (
	PathAnnotated         = "/api/code-breakages-annotated"
	PathDetected          = "/api/code-breakages-detected"
	PathLeftover          = "/api/code-breakages-leftover-detected"
	PathAuthorStats       = "/api/code-breakages-author-stats"
	PathWeeklyImpact      = "/api/downstream-impact-weekly"
	PathFailureModeCounts = "/api/master-deterministic-failure-modes"
	PathListFailureModes  = "/api/list-failure-modes"
	PathPattern           = "/api/pattern"
	PathPatterns          = "/api/patterns"
	PathPatternMatches    = "/api/pattern-matches"
	PathSummary           = "/api/summary"
	PathStep              = "/api/step"
	PathDelete            = "/api/code-breakage-delete"
	PathModeUpdate        = "/api/code-breakage-mode-update"
	PathDescriptionUpdate = "/api/code-breakage-description-update"
)

const (
	maxErrorBodyBytes     = 512
	defaultRequestTimeout = 15 * time.Second
)

// Client talks to the CI failure analytics REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a client for the analytics API rooted at baseURL
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client was built with
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetJSON issues a GET for path with the given query and decodes the body into out
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	const op = "GET"
	if c == nil || c.baseURL == "" {
		return &Error{Kind: KindNetwork, Op: op, Endpoint: path, Err: fmt.Errorf("analytics API base URL not configured")}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, Endpoint: path, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	err = c.do(req, op, path, out)
	observe(path, start, err)
	return err
}

// PostJSON issues a POST with a JSON payload. Any non-2xx response is a
// mutation failure; the response body is otherwise ignored
func (c *Client) PostJSON(ctx context.Context, path string, payload any) error {
	const op = "POST"
	if c == nil || c.baseURL == "" {
		return &Error{Kind: KindNetwork, Op: op, Endpoint: path, Err: fmt.Errorf("analytics API base URL not configured")}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &Error{Kind: KindMalformed, Op: op, Endpoint: path, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, Endpoint: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	err = c.do(req, op, path, nil)
	observe(path, start, err)
	return err
}

func (c *Client) do(req *http.Request, op, path string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(op, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := KindUpstreamStatus
		if op == "POST" {
			kind = KindMutationFailed
		}
		return &Error{
			Kind:       kind,
			Op:         op,
			Endpoint:   path,
			StatusCode: resp.StatusCode,
			Err:        errorBody(resp),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if req.Context().Err() != nil {
			return transportError(op, path, req.Context().Err())
		}
		return &Error{Kind: KindMalformed, Op: op, Endpoint: path, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func errorBody(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes+1))
	text := strings.TrimSpace(string(data))
	if text == "" {
		return fmt.Errorf("%s", resp.Status)
	}
	if len(text) > maxErrorBodyBytes {
		text = text[:maxErrorBodyBytes] + "..."
	}
	return fmt.Errorf("%s: %s", resp.Status, text)
}

func observe(path string, start time.Time, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
		logger.WithFields(map[string]interface{}{
			"endpoint": path,
			"kind":     string(KindOf(err)),
		}).Debugf("analytics API call failed: %v", err)
	}
	metrics.ObserveFetch(path, time.Since(start), outcome)
}

// AnnotatedBreakages lists breakages that carry a human annotation
func (c *Client) AnnotatedBreakages(ctx context.Context) ([]models.BreakageRecord, error) {
	var rows []models.BreakageRecord
	if err := c.GetJSON(ctx, PathAnnotated, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// DetectedBreakages lists automatically detected breakages
func (c *Client) DetectedBreakages(ctx context.Context) ([]models.DetectedBreakage, error) {
	var rows []models.DetectedBreakage
	if err := c.GetJSON(ctx, PathDetected, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// LeftoverBreakages lists detected breakages with no annotation
func (c *Client) LeftoverBreakages(ctx context.Context) ([]models.LeftoverBreakage, error) {
	var rows []models.LeftoverBreakage
	if err := c.GetJSON(ctx, PathLeftover, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// AuthorStats returns per-author breakage totals
func (c *Client) AuthorStats(ctx context.Context) ([]models.AuthorStats, error) {
	var rows []models.AuthorStats
	if err := c.GetJSON(ctx, PathAuthorStats, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// WeeklyImpact returns downstream impact for the last weeks full weeks
func (c *Client) WeeklyImpact(ctx context.Context, weeks int) ([]models.WeeklyImpact, error) {
	query := url.Values{"weeks": []string{strconv.Itoa(weeks)}}
	var points []models.WeeklyImpact
	if err := c.GetJSON(ctx, PathWeeklyImpact, query, &points); err != nil {
		return nil, err
	}
	return points, nil
}

// FailureModeCounts returns the deterministic failure mode distribution on master
func (c *Client) FailureModeCounts(ctx context.Context) ([]models.NamedCount, error) {
	var pie models.PieRows
	if err := c.GetJSON(ctx, PathFailureModeCounts, nil, &pie); err != nil {
		return nil, err
	}
	return pie.Rows, nil
}

// StepFailures returns failure counts by build step name
func (c *Client) StepFailures(ctx context.Context) ([]models.NamedCount, error) {
	var pie models.PieRows
	if err := c.GetJSON(ctx, PathStep, nil, &pie); err != nil {
		return nil, err
	}
	return pie.Rows, nil
}

// FailureModes returns every known failure mode
func (c *Client) FailureModes(ctx context.Context) ([]models.FailureMode, error) {
	var records []models.FailureModeRecord
	if err := c.GetJSON(ctx, PathListFailureModes, nil, &records); err != nil {
		return nil, err
	}
	modes := make([]models.FailureMode, 0, len(records))
	for _, r := range records {
		modes = append(modes, r.Mode())
	}
	return modes, nil
}

// Summary returns the failure triage funnel counts
func (c *Client) Summary(ctx context.Context) (*models.Summary, error) {
	var summary models.Summary
	if err := c.GetJSON(ctx, PathSummary, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Patterns lists every pattern, or only the one matching patternID when set
func (c *Client) Patterns(ctx context.Context, patternID string) ([]models.PatternRecord, error) {
	path, query := PatternsSource(patternID)
	var rows []models.PatternRecord
	if err := c.GetJSON(ctx, path, query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// PatternMatches lists log lines matched by a pattern
func (c *Client) PatternMatches(ctx context.Context, patternID string) ([]models.PatternMatch, error) {
	query := url.Values{"pattern_id": []string{patternID}}
	var rows []models.PatternMatch
	if err := c.GetJSON(ctx, PathPatternMatches, query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// PatternsSource picks the list or single-pattern endpoint
func PatternsSource(patternID string) (string, url.Values) {
	if patternID == "" {
		return PathPatterns, nil
	}
	return PathPattern, url.Values{"pattern_id": []string{patternID}}
}

// DeleteBreakage marks a breakage cause deleted
func (c *Client) DeleteBreakage(ctx context.Context, causeID int64) error {
	payload := map[string]interface{}{"cause_id": causeID}
	return c.PostJSON(ctx, PathDelete, payload)
}

// UpdateMode changes the failure mode of a breakage cause
func (c *Client) UpdateMode(ctx context.Context, causeID, mode int64) error {
	payload := map[string]interface{}{"cause_id": causeID, "mode": mode}
	return c.PostJSON(ctx, PathModeUpdate, payload)
}

// UpdateDescription replaces the free-text notes of a breakage cause
func (c *Client) UpdateDescription(ctx context.Context, causeID int64, description string) error {
	payload := map[string]interface{}{"cause_id": causeID, "description": description}
	return c.PostJSON(ctx, PathDescriptionUpdate, payload)
}
