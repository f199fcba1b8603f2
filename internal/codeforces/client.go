package codeforces

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	pkgerrors "acmdaily/pkg/errors"
)

const (
	defaultBaseURL         = "https://codeforces.com/api"
	defaultTimeout         = 15 * time.Second
	defaultSubmissionCount = 1000
)

// Config holds Codeforces API client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration

	// SubmissionCount is how many submissions one contest.status call
	// requests, newest first.
	SubmissionCount int
}

// Client is a thin request/parse wrapper around the Codeforces REST API.
// Every failure, transport or envelope, surfaces as FeedUnavailable so
// callers can treat it as "no new data this cycle".
type Client struct {
	baseURL         string
	httpClient      *http.Client
	submissionCount int
}

// NewClient creates a Codeforces API client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.SubmissionCount == 0 {
		cfg.SubmissionCount = defaultSubmissionCount
	}
	return &Client{
		baseURL:         cfg.BaseURL,
		httpClient:      &http.Client{Timeout: cfg.Timeout},
		submissionCount: cfg.SubmissionCount,
	}
}

// envelope is the status wrapper every Codeforces API response carries.
type envelope struct {
	Status  string          `json:"status"`
	Comment string          `json:"comment"`
	Result  json.RawMessage `json:"result"`
}

// FetchCatalog retrieves the full problemset catalog.
func (c *Client) FetchCatalog(ctx context.Context) ([]CatalogProblem, error) {
	result, err := c.get(ctx, "/problemset.problems", nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Problems []CatalogProblem `json:"problems"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.FeedMalformed, "decode problemset response failed")
	}
	return payload.Problems, nil
}

// FetchSubmissions retrieves the most recent submissions of a contest,
// newest first, as the feed reports them.
func (c *Client) FetchSubmissions(ctx context.Context, contestID int64) ([]Submission, error) {
	params := url.Values{}
	params.Set("contestId", strconv.FormatInt(contestID, 10))
	params.Set("from", "1")
	params.Set("count", strconv.Itoa(c.submissionCount))

	result, err := c.get(ctx, "/contest.status", params)
	if err != nil {
		return nil, err
	}

	var submissions []Submission
	if err := json.Unmarshal(result, &submissions); err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.FeedMalformed, "decode contest.status response failed")
	}
	return submissions, nil
}

// FetchUser resolves a handle against user.info. A handle the upstream
// does not know yields HandleNotFound.
func (c *Client) FetchUser(ctx context.Context, handle string) (User, error) {
	if handle == "" {
		return User{}, pkgerrors.New(pkgerrors.InvalidParams).WithMessage("handle is required")
	}
	params := url.Values{}
	params.Set("handles", handle)

	result, err := c.get(ctx, "/user.info", params)
	if err != nil {
		// The API reports unknown handles through a FAILED envelope.
		if pkgerrors.Is(err, pkgerrors.FeedUnavailable) && isEnvelopeFailure(err) {
			return User{}, pkgerrors.Newf(pkgerrors.HandleNotFound, "handle %q not found", handle)
		}
		return User{}, err
	}

	var users []User
	if err := json.Unmarshal(result, &users); err != nil {
		return User{}, pkgerrors.Wrapf(err, pkgerrors.FeedMalformed, "decode user.info response failed")
	}
	if len(users) == 0 {
		return User{}, pkgerrors.Newf(pkgerrors.HandleNotFound, "handle %q not found", handle)
	}
	return users[0], nil
}

// get performs a GET request and unwraps the status envelope.
func (c *Client) get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.FeedUnavailable, "build request failed")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.FeedUnavailable, "request %s failed", path)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.FeedUnavailable, "read response body failed")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, pkgerrors.Newf(pkgerrors.FeedUnavailable, "%s returned status %d", path, resp.StatusCode).
			WithDetail("status_code", resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.FeedMalformed, "decode response envelope failed")
	}
	if env.Status != "OK" {
		return nil, pkgerrors.Newf(pkgerrors.FeedUnavailable, "%s returned status %q", path, env.Status).
			WithDetail("envelope_status", env.Status).
			WithDetail("comment", env.Comment)
	}
	return env.Result, nil
}

func isEnvelopeFailure(err error) bool {
	e := pkgerrors.GetError(err)
	if e == nil {
		return false
	}
	_, ok := e.Details["envelope_status"]
	return ok
}
