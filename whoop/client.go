package whoop

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	errs "whoopsync/internal/errors"
)

// DefaultBaseURL is the Whoop developer API base.
const DefaultBaseURL = "https://api.prod.whoop.com/developer/v1"

// DefaultMaxPages bounds cursor pagination so a misbehaving provider that
// never terminates the next_token chain cannot loop the client forever.
const DefaultMaxPages = 500

// TokenSource supplies a valid access token for each request. Implemented by
// *auth.Manager.
type TokenSource interface {
	GetValidToken(ctx context.Context) (string, error)
}

// Client is an authenticated Whoop API client. Every request obtains a token
// from the TokenSource immediately before sending; nothing is cached at this
// layer.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	maxPages   int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL (primarily for testing).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient sets the HTTP client used for API requests.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// WithMaxPages sets the pagination safety cap.
func WithMaxPages(maxPages int) ClientOption {
	return func(c *Client) { c.maxPages = maxPages }
}

// NewClient creates an API client backed by the given token source.
func NewClient(tokens TokenSource, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		tokens:     tokens,
		httpClient: http.DefaultClient,
		maxPages:   DefaultMaxPages,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// get performs an authenticated GET and decodes the JSON response into v.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, v any) error {
	token, err := c.tokens.GetValidToken(ctx)
	if err != nil {
		return err
	}

	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errs.Wrapf(err, "building request for %s", endpoint)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.Wrapf(err, "requesting %s", endpoint)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrapf(err, "reading response from %s", endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &errs.APIError{Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errs.Wrapf(err, "decoding response from %s", endpoint)
	}
	return nil
}

// page is one response of a cursor-paginated endpoint.
type page[T any] struct {
	Records   []T    `json:"records"`
	NextToken string `json:"next_token"`
}

// getPaginated walks a cursor-paginated endpoint to completion, accumulating
// records until the provider returns no next_token or the page cap is hit.
func getPaginated[T any](ctx context.Context, c *Client, endpoint string, w Window) ([]T, error) {
	var all []T
	nextToken := ""
	for pages := 0; ; pages++ {
		if pages >= c.maxPages {
			return nil, fmt.Errorf("%w: %s after %d pages", errs.ErrTooManyPages, endpoint, c.maxPages)
		}
		params := url.Values{
			"start": {w.startParam()},
			"end":   {w.endParam()},
		}
		if nextToken != "" {
			params.Set("nextToken", nextToken)
		}
		var p page[T]
		if err := c.get(ctx, endpoint, params, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Records...)
		if p.NextToken == "" {
			return all, nil
		}
		nextToken = p.NextToken
	}
}

// UserProfile fetches the basic user profile.
func (c *Client) UserProfile(ctx context.Context) (*UserProfile, error) {
	log.Info().Msg("Fetching user profile")
	var profile UserProfile
	if err := c.get(ctx, "/user/profile/basic", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// BodyMeasurement fetches the user's body measurement data.
func (c *Client) BodyMeasurement(ctx context.Context) (*BodyMeasurement, error) {
	log.Info().Msg("Fetching body measurement")
	var measurement BodyMeasurement
	if err := c.get(ctx, "/user/measurement/body", nil, &measurement); err != nil {
		return nil, err
	}
	return &measurement, nil
}

// Cycles fetches all physiological cycles in the window.
func (c *Client) Cycles(ctx context.Context, w Window) ([]Cycle, error) {
	log.Info().Str("start", w.StartDate()).Str("end", w.EndDate()).Msg("Fetching cycles")
	records, err := getPaginated[Cycle](ctx, c, "/cycle", w)
	if err != nil {
		return nil, err
	}
	log.Info().Int("records", len(records)).Msg("Fetched cycles")
	return records, nil
}

// Recoveries fetches all recovery records in the window.
func (c *Client) Recoveries(ctx context.Context, w Window) ([]Recovery, error) {
	log.Info().Str("start", w.StartDate()).Str("end", w.EndDate()).Msg("Fetching recovery")
	records, err := getPaginated[Recovery](ctx, c, "/recovery", w)
	if err != nil {
		return nil, err
	}
	log.Info().Int("records", len(records)).Msg("Fetched recovery")
	return records, nil
}

// Sleeps fetches all sleep records in the window.
func (c *Client) Sleeps(ctx context.Context, w Window) ([]Sleep, error) {
	log.Info().Str("start", w.StartDate()).Str("end", w.EndDate()).Msg("Fetching sleep")
	records, err := getPaginated[Sleep](ctx, c, "/activity/sleep", w)
	if err != nil {
		return nil, err
	}
	log.Info().Int("records", len(records)).Msg("Fetched sleep")
	return records, nil
}

// Workouts fetches all workout records in the window.
func (c *Client) Workouts(ctx context.Context, w Window) ([]Workout, error) {
	log.Info().Str("start", w.StartDate()).Str("end", w.EndDate()).Msg("Fetching workouts")
	records, err := getPaginated[Workout](ctx, c, "/activity/workout", w)
	if err != nil {
		return nil, err
	}
	log.Info().Int("records", len(records)).Msg("Fetched workouts")
	return records, nil
}
