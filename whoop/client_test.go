package whoop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "whoopsync/internal/errors"
)

// staticTokens is a TokenSource returning a fixed token, counting calls.
type staticTokens struct {
	mu    sync.Mutex
	token string
	err   error
	calls int
}

func (s *staticTokens) GetValidToken(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.token, nil
}

func testWindow(t *testing.T) Window {
	t.Helper()
	w, err := ParseWindow("2025-06-01", "2025-06-07")
	require.NoError(t, err)
	return w
}

func TestClientUserProfile(t *testing.T) {
	tokens := &staticTokens{token: "test-access"}
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/user/profile/basic", r.URL.Path)
		_ = json.NewEncoder(w).Encode(UserProfile{UserID: 42, Email: "user@example.com", FirstName: "Ada"})
	}))
	defer srv.Close()

	client := NewClient(tokens, WithBaseURL(srv.URL))
	profile, err := client.UserProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), profile.UserID)
	assert.Equal(t, "user@example.com", profile.Email)
	assert.Equal(t, "Bearer test-access", gotAuth)
}

func TestClientPaginatesUntilNoNextToken(t *testing.T) {
	tokens := &staticTokens{token: "test-access"}
	const totalPages = 3

	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RawQuery)
		q := r.URL.Query()
		assert.Equal(t, "2025-06-01T00:00:00.000Z", q.Get("start"))
		assert.Equal(t, "2025-06-07T23:59:59.999Z", q.Get("end"))

		pageNum := len(requests)
		resp := map[string]any{
			"records": []map[string]any{{"id": pageNum}, {"id": pageNum * 10}},
		}
		if pageNum < totalPages {
			resp["next_token"] = fmt.Sprintf("cursor-%d", pageNum)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewClient(tokens, WithBaseURL(srv.URL))
	cycles, err := client.Cycles(context.Background(), testWindow(t))
	require.NoError(t, err)
	assert.Len(t, cycles, 2*totalPages)
	require.Len(t, requests, totalPages)

	// The cursor is threaded through, absent on the first request.
	assert.NotContains(t, requests[0], "nextToken")
	assert.Contains(t, requests[1], "nextToken=cursor-1")
	assert.Contains(t, requests[2], "nextToken=cursor-2")

	// A token is fetched per request, never cached at this layer.
	assert.Equal(t, totalPages, tokens.calls)
}

func TestClientTooManyPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Never terminates the cursor chain.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"records":    []map[string]any{{"id": "1"}},
			"next_token": "again",
		})
	}))
	defer srv.Close()

	client := NewClient(&staticTokens{token: "t"}, WithBaseURL(srv.URL), WithMaxPages(3))
	_, err := client.Sleeps(context.Background(), testWindow(t))
	assert.True(t, errors.Is(err, errs.ErrTooManyPages))
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(&staticTokens{token: "stale"}, WithBaseURL(srv.URL))
	_, err := client.Recoveries(context.Background(), testWindow(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrAPIRequestFailed))

	var apiErr *errs.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Contains(t, apiErr.Body, "invalid_token")
}

func TestClientPropagatesTokenSourceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request must be sent without a token")
	}))
	defer srv.Close()

	tokens := &staticTokens{err: errs.ErrNotAuthenticated}
	client := NewClient(tokens, WithBaseURL(srv.URL))
	_, err := client.Workouts(context.Background(), testWindow(t))
	assert.True(t, errors.Is(err, errs.ErrNotAuthenticated))
}
