package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/slotbook/slotbook-cli/internal/output"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL, Prefix: "/api"})
}

func TestClientSendsHeadersAndBody(t *testing.T) {
	var got struct {
		path, query, requestID, userAgent, contentType, idem string
		body                                                  map[string]any
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.query = r.URL.RawQuery
		got.requestID = r.Header.Get("X-Request-ID")
		got.userAgent = r.Header.Get("User-Agent")
		got.contentType = r.Header.Get("Content-Type")
		got.idem = r.Header.Get("Idempotency-Key")
		_ = json.NewDecoder(r.Body).Decode(&got.body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":5}`))
	})

	resp, err := c.Do(context.Background(), &Request{
		Method: http.MethodPost,
		Path:   "/appointments/",
		Query:  url.Values{"business": {"3"}},
		Body:   map[string]any{"notes": "hi"},
		Header: http.Header{"Idempotency-Key": {"k-1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var data struct {
		ID int `json:"id"`
	}
	require.NoError(t, resp.UnmarshalData(&data))
	assert.Equal(t, 5, data.ID)

	assert.Equal(t, "/api/appointments/", got.path)
	assert.Equal(t, "business=3", got.query)
	assert.Len(t, got.requestID, 36)
	assert.Contains(t, got.userAgent, "slotbook-cli/")
	assert.Equal(t, "application/json", got.contentType)
	assert.Equal(t, "k-1", got.idem)
	assert.Equal(t, "hi", got.body["notes"])
}

func TestClientStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		header   map[string]string
		wantCode string
		check    func(t *testing.T, e *output.Error)
	}{
		{
			name: "validation", status: 400,
			body:     `{"email":["Enter a valid email address."],"non_field_errors":["Nope."]}`,
			wantCode: output.CodeValidation,
			check: func(t *testing.T, e *output.Error) {
				assert.Equal(t, []string{"Enter a valid email address."}, e.Fields["email"])
				assert.Equal(t, "email: Enter a valid email address.; Nope.", e.Hint)
			},
		},
		{
			name: "nested validation", status: 400,
			body:     `{"hours":{"monday":["Closing before opening."]}}`,
			wantCode: output.CodeValidation,
			check: func(t *testing.T, e *output.Error) {
				assert.Equal(t, []string{"Closing before opening."}, e.Fields["hours.monday"])
			},
		},
		{
			name: "unauthorized", status: 401,
			body:     `{"detail":"Given token not valid for any token type"}`,
			wantCode: output.CodeAuth,
			check: func(t *testing.T, e *output.Error) {
				assert.True(t, e.IsUnauthorized())
				assert.Equal(t, "Given token not valid for any token type", e.Message)
			},
		},
		{name: "forbidden", status: 403, body: `{"detail":"Not yours."}`, wantCode: output.CodeForbidden},
		{name: "not found", status: 404, body: `{"detail":"Not found."}`, wantCode: output.CodeNotFound},
		{name: "conflict", status: 409, body: `{"detail":"This time slot is already booked."}`, wantCode: output.CodeConflict},
		{
			name: "rate limited", status: 429, header: map[string]string{"Retry-After": "7"},
			wantCode: output.CodeRateLimit,
			check: func(t *testing.T, e *output.Error) {
				assert.Equal(t, "Try again in 7 seconds", e.Hint)
			},
		},
		{
			name: "server error", status: 503, body: `<html>`,
			wantCode: output.CodeAPI,
			check: func(t *testing.T, e *output.Error) {
				assert.True(t, e.Retryable)
				assert.Equal(t, 503, e.HTTPStatus)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Get(context.Background(), "/x/", nil)
			require.Error(t, err)
			e := output.AsError(err)
			assert.Equal(t, tt.wantCode, e.Code)
			if tt.check != nil {
				tt.check(t, e)
			}
		})
	}
}

func TestClientNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	_, err := c.Get(context.Background(), "/x/", nil)
	require.Error(t, err)
	assert.Equal(t, output.CodeNetwork, output.AsError(err).Code)
}

func TestClientCancelledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Get(ctx, "/slow/", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClientAttachesCookies(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/jwt/create/" {
			http.SetCookie(w, &http.Cookie{Name: "access", Value: "abc", Path: "/"})
			return
		}
		if c, err := r.Cookie("access"); err == nil {
			seen = c.Value
		}
	}))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	c := NewClient(Options{BaseURL: srv.URL, Prefix: "api", Jar: jar})

	_, err = c.Post(context.Background(), "/jwt/create/", map[string]string{"email": "a@b.c"})
	require.NoError(t, err)
	_, err = c.Get(context.Background(), "/users/me/", nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", seen)
}

func TestClientRateLimiterHonorsContext(t *testing.T) {
	c := NewClient(Options{
		BaseURL: "https://api.example.com",
		Limiter: rate.NewLimiter(rate.Every(time.Hour), 1),
	})
	require.True(t, c.limiter.Allow()) // drain the burst

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.Get(ctx, "/x/", nil)
	require.Error(t, err)
}

func TestClientURL(t *testing.T) {
	c := NewClient(Options{BaseURL: "api.example.com/", Prefix: "/api/"})
	assert.Equal(t, "https://api.example.com/api/staff/", c.URL("staff/", nil))
	assert.Equal(t, "https://api.example.com/api/staff/?business=2", c.URL("/staff/", url.Values{"business": {"2"}}))
	assert.Equal(t, "https://next.example.com/api/x/?page=2&page_size=5",
		c.URL("https://next.example.com/api/x/?page=2", url.Values{"page_size": {"5"}}))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 0, parseRetryAfter(""))
	assert.Equal(t, 120, parseRetryAfter("120"))
	assert.Equal(t, 0, parseRetryAfter("soon"))
	future := time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat)
	assert.InDelta(t, 30, parseRetryAfter(future), 2)
}
