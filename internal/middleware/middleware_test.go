package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passThrough(calls *int) echo.HandlerFunc {
	return func(c echo.Context) error {
		*calls++
		return c.String(http.StatusOK, "handled")
	}
}

func serve(mw echo.MiddlewareFunc, handler echo.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	e := echo.New()
	e.POST("/hook", handler, mw)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func hookRequest(body, token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))
	if token != "" {
		req.Header.Set(WebhookTokenHeader, token)
	}
	return req
}

func TestWebhookAuth(t *testing.T) {
	cases := []struct {
		name     string
		secret   string
		token    string
		wantCode int
		wantNext bool
	}{
		{"correct token", "secret", "secret", http.StatusOK, true},
		{"wrong token", "secret", "nope", http.StatusUnauthorized, false},
		{"missing token", "secret", "", http.StatusUnauthorized, false},
		{"empty secret rejects everything", "", "anything", http.StatusUnauthorized, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			rec := serve(WebhookAuth(tc.secret), passThrough(&calls), hookRequest("{}", tc.token))
			assert.Equal(t, tc.wantCode, rec.Code)
			assert.Equal(t, tc.wantNext, calls == 1)
		})
	}
}

func TestMemoryDeduperSeen(t *testing.T) {
	d := newMemoryEventDeduper(time.Hour)

	seen, err := d.Seen(context.Background(), "abc")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = d.Seen(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = d.Seen(context.Background(), "other")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryDeduperExpiry(t *testing.T) {
	d := newMemoryEventDeduper(time.Millisecond)

	seen, err := d.Seen(context.Background(), "abc")
	require.NoError(t, err)
	require.False(t, seen)

	time.Sleep(5 * time.Millisecond)

	seen, err = d.Seen(context.Background(), "abc")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestWebhookDedupShortCircuitsDuplicates(t *testing.T) {
	d := newMemoryEventDeduper(time.Hour)
	mw := WebhookDedup(d)
	calls := 0

	rec := serve(mw, passThrough(&calls), hookRequest(`{"event":"X"}`, ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "handled", rec.Body.String())
	assert.Equal(t, 1, calls)

	rec = serve(mw, passThrough(&calls), hookRequest(`{"event":"X"}`, ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, 1, calls)

	// Different body is not a duplicate.
	rec = serve(mw, passThrough(&calls), hookRequest(`{"event":"Y"}`, ""))
	assert.Equal(t, "handled", rec.Body.String())
	assert.Equal(t, 2, calls)
}

type failingDeduper struct{}

func (failingDeduper) Seen(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func (failingDeduper) Forget(context.Context, string) error {
	return errors.New("redis down")
}

func TestWebhookDedupFailsOpen(t *testing.T) {
	mw := WebhookDedup(failingDeduper{})
	calls := 0

	for i := 0; i < 2; i++ {
		rec := serve(mw, passThrough(&calls), hookRequest(`{"event":"X"}`, ""))
		assert.Equal(t, "handled", rec.Body.String())
	}
	assert.Equal(t, 2, calls)
}

func TestWebhookDedupReleasesFingerprintOnFailure(t *testing.T) {
	d := newMemoryEventDeduper(time.Hour)
	mw := WebhookDedup(d)
	calls := 0
	failing := func(c echo.Context) error {
		calls++
		return c.String(http.StatusServiceUnavailable, "retry later")
	}

	rec := serve(mw, failing, hookRequest(`{"event":"X"}`, ""))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, 1, calls)

	// The provider retries the identical payload; it must reach the
	// handler again rather than be swallowed as a duplicate.
	rec = serve(mw, passThrough(&calls), hookRequest(`{"event":"X"}`, ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "handled", rec.Body.String())
	assert.Equal(t, 2, calls)

	// Once acknowledged, the fingerprint sticks.
	rec = serve(mw, passThrough(&calls), hookRequest(`{"event":"X"}`, ""))
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, 2, calls)
}

func TestWebhookDedupPreservesBodyForHandler(t *testing.T) {
	d := newMemoryEventDeduper(time.Hour)
	var gotBody string
	handler := func(c echo.Context) error {
		buf := make([]byte, 64)
		n, _ := c.Request().Body.Read(buf)
		gotBody = string(buf[:n])
		return c.String(http.StatusOK, "handled")
	}

	serve(WebhookDedup(d), handler, hookRequest(`{"event":"Z"}`, ""))
	assert.Equal(t, `{"event":"Z"}`, gotBody)
}
