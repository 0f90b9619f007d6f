package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendGetWithQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "info", r.URL.Query().Get("action"))
		assert.Equal(t, "debug-20240101", r.URL.Query().Get("token"))
		assert.Equal(t, "1", r.URL.Query().Get("keep"))
		assert.NotEmpty(t, r.Header.Get(requestIDHeader))
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	client := NewWithClient(srv.Client())
	resp, err := client.Send(context.Background(), Request{
		Method: http.MethodGet,
		URL:    srv.URL + "/remote-agent.php?keep=1",
		Query:  url.Values{"action": {"info"}, "token": {"debug-20240101"}},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"status":"ok"}`, string(resp.Body))
	assert.NotEmpty(t, resp.RequestID)
}

func TestSendPostForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, formContentType, r.Header.Get("Content-Type"))
		assert.Equal(t, "agent-20240101", r.Header.Get("X-Auth-Token"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "write", r.PostForm.Get("action"))
		assert.Equal(t, "a & b = c", r.PostForm.Get("content"))
		_, _ = io.WriteString(w, `{"success":true}`)
	}))
	defer srv.Close()

	client := NewWithClient(srv.Client())
	resp, err := client.Send(context.Background(), Request{
		Method: http.MethodPost,
		URL:    srv.URL,
		Form:   url.Values{"action": {"write"}, "content": {"a & b = c"}},
		Header: http.Header{"X-Auth-Token": {"agent-20240101"}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"success":true}`, string(resp.Body))
}

func TestSendPassesThroughNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, "Access Denied.")
	}))
	defer srv.Close()

	resp, err := NewWithClient(srv.Client()).Send(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Access Denied.", string(resp.Body))
}

func TestSendTimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := New(50 * time.Millisecond)
	_, err := client.Send(context.Background(), Request{
		URL:   srv.URL,
		Query: url.Values{"token": {"secret"}},
	})
	var transportErr *Error
	require.True(t, errors.As(err, &transportErr))
	assert.True(t, transportErr.Timeout())
	assert.NotContains(t, transportErr.Error(), "secret")
}

func TestSendConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := New(time.Second).Send(context.Background(), Request{URL: addr})
	var transportErr *Error
	require.True(t, errors.As(err, &transportErr))
	assert.True(t, strings.HasPrefix(transportErr.Error(), "GET "))
}

func TestSendInvalidURL(t *testing.T) {
	_, err := New(time.Second).Send(context.Background(), Request{URL: "http://[::1"})
	require.Error(t, err)
	var transportErr *Error
	assert.False(t, errors.As(err, &transportErr))
}

func TestSendOversizedBodyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("x", maxBodyBytes+1))
	}))
	defer srv.Close()

	client := NewWithClient(srv.Client())
	resp, err := client.Send(context.Background(), Request{
		Method: http.MethodGet,
		URL:    srv.URL + "?token=secret",
	})
	assert.Nil(t, resp)

	var transportErr *Error
	require.True(t, errors.As(err, &transportErr))
	assert.ErrorIs(t, err, ErrBodyTooLarge)
	assert.Contains(t, err.Error(), "response exceeds 8 MiB")
	assert.NotContains(t, err.Error(), "secret")
}

func TestSendBodyAtCapIsKept(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("x", maxBodyBytes))
	}))
	defer srv.Close()

	client := NewWithClient(srv.Client())
	resp, err := client.Send(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	require.NoError(t, err)
	assert.Len(t, resp.Body, maxBodyBytes)
}
