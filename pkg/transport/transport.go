package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTimeout = 30 * time.Second

	// maxBodyBytes caps the response body. Larger bodies are an Error.
	maxBodyBytes = 8 << 20

	userAgent       = "agentctl/1"
	requestIDHeader = "X-Request-Id"
	formContentType = "application/x-www-form-urlencoded"
)

// ErrBodyTooLarge is wrapped by Error when a response exceeds the body cap.
var ErrBodyTooLarge = fmt.Errorf("response exceeds %d MiB", maxBodyBytes>>20)

// Request is a single agent request. Form values are only sent with POST.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Form   url.Values
	Header http.Header
}

// Response carries the raw status and body. Non-2xx statuses are not errors here.
type Response struct {
	StatusCode int
	Body       []byte
	RequestID  string
}

// Error is a failure to complete the round trip: DNS, refused connection,
// timeout or a broken body.
type Error struct {
	Op  string
	URL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was the client deadline.
func (e *Error) Timeout() bool {
	t, ok := e.Err.(interface{ Timeout() bool })
	return ok && t.Timeout()
}

// Sender is the capability the dispatcher needs from a transport.
type Sender interface {
	Send(ctx context.Context, req Request) (*Response, error)
}

type Client struct {
	httpClient *http.Client
}

// New returns a client whose every round trip is bounded by timeout.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return NewWithClient(&http.Client{Timeout: timeout})
}

func NewWithClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{httpClient: httpClient}
}

// Send performs exactly one HTTP round trip.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse agent url: %w", err)
	}
	if len(req.Query) > 0 {
		query := target.Query()
		for key, values := range req.Query {
			for _, v := range values {
				query.Add(key, v)
			}
		}
		target.RawQuery = query.Encode()
	}

	var body io.Reader
	if method == http.MethodPost && len(req.Form) > 0 {
		body = strings.NewReader(req.Form.Encode())
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", formContentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	requestID := uuid.NewString()
	httpReq.Header.Set(requestIDHeader, requestID)

	logger := log.WithFields(log.Fields{
		"method":    method,
		"host":      target.Host,
		"requestID": requestID,
	})
	startTime := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = redact(target)
		}
		logger.WithError(err).Debug("request failed")
		return nil, &Error{Op: method, URL: redact(target), Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		logger.WithError(err).Debug("failed to read response body")
		return nil, &Error{Op: method, URL: redact(target), Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if len(payload) > maxBodyBytes {
		logger.WithField("status", resp.StatusCode).Debug("response body too large")
		return nil, &Error{Op: method, URL: redact(target), Err: ErrBodyTooLarge}
	}

	logger.WithFields(log.Fields{
		"status":  resp.StatusCode,
		"bytes":   len(payload),
		"elapsed": time.Since(startTime).String(),
	}).Debug("response received")

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       payload,
		RequestID:  requestID,
	}, nil
}

// redact drops the query string, which may carry the token.
func redact(u *url.URL) string {
	clone := *u
	clone.RawQuery = ""
	return clone.String()
}
