package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/abshkbh/agentctl/pkg/action"
	"github.com/abshkbh/agentctl/pkg/envelope"
	"github.com/abshkbh/agentctl/pkg/token"
	"github.com/abshkbh/agentctl/pkg/transport"
)

// Config wires a dispatcher to one agent endpoint.
type Config struct {
	URL          string
	Token        token.Token
	Convention   Convention
	Transport    transport.Sender
	PreviewLimit int
}

// Dispatcher sends one action per call to a single agent. It holds no state
// besides the token fixed at construction.
type Dispatcher struct {
	url          string
	token        token.Token
	convention   Convention
	transport    transport.Sender
	previewLimit int
}

func New(cfg Config) (*Dispatcher, error) {
	if cfg.URL == "" {
		return nil, errors.New("agent url is required")
	}
	if cfg.Convention.Build == nil || cfg.Convention.Decode == nil {
		return nil, errors.New("agent convention is required")
	}
	if cfg.Token.Value == "" {
		return nil, errors.New("token is required")
	}
	if cfg.Token.Namespace != cfg.Convention.Namespace {
		return nil, fmt.Errorf(
			"token for %q cannot be used with the %s endpoint",
			cfg.Token.Namespace, cfg.Convention.Name)
	}
	if cfg.Transport == nil {
		cfg.Transport = transport.New(transport.DefaultTimeout)
	}
	if cfg.PreviewLimit <= 0 {
		cfg.PreviewLimit = envelope.DefaultPreviewLimit
	}
	return &Dispatcher{
		url:          cfg.URL,
		token:        cfg.Token,
		convention:   cfg.Convention,
		transport:    cfg.Transport,
		previewLimit: cfg.PreviewLimit,
	}, nil
}

func (d *Dispatcher) URL() string {
	return d.url
}

func (d *Dispatcher) Token() token.Token {
	return d.token
}

// Dispatch sends a non-destructive action and returns its payload.
//
// The error is one of *transport.Error, *AuthError, *envelope.DecodeError or
// *AppError, or a local validation error when nothing was sent.
func (d *Dispatcher) Dispatch(ctx context.Context, a action.Action, params map[string]string) (json.RawMessage, error) {
	schema, err := action.Validate(d.convention.Namespace, a, params)
	if err != nil {
		return nil, err
	}
	if schema.Destructive {
		return nil, fmt.Errorf("%s: %w", a, ErrConfirmationRequired)
	}
	return d.roundTrip(ctx, a, params)
}

// DispatchConfirmed sends an action after the caller obtained an explicit
// confirmation from the operator. It also accepts non-destructive actions.
func (d *Dispatcher) DispatchConfirmed(ctx context.Context, a action.Action, params map[string]string) (json.RawMessage, error) {
	if _, err := action.Validate(d.convention.Namespace, a, params); err != nil {
		return nil, err
	}
	return d.roundTrip(ctx, a, params)
}

func (d *Dispatcher) roundTrip(ctx context.Context, a action.Action, params map[string]string) (json.RawMessage, error) {
	logger := log.WithFields(log.Fields{
		"agent":  d.convention.Name,
		"action": a,
	})
	startTime := time.Now()

	req := d.convention.Build(d.url, d.token.Current(), a, params)
	resp, err := d.transport.Send(ctx, req)
	if err != nil {
		logger.WithError(err).Debug("dispatch failed")
		return nil, err
	}
	logger = logger.WithFields(log.Fields{
		"requestID": resp.RequestID,
		"status":    resp.StatusCode,
		"elapsed":   time.Since(startTime).String(),
	})

	if resp.StatusCode == http.StatusForbidden {
		logger.Debug("token rejected")
		return nil, &AuthError{Action: a, Token: d.token.Current(), Derived: d.token.Derived}
	}

	env, err := d.convention.Decode(resp.Body, d.previewLimit)
	if err != nil {
		var decodeErr *envelope.DecodeError
		if errors.As(err, &decodeErr) {
			decodeErr.StatusCode = resp.StatusCode
		}
		logger.WithError(err).Debug("undecodable response")
		return nil, err
	}
	if !env.OK {
		logger.WithField("error", env.Error).Debug("agent reported failure")
		return nil, &AppError{Action: a, Message: env.Error}
	}

	logger.Debug("dispatch succeeded")
	return env.Payload, nil
}
