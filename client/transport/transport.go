// Package transport makes the access-token-plus-refresh protocol transparent
// to every outgoing request: it attaches the bearer token, recovers from
// authorization failures through a single-flight refresh, and forces logout
// when the refresh itself fails terminally.
package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tokengate/tokengate/client/apierror"
	"github.com/tokengate/tokengate/client/session"
	"golang.org/x/sync/singleflight"
)

// Public auth endpoints never get a bearer token and are never retried by
// this mechanism. Excluding the refresh path is what prevents an infinite
// refresh loop.
var authPaths = []string{
	"/users/login",
	"/users/register",
	"/users/refresh",
}

// Transport is an http.RoundTripper wrapping a base transport with the
// refresh-and-retry protocol.
type Transport struct {
	base            http.RoundTripper
	state           *session.State
	group           singleflight.Group
	refreshStatuses map[int]struct{}
	log             zerolog.Logger
}

type Option func(*Transport)

func WithBase(base http.RoundTripper) Option {
	return func(t *Transport) {
		t.base = base
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(t *Transport) {
		t.log = log
	}
}

// WithRefreshStatuses overrides which response statuses trigger a refresh
// attempt. The default is 401 only: 403 means the authenticated user lacks
// the role, and a new token cannot change that.
func WithRefreshStatuses(statuses ...int) Option {
	return func(t *Transport) {
		t.refreshStatuses = make(map[int]struct{}, len(statuses))
		for _, status := range statuses {
			t.refreshStatuses[status] = struct{}{}
		}
	}
}

func New(state *session.State, options ...Option) *Transport {
	t := &Transport{
		base:            http.DefaultTransport,
		state:           state,
		refreshStatuses: map[int]struct{}{http.StatusUnauthorized: {}},
		log:             zerolog.Nop(),
	}

	for _, opt := range options {
		opt(t)
	}

	return t
}

// NewClient returns an http.Client whose requests go through the refreshing
// transport.
func NewClient(state *session.State, options ...Option) *http.Client {
	return &http.Client{Transport: New(state, options...)}
}

func isAuthPath(path string) bool {
	for _, p := range authPaths {
		if strings.HasSuffix(path, p) {
			return true
		}
	}
	return false
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if isAuthPath(req.URL.Path) {
		return t.base.RoundTrip(req)
	}

	// A retry needs to replay the body, so make it rewindable up front.
	if req.Body != nil && req.GetBody == nil {
		body, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}

	sentToken := t.state.Current().AccessToken

	resp, err := t.base.RoundTrip(t.withToken(req, sentToken))
	if err != nil {
		return nil, err
	}

	if _, triggers := t.refreshStatuses[resp.StatusCode]; !triggers {
		return resp, nil
	}
	if t.state.Current().RefreshToken == "" {
		// Nothing to refresh with; surface the failure as-is.
		return resp, nil
	}

	// The response is consumed by the recovery path.
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	// Another request may have completed a refresh while this one was in
	// flight with the old token. Re-read before refreshing: retrying with the
	// already-renewed token avoids a pointless rotation.
	if current := t.state.Current().AccessToken; current != "" && current != sentToken {
		return t.retry(req, current)
	}

	if err := t.refresh(req.Context(), sentToken); err != nil {
		return nil, err
	}

	return t.retry(req, t.state.Current().AccessToken)
}

// refresh runs at most one refresh call at a time; concurrent callers wait
// for the in-flight result instead of issuing their own. A terminal failure
// (refresh token invalid or expired) forces logout exactly once, inside the
// single flight.
func (t *Transport) refresh(ctx context.Context, sentToken string) error {
	// The refresh outcome is shared by every waiter, so it must not die with
	// the first caller's context.
	ctx = context.WithoutCancel(ctx)

	_, err, _ := t.group.Do("refresh", func() (interface{}, error) {
		// A previous flight may have finished between this caller's check and
		// entering the flight. If the token moved on, that result stands.
		if current := t.state.Current().AccessToken; current != "" && current != sentToken {
			return current, nil
		}

		sess, err := t.state.Refresh(ctx)
		if err != nil {
			if errors.Is(err, session.ErrNoRefreshToken) {
				// Already logged out underneath us; nothing left to tear down.
				return nil, err
			}
			if isTerminalRefreshError(err) {
				t.log.Warn().Err(err).Msg("refresh failed terminally, logging out")
				t.state.Logout(ctx)
			}
			return nil, err
		}
		return sess.AccessToken, nil
	})
	return err
}

func (t *Transport) retry(req *http.Request, accessToken string) (*http.Response, error) {
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		req.Body = body
	}
	return t.base.RoundTrip(t.withToken(req, accessToken))
}

func (t *Transport) withToken(req *http.Request, accessToken string) *http.Request {
	if accessToken == "" {
		return req
	}
	cloned := req.Clone(req.Context())
	cloned.Header.Set("Authorization", "Bearer "+accessToken)
	return cloned
}

// isTerminalRefreshError reports whether a refresh failure is fatal to the
// session: the refresh token is unknown, expired, or points at a deleted
// user. Transient failures (network, 5xx) are not terminal; the original
// error propagates and the session stays.
func isTerminalRefreshError(err error) bool {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return true
		}
	}
	return false
}
