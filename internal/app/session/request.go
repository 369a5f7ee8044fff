package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/lavabox/internal/domain/payload"
	"github.com/osa030/lavabox/internal/infra/metrics"
)

type requestOptions struct {
	header      http.Header
	query       url.Values
	body        any
	unversioned bool
}

// RequestOption customizes a REST request.
type RequestOption func(*requestOptions)

// WithJSON sends body encoded as JSON.
func WithJSON(body any) RequestOption {
	return func(o *requestOptions) {
		o.body = body
	}
}

// WithQuery adds a query parameter.
func WithQuery(key, value string) RequestOption {
	return func(o *requestOptions) {
		o.query.Set(key, value)
	}
}

// WithHeader adds a request header.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		o.header.Set(key, value)
	}
}

// WithoutVersion sends the request without the /v4 prefix.
func WithoutVersion() RequestOption {
	return func(o *requestOptions) {
		o.unversioned = true
	}
}

// Request sends a REST request through s and decodes the response as T.
// string, bool, int, int64 and float64 are read from the raw body; anything
// else is decoded as JSON.
func Request[T any](ctx context.Context, s *Session, method, path string, opts ...RequestOption) (T, error) {
	var zero T

	status, body, err := s.send(ctx, method, path, opts)
	if err != nil {
		return zero, err
	}
	if status == http.StatusNoContent {
		return zero, errors.Wrapf(ErrRestEmpty, "%s %s", method, path)
	}
	return decodeBody[T](body)
}

// Do sends a REST request through s and discards the response body.
func (s *Session) Do(ctx context.Context, method, path string, opts ...RequestOption) error {
	_, _, err := s.send(ctx, method, path, opts)
	return err
}

func (s *Session) send(ctx context.Context, method, path string, opts []RequestOption) (int, []byte, error) {
	o := requestOptions{header: http.Header{}, query: url.Values{}}
	for _, opt := range opts {
		opt(&o)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return 0, nil, errors.Wrap(err, "rate limiter wait failed")
		}
	}

	if zerolog.GlobalLevel() <= zerolog.TraceLevel {
		o.query.Set("trace", "true")
	}

	endpoint := s.restURL(!o.unversioned) + path
	if len(o.query) > 0 {
		endpoint += "?" + o.query.Encode()
	}

	var reader io.Reader
	if o.body != nil {
		data, err := json.Marshal(o.body)
		if err != nil {
			return 0, nil, errors.Wrap(err, "failed to encode request body")
		}
		reader = bytes.NewReader(data)
		o.header.Set("Content-Type", "application/json")
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to create request")
	}
	for k, v := range o.header {
		req.Header[k] = v
	}
	req.Header.Set("Authorization", s.cfg.Password)

	zlog.Trace().Msgf("rest request: session=%s method=%s path=%s", s.cfg.Name, method, path)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		metrics.IncRestRequest(s.cfg.Name, method, 0)
		return 0, nil, errors.Wrapf(err, "failed to send request: %s %s", method, path)
	}
	defer resp.Body.Close()
	metrics.IncRestRequest(s.cfg.Name, method, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		zlog.Debug().Msgf("rest request failed: session=%s method=%s path=%s status=%d", s.cfg.Name, method, path, resp.StatusCode)
		return resp.StatusCode, nil, restError(resp.StatusCode, bytes.TrimSpace(body))
	}
	return resp.StatusCode, body, nil
}

func decodeBody[T any](body []byte) (T, error) {
	var out T
	text := strings.TrimSpace(string(body))

	var err error
	switch p := any(&out).(type) {
	case *string:
		*p = string(body)
	case *bool:
		*p, err = strconv.ParseBool(text)
	case *int:
		*p, err = strconv.Atoi(text)
	case *int64:
		*p, err = strconv.ParseInt(text, 10, 64)
	case *float64:
		*p, err = strconv.ParseFloat(text, 64)
	default:
		if err := json.Unmarshal(body, &out); err != nil {
			return out, payload.NewBuildError(err, "invalid response body")
		}
		return out, payload.Validate(&out)
	}
	if err != nil {
		return out, payload.NewBuildError(err, "invalid response body")
	}
	return out, nil
}
