// Package shopapi is the HTTP client for the storefront REST API.
package shopapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"storefront-client/internal/domain"
)

const maxErrorBody = 4 << 10

// TokenSource hands out the current access token, if any.
type TokenSource interface {
	AccessToken() (string, bool)
}

type Options struct {
	BaseURL        string
	Timeout        time.Duration
	CSRFCookie     string
	BreakerEnabled bool
	// Transport overrides the base round tripper (tests).
	Transport http.RoundTripper
}

type Client struct {
	baseURL    *url.URL
	http       *http.Client
	tokens     TokenSource
	csrfCookie string
	logger     logrus.FieldLogger
}

func New(opts Options, tokens TokenSource, logger logrus.FieldLogger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", opts.BaseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "cookie jar")
	}

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if opts.BreakerEnabled {
		transport = newBreakerTransport(transport, logger)
	}
	transport = otelhttp.NewTransport(transport)

	csrf := opts.CSRFCookie
	if csrf == "" {
		csrf = "csrftoken"
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
			Jar:       jar,
		},
		tokens:     tokens,
		csrfCookie: csrf,
		logger:     logger.WithField("component", "shopapi"),
	}, nil
}

// do issues one request. No retries: every call hits the network at most once.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	req, err := c.newRequest(ctx, method, path, in)
	if err != nil {
		return err
	}

	log := c.logger.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"request_id": req.Header.Get("X-Request-ID"),
	})

	resp, err := c.http.Do(req)
	if err != nil {
		log.WithError(err).Warn("request failed")
		return errors.Wrapf(domain.ErrNetwork, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.WithField("status", resp.StatusCode).Warn("unexpected status")
		return &domain.HTTPError{Method: method, Path: path, Status: resp.StatusCode, Body: string(body)}
	}

	log.WithField("status", resp.StatusCode).Debug("request done")
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s %s", method, path)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, in interface{}) (*http.Request, error) {
	var body io.Reader
	if in != nil && method != http.MethodGet {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, errors.Wrap(err, "encode body")
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token := c.csrfToken(); token != "" {
		req.Header.Set("X-CSRFToken", token)
	}
	if c.tokens != nil {
		if access, ok := c.tokens.AccessToken(); ok {
			req.Header.Set("Authorization", "Bearer "+access)
		}
	}
	return req, nil
}

func (c *Client) resolve(path string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + path
	return u.String()
}

func (c *Client) csrfToken() string {
	for _, ck := range c.http.Jar.Cookies(c.baseURL) {
		if ck.Name == c.csrfCookie {
			return ck.Value
		}
	}
	return ""
}
