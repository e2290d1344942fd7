package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lcalzada-xor/phishguard/internal/config"
	"github.com/lcalzada-xor/phishguard/internal/model"
	"github.com/lcalzada-xor/phishguard/internal/network"
)

// Client asks the classification service for a verdict on a URL. It holds no
// state between calls and never retries.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New returns a client posting to endpoint.
func New(endpoint string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid endpoint %q: scheme must be http or https", endpoint)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q: missing host", endpoint)
	}

	c := &Client{
		endpoint:   u.String(),
		httpClient: http.DefaultClient,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromConfig builds a client from the endpoint, proxy, TLS and timeout
// settings in cfg.
func NewFromConfig(cfg config.Config, logger zerolog.Logger) (*Client, error) {
	hc, err := network.HTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("build http client: %w", err)
	}
	return New(cfg.Endpoint, WithHTTPClient(hc), WithLogger(logger))
}

// Endpoint returns the URL requests are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Classify posts rawURL to the service and decodes the verdict. Exactly one
// HTTP attempt is made per call.
func (c *Client) Classify(ctx context.Context, rawURL string) (model.ClassificationResponse, error) {
	if rawURL == "" {
		return model.ClassificationResponse{}, ErrEmptyURL
	}

	payload, err := json.Marshal(model.ClassificationRequest{URL: rawURL})
	if err != nil {
		return model.ClassificationResponse{}, &Error{Kind: KindNetwork, URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return model.ClassificationResponse{}, &Error{Kind: KindNetwork, URL: rawURL, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", network.AcceptEncoding)

	log := c.logger.With().Str("url", rawURL).Str("endpoint", c.endpoint).Logger()
	log.Debug().Msg("sending classification request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Msg("classification request failed")
		return model.ClassificationResponse{}, &Error{Kind: KindNetwork, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := network.ReadBody(resp)
	if err != nil {
		return model.ClassificationResponse{}, &Error{Kind: KindNetwork, URL: rawURL, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.ClassificationResponse{}, &Error{Kind: KindNetwork, URL: rawURL, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	result, err := model.DecodeResponse(body)
	if err != nil {
		kind := KindNetwork
		if errors.Is(err, model.ErrMalformed) {
			kind = KindMalformed
		}
		return model.ClassificationResponse{}, &Error{Kind: kind, URL: rawURL, Status: resp.StatusCode, Err: err}
	}

	log.Debug().
		Float64("prob_phishing", result.ProbPhishing).
		Bool("phishing", result.Phishing()).
		Msg("classification received")

	return result, nil
}
