package classify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/phishguard/internal/config"
	"github.com/lcalzada-xor/phishguard/internal/model"
)

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(server.URL + "/predict")
	require.NoError(t, err)
	return server, client
}

func TestClassifySendsJSONRequest(t *testing.T) {
	var calls atomic.Int32

	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req model.ClassificationRequest
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "https://bank.example.com/login", req.URL)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"prob_phishing": 0.87, "label": 1}`))
	})

	resp, err := client.Classify(context.Background(), "https://bank.example.com/login")
	require.NoError(t, err)
	assert.InDelta(t, 0.87, resp.ProbPhishing, 1e-9)
	assert.True(t, resp.Phishing())
	assert.Equal(t, int32(1), calls.Load())
}

func TestClassifySafeVerdict(t *testing.T) {
	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"prob_phishing": 0.02, "label": 0}`))
	})

	resp, err := client.Classify(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.False(t, resp.Phishing())
	assert.InDelta(t, 0.02, resp.ProbPhishing, 1e-9)
}

func TestClassifyConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	client, err := New("http://" + addr + "/predict")
	require.NoError(t, err)

	_, err = client.Classify(context.Background(), "https://example.com/")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetworkFailure)
	assert.NotErrorIs(t, err, ErrMalformedResponse)

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, kind)
}

func TestClassifyInvalidJSONIsNetworkFailure(t *testing.T) {
	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`Internal error`))
	})

	_, err := client.Classify(context.Background(), "https://example.com/")
	assert.ErrorIs(t, err, ErrNetworkFailure)
}

func TestClassifyMalformedResponse(t *testing.T) {
	bodies := []string{
		`{"label": 1}`,
		`{"prob_phishing": 0.5}`,
		`{"prob_phishing": "high", "label": 1}`,
		`{"prob_phishing": 0.5, "label": "phishing"}`,
		`{"prob_phishing": 2, "label": 1}`,
	}

	for _, body := range bodies {
		body := body
		t.Run(body, func(t *testing.T) {
			_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})

			_, err := client.Classify(context.Background(), "https://example.com/")
			assert.ErrorIs(t, err, ErrMalformedResponse)
			assert.NotErrorIs(t, err, ErrNetworkFailure)

			kind, ok := KindOf(err)
			require.True(t, ok)
			assert.Equal(t, KindMalformed, kind)
		})
	}
}

func TestClassifyErrorStatus(t *testing.T) {
	var calls atomic.Int32

	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"detail":"boom"}`, http.StatusInternalServerError)
	})

	_, err := client.Classify(context.Background(), "https://example.com/")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetworkFailure)

	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, http.StatusInternalServerError, cerr.Status)
	assert.Equal(t, int32(1), calls.Load(), "failed requests must not be retried")
}

func TestClassifyEmptyURL(t *testing.T) {
	var calls atomic.Int32

	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := client.Classify(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyURL)
	assert.Equal(t, int32(0), calls.Load())
}

func TestClassifyContextCancelled(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Classify(ctx, "https://example.com/")
	assert.ErrorIs(t, err, ErrNetworkFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewFromConfigTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Endpoint = server.URL + "/predict"
	cfg.Timeout = 50 * time.Millisecond

	client, err := NewFromConfig(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, cfg.Endpoint, client.Endpoint())

	_, err = client.Classify(context.Background(), "https://example.com/")
	assert.ErrorIs(t, err, ErrNetworkFailure)
}

func TestNewRejectsInvalidEndpoint(t *testing.T) {
	for _, endpoint := range []string{"", "127.0.0.1:8000/predict", "ftp://127.0.0.1/predict", "http:///predict"} {
		_, err := New(endpoint)
		assert.Error(t, err, endpoint)
	}
}
