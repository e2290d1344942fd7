package network

import (
	"compress/gzip"
	"compress/zlib"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/lcalzada-xor/phishguard/internal/config"
)

type clientSettings struct {
	proxy    string
	insecure bool
	timeout  time.Duration
}

var (
	clientMu      sync.Mutex
	sharedClient  *http.Client
	sharedSetting clientSettings
)

// HTTPClient returns a client configured with the proxy, TLS and timeout
// settings of cfg. Clients are shared between calls with equal settings.
// A zero timeout leaves requests unbounded.
func HTTPClient(cfg config.Config) (*http.Client, error) {
	desired := clientSettings{
		proxy:    cfg.Proxy,
		insecure: cfg.Insecure,
		timeout:  cfg.Timeout,
	}

	clientMu.Lock()
	defer clientMu.Unlock()

	if sharedClient != nil && sharedSetting == desired {
		return sharedClient, nil
	}

	transport, err := buildTransport(cfg)
	if err != nil {
		return nil, err
	}

	sharedClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
	sharedSetting = desired

	return sharedClient, nil
}

func buildTransport(cfg config.Config) (*http.Transport, error) {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, errors.New("unexpected default transport type")
	}

	transport := base.Clone()

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, err
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	if cfg.Insecure {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{}
		} else {
			transport.TLSClientConfig = transport.TLSClientConfig.Clone()
		}
		transport.TLSClientConfig.InsecureSkipVerify = true
	}

	// Encodings are negotiated explicitly so brotli can be accepted too.
	transport.DisableCompression = true

	return transport, nil
}

// AcceptEncoding lists the content encodings ReadBody understands.
const AcceptEncoding = "gzip, deflate, br"

// ReadBody reads the whole response body, undoing any content encoding.
func ReadBody(resp *http.Response) ([]byte, error) {
	reader, err := decodeBody(resp)
	if err != nil {
		return nil, err
	}
	if reader != resp.Body {
		defer reader.Close()
	}

	return io.ReadAll(reader)
}

// resetHTTPClient clears the shared HTTP client. It is intended for use in tests.
func resetHTTPClient() {
	clientMu.Lock()
	defer clientMu.Unlock()
	sharedClient = nil
	sharedSetting = clientSettings{}
}

func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		return gz, nil
	case "deflate":
		zr, err := zlib.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		return zr, nil
	case "br":
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	default:
		return resp.Body, nil
	}
}
