package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dSeg/rpc/common"
	"github.com/ValentinKolb/dSeg/rpc/transport"
)

func NewHttpClientTransport() transport.IRPCClientTransport {
	return &httpClientTransport{}
}

type httpClientTransport struct {
	serverURLs []*url.URL
	client     *http.Client
	current    uint32 // index of the endpoint requests are sent to
	retryCount int
	username   string
	password   string
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *httpClientTransport) Connect(config common.ClientConfig) error {
	if len(config.Endpoints) == 0 {
		return fmt.Errorf("no endpoints configured")
	}

	// Parse each server URL
	parsedURLs := make([]*url.URL, len(config.Endpoints))
	for i, server := range config.Endpoints {
		if !strings.Contains(server, "://") {
			server = "http://" + server
		}
		parsedURL, err := url.Parse(strings.TrimSuffix(server, "/"))
		if err != nil {
			return fmt.Errorf("invalid endpoint %q: %w", server, err)
		}
		parsedURLs[i] = parsedURL
	}

	// Create client with default transport
	client := &http.Client{
		Timeout: time.Duration(config.TimeoutSecond) * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	// Set the client and server URLs
	t.client = client
	t.serverURLs = parsedURLs
	t.current = 0
	t.retryCount = max(config.RetryCount, 1)
	t.username = config.Username
	t.password = config.Password

	// No error
	return nil
}

func (t *httpClientTransport) Send(namespace string, req []byte) (resp []byte, err error) {
	// Check if the transport is initialized
	if t.client == nil {
		return nil, fmt.Errorf("http transport not initialized")
	}

	// Requests stick to the current server (jobs live on the node that accepted them).
	// A failed attempt moves on to the next server.
	n := uint32(len(t.serverURLs))
	for i := 0; i < t.retryCount; i++ {
		idx := atomic.LoadUint32(&t.current) % n
		resp, err = t.send(t.serverURLs[idx], namespace, req)
		if err == nil || errors.Is(err, transport.ErrUnauthorized) {
			break
		}
		// concurrent failures on the same server advance only once
		atomic.CompareAndSwapUint32(&t.current, idx, (idx+1)%n)
	}
	return resp, err
}

func (t *httpClientTransport) Close() error {
	// Close the client
	if t.client != nil {
		t.client.CloseIdleConnections()
	}

	// Reset the client and server URLs
	t.client = nil
	t.serverURLs = nil

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// send does a single request to one server
func (t *httpClientTransport) send(serverURL *url.URL, namespace string, req []byte) ([]byte, error) {
	requestURL := fmt.Sprintf("%s/%s", serverURL.String(), url.PathEscape(namespace))

	httpRequest, err := http.NewRequest(http.MethodPost, requestURL, bytes.NewReader(req))
	if err != nil {
		return nil, err
	}
	httpRequest.Header.Set("Content-Type", "application/octet-stream")
	if t.username != "" {
		httpRequest.SetBasicAuth(t.username, t.password)
	}

	httpResponse, err := t.client.Do(httpRequest)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := httpResponse.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	switch httpResponse.StatusCode {
	case http.StatusOK:
		return io.ReadAll(httpResponse.Body)
	case http.StatusUnauthorized:
		return nil, transport.ErrUnauthorized
	default:
		return nil, fmt.Errorf("http error: %s", httpResponse.Status)
	}
}
