package http

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ValentinKolb/dSeg/rpc/common"
	"github.com/ValentinKolb/dSeg/rpc/transport"
)

// newTestServer starts the router of a server transport that echos namespace and body
func newTestServer(t *testing.T, config common.ServerConfig) *httptest.Server {
	t.Helper()

	st := &httpServerTransport{config: config}
	st.RegisterHandler(func(namespace string, req []byte) []byte {
		return []byte(namespace + ":" + string(req))
	})

	server := httptest.NewServer(st.router())
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, config common.ClientConfig) transport.IRPCClientTransport {
	t.Helper()

	ct := NewHttpClientTransport()
	if err := ct.Connect(config); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { _ = ct.Close() })
	return ct
}

func TestSendRoutesByNamespace(t *testing.T) {
	server := newTestServer(t, common.ServerConfig{})
	client := newTestClient(t, common.ClientConfig{Endpoints: []string{server.URL}, TimeoutSecond: 5})

	for _, ns := range []string{"test", "other"} {
		resp, err := client.Send(ns, []byte("ping"))
		if err != nil {
			t.Fatalf("Send to %s failed: %v", ns, err)
		}
		if string(resp) != ns+":ping" {
			t.Errorf("Unexpected response %q", resp)
		}
	}
}

func TestEndpointWithoutScheme(t *testing.T) {
	server := newTestServer(t, common.ServerConfig{})
	client := newTestClient(t, common.ClientConfig{
		Endpoints:     []string{strings.TrimPrefix(server.URL, "http://")},
		TimeoutSecond: 5,
	})

	if _, err := client.Send("test", []byte("ping")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
}

func TestBasicAuth(t *testing.T) {
	server := newTestServer(t, common.ServerConfig{Username: "admin", Password: "secret"})

	// valid credentials
	client := newTestClient(t, common.ClientConfig{
		Endpoints: []string{server.URL}, TimeoutSecond: 5, RetryCount: 3,
		Username: "admin", Password: "secret",
	})
	if _, err := client.Send("test", []byte("ping")); err != nil {
		t.Fatalf("Send with valid credentials failed: %v", err)
	}

	// wrong and missing credentials
	for _, cfg := range []common.ClientConfig{
		{Endpoints: []string{server.URL}, TimeoutSecond: 5, RetryCount: 3, Username: "admin", Password: "wrong"},
		{Endpoints: []string{server.URL}, TimeoutSecond: 5, RetryCount: 3},
	} {
		client := newTestClient(t, cfg)
		_, err := client.Send("test", []byte("ping"))
		if !errors.Is(err, transport.ErrUnauthorized) {
			t.Errorf("Expected ErrUnauthorized for user %q, got %v", cfg.Username, err)
		}
	}
}

func TestRetryOnNextEndpoint(t *testing.T) {
	server := newTestServer(t, common.ServerConfig{})

	// the first endpoint refuses connections
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	client := newTestClient(t, common.ClientConfig{
		Endpoints:     []string{deadURL, server.URL},
		TimeoutSecond: 5,
		RetryCount:    2,
	})

	for i := 0; i < 4; i++ {
		if _, err := client.Send("test", []byte("ping")); err != nil {
			t.Fatalf("Send %d failed despite a healthy endpoint: %v", i, err)
		}
	}
}

func TestRequestsStickToOneEndpoint(t *testing.T) {
	named := func(name string) *httptest.Server {
		st := &httpServerTransport{}
		st.RegisterHandler(func(string, []byte) []byte { return []byte(name) })
		server := httptest.NewServer(st.router())
		t.Cleanup(server.Close)
		return server
	}
	a, b := named("a"), named("b")

	client := newTestClient(t, common.ClientConfig{
		Endpoints:     []string{a.URL, b.URL},
		TimeoutSecond: 5,
		RetryCount:    2,
	})

	for i := 0; i < 4; i++ {
		resp, err := client.Send("test", []byte("ping"))
		if err != nil {
			t.Fatalf("Send %d failed: %v", i, err)
		}
		if string(resp) != "a" {
			t.Fatalf("Send %d went to %q, expected every request on the first endpoint", i, resp)
		}
	}

	// once the current endpoint fails, the client stays on the next one
	a.Close()
	for i := 0; i < 3; i++ {
		resp, err := client.Send("test", []byte("ping"))
		if err != nil {
			t.Fatalf("Send %d after failover failed: %v", i, err)
		}
		if string(resp) != "b" {
			t.Fatalf("Send %d after failover went to %q", i, resp)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t, common.ServerConfig{})
	client := newTestClient(t, common.ClientConfig{Endpoints: []string{server.URL}, TimeoutSecond: 5})

	if _, err := client.Send("metricsns", []byte("ping")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `dseg_rpc_requests_total{namespace="metricsns",status="200"}`) {
		t.Errorf("Request counter missing in metrics:\n%s", body)
	}
}

func TestSendWithoutConnect(t *testing.T) {
	if _, err := NewHttpClientTransport().Send("test", nil); err == nil {
		t.Error("Expected an error for an unconnected transport")
	}
}

func TestConnectWithoutEndpoints(t *testing.T) {
	if err := NewHttpClientTransport().Connect(common.ClientConfig{}); err == nil {
		t.Error("Expected an error without endpoints")
	}
}
