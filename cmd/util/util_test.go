package util

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ValentinKolb/dSeg/rpc/common"
	"github.com/spf13/viper"
)

func TestEndpoints(t *testing.T) {
	tests := []struct {
		hosts string
		port  int
		want  []string
	}{
		{"127.0.0.1", 3000, []string{"127.0.0.1:3000"}},
		{"a,b:4000", 3000, []string{"a:3000", "b:4000"}},
		{" a , ,b", 1, []string{"a:1", "b:1"}},
		{"::1", 3000, []string{"[::1]:3000"}},
	}

	for _, tt := range tests {
		got := endpoints(tt.hosts, tt.port)
		if strings.Join(got, " ") != strings.Join(tt.want, " ") {
			t.Errorf("endpoints(%q, %d) = %v, want %v", tt.hosts, tt.port, got, tt.want)
		}
	}
}

func TestWrapString(t *testing.T) {
	wrapped := WrapString(strings.Repeat("word ", 40))
	for _, line := range strings.Split(wrapped, "\n") {
		if len(line) > Wrap {
			t.Errorf("line exceeds %d characters: %q", Wrap, line)
		}
	}
}

func TestExitErrorUnwraps(t *testing.T) {
	inner := errors.New("refused")
	err := error(&ExitError{Code: ExitConnection, Err: inner})

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != ExitConnection {
		t.Fatalf("expected an ExitError with code %d", ExitConnection)
	}
	if !errors.Is(err, inner) {
		t.Error("ExitError must unwrap to the cause")
	}
}

// setClientConfig points the client settings at host (json serializer, one attempt)
func setClientConfig(t *testing.T, host string) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("host", host)
	viper.Set("port", 3000)
	viper.Set("namespace", "test")
	viper.Set("serializer", "json")
	viper.Set("transport", "http")
	viper.Set("timeout", 2)
	viper.Set("retries", 1)
}

func TestConnectUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	_ = l.Close()

	setClientConfig(t, addr)
	_, err = Connect()

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != ExitConnection {
		t.Fatalf("expected exit code %d, got %v", ExitConnection, err)
	}
}

func TestConnectIncompatibleVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(common.Message{MsgType: common.MsgTVersion, Version: "99.0.0"})
	}))
	defer srv.Close()

	setClientConfig(t, strings.TrimPrefix(srv.URL, "http://"))
	_, err := Connect()

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != ExitIncompatible {
		t.Fatalf("expected exit code %d, got %v", ExitIncompatible, err)
	}
}
