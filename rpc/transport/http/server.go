package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ValentinKolb/dSeg/rpc/common"
	"github.com/ValentinKolb/dSeg/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/gorilla/mux"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/rpc")

func NewHttpServerTransport() transport.IRPCServerTransport {
	return &httpServerTransport{}
}

type httpServerTransport struct {
	handler transport.ServerHandleFunc
	config  common.ServerConfig

	mu     sync.Mutex
	server *http.Server
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *httpServerTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *httpServerTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}
	t.config = config

	t.mu.Lock()
	t.server = &http.Server{
		Addr:              config.Endpoint,
		Handler:           t.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := t.server
	t.mu.Unlock()

	Logger.Infof("Starting HTTP server on %s", config.Endpoint)

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (t *httpServerTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	server := t.server
	t.mu.Unlock()

	if server == nil {
		return nil
	}
	Logger.Infof("Shutting down HTTP server on %s", t.config.Endpoint)
	return server.Shutdown(ctx)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// router creates the routes of the server:
//
//	GET  /metrics      prometheus metrics of the process
//	POST /{namespace}  rpc requests of one namespace
func (t *httpServerTransport) router() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/"+common.ReservedMetricsPath, func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	}).Methods(http.MethodGet)

	router.HandleFunc("/{namespace}", t.basicAuth(t.handleRequest)).Methods(http.MethodPost)

	router.Use(metricsMiddleware)
	if t.config.LogLevel == "debug" {
		router.Use(loggerMiddleware)
	}
	return router
}

// handleRequest handles incoming HTTP requests and writes the response to the writer
func (t *httpServerTransport) handleRequest(w http.ResponseWriter, r *http.Request) {
	namespace := mux.Vars(r)["namespace"]

	// Read request body
	body, err := io.ReadAll(r.Body)
	defer r.Body.Close()

	// Check if body could be read
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)
		return
	}

	// Send the handler
	resp := t.handler(namespace, body)

	// Write response
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err = w.Write(resp); err != nil {
		Logger.Warningf("Failed to write response for namespace %s: %v", namespace, err)
	}
}

// basicAuth rejects requests without the configured credentials (if any are configured)
func (t *httpServerTransport) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	if t.config.Username == "" {
		return next
	}

	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(t.config.Username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(t.config.Password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="dseg"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// --------------------------------------------------------------------------
// Middleware (logging and metrics)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware counts rpc requests per namespace and status and records their duration
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		namespace, ok := mux.Vars(r)["namespace"]
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		metrics.GetOrCreateCounter(fmt.Sprintf(`dseg_rpc_requests_total{namespace=%q,status="%s"}`,
			namespace, strconv.Itoa(rw.statusCode))).Inc()
		metrics.GetOrCreateHistogram(fmt.Sprintf(`dseg_rpc_request_duration_seconds{namespace=%q}`,
			namespace)).UpdateDuration(start)
	})
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create custom response writer to capture status code
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		// Process request
		next.ServeHTTP(rw, r)

		// Log the request
		duration := time.Since(start)
		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, duration)
	})
}
