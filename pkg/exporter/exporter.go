package exporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector is what gets triggered on every scrape, right before the
// registry is rendered.
//
type Collector interface {
	Collect(ctx context.Context) error
}

// Exporter is responsible for bringing up a web server that, on every
// scrape, runs a collection and then serves the metrics gathered from a
// prometheus registry (e.g., see `pkg/collector`).
//
type Exporter struct {
	// ListenAddress is the full address used by prometheus
	// to listen for scraping requests.
	//
	// Examples:
	// - :8080
	// - 127.0.0.2:1313
	//
	listenAddress string

	// TelemetryPath configures the path under which
	// the prometheus metrics are reported.
	//
	// For instance:
	// - /metrics
	// - /telemetry
	//
	telemetryPath string

	// scrapeTimeout bounds how long a single collection can take. Zero
	// means that only the scraper's own deadline applies.
	//
	scrapeTimeout time.Duration

	collector Collector
	gatherer  prometheus.Gatherer

	// listener is the TCP listener used by the webserver. `nil` if no
	// server is running.
	//
	listener net.Listener
	server   *http.Server

	log logr.Logger
}

// Option.
//
type Option func(e *Exporter)

func WithBindAddress(v string) func(e *Exporter) {
	return func(e *Exporter) {
		e.listenAddress = v
	}
}

func WithTelemetryPath(v string) func(e *Exporter) {
	return func(e *Exporter) {
		e.telemetryPath = v
	}
}

// WithGatherer overrides the default global prometheus gatherer as the
// source of the metrics rendered on every successful scrape.
//
func WithGatherer(v prometheus.Gatherer) func(e *Exporter) {
	return func(e *Exporter) {
		e.gatherer = v
	}
}

func WithScrapeTimeout(v time.Duration) func(e *Exporter) {
	return func(e *Exporter) {
		e.scrapeTimeout = v
	}
}

func WithLogger(v logr.Logger) func(e *Exporter) {
	return func(e *Exporter) {
		e.log = v
	}
}

// New.
//
func New(collector Collector, opts ...Option) (*Exporter, error) {
	e := &Exporter{
		listenAddress: ":9332",
		telemetryPath: "/metrics",
		collector:     collector,
		gatherer:      prometheus.DefaultGatherer,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.log.GetSink() == nil {
		defaultLogger, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("zap new development: %w", err)
		}

		e.log = zapr.NewLogger(defaultLogger.Named("exporter"))
	}

	return e, nil
}

// Handler routes scrapes at the telemetry path to a collection followed by
// the rendering of the registry. Any other method or path gets a 404 with
// no body.
//
func (e *Exporter) Handler() http.Handler {
	metricsHandler := promhttp.HandlerFor(e.gatherer, promhttp.HandlerOpts{
		ErrorLog: &promhttpLogger{log: e.log},
	})

	router := chi.NewRouter()
	router.Get(e.telemetryPath, func(w http.ResponseWriter, r *http.Request) {
		e.scrape(w, r, metricsHandler)
	})
	router.NotFound(e.notFound)
	router.MethodNotAllowed(e.notFound)

	return router
}

func (e *Exporter) scrape(
	w http.ResponseWriter, r *http.Request, metricsHandler http.Handler,
) {
	ctx := r.Context()

	if e.scrapeTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, e.scrapeTimeout)
		defer cancel()
	}

	if err := e.collector.Collect(ctx); err != nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, err.Error())

		return
	}

	metricsHandler.ServeHTTP(w, r)
}

func (e *Exporter) notFound(w http.ResponseWriter, r *http.Request) {
	e.log.WithValues(
		"remote", r.RemoteAddr,
		"method", r.Method,
		"path", r.URL.Path,
	).Info("unmatched request")

	w.WriteHeader(http.StatusNotFound)
}

// Run initiates the HTTP server to serve the metrics.
//
// ps.: this is a BLOCKING method - make sure you either make use of goroutines
// to not block if needed.
//
func (e *Exporter) Run(ctx context.Context) error {
	var err error

	e.listener, err = net.Listen("tcp", e.listenAddress)
	if err != nil {
		return fmt.Errorf("listen on '%s': %w", e.listenAddress, err)
	}

	e.server = &http.Server{
		Handler:           e.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	doneChan := make(chan error, 1)

	go func() {
		defer close(doneChan)

		e.log.WithValues(
			"addr", e.listenAddress,
			"path", e.telemetryPath,
		).Info("listening")

		err := e.server.Serve(e.listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			doneChan <- fmt.Errorf(
				"failed listening on address %s: %w",
				e.listenAddress, err,
			)
		}
	}()

	select {
	case err = <-doneChan:
		if err != nil {
			return fmt.Errorf("donechan err: %w", err)
		}
	case <-ctx.Done():
		e.log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), 5*time.Second,
		)
		defer cancel()

		if err := e.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}

	return nil
}

// Close forcefully closes the server (and the tcp listener associated with
// it).
//
func (e *Exporter) Close() (err error) {
	if e.server == nil {
		return nil
	}

	e.log.Info("closing")
	if err := e.server.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	return nil
}

// promhttpLogger adapts our logger to what promhttp expects for reporting
// failures to gather or encode metrics.
//
type promhttpLogger struct {
	log logr.Logger
}

func (l *promhttpLogger) Println(v ...interface{}) {
	l.log.Error(errors.New(fmt.Sprint(v...)), "promhttp")
}
