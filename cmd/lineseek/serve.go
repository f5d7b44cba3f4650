package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/pithecene-io/lineseek/internal/metrics"
	"github.com/pithecene-io/lineseek/lineseek"
)

// errorResponse is the JSON body of a failed request.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs, common := newFlagSet("serve", "[-addr :8080]", stderr)
	addr := fs.String("addr", "", "Listen address (default from config, :8080)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	a, err := setup(ctx, fs, common, stderr, m)
	if err != nil {
		return err
	}
	if *addr != "" {
		a.cfg.Serve.Addr = *addr
	}

	srv := &http.Server{
		Addr:              a.cfg.Serve.Addr,
		Handler:           newHandler(a, reg),
		ReadHeaderTimeout: a.cfg.Serve.ReadHeaderTimeout,
	}
	return serveUntilDone(ctx, srv, a.cfg.Serve.ShutdownTimeout, a.logger)
}

// serveUntilDone serves until ctx is canceled, then shuts srv down within
// timeout.
func serveUntilDone(ctx context.Context, srv *http.Server, timeout time.Duration, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", srv.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	logger.Info("serving", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func newHandler(a *app, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /v1/line", limit(http.HandlerFunc(a.handleLine), newLimiter(a.cfg.Serve.RateLimit, a.cfg.Serve.RateBurst)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics:  true,
		DisableCompression: true,
	}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return gzhttp.GzipHandler(a.requestLog(mux))
}

// newLimiter returns nil when perSecond is 0.
func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = int(math.Ceil(perSecond))
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func limit(next http.Handler, limiter *rate.Limiter) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded", Kind: "rate_limited"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestLog tags every request with an X-Request-ID, reusing the client's
// when present, and logs it at debug level.
func (a *app) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		began := time.Now()
		next.ServeHTTP(rec, r)

		a.logger.DebugContext(r.Context(), "request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(began),
		)
	})
}

// handleLine serves GET /v1/line?key=K&line=N[&format=text].
func (a *app) handleLine(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("key") == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "key is required", Kind: "usage"})
		return
	}
	line, err := strconv.ParseInt(q.Get("line"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "line must be an integer", Kind: "usage"})
		return
	}
	key, err := a.resolveKey(q.Get("key"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	if q.Get("format") == "text" {
		text, err := a.reader.GetLine(r.Context(), key, line)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, text)
		return
	}

	resp, err := a.lookup(r.Context(), key, line)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *app) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), "lookup failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: metrics.Result(err)})
}

// statusFor maps a lookup error to an HTTP status.
func statusFor(err error) int {
	switch lineseek.KindOf(err) {
	case lineseek.KindInvalidKey, lineseek.KindOutOfRange:
		return http.StatusBadRequest
	case lineseek.KindBlobNotFound, lineseek.KindLineIndexOutOfBound:
		return http.StatusNotFound
	case lineseek.KindShortRead:
		return http.StatusConflict
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
