// Package main implements the horas web server, which rebuilds intervals
// from posted rows or uploaded sheets.
package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/codeGROOVE-dev/horas/pkg/clock"
	"github.com/codeGROOVE-dev/horas/pkg/config"
	"github.com/codeGROOVE-dev/horas/pkg/horas"
	"github.com/codeGROOVE-dev/horas/pkg/report"
	"github.com/codeGROOVE-dev/horas/pkg/sheet"
	"github.com/google/uuid"
	"github.com/maypok86/otter/v2"
)

//go:embed templates/home.html
var homeTemplate string

var (
	port       = flag.String("port", "", "Port for web server (or set PORT, default 8080)")
	configPath = flag.String("config", "", "Category config file (or set HORAS_CONFIG)")
	rateLimit  = flag.Int("rate-limit", 30, "Requests per minute allowed per client IP")
	maxUpload  = flag.Int64("max-upload", 10, "Maximum upload size in MiB")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Show version")
)

type rateLimiter struct {
	requests  map[string][]time.Time
	lastSweep time.Time
	limit     int
	mu        sync.Mutex
}

func newRateLimiter(limit int) *rateLimiter {
	return &rateLimiter{
		requests:  make(map[string][]time.Time),
		lastSweep: time.Now(),
		limit:     limit,
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-time.Minute)
	if rl.lastSweep.Before(cutoff) {
		rl.sweep(cutoff)
		rl.lastSweep = now
	}

	var valid []time.Time
	for _, t := range rl.requests[ip] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[ip] = valid
		return false
	}

	rl.requests[ip] = append(valid, now)
	return true
}

// sweep drops clients with no request after cutoff. Timestamps are
// appended in order, so the last one is the newest.
func (rl *rateLimiter) sweep(cutoff time.Time) {
	for ip, times := range rl.requests {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(rl.requests, ip)
		}
	}
}

func main() {
	flag.Parse()

	if *version {
		fmt.Println("horas Server v1.0.0")
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *port == "" {
		*port = os.Getenv("PORT")
	}
	if *port == "" {
		*port = "8080"
	}
	if *configPath == "" {
		*configPath = os.Getenv("HORAS_CONFIG")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("Server configuration",
		"port", *port,
		"verbose", *verbose,
		"config", *configPath,
		"categories", len(cfg.Categories),
		"rate_limit", *rateLimit,
		"max_upload_mib", *maxUpload)

	server, err := newServer(logger, cfg, *rateLimit, *maxUpload<<20)
	if err != nil {
		logger.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + *port,
		Handler:           server.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", *port)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", "error", err)
	}
	logger.Info("Server stopped")
}

// responseCacheBytes bounds the rendered bodies held by the response cache.
const responseCacheBytes = 256 << 20

type cachedResponse struct {
	contentType string
	body        []byte
}

func responseWeight(key string, resp cachedResponse) uint32 {
	n := uint64(len(key)) + uint64(len(resp.contentType)) + uint64(len(resp.body))
	if n > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(n)
}

type server struct {
	processor   *horas.Processor
	home        *template.Template
	cache       *otter.Cache[string, cachedResponse]
	limiter     *rateLimiter
	logger      *slog.Logger
	dateLayouts []string
	maxUpload   int64
}

func newServer(logger *slog.Logger, cfg *config.Config, limit int, maxUpload int64) (*server, error) {
	cats, err := cfg.BuildCategories()
	if err != nil {
		return nil, err
	}
	home, err := template.New("home").Parse(homeTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing home template: %w", err)
	}
	return &server{
		processor: horas.NewWithLogger(logger, horas.WithCategories(cats...), horas.WithWorkers(cfg.Workers)),
		home:      home,
		cache: otter.Must(&otter.Options[string, cachedResponse]{
			MaximumWeight:    responseCacheBytes,
			Weigher:          responseWeight,
			ExpiryCalculator: otter.ExpiryWriting[string, cachedResponse](12 * time.Hour),
		}),
		limiter:     newRateLimiter(limit),
		logger:      logger,
		dateLayouts: cfg.DateLayouts,
		maxUpload:   maxUpload,
	}, nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/v1/process", s.handleProcess)
	mux.HandleFunc("POST /api/v1/upload", s.handleUpload)

	antiCSRF := http.NewCrossOriginProtection()
	return s.wrap(antiCSRF.Handler(mux))
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *server) wrap(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		defer func() {
			if err := recover(); err != nil {
				const size = 64 << 10
				buf := make([]byte, size)
				buf = buf[:runtime.Stack(buf, false)]

				s.logger.Error("PANIC: Request handler crashed",
					"error", err,
					"path", r.URL.Path,
					"method", r.Method,
					"request_id", requestID,
					"client_ip", clientIP(r),
					"user_agent", r.Header.Get("User-Agent"),
					"stack", string(buf))
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()

		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=(), usb=(), bluetooth=()")
		w.Header().Set("Content-Security-Policy",
			"default-src 'self'; "+
				"style-src 'self' 'unsafe-inline'; "+
				"img-src 'self' data:; "+
				"connect-src 'self'")

		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
			w.Header().Set("Pragma", "no-cache")
			w.Header().Set("Expires", "0")
		}

		handler.ServeHTTP(w, r)
	})
}

func (s *server) handleHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.home.Execute(w, nil); err != nil {
		s.logger.Error("Template execution failed",
			"request_id", w.Header().Get("X-Request-ID"),
			"error", err)
	}
}

func (*server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n") //nolint:errcheck // nothing to do on failure
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (s *server) writeError(w http.ResponseWriter, status int, resp errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("Failed to encode error response",
			"request_id", w.Header().Get("X-Request-ID"),
			"encode_error", err)
	}
}

// admit applies the rate limit. It writes the rejection itself.
func (s *server) admit(w http.ResponseWriter, r *http.Request) bool {
	if s.limiter.allow(clientIP(r)) {
		return true
	}
	s.logger.Warn("Rate limit exceeded",
		"request_id", w.Header().Get("X-Request-ID"),
		"client_ip", clientIP(r),
		"user_agent", r.Header.Get("User-Agent"))
	s.writeError(w, http.StatusTooManyRequests, errorResponse{
		Error: "Rate limit exceeded",
		Code:  "RATE_LIMIT",
	})
	return false
}

func cacheKey(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *server) serveCached(w http.ResponseWriter, key string) bool {
	resp, found := s.cache.GetIfPresent(key)
	if !found {
		return false
	}
	w.Header().Set("Content-Type", resp.contentType)
	w.Header().Set("X-Cache", "memory-hit")
	if _, err := w.Write(resp.body); err != nil {
		s.logger.Error("Failed to write cached response",
			"request_id", w.Header().Get("X-Request-ID"),
			"error", err)
	}
	return true
}

func (s *server) respond(w http.ResponseWriter, key, contentType string, body []byte) {
	s.cache.Set(key, cachedResponse{contentType: contentType, body: body})
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Cache", "miss")
	if _, err := w.Write(body); err != nil {
		s.logger.Error("Failed to write response",
			"request_id", w.Header().Get("X-Request-ID"),
			"error", err,
			"response_size", len(body))
	}
}

// processRequest is the body of POST /api/v1/process.
type processRequest struct {
	Rows []struct {
		Date  string `json:"date"`
		Cells []any  `json:"cells"`
	} `json:"rows"`
}

type pairJSON struct {
	Start    string `json:"start"`
	Stop     string `json:"stop"`
	Duration string `json:"duration"`
}

type categoryJSON struct {
	Name    string     `json:"name"`
	Label   string     `json:"label"`
	Pairs   []pairJSON `json:"pairs"`
	Total   string     `json:"total,omitempty"`
	HasData bool       `json:"has_data"`
}

type recordJSON struct {
	Index      int            `json:"index"`
	Date       string         `json:"date"`
	Categories []categoryJSON `json:"categories"`
}

type processResponse struct {
	Records []recordJSON `json:"records"`
}

func toJSON(results []horas.RecordResult) processResponse {
	resp := processResponse{Records: make([]recordJSON, 0, len(results))}
	for i := range results {
		rec := recordJSON{
			Index:      results[i].Index,
			Date:       report.FormatDate(&results[i]),
			Categories: make([]categoryJSON, 0, len(results[i].Categories)),
		}
		for j := range results[i].Categories {
			c := &results[i].Categories[j]
			cj := categoryJSON{
				Name:    c.Category,
				Label:   c.Label,
				Pairs:   make([]pairJSON, 0, len(c.Pairs)),
				Total:   report.FormatTotal(c),
				HasData: c.HasData,
			}
			for _, p := range c.Pairs {
				cj.Pairs = append(cj.Pairs, pairJSON{
					Start:    clock.FormatClock(p.Start),
					Stop:     clock.FormatClock(p.Stop),
					Duration: clock.FormatDuration(p.Duration()),
				})
			}
			rec.Categories = append(rec.Categories, cj)
		}
		resp.Records = append(resp.Records, rec)
	}
	return resp
}

func (s *server) handleProcess(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := w.Header().Get("X-Request-ID")

	if !s.admit(w, r) {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUpload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "Request too large", Code: "TOO_LARGE"})
			return
		}
		s.logger.Warn("Request body unreadable", "request_id", requestID, "error", err)
		s.writeError(w, http.StatusBadRequest, errorResponse{Error: "Unreadable request", Details: err.Error(), Code: "BAD_BODY"})
		return
	}

	key := cacheKey([]byte(r.URL.Path), body)
	if s.serveCached(w, key) {
		s.logger.Info("Process request completed (memory cache)",
			"request_id", requestID,
			"duration_ms", time.Since(start).Milliseconds())
		return
	}

	var req processRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.logger.Warn("Invalid request body", "request_id", requestID, "error", err)
		s.writeError(w, http.StatusBadRequest, errorResponse{Error: "Invalid request", Details: err.Error(), Code: "BAD_JSON"})
		return
	}
	if len(req.Rows) == 0 {
		s.writeError(w, http.StatusBadRequest, errorResponse{Error: "No rows", Code: "NO_ROWS"})
		return
	}

	records := make([]horas.Record, len(req.Rows))
	for i, row := range req.Rows {
		raw := strings.TrimSpace(row.Date)
		records[i] = horas.Record{
			Date:    sheet.ParseDate(raw, s.dateLayouts),
			RawDate: raw,
			Cells:   row.Cells,
			Index:   i,
		}
	}

	results, err := s.processor.Process(r.Context(), records)
	if err != nil {
		s.writeError(w, http.StatusRequestTimeout, errorResponse{Error: "Request was canceled", Code: "CANCELED"})
		return
	}

	data, err := json.Marshal(toJSON(results))
	if err != nil {
		s.logger.Error("JSON encoding failed", "request_id", requestID, "error", err)
		http.Error(w, "Encoding failed", http.StatusInternalServerError)
		return
	}
	s.respond(w, key, "application/json", data)

	s.logger.Info("Process request completed",
		"request_id", requestID,
		"records", len(records),
		"cache", "miss",
		"duration_ms", time.Since(start).Milliseconds())
}

func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := w.Header().Get("X-Request-ID")

	if !s.admit(w, r) {
		return
	}

	outFormat := strings.ToLower(r.URL.Query().Get("format"))
	var reportFormat report.Format
	if outFormat != "" && outFormat != "json" {
		f, err := report.ParseFormat(outFormat)
		if err != nil || f == report.FormatText {
			s.writeError(w, http.StatusBadRequest, errorResponse{Error: "Unknown format", Details: outFormat, Code: "BAD_FORMAT"})
			return
		}
		reportFormat = f
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errorResponse{Error: "Missing file", Details: err.Error(), Code: "NO_FILE"})
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			s.logger.Debug("Failed to close upload", "error", err)
		}
	}()

	format, err := sheet.DetectFormat(header.Filename)
	if err != nil {
		s.writeError(w, http.StatusUnsupportedMediaType, errorResponse{Error: "Unsupported file", Details: header.Filename, Code: "BAD_FILE"})
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errorResponse{Error: "Unreadable upload", Details: err.Error(), Code: "BAD_FILE"})
		return
	}

	key := cacheKey([]byte(r.URL.Path), []byte(outFormat), []byte(r.FormValue("sheet")), []byte(header.Filename), []byte(format), data)
	if s.serveCached(w, key) {
		return
	}

	src := &sheet.BytesSource{
		Data:    data,
		Format:  format,
		Options: sheet.Options{Sheet: r.FormValue("sheet"), DateLayouts: s.dateLayouts},
	}
	records, err := src.Records(r.Context())
	if err != nil {
		s.logger.Warn("Upload could not be read", "request_id", requestID, "file", header.Filename, "error", err)
		s.writeError(w, http.StatusUnprocessableEntity, errorResponse{Error: "Could not read sheet", Details: err.Error(), Code: "BAD_SHEET"})
		return
	}

	results, err := s.processor.Process(r.Context(), records)
	if err != nil {
		s.writeError(w, http.StatusRequestTimeout, errorResponse{Error: "Request was canceled", Code: "CANCELED"})
		return
	}

	var out bytes.Buffer
	contentType := "application/json"
	if reportFormat == "" {
		err = json.NewEncoder(&out).Encode(toJSON(results))
	} else {
		contentType = reportFormat.ContentType()
		err = report.Render(&out, reportFormat, results, report.Options{Title: header.Filename, NoColor: true})
	}
	if err != nil {
		s.logger.Error("Rendering failed", "request_id", requestID, "format", outFormat, "error", err)
		http.Error(w, "Rendering failed", http.StatusInternalServerError)
		return
	}
	s.respond(w, key, contentType, out.Bytes())

	s.logger.Info("Upload request completed",
		"request_id", requestID,
		"file", header.Filename,
		"records", len(records),
		"format", outFormat,
		"duration_ms", time.Since(start).Milliseconds())
}
