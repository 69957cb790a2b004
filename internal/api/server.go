package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/scanmesh/internal/config"
	"github.com/banshee-data/scanmesh/internal/scan/capture"
	"github.com/banshee-data/scanmesh/internal/scan/storage/sqlite"
	"github.com/banshee-data/scanmesh/internal/serialmux"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxUploadBytes bounds a posted scan body.
const maxUploadBytes = 32 << 20

type Server struct {
	scans    *sqlite.ScanStore
	runs     *sqlite.MeshRunStore
	m        serialmux.SerialMuxInterface
	capturer *capture.Capturer
	cfg      *config.ReconstructionConfig
}

// NewServer wires the HTTP API over the stores. m may be nil, in which case
// the capture and command endpoints answer 503.
func NewServer(scans *sqlite.ScanStore, runs *sqlite.MeshRunStore, m serialmux.SerialMuxInterface, cfg *config.ReconstructionConfig) *Server {
	if cfg == nil {
		cfg = config.EmptyReconstructionConfig()
	}
	s := &Server{scans: scans, runs: runs, m: m, cfg: cfg}
	if m != nil {
		s.capturer = capture.New(m)
	}
	return s
}

// WithCapturer replaces the capturer, mainly so tests can inject a clock.
func (s *Server) WithCapturer(c *capture.Capturer) *Server {
	s.capturer = c
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/scans", s.handleScans)
	mux.HandleFunc("/api/scans/", s.handleScanRoutes)
	mux.HandleFunc("/api/capture", s.handleCapture)
	mux.HandleFunc("/api/command", s.sendCommandHandler)
	mux.HandleFunc("/api/config", s.showConfig)
	return mux
}
