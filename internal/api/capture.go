package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/banshee-data/scanmesh/internal/httputil"
	"github.com/banshee-data/scanmesh/internal/scan/capture"
	"github.com/banshee-data/scanmesh/internal/scan/storage/sqlite"
)

// captureTimeout bounds a single capture request.
const captureTimeout = 10 * time.Minute

// CaptureRequest is the body of POST /api/capture. Durations are in
// milliseconds.
type CaptureRequest struct {
	Slices        int    `json:"slices,omitempty"`
	StopLine      string `json:"stop_line,omitempty"`
	IdleTimeoutMS int    `json:"idle_timeout_ms,omitempty"`
	StartCommand  string `json:"start_command,omitempty"`
	MaxLines      int    `json:"max_lines,omitempty"`
	Process       bool   `json:"process,omitempty"`
}

func (c CaptureRequest) options() capture.Options {
	return capture.Options{
		Slices:       c.Slices,
		StopLine:     c.StopLine,
		IdleTimeout:  time.Duration(c.IdleTimeoutMS) * time.Millisecond,
		StartCommand: c.StartCommand,
		MaxLines:     c.MaxLines,
	}
}

// CaptureResponse reports the stored scan and the capture outcome.
type CaptureResponse struct {
	Scan      *sqlite.Scan    `json:"scan"`
	Capture   *capture.Result `json:"capture"`
	LatestRun *RunResponse    `json:"latest_run,omitempty"`
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.capturer == nil {
		httputil.ServiceUnavailable(w, "No scanner attached")
		return
	}

	var req CaptureRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<16))
	if err != nil {
		httputil.BadRequest(w, "Invalid request body")
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("Invalid capture request: %v", err))
			return
		}
	}
	opts := req.options()
	if opts.Slices <= 0 && opts.StopLine == "" && opts.IdleTimeout <= 0 {
		httputil.BadRequest(w, "One of slices, stop_line or idle_timeout_ms is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), captureTimeout)
	defer cancel()
	res, err := s.capturer.Capture(ctx, opts)
	if err != nil {
		if errors.Is(err, capture.ErrNothingCaptured) {
			httputil.WriteJSONError(w, http.StatusGatewayTimeout, err.Error())
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("Capture failed: %v", err))
		return
	}

	sc := &sqlite.Scan{RawText: res.Text, Source: "serial", LineCount: res.Lines}
	if err := s.scans.Insert(sc); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to store scan: %v", err))
		return
	}
	resp := &CaptureResponse{Scan: withoutText(sc), Capture: res}
	if req.Process {
		run, status, err := s.process(sc, nil)
		if err != nil {
			httputil.WriteJSONError(w, status, err.Error())
			return
		}
		resp.LatestRun = runResponse(run)
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.m == nil {
		httputil.ServiceUnavailable(w, "No scanner attached")
		return
	}
	command := r.FormValue("command")
	if command == "" {
		httputil.BadRequest(w, "Missing 'command'")
		return
	}
	if err := s.m.SendCommand(command); err != nil {
		httputil.InternalServerError(w, "Failed to send command")
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "sent", "command": command})
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"z_delta":            s.cfg.GetZDelta(),
		"center_distance":    s.cfg.GetCenterDistance(),
		"max_distance":       s.cfg.GetMaxDistance(),
		"interp_res":         s.cfg.GetInterpRes(),
		"sigma":              s.cfg.GetSigma(),
		"wrap_seam":          s.cfg.GetWrapSeam(),
		"ragged_slices":      s.cfg.GetRaggedSlices(),
		"missing_row_policy": s.cfg.GetMissingRowPolicy(),
		"stl_format":         s.cfg.GetSTLFormat(),
		"scanner_attached":   s.m != nil,
	})
}
