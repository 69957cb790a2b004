package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/banshee-data/scanmesh/internal/config"
	"github.com/banshee-data/scanmesh/internal/httputil"
	"github.com/banshee-data/scanmesh/internal/scan"
	"github.com/banshee-data/scanmesh/internal/scan/export"
	"github.com/banshee-data/scanmesh/internal/scan/monitor"
	"github.com/banshee-data/scanmesh/internal/scan/pipeline"
	"github.com/banshee-data/scanmesh/internal/scan/storage/sqlite"
)

// RunResponse is the JSON view of a stored mesh run.
type RunResponse struct {
	*sqlite.MeshRun
	STLBytes int `json:"stl_bytes"`
}

// ScanResponse is a scan with its newest run, when one exists.
type ScanResponse struct {
	*sqlite.Scan
	LatestRun *RunResponse `json:"latest_run,omitempty"`
}

func runResponse(run *sqlite.MeshRun) *RunResponse {
	return &RunResponse{MeshRun: run, STLBytes: len(run.STL)}
}

// handleScans serves GET (list) and POST (upload) on /api/scans.
func (s *Server) handleScans(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit := 100
		if l := r.URL.Query().Get("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil || n < 1 {
				httputil.BadRequest(w, "Invalid 'limit' parameter")
				return
			}
			limit = n
		}
		scans, err := s.scans.List(limit)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("Failed to list scans: %v", err))
			return
		}
		if scans == nil {
			scans = []*sqlite.Scan{}
		}
		httputil.WriteJSONOK(w, scans)

	case http.MethodPost:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
		if err != nil {
			httputil.WriteJSONError(w, http.StatusRequestEntityTooLarge, "Scan body too large")
			return
		}
		text, err := uploadText(r, body)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		source := r.URL.Query().Get("source")
		sc := &sqlite.Scan{RawText: text, Source: source}
		if err := s.scans.Insert(sc); err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("Failed to store scan: %v", err))
			return
		}
		resp := &ScanResponse{Scan: withoutText(sc)}
		if r.URL.Query().Get("process") == "true" {
			run, status, err := s.process(sc, nil)
			if err != nil {
				httputil.WriteJSONError(w, status, err.Error())
				return
			}
			resp.LatestRun = runResponse(run)
		}
		httputil.WriteJSON(w, http.StatusCreated, resp)

	default:
		httputil.MethodNotAllowed(w)
	}
}

// uploadText accepts either raw scanner text or a JSON {"data": "..."}
// envelope when the request is sent as application/json.
func uploadText(r *http.Request, body []byte) (string, error) {
	text := string(body)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			Data string `json:"data"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return "", fmt.Errorf("invalid JSON body: %v", err)
		}
		text = req.Data
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty scan body")
	}
	return text, nil
}

// handleScanRoutes dispatches /api/scans/{id}[/action].
func (s *Server) handleScanRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/scans/"), "/"), "/")
	if len(parts) == 0 || parts[0] == "" || len(parts) > 2 {
		httputil.NotFound(w, "Not found")
		return
	}
	id := parts[0]
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			s.showScan(w, id)
		case http.MethodDelete:
			s.deleteScan(w, id)
		default:
			httputil.MethodNotAllowed(w)
		}
	case "process":
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}
		s.processScan(w, r, id)
	case "runs":
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		s.listRuns(w, id)
	case "stl":
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		s.downloadSTL(w, r, id)
	case "chart", "heatmap.png":
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		s.renderHeatmap(w, id, action == "chart")
	default:
		httputil.NotFound(w, "Not found")
	}
}

func (s *Server) showScan(w http.ResponseWriter, id string) {
	sc, ok := s.lookupScan(w, id)
	if !ok {
		return
	}
	resp := &ScanResponse{Scan: sc}
	run, err := s.runs.LatestForScan(id)
	switch {
	case err == nil:
		resp.LatestRun = runResponse(run)
	case !errors.Is(err, sqlite.ErrNotFound):
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load mesh run: %v", err))
		return
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) deleteScan(w http.ResponseWriter, id string) {
	if err := s.scans.Delete(id); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("Failed to delete scan: %v", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listRuns(w http.ResponseWriter, id string) {
	if _, ok := s.lookupScan(w, id); !ok {
		return
	}
	runs, err := s.runs.ListByScan(id)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list mesh runs: %v", err))
		return
	}
	out := make([]*RunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, runResponse(run))
	}
	httputil.WriteJSONOK(w, out)
}

// processScan reconstructs the scan with the server config, overridden by an
// optional JSON body, and stores the run.
func (s *Server) processScan(w http.ResponseWriter, r *http.Request, id string) {
	sc, ok := s.lookupScan(w, id)
	if !ok {
		return
	}

	var override *config.ReconstructionConfig
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		httputil.BadRequest(w, "Invalid request body")
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		override, err = config.ParseReconstructionConfig(body)
		if err != nil {
			httputil.BadRequest(w, fmt.Sprintf("Invalid reconstruction config: %v", err))
			return
		}
	}

	run, status, err := s.process(sc, override)
	if err != nil {
		httputil.WriteJSONError(w, status, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, runResponse(run))
}

// process runs the pipeline for sc and persists the run. The returned status
// is meaningful only when err is non-nil.
func (s *Server) process(sc *sqlite.Scan, override *config.ReconstructionConfig) (*sqlite.MeshRun, int, error) {
	rc := s.cfg.Merge(override)
	cfg, err := pipeline.ConfigFrom(rc)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	res, err := pipeline.RunString(sc.RawText, cfg)
	if err != nil {
		return nil, pipelineErrorStatus(err), err
	}

	var stl bytes.Buffer
	if err := res.WriteSTL(&stl, cfg.Format); err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("encode stl: %w", err)
	}
	params, err := json.Marshal(rc)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	summary := res.Summary()
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}

	run := &sqlite.MeshRun{
		ScanID:        sc.ScanID,
		ParamsJSON:    params,
		SummaryJSON:   summaryJSON,
		Rows:          summary.Rows,
		Cols:          summary.Cols,
		TriangleCount: summary.Triangles,
		MissingCells:  summary.Missing,
		STLFormat:     string(cfg.Format),
		STL:           stl.Bytes(),
	}
	if err := s.runs.Insert(run); err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("store mesh run: %w", err)
	}
	return run, 0, nil
}

// pipelineErrorStatus maps reconstruction failures on well-formed requests
// to 422 and everything else to 500.
func pipelineErrorStatus(err error) int {
	switch {
	case errors.Is(err, scan.ErrInvalidConfig), errors.Is(err, scan.ErrInvalidResampleFactor):
		return http.StatusBadRequest
	case errors.Is(err, scan.ErrEmptyScan),
		errors.Is(err, scan.ErrNonRectangularScan),
		errors.Is(err, scan.ErrAllMissingRow):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// downloadSTL serves the newest run's STL, or the run named by ?run=.
// A t or inline=true query parameter drops the attachment disposition so
// in-browser viewers can load the model.
func (s *Server) downloadSTL(w http.ResponseWriter, r *http.Request, id string) {
	var (
		run *sqlite.MeshRun
		err error
	)
	if runID := r.URL.Query().Get("run"); runID != "" {
		run, err = s.runs.Get(runID)
		if err == nil && run.ScanID != id {
			err = fmt.Errorf("mesh run %s: %w", runID, sqlite.ErrNotFound)
		}
	} else {
		run, err = s.runs.LatestForScan(id)
	}
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.InternalServerError(w, err.Error())
		return
	}

	w.Header().Set("Content-Type", export.Format(run.STLFormat).ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(run.STL)))
	q := r.URL.Query()
	if !q.Has("t") && q.Get("inline") != "true" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", stlFilename(id, run.RunID)))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(run.STL)
}

func stlFilename(scanID, runID string) string {
	short := func(s string) string {
		if len(s) > 8 {
			return s[:8]
		}
		return s
	}
	return fmt.Sprintf("scan-%s-%s.stl", short(scanID), short(runID))
}

// renderHeatmap reruns the profile stages with the newest run's parameters,
// or the server config, and draws the smoothed radius grid.
func (s *Server) renderHeatmap(w http.ResponseWriter, id string, html bool) {
	sc, ok := s.lookupScan(w, id)
	if !ok {
		return
	}
	rc := s.cfg
	if run, err := s.runs.LatestForScan(id); err == nil && len(run.ParamsJSON) > 0 {
		if stored, err := config.ParseReconstructionConfig(run.ParamsJSON); err == nil {
			rc = s.cfg.Merge(stored)
		}
	}
	cfg, err := pipeline.ConfigFrom(rc)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	res, err := pipeline.RunString(sc.RawText, cfg)
	if err != nil {
		httputil.WriteJSONError(w, pipelineErrorStatus(err), err.Error())
		return
	}

	title := "scan " + sc.ScanID
	if html {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := monitor.RenderHeatmapHTML(w, res.Profile, title); err != nil {
			httputil.InternalServerError(w, err.Error())
		}
		return
	}
	var buf bytes.Buffer
	if err := monitor.WriteHeatmapPNG(&buf, res.Profile, title); err != nil {
		httputil.UnprocessableEntity(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

func (s *Server) lookupScan(w http.ResponseWriter, id string) (*sqlite.Scan, bool) {
	sc, err := s.scans.Get(id)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			httputil.NotFound(w, err.Error())
		} else {
			httputil.InternalServerError(w, fmt.Sprintf("Failed to load scan: %v", err))
		}
		return nil, false
	}
	return sc, true
}

func withoutText(sc *sqlite.Scan) *sqlite.Scan {
	out := *sc
	out.RawText = ""
	return &out
}
