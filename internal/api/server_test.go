package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/scanmesh/internal/config"
	"github.com/banshee-data/scanmesh/internal/db"
	"github.com/banshee-data/scanmesh/internal/scan/export"
	"github.com/banshee-data/scanmesh/internal/scan/storage/sqlite"
	"github.com/banshee-data/scanmesh/internal/serialmux"
	"github.com/banshee-data/scanmesh/internal/testutil"
)

const testConfig = `{
  "z_delta": 1,
  "center_distance": 5,
  "max_distance": 20,
  "interp_res": 1,
  "sigma": 0,
  "missing_row_policy": "carry",
  "stl_format": "binary"
}`

type testEnv struct {
	server  *Server
	handler http.Handler
	scans   *sqlite.ScanStore
	runs    *sqlite.MeshRunStore
}

func setupTestServer(t *testing.T, m serialmux.SerialMuxInterface) *testEnv {
	t.Helper()
	d, err := db.NewDB(cloneAPITestDB(t))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	cfg, err := config.ParseReconstructionConfig([]byte(testConfig))
	require.NoError(t, err)

	env := &testEnv{
		scans: sqlite.NewScanStore(d.DB),
		runs:  sqlite.NewMeshRunStore(d.DB),
	}
	env.server = NewServer(env.scans, env.runs, m, cfg)
	env.handler = env.server.ServeMux()
	return env
}

func (e *testEnv) do(method, path, body string) (*http.Response, []byte) {
	rec := testutil.Serve(e.handler, testutil.NewTestRequest(method, path, body))
	return rec.Result(), rec.Body.Bytes()
}

func (e *testEnv) upload(t *testing.T, text string) *sqlite.Scan {
	t.Helper()
	resp, body := e.do(http.MethodPost, "/api/scans", text)
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusCreated)
	var out ScanResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out.Scan
}

func TestUploadAndList(t *testing.T) {
	env := setupTestServer(t, nil)

	sc := env.upload(t, testutil.TwoSliceScan)
	assert.NotEmpty(t, sc.ScanID)
	assert.Equal(t, 6, sc.LineCount)
	assert.Empty(t, sc.RawText)

	resp, body := env.do(http.MethodGet, "/api/scans", "")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusOK)
	var list []*sqlite.Scan
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, sc.ScanID, list[0].ScanID)
}

func TestUpload_Errors(t *testing.T) {
	env := setupTestServer(t, nil)

	resp, _ := env.do(http.MethodPost, "/api/scans", "   \n")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusBadRequest)

	resp, _ = env.do(http.MethodGet, "/api/scans?limit=0", "")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusBadRequest)

	resp, _ = env.do(http.MethodPut, "/api/scans", "")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusMethodNotAllowed)
}

func TestProcessScan(t *testing.T) {
	env := setupTestServer(t, nil)
	sc := env.upload(t, testutil.TwoSliceScan)

	resp, body := env.do(http.MethodPost, "/api/scans/"+sc.ScanID+"/process", "")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusCreated)

	var run RunResponse
	require.NoError(t, json.Unmarshal(body, &run))
	assert.Equal(t, sc.ScanID, run.ScanID)
	assert.Equal(t, 2, run.Rows)
	assert.Equal(t, 2, run.Cols)
	assert.Equal(t, 8, run.TriangleCount)
	assert.Equal(t, 84+8*50, run.STLBytes)

	resp, body = env.do(http.MethodGet, "/api/scans/"+sc.ScanID, "")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusOK)
	var got ScanResponse
	require.NoError(t, json.Unmarshal(body, &got))
	require.NotNil(t, got.LatestRun)
	assert.Equal(t, run.RunID, got.LatestRun.RunID)
	assert.Equal(t, testutil.TwoSliceScan, got.RawText)
}

func TestProcessScan_Override(t *testing.T) {
	env := setupTestServer(t, nil)
	sc := env.upload(t, testutil.TwoSliceScan)

	resp, body := env.do(http.MethodPost, "/api/scans/"+sc.ScanID+"/process", `{"stl_format":"ascii","interp_res":2}`)
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusCreated)
	var run RunResponse
	require.NoError(t, json.Unmarshal(body, &run))
	assert.Equal(t, "ascii", run.STLFormat)
	assert.Equal(t, 4, run.Rows)
	assert.Contains(t, string(run.ParamsJSON), `"interp_res":2`)

	resp, _ = env.do(http.MethodPost, "/api/scans/"+sc.ScanID+"/process", `{"sigma":-1}`)
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusBadRequest)

	resp, _ = env.do(http.MethodPost, "/api/scans/"+sc.ScanID+"/process", `{"bogus":1}`)
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusBadRequest)
}

func TestProcessScan_OversizedParameters(t *testing.T) {
	env := setupTestServer(t, nil)
	sc := env.upload(t, testutil.TwoSliceScan)

	for _, body := range []string{
		`{"interp_res":1099511627776}`,
		`{"interp_res":65}`,
		`{"sigma":1e9}`,
		`{"sigma":2000}`,
	} {
		resp, _ := env.do(http.MethodPost, "/api/scans/"+sc.ScanID+"/process", body)
		testutil.AssertStatusCode(t, resp.StatusCode, http.StatusBadRequest)
	}

	runs, err := env.runs.ListByScan(sc.ScanID)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestProcessScan_Unprocessable(t *testing.T) {
	env := setupTestServer(t, nil)

	for name, text := range map[string]string{
		"ragged":       testutil.RaggedScan,
		"no sentinels": "1.0\n2.0\n",
	} {
		t.Run(name, func(t *testing.T) {
			sc := env.upload(t, text)
			resp, body := env.do(http.MethodPost, "/api/scans/"+sc.ScanID+"/process", "")
			testutil.AssertStatusCode(t, resp.StatusCode, http.StatusUnprocessableEntity)
			assert.Contains(t, string(body), "error")
		})
	}
}

func TestDownloadSTL(t *testing.T) {
	env := setupTestServer(t, nil)
	sc := env.upload(t, testutil.TwoSliceScan)

	resp, _ := env.do(http.MethodGet, "/api/scans/"+sc.ScanID+"/stl", "")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusNotFound)

	resp, body := env.do(http.MethodPost, "/api/scans/"+sc.ScanID+"/process", "")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusCreated)
	var run RunResponse
	require.NoError(t, json.Unmarshal(body, &run))

	resp, body = env.do(http.MethodGet, "/api/scans/"+sc.ScanID+"/stl", "")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusOK)
	assert.Equal(t, "model/stl", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")

	mesh, _, err := export.ReadBinarySTL(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 8, mesh.Len())

	resp, _ = env.do(http.MethodGet, "/api/scans/"+sc.ScanID+"/stl?t=1&run="+run.RunID, "")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusOK)
	assert.Empty(t, resp.Header.Get("Content-Disposition"))

	other := env.upload(t, testutil.TwoSliceScan)
	resp, _ = env.do(http.MethodGet, "/api/scans/"+other.ScanID+"/stl?run="+run.RunID, "")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusNotFound)
}

func TestHeatmaps(t *testing.T) {
	env := setupTestServer(t, nil)
	sc := env.upload(t, testutil.CylinderScan(4, 6, 2))

	resp, body := env.do(http.MethodGet, "/api/scans/"+sc.ScanID+"/heatmap.png", "")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusOK)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(body, []byte("\x89PNG")))

	resp, body = env.do(http.MethodGet, "/api/scans/"+sc.ScanID+"/chart", "")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusOK)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "echarts")
}

func TestScanRoutes_NotFound(t *testing.T) {
	env := setupTestServer(t, nil)

	for _, path := range []string{
		"/api/scans/missing",
		"/api/scans/missing/runs",
		"/api/scans/missing/chart",
		"/api/scans/x/unknown",
		"/api/scans/",
		"/api/scans/a/b/c",
	} {
		resp, _ := env.do(http.MethodGet, path, "")
		testutil.AssertStatusCode(t, resp.StatusCode, http.StatusNotFound)
	}

	resp, _ := env.do(http.MethodPost, "/api/scans/missing/process", "")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusNotFound)

	resp, _ = env.do(http.MethodGet, "/api/scans/missing/process", "")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusMethodNotAllowed)
}

func TestDeleteScanAndRuns(t *testing.T) {
	env := setupTestServer(t, nil)
	sc := env.upload(t, testutil.TwoSliceScan)
	resp, _ := env.do(http.MethodPost, "/api/scans/"+sc.ScanID+"/process", "")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusCreated)

	resp, body := env.do(http.MethodGet, "/api/scans/"+sc.ScanID+"/runs", "")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusOK)
	var runs []*RunResponse
	require.NoError(t, json.Unmarshal(body, &runs))
	require.Len(t, runs, 1)
	assert.Zero(t, runs[0].STLBytes)

	resp, _ = env.do(http.MethodDelete, "/api/scans/"+sc.ScanID, "")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusNoContent)
	resp, _ = env.do(http.MethodDelete, "/api/scans/"+sc.ScanID, "")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusNotFound)
}

func TestUpload_JSONEnvelope(t *testing.T) {
	env := setupTestServer(t, nil)

	body, err := json.Marshal(map[string]string{"data": testutil.TwoSliceScan})
	require.NoError(t, err)
	req := testutil.NewTestRequest(http.MethodPost, "/api/scans", string(body))
	req.Header.Set("Content-Type", "application/json")
	rec := testutil.Serve(env.handler, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusCreated)

	var out ScanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	stored, err := env.scans.Get(out.ScanID)
	require.NoError(t, err)
	assert.Equal(t, testutil.TwoSliceScan, stored.RawText)

	req = testutil.NewTestRequest(http.MethodPost, "/api/scans", `{"data":""}`)
	req.Header.Set("Content-Type", "application/json")
	rec = testutil.Serve(env.handler, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestUploadWithProcess(t *testing.T) {
	env := setupTestServer(t, nil)
	resp, body := env.do(http.MethodPost, "/api/scans?process=true&source=bench", testutil.TwoSliceScan)
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusCreated)
	var out ScanResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "bench", out.Source)
	require.NotNil(t, out.LatestRun)
	assert.Equal(t, 8, out.LatestRun.TriangleCount)
}

// lineMux feeds a fixed set of lines to the first subscriber.
type lineMux struct {
	lines []string

	mu       sync.Mutex
	commands []string
}

func (m *lineMux) Subscribe() (string, chan string) {
	ch := make(chan string, len(m.lines))
	for _, l := range m.lines {
		ch <- l
	}
	close(ch)
	return "test", ch
}
func (m *lineMux) Unsubscribe(string) {}
func (m *lineMux) SendCommand(cmd string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, cmd)
	return nil
}
func (m *lineMux) Monitor(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }
func (m *lineMux) Close() error                      { return nil }
func (m *lineMux) Initialize() error                 { return nil }
func (m *lineMux) AttachAdminRoutes(*http.ServeMux)  {}

func TestCapture(t *testing.T) {
	mux := &lineMux{lines: strings.Split(strings.TrimSpace(testutil.TwoSliceScan), "\n")}
	env := setupTestServer(t, mux)

	resp, body := env.do(http.MethodPost, "/api/capture", `{"slices":2,"start_command":"scan","process":true}`)
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusCreated)

	var out CaptureResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "serial", out.Scan.Source)
	assert.Equal(t, 2, out.Capture.Slices)
	require.NotNil(t, out.LatestRun)
	assert.Equal(t, 8, out.LatestRun.TriangleCount)
	assert.Equal(t, []string{"scan"}, mux.commands)

	stored, err := env.scans.Get(out.Scan.ScanID)
	require.NoError(t, err)
	assert.Equal(t, 6, stored.LineCount)
}

func TestCapture_Errors(t *testing.T) {
	env := setupTestServer(t, nil)
	resp, _ := env.do(http.MethodPost, "/api/capture", `{"slices":1}`)
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusServiceUnavailable)

	env = setupTestServer(t, &lineMux{})
	resp, _ = env.do(http.MethodPost, "/api/capture", `{}`)
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusBadRequest)

	resp, _ = env.do(http.MethodPost, "/api/capture", `{"slices":1}`)
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusGatewayTimeout)

	resp, _ = env.do(http.MethodGet, "/api/capture", "")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusMethodNotAllowed)
}

func TestSendCommandAndConfig(t *testing.T) {
	mux := &lineMux{}
	env := setupTestServer(t, mux)

	req := testutil.NewTestRequest(http.MethodPost, "/api/command", "command=home")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := testutil.Serve(env.handler, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, []string{"home"}, mux.commands)

	resp, body := env.do(http.MethodGet, "/api/config", "")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusOK)
	var cfg map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &cfg))
	assert.Equal(t, 5.0, cfg["center_distance"])
	assert.Equal(t, true, cfg["scanner_attached"])
}

func TestLoggingMiddleware(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	rec := testutil.Serve(h, testutil.NewTestRequest(http.MethodGet, "/x", ""))
	testutil.AssertStatusCode(t, rec.Code, http.StatusAccepted)

	for code, want := range map[int]string{200: colorBoldGreen, 302: colorYellow, 404: colorBoldRed, 100: "100"} {
		assert.Contains(t, statusCodeColor(code), want, fmt.Sprint(code))
	}
}
