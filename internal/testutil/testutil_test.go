package testutil

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestCylinderScan(t *testing.T) {
	got := CylinderScan(2, 3, 4)
	lines := strings.Split(strings.TrimSpace(got), "\n")
	if len(lines) != 8 {
		t.Fatalf("lines = %d, want 8", len(lines))
	}
	if lines[3] != "9999" || lines[7] != "9999" {
		t.Errorf("sentinels missing: %q", lines)
	}
	if lines[0] != "4.00" {
		t.Errorf("first sample = %q, want 4.00", lines[0])
	}
}

func TestNewTestRequest(t *testing.T) {
	req := NewTestRequest(http.MethodPost, "/api/scans", TwoSliceScan)
	body, err := io.ReadAll(req.Body)
	AssertNoError(t, err)
	if string(body) != TwoSliceScan {
		t.Errorf("body = %q", body)
	}

	req = NewTestRequest(http.MethodGet, "/api/scans", "")
	if req.Method != http.MethodGet || req.URL.Path != "/api/scans" {
		t.Errorf("unexpected request %s %s", req.Method, req.URL.Path)
	}
}

func TestServe(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	rec := Serve(h, NewTestRequest(http.MethodGet, "/", ""))
	AssertStatusCode(t, rec.Code, http.StatusTeapot)
}
