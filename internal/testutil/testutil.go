// Package testutil provides shared test fixtures: canned scanner output and
// small HTTP helpers.
package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TwoSliceScan is the smallest useful capture: two slices of two samples,
// each closed by the 9999 sentinel. With a center distance of 5 it
// reconstructs to the radius grid [[4 3] [3.5 2.5]].
const TwoSliceScan = "1.0\n2.0\n9999\n1.5\n2.5\n9999\n"

// RaggedScan has slices of length 3 and 2.
const RaggedScan = "1\n2\n3\n9999\n1\n2\n9999\n"

// CylinderScan renders rows slices of cols samples at a constant distance,
// one sample per line, the way the scanner prints them.
func CylinderScan(rows, cols int, distance float64) string {
	var b strings.Builder
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			fmt.Fprintf(&b, "%.2f\n", distance)
		}
		b.WriteString("9999\n")
	}
	return b.String()
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request with an optional string body.
func NewTestRequest(method, path, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return httptest.NewRequest(method, path, r)
}

// Serve runs req against h and returns the recorder.
func Serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
