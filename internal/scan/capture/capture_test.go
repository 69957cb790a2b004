package capture

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/scanmesh/internal/monitoring"
	"github.com/banshee-data/scanmesh/internal/timeutil"
)

func init() {
	monitoring.SetLogger(nil)
}

// fakeMux hands the test direct control of the line channel.
type fakeMux struct {
	lines chan string

	mu           sync.Mutex
	commands     []string
	unsubscribed bool
	sendErr      error
	dropped      int
}

func newFakeMux() *fakeMux { return &fakeMux{lines: make(chan string)} }

func (f *fakeMux) Subscribe() (string, chan string) { return "fake", f.lines }
func (f *fakeMux) Unsubscribe(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = true
}
func (f *fakeMux) SendCommand(cmd string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
	return f.sendErr
}
func (f *fakeMux) Dropped(string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}
func (f *fakeMux) Monitor(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }
func (f *fakeMux) Close() error                      { return nil }
func (f *fakeMux) Initialize() error                 { return nil }
func (f *fakeMux) AttachAdminRoutes(*http.ServeMux)  {}

type outcome struct {
	res *Result
	err error
}

func start(c *Capturer, ctx context.Context, opts Options) <-chan outcome {
	done := make(chan outcome, 1)
	go func() {
		res, err := c.Capture(ctx, opts)
		done <- outcome{res, err}
	}()
	return done
}

func send(t *testing.T, mux *fakeMux, lines ...string) {
	t.Helper()
	for _, l := range lines {
		select {
		case mux.lines <- l:
		case <-time.After(2 * time.Second):
			t.Fatalf("capture stopped reading before %q", l)
		}
	}
}

func wait(t *testing.T, done <-chan outcome) outcome {
	t.Helper()
	select {
	case o := <-done:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("capture did not finish")
		return outcome{}
	}
}

func TestCapture_StopsAfterSlices(t *testing.T) {
	mux := newFakeMux()
	done := start(New(mux), context.Background(), Options{Slices: 2, StartCommand: "SCAN"})

	send(t, mux, "ready", "1.0", "2.0", "9999", "9999", "1.5", "2.5", "9999")
	o := wait(t, done)
	require.NoError(t, o.err)

	assert.Equal(t, StopSlices, o.res.Reason)
	assert.Equal(t, 2, o.res.Slices, "empty slice between sentinels is not counted")
	assert.Equal(t, 8, o.res.Lines)
	assert.Equal(t, "ready\n1.0\n2.0\n9999\n9999\n1.5\n2.5\n9999\n", o.res.Text)
	assert.Equal(t, []string{"SCAN"}, mux.commands)
	assert.True(t, mux.unsubscribed)
}

func TestCapture_ReportsDroppedLines(t *testing.T) {
	mux := newFakeMux()
	mux.dropped = 7
	done := start(New(mux), context.Background(), Options{Slices: 1})

	send(t, mux, "1.0", "2.0", "9999")
	o := wait(t, done)
	require.NoError(t, o.err)
	assert.Equal(t, 7, o.res.Dropped)
}

func TestCapture_StopLine(t *testing.T) {
	mux := newFakeMux()
	done := start(New(mux), context.Background(), Options{StopLine: "DONE"})

	send(t, mux, "1", "9999", "  DONE  ")
	o := wait(t, done)
	require.NoError(t, o.err)
	assert.Equal(t, StopLine, o.res.Reason)
	assert.Equal(t, "1\n9999\n", o.res.Text)
}

func TestCapture_StreamClosed(t *testing.T) {
	mux := newFakeMux()
	done := start(New(mux), context.Background(), Options{})

	send(t, mux, "1", "2", "9999")
	close(mux.lines)
	o := wait(t, done)
	require.NoError(t, o.err)
	assert.Equal(t, StopClosed, o.res.Reason)
	assert.Equal(t, 1, o.res.Slices)
}

func TestCapture_NothingCaptured(t *testing.T) {
	mux := newFakeMux()
	close(mux.lines)
	_, err := New(mux).Capture(context.Background(), Options{})
	assert.True(t, errors.Is(err, ErrNothingCaptured), "got %v", err)
}

func TestCapture_MaxLines(t *testing.T) {
	mux := newFakeMux()
	done := start(New(mux), context.Background(), Options{MaxLines: 3})

	send(t, mux, "1", "2", "3")
	o := wait(t, done)
	require.NoError(t, o.err)
	assert.Equal(t, StopMaxLines, o.res.Reason)
	assert.Equal(t, 3, o.res.Lines)
}

func TestCapture_IdleTimeout(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	mux := newFakeMux()
	done := start(New(mux).WithClock(clock), context.Background(), Options{IdleTimeout: time.Second})

	send(t, mux, "1", "2", "9999")

	// Keep advancing until the capture notices it has gone idle; a single
	// Advance may land before the capture re-arms its timer.
	for {
		clock.Advance(time.Second)
		select {
		case o := <-done:
			require.NoError(t, o.err)
			assert.Equal(t, StopIdle, o.res.Reason)
			assert.Equal(t, 3, o.res.Lines)
			assert.GreaterOrEqual(t, o.res.Duration, time.Second)
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestCapture_ContextCancelled(t *testing.T) {
	mux := newFakeMux()
	ctx, cancel := context.WithCancel(context.Background())
	done := start(New(mux), ctx, Options{})

	send(t, mux, "1")
	cancel()
	o := wait(t, done)
	assert.Nil(t, o.res)
	assert.ErrorIs(t, o.err, context.Canceled)
}

func TestCapture_StartCommandError(t *testing.T) {
	mux := newFakeMux()
	mux.sendErr = errors.New("port gone")
	_, err := New(mux).Capture(context.Background(), Options{StartCommand: "SCAN"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port gone")
}
