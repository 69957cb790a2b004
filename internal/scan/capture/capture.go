// Package capture assembles scan text from the live scanner line stream.
//
// A Capturer subscribes to a serial mux, optionally sends a start command,
// and collects lines until one of its stop conditions is met. The collected
// text is exactly what the scan parser expects, so the usual flow is
// Capture then pipeline.RunString.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/scanmesh/internal/monitoring"
	"github.com/banshee-data/scanmesh/internal/scan/l1samples"
	"github.com/banshee-data/scanmesh/internal/serialmux"
	"github.com/banshee-data/scanmesh/internal/timeutil"
)

// ErrNothingCaptured is returned when the stream ended before any line arrived.
var ErrNothingCaptured = errors.New("capture: no lines received")

// StopReason records why a capture finished.
type StopReason string

const (
	StopSlices   StopReason = "slices"
	StopLine     StopReason = "stop_line"
	StopClosed   StopReason = "stream_closed"
	StopIdle     StopReason = "idle_timeout"
	StopMaxLines StopReason = "max_lines"
)

// DefaultMaxLines bounds a capture when Options.MaxLines is zero.
const DefaultMaxLines = 1 << 20

// Options are the capture stop conditions. Zero values disable the
// corresponding condition, except MaxLines which falls back to
// DefaultMaxLines.
type Options struct {
	// Slices stops the capture once this many non-empty slices have been
	// closed by a sentinel.
	Slices int `json:"slices,omitempty"`
	// StopLine stops the capture when a line equal to it (after trimming)
	// arrives. The stop line itself is not captured.
	StopLine string `json:"stop_line,omitempty"`
	// IdleTimeout stops the capture when no line arrives for this long.
	IdleTimeout time.Duration `json:"idle_timeout,omitempty"`
	// StartCommand is sent to the device after subscribing.
	StartCommand string `json:"start_command,omitempty"`
	MaxLines     int    `json:"max_lines,omitempty"`
}

// Result is a finished capture.
type Result struct {
	Text      string        `json:"-"`
	Lines     int           `json:"lines"`
	Slices    int           `json:"slices"`
	// Dropped counts lines the mux discarded because this capture fell
	// behind. A non-zero value means slices may have merged.
	Dropped   int           `json:"dropped_lines"`
	Reason    StopReason    `json:"reason"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Capturer reads scans from a serial mux.
type Capturer struct {
	mux   serialmux.SerialMuxInterface
	clock timeutil.Clock
}

// New returns a Capturer reading from mux.
func New(mux serialmux.SerialMuxInterface) *Capturer {
	return &Capturer{mux: mux, clock: timeutil.RealClock{}}
}

// WithClock replaces the clock used for the idle timeout.
func (c *Capturer) WithClock(clock timeutil.Clock) *Capturer {
	c.clock = clock
	return c
}

// Capture collects one scan. It returns ctx.Err() if the context ends first;
// lines received until then are discarded.
func (c *Capturer) Capture(ctx context.Context, opts Options) (*Result, error) {
	maxLines := opts.MaxLines
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	stopLine := strings.TrimSpace(opts.StopLine)

	id, lines := c.mux.Subscribe()
	defer c.mux.Unsubscribe(id)

	if opts.StartCommand != "" {
		if err := c.mux.SendCommand(opts.StartCommand); err != nil {
			return nil, fmt.Errorf("send start command: %w", err)
		}
	}

	var idle <-chan time.Time
	var timer timeutil.Timer
	if opts.IdleTimeout > 0 {
		timer = c.clock.NewTimer(opts.IdleTimeout)
		defer timer.Stop()
		idle = timer.C()
	}

	res := &Result{StartedAt: c.clock.Now()}
	var sb strings.Builder
	pending := 0

	finish := func(reason StopReason) (*Result, error) {
		res.Reason = reason
		res.Text = sb.String()
		res.Duration = c.clock.Since(res.StartedAt)
		if dc, ok := c.mux.(serialmux.DropCounter); ok {
			res.Dropped = dc.Dropped(id)
		}
		monitoring.Logf("[capture] %d lines, %d slices, stopped: %s", res.Lines, res.Slices, reason)
		if res.Dropped > 0 {
			monitoring.Logf("[capture] warning: %d lines dropped by a full subscriber buffer", res.Dropped)
		}
		if res.Lines == 0 {
			return nil, fmt.Errorf("%w (%s)", ErrNothingCaptured, reason)
		}
		return res, nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-idle:
			return finish(StopIdle)

		case line, ok := <-lines:
			if !ok {
				return finish(StopClosed)
			}
			if stopLine != "" && strings.TrimSpace(line) == stopLine {
				return finish(StopLine)
			}
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C():
					default:
					}
				}
				timer.Reset(opts.IdleTimeout)
			}

			sb.WriteString(line)
			sb.WriteByte('\n')
			res.Lines++

			switch _, kind := l1samples.ClassifyLine(line); kind {
			case l1samples.LineValue, l1samples.LineSalvaged:
				pending++
			case l1samples.LineSentinel:
				if pending > 0 {
					res.Slices++
				}
				pending = 0
			}

			if opts.Slices > 0 && res.Slices >= opts.Slices {
				return finish(StopSlices)
			}
			if res.Lines >= maxLines {
				return finish(StopMaxLines)
			}
		}
	}
}
