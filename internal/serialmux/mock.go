package serialmux

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"sync"
	"time"
)

// ReplayPort implements SerialPorter by replaying recorded scanner output.
// Commands written to it are recorded and otherwise ignored.
type ReplayPort struct {
	r    *io.PipeReader
	w    *io.PipeWriter
	stop chan struct{}
	once sync.Once

	mu      sync.Mutex
	written bytes.Buffer
}

// NewReplayPort starts replaying data one line per interval. After the last
// line the port stays idle (reads block) until Close, like a scanner that
// has finished a sweep.
func NewReplayPort(data []byte, interval time.Duration) *ReplayPort {
	r, w := io.Pipe()
	p := &ReplayPort{r: r, w: w, stop: make(chan struct{})}
	go p.replay(data, interval)
	return p
}

func (p *ReplayPort) replay(data []byte, interval time.Duration) {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if tick != nil {
			select {
			case <-tick:
			case <-p.stop:
				return
			}
		}
		if _, err := p.w.Write([]byte(sc.Text() + "\n")); err != nil {
			return
		}
	}
	<-p.stop
}

func (p *ReplayPort) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *ReplayPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

// Written returns every command written so far.
func (p *ReplayPort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

func (p *ReplayPort) Close() error {
	p.once.Do(func() {
		close(p.stop)
		p.w.Close()
	})
	return nil
}

// NewReplaySerialMux creates a SerialMux backed by a ReplayPort. Used by
// the server's fixture mode and by tests.
func NewReplaySerialMux(data []byte, interval time.Duration) *SerialMux[*ReplayPort] {
	return NewSerialMux(NewReplayPort(data, interval))
}

// TestableSerialPort implements SerialPorter with configurable behaviour for testing.
// It provides fine-grained control over reads, writes and errors.
type TestableSerialPort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// ReadError is returned by the next Read call if set
	ReadError error

	// WriteError is returned by the next Write call if set
	WriteError error

	// ShortWrite makes Write report one byte fewer than it was given
	ShortWrite bool

	// CloseError is returned by Close if set
	CloseError error

	// Closed indicates whether Close was called
	Closed bool

	// BlockReads causes Read to block until data is added or Close is called
	BlockReads bool

	readCond *sync.Cond
}

// NewTestableSerialPort creates a new TestableSerialPort for testing.
func NewTestableSerialPort() *TestableSerialPort {
	tsp := &TestableSerialPort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	tsp.readCond = sync.NewCond(&tsp.mu)
	return tsp
}

var errPortClosed = errors.New("serial port closed")

// Read reads from the read buffer, optionally blocking until data arrives.
func (t *TestableSerialPort) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, errPortClosed
	}
	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}
	if t.BlockReads {
		for !t.Closed && t.ReadBuffer.Len() == 0 {
			t.readCond.Wait()
		}
		if t.Closed {
			return 0, errPortClosed
		}
	}
	return t.ReadBuffer.Read(p)
}

// Write writes to the write buffer, optionally failing.
func (t *TestableSerialPort) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, errPortClosed
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}
	n, err = t.WriteBuffer.Write(p)
	if t.ShortWrite && n > 0 {
		n--
	}
	return n, err
}

// Close marks the port as closed.
func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Closed = true
	t.readCond.Broadcast()
	return t.CloseError
}

// AddReadData adds data to be returned by subsequent Read calls.
func (t *TestableSerialPort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Write(data)
	t.readCond.Signal()
}

// GetWrittenData returns all data written to the port.
func (t *TestableSerialPort) GetWrittenData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]byte(nil), t.WriteBuffer.Bytes()...)
}
