package engine

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
)

var errTransportClosed = errors.New("transport closed")

// Transport is a line-oriented channel to one running engine.
type Transport interface {
	// Send writes one command line.
	Send(line string) error
	// Lines delivers engine output in the order it was emitted. The channel
	// is closed when the engine's output ends.
	Lines() <-chan string
	// Close asks the engine to quit and releases it. Safe to call repeatedly.
	Close(ctx context.Context) error
}

// Launcher starts one engine instance from a binary path.
type Launcher func(ctx context.Context, binary string) (Transport, error)

type streamTransport struct {
	w       io.WriteCloser
	lines   chan string
	stopCh  chan struct{}
	release func(ctx context.Context) error

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewStreamTransport wraps an engine's input and output streams. release,
// when non-nil, runs once on Close after "quit" is sent and is expected to
// wait for the engine to exit or force it to.
func NewStreamTransport(w io.WriteCloser, r io.Reader, release func(ctx context.Context) error) Transport {
	t := &streamTransport{
		w:       w,
		lines:   make(chan string, 1024),
		stopCh:  make(chan struct{}),
		release: release,
	}
	go t.readLoop(r)
	return t
}

func (t *streamTransport) Send(line string) error {
	if t.closed.Load() {
		return &OpError{Op: "write command", Err: errTransportClosed}
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := io.WriteString(t.w, line+"\n"); err != nil {
		return &OpError{Op: "write command", Err: err}
	}
	return nil
}

func (t *streamTransport) Lines() <-chan string {
	return t.lines
}

func (t *streamTransport) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	t.closeOnce.Do(func() {
		_ = t.Send("quit")
		t.closed.Store(true)
		close(t.stopCh)
		if t.release != nil {
			t.closeErr = t.release(ctx)
		}
		t.writeMu.Lock()
		_ = t.w.Close()
		t.writeMu.Unlock()
	})
	return t.closeErr
}

func (t *streamTransport) readLoop(r io.Reader) {
	defer close(t.lines)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case <-t.stopCh:
			return
		case t.lines <- line:
		}
	}
}

// ExecLauncher starts the engine as a child process talking over its
// standard input and output.
func ExecLauncher(_ context.Context, binary string) (Transport, error) {
	cmd := exec.Command(binary)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &OpError{Op: "stdin pipe", Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &OpError{Op: "stdout pipe", Err: err}
	}
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return nil, &OpError{Op: "start process", Err: err}
	}

	waitDone := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(waitDone)
	}()

	release := func(ctx context.Context) error {
		select {
		case <-waitDone:
			return nil
		case <-ctx.Done():
		}
		if cmd.Process != nil {
			if err := cmd.Process.Kill(); err != nil {
				return &OpError{Op: "kill process", Err: err}
			}
		}
		<-waitDone
		return nil
	}
	return NewStreamTransport(stdin, stdout, release), nil
}
