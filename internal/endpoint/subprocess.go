package endpoint

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// maxStderrLines bounds how much of a failed copy's stderr becomes the
// returned error message.
const maxStderrLines = 10

// copyHandle tracks a running copy/move subprocess so poll_progress can be
// called repeatedly without blocking.
type copyHandle struct {
	cmd    *exec.Cmd
	stdout *bufio.Reader
	stderr *ringBuffer
	done   chan error
}

// Progress is a single stats sample read off the engine's progress stream.
type Progress struct {
	Bytes   int64
	Percent float64
	Rate    int64
	ETA     int64
}


func (a *Adapter) startSubprocess(ctx context.Context, args []string) (*copyHandle, error) {
	cmd := exec.CommandContext(ctx, a.binaryPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	h := &copyHandle{
		cmd:    cmd,
		stdout: bufio.NewReader(stdout),
		stderr: newRingBuffer(maxStderrLines),
		done:   make(chan error, 1),
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start copy engine: %w", err)
	}

	go h.stderr.drain(stderrPipe)
	go func() {
		h.done <- cmd.Wait()
	}()

	return h, nil
}

// poll reads at most one progress line without blocking past ctx's
// deadline; returns (nil, false, nil) if nothing new is available yet, and
// (_, true, err) once the process has exited.
func (h *copyHandle) poll(ctx context.Context, log *zap.Logger) (*Progress, bool, error) {
	select {
	case err := <-h.done:
		if err != nil {
			return nil, true, fmt.Errorf("copy engine failed: %s", h.stderr.lastLines())
		}
		return nil, true, nil
	default:
	}

	line, err := readLineNonBlocking(ctx, h.stdout)
	if err != nil {
		if err == io.EOF {
			return nil, false, nil
		}
		return nil, false, nil
	}
	if line == "" {
		return nil, false, nil
	}

	// The engine emits one JSON object per line under --stats 1s
	// --use-json-log, with the sample nested under a "stats" key. gjson
	// lets us pull just the fields we need without a struct that mirrors
	// the engine's whole (and occasionally changing) stats schema.
	if !gjson.Valid(line) {
		log.Debug("skipping unparseable progress line", zap.String("line", line))
		return nil, false, nil
	}
	stats := gjson.Get(line, "stats")
	if !stats.Exists() {
		return nil, false, nil
	}

	p := &Progress{
		Bytes:   stats.Get("bytes").Int(),
		Percent: stats.Get("progress").Float(),
		Rate:    int64(stats.Get("speed").Float()),
	}
	if eta := stats.Get("eta"); eta.Exists() && eta.Type != gjson.Null {
		p.ETA = eta.Int()
	}
	return p, false, nil
}

func (h *copyHandle) cancel() {
	if h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
}

// ringBuffer keeps the last n lines written to it, used to capture a
// failing subprocess's trailing stderr output.
type ringBuffer struct {
	mu    sync.Mutex
	lines []string
	n     int
}

func newRingBuffer(n int) *ringBuffer {
	return &ringBuffer{n: n}
}

func (r *ringBuffer) drain(rc io.ReadCloser) {
	defer rc.Close()
	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		r.mu.Lock()
		r.lines = append(r.lines, scanner.Text())
		if len(r.lines) > r.n {
			r.lines = r.lines[len(r.lines)-r.n:]
		}
		r.mu.Unlock()
	}
}

func (r *ringBuffer) lastLines() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := ""
	for i, l := range r.lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

// readLineNonBlocking reads a single line from r, returning io.EOF-like
// empty results rather than blocking when nothing is buffered yet. A line
// is read only once some of it is buffered; ReadString then waits for the
// rest of that line.
func readLineNonBlocking(ctx context.Context, r *bufio.Reader) (string, error) {
	if r.Buffered() == 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
			return "", nil
		}
	}
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return trimNewline(line), nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
