package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// maxLineBytes bounds one JSON line exchanged with a worker.
const maxLineBytes = 64 << 20

// ErrWorkerExited is returned by Call once the worker process is gone.
var ErrWorkerExited = errors.New("model worker exited")

// WorkerConfig describes a python model worker.
type WorkerConfig struct {
	Name         string // used in logs and temp file names
	Python       string
	Script       []byte
	Args         []string
	Env          []string // appended to the process environment
	StartTimeout time.Duration
}

type workerError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type workerResponse struct {
	OK     bool            `json:"ok"`
	Ready  bool            `json:"ready,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *workerError    `json:"error,omitempty"`
}

// Worker is a long-lived python process that holds one loaded model and
// answers JSON line requests on stdin/stdout, one at a time.
type Worker struct {
	name       string
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	lines      *bufio.Scanner
	stdout     io.Closer
	scriptPath string
	logger     zerolog.Logger

	mu     sync.Mutex
	dead   bool
	stderr *tailBuffer
	waitCh chan struct{}
}

// StartWorker launches the worker and blocks until it reports that its model
// is loaded. Failures are classified as KindModelLoad.
func StartWorker(ctx context.Context, cfg WorkerConfig) (*Worker, error) {
	op := "start " + cfg.Name
	py := cfg.Python
	if py == "" {
		py = "python3"
	}

	f, err := os.CreateTemp("", cfg.Name+"-*.py")
	if err != nil {
		return nil, Errorf(KindInternal, op, "write helper script: %w", err)
	}
	scriptPath := f.Name()
	if _, err := f.Write(cfg.Script); err != nil {
		f.Close()
		os.Remove(scriptPath)
		return nil, Errorf(KindInternal, op, "write helper script: %w", err)
	}
	f.Close()

	cmd := exec.Command(py, append([]string{scriptPath}, cfg.Args...)...)
	cmd.Env = append(os.Environ(), cfg.Env...)
	cmd.WaitDelay = 2 * time.Second

	stdin, err := cmd.StdinPipe()
	if err != nil {
		os.Remove(scriptPath)
		return nil, Errorf(KindInternal, op, "stdin pipe: %w", err)
	}
	// An os.Pipe rather than StdoutPipe keeps lines written just before exit
	// readable after Wait returns.
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		os.Remove(scriptPath)
		return nil, Errorf(KindInternal, op, "stdout pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	tail := newTailBuffer(4096)
	cmd.Stderr = tail

	err = cmd.Start()
	stdoutW.Close()
	if err != nil {
		stdout.Close()
		os.Remove(scriptPath)
		return nil, Errorf(KindModelLoad, op, "start %s: %w", py, err)
	}

	lines := bufio.NewScanner(stdout)
	lines.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	w := &Worker{
		name:       cfg.Name,
		cmd:        cmd,
		stdin:      stdin,
		lines:      lines,
		stdout:     stdout,
		scriptPath: scriptPath,
		stderr:     tail,
		waitCh:     make(chan struct{}),
		logger:     log.With().Str("component", "worker").Str("worker", cfg.Name).Int("pid", cmd.Process.Pid).Logger(),
	}
	go func() {
		_ = cmd.Wait()
		close(w.waitCh)
	}()

	startCtx := ctx
	if cfg.StartTimeout > 0 {
		var cancel context.CancelFunc
		startCtx, cancel = context.WithTimeout(ctx, cfg.StartTimeout)
		defer cancel()
	}

	resp, err := w.readResponse(startCtx)
	if err != nil {
		w.kill()
		return nil, Errorf(KindModelLoad, op, "%v%s", err, w.stderrSuffix())
	}
	if !resp.OK || !resp.Ready {
		w.kill()
		if resp.Error != nil {
			return nil, Errorf(ParseKind(resp.Error.Kind), op, "%s", resp.Error.Message)
		}
		return nil, Errorf(KindModelLoad, op, "worker did not report ready")
	}

	w.logger.Info().Msg("Model worker ready")
	return w, nil
}

// Call sends req and decodes the worker's result into out.
// If ctx ends before the worker answers, the worker is killed.
func (w *Worker) Call(ctx context.Context, op string, req any, out any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dead {
		return Errorf(KindInternal, op, "%w", ErrWorkerExited)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return Errorf(KindInternal, op, "marshal request: %w", err)
	}
	if _, err := w.stdin.Write(append(payload, '\n')); err != nil {
		w.killLocked()
		return Errorf(KindInternal, op, "write request: %w%s", err, w.stderrSuffix())
	}

	resp, err := w.readResponse(ctx)
	if err != nil {
		w.killLocked()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return Errorf(KindInternal, op, "%v%s", err, w.stderrSuffix())
	}
	if !resp.OK {
		if resp.Error == nil {
			return Errorf(KindInternal, op, "worker returned failure without detail")
		}
		return Errorf(ParseKind(resp.Error.Kind), op, "%s", resp.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return Errorf(KindInternal, op, "decode result: %w", err)
		}
	}
	return nil
}

// readResponse reads one line, giving up when ctx ends.
func (w *Worker) readResponse(ctx context.Context) (*workerResponse, error) {
	type result struct {
		line []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		if w.lines.Scan() {
			line := append([]byte(nil), w.lines.Bytes()...)
			ch <- result{line: line}
			return
		}
		err := w.lines.Err()
		if err == nil {
			err = ErrWorkerExited
		}
		ch <- result{err: err}
	}()

	select {
	case <-ctx.Done():
		// Closing the read end unblocks the scanner even if a grandchild
		// still holds the write end.
		w.signalKill()
		w.stdout.Close()
		<-ch
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		var resp workerResponse
		if err := json.Unmarshal(r.line, &resp); err != nil {
			return nil, fmt.Errorf("decode worker line: %w", err)
		}
		return &resp, nil
	}
}

// Dead reports whether the worker can no longer serve calls.
func (w *Worker) Dead() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dead
}

// Close stops the worker and removes its helper script.
func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dead {
		return nil
	}
	w.dead = true
	_ = w.stdin.Close()

	select {
	case <-w.waitCh:
	case <-time.After(5 * time.Second):
		w.signalKill()
		<-w.waitCh
	}
	w.stdout.Close()
	os.Remove(w.scriptPath)
	w.logger.Info().Msg("Model worker stopped")
	return nil
}

func (w *Worker) kill() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.killLocked()
}

func (w *Worker) killLocked() {
	if w.dead {
		return
	}
	w.dead = true
	_ = w.stdin.Close()
	w.signalKill()
	<-w.waitCh
	w.stdout.Close()
	os.Remove(w.scriptPath)
	w.logger.Warn().Msg("Model worker killed")
}

func (w *Worker) signalKill() {
	if w.cmd.Process != nil {
		_ = w.cmd.Process.Kill()
	}
}

func (w *Worker) stderrSuffix() string {
	if s := strings.TrimSpace(w.stderr.String()); s != "" {
		return ": " + s
	}
	return ""
}

// tailBuffer keeps the last n bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	n   int
	buf []byte
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{n: n}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.n {
		t.buf = t.buf[len(t.buf)-t.n:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
