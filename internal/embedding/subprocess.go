package embedding

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const idleTimeout = 30 * time.Second

// ErrScriptNotFound is returned when the embedding service script is missing.
var ErrScriptNotFound = errors.New("embedding_service.py not found")

// SubprocessExtractor feeds frames to a long-running Python embedding
// service over stdin/stdout.
//
// Each request is a 4-byte big-endian length followed by JPEG bytes; each
// response is one JSON line {"embedding": [...]} or {"error": "..."}.
// The process starts lazily and is stopped after idleTimeout without use.
type SubprocessExtractor struct {
	dim        int
	scriptPath string
	python     string

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	started   bool
	idleTimer *time.Timer
}

// NewSubprocessExtractor locates the service script and returns an
// extractor that will launch it on first use.
func NewSubprocessExtractor(dim int) (*SubprocessExtractor, error) {
	script := findScript()
	if script == "" {
		return nil, ErrScriptNotFound
	}
	python := findVenvPython()
	if python == "" {
		python = "python3"
	}
	return newSubprocessExtractor(python, script, dim), nil
}

func newSubprocessExtractor(python, script string, dim int) *SubprocessExtractor {
	if dim <= 0 {
		dim = DefaultDim
	}
	return &SubprocessExtractor{dim: dim, scriptPath: script, python: python}
}

// Embed sends frame to the service and waits for its vector.
func (e *SubprocessExtractor) Embed(ctx context.Context, frame *gocv.Mat) ([]float32, error) {
	data, err := encodeJPEG(frame)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureStarted(); err != nil {
		return nil, err
	}

	vec, err := e.roundTrip(data)
	if err != nil {
		// The stream is out of sync after a failed exchange.
		e.shutdown()
		return nil, err
	}

	e.resetIdleTimer()
	return vec, nil
}

func (e *SubprocessExtractor) roundTrip(data []byte) ([]float32, error) {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := e.stdin.Write(length); err != nil {
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := e.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := e.stdout.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var response struct {
		Embedding []float32 `json:"embedding"`
		Error     string    `json:"error"`
	}
	if err := json.Unmarshal([]byte(line), &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("embedding service: %s", response.Error)
	}
	if err := checkDim(response.Embedding, e.dim); err != nil {
		return nil, err
	}
	return response.Embedding, nil
}

// Dim returns the expected vector length.
func (e *SubprocessExtractor) Dim() int {
	return e.dim
}

// Close shuts down the Python process.
func (e *SubprocessExtractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdown()
}

func (e *SubprocessExtractor) ensureStarted() error {
	if e.started {
		return nil
	}

	cmd := exec.Command(e.python, e.scriptPath)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start embedding service: %w", err)
	}

	e.cmd = cmd
	e.stdin = stdin
	e.stdout = bufio.NewReader(stdout)
	e.started = true
	return nil
}

func (e *SubprocessExtractor) shutdown() error {
	if !e.started {
		return nil
	}

	if e.idleTimer != nil {
		e.idleTimer.Stop()
		e.idleTimer = nil
	}
	if e.stdin != nil {
		e.stdin.Close()
	}

	err := e.cmd.Wait()
	e.started = false
	e.cmd = nil
	e.stdin = nil
	e.stdout = nil
	return err
}

func (e *SubprocessExtractor) resetIdleTimer() {
	if e.idleTimer != nil {
		e.idleTimer.Stop()
	}
	e.idleTimer = time.AfterFunc(idleTimeout, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.shutdown()
	})
}

func findScript() string {
	var execDir string
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}

	return firstExisting(
		"scripts/embedding_service.py",
		"../scripts/embedding_service.py",
		filepath.Join(execDir, "scripts/embedding_service.py"),
		filepath.Join(os.Getenv("HOME"), ".handsoff/scripts/embedding_service.py"),
	)
}

func findVenvPython() string {
	var execDir string
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}

	return firstExisting(
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".handsoff/venv/bin/python"),
	)
}

func firstExisting(candidates ...string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}
