package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-shellwords"
	"gocv.io/x/gocv"
)

const (
	// IdleShutdown is how long the recognizer process may sit unused before it is stopped.
	IdleShutdown = 30 * time.Second

	// ShutdownGrace is how long the service gets to exit after stdin closes
	// before it is killed.
	ShutdownGrace = 2 * time.Second
)

var (
	// ErrNoRecognizer is returned when no recognizer command is configured or found.
	ErrNoRecognizer = errors.New("gesture recognizer service not found")

	// ErrDetectorClosed is returned by Detect after Close.
	ErrDetectorClosed = errors.New("detector closed")
)

// RecognizerDetector talks to a MediaPipe GestureRecognizer service running as a
// subprocess. Each frame is written as a 4-byte big-endian length followed by
// JPEG bytes; the service answers with one JSON line per frame.
type RecognizerDetector struct {
	args  []string
	idle  time.Duration
	grace time.Duration

	// proc is readable without mu so Close can kill a service that a
	// pending Detect is blocked on.
	proc atomic.Pointer[os.Process]

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	started   bool
	closed    bool
	idleTimer *time.Timer
	idleGen   uint64
}

// NewRecognizerDetector prepares a detector. The service is started lazily on
// the first Detect call.
func NewRecognizerDetector(cfg Config) (*RecognizerDetector, error) {
	command := cfg.Command
	if command == "" {
		script := findRecognizerScript()
		if script == "" {
			return nil, ErrNoRecognizer
		}
		command = "python3 " + strconv.Quote(script)
	}

	args, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse recognizer command: %w", err)
	}
	if len(args) == 0 {
		return nil, ErrNoRecognizer
	}

	if cfg.MaxHands > 0 {
		args = append(args, "--max-hands", strconv.Itoa(cfg.MaxHands))
	}
	if cfg.MinConfidence > 0 {
		args = append(args, "--min-confidence", strconv.FormatFloat(cfg.MinConfidence, 'f', 2, 64))
	}

	return &RecognizerDetector{args: args, idle: IdleShutdown, grace: ShutdownGrace}, nil
}

// Detect sends frame to the service and returns the recognized hands.
func (d *RecognizerDetector) Detect(frame *gocv.Mat) ([]Hand, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrDetectorClosed
	}
	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	hands, err := d.roundTrip(buf.GetBytes())
	if err != nil {
		// A broken pipe leaves the service unusable; restart it on the next frame.
		d.shutdown()
		return nil, err
	}

	d.resetIdleTimer()
	return hands, nil
}

func (d *RecognizerDetector) roundTrip(data []byte) ([]Hand, error) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))

	if _, err := d.stdin.Write(length[:]); err != nil {
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return decodeResponse(line)
}

// decodeResponse parses one service response line.
func decodeResponse(line []byte) ([]Hand, error) {
	var resp struct {
		Hands []Hand `json:"hands"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("recognizer: %s", resp.Error)
	}
	if resp.Hands == nil {
		return []Hand{}, nil
	}
	return resp.Hands, nil
}

// Close stops the service process. A Detect blocked on a hung service is
// interrupted by killing the process after the grace period.
func (d *RecognizerDetector) Close() error {
	var kill *time.Timer
	if p := d.proc.Load(); p != nil {
		kill = time.AfterFunc(d.grace, func() { p.Kill() })
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if kill != nil {
		kill.Stop()
	}
	d.closed = true
	return d.shutdown()
}

func (d *RecognizerDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	cmd := exec.Command(d.args[0], d.args[1:]...)
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
		return fmt.Errorf("start recognizer service: %w", err)
	}

	d.cmd = cmd
	d.proc.Store(cmd.Process)
	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	return nil
}

func (d *RecognizerDetector) shutdown() error {
	d.idleGen++
	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}
	if !d.started {
		return nil
	}

	d.stdin.Close()
	proc := d.cmd.Process
	kill := time.AfterFunc(d.grace, func() { proc.Kill() })
	err := d.cmd.Wait()
	kill.Stop()

	d.started = false
	d.proc.Store(nil)
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil
	return err
}

// resetIdleTimer re-arms the idle shutdown. A callback that already fired
// and is waiting on mu sees a newer generation and does nothing.
func (d *RecognizerDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleGen++
	gen := d.idleGen
	d.idleTimer = time.AfterFunc(d.idle, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.idleGen != gen {
			return
		}
		d.shutdown()
	})
}

// findRecognizerScript looks for the bundled service script next to the
// binary, in the working tree and under ~/.spatial.
func findRecognizerScript() string {
	var execDir string
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/recognizer_service.py",
		"../scripts/recognizer_service.py",
		filepath.Join(execDir, "scripts", "recognizer_service.py"),
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".spatial", "scripts", "recognizer_service.py"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return ""
}
