// Package speech keeps a continuous voice listener alive and forwards its
// finalised utterances.
package speech

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
)

// ErrUnsupported means no speech recognizer is available on this machine.
var ErrUnsupported = errors.New("speech recognition unsupported")

// MaxLineSize bounds a single transcript line from an exec listener.
const MaxLineSize = 1 << 20

// Recognizer listens until it terminates or ctx is cancelled, calling emit
// once per finalised utterance.
type Recognizer interface {
	Listen(ctx context.Context, emit func(transcript string)) error
}

// RecognizerFunc adapts a function to the Recognizer interface.
type RecognizerFunc func(ctx context.Context, emit func(string)) error

func (f RecognizerFunc) Listen(ctx context.Context, emit func(string)) error {
	return f(ctx, emit)
}

// ExecRecognizer runs an external listener and treats every stdout line as
// one utterance.
type ExecRecognizer struct {
	args []string
}

// NewExecRecognizer parses command with shell quoting rules. An empty
// command yields ErrUnsupported.
func NewExecRecognizer(command string) (*ExecRecognizer, error) {
	args, err := shellwords.NewParser().Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse speech command: %w", err)
	}
	if len(args) == 0 {
		return nil, ErrUnsupported
	}
	return &ExecRecognizer{args: args}, nil
}

// Listen starts the process and blocks until it exits.
func (r *ExecRecognizer) Listen(ctx context.Context, emit func(string)) error {
	cmd := exec.CommandContext(ctx, r.args[0], r.args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("speech stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUnsupported, r.args[0])
		}
		return fmt.Errorf("start speech listener: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	for scanner.Scan() {
		if text := normalizeLine(scanner.Text()); text != "" {
			emit(text)
		}
	}
	if err := scanner.Err(); err != nil {
		// Nobody reads stdout any more, so the listener would block on a full pipe.
		cmd.Process.Kill()
		cmd.Wait()
		return fmt.Errorf("read speech listener: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("speech listener exited: %w: %s", err, msg)
		}
		return fmt.Errorf("speech listener exited: %w", err)
	}
	return nil
}

func normalizeLine(line string) string {
	return strings.ToLower(strings.TrimSpace(line))
}
