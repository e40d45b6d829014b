package uci

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Process is a running engine executable wired up as a Conn.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout LineReader

	wmu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// Spawn starts the engine at path. The process runs until Close.
func Spawn(path string, args ...string) (*Process, error) {
	if path == "" {
		return nil, errors.New("engine path required")
	}

	cmd := exec.Command(path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("start engine %s: %w", path, err)
	}

	return &Process{
		cmd:    cmd,
		stdin:  stdin,
		stdout: NewLineReader(stdoutPipe),
	}, nil
}

func (p *Process) Pid() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *Process) ReadLine() (string, error) {
	return p.stdout.ReadLine()
}

func (p *Process) WriteLine(line string) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	_, err := io.WriteString(p.stdin, line+"\n")
	return err
}

// Close terminates the engine without a quit handshake and reaps it.
func (p *Process) Close() error {
	p.closeOnce.Do(func() {
		if p.stdin != nil {
			p.stdin.Close()
		}
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		err := p.cmd.Wait()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// killed on purpose
			err = nil
		}
		p.closeErr = err
	})
	return p.closeErr
}
