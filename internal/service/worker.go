package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dfs-summarizer/summarizer/internal/model"
)

// Worker spawns worker processes. Every call to Spawn starts an independent
// process.
type Worker interface {
	Spawn(ctx context.Context, env Env) (Handle, error)
}

// Handle is exclusively owned by a single run.
type Handle interface {
	// Output returns the merged stdout and stderr of the process. It ends
	// once every writer closed it.
	Output() io.Reader
	// Wait blocks until the process terminates and returns its exit code.
	// It can be called any number of times, always returning the same
	// result. The error wraps model.ErrNoExitCode when the process has no
	// exit code.
	Wait() (int, error)
}

// Command describes how to run the worker.
type Command struct {
	Path    string
	Args    []string
	Dir     string
	Timeout time.Duration
	Detach  bool // do not kill the worker when ctx is cancelled
}

func CommandFromConfig(cfg model.Worker) Command {
	return Command{
		Path:    cfg.Path,
		Args:    append([]string(nil), cfg.Args...),
		Dir:     cfg.Dir,
		Timeout: cfg.TimeoutDuration(),
		Detach:  cfg.Detach,
	}
}

// WithScriptDir resolves a relative script given as the first argument
// against base, when no working directory is set and the script exists in
// base. Otherwise the script is left to the working directory of the service.
func (c Command) WithScriptDir(base string) Command {
	if c.Dir != "" || base == "" || len(c.Args) == 0 {
		return c
	}
	script := c.Args[0]
	if script == "" || filepath.IsAbs(script) || strings.HasPrefix(script, "-") {
		return c
	}
	path := filepath.Join(base, script)
	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		return c
	}
	args := append([]string{path}, c.Args[1:]...)
	c.Args = args
	return c
}

// ExecWorker is a thin wrapper around os/exec.
type ExecWorker struct {
	cmd Command
}

func NewExecWorker(cmd Command) ExecWorker {
	return ExecWorker{cmd: cmd}
}

// Spawn starts the worker with env as its whole environment and stderr
// redirected to stdout. It does not wait for the process, use Handle.Wait.
func (w ExecWorker) Spawn(ctx context.Context, env Env) (Handle, error) {
	if w.cmd.Detach {
		ctx = context.WithoutCancel(ctx)
	}

	cancel := context.CancelFunc(func() {})
	if w.cmd.Timeout == 0 {
		slog.DebugContext(ctx, "command has no timeout", "path", w.cmd.Path)
	} else {
		ctx, cancel = context.WithTimeout(ctx, w.cmd.Timeout)
	}

	// both streams share a single pipe, so the kernel keeps the order of writes
	pr, pw, err := os.Pipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: creating output pipe: %w", model.ErrLaunch, err)
	}

	cmd := exec.CommandContext(ctx, w.cmd.Path, w.cmd.Args...)
	cmd.Dir = w.cmd.Dir
	cmd.Env = env.Environ()
	cmd.Stdout = pw
	cmd.Stderr = pw
	killGroup(cmd)

	if err := cmd.Start(); err != nil {
		cancel()
		_ = pr.Close()
		_ = pw.Close()
		return nil, fmt.Errorf("%w: %w", model.ErrLaunch, err)
	}
	// the child has its own copy of the write end
	_ = pw.Close()
	slog.DebugContext(ctx, "worker spawned", "path", w.cmd.Path, "pid", cmd.Process.Pid)

	p := &process{
		cmd:    cmd,
		out:    pr,
		cancel: cancel,
	}
	// a killed worker may leave children holding the pipe open, closing
	// the read end unblocks the relay
	p.stop = context.AfterFunc(ctx, func() {
		_ = pr.Close()
	})
	return p, nil
}

type process struct {
	cmd    *exec.Cmd
	out    *os.File
	cancel context.CancelFunc
	stop   func() bool

	once sync.Once
	code int
	err  error
}

func (p *process) Output() io.Reader {
	return closedAsEOF{f: p.out}
}

// closedAsEOF ends the output cleanly when the read end was closed after
// the worker has been killed.
type closedAsEOF struct {
	f *os.File
}

func (r closedAsEOF) Read(b []byte) (int, error) {
	n, err := r.f.Read(b)
	if errors.Is(err, os.ErrClosed) {
		err = io.EOF
	}
	return n, err
}

func (p *process) Wait() (int, error) {
	p.once.Do(p.wait)
	return p.code, p.err
}

func (p *process) wait() {
	err := p.cmd.Wait()
	p.stop()
	p.cancel()
	_ = p.out.Close()

	state := p.cmd.ProcessState
	if state == nil {
		p.code, p.err = -1, fmt.Errorf("%w: %w", model.ErrNoExitCode, err)
		return
	}

	p.code = state.ExitCode()
	if p.code < 0 {
		p.err = fmt.Errorf("%w: %s", model.ErrNoExitCode, state.String())
		return
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		slog.Warn("waiting on worker", "pid", state.Pid(), "error", err)
	}
}
