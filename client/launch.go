package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// LaunchOption configures the server subprocess started by Launch.
type LaunchOption func(*launchConfig)

type launchConfig struct {
	env         []string
	dir         string
	stderr      io.Writer
	exitTimeout time.Duration
	opts        []Option
}

// WithEnv appends environment variables ("KEY=value") to the inherited environment.
func WithEnv(kv ...string) LaunchOption {
	return func(c *launchConfig) { c.env = append(c.env, kv...) }
}

// WithDir sets the working directory of the subprocess.
func WithDir(dir string) LaunchOption {
	return func(c *launchConfig) { c.dir = dir }
}

// WithStderr receives the subprocess's stderr (default os.Stderr).
func WithStderr(w io.Writer) LaunchOption {
	return func(c *launchConfig) { c.stderr = w }
}

// WithExitTimeout bounds how long Close waits for the subprocess to exit
// after its stdin is closed before killing it (default 5s).
func WithExitTimeout(d time.Duration) LaunchOption {
	return func(c *launchConfig) { c.exitTimeout = d }
}

// WithClientOptions passes options through to the Client.
func WithClientOptions(opts ...Option) LaunchOption {
	return func(c *launchConfig) { c.opts = append(c.opts, opts...) }
}

// Launch starts name as a server subprocess and returns a Client connected
// to its stdin/stdout. Closing the client closes the subprocess's stdin and
// waits for it to exit.
func Launch(ctx context.Context, name string, args []string, opts ...LaunchOption) (*Client, error) {
	cfg := launchConfig{stderr: os.Stderr, exitTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}

	//nolint:gosec // G204: launching a caller-chosen server binary is the point
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = cfg.dir
	cmd.Stderr = cfg.stderr
	if len(cfg.env) > 0 {
		cmd.Env = append(os.Environ(), cfg.env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	wait := func() error {
		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()
		select {
		case err := <-done:
			return exitError(err)
		case <-time.After(cfg.exitTimeout):
			_ = cmd.Process.Kill()
			return fmt.Errorf("server did not exit within %s: %w", cfg.exitTimeout, exitError(<-done))
		}
	}

	return New(stdout, stdin, append(cfg.opts, withCloser(wait))...), nil
}

func exitError(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("server exited with code %d: %w", exitErr.ExitCode(), err)
	}
	return err
}
