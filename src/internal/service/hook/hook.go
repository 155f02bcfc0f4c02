// Package hook runs the operator's on-change command inside a pseudo-terminal
// so build tools keep their colored output.
package hook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/sirupsen/logrus"
)

// EnvChanged lists the changed paths, space separated, for the command.
const EnvChanged = "NUTRISHA_CHANGED"

var ErrBusy = errors.New("hook: command already running")

type Runner struct {
	command string
	dir     string
	out     io.Writer
	log     *logrus.Logger
	running atomic.Bool
}

// New returns a runner for command executed with sh -c from dir.
func New(command, dir string, out io.Writer, log *logrus.Logger) *Runner {
	return &Runner{
		command: command,
		dir:     dir,
		out:     out,
		log:     log,
	}
}

// Run executes the command once. A call made while a previous run is still
// active returns ErrBusy without starting anything.
func (r *Runner) Run(ctx context.Context, changed []string) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer r.running.Store(false)

	cmd := exec.CommandContext(ctx, "sh", "-c", r.command)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(), "TERM=xterm", EnvChanged+"="+strings.Join(changed, " "))

	r.log.Infof("Running on-change command: %s", r.command)
	start := time.Now()

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("start %q: %w", r.command, err)
	}
	defer func() { _ = ptmx.Close() }()

	// Reading the master side fails with EIO once the child exits.
	if _, err := io.Copy(r.out, ptmx); err != nil && !errors.Is(err, syscall.EIO) {
		r.log.Warnf("Reading on-change output: %v", err)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("on-change command %q: %w", r.command, err)
	}
	r.log.Infof("On-change command finished in %s", time.Since(start).Round(time.Millisecond))
	return nil
}
