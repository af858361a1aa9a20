//go:build linux

package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"streamctl/internal/core/domain"

	"github.com/prometheus/procfs"
	"go.uber.org/zap"
)

// commLen is the longest name the kernel keeps in /proc/<pid>/comm.
const commLen = 15

// Controller starts detached processes and finds running ones by executable
// name in procfs. A process started by a previous controller instance is
// found the same way as one started by this one.
type Controller struct {
	procRoot  string
	termGrace time.Duration
	kill      func(pid int, sig syscall.Signal) error
	logger    *zap.SugaredLogger
}

type Option func(*Controller)

// WithTermGrace sets how long a terminated process has before SIGKILL.
func WithTermGrace(d time.Duration) Option {
	return func(c *Controller) { c.termGrace = d }
}

func NewController(procRoot string, logger *zap.SugaredLogger, opts ...Option) *Controller {
	if procRoot == "" {
		procRoot = "/proc"
	}
	c := &Controller{
		procRoot:  procRoot,
		termGrace: 3 * time.Second,
		kill:      syscall.Kill,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Spawn starts argv in its own session with stdio on the null device. The
// child is reaped in the background and outlives the controller.
func (c *Controller) Spawn(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return errors.New("empty argv")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", filepath.Base(argv[0]), err)
	}

	pid := cmd.Process.Pid
	c.logger.Infow("process started", "name", filepath.Base(argv[0]), "pid", pid)
	go func() {
		err := cmd.Wait()
		c.logger.Infow("process exited", "name", filepath.Base(argv[0]), "pid", pid, "error", err)
	}()
	return nil
}

// TerminateByName sends SIGTERM to every process called name and escalates
// to SIGKILL for those still running after the grace period.
func (c *Controller) TerminateByName(name string) error {
	pids, err := c.findByName(name)
	if err != nil {
		return err
	}
	if len(pids) == 0 {
		return domain.ErrProcessNotFound
	}

	var errs []error
	var signalled []int
	for _, pid := range pids {
		if err := c.kill(pid, syscall.SIGTERM); err != nil {
			if !errors.Is(err, syscall.ESRCH) {
				errs = append(errs, fmt.Errorf("SIGTERM %d: %w", pid, err))
			}
			continue
		}
		signalled = append(signalled, pid)
	}
	c.logger.Infow("SIGTERM sent", "name", name, "pids", signalled)

	if len(signalled) > 0 {
		go c.escalate(name, signalled)
	}
	return errors.Join(errs...)
}

func (c *Controller) escalate(name string, pids []int) {
	deadline := time.Now().Add(c.termGrace)
	for time.Now().Before(deadline) {
		if !c.anyAlive(pids) {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	for _, pid := range pids {
		if !c.pidAlive(pid) {
			continue
		}
		c.logger.Warnw("grace timeout expired; sending SIGKILL", "name", name, "pid", pid)
		if err := c.kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			c.logger.Errorw("SIGKILL failed", "name", name, "pid", pid, "error", err)
		}
	}
}

// SignalByName delivers sig to every process called name.
func (c *Controller) SignalByName(name string, sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return fmt.Errorf("unsupported signal %v", sig)
	}
	pids, err := c.findByName(name)
	if err != nil {
		return err
	}
	if len(pids) == 0 {
		return domain.ErrProcessNotFound
	}

	var errs []error
	for _, pid := range pids {
		if err := c.kill(pid, s); err != nil && !errors.Is(err, syscall.ESRCH) {
			errs = append(errs, fmt.Errorf("signal %d: %w", pid, err))
		}
	}
	return errors.Join(errs...)
}

// IsAlive reports whether any non-zombie process is called name.
func (c *Controller) IsAlive(name string) (bool, error) {
	pids, err := c.findByName(name)
	if err != nil {
		return false, err
	}
	return len(pids) > 0, nil
}

func (c *Controller) findByName(name string) ([]int, error) {
	if len(name) > commLen {
		name = name[:commLen]
	}
	fs, err := procfs.NewFS(c.procRoot)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", c.procRoot, err)
	}
	procs, err := fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.procRoot, err)
	}

	var pids []int
	for _, p := range procs {
		comm, err := p.Comm()
		if err != nil {
			// Exited while scanning.
			continue
		}
		if comm == name && running(p) {
			pids = append(pids, p.PID)
		}
	}
	return pids, nil
}

func (c *Controller) anyAlive(pids []int) bool {
	for _, pid := range pids {
		if c.pidAlive(pid) {
			return true
		}
	}
	return false
}

func (c *Controller) pidAlive(pid int) bool {
	fs, err := procfs.NewFS(c.procRoot)
	if err != nil {
		return false
	}
	p, err := fs.Proc(pid)
	if err != nil {
		return false
	}
	return running(p)
}

// running reports whether p has a stat entry that is neither a zombie nor
// dead.
func running(p procfs.Proc) bool {
	stat, err := p.Stat()
	if err != nil {
		return false
	}
	switch stat.State {
	case "Z", "X", "x":
		return false
	}
	return true
}
