package certrenew

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
)

var (
	ErrNotPrivileged  = errors.New("certificate renewal requires root or passwordless sudo")
	ErrEdgeNotRunning = errors.New("edge process is not running")
	ErrRenewFailed    = errors.New("certbot renew failed")
)

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Process checks liveness of and signals the edge process.
type Process interface {
	Alive(pid int) error
	Signal(pid int, sig syscall.Signal) error
}

type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() // #nosec G204
}

type OSProcess struct{}

// Alive reports a process owned by another user as running: EPERM from
// signal 0 means the pid exists.
func (OSProcess) Alive(pid int) error {
	err := syscall.Kill(pid, syscall.Signal(0))
	if errors.Is(err, syscall.EPERM) {
		return nil
	}
	return err
}

func (OSProcess) Signal(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}

type Options struct {
	Webroot string
	PIDFile string
	Certbot string
	Runner  Runner
	Process Process
	// EUID defaults to os.Geteuid.
	EUID func() int
}

type Renewer struct {
	logger  *logrus.Logger
	webroot string
	pidFile string
	certbot string
	runner  Runner
	process Process
	euid    func() int
}

func NewRenewer(logger *logrus.Logger, opts Options) *Renewer {
	r := &Renewer{
		logger:  logger,
		webroot: opts.Webroot,
		pidFile: opts.PIDFile,
		certbot: opts.Certbot,
		runner:  opts.Runner,
		process: opts.Process,
		euid:    opts.EUID,
	}
	if r.certbot == "" {
		r.certbot = "certbot"
	}
	if r.runner == nil {
		r.runner = ExecRunner{}
	}
	if r.process == nil {
		r.process = OSProcess{}
	}
	if r.euid == nil {
		r.euid = os.Geteuid
	}
	return r
}

// Renew runs certbot against the ACME webroot and, only when it succeeds,
// signals the edge to reload its certificate.
func (r *Renewer) Renew(ctx context.Context) error {
	useSudo, err := r.checkPrivilege(ctx)
	if err != nil {
		return err
	}

	pid, err := r.edgePID()
	if err != nil {
		return err
	}
	r.logger.WithField("pid", pid).Info("edge process is running")

	name, args := r.certbot, []string{"renew", "--webroot", "-w", r.webroot, "--quiet", "--non-interactive"}
	if useSudo {
		name, args = "sudo", append([]string{"-n", r.certbot}, args...)
	}

	r.logger.WithField("webroot", r.webroot).Info("running certbot renew")
	out, err := r.runner.Run(ctx, name, args...)
	if err != nil {
		r.logger.WithError(err).WithField("output", strings.TrimSpace(string(out))).Error("certbot renew failed")
		return fmt.Errorf("%w: %w", ErrRenewFailed, err)
	}

	if err := r.reload(ctx, pid, useSudo); err != nil {
		return fmt.Errorf("failed to signal edge process %d: %w", pid, err)
	}
	r.logger.WithField("pid", pid).Info("certificates renewed, edge reload signalled")
	return nil
}

// reload sends SIGHUP with the same privilege certbot ran with.
func (r *Renewer) reload(ctx context.Context, pid int, useSudo bool) error {
	if !useSudo {
		return r.process.Signal(pid, syscall.SIGHUP)
	}
	out, err := r.runner.Run(ctx, "sudo", "-n", "kill", "-HUP", strconv.Itoa(pid))
	if err != nil {
		r.logger.WithError(err).WithField("output", strings.TrimSpace(string(out))).Error("sudo kill failed")
	}
	return err
}

func (r *Renewer) checkPrivilege(ctx context.Context) (bool, error) {
	if r.euid() == 0 {
		return false, nil
	}
	if _, err := r.runner.Run(ctx, "sudo", "-n", "true"); err != nil {
		r.logger.WithError(err).Error("no elevated privilege available")
		return false, ErrNotPrivileged
	}
	return true, nil
}

func (r *Renewer) edgePID() (int, error) {
	data, err := os.ReadFile(r.pidFile)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrEdgeNotRunning, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("%w: invalid pid file %s", ErrEdgeNotRunning, r.pidFile)
	}
	if err := r.process.Alive(pid); err != nil {
		return 0, fmt.Errorf("%w: pid %d: %w", ErrEdgeNotRunning, pid, err)
	}
	return pid, nil
}
