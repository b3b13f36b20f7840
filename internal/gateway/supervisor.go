package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zapio"
)

// ErrNoCommand is returned when the gateway must be started but no
// command is configured.
var ErrNoCommand = errors.New("gateway command not configured")

// Supervisor keeps the local notification gateway reachable. It only
// ever stops a process it started itself.
type Supervisor struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan struct{}
}

// NewSupervisor creates a supervisor for cfg.
func NewSupervisor(cfg Config, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Supervisor{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.CheckTimeout},
		logger: logger,
	}
}

// Healthy reports whether the gateway answers HTTP at its health URL.
// Any response counts; only a transport failure means it is down.
func (s *Supervisor) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.HealthURL, http.NoBody)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// EnsureRunning starts the gateway when it does not answer and no child
// started earlier is still alive. It reports whether a process was
// started.
func (s *Supervisor) EnsureRunning(ctx context.Context) (bool, error) {
	if s.Healthy(ctx) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.childAlive() {
		s.logger.Debug("gateway not answering yet, child still running", zap.Int("pid", s.cmd.Process.Pid))
		return false, nil
	}
	if err := s.start(); err != nil {
		return false, err
	}
	return true, nil
}

// start launches the configured command. Caller holds s.mu.
func (s *Supervisor) start() error {
	if len(s.cfg.Command) == 0 || s.cfg.Command[0] == "" {
		return ErrNoCommand
	}

	cmd := exec.Command(s.cfg.Command[0], s.cfg.Command[1:]...) //nolint:gosec // G204: operator-configured command
	cmd.Dir = s.cfg.Dir
	if len(s.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), s.cfg.Env...)
	}
	stdout := &zapio.Writer{Log: s.logger.With(zap.String("stream", "stdout")), Level: zapcore.InfoLevel}
	stderr := &zapio.Writer{Log: s.logger.With(zap.String("stream", "stderr")), Level: zapcore.WarnLevel}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start gateway %q: %w", s.cfg.Command[0], err)
	}

	exited := make(chan struct{})
	s.cmd, s.exited = cmd, exited
	s.logger.Info("gateway process started",
		zap.Strings("command", s.cfg.Command),
		zap.String("dir", s.cfg.Dir),
		zap.Int("pid", cmd.Process.Pid),
	)

	go func() {
		err := cmd.Wait()
		stdout.Close()
		stderr.Close()
		if err != nil {
			s.logger.Warn("gateway process exited", zap.Int("pid", cmd.Process.Pid), zap.Error(err))
		} else {
			s.logger.Info("gateway process exited", zap.Int("pid", cmd.Process.Pid))
		}
		close(exited)
	}()
	return nil
}

// childAlive reports whether the last started child is still running.
// Caller holds s.mu.
func (s *Supervisor) childAlive() bool {
	if s.exited == nil {
		return false
	}
	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}

// Running reports whether a child started by this supervisor is alive.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.childAlive()
}

// PID returns the child's process id, or 0 when none is running.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.childAlive() {
		return 0
	}
	return s.cmd.Process.Pid
}

// Stop asks the child to exit and kills it after StopTimeout or when ctx
// ends. A gateway this supervisor did not start is left alone.
func (s *Supervisor) Stop(ctx context.Context) {
	s.mu.Lock()
	cmd, exited := s.cmd, s.exited
	alive := s.childAlive()
	s.mu.Unlock()
	if !alive {
		return
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		// Interrupt is not deliverable on every platform.
		_ = cmd.Process.Kill()
	}

	timer := time.NewTimer(s.cfg.StopTimeout)
	defer timer.Stop()
	select {
	case <-exited:
		return
	case <-timer.C:
	case <-ctx.Done():
	}
	s.logger.Warn("gateway did not exit in time, killing", zap.Int("pid", cmd.Process.Pid))
	_ = cmd.Process.Kill()
	<-exited
}
