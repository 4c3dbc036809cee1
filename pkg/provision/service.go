package provision

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/Dima2021/anaconda-project/pkg/telemetry"
)

// RedisManager is a ServiceManager that runs a project-scoped
// redis-server instance.
type RedisManager struct {
	// Command is the redis-server executable. Defaults to
	// "redis-server".
	Command string

	logger *telemetry.Logger
}

// NewRedisManager creates a service manager for redis.
func NewRedisManager(logger *telemetry.Logger) *RedisManager {
	return &RedisManager{
		Command: "redis-server",
		logger:  logger.NewComponentLogger("redis"),
	}
}

// EnsureRunning implements ServiceManager. It starts a redis-server
// on a free port, with its working files under the project's
// .anaconda directory.
func (m *RedisManager) EnsureRunning(ctx context.Context, spec ServiceSpec) (*ServiceInstance, error) {
	if spec.Type != "redis" {
		return nil, &Error{Op: "start service", Detail: "unsupported service type " + spec.Type}
	}

	port, err := freePort()
	if err != nil {
		return nil, &Error{Op: "start service", Detail: "cannot allocate a port for redis", Err: err}
	}

	workDir := filepath.Join(spec.Directory, ".anaconda", "redis", spec.Variable)
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, &Error{Op: "start service", Detail: "cannot create " + workDir, Err: err}
	}

	command := m.Command
	if command == "" {
		command = "redis-server"
	}
	cmd := exec.CommandContext(ctx, command,
		"--port", fmt.Sprintf("%d", port),
		"--dir", workDir,
		"--logfile", filepath.Join(workDir, "redis.log"),
	)
	if err := cmd.Start(); err != nil {
		return nil, &Error{Op: "start service", Detail: "failed to start " + command, Err: err}
	}
	// Detach; the server outlives this process.
	go func() { _ = cmd.Wait() }()

	address := fmt.Sprintf("redis://localhost:%d", port)
	if err := waitForPort(port, 10*time.Second); err != nil {
		return nil, &Error{Op: "start service", Detail: "redis did not come up on " + address, Err: err}
	}

	m.logger.Infof("started redis at %s (pid %d)", address, cmd.Process.Pid)
	return &ServiceInstance{
		Type:    "redis",
		Address: address,
		PID:     cmd.Process.Pid,
	}, nil
}

// Stop implements ServiceManager.
func (m *RedisManager) Stop(_ context.Context, inst *ServiceInstance) error {
	if inst == nil || inst.PID == 0 {
		return nil
	}
	proc, err := os.FindProcess(inst.PID)
	if err != nil {
		return &Error{Op: "stop service", Detail: fmt.Sprintf("no process %d", inst.PID), Err: err}
	}
	if err := proc.Kill(); err != nil {
		return &Error{Op: "stop service", Detail: fmt.Sprintf("failed to kill pid %d", inst.PID), Err: err}
	}
	m.logger.Infof("stopped %s (pid %d)", inst.Type, inst.PID)
	return nil
}

// freePort asks the kernel for an unused TCP port.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// waitForPort polls until something accepts on the port or the
// deadline passes.
func waitForPort(port int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err == nil {
			conn.Close()
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("nothing listening on %s after %s", addr, timeout)
}
