// Package e2etests runs the settings binary end to end. Set SETTINGS_CMD
// to the path of a built binary to enable it.
package e2etests

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Runner executes settings commands against a sandbox directory.
type Runner struct {
	Cmd string // path to settings binary
}

// SetupSandbox creates a fresh sandbox in dir and runs `settings init`
// there with the given extra arguments. Returns the config file path.
func (r *Runner) SetupSandbox(dir string, initArgs ...string) (string, error) {
	configFile := filepath.Join(dir, ".settings", "config.yaml")
	args := append([]string{"init"}, initArgs...)
	res := r.Run(configFile, args...)
	if res.ExitCode != 0 {
		return "", fmt.Errorf("init failed (exit %d): %s", res.ExitCode, res.Stderr)
	}
	return configFile, nil
}

// RunResult holds the output of a command execution.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Run executes a settings command with the given arguments.
// It sets SETTINGS_CONFIG so the command finds the sandbox config.
func (r *Runner) Run(configFile string, args ...string) RunResult {
	cmd := exec.Command(r.Cmd, args...)
	cmd.Env = append(sandboxEnv(), "SETTINGS_CONFIG="+configFile)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	return RunResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}
}

// RunJSON executes a settings command with --json appended.
func (r *Runner) RunJSON(configFile string, args ...string) RunResult {
	fullArgs := append(args, "--json")
	return r.Run(configFile, fullArgs...)
}

// Server is a running `settings serve` process.
type Server struct {
	cmd  *exec.Cmd
	Addr string

	stopOnce sync.Once
	stopErr  error
}

// StartServer runs `settings serve` on a free port and waits until it
// reports its address.
func (r *Runner) StartServer(configFile string, args ...string) (*Server, error) {
	cmd := exec.Command(r.Cmd, append([]string{"serve", "--listen", "127.0.0.1:0"}, args...)...)
	cmd.Env = append(sandboxEnv(), "SETTINGS_CONFIG="+configFile)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	addrCh := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := scanner.Text()
			if i := strings.LastIndex(line, " on "); strings.HasPrefix(line, "Serving ") && i >= 0 {
				addrCh <- line[i+len(" on "):]
			}
		}
	}()

	select {
	case addr := <-addrCh:
		return &Server{cmd: cmd, Addr: addr}, nil
	case <-time.After(10 * time.Second):
		cmd.Process.Kill()
		cmd.Wait()
		return nil, fmt.Errorf("server did not report its address")
	}
}

// Stop interrupts the server and waits for it to exit. Later calls return
// the first result.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		if err := s.cmd.Process.Signal(os.Interrupt); err != nil {
			s.stopErr = err
			return
		}
		s.stopErr = s.cmd.Wait()
	})
	return s.stopErr
}

// sandboxEnv is the current environment without SETTINGS_* variables, so
// the developer's own configuration never leaks into a test.
func sandboxEnv() []string {
	var env []string
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, "SETTINGS_") {
			env = append(env, kv)
		}
	}
	return env
}
