package process

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"
)

// Handle is a spawned worker process.
type Handle interface {
	// Pid returns the OS process id.
	Pid() int
	// Done is closed once the process has exited and been reaped.
	Done() <-chan struct{}
	// ExitCode is valid after Done is closed.
	ExitCode() int
	// Terminate asks the process to exit.
	Terminate() error
	// Kill forcibly stops the process.
	Kill() error
}

// Backend resolves and spawns worker executables.
type Backend interface {
	LookPath(file string) (string, error)
	// Spawn starts path with args and returns the handle plus a reader for the
	// process diagnostic output. The reader reaches EOF when the process and
	// all its children have closed stderr.
	Spawn(path string, args []string) (Handle, io.ReadCloser, error)
}

// ExecBackend spawns real processes with os/exec. Each worker gets its own
// process group so signals reach any children it forks.
type ExecBackend struct{}

// LookPath implements Backend.
func (ExecBackend) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// Spawn implements Backend.
func (ExecBackend) Spawn(path string, args []string) (Handle, io.ReadCloser, error) {
	// cmd.Wait closes pipes created by StderrPipe, which would race with the
	// drain goroutine, so stderr goes through a pipe we own.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}

	cmd := exec.Command(path, args...)
	cmd.Stderr = pw
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, nil, err
	}
	pw.Close()

	h := &execHandle{cmd: cmd, done: make(chan struct{})}
	go h.wait()
	return h, pr, nil
}

type execHandle struct {
	cmd      *exec.Cmd
	done     chan struct{}
	exitCode int
}

func (h *execHandle) wait() {
	h.exitCode = exitCodeFromError(h.cmd.Wait())
	close(h.done)
}

func (h *execHandle) Pid() int              { return h.cmd.Process.Pid }
func (h *execHandle) Done() <-chan struct{} { return h.done }

func (h *execHandle) ExitCode() int {
	<-h.done
	return h.exitCode
}

func (h *execHandle) Terminate() error { return h.signalGroup(syscall.SIGTERM) }
func (h *execHandle) Kill() error      { return h.signalGroup(syscall.SIGKILL) }

// signalGroup signals the whole process group, falling back to the leader.
func (h *execHandle) signalGroup(sig syscall.Signal) error {
	pid := h.cmd.Process.Pid
	err := syscall.Kill(-pid, sig)
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ESRCH) {
		if err := h.cmd.Process.Signal(sig); err != nil {
			if errors.Is(err, os.ErrProcessDone) {
				return nil
			}
			return err
		}
		return nil
	}
	return err
}

// exitCodeFromError extracts the exit code from a Wait error. Processes killed
// by a signal report 128+signal, as a shell would.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return exitErr.ExitCode()
	}
	return 1
}
