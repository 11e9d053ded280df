// Package processtest provides an in-memory process.Backend for tests.
package processtest

import (
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/smazurov/noisestream/internal/process"
)

// ErrNotFound is returned by LookPath when the backend is configured to hide
// the binary.
var ErrNotFound = errors.New("executable file not found in $PATH")

// ErrSpawn is the default spawn failure.
var ErrSpawn = errors.New("spawn failed")

// Backend is a fake process.Backend. Spawned handles stay live until they are
// terminated, killed or told to Exit.
type Backend struct {
	// NotFound makes LookPath fail.
	NotFound bool

	// IgnoreTerm makes spawned handles survive Terminate.
	IgnoreTerm bool

	// Unkillable makes spawned handles survive Kill as well.
	Unkillable bool

	mu      sync.Mutex
	failing map[string]error
	handles []*Handle
	nextPID int
}

// New returns an empty fake backend.
func New() *Backend {
	return &Backend{failing: make(map[string]error), nextPID: 40000}
}

// FailColor makes every spawn for the given noise color fail with ErrSpawn.
func (b *Backend) FailColor(color string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failing[strings.ToLower(color)] = ErrSpawn
}

// Heal removes a failure registered with FailColor.
func (b *Backend) Heal(color string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failing, strings.ToLower(color))
}

// LookPath implements process.Backend.
func (b *Backend) LookPath(file string) (string, error) {
	if b.NotFound {
		return "", ErrNotFound
	}
	return "/usr/bin/" + file, nil
}

// Spawn implements process.Backend.
func (b *Backend) Spawn(path string, args []string) (process.Handle, io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	color := colorOf(args)
	if err, ok := b.failing[color]; ok {
		return nil, nil, err
	}

	pr, pw := io.Pipe()
	b.nextPID++
	h := &Handle{
		pid:        b.nextPID,
		color:      color,
		args:       append([]string(nil), args...),
		done:       make(chan struct{}),
		stderr:     pw,
		ignoreTerm: b.IgnoreTerm,
		unkillable: b.Unkillable,
	}
	b.handles = append(b.handles, h)
	return h, pr, nil
}

// Spawns returns the number of successful spawns.
func (b *Backend) Spawns() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handles)
}

// Handles returns every handle spawned so far, oldest first.
func (b *Backend) Handles() []*Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Handle(nil), b.handles...)
}

// Live returns the live handles for color.
func (b *Backend) Live(color string) []*Handle {
	var live []*Handle
	for _, h := range b.Handles() {
		if h.color == strings.ToLower(color) && h.Alive() {
			live = append(live, h)
		}
	}
	return live
}

// Last returns the most recent handle for color, or nil.
func (b *Backend) Last(color string) *Handle {
	hs := b.Handles()
	for i := len(hs) - 1; i >= 0; i-- {
		if hs[i].color == strings.ToLower(color) {
			return hs[i]
		}
	}
	return nil
}

// Handle is a fake process.
type Handle struct {
	pid        int
	color      string
	args       []string
	done       chan struct{}
	once       sync.Once
	code       int
	stderr     *io.PipeWriter
	ignoreTerm bool
	unkillable bool

	mu    sync.Mutex
	terms int
	kills int
}

// Pid implements process.Handle.
func (h *Handle) Pid() int { return h.pid }

// Done implements process.Handle.
func (h *Handle) Done() <-chan struct{} { return h.done }

// ExitCode implements process.Handle.
func (h *Handle) ExitCode() int {
	<-h.done
	return h.code
}

// Terminate implements process.Handle.
func (h *Handle) Terminate() error {
	h.mu.Lock()
	h.terms++
	h.mu.Unlock()
	if !h.ignoreTerm {
		h.Exit(143)
	}
	return nil
}

// Kill implements process.Handle.
func (h *Handle) Kill() error {
	h.mu.Lock()
	h.kills++
	h.mu.Unlock()
	if !h.unkillable {
		h.Exit(137)
	}
	return nil
}

// Exit simulates the process exiting with code.
func (h *Handle) Exit(code int) {
	h.once.Do(func() {
		h.code = code
		h.stderr.Close()
		close(h.done)
	})
}

// WriteStderr emits a diagnostic line. It blocks until the line is read.
func (h *Handle) WriteStderr(line string) error {
	_, err := io.WriteString(h.stderr, line+"\n")
	return err
}

// Alive reports whether the handle has not exited.
func (h *Handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Args returns the arguments the handle was spawned with.
func (h *Handle) Args() []string { return h.args }

// Signals returns how many times Terminate and Kill were called.
func (h *Handle) Signals() (terms, kills int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.terms, h.kills
}

// colorOf extracts the noise color from an anoisesrc input argument.
func colorOf(args []string) string {
	for _, a := range args {
		rest, ok := strings.CutPrefix(a, "anoisesrc=color=")
		if !ok {
			continue
		}
		color, _, _ := strings.Cut(rest, ":")
		return strings.ToLower(color)
	}
	return ""
}
