package process

import (
	"time"

	gopsprocess "github.com/shirou/gopsutil/v3/process"
)

// Status is a point-in-time view of a runner.
type Status struct {
	Running   bool      `json:"running"`
	PID       int       `json:"pid,omitempty"`
	ExitCode  *int      `json:"exit_code,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`

	// Resource usage of the worker, sampled while it is running. Zero when
	// unavailable.
	CPUPercent float64 `json:"cpu_percent,omitempty"`
	RSSBytes   uint64  `json:"rss_bytes,omitempty"`
}

// Status returns the current state of the worker. It does not wait for an
// in-flight Start or Stop.
func (r *Runner) Status() Status {
	r.mu.Lock()
	st := Status{LastError: r.lastError}
	h := r.handle
	if h != nil {
		st.PID = h.Pid()
		st.StartedAt = r.startedAt
		if exited(h) {
			code := h.ExitCode()
			st.ExitCode = &code
		} else {
			st.Running = true
		}
	}
	r.mu.Unlock()

	if st.Running {
		st.CPUPercent, st.RSSBytes = sampleUsage(st.PID)
	}
	return st
}

// sampleUsage reads CPU and memory usage for pid. Errors yield zeros since
// the process may exit at any moment.
func sampleUsage(pid int) (cpu float64, rss uint64) {
	p, err := gopsprocess.NewProcess(int32(pid))
	if err != nil {
		return 0, 0
	}
	if v, err := p.CPUPercent(); err == nil {
		cpu = v
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		rss = mem.RSS
	}
	return cpu, rss
}
