package process

import (
	"errors"
	"time"

	"github.com/Paintersrp/procctl/internal/metrics"
	"github.com/Paintersrp/procctl/internal/rterr"
)

var errNotTerminated = errors.New("process has not terminated")

// IsAlive reports whether the child is still running. It never blocks in
// the OS. Once termination has been seen the answer is cached.
func (h *Handle) IsAlive() (bool, error) {
	if h == nil {
		return false, rterr.File("is alive", errNilHandle)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.terminated {
		return false, nil
	}
	done, code, err := h.proc.poll()
	if err != nil {
		log().Warn().Err(err).Int("pid", h.proc.id()).Msg("liveness query failed")
		return true, rterr.File("is alive", err)
	}
	if done {
		h.markTerminated(code)
	}
	return !done, nil
}

// WaitFor blocks until the child terminates. Calling it on a terminated
// handle returns immediately.
func (h *Handle) WaitFor() error {
	if h == nil {
		return rterr.File("wait", errNilHandle)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.terminated {
		return nil
	}
	start := time.Now()
	code, err := h.proc.wait()
	if err != nil {
		log().Warn().Err(err).Int("pid", h.proc.id()).Msg("wait failed")
		return rterr.File("wait", err)
	}
	metrics.ObserveWait(time.Since(start))
	h.markTerminated(code)
	return nil
}

// markTerminated records the exit value. Callers hold h.mu.
func (h *Handle) markTerminated(code int) {
	h.terminated = true
	h.exitValue = code
	metrics.ObserveExit(code)
	log().Debug().Int("pid", h.proc.id()).Int("exit_value", code).Msg("process terminated")
}

// ExitValue returns the cached exit value. It fails if termination has not
// been observed by IsAlive or WaitFor.
func (h *Handle) ExitValue() (int, error) {
	if h == nil {
		return 0, rterr.File("exit value", errNilHandle)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.terminated {
		return 0, rterr.File("exit value", errNotTerminated)
	}
	return h.exitValue, nil
}

// Kill forcibly terminates the child. It does not mark the handle as
// terminated; use IsAlive or WaitFor to observe the exit. Kill does not
// wait on h's state lock, so it can interrupt a concurrent WaitFor.
func (h *Handle) Kill() error {
	if h == nil {
		return rterr.File("kill", errNilHandle)
	}
	err := h.proc.kill()
	metrics.ObserveKill(err)
	if err != nil {
		log().Warn().Err(err).Int("pid", h.proc.id()).Msg("kill failed")
		return rterr.File("kill", err)
	}
	log().Debug().Int("pid", h.proc.id()).Msg("process killed")
	return nil
}
