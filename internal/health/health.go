// Package health reports the state of a rescor run to liveness and readiness checks served
// next to the metrics endpoint.
package health

import (
	"net/http"
	"sync/atomic"
)

// Phase is the lifecycle stage of a run.
type Phase int32

const (
	PhaseStarting Phase = iota
	PhaseRunning
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	}
	return "starting"
}

// State is safe for concurrent use.
type State struct {
	phase atomic.Int32
}

// Set records the current phase.
func (s *State) Set(p Phase) {
	s.phase.Store(int32(p))
}

// Phase returns the current phase.
func (s *State) Phase() Phase {
	return Phase(s.phase.Load())
}

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Readyz returns 200 with the phase once epochs are flowing, 503 before
// that or after a failure.
func (s *State) Readyz(w http.ResponseWriter, r *http.Request) {
	p := s.Phase()
	status := http.StatusOK
	if p == PhaseStarting || p == PhaseFailed {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	w.Write([]byte(p.String() + "\n"))
}
