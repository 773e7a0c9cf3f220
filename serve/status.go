// Package serve exposes render progress over HTTP: a JSON status snapshot,
// a websocket push stream, and prometheus metrics.
package serve

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status is one progress snapshot.
type Status struct {
	Phase       string
	FramesDone  int
	FramesTotal int
	SlicesDone  int
	SlicesTotal int
	ElapsedSec  float64
}

// StatusServer tracks pipeline progress and serves it as JSON. It implements
// pipeline.Progress; the callbacks arrive from worker goroutines.
type StatusServer struct {
	Updater *ProgressUpdater

	mu      sync.Mutex
	started time.Time
	status  Status
}

func NewStatusServer() *StatusServer {
	return &StatusServer{
		Updater: NewProgressUpdater(),
		started: time.Now(),
	}
}

// Snapshot returns the current status.
func (s *StatusServer) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.ElapsedSec = time.Since(s.started).Seconds()
	return st
}

// PhaseChanged implements pipeline.Progress.
func (s *StatusServer) PhaseChanged(phase string) {
	s.mu.Lock()
	s.status.Phase = phase
	s.mu.Unlock()
	s.push()
}

// FrameSliced implements pipeline.Progress.
func (s *StatusServer) FrameSliced(done, total int) {
	s.mu.Lock()
	s.status.FramesDone, s.status.FramesTotal = done, total
	s.mu.Unlock()
	s.push()
}

// SliceDone implements pipeline.Progress.
func (s *StatusServer) SliceDone(done, total int) {
	s.mu.Lock()
	s.status.SlicesDone, s.status.SlicesTotal = done, total
	s.mu.Unlock()
	s.push()
}

func (s *StatusServer) push() {
	s.Updater.Push(s.Snapshot())
}

// ServeHTTP implements http.Handler, returning the JSON snapshot.
func (s *StatusServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	js, err := json.Marshal(s.Snapshot())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(js)
}
