package controller

import (
	"sync"

	"github.com/feedspot/feedmerge/internal/mergesdk"
	"github.com/feedspot/feedmerge/internal/progress"
)

// View is the surface a submission renders to. Calls for one submission
// arrive in order and never concurrently.
type View interface {
	// Begin reveals the progress display at 0% with the "Starting..." label.
	Begin()
	// Tick shows a simulated value. percent never exceeds progress.Ceiling.
	Tick(percent float64, phase progress.Phase)
	// Complete forces the bar to 100% and shows status.
	Complete(status string)
	// Fail leaves the bar where it is and shows status.
	Fail(status string)
	// Summary shows the result panel. Not called when the server sent no metadata.
	Summary(meta *mergesdk.Metadata)
	// Downloaded reports where the merged file was written.
	Downloaded(path string, size int64)
}

// lockedView serializes calls from the ticker goroutine and the submitting goroutine.
type lockedView struct {
	mu   sync.Mutex
	view View
}

func (v *lockedView) Begin() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.view.Begin()
}

func (v *lockedView) Tick(percent float64, phase progress.Phase) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.view.Tick(percent, phase)
}

func (v *lockedView) Complete(status string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.view.Complete(status)
}

func (v *lockedView) Fail(status string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.view.Fail(status)
}

func (v *lockedView) Summary(meta *mergesdk.Metadata) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.view.Summary(meta)
}

func (v *lockedView) Downloaded(path string, size int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.view.Downloaded(path, size)
}

// Discard is a View that renders nothing.
var Discard View = discardView{}

type discardView struct{}

func (discardView) Begin()                       {}
func (discardView) Tick(float64, progress.Phase) {}
func (discardView) Complete(string)              {}
func (discardView) Fail(string)                  {}
func (discardView) Summary(*mergesdk.Metadata)   {}
func (discardView) Downloaded(string, int64)     {}
