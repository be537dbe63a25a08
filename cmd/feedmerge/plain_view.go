package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/feedspot/feedmerge/internal/controller"
	"github.com/feedspot/feedmerge/internal/mergesdk"
	"github.com/feedspot/feedmerge/internal/progress"
)

// plainView prints one line per phase change instead of redrawing a bar.
// It is used when stdout is not a terminal or --plain is set.
type plainView struct {
	w       io.Writer
	phase   progress.Phase
	percent float64
}

var _ controller.View = (*plainView)(nil)

func newPlainView(w io.Writer) *plainView {
	return &plainView{w: w}
}

func (v *plainView) Begin() {
	v.phase = progress.PhaseStarting
	v.percent = 0
	fmt.Fprintf(v.w, "[%3.0f%%] %s\n", v.percent, v.phase)
}

func (v *plainView) Tick(percent float64, phase progress.Phase) {
	v.percent = percent
	if phase == v.phase {
		return
	}
	v.phase = phase

	label := phase.String()
	if phase == progress.PhaseFinalizing {
		// the interactive view animates these dots
		label += "..."
	}
	fmt.Fprintf(v.w, "[%3.0f%%] %s\n", percent, label)
}

func (v *plainView) Complete(status string) {
	v.percent = progress.Complete
	fmt.Fprintf(v.w, "[%3.0f%%] %s\n", v.percent, green.Render(status))
}

func (v *plainView) Fail(status string) {
	fmt.Fprintf(v.w, "[%3.0f%%] %s\n", v.percent, red.Render(status))
}

func (v *plainView) Summary(meta *mergesdk.Metadata) {
	fmt.Fprintf(v.w, "\n%s\n", strings.TrimSuffix(controller.RenderSummary(meta), "\n"))
}

func (v *plainView) Downloaded(path string, size int64) {
	fmt.Fprintf(v.w, "Saved %s (%s)\n", path, humanize.Bytes(uint64(size)))
}
