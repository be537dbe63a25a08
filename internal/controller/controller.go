// Package controller runs one upload-and-merge interaction: it posts the
// submitted files to the merge endpoint, animates a simulated progress bar
// while the request is outstanding, then writes the merged file and shows the
// metadata summary.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/feedspot/feedmerge/internal/mergesdk"
	"github.com/feedspot/feedmerge/internal/progress"
	"github.com/feedspot/feedmerge/internal/utils"
	"github.com/gofrs/flock"
)

const lockFileName = ".feedmerge.lock"

var (
	ErrSubmissionInFlight = errors.New("a merge is already in progress")
	ErrOutputLocked       = errors.New("output directory locked by another feedmerge process")
)

// Merger is the network side of a submission. *mergesdk.Client implements it.
type Merger interface {
	Merge(ctx context.Context, params *mergesdk.MergeParams) (*mergesdk.MergeResult, error)
}

// Submission is one press of the "merge" button.
type Submission struct {
	Files        []string
	Fields       map[string]string
	DownloadType mergesdk.DownloadType
}

// Outcome describes a successful submission.
type Outcome struct {
	RequestID string
	Path      string
	Size      int64
	Metadata  *mergesdk.Metadata
	Elapsed   time.Duration
}

// SubmitError is a failed submission. Status is exactly what the view showed.
type SubmitError struct {
	Status string
	Err    error
}

func (e *SubmitError) Error() string { return e.Err.Error() }

func (e *SubmitError) Unwrap() error { return e.Err }

type Option func(*Controller)

// WithOutputDir sets where downloads are written. Defaults to the working directory.
func WithOutputDir(dir string) Option {
	return func(c *Controller) {
		c.outDir = dir
	}
}

// WithProgressOptions configures the simulator created for every submission.
func WithProgressOptions(opts ...progress.Option) Option {
	return func(c *Controller) {
		c.progressOpts = append(c.progressOpts, opts...)
	}
}

type Controller struct {
	merger       Merger
	view         *lockedView
	outDir       string
	progressOpts []progress.Option

	busy         atomic.Bool
	newSimulator func(opts ...progress.Option) *progress.Simulator
}

func New(merger Merger, view View, opts ...Option) *Controller {
	if view == nil {
		view = Discard
	}

	c := &Controller{
		merger:       merger,
		view:         &lockedView{view: view},
		outDir:       ".",
		newSimulator: progress.New,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HandleSubmit runs one submission to completion. There is no retry; a failed
// submission has already been shown on the view when the error is returned.
//
// A second call while one is outstanding returns ErrSubmissionInFlight without
// touching the view. Cancelling ctx aborts the request.
func (c *Controller) HandleSubmit(ctx context.Context, sub *Submission) (*Outcome, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrSubmissionInFlight
	}
	defer c.busy.Store(false)

	unlock, err := c.lockOutputDir()
	if err != nil {
		return nil, err
	}
	defer unlock()

	start := time.Now()
	params := &mergesdk.MergeParams{
		Files:        sub.Files,
		Fields:       sub.Fields,
		DownloadType: sub.DownloadType,
		OnUpload: func(name string, uploaded, total int64) {
			slog.Debug("merge upload", "file", name, "sent", humanize.Bytes(uint64(uploaded)), "size", humanize.Bytes(uint64(total)))
		},
	}

	c.view.Begin()

	sim := c.newSimulator(c.progressOpts...)
	if err := sim.Start(func(t progress.Tick) {
		c.view.Tick(t.Displayed, t.Phase)
	}); err != nil {
		return nil, c.fail(err)
	}
	defer sim.Stop()

	slog.Info("merge submit", "files", params.FileNames(), "downloadType", sub.DownloadType, "server", serverOf(c.merger))

	res, err := c.merger.Merge(ctx, params)
	sim.Stop()
	if err != nil {
		return nil, c.fail(err)
	}

	c.view.Complete(StatusDownloadReady)

	if res.Metadata != nil {
		c.view.Summary(res.Metadata)
	}

	path, err := saveDownload(c.outDir, DownloadName(sub.DownloadType), res.Body)
	if err != nil {
		return nil, c.fail(fmt.Errorf("save download: %w", err))
	}

	size := int64(len(res.Body))
	c.view.Downloaded(path, size)

	elapsed := time.Since(start)
	slog.Info("merge done", "requestId", res.RequestID, "path", path, "size", humanize.Bytes(uint64(size)), "contentType", res.ContentType, "elapsed", elapsed)

	return &Outcome{
		RequestID: res.RequestID,
		Path:      path,
		Size:      size,
		Metadata:  res.Metadata,
		Elapsed:   elapsed,
	}, nil
}

func (c *Controller) fail(err error) error {
	status := StatusText(err)
	c.view.Fail(status)
	slog.Error("merge failed", "error", err)
	return &SubmitError{Status: status, Err: err}
}

// lockOutputDir keeps two processes from writing downloads into the same
// directory at the same time.
func (c *Controller) lockOutputDir() (func(), error) {
	if err := utils.EnsureDir(c.outDir); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", c.outDir, err)
	}

	lock := flock.New(filepath.Join(c.outDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock output dir: %w", err)
	}
	if !locked {
		return nil, ErrOutputLocked
	}

	return func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("unlock output dir", "error", err)
			return
		}
		os.Remove(lock.Path())
	}, nil
}

func serverOf(m Merger) string {
	if c, ok := m.(interface{ BaseURL() string }); ok {
		return c.BaseURL()
	}
	return ""
}
