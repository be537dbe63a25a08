package controller

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/feedspot/feedmerge/internal/mergesdk"
	"github.com/feedspot/feedmerge/internal/mergetest"
	"github.com/feedspot/feedmerge/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	kind    string
	percent float64
	phase   progress.Phase
	text    string
	meta    *mergesdk.Metadata
	path    string
	size    int64
}

// recordingView keeps every call in order. lockedView already serializes
// calls; the mutex here is for the test goroutine reading concurrently.
type recordingView struct {
	mu     sync.Mutex
	events []event
}

func (v *recordingView) add(e event) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.events = append(v.events, e)
}

func (v *recordingView) Begin()                            { v.add(event{kind: "begin"}) }
func (v *recordingView) Tick(p float64, ph progress.Phase) { v.add(event{kind: "tick", percent: p, phase: ph}) }
func (v *recordingView) Complete(s string)                 { v.add(event{kind: "complete", percent: 100, text: s}) }
func (v *recordingView) Fail(s string)                     { v.add(event{kind: "fail", text: s}) }
func (v *recordingView) Summary(m *mergesdk.Metadata)      { v.add(event{kind: "summary", meta: m}) }
func (v *recordingView) Downloaded(path string, n int64)   { v.add(event{kind: "downloaded", path: path, size: n}) }

func (v *recordingView) all() []event {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]event, len(v.events))
	copy(out, v.events)
	return out
}

func (v *recordingView) kinds() []string {
	var kinds []string
	for _, e := range v.all() {
		if e.kind != "tick" {
			kinds = append(kinds, e.kind)
		}
	}
	return kinds
}

func (v *recordingView) ticks() []event {
	var ticks []event
	for _, e := range v.all() {
		if e.kind == "tick" {
			ticks = append(ticks, e)
		}
	}
	return ticks
}

func (v *recordingView) last(kind string) (event, bool) {
	events := v.all()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].kind == kind {
			return events[i], true
		}
	}
	return event{}, false
}

type fixture struct {
	srv    *mergetest.Server
	view   *recordingView
	outDir string
	ctrl   *Controller
	sims   []*progress.Simulator
	inputs []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	srv := mergetest.New()
	client, err := mergesdk.New(&mergesdk.Config{BaseURL: srv.Start(t), Timeout: 10 * time.Second})
	require.NoError(t, err)

	f := &fixture{
		srv:    srv,
		view:   &recordingView{},
		outDir: t.TempDir(),
	}
	f.ctrl = New(client, f.view,
		WithOutputDir(f.outDir),
		WithProgressOptions(progress.WithInterval(time.Millisecond)),
	)
	f.ctrl.newSimulator = func(opts ...progress.Option) *progress.Simulator {
		sim := progress.New(opts...)
		f.sims = append(f.sims, sim)
		return sim
	}

	inDir := t.TempDir()
	for name, content := range map[string]string{
		"a.csv": "id,name,qty\n1,x,2\n2,y,3\n3,z,1\n4,w,9\n5,v,0\n",
		"b.csv": "id,name,qty\n6,u,1\n",
	} {
		path := filepath.Join(inDir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	f.inputs = []string{filepath.Join(inDir, "a.csv"), filepath.Join(inDir, "b.csv")}
	return f
}

func (f *fixture) submit(t *testing.T, downloadType mergesdk.DownloadType) (*Outcome, error) {
	t.Helper()
	return f.ctrl.HandleSubmit(context.Background(), &Submission{
		Files:        f.inputs,
		DownloadType: downloadType,
	})
}

func (f *fixture) assertSettled(t *testing.T) {
	t.Helper()
	require.Len(t, f.sims, 1)
	assert.Equal(t, progress.StateSettled, f.sims[0].State())
	// already stopped by the controller
	assert.False(t, f.sims[0].Stop())
}

func (f *fixture) outDirEntries(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.outDir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestHandleSubmit_CSVScenario(t *testing.T) {
	f := newFixture(t)
	f.srv.Reply(mergetest.OK([]byte("0123456789"), &mergetest.Metadata{
		Files:     []string{"a.csv", "b.csv"},
		Rows:      []int64{5, 7},
		TotalRows: 12,
		TotalCols: 3,
	}))

	out, err := f.submit(t, mergesdk.DownloadCSV)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(f.outDir, "merged_feedspot.csv"), out.Path)
	assert.EqualValues(t, 10, out.Size)
	data, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))

	assert.Equal(t, []string{"begin", "complete", "summary", "downloaded"}, f.view.kinds())

	complete, _ := f.view.last("complete")
	assert.Equal(t, StatusDownloadReady, complete.text)
	assert.Equal(t, 100.0, complete.percent)

	summary, ok := f.view.last("summary")
	require.True(t, ok)
	panel := RenderSummary(summary.meta)
	for _, want := range []string{"a.csv", "b.csv", "12", "3"} {
		assert.Contains(t, panel, want)
	}

	downloaded, _ := f.view.last("downloaded")
	assert.Equal(t, out.Path, downloaded.path)

	f.assertSettled(t)
	assert.Equal(t, []string{"merged_feedspot.csv"}, f.outDirEntries(t))

	uploads := f.srv.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "csv", uploads[0].DownloadType)
}

func TestHandleSubmit_ExcelFileName(t *testing.T) {
	f := newFixture(t)

	out, err := f.submit(t, mergesdk.DownloadExcel)
	require.NoError(t, err)

	assert.Equal(t, "merged_feedspot.xlsx", filepath.Base(out.Path))
	require.NotNil(t, out.Metadata)
	assert.Equal(t, []int64{5, 1}, out.Metadata.Rows)
	f.assertSettled(t)
}

func TestHandleSubmit_NoMetadata(t *testing.T) {
	f := newFixture(t)
	f.srv.Reply(mergetest.OK([]byte("id\n1\n"), nil))

	out, err := f.submit(t, mergesdk.DownloadCSV)
	require.NoError(t, err)

	assert.Nil(t, out.Metadata)
	assert.Equal(t, []string{"begin", "complete", "downloaded"}, f.view.kinds())
	assert.FileExists(t, out.Path)
}

func TestHandleSubmit_ServerErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status string
	}{
		{"with body", "Bad file format", "❌ Error: Bad file format"},
		{"empty body", "", "❌ Error: Error merging files"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.srv.Reply(mergetest.Fail(http.StatusInternalServerError, tt.body))

			out, err := f.submit(t, mergesdk.DownloadCSV)
			require.Error(t, err)
			assert.Nil(t, out)

			var submitErr *SubmitError
			require.ErrorAs(t, err, &submitErr)
			assert.Equal(t, tt.status, submitErr.Status)
			assert.ErrorIs(t, err, mergesdk.ErrServer)

			assert.Equal(t, []string{"begin", "fail"}, f.view.kinds())
			fail, _ := f.view.last("fail")
			assert.Equal(t, tt.status, fail.text)

			f.assertSettled(t)
			assert.Empty(t, f.outDirEntries(t))
		})
	}
}

func TestHandleSubmit_MalformedMetadata(t *testing.T) {
	f := newFixture(t)
	f.srv.Reply(&mergetest.Response{Status: http.StatusOK, Body: []byte("x"), Metadata: "{files:"})

	_, err := f.submit(t, mergesdk.DownloadCSV)
	require.Error(t, err)
	assert.ErrorIs(t, err, mergesdk.ErrMalformedMetadata)

	fail, ok := f.view.last("fail")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(fail.text, ErrorPrefix))
	assert.Equal(t, []string{"begin", "fail"}, f.view.kinds())
	f.assertSettled(t)
}

func TestHandleSubmit_ProgressWhileWaiting(t *testing.T) {
	f := newFixture(t)
	f.srv.Reply(&mergetest.Response{
		Status: http.StatusOK,
		Body:   []byte("id\n"),
		Delay:  150 * time.Millisecond,
	})

	_, err := f.submit(t, mergesdk.DownloadCSV)
	require.NoError(t, err)

	ticks := f.view.ticks()
	require.NotEmpty(t, ticks)

	last := 0.0
	for _, tick := range ticks {
		assert.GreaterOrEqual(t, tick.percent, last)
		assert.LessOrEqual(t, tick.percent, progress.Ceiling)
		last = tick.percent
	}

	// nothing ticks once the request settled
	events := f.view.all()
	completeIdx := -1
	for i, e := range events {
		if e.kind == "complete" {
			completeIdx = i
		}
	}
	require.GreaterOrEqual(t, completeIdx, 0)
	for _, e := range events[completeIdx:] {
		assert.NotEqual(t, "tick", e.kind)
	}
	f.assertSettled(t)
}

func TestHandleSubmit_FailureKeepsLastValue(t *testing.T) {
	f := newFixture(t)
	f.srv.Reply(&mergetest.Response{
		Status: http.StatusBadRequest,
		Body:   []byte(mergetest.MsgInvalidDownloadType),
		Delay:  50 * time.Millisecond,
	})

	_, err := f.submit(t, mergesdk.DownloadType("pdf"))
	require.Error(t, err)

	for _, e := range f.view.all() {
		assert.NotEqual(t, "complete", e.kind)
	}
	fail, _ := f.view.last("fail")
	assert.Equal(t, "❌ Error: Invalid download type", fail.text)
}

func TestHandleSubmit_TransportFailure(t *testing.T) {
	view := &recordingView{}
	client, err := mergesdk.New(&mergesdk.Config{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	ctrl := New(client, view, WithOutputDir(t.TempDir()))

	input := filepath.Join(t.TempDir(), "a.csv")
	require.NoError(t, os.WriteFile(input, []byte("a\n"), 0o644))

	_, err = ctrl.HandleSubmit(context.Background(), &Submission{Files: []string{input}, DownloadType: mergesdk.DownloadCSV})
	require.Error(t, err)
	assert.ErrorIs(t, err, mergesdk.ErrTransport)

	fail, ok := view.last("fail")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(fail.text, ErrorPrefix))
}

func TestHandleSubmit_RepeatedDownloadsGetNumbered(t *testing.T) {
	f := newFixture(t)

	first, err := f.submit(t, mergesdk.DownloadCSV)
	require.NoError(t, err)
	second, err := f.submit(t, mergesdk.DownloadCSV)
	require.NoError(t, err)

	assert.Equal(t, "merged_feedspot.csv", filepath.Base(first.Path))
	assert.Equal(t, "merged_feedspot (1).csv", filepath.Base(second.Path))
	assert.ElementsMatch(t, []string{"merged_feedspot.csv", "merged_feedspot (1).csv"}, f.outDirEntries(t))
}

// blockingMerger holds Merge until released.
type blockingMerger struct {
	started chan struct{}
	release chan struct{}
}

func (m *blockingMerger) Merge(ctx context.Context, _ *mergesdk.MergeParams) (*mergesdk.MergeResult, error) {
	close(m.started)
	select {
	case <-m.release:
		return &mergesdk.MergeResult{Body: []byte("ok")}, nil
	case <-ctx.Done():
		return nil, &mergesdk.TransportError{Op: "merge request", Err: ctx.Err()}
	}
}

func TestHandleSubmit_RejectsConcurrentSubmission(t *testing.T) {
	m := &blockingMerger{started: make(chan struct{}), release: make(chan struct{})}
	view := &recordingView{}
	ctrl := New(m, view, WithOutputDir(t.TempDir()))

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.HandleSubmit(context.Background(), &Submission{DownloadType: mergesdk.DownloadCSV})
		done <- err
	}()
	<-m.started

	_, err := ctrl.HandleSubmit(context.Background(), &Submission{DownloadType: mergesdk.DownloadCSV})
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	assert.Equal(t, []string{"begin"}, view.kinds())

	close(m.release)
	require.NoError(t, <-done)

	// free again once settled
	m2 := &blockingMerger{started: make(chan struct{}), release: make(chan struct{})}
	close(m2.release)
	ctrl.merger = m2
	_, err = ctrl.HandleSubmit(context.Background(), &Submission{DownloadType: mergesdk.DownloadCSV})
	require.NoError(t, err)
}

func TestHandleSubmit_CancelAbortsRequest(t *testing.T) {
	m := &blockingMerger{started: make(chan struct{}), release: make(chan struct{})}
	view := &recordingView{}
	ctrl := New(m, view, WithOutputDir(t.TempDir()))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-m.started
		cancel()
	}()

	_, err := ctrl.HandleSubmit(ctx, &Submission{DownloadType: mergesdk.DownloadCSV})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.ErrorIs(t, err, mergesdk.ErrTransport)

	fail, _ := view.last("fail")
	assert.Equal(t, "❌ Error: context canceled", fail.text)
}

func TestHandleSubmit_OutputDirLockedByAnotherProcess(t *testing.T) {
	dir := t.TempDir()
	other := New(&blockingMerger{}, nil, WithOutputDir(dir))
	unlock, err := other.lockOutputDir()
	require.NoError(t, err)
	defer unlock()

	view := &recordingView{}
	ctrl := New(&blockingMerger{}, view, WithOutputDir(dir))
	_, err = ctrl.HandleSubmit(context.Background(), &Submission{DownloadType: mergesdk.DownloadCSV})
	assert.ErrorIs(t, err, ErrOutputLocked)
	assert.Empty(t, view.all())
}

func TestHandleSubmit_CreatesOutputDir(t *testing.T) {
	m := &blockingMerger{started: make(chan struct{}), release: make(chan struct{})}
	close(m.release)

	dir := filepath.Join(t.TempDir(), "nested", "out")
	ctrl := New(m, nil, WithOutputDir(dir))

	out, err := ctrl.HandleSubmit(context.Background(), &Submission{DownloadType: mergesdk.DownloadExcel})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "merged_feedspot.xlsx"), out.Path)

	// lock file is cleaned up
	_, err = os.Stat(filepath.Join(dir, lockFileName))
	assert.True(t, os.IsNotExist(err))
}
