package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	bar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/feedspot/feedmerge/internal/controller"
	"github.com/feedspot/feedmerge/internal/mergesdk"
	"github.com/feedspot/feedmerge/internal/progress"
	"golang.org/x/sync/errgroup"
)

// Strings
const (
	txtHelp   = "Press 'Ctrl+C' to cancel."
	txtSaved  = "Saved"
	txtFiles  = "%d file(s)"
	levelMute = slog.LevelError + 4
)

const (
	defaultBarWidth = 40
	maxBarWidth     = 72
	barPadding      = 28
)

// Styles
var (
	titleStyle      = cyan.Bold(true)
	helpStyle       = gray
	labelStyle      = lightGray
	statusOKStyle   = green.Bold(true)
	statusFailStyle = red.Bold(true)
	spinnerStyle    = cyan
	panelStyle      = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("10")).
			Padding(0, 1)
)

type MergeTUIOpts struct {
	ServerURL    string
	OutDir       string
	ConfigPath   string
	DownloadType string
	Files        []string
}

type mergeModel struct {
	opts *MergeTUIOpts

	bar     bar.Model
	spinner spinner.Model

	started bool
	percent float64
	phase   progress.Phase

	status string
	failed bool

	summary   *mergesdk.Metadata
	savedPath string
	savedSize int64

	done      bool
	cancelled bool
	width     int
}

// --- Messages ---
// Sent by tuiView from the controller's goroutines.
type beginMsg struct{}
type tickMsg struct {
	percent float64
	phase   progress.Phase
}
type completeMsg struct{ status string }
type failMsg struct{ status string }
type summaryMsg struct{ meta *mergesdk.Metadata }
type downloadedMsg struct {
	path string
	size int64
}
type submitDoneMsg struct{ err error }

func newMergeModel(opts *MergeTUIOpts) mergeModel {
	b := bar.New(bar.WithDefaultGradient(), bar.WithWidth(defaultBarWidth))

	s := spinner.New()
	s.Spinner = spinner.Ellipsis
	s.Style = spinnerStyle

	return mergeModel{
		opts:    opts,
		bar:     b,
		spinner: s,
	}
}

func (m mergeModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m mergeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(10, min(msg.Width-barPadding, maxBarWidth))

	case beginMsg:
		m.started = true
		m.percent = 0
		m.phase = progress.PhaseStarting
		m.status = ""
		m.failed = false

	case tickMsg:
		m.percent = msg.percent
		m.phase = msg.phase

	case completeMsg:
		m.percent = progress.Complete
		m.status = msg.status

	case failMsg:
		// the bar stays where the last tick left it
		m.failed = true
		m.status = msg.status

	case summaryMsg:
		m.summary = msg.meta

	case downloadedMsg:
		m.savedPath = msg.path
		m.savedSize = msg.size

	case submitDoneMsg:
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

func (m mergeModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(feedMergeArt))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s%s\n", gray.Render("Server  "), green.Render(m.opts.ServerURL)))
	b.WriteString(fmt.Sprintf("%s%s\n", gray.Render("Format  "), green.Render(m.opts.DownloadType)))
	b.WriteString(fmt.Sprintf("%s%s\n", gray.Render("Output  "), green.Render(m.opts.OutDir)))
	b.WriteString(fmt.Sprintf("%s%s\n", gray.Render("Files   "), green.Render(fmt.Sprintf(txtFiles, len(m.opts.Files)))))
	if m.opts.ConfigPath != "" {
		b.WriteString(fmt.Sprintf("%s%s\n", gray.Render("Config  "), green.Render(m.opts.ConfigPath)))
	}
	b.WriteString("\n")

	m.renderProgressView(&b)
	m.renderSummaryView(&b)
	m.renderSavedView(&b)
	m.renderHelpView(&b)
	b.WriteString("\n")
	return b.String()
}

func (m mergeModel) renderProgressView(b *strings.Builder) {
	if !m.started {
		return
	}

	b.WriteString(m.bar.ViewAs(m.percent / 100))
	b.WriteString("  ")

	switch {
	case m.failed:
		b.WriteString(statusFailStyle.Render(m.status))
	case m.status != "":
		b.WriteString(statusOKStyle.Render(m.status))
	case m.phase == progress.PhaseFinalizing:
		b.WriteString(m.phase.String() + m.spinner.View())
	default:
		b.WriteString(m.phase.String())
	}
}

func (m mergeModel) renderSummaryView(b *strings.Builder) {
	if m.summary == nil {
		return
	}
	b.WriteString("\n\n")
	b.WriteString(panelStyle.Render(renderSummaryPanel(m.summary)))
}

func (m mergeModel) renderSavedView(b *strings.Builder) {
	if m.savedPath == "" {
		return
	}
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("%s %s %s", labelStyle.Render(txtSaved), green.Render(m.savedPath), gray.Render("("+humanize.Bytes(uint64(m.savedSize))+")")))
}

func (m mergeModel) renderHelpView(b *strings.Builder) {
	if m.done || m.cancelled {
		return
	}
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render(txtHelp))
}

// renderSummaryPanel is controller.RenderSummary with styled titles.
func renderSummaryPanel(meta *mergesdk.Metadata) string {
	var b strings.Builder
	b.WriteString(statusOKStyle.Render(controller.SummaryHeading))

	inlineStarted := false
	for _, sec := range controller.SummarySections(meta) {
		if sec.Inline {
			if !inlineStarted {
				b.WriteString("\n")
				inlineStarted = true
			}
			b.WriteString("\n" + labelStyle.Render(sec.Title) + " " + strings.Join(sec.Lines, " "))
			continue
		}

		b.WriteString("\n\n" + labelStyle.Render(sec.Title))
		for _, line := range sec.Lines {
			b.WriteString("\n" + line)
		}
	}
	return b.String()
}

// tuiView forwards controller callbacks into the bubbletea event loop.
type tuiView struct {
	program interface{ Send(tea.Msg) }
}

var _ controller.View = (*tuiView)(nil)

func (v *tuiView) Begin() { v.program.Send(beginMsg{}) }

func (v *tuiView) Tick(percent float64, phase progress.Phase) {
	v.program.Send(tickMsg{percent: percent, phase: phase})
}

func (v *tuiView) Complete(status string)          { v.program.Send(completeMsg{status: status}) }
func (v *tuiView) Fail(status string)              { v.program.Send(failMsg{status: status}) }
func (v *tuiView) Summary(meta *mergesdk.Metadata) { v.program.Send(summaryMsg{meta: meta}) }

func (v *tuiView) Downloaded(path string, size int64) {
	v.program.Send(downloadedMsg{path: path, size: size})
}

// runMergeTUI runs one submission under the interactive view. Leaving the
// view early cancels the request.
func runMergeTUI(ctx context.Context, w io.Writer, merger controller.Merger, cfg *Config, sub *controller.Submission) error {
	// log records would tear the redraw; the log file still gets them
	prevLevel := consoleLevel.Level()
	consoleLevel.Set(levelMute)
	defer consoleLevel.Set(prevLevel)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newMergeModel(&MergeTUIOpts{
		ServerURL:    cfg.ServerURL,
		OutDir:       cfg.OutDir,
		ConfigPath:   cfg.Path,
		DownloadType: cfg.DownloadType,
		Files:        sub.Files,
	}), tea.WithContext(ctx), tea.WithOutput(w))

	ctrl := controller.New(merger, &tuiView{program: p},
		controller.WithOutputDir(cfg.OutDir),
		controller.WithProgressOptions(progress.WithInterval(cfg.Interval)),
	)

	var (
		g         errgroup.Group
		submitErr error
	)

	g.Go(func() error {
		_, submitErr = ctrl.HandleSubmit(ctx, sub)
		// returns immediately once the program has exited
		p.Send(submitDoneMsg{err: submitErr})
		return nil
	})

	g.Go(func() error {
		_, err := p.Run()
		cancel()
		if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("merge TUI: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return submitErr
}
