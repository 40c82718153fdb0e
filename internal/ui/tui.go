package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer draws a live progress panel with bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *buildModel
	tracker *Tracker
	done    chan struct{}
}

// NewTUIRenderer fails when the output is not a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}
	tracker := NewTracker()
	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   newBuildModel(tracker, cfg.Title, GetStyles(cfg.NoColor)),
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		return nil
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithoutSignalHandler()}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(r.model, opts...)

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// Update implements Renderer.
func (r *TUIRenderer) Update(ev Event) {
	r.tracker.Apply(ev)
	r.send(refreshMsg{})
}

// Warn implements Renderer.
func (r *TUIRenderer) Warn(w Warning) {
	r.tracker.AddWarning(w)
	r.send(refreshMsg{})
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.send(completeMsg(stats))
}

func (r *TUIRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Stop implements Renderer. It waits briefly for the final frame.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p == nil {
		return nil
	}

	select {
	case <-r.done:
		return nil
	case <-time.After(500 * time.Millisecond):
	}
	p.Quit()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	return nil
}

type refreshMsg struct{}
type completeMsg CompletionStats
type tickMsg time.Time

type buildModel struct {
	tracker  *Tracker
	title    string
	styles   Styles
	spinner  spinner.Model
	bar      progress.Model
	width    int
	complete bool
	stats    CompletionStats
}

func newBuildModel(tracker *Tracker, title string, styles Styles) *buildModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Active

	if title == "" {
		title = "docindex"
	}
	return &buildModel{
		tracker: tracker,
		title:   title,
		styles:  styles,
		spinner: s,
		bar: progress.New(
			progress.WithSolidFill(ColorLime),
			progress.WithWidth(50),
			progress.WithoutPercentage(),
		),
		width: 80,
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements tea.Model.
func (m *buildModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// Update implements tea.Model.
func (m *buildModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(msg.Width-20, 20)
	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit
	case tickMsg:
		return m, tickCmd()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *buildModel) View() string {
	if m.complete {
		return m.renderComplete()
	}
	snap := m.tracker.Snapshot()
	width := max(m.width-4, 40)

	lines := []string{
		fmt.Sprintf("%s  %s", m.bar.ViewAs(float64(snap.Percent)/100), m.styles.Active.Render(fmt.Sprintf("%3d%%", snap.Percent))),
	}

	metrics := []string{m.styles.Label.Render(fmt.Sprintf("%d vectors", snap.Vectors))}
	if snap.Rate > 0 {
		metrics = append(metrics, m.styles.Label.Render(fmt.Sprintf("%.0f/s", snap.Rate)))
	}
	if snap.ETA > 0 {
		metrics = append(metrics, m.styles.Label.Render("ETA "+formatDuration(snap.ETA)))
	}
	lines = append(lines, strings.Join(metrics, m.styles.Dim.Render("  •  ")))

	if snap.File != "" {
		lines = append(lines, fmt.Sprintf("%s %s", m.spinner.View(), truncateFilePath(snap.File, width-4)))
	}
	if snap.Message != "" {
		lines = append(lines, m.styles.Dim.Render(snap.Message))
	}
	if snap.Warnings > 0 {
		lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("⚠ %d skipped", snap.Warnings)))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Header.Render(m.title),
		m.styles.Panel.Width(width).Render(strings.Join(lines, "\n")),
	) + "\n"
}

func (m *buildModel) renderComplete() string {
	head := m.styles.Success.Render("✓ Index ready")
	if m.stats.Cancelled {
		head = m.styles.Warning.Render("Cancelled")
	}
	lines := []string{
		head,
		"",
		fmt.Sprintf("%s    %s", m.styles.Label.Render("Index:"), m.styles.Active.Render(m.stats.Index)),
		fmt.Sprintf("%s    %s", m.styles.Label.Render("Files:"), m.styles.Active.Render(fmt.Sprintf("%d", m.stats.Files))),
		fmt.Sprintf("%s  %s", m.styles.Label.Render("Vectors:"), m.styles.Active.Render(fmt.Sprintf("%d", m.stats.Vectors))),
		fmt.Sprintf("%s %s", m.styles.Label.Render("Duration:"), m.styles.Active.Render(formatDuration(m.stats.Duration))),
	}
	if m.stats.Model != "" {
		lines = append(lines, fmt.Sprintf("%s    %s, %s (%d dims)", m.styles.Label.Render("Model:"),
			m.stats.Variant, m.stats.Model, m.stats.Dimensions))
	}
	for _, w := range m.tracker.Warnings() {
		lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("⚠ %s: %s", w.File, w.Err)))
	}
	return m.styles.Panel.Width(max(m.width-4, 40)).Render(strings.Join(lines, "\n")) + "\n"
}

// truncateFilePath keeps the tail of path within maxLen characters.
func truncateFilePath(path string, maxLen int) string {
	r := []rune(path)
	if len(r) <= maxLen {
		return path
	}
	if maxLen <= 3 {
		return "..."
	}
	return "..." + string(r[len(r)-maxLen+3:])
}

var _ Renderer = (*TUIRenderer)(nil)
