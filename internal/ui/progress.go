package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TickMsg drives periodic redraws of the live progress display.
type TickMsg time.Time

// TransferMode selects the send or receive presentation.
type TransferMode int

const (
	ModeSend TransferMode = iota
	ModeReceive
)

type progressUpdate struct {
	current   int64
	completed bool
	failed    bool
	errMsg    string
}

// LiveProgress shows one active transfer as an inline Bubble Tea
// program: spinner, progress bar, speed and ETA. Updates arrive from
// the transfer callbacks via a buffered channel.
type LiveProgress struct {
	program    *tea.Program
	model      *liveModel
	updateChan chan progressUpdate
	wg         sync.WaitGroup

	// OnCancel fires when the user aborts from the keyboard.
	OnCancel func()
}

type liveModel struct {
	mode       TransferMode
	name       string
	size       int64
	bar        progress.Model
	spinner    spinner.Model
	updateChan chan progressUpdate
	onCancel   func()

	mu        sync.RWMutex
	current   int64
	startTime time.Time
	complete  bool
	failed    bool
	errMsg    string
	quitting  bool
}

// NewLiveProgress creates the live display for one file.
func NewLiveProgress(mode TransferMode, name string, size int64) *LiveProgress {
	bar := progress.New(
		progress.WithGradient(ProgressStart, ProgressEnd),
		progress.WithWidth(30),
		progress.WithoutPercentage(),
	)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(Primary)

	updateChan := make(chan progressUpdate, 100)

	model := &liveModel{
		mode:       mode,
		name:       name,
		size:       size,
		bar:        bar,
		spinner:    s,
		updateChan: updateChan,
	}

	return &LiveProgress{
		model:      model,
		updateChan: updateChan,
	}
}

// Start runs the display inline, keeping previous terminal output
// visible.
func (lp *LiveProgress) Start() {
	lp.model.onCancel = lp.OnCancel
	lp.wg.Add(1)
	go func() {
		defer lp.wg.Done()
		lp.program = tea.NewProgram(lp.model)
		if _, err := lp.program.Run(); err != nil {
			fmt.Printf("UI error: %v\n", err)
		}
	}()
}

// Update records the byte count reported by the transfer.
func (lp *LiveProgress) Update(current int64) {
	select {
	case lp.updateChan <- progressUpdate{current: current}:
	default:
	}
}

// MarkComplete marks the transfer finished.
func (lp *LiveProgress) MarkComplete() {
	select {
	case lp.updateChan <- progressUpdate{completed: true}:
	default:
	}
}

// MarkFailed marks the transfer failed.
func (lp *LiveProgress) MarkFailed(errMsg string) {
	select {
	case lp.updateChan <- progressUpdate{failed: true, errMsg: errMsg}:
	default:
	}
}

// Stop shuts the display down and waits for the final frame.
func (lp *LiveProgress) Stop() {
	if lp.program != nil {
		lp.program.Quit()
	}
	lp.wg.Wait()
}

func (m *liveModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.listenForUpdates(),
		tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
			return TickMsg(t)
		}),
	)
}

func (m *liveModel) listenForUpdates() tea.Cmd {
	return func() tea.Msg {
		return <-m.updateChan
	}
}

func (m *liveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if m.onCancel != nil {
				m.onCancel()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.bar.Width = min(30, msg.Width-50)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case TickMsg:
		m.mu.RLock()
		done := m.complete || m.failed
		m.mu.RUnlock()
		if !m.quitting && !done {
			cmds = append(cmds, tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
				return TickMsg(t)
			}))
		}

	case progressUpdate:
		m.mu.Lock()
		if msg.completed {
			m.complete = true
			m.current = m.size
		} else if msg.failed {
			m.failed = true
			m.errMsg = msg.errMsg
		} else {
			m.current = msg.current
			if m.startTime.IsZero() {
				m.startTime = time.Now()
			}
		}
		m.mu.Unlock()
		cmds = append(cmds, m.listenForUpdates())

	case progress.FrameMsg:
		model, cmd := m.bar.Update(msg)
		m.bar = model.(progress.Model)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *liveModel) View() string {
	if m.quitting {
		return ""
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var b strings.Builder

	modeIcon := IconSend
	modeText := "Sending"
	if m.mode == ModeReceive {
		modeIcon = IconReceive
		modeText = "Receiving"
	}
	b.WriteString(fmt.Sprintf("\n%s %s\n\n", modeIcon, modeText))

	var icon string
	var nameStyle lipgloss.Style
	switch {
	case m.failed:
		icon = IconError
		nameStyle = ErrorStyle
	case m.complete:
		icon = IconSuccess
		nameStyle = SuccessStyle
	case m.current > 0:
		icon = m.spinner.View()
		nameStyle = lipgloss.NewStyle()
	default:
		icon = "○"
		nameStyle = MutedStyle
	}

	name := truncate(m.name, 24)
	b.WriteString(fmt.Sprintf("  %s %s ", icon, nameStyle.Width(26).Render(name)))

	if m.size > 0 {
		percent := float64(m.current) / float64(m.size)
		b.WriteString(m.bar.ViewAs(percent))
		b.WriteString(fmt.Sprintf(" %5.1f%%", percent*100))
	}

	if !m.complete && !m.failed && m.current > 0 && !m.startTime.IsZero() {
		elapsed := time.Since(m.startTime).Seconds()
		if elapsed > 0 {
			speed := float64(m.current) / elapsed
			b.WriteString(MutedStyle.Render(fmt.Sprintf(" %s", FormatSpeed(speed))))
			remaining := m.size - m.current
			if remaining > 0 && speed > 0 {
				eta := float64(remaining) / speed
				b.WriteString(MutedStyle.Render(fmt.Sprintf(" ETA: %s", FormatDuration(eta))))
			}
		}
	}

	b.WriteString(MutedStyle.Render(fmt.Sprintf(" (%s/%s)", FormatBytes(m.current), FormatBytes(m.size))))

	if m.failed && m.errMsg != "" {
		b.WriteString("\n  " + ErrorStyle.Render(m.errMsg))
	}

	b.WriteString("\n\n" + MutedStyle.Render("Press q to cancel"))
	return b.String()
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatSpeed renders a throughput with a per-second unit suffix.
func FormatSpeed(bytesPerSecond float64) string {
	const (
		KB = 1024.0
		MB = KB * 1024.0
		GB = MB * 1024.0
	)

	switch {
	case bytesPerSecond >= GB:
		return fmt.Sprintf("%.2f GB/s", bytesPerSecond/GB)
	case bytesPerSecond >= MB:
		return fmt.Sprintf("%.2f MB/s", bytesPerSecond/MB)
	case bytesPerSecond >= KB:
		return fmt.Sprintf("%.2f KB/s", bytesPerSecond/KB)
	default:
		return fmt.Sprintf("%.0f B/s", bytesPerSecond)
	}
}

// FormatDuration renders a second count compactly.
func FormatDuration(seconds float64) string {
	if seconds < 1 {
		return "<1s"
	}
	if seconds < 60 {
		return fmt.Sprintf("%.0fs", seconds)
	}
	if seconds < 3600 {
		mins := int(seconds) / 60
		secs := int(seconds) % 60
		return fmt.Sprintf("%dm%ds", mins, secs)
	}
	hours := int(seconds) / 3600
	mins := (int(seconds) % 3600) / 60
	return fmt.Sprintf("%dh%dm", hours, mins)
}
