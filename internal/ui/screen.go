package ui

import (
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"poolmon/internal/snapshot"
)

type frameMsg struct {
	view FrameView
}

// screenModel is the bubbletea model of the live view
type screenModel struct {
	spinner  spinner.Model
	view     *FrameView
	step     int
	quitting bool
	onQuit   func()
}

func newScreenModel(onQuit func()) screenModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)
	return screenModel{spinner: s, onQuit: onQuit}
}

func (m screenModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m screenModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if m.onQuit != nil {
				m.onQuit()
			}
			return m, tea.Quit
		}
	case frameMsg:
		view := msg.view
		m.view = &view
		m.step++
		return m, nil
	case spinner.TickMsg:
		if m.view != nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m screenModel) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(RenderBanner() + "\n")
	if m.view == nil {
		b.WriteString("  " + m.spinner.View() + " " + WhiteStyle.Render("Waiting for the first snapshot...") + "\n")
		return b.String()
	}

	v := m.view
	b.WriteString(RenderSectionStart("System", ScreenWidth) + "\n")
	for _, line := range v.Header {
		b.WriteString("  " + GrayStyle.Render(line) + "\n")
	}
	b.WriteString(RenderSectionEnd(ScreenWidth) + "\n")

	b.WriteString(RenderSectionStart("Processes", ScreenWidth) + "\n")
	b.WriteString("  " + PrimaryStyle.Render(v.Master) + "\n")
	for _, line := range v.Workers {
		b.WriteString("  " + WhiteStyle.Render(line) + "\n")
	}
	b.WriteString("\n  " + TotalStyle.Render(v.Total) + "\n")
	if v.Degraded != "" {
		b.WriteString(RenderStatus("warning", v.Degraded) + "\n")
	}
	b.WriteString(RenderSectionEnd(ScreenWidth) + "\n")

	footer := "Press q to exit."
	if v.Footer != "" {
		footer = strings.Replace(v.Footer, "Press Ctrl-C to exit.", "Press q to exit.", 1)
	}
	b.WriteString(MutedStyle.Render(footer) + "\n")
	return b.String()
}

// Screen is the full-screen renderer
type Screen struct {
	program *tea.Program
	log     LogStatus
	done    chan struct{}
	once    sync.Once
}

// NewScreen starts the full-screen program on out
func NewScreen(out io.Writer, log LogStatus, onQuit func()) *Screen {
	s := &Screen{log: log, done: make(chan struct{})}
	s.program = tea.NewProgram(newScreenModel(onQuit), tea.WithAltScreen(), tea.WithOutput(out))
	go func() {
		defer close(s.done)
		if _, err := s.program.Run(); err != nil && onQuit != nil {
			onQuit()
		}
	}()
	return s
}

// Render hands frame to the program
func (s *Screen) Render(frame *snapshot.DataFrame) {
	s.program.Send(frameMsg{view: FormatFrame(frame, s.log)})
}

// Close stops the program and restores the terminal
func (s *Screen) Close() error {
	s.once.Do(func() {
		s.program.Quit()
		<-s.done
	})
	return nil
}
