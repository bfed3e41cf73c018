package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"exifai/internal/domain"
	appErrors "exifai/internal/errors"
)

// Phase represents the current state of the TUI
type Phase int

const (
	PhaseCollecting Phase = iota
	PhaseConfirm
	PhaseProcessing
	PhaseDone
	PhaseError
)

// Messages for the TUI
type (
	PathsReadyMsg struct {
		Paths []string
	}
	ResultMsg struct {
		Done   int
		Total  int
		Result domain.ProcessResult
	}
	BatchDoneMsg struct {
		Results []domain.ProcessResult
	}
	ConfirmMsg struct {
		Confirmed bool
	}
	ErrorMsg struct {
		Err error
	}
	tickMsg time.Time
)

// StartBatchFunc runs the batch over paths. It should report each result with
// a ResultMsg and finish with a BatchDoneMsg.
type StartBatchFunc func(paths []string) tea.Cmd

type Config struct {
	Roots    []string
	Backends []string
	DryRun   bool
	Verbose  bool
	// Confirm asks before writing to files. Ignored in a dry run.
	Confirm    bool
	StartBatch StartBatchFunc
}

const recentResults = 6

type Model struct {
	config           Config
	Phase            Phase
	Paths            []string
	Results          []domain.ProcessResult
	Summary          domain.BatchSummary
	spinner          spinner.Model
	progress         progress.Model
	done             int
	total            int
	recent           []domain.ProcessResult
	confirmSelection bool
	Declined         bool
	Err              error
	Quitting         bool
	width            int
}

func NewModel(cfg Config) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(50),
		progress.WithoutPercentage(),
	)

	return Model{
		config:   cfg,
		Phase:    PhaseCollecting,
		spinner:  s,
		progress: p,
		width:    80,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) start() (Model, tea.Cmd) {
	m.Phase = PhaseProcessing
	m.total = len(m.Paths)
	if m.config.StartBatch == nil {
		return m, nil
	}
	return m, tea.Batch(tickCmd(), m.spinner.Tick, m.config.StartBatch(m.Paths))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = min(msg.Width-20, 60)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.Quitting = true
			return m, tea.Quit
		case "left", "h", "y", "Y":
			if m.Phase == PhaseConfirm {
				m.confirmSelection = true
			}
		case "right", "l", "n", "N":
			if m.Phase == PhaseConfirm {
				m.confirmSelection = false
			}
		case "enter":
			if m.Phase == PhaseConfirm {
				confirmed := m.confirmSelection
				return m, func() tea.Msg { return ConfirmMsg{Confirmed: confirmed} }
			}
			if m.Phase == PhaseDone || m.Phase == PhaseError {
				return m, tea.Quit
			}
		}

	case PathsReadyMsg:
		m.Paths = msg.Paths
		if len(m.Paths) == 0 {
			m.Phase = PhaseDone
			return m, nil
		}
		if m.config.Confirm && !m.config.DryRun {
			m.Phase = PhaseConfirm
			return m, nil
		}
		return m.start()

	case ConfirmMsg:
		if !msg.Confirmed {
			m.Declined = true
			m.Phase = PhaseDone
			return m, nil
		}
		return m.start()

	case ResultMsg:
		m.done = msg.Done
		m.total = msg.Total
		m.recent = append(m.recent, msg.Result)
		if len(m.recent) > recentResults {
			m.recent = m.recent[len(m.recent)-recentResults:]
		}
		return m, nil

	case BatchDoneMsg:
		m.Phase = PhaseDone
		m.Results = msg.Results
		m.Summary = domain.Summarize(msg.Results)
		return m, nil

	case ErrorMsg:
		m.Phase = PhaseError
		m.Err = msg.Err
		return m, nil

	case spinner.TickMsg:
		if m.Phase == PhaseCollecting || m.Phase == PhaseProcessing {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case tickMsg:
		if m.Phase == PhaseProcessing {
			var cmds []tea.Cmd
			if m.total > 0 {
				cmds = append(cmds, m.progress.SetPercent(float64(m.done)/float64(m.total)))
			}
			cmds = append(cmds, tickCmd())
			return m, tea.Batch(cmds...)
		}
	}

	return m, nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) View() string {
	if m.Quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	switch m.Phase {
	case PhaseCollecting:
		b.WriteString(fmt.Sprintf("%s Collecting images...", m.spinner.View()))
	case PhaseConfirm:
		b.WriteString(m.renderConfirmPrompt())
	case PhaseProcessing:
		b.WriteString(m.renderProcessing())
	case PhaseDone:
		b.WriteString(m.renderCompletion())
	case PhaseError:
		b.WriteString(m.renderError())
	}

	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderHeader() string {
	title := titleStyle.Render(iconImage + " exifai")
	subtitle := subtitleStyle.Render("AI-generated titles, descriptions and tags for your photos")

	lines := []string{title, subtitle, ""}
	for _, root := range m.config.Roots {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("%s %s", iconFolder, shortenPath(root))))
	}
	if len(m.config.Backends) > 0 {
		lines = append(lines, dimStyle.Render("Backends: "+strings.Join(m.config.Backends, " "+iconArrow+" ")))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderConfirmPrompt() string {
	prompt := confirmPromptStyle.Render(fmt.Sprintf("Write metadata to %d images?", len(m.Paths)))

	var yesBtn, noBtn string
	if m.confirmSelection {
		yesBtn = highlightBoxStyle.
			Background(lipgloss.Color("#2D5A27")).
			Render(" Yes ")
		noBtn = boxStyle.Render(" No ")
	} else {
		yesBtn = boxStyle.Render(" Yes ")
		noBtn = highlightBoxStyle.
			Background(lipgloss.Color("#5A2727")).
			Render(" No ")
	}
	buttons := lipgloss.JoinHorizontal(lipgloss.Center, yesBtn, "  ", noBtn)
	return lipgloss.JoinVertical(lipgloss.Left, prompt, "", buttons)
}

func (m Model) renderProcessing() string {
	var b strings.Builder

	heading := "Writing Metadata"
	if m.config.DryRun {
		heading = "Generating Metadata (dry run)"
	}
	b.WriteString(sectionStyle.Render(heading))
	b.WriteString("\n\n")

	percent := 0.0
	if m.total > 0 {
		percent = float64(m.done) / float64(m.total)
	}
	b.WriteString(fmt.Sprintf("  %s Processing...\n\n", m.spinner.View()))
	b.WriteString(fmt.Sprintf("  %s\n", m.progress.ViewAs(percent)))

	countStyle := lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	b.WriteString(fmt.Sprintf("  %s %s\n",
		countStyle.Render(fmt.Sprintf("%d/%d images", m.done, m.total)),
		dimStyle.Render(fmt.Sprintf("(%.0f%%)", percent*100)),
	))

	if len(m.recent) > 0 {
		b.WriteString("\n")
		for _, r := range m.recent {
			b.WriteString("  ")
			b.WriteString(formatResult(r))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) renderCompletion() string {
	var b strings.Builder

	if m.Declined {
		b.WriteString(warningStyle.Render(fmt.Sprintf("%s Cancelled, no files were changed.", iconWarning)))
		b.WriteString("\n")
		return b.String()
	}
	if len(m.Paths) == 0 {
		b.WriteString(dimStyle.Render("  No images found"))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(sectionStyle.Render("Batch Complete"))
	b.WriteString("\n\n")

	s := m.Summary
	if s.Failed == 0 {
		b.WriteString(fmt.Sprintf("  %s %s\n\n", successStyle.Render(iconSuccess), successStyle.Render("All images processed")))
	} else {
		b.WriteString(fmt.Sprintf("  %s %s\n\n", errorStyle.Render(iconError),
			errorStyle.Render(fmt.Sprintf("%d of %d images failed", s.Failed, len(s.Results)))))
	}

	written := "Images updated:"
	if m.config.DryRun {
		written = "Would update:"
	}
	b.WriteString(fmt.Sprintf("  %s  %s\n", statLabelStyle.Render(written), statValueStyle.Render(fmt.Sprintf("%d", s.Written))))
	b.WriteString(fmt.Sprintf("  %s  %s\n", statLabelStyle.Render("Succeeded:"), successStyle.Render(fmt.Sprintf("%s %d", iconSuccess, s.Succeeded))))
	b.WriteString(fmt.Sprintf("  %s  %s\n", statLabelStyle.Render("Failed:"), errorStyle.Render(fmt.Sprintf("%s %d", iconError, s.Failed))))

	if s.Failed > 0 {
		b.WriteString("\n")
		shown := 0
		for _, r := range s.Results {
			if r.Err == nil {
				continue
			}
			if shown == 4 && !m.config.Verbose {
				b.WriteString(dimStyle.Render(fmt.Sprintf("  ... and %d more", s.Failed-shown)))
				b.WriteString("\n")
				break
			}
			b.WriteString("  ")
			b.WriteString(formatResult(r))
			b.WriteString("\n")
			shown++
		}
	}

	if m.config.Verbose && len(s.Warnings) > 0 {
		b.WriteString("\n")
		b.WriteString(warningStyle.Render("Warnings:"))
		b.WriteString("\n")
		for _, w := range s.Warnings {
			b.WriteString(fmt.Sprintf("  %s %s\n", iconWarning, w))
		}
	}

	if m.config.DryRun {
		b.WriteString("\n")
		b.WriteString(highlightBoxStyle.Render("🔍 Dry Run - No files were changed"))
	}
	return b.String()
}

func (m Model) renderError() string {
	icon := errorStyle.Render(iconError)
	msg := errorStyle.Render("Error: " + appErrors.UserMessage(m.Err))

	return highlightBoxStyle.
		BorderForeground(errorColor).
		Render(fmt.Sprintf("%s %s", icon, msg))
}

func (m Model) renderHelp() string {
	var help string
	switch m.Phase {
	case PhaseCollecting:
		help = "Press q to quit"
	case PhaseConfirm:
		help = "← → or y/n to select • Enter to confirm • q to quit"
	case PhaseProcessing:
		help = "Processing images... q to abort"
	case PhaseDone:
		help = "Press Enter to exit"
	case PhaseError:
		help = "Press Enter or q to exit"
	}
	return helpStyle.Render(help)
}

func formatResult(r domain.ProcessResult) string {
	name := fileNameStyle.Render(filepath.Base(r.Path))
	if r.Err != nil {
		return fmt.Sprintf("%s %s  %s", errorStyle.Render(iconError), name,
			dimStyle.Render(string(appErrors.KindOf(r.Err))))
	}

	icon := successStyle.Render(iconSuccess)
	if r.Outcome.SidecarPath != "" {
		icon = successStyle.Render(iconSidecar)
	}
	fields := strings.Join(r.Outcome.Fields(), ", ")
	if fields == "" {
		return fmt.Sprintf("%s %s  %s", dimStyle.Render(iconSkipped), name, dimStyle.Render("nothing to write"))
	}
	return fmt.Sprintf("%s %s  %s  %s", icon, name, backendStyle.Render(r.Backend), dimStyle.Render(fields))
}

// shortenPath replaces the home directory prefix with ~ for display
func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
