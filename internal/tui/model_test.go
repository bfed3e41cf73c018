package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exifai/internal/domain"
	appErrors "exifai/internal/errors"
)

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func TestPathsReadyStartsBatch(t *testing.T) {
	var started []string
	m := NewModel(Config{StartBatch: func(paths []string) tea.Cmd {
		started = paths
		return nil
	}})

	m, cmd := update(t, m, PathsReadyMsg{Paths: []string{"/p/a.jpg", "/p/b.jpg"}})
	assert.Equal(t, PhaseProcessing, m.Phase)
	assert.NotNil(t, cmd)
	assert.Equal(t, []string{"/p/a.jpg", "/p/b.jpg"}, started)
}

func TestConfirmDeclinedChangesNothing(t *testing.T) {
	called := false
	m := NewModel(Config{Confirm: true, StartBatch: func([]string) tea.Cmd {
		called = true
		return nil
	}})

	m, _ = update(t, m, PathsReadyMsg{Paths: []string{"/p/a.jpg"}})
	require.Equal(t, PhaseConfirm, m.Phase)

	m, _ = update(t, m, ConfirmMsg{Confirmed: false})
	assert.Equal(t, PhaseDone, m.Phase)
	assert.True(t, m.Declined)
	assert.False(t, called)
	assert.Contains(t, m.View(), "no files were changed")
}

func TestDryRunSkipsConfirmation(t *testing.T) {
	m := NewModel(Config{Confirm: true, DryRun: true})
	m, _ = update(t, m, PathsReadyMsg{Paths: []string{"/p/a.jpg"}})
	assert.Equal(t, PhaseProcessing, m.Phase)
}

func TestResultsAndCompletion(t *testing.T) {
	m := NewModel(Config{})
	m, _ = update(t, m, PathsReadyMsg{Paths: []string{"/p/a.jpg", "/p/b.jpg"}})

	ok := domain.ProcessResult{Path: "/p/a.jpg", Backend: "openai", Outcome: domain.WriteOutcome{Title: true}}
	bad := domain.ProcessResult{Path: "/p/b.jpg", Err: appErrors.Wrap(appErrors.ParseError, "read", "/p/b.jpg", errors.New("bad"))}

	m, _ = update(t, m, ResultMsg{Done: 1, Total: 2, Result: ok})
	assert.Contains(t, m.View(), "1/2 images")

	m, _ = update(t, m, ResultMsg{Done: 2, Total: 2, Result: bad})
	m, _ = update(t, m, BatchDoneMsg{Results: []domain.ProcessResult{ok, bad}})

	assert.Equal(t, PhaseDone, m.Phase)
	assert.Equal(t, 1, m.Summary.Failed)
	view := m.View()
	assert.Contains(t, view, "1 of 2 images failed")
	assert.Contains(t, view, "parse_error")
}

func TestRecentResultsAreBounded(t *testing.T) {
	m := NewModel(Config{})
	for i := 1; i <= 10; i++ {
		m, _ = update(t, m, ResultMsg{Done: i, Total: 10, Result: domain.ProcessResult{Path: "/p/x.jpg"}})
	}
	assert.Len(t, m.recent, recentResults)
}

func TestNoImagesFound(t *testing.T) {
	m := NewModel(Config{})
	m, _ = update(t, m, PathsReadyMsg{})
	assert.Equal(t, PhaseDone, m.Phase)
	assert.Contains(t, m.View(), "No images found")
}
