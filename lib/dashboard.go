package lib

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// RunDashboard launches the live operator dashboard over source until the
// user quits or ctx is canceled. It blocks for the lifetime of the TUI.
func RunDashboard(ctx context.Context, source DashboardSource, refresh time.Duration) error {
	m := NewModel(source, refresh)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
