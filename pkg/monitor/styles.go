package monitor

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/marcus/fieldsync/internal/models"
)

var (
	// Base colors
	primaryColor = lipgloss.Color("212")
	mutedColor   = lipgloss.Color("241")
	successColor = lipgloss.Color("42")
	warningColor = lipgloss.Color("214")
	errorColor   = lipgloss.Color("196")

	// Panel styles
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	// Text styles
	titleStyle     = lipgloss.NewStyle().Bold(true)
	subtleStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	helpStyle      = lipgloss.NewStyle().Foreground(mutedColor)
	noticeStyle    = lipgloss.NewStyle().Foreground(primaryColor)
	selectedStyle  = lipgloss.NewStyle().Background(lipgloss.Color("237"))
	onlineBadge    = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	offlineBadge   = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	lastErrorStyle = lipgloss.NewStyle().Foreground(errorColor)

	// Status styles
	statusStyles = map[models.Status]lipgloss.Style{
		models.StatusPending:  lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		models.StatusRetrying: lipgloss.NewStyle().Foreground(warningColor),
		models.StatusSynced:   lipgloss.NewStyle().Foreground(successColor),
		models.StatusFailed:   lipgloss.NewStyle().Foreground(errorColor),
	}
)

// formatStatus renders a status with color
func formatStatus(s models.Status) string {
	style, ok := statusStyles[s]
	if !ok {
		return string(s)
	}
	return style.Render(string(s))
}
