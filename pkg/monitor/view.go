package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/marcus/fieldsync/internal/models"
)

// renderView renders the complete TUI view
func (m Model) renderView() string {
	if m.Width == 0 || m.Height == 0 {
		return "Loading..."
	}

	// Handle small terminal sizes gracefully
	if m.Width < MinWidth || m.Height < MinHeight {
		return m.renderCompact()
	}

	if m.ShowHelp {
		return m.renderHelp()
	}

	header := m.renderHeader()
	queue := m.renderQueuePanel(m.Height - 5)
	footer := m.renderFooter()

	base := lipgloss.JoinVertical(lipgloss.Left, header, queue, footer)

	// Overlay the discard confirmation if open
	if m.Confirm != nil {
		return lipgloss.Place(m.Width, m.Height, lipgloss.Center, lipgloss.Center,
			panelStyle.Render(m.Confirm.View()),
			lipgloss.WithWhitespaceChars(" "),
			lipgloss.WithWhitespaceForeground(lipgloss.Color("0")))
	}

	return base
}

// renderCompact renders a minimal view for small terminals
func (m Model) renderCompact() string {
	var s strings.Builder

	s.WriteString("fieldsync monitor (resize for full view)\n\n")
	s.WriteString(fmt.Sprintf("Queued: %d\n", m.Stats.Total))
	s.WriteString(fmt.Sprintf("pending: %d | retrying: %d | failed: %d\n",
		m.Stats.ByStatus[models.StatusPending],
		m.Stats.ByStatus[models.StatusRetrying],
		m.Stats.ByStatus[models.StatusFailed]))
	s.WriteString("\nq:quit ?:help")

	return s.String()
}

// renderHeader renders the connectivity line and queue counters
func (m Model) renderHeader() string {
	badge := offlineBadge.Render("● OFFLINE")
	if m.Stats.Online {
		badge = onlineBadge.Render("● ONLINE")
	}

	counts := fmt.Sprintf("queued %d  pending %d  retrying %d  failed %d",
		m.Stats.Total,
		m.Stats.ByStatus[models.StatusPending],
		m.Stats.ByStatus[models.StatusRetrying],
		m.Stats.ByStatus[models.StatusFailed])

	parts := []string{titleStyle.Render("fieldsync"), badge, subtleStyle.Render(counts)}
	if m.Stats.SyncInProgress {
		parts = append(parts, noticeStyle.Render("syncing..."))
	}
	return strings.Join(parts, "  ")
}

// renderQueuePanel renders the record list
func (m Model) renderQueuePanel(height int) string {
	var content strings.Builder

	if m.Searching {
		content.WriteString(m.SearchInput.View())
		content.WriteString("\n")
		height--
	} else if m.Filter != "" {
		content.WriteString(subtleStyle.Render("filter: " + m.Filter + " (esc clears)"))
		content.WriteString("\n")
		height--
	}

	records := m.filtered()
	if len(records) == 0 {
		if m.Filter != "" {
			content.WriteString(subtleStyle.Render("No records match the filter"))
		} else {
			content.WriteString(subtleStyle.Render("Queue empty, all reports delivered"))
		}
		content.WriteString("\n")
		return m.wrapPanel("QUEUE", content.String(), height)
	}

	visible := height - 2
	if visible < 1 {
		visible = 1
	}
	offset := m.ScrollOffset
	if m.Cursor < offset {
		offset = m.Cursor
	}
	if m.Cursor >= offset+visible {
		offset = m.Cursor - visible + 1
	}

	end := offset + visible
	if end > len(records) {
		end = len(records)
	}

	for i := offset; i < end; i++ {
		line := m.formatRecordLine(records[i])
		if i == m.Cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		content.WriteString(ansi.Truncate(line, m.Width-6, "…"))
		content.WriteString("\n")
	}

	return m.wrapPanel("QUEUE", content.String(), height)
}

// formatRecordLine renders one queue row
func (m Model) formatRecordLine(rec *models.SubmissionRecord) string {
	parts := []string{
		titleStyle.Render(rec.ID),
		formatStatus(rec.Status),
		subtleStyle.Render(rec.CreatedAt.Local().Format("Jan 2 15:04")),
	}
	if rec.RetryCount > 0 {
		parts = append(parts, subtleStyle.Render(fmt.Sprintf("retries:%d", rec.RetryCount)))
	}
	if rec.CreatedOffline {
		parts = append(parts, subtleStyle.Render("offline"))
	}
	if rec.LastError != "" {
		parts = append(parts, lastErrorStyle.Render(rec.LastError))
	}
	return strings.Join(parts, "  ")
}

// wrapPanel wraps content in a bordered panel with a title
func (m Model) wrapPanel(title, content string, height int) string {
	titleBar := panelTitleStyle.Render(title)
	body := lipgloss.JoinVertical(lipgloss.Left, titleBar, content)
	return panelStyle.Width(m.Width - 2).Height(height).Render(body)
}

// renderFooter renders the notice line and key hints
func (m Model) renderFooter() string {
	hints := helpStyle.Render("r:retry  d:discard  s:sync now  /:filter  j/k:move  ?:help  q:quit")
	if m.Notice == "" {
		return hints
	}
	return lipgloss.JoinVertical(lipgloss.Left, noticeStyle.Render(m.Notice), hints)
}

// renderHelp renders the help screen
func (m Model) renderHelp() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("fieldsync monitor"))
	s.WriteString("\n\n")
	s.WriteString("The queue shows every report still waiting for the collector.\n")
	s.WriteString("Delivered reports disappear; failed ones wait for you.\n\n")
	s.WriteString("  j/k, up/down   move selection\n")
	s.WriteString("  r              retry the selected report now\n")
	s.WriteString("  d              discard the selected report\n")
	s.WriteString("  s              sweep the whole queue now\n")
	s.WriteString("  /              filter by id or error text\n")
	s.WriteString("  ?              toggle this help\n")
	s.WriteString("  q              quit\n")
	return s.String()
}
