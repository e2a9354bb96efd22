// Package monitor is the live queue TUI: a read-only projection of
// engine state with per-record retry and discard actions.
package monitor

import (
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/marcus/fieldsync/internal/engine"
	"github.com/marcus/fieldsync/internal/models"
	"github.com/marcus/fieldsync/internal/store"
)

// MinWidth is the minimum terminal width for proper display
const MinWidth = 40

// MinHeight is the minimum terminal height for proper display
const MinHeight = 10

// Model is the main Bubble Tea model for the queue monitor
type Model struct {
	Engine *engine.Engine

	// Window dimensions
	Width  int
	Height int

	// Queue projection; authoritative state stays in the engine
	Records []*models.SubmissionRecord
	Stats   models.QueueStats

	// UI state
	Cursor       int
	ScrollOffset int
	ShowHelp     bool
	Notice       string
	LastRefresh  time.Time

	// Filter input ("/" to search by ID or error text)
	SearchInput textinput.Model
	Searching   bool
	Filter      string

	// Discard confirmation overlay
	Confirm       *huh.Form
	ConfirmTarget string
	confirmed     bool

	// Configuration
	RefreshInterval time.Duration
}

// TickMsg triggers a data refresh
type TickMsg time.Time

// RefreshDataMsg carries a fresh queue snapshot
type RefreshDataMsg struct {
	Records   []*models.SubmissionRecord
	Stats     models.QueueStats
	Timestamp time.Time
}

// sweepDoneMsg reports a manual sweep result
type sweepDoneMsg struct {
	attempted int
	delivered int
}

// NewModel creates a new monitor model
func NewModel(e *engine.Engine, interval time.Duration) Model {
	ti := textinput.New()
	ti.Placeholder = "filter by id or error..."
	ti.CharLimit = 64
	return Model{
		Engine:          e,
		RefreshInterval: interval,
		SearchInput:     ti,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.fetchData(),
		m.scheduleTick(),
	)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Confirmation mode: forward everything to the huh form first
	if m.Confirm != nil {
		return m.updateConfirm(msg)
	}

	// Search mode: forward most keys to the textinput
	if m.Searching {
		return m.updateSearch(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case TickMsg:
		return m, tea.Batch(m.fetchData(), m.scheduleTick())

	case RefreshDataMsg:
		m.Records = msg.Records
		m.Stats = msg.Stats
		m.LastRefresh = msg.Timestamp
		m.clampCursor()
		return m, nil

	case sweepDoneMsg:
		if msg.attempted == 0 {
			m.Notice = "nothing to sync"
		} else {
			m.Notice = syncNotice(msg.attempted, msg.delivered)
		}
		return m, m.fetchData()
	}

	return m, nil
}

// handleKey processes key input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "j", "down":
		m.Cursor++
		m.clampCursor()
		return m, nil

	case "k", "up":
		if m.Cursor > 0 {
			m.Cursor--
		}
		return m, nil

	case "r":
		return m.retrySelected()

	case "d":
		return m.confirmDiscard()

	case "s":
		m.Notice = "syncing..."
		return m, m.runSweep()

	case "/":
		m.Searching = true
		m.SearchInput.SetValue(m.Filter)
		m.SearchInput.Focus()
		return m, textinput.Blink

	case "esc":
		if m.Filter != "" {
			m.Filter = ""
			m.clampCursor()
		}
		return m, nil

	case "?":
		m.ShowHelp = !m.ShowHelp
		return m, nil
	}

	return m, nil
}

// retrySelected resets the selected record and attempts delivery.
func (m Model) retrySelected() (tea.Model, tea.Cmd) {
	rec := m.selected()
	if rec == nil {
		return m, nil
	}
	if err := m.Engine.RetryNow(rec.ID); err != nil {
		if errors.Is(err, engine.ErrOffline) {
			m.Notice = "offline: retry refused until the collector is reachable"
		} else if errors.Is(err, store.ErrNotFound) {
			m.Notice = "record already gone"
		} else {
			m.Notice = "retry failed: " + err.Error()
		}
		return m, m.fetchData()
	}
	m.Notice = "retrying " + rec.ID
	return m, m.fetchData()
}

// confirmDiscard opens the huh confirmation overlay for the selection.
func (m Model) confirmDiscard() (tea.Model, tea.Cmd) {
	rec := m.selected()
	if rec == nil {
		return m, nil
	}
	m.ConfirmTarget = rec.ID
	m.confirmed = false
	m.Confirm = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Discard " + rec.ID + "?").
				Description("The submission will be lost permanently.").
				Affirmative("Discard").
				Negative("Keep").
				Value(&m.confirmed),
		),
	)
	return m, m.Confirm.Init()
}

// updateConfirm drives the confirmation overlay until it completes.
func (m Model) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
		m.Confirm = nil
		m.ConfirmTarget = ""
		return m, nil
	}

	form, cmd := m.Confirm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.Confirm = f
	}

	if m.Confirm.State == huh.StateCompleted {
		target := m.ConfirmTarget
		doIt := m.confirmed
		m.Confirm = nil
		m.ConfirmTarget = ""
		if doIt {
			if err := m.Engine.Discard(target); err != nil && !errors.Is(err, store.ErrNotFound) {
				m.Notice = "discard failed: " + err.Error()
			} else {
				m.Notice = "discarded " + target
			}
		}
		return m, m.fetchData()
	}

	return m, cmd
}

// updateSearch drives the filter textinput until enter or esc.
func (m Model) updateSearch(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			m.Filter = strings.TrimSpace(m.SearchInput.Value())
			m.Searching = false
			m.SearchInput.Blur()
			m.Cursor = 0
			return m, nil
		case "esc":
			m.Searching = false
			m.SearchInput.Blur()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.SearchInput, cmd = m.SearchInput.Update(msg)
	return m, cmd
}

// filtered returns the records matching the active filter.
func (m Model) filtered() []*models.SubmissionRecord {
	if m.Filter == "" {
		return m.Records
	}
	needle := strings.ToLower(m.Filter)
	var out []*models.SubmissionRecord
	for _, rec := range m.Records {
		if strings.Contains(strings.ToLower(rec.ID), needle) ||
			strings.Contains(strings.ToLower(rec.LastError), needle) {
			out = append(out, rec)
		}
	}
	return out
}

// selected returns the record under the cursor, nil when the list is empty.
func (m Model) selected() *models.SubmissionRecord {
	recs := m.filtered()
	if m.Cursor < 0 || m.Cursor >= len(recs) {
		return nil
	}
	return recs[m.Cursor]
}

func (m *Model) clampCursor() {
	n := len(m.filtered())
	if m.Cursor >= n {
		m.Cursor = n - 1
	}
	if m.Cursor < 0 {
		m.Cursor = 0
	}
}

// View implements tea.Model
func (m Model) View() string {
	return m.renderView()
}

// scheduleTick returns a command that sends a TickMsg after the refresh interval
func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.RefreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// fetchData returns a command that snapshots the engine state
func (m Model) fetchData() tea.Cmd {
	e := m.Engine
	return func() tea.Msg {
		return FetchData(e)
	}
}

// runSweep triggers a manual sweep off the UI goroutine.
func (m Model) runSweep() tea.Cmd {
	e := m.Engine
	return func() tea.Msg {
		attempted, delivered := e.Sweep()
		return sweepDoneMsg{attempted: attempted, delivered: delivered}
	}
}
