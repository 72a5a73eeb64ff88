package components

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/roster/internal/domain"
	"github.com/mmcdole/roster/internal/tui/styles"
)

// Placeholder texts
const (
	EmptyTablePlaceholder = "No accounts yet. Press n to add one."
	NoMatchesPlaceholder  = "No accounts match the filter."
)

// Column widths
const (
	checkColWidth    = 3
	currentColWidth  = 1
	quotaBarWidth    = 10
	quotaPctWidth    = 5
	lastUsedColWidth = 16
	minEmailWidth    = 12
)

// RowActions produce the commands a row dispatches. Any of them may be nil.
type RowActions struct {
	Select      func(id string) tea.Cmd
	Switch      func(id string) tea.Cmd
	Refresh     func(id string) tea.Cmd
	ToggleProxy func(id string, enable bool) tea.Cmd
	Delete      func(id string) tea.Cmd
}

// Row is one rendered account plus the handlers bound to it
type Row struct {
	Account   domain.Account
	Selected  bool
	Current   bool
	Busy      bool
	Switching bool

	OnSelect      func() tea.Cmd
	OnSwitch      func() tea.Cmd
	OnRefresh     func() tea.Cmd
	OnToggleProxy func() tea.Cmd
	OnDelete      func() tea.Cmd
}

// TableProps is everything the table renders from
type TableProps struct {
	Accounts    []domain.Account
	Selection   Selection
	BusyIDs     map[string]bool
	CurrentID   string
	SwitchingID string
	Actions     RowActions
}

// AllSelected reports whether every account is selected
func (p TableProps) AllSelected() bool {
	return len(p.Accounts) > 0 && p.Selection.Equals(domain.AccountIDs(p.Accounts))
}

func noCmd() tea.Cmd { return nil }

// BuildRows projects props into rows. Handlers are closures over each row's
// id; a row that is busy or switching gets inert handlers, and the current
// account cannot be switched to.
func BuildRows(p TableProps) []Row {
	rows := make([]Row, len(p.Accounts))
	for i, acc := range p.Accounts {
		id := acc.ID
		row := Row{
			Account:       acc,
			Selected:      p.Selection.Has(id),
			Current:       id == p.CurrentID,
			Busy:          p.BusyIDs[id],
			Switching:     id == p.SwitchingID,
			OnSelect:      noCmd,
			OnSwitch:      noCmd,
			OnRefresh:     noCmd,
			OnToggleProxy: noCmd,
			OnDelete:      noCmd,
		}

		a := p.Actions
		if a.Select != nil {
			row.OnSelect = func() tea.Cmd { return a.Select(id) }
		}
		if !row.Busy && !row.Switching {
			if a.Switch != nil && !row.Current {
				row.OnSwitch = func() tea.Cmd { return a.Switch(id) }
			}
			if a.Refresh != nil {
				row.OnRefresh = func() tea.Cmd { return a.Refresh(id) }
			}
			if a.ToggleProxy != nil {
				enable := acc.ProxyDisabled
				row.OnToggleProxy = func() tea.Cmd { return a.ToggleProxy(id, enable) }
			}
			if a.Delete != nil {
				row.OnDelete = func() tea.Cmd { return a.Delete(id) }
			}
		}
		rows[i] = row
	}
	return rows
}

// TableView is the viewport the table is drawn into
type TableView struct {
	Cursor int
	Offset int
	Width  int
	Height int // rows available, including the header
}

// RenderTable draws props into view. It has no side effects.
func RenderTable(p TableProps, view TableView) string {
	if view.Width < 20 {
		view.Width = 20
	}
	if len(p.Accounts) == 0 {
		return styles.DimStyle.Render(EmptyTablePlaceholder)
	}

	emailWidth := emailColumnWidth(view.Width)
	lines := []string{renderHeader(p, emailWidth, view.Width)}

	maxRows := view.Height - 1
	if maxRows < 1 {
		maxRows = 1
	}
	rows := BuildRows(p)
	end := view.Offset + maxRows
	if end > len(rows) {
		end = len(rows)
	}
	for i := view.Offset; i < end; i++ {
		lines = append(lines, renderRow(rows[i], i == view.Cursor, emailWidth, view.Width))
	}

	return strings.Join(lines, "\n")
}

func emailColumnWidth(width int) int {
	// checkbox, current, quota, last-used, badges and the gaps between them
	fixed := checkColWidth + currentColWidth + quotaBarWidth + quotaPctWidth + lastUsedColWidth + 14 + 7
	w := width - fixed
	if w < minEmailWidth {
		w = minEmailWidth
	}
	return w
}

func renderHeader(p TableProps, emailWidth, width int) string {
	check := styles.UncheckedChar
	if p.AllSelected() {
		check = styles.CheckedChar
	}
	header := fmt.Sprintf("%s   %s %s %s",
		check,
		styles.Pad("ACCOUNT", emailWidth),
		styles.Pad("QUOTA", quotaBarWidth+quotaPctWidth+1),
		styles.Pad("LAST USED", lastUsedColWidth),
	)
	return styles.DimStyle.Render(" " + styles.Truncate(header, width-2))
}

func renderRow(row Row, selected bool, emailWidth, width int) string {
	acc := row.Account

	check := styles.UncheckedChar
	if row.Selected {
		check = styles.CheckedChar
	}

	current := " "
	var currentFg *lipgloss.Color
	if row.Current {
		current = styles.CurrentChar
		currentFg = styles.Fg(styles.Green)
	}

	var statusFg *lipgloss.Color
	if row.Busy || row.Switching {
		statusFg = styles.Fg(styles.DimGray)
	}

	parts := []styles.RowPart{
		{Text: check + " "},
		{Text: current, Foreground: currentFg},
		{Text: " "},
		{Text: styles.Pad(acc.DisplayName(), emailWidth) + " ", Foreground: statusFg},
		{Text: renderQuota(acc.Quota) + " "},
		{Text: styles.Pad(formatLastUsed(acc), lastUsedColWidth) + " ", Foreground: styles.Fg(styles.DimGray)},
	}
	parts = append(parts, rowBadges(row)...)

	return styles.RenderListRow(parts, selected, width)
}

// renderQuota returns the lowest model's bar and percentage, or a dash
func renderQuota(q *domain.Quota) string {
	lowest, ok := q.Lowest()
	if !ok {
		return styles.Pad("-", quotaBarWidth+quotaPctWidth+1)
	}
	return styles.RenderQuotaBar(lowest.Percentage, quotaBarWidth) + " " +
		styles.Pad(fmt.Sprintf("%d%%", lowest.Percentage), quotaPctWidth)
}

func formatLastUsed(acc domain.Account) string {
	if acc.LastUsed.IsZero() {
		return "never"
	}
	return acc.LastUsed.Local().Format("2006-01-02 15:04")
}

func rowBadges(row Row) []styles.RowPart {
	var parts []styles.RowPart
	switch {
	case row.Switching:
		parts = append(parts, styles.RowPart{Text: "switching…", Foreground: styles.Fg(styles.Accent)})
	case row.Busy:
		parts = append(parts, styles.RowPart{Text: "working…", Foreground: styles.Fg(styles.Accent)})
	case row.Current:
		parts = append(parts, styles.RowPart{Text: "current", Foreground: styles.Fg(styles.Green)})
	}
	if row.Account.IsForbidden() {
		parts = append(parts, styles.RowPart{Text: " forbidden", Foreground: styles.Fg(styles.Red)})
	}
	if row.Account.ProxyDisabled {
		parts = append(parts, styles.RowPart{Text: " proxy off", Foreground: styles.Fg(styles.Yellow)})
	}
	return parts
}
