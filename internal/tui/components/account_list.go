package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/roster/internal/domain"
	"github.com/mmcdole/roster/internal/tui/styles"
	"github.com/sahilm/fuzzy"
)

// AccountList wraps the account table with a cursor, scrolling, and a fuzzy
// filter over emails. It owns no account data beyond what SetProps hands it.
type AccountList struct {
	props TableProps

	cursor int
	offset int

	width  int
	height int

	filterActive bool
	filterInput  textinput.Model
	filteredIdx  []int // indices into props.Accounts, nil = no filter
}

// NewAccountList creates an empty account list
func NewAccountList() AccountList {
	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.Prompt = "/ "
	ti.PromptStyle = styles.FilterPromptStyle
	ti.TextStyle = styles.FilterStyle

	return AccountList{filterInput: ti}
}

// SetProps replaces the rendered state, keeping the cursor on the same
// account when it still exists.
func (l *AccountList) SetProps(p TableProps) {
	var cursorID string
	if row, ok := l.SelectedRow(); ok {
		cursorID = row.Account.ID
	}

	l.props = p
	if l.filterActive {
		l.applyFilter()
	}

	l.cursor = 0
	if cursorID != "" {
		for i, acc := range l.visible() {
			if acc.ID == cursorID {
				l.cursor = i
				break
			}
		}
	}
	l.ensureVisible()
}

// Props returns the state last set
func (l AccountList) Props() TableProps {
	return l.props
}

// SetSize sets the outer dimensions
func (l *AccountList) SetSize(width, height int) {
	l.width = width
	l.height = height
	l.ensureVisible()
}

// SelectedRow returns the row under the cursor with its handlers bound
func (l AccountList) SelectedRow() (Row, bool) {
	visible := l.visible()
	if l.cursor < 0 || l.cursor >= len(visible) {
		return Row{}, false
	}
	p := l.props
	p.Accounts = visible[l.cursor : l.cursor+1]
	return BuildRows(p)[0], true
}

// ToggleFilter activates the filter input
func (l *AccountList) ToggleFilter() {
	l.filterActive = true
	l.filterInput.Focus()
	l.ensureVisible()
}

// IsFilterTyping returns true if filter is active AND input is focused
func (l AccountList) IsFilterTyping() bool {
	return l.filterActive && l.filterInput.Focused()
}

// IsFiltering returns true if filter mode is active
func (l AccountList) IsFiltering() bool {
	return l.filterActive
}

// ClearFilter deactivates the filter and shows all accounts
func (l *AccountList) ClearFilter() {
	l.filterActive = false
	l.filteredIdx = nil
	l.filterInput.SetValue("")
	l.filterInput.Blur()
	l.ensureVisible()
}

// Update handles navigation and filter typing
func (l AccountList) Update(msg tea.Msg) (AccountList, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return l, nil
	}

	// Typing into the filter
	if l.IsFilterTyping() {
		switch {
		case key.Matches(keyMsg, AccountListKeys.Escape):
			l.ClearFilter()
			return l, nil
		case key.Matches(keyMsg, AccountListKeys.Accept):
			l.filterInput.Blur()
			return l, nil
		case keyMsg.String() == "backspace" && l.filterInput.Value() == "":
			l.ClearFilter()
			return l, nil
		}
		var cmd tea.Cmd
		l.filterInput, cmd = l.filterInput.Update(msg)
		l.applyFilter()
		l.cursor = 0
		l.offset = 0
		return l, cmd
	}

	count := len(l.visible())
	switch {
	case key.Matches(keyMsg, AccountListKeys.Escape) && l.filterActive:
		l.ClearFilter()
	case key.Matches(keyMsg, AccountListKeys.Filter):
		l.ToggleFilter()
	case count == 0:
	case key.Matches(keyMsg, AccountListKeys.Down):
		if l.cursor < count-1 {
			l.cursor++
		}
	case key.Matches(keyMsg, AccountListKeys.Up):
		if l.cursor > 0 {
			l.cursor--
		}
	case key.Matches(keyMsg, AccountListKeys.Home):
		l.cursor = 0
	case key.Matches(keyMsg, AccountListKeys.End):
		l.cursor = count - 1
	}
	l.ensureVisible()
	return l, nil
}

// View renders the list
func (l AccountList) View() string {
	style := styles.ActiveBorder
	frameW, frameH := style.GetFrameSize()
	innerW := l.width - frameW
	innerH := l.height - frameH

	p := l.props
	p.Accounts = l.visible()

	var body string
	if len(p.Accounts) == 0 && len(l.props.Accounts) > 0 {
		body = styles.DimStyle.Render(NoMatchesPlaceholder)
	} else {
		body = RenderTable(p, TableView{
			Cursor: l.cursor,
			Offset: l.offset,
			Width:  innerW,
			Height: l.tableHeight(),
		})
	}

	if l.filterActive {
		body = l.filterInput.View() + "\n" + body
	}

	return style.Width(innerW).Height(innerH).Render(body)
}

func (l AccountList) visible() []domain.Account {
	if l.filteredIdx == nil {
		return l.props.Accounts
	}
	out := make([]domain.Account, len(l.filteredIdx))
	for i, idx := range l.filteredIdx {
		out[i] = l.props.Accounts[idx]
	}
	return out
}

// tableHeight is the rows available to the table, header included
func (l AccountList) tableHeight() int {
	_, frameH := styles.ActiveBorder.GetFrameSize()
	h := l.height - frameH
	if l.filterActive {
		h--
	}
	if h < 2 {
		h = 2
	}
	return h
}

func (l *AccountList) ensureVisible() {
	count := len(l.visible())
	if l.cursor >= count {
		l.cursor = count - 1
	}
	if l.cursor < 0 {
		l.cursor = 0
	}
	maxRows := l.tableHeight() - 1
	if l.cursor < l.offset {
		l.offset = l.cursor
	}
	if l.cursor >= l.offset+maxRows {
		l.offset = l.cursor - maxRows + 1
	}
}

func (l *AccountList) applyFilter() {
	query := strings.TrimSpace(l.filterInput.Value())
	if query == "" {
		l.filteredIdx = nil
		return
	}

	emails := make([]string, len(l.props.Accounts))
	for i, acc := range l.props.Accounts {
		emails[i] = strings.ToLower(acc.Email)
	}

	matches := fuzzy.Find(strings.ToLower(query), emails)
	l.filteredIdx = make([]int, len(matches))
	for i, match := range matches {
		l.filteredIdx[i] = match.Index
	}
}
