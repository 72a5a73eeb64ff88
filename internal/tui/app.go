package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/roster/internal/accounts"
	"github.com/mmcdole/roster/internal/domain"
	"github.com/mmcdole/roster/internal/onboarding"
	"github.com/mmcdole/roster/internal/tui/components"
	"github.com/mmcdole/roster/internal/tui/styles"
)

// ApplicationState represents the current state of the application
type ApplicationState int

const (
	StateBrowsing ApplicationState = iota
	StateOnboarding
	StateConfirmDelete
	StateHelp
)

// Layout: one header line and one footer line around the table
const ChromeHeight = 2

const statusDuration = 3 * time.Second

// Options wires the model to the rest of the application
type Options struct {
	Store         *accounts.Store
	Onboarding    *onboarding.Controller
	OpenURL       func(string) error
	CopyText      func(string) error
	SyncInterval  time.Duration // 0 disables background sync
	ConfirmDelete bool
	Logger        *slog.Logger
}

// Model is the main Bubble Tea model for the application
type Model struct {
	// Application state
	State ApplicationState
	Ready bool

	// Services
	Store      *accounts.Store
	Onboarding *onboarding.Controller

	ctx           context.Context
	openURL       func(string) error
	copyText      func(string) error
	syncInterval  time.Duration
	confirmDelete bool
	logger        *slog.Logger

	accountsSignal signal
	sessionSignal  signal

	// UI Components
	List  components.AccountList
	Modal components.OnboardingModal

	// View-owned state
	snapshot      domain.AccountsState
	selection     components.Selection
	busyIDs       map[string]bool
	switchingID   string
	refreshingAll bool
	pendingDelete []string
	actions       components.RowActions

	// Dimensions
	Width  int
	Height int

	// UI state
	StatusMsg    string
	StatusIsErr  bool
	SpinnerFrame int
}

// NewModel creates a new application model and registers it as the observer
// of the store and onboarding controller. ctx bounds every backend call the
// model starts.
func NewModel(ctx context.Context, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := Model{
		State:          StateBrowsing,
		Store:          opts.Store,
		Onboarding:     opts.Onboarding,
		ctx:            ctx,
		openURL:        opts.OpenURL,
		copyText:       opts.CopyText,
		syncInterval:   opts.SyncInterval,
		confirmDelete:  opts.ConfirmDelete,
		logger:         logger,
		accountsSignal: newSignal(),
		sessionSignal:  newSignal(),
		List:           components.NewAccountList(),
		Modal:          components.NewOnboardingModal(),
		selection:      components.Selection{},
		busyIDs:        make(map[string]bool),
	}

	store := opts.Store
	m.actions = components.RowActions{
		Select: func(id string) tea.Cmd {
			return func() tea.Msg { return ToggleSelectMsg{ID: id} }
		},
		Switch: func(id string) tea.Cmd {
			return SwitchAccountCmd(ctx, store, id)
		},
		Refresh: func(id string) tea.Cmd {
			return RefreshQuotaCmd(ctx, store, id)
		},
		ToggleProxy: func(id string, enable bool) tea.Cmd {
			return ToggleProxyCmd(ctx, store, id, enable)
		},
		Delete: func(id string) tea.Cmd {
			return DeleteAccountsCmd(ctx, store, []string{id})
		},
	}

	opts.Store.SetObserver(&AccountsObserver{ch: m.accountsSignal})
	opts.Onboarding.SetObserver(&SessionObserver{ch: m.sessionSignal})

	m.applySnapshot(opts.Store.Snapshot())
	return m
}

// Init initializes the application
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		StartStoreCmd(m.ctx, m.Store),
		waitForSignal(m.accountsSignal, AccountsChangedMsg{}),
		waitForSignal(m.sessionSignal, SessionChangedMsg{}),
		TickCmd(100 * time.Millisecond),
	}
	if m.syncInterval > 0 {
		cmds = append(cmds, SyncTickCmd(m.syncInterval))
	}
	return tea.Batch(cmds...)
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Ready = true
		m.List.SetSize(m.Width, m.Height-ChromeHeight)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case TickMsg:
		m.SpinnerFrame++
		m.Modal.SetSpinnerFrame(m.SpinnerFrame)
		return m, TickCmd(100 * time.Millisecond)

	case AccountsChangedMsg:
		m.applySnapshot(m.Store.Snapshot())
		return m, waitForSignal(m.accountsSignal, AccountsChangedMsg{})

	case SessionChangedMsg:
		m.syncSession()
		return m, waitForSignal(m.sessionSignal, SessionChangedMsg{})

	case StoreStartedMsg:
		if msg.Err != nil {
			m.logger.Warn("initial account fetch failed", "error", msg.Err)
			return m.setStatus(domain.ErrorMessage(msg.Err), true)
		}
		return m, nil

	case ToggleSelectMsg:
		m.selection = m.selection.Toggle(msg.ID)
		m.refreshProps()
		return m, nil

	case ActionDoneMsg:
		return m.handleActionDone(msg)

	case RefreshAllDoneMsg:
		m.refreshingAll = false
		if msg.Err != nil {
			return m.setStatus("Refresh failed: "+domain.ErrorMessage(msg.Err), true)
		}
		return m.setStatus(refreshSummary(msg.Stats), msg.Stats.Failed > 0)

	case SyncTickMsg:
		if m.syncInterval <= 0 {
			return m, nil
		}
		return m, tea.Batch(SyncCmd(m.ctx, m.Store), SyncTickCmd(m.syncInterval))

	case SyncDoneMsg:
		return m, nil

	case OnboardingDoneMsg:
		if msg.Err != nil && isRejection(msg.Err) {
			return m.setStatus("Finish or cancel the current operation first", true)
		}
		return m, nil

	case OnboardingCancelledMsg:
		if !msg.Closed {
			return m.setStatus("This operation cannot be cancelled", true)
		}
		m.syncSession()
		return m, nil

	case StatusMsg:
		return m.setStatus(msg.Message, msg.IsError)

	case ClearStatusMsg:
		m.StatusMsg = ""
		m.StatusIsErr = false
		return m, nil
	}

	return m, nil
}

// applySnapshot adopts a store snapshot and drops selected ids that no
// longer exist.
func (m *Model) applySnapshot(s domain.AccountsState) {
	m.snapshot = s
	m.selection = m.selection.Reconcile(domain.AccountIDs(s.Accounts))
	m.refreshProps()
}

// syncSession mirrors the controller's session into the modal
func (m *Model) syncSession() {
	session, open := m.Onboarding.Session()
	m.Modal.SetSession(session, open)
	switch {
	case open:
		m.State = StateOnboarding
	case m.State == StateOnboarding:
		m.State = StateBrowsing
	}
}

func (m *Model) tableProps() components.TableProps {
	return components.TableProps{
		Accounts:    m.snapshot.Accounts,
		Selection:   m.selection,
		BusyIDs:     m.busyIDs,
		CurrentID:   m.snapshot.CurrentID(),
		SwitchingID: m.switchingID,
		Actions:     m.actions,
	}
}

func (m *Model) refreshProps() {
	m.List.SetProps(m.tableProps())
}

func (m Model) setStatus(text string, isErr bool) (tea.Model, tea.Cmd) {
	m.StatusMsg = text
	m.StatusIsErr = isErr
	return m, ClearStatusCmd(statusDuration)
}

func (m Model) handleActionDone(msg ActionDoneMsg) (tea.Model, tea.Cmd) {
	for _, id := range msg.IDs {
		delete(m.busyIDs, id)
	}
	if msg.Action == ActionSwitch {
		m.switchingID = ""
	}
	// The store has re-fetched by now; don't wait for the signal
	m.applySnapshot(m.Store.Snapshot())

	if msg.Err != nil {
		return m.setStatus(domain.ErrorMessage(msg.Err), true)
	}

	switch msg.Action {
	case ActionSwitch:
		name := msg.IDs[0]
		if cur := m.snapshot.Current; cur != nil && cur.ID == msg.IDs[0] {
			name = cur.DisplayName()
		}
		return m.setStatus("Switched to "+name, false)
	case ActionRefresh:
		return m.setStatus("Quota refreshed", false)
	case ActionToggleProxy:
		return m.setStatus("Proxy setting updated", false)
	case ActionDelete:
		return m.setStatus(fmt.Sprintf("Deleted %d account(s)", len(msg.IDs)), false)
	}
	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.State {
	case StateHelp:
		m.State = StateBrowsing
		return m, nil
	case StateConfirmDelete:
		return m.handleConfirmKey(msg)
	case StateOnboarding:
		return m.handleOnboardingKey(msg)
	}

	// Filter typing owns the keyboard
	if m.List.IsFilterTyping() {
		var cmd tea.Cmd
		m.List, cmd = m.List.Update(msg)
		return m, cmd
	}

	row, hasRow := m.List.SelectedRow()

	switch {
	case key.Matches(msg, Keys.Quit):
		m.Onboarding.Close()
		return m, tea.Quit

	case key.Matches(msg, Keys.Help):
		m.State = StateHelp
		return m, nil

	case key.Matches(msg, Keys.Add):
		m.Onboarding.Open(onboarding.ModeOAuth)
		m.syncSession()
		return m, nil

	case key.Matches(msg, Keys.SelectAll):
		m.selection = m.selection.ToggleAll(domain.AccountIDs(m.snapshot.Accounts))
		m.refreshProps()
		return m, nil

	case key.Matches(msg, Keys.RefreshAll):
		if m.refreshingAll {
			return m, nil
		}
		m.refreshingAll = true
		return m, RefreshAllQuotasCmd(m.ctx, m.Store)

	case key.Matches(msg, Keys.DeleteSelected):
		ids := m.selection.IDs()
		if len(ids) == 0 {
			return m.setStatus("No accounts selected", true)
		}
		return m.requestDelete(ids, nil)
	}

	if hasRow {
		switch {
		case key.Matches(msg, Keys.Select):
			return m, row.OnSelect()

		case key.Matches(msg, Keys.Switch):
			cmd := row.OnSwitch()
			if cmd != nil {
				m.switchingID = row.Account.ID
				m.refreshProps()
			}
			return m, cmd

		case key.Matches(msg, Keys.Refresh):
			return m.dispatchRow(row.Account.ID, row.OnRefresh())

		case key.Matches(msg, Keys.ToggleProxy):
			return m.dispatchRow(row.Account.ID, row.OnToggleProxy())

		case key.Matches(msg, Keys.Delete):
			cmd := row.OnDelete()
			if cmd == nil {
				return m, nil
			}
			return m.requestDelete([]string{row.Account.ID}, cmd)
		}
	}

	var cmd tea.Cmd
	m.List, cmd = m.List.Update(msg)
	return m, cmd
}

// dispatchRow marks id busy while cmd runs. A nil cmd means the row is inert.
func (m Model) dispatchRow(id string, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	if cmd == nil {
		return m, nil
	}
	m.busyIDs[id] = true
	m.refreshProps()
	return m, cmd
}

// requestDelete deletes ids, asking first when confirmation is enabled.
// direct, when set, is the command from the row's own delete handler.
func (m Model) requestDelete(ids []string, direct tea.Cmd) (tea.Model, tea.Cmd) {
	if m.confirmDelete {
		m.pendingDelete = ids
		m.State = StateConfirmDelete
		return m, nil
	}
	if direct != nil {
		return m.dispatchRow(ids[0], direct)
	}
	return m.deleteNow(ids)
}

func (m Model) deleteNow(ids []string) (tea.Model, tea.Cmd) {
	for _, id := range ids {
		m.busyIDs[id] = true
	}
	m.refreshProps()
	return m, DeleteAccountsCmd(m.ctx, m.Store, ids)
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, Keys.Confirm):
		ids := m.pendingDelete
		m.pendingDelete = nil
		m.State = StateBrowsing
		return m.deleteNow(ids)
	case key.Matches(msg, Keys.Deny):
		m.pendingDelete = nil
		m.State = StateBrowsing
	}
	return m, nil
}

func (m Model) handleOnboardingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.Onboarding.Close()
		return m, tea.Quit
	}

	var cmd tea.Cmd
	var intent components.ModalIntent
	m.Modal, cmd, intent = m.Modal.Update(msg)

	switch intent.Action {
	case components.ModalCancel:
		return m, CancelOnboardingCmd(m.ctx, m.Onboarding)

	case components.ModalSelectMode:
		if !m.Onboarding.SelectMode(intent.Mode) {
			return m.setStatus("Finish or cancel the current operation first", true)
		}
		m.syncSession()
		return m, nil

	case components.ModalSubmit:
		switch intent.Mode {
		case onboarding.ModeOAuth:
			return m, BeginOAuthCmd(m.ctx, m.Onboarding)
		case onboarding.ModeToken:
			return m, SubmitTokenCmd(m.ctx, m.Onboarding, intent.Value)
		case onboarding.ModeImport:
			return m, ImportCustomDBCmd(m.ctx, m.Onboarding, intent.Value)
		}

	case components.ModalImportManagedDB:
		return m, ImportManagedDBCmd(m.ctx, m.Onboarding)

	case components.ModalImportLegacy:
		return m, ImportLegacyCmd(m.ctx, m.Onboarding)

	case components.ModalCopyURL:
		return m, CopyCmd(m.copyText, intent.Value)

	case components.ModalOpenURL:
		return m, OpenURLCmd(m.openURL, intent.Value)
	}

	return m, cmd
}

// View renders the application
func (m Model) View() string {
	if !m.Ready {
		return "Loading..."
	}

	switch m.State {
	case StateHelp:
		return m.renderHelp()
	case StateConfirmDelete:
		return m.renderDeleteConfirmation()
	case StateOnboarding:
		return lipgloss.Place(m.Width, m.Height,
			lipgloss.Center, lipgloss.Center,
			m.Modal.View())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.List.View(),
		m.renderFooter(),
	)
}

// renderHeader shows the current account
func (m Model) renderHeader() string {
	title := styles.TitleStyle.Render("roster")
	current := styles.DimStyle.Render("no current account")
	if cur := m.snapshot.Current; cur != nil {
		current = styles.DimStyle.Render("current: ") + styles.SuccessStyle.Render(cur.DisplayName())
	}
	count := styles.DimStyle.Render(fmt.Sprintf("%d accounts", len(m.snapshot.Accounts)))

	left := title + "  " + current
	gap := m.Width - lipgloss.Width(left) - lipgloss.Width(count)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + count
}

// renderFooter renders a single-line minimal footer
func (m Model) renderFooter() string {
	var left string
	switch {
	case m.isWorking():
		left = styles.RenderSpinner(m.SpinnerFrame) + " " + styles.DimStyle.Render(m.workingText())
	case m.StatusMsg != "":
		if m.StatusIsErr {
			left = styles.ErrorStyle.Render(m.StatusMsg)
		} else {
			left = styles.DimStyle.Render(m.StatusMsg)
		}
	case m.snapshot.Err != "":
		left = styles.ErrorStyle.Render(m.snapshot.Err)
	}

	var center string
	if n := m.selection.Len(); n > 0 {
		center = styles.AccentStyle.Render(fmt.Sprintf("%d selected", n)) +
			styles.DimStyle.Render(" · ") +
			styles.AccentStyle.Render("X") + styles.DimStyle.Render(" Delete")
	}

	right := styles.AccentStyle.Render("?") + styles.DimStyle.Render(" help")

	leftWidth := lipgloss.Width(left)
	centerWidth := lipgloss.Width(center)
	rightWidth := lipgloss.Width(right)

	if leftWidth+centerWidth+rightWidth >= m.Width {
		gap := m.Width - leftWidth - rightWidth
		if gap < 0 {
			gap = 0
		}
		return left + strings.Repeat(" ", gap) + right
	}

	available := m.Width - leftWidth - rightWidth
	leftPad := (available - centerWidth) / 2
	rightPad := available - centerWidth - leftPad

	return left + strings.Repeat(" ", leftPad) + center + strings.Repeat(" ", rightPad) + right
}

func (m Model) isWorking() bool {
	return m.snapshot.Busy || m.refreshingAll || m.switchingID != "" || len(m.busyIDs) > 0
}

func (m Model) workingText() string {
	switch {
	case m.refreshingAll:
		return "Refreshing all quotas..."
	case m.switchingID != "":
		return "Switching account..."
	default:
		return "Working..."
	}
}

// renderHelp renders the help screen
func (m Model) renderHelp() string {
	help := `
ACCOUNTS                        ADD ACCOUNT
  j/k        Up/down               n      Open add-account
  g/G        First/last            tab    Next method
  /          Filter by email       enter  Start / submit
  space      Select                c      Copy OAuth URL
  a          Select all            o      Open OAuth URL
                                   esc    Cancel
ACTIONS
  enter      Switch to account  OTHER
  r          Refresh quota         ?      This help
  R          Refresh all           q      Quit
  p          Toggle proxy
  x / X      Delete / selected

Press any key to return...
`

	return lipgloss.Place(m.Width, m.Height,
		lipgloss.Center, lipgloss.Center,
		styles.ModalStyle.Render(help))
}

// renderDeleteConfirmation renders the delete confirmation modal
func (m Model) renderDeleteConfirmation() string {
	target := fmt.Sprintf("%d accounts", len(m.pendingDelete))
	if len(m.pendingDelete) == 1 {
		target = m.pendingDelete[0]
		for _, acc := range m.snapshot.Accounts {
			if acc.ID == target {
				target = acc.DisplayName()
				break
			}
		}
	}

	modal := lipgloss.JoinVertical(lipgloss.Center,
		styles.ModalTitleStyle.Render("Delete account?"),
		styles.SubtitleStyle.Render(target),
		"",
		styles.DimStyle.Render("This removes the stored credentials."),
		"",
		styles.HelpKeyStyle.Render("[Y]")+" Yes      "+styles.HelpKeyStyle.Render("[N]")+" No",
	)

	return lipgloss.Place(m.Width, m.Height,
		lipgloss.Center, lipgloss.Center,
		styles.ModalStyle.Render(modal))
}
