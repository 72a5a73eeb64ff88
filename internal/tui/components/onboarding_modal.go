package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/roster/internal/onboarding"
	"github.com/mmcdole/roster/internal/tui/styles"
)

const onboardingModalWidth = 64

// ModalAction is what the user asked the add-account modal to do
type ModalAction int

const (
	ModalNone ModalAction = iota
	ModalSelectMode
	ModalSubmit
	ModalCancel
	ModalImportLegacy
	ModalImportManagedDB
	ModalCopyURL
	ModalOpenURL
)

// ModalIntent is returned by Update; the caller performs it
type ModalIntent struct {
	Action ModalAction
	Mode   onboarding.Mode
	Value  string // token or path for ModalSubmit
}

// OnboardingModal renders an onboarding session and collects input for it.
// It never drives the workflow itself.
type OnboardingModal struct {
	visible bool
	session onboarding.Session

	token textarea.Model
	path  textinput.Model

	spinnerFrame int
}

// NewOnboardingModal creates a hidden modal
func NewOnboardingModal() OnboardingModal {
	ta := textarea.New()
	ta.Placeholder = "Paste a refresh token..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 4096
	ta.SetWidth(onboardingModalWidth - 4)
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline.SetEnabled(false)

	ti := textinput.New()
	ti.Placeholder = "/path/to/state.vscdb"
	ti.Prompt = "path: "
	ti.PromptStyle = styles.FilterPromptStyle
	ti.Width = onboardingModalWidth - 12
	ti.CharLimit = 1024

	return OnboardingModal{token: ta, path: ti}
}

// SetSession mirrors the controller's session. Inputs are cleared when the
// session starts over in a different mode or the surface closes.
func (m *OnboardingModal) SetSession(s onboarding.Session, open bool) {
	if !open {
		m.visible = false
		m.session = onboarding.Session{}
		m.resetInputs()
		return
	}
	if !m.visible || s.Mode != m.session.Mode {
		m.resetInputs()
	}
	m.visible = true
	m.session = s
	m.syncFocus()
}

// IsVisible returns whether the modal is shown
func (m OnboardingModal) IsVisible() bool {
	return m.visible
}

// Session returns the session being displayed
func (m OnboardingModal) Session() onboarding.Session {
	return m.session
}

// SetSpinnerFrame advances the loading animation
func (m *OnboardingModal) SetSpinnerFrame(frame int) {
	m.spinnerFrame = frame
}

func (m *OnboardingModal) resetInputs() {
	m.token.Reset()
	m.path.SetValue("")
	m.token.Blur()
	m.path.Blur()
}

// syncFocus focuses the input for the current mode while it accepts input
func (m *OnboardingModal) syncFocus() {
	editable := m.session.Status == onboarding.StatusIdle || m.session.Status == onboarding.StatusError
	m.token.Blur()
	m.path.Blur()
	if !editable {
		return
	}
	switch m.session.Mode {
	case onboarding.ModeToken:
		m.token.Focus()
	case onboarding.ModeImport:
		m.path.Focus()
	}
}

func (m OnboardingModal) nextMode(step int) onboarding.Mode {
	modes := onboarding.Modes
	for i, mode := range modes {
		if mode == m.session.Mode {
			return modes[(i+step+len(modes))%len(modes)]
		}
	}
	return modes[0]
}

// Update handles input and returns what the user asked for
func (m OnboardingModal) Update(msg tea.Msg) (OnboardingModal, tea.Cmd, ModalIntent) {
	if !m.visible {
		return m, nil, ModalIntent{}
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil, ModalIntent{}
	}

	switch {
	case key.Matches(keyMsg, OnboardingKeys.Cancel):
		return m, nil, ModalIntent{Action: ModalCancel}
	case key.Matches(keyMsg, OnboardingKeys.NextTab):
		return m, nil, ModalIntent{Action: ModalSelectMode, Mode: m.nextMode(1)}
	case key.Matches(keyMsg, OnboardingKeys.PrevTab):
		return m, nil, ModalIntent{Action: ModalSelectMode, Mode: m.nextMode(-1)}
	case key.Matches(keyMsg, OnboardingKeys.Submit):
		intent := ModalIntent{Action: ModalSubmit, Mode: m.session.Mode}
		switch m.session.Mode {
		case onboarding.ModeToken:
			intent.Value = m.token.Value()
		case onboarding.ModeImport:
			intent.Value = m.path.Value()
		}
		return m, nil, intent
	}

	switch m.session.Mode {
	case onboarding.ModeOAuth:
		switch {
		case key.Matches(keyMsg, OnboardingKeys.Copy) && m.session.AuthorizationURL != "":
			return m, nil, ModalIntent{Action: ModalCopyURL, Value: m.session.AuthorizationURL}
		case key.Matches(keyMsg, OnboardingKeys.Open) && m.session.AuthorizationURL != "":
			return m, nil, ModalIntent{Action: ModalOpenURL, Value: m.session.AuthorizationURL}
		}
		return m, nil, ModalIntent{}
	case onboarding.ModeImport:
		switch {
		case key.Matches(keyMsg, OnboardingKeys.Legacy):
			return m, nil, ModalIntent{Action: ModalImportLegacy}
		case key.Matches(keyMsg, OnboardingKeys.ManagedDB):
			return m, nil, ModalIntent{Action: ModalImportManagedDB}
		}
	}

	var cmd tea.Cmd
	switch {
	case m.token.Focused():
		m.token, cmd = m.token.Update(msg)
	case m.path.Focused():
		m.path, cmd = m.path.Update(msg)
	}
	return m, cmd, ModalIntent{}
}

// View renders the modal
func (m OnboardingModal) View() string {
	if !m.visible {
		return ""
	}

	sections := []string{
		styles.ModalTitleStyle.Render("Add Account"),
		m.renderTabs(),
		"",
		m.renderBody(),
	}
	if status := m.renderStatus(); status != "" {
		sections = append(sections, "", status)
	}
	sections = append(sections, "", m.renderHints())

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	return styles.ModalStyle.Width(onboardingModalWidth).Render(content)
}

func (m OnboardingModal) renderTabs() string {
	tabs := make([]string, len(onboarding.Modes))
	for i, mode := range onboarding.Modes {
		style := styles.TabStyle
		if mode == m.session.Mode {
			style = styles.ActiveTabStyle
		}
		tabs[i] = style.Render(mode.Label())
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m OnboardingModal) renderBody() string {
	switch m.session.Mode {
	case onboarding.ModeOAuth:
		lines := []string{styles.SubtitleStyle.Render("Sign in with Google in your browser.")}
		if url := m.session.AuthorizationURL; url != "" {
			lines = append(lines, "",
				styles.DimStyle.Render("Authorization URL:"),
				styles.AccentStyle.Render(wrapURL(url, onboardingModalWidth-4)))
		}
		return strings.Join(lines, "\n")
	case onboarding.ModeToken:
		return styles.SubtitleStyle.Render("Refresh token:") + "\n" + m.token.View()
	case onboarding.ModeImport:
		return strings.Join([]string{
			styles.SubtitleStyle.Render("Import from a database file, the editor, or the legacy tool."),
			"",
			m.path.View(),
		}, "\n")
	}
	return ""
}

func (m OnboardingModal) renderStatus() string {
	s := m.session
	switch s.Status {
	case onboarding.StatusLoading:
		return styles.RenderSpinner(m.spinnerFrame) + " " + styles.DimStyle.Render(s.Message)
	case onboarding.StatusSuccess:
		return styles.SuccessStyle.Render("✓ " + s.Message)
	case onboarding.StatusError:
		return styles.ErrorStyle.Render(lipgloss.NewStyle().Width(onboardingModalWidth - 4).Render(s.Message))
	}
	return ""
}

func (m OnboardingModal) renderHints() string {
	hint := func(b key.Binding) string {
		h := b.Help()
		return styles.HelpKeyStyle.Render(h.Key) + " " + styles.HelpDescStyle.Render(h.Desc)
	}

	bindings := []key.Binding{OnboardingKeys.Submit, OnboardingKeys.NextTab, OnboardingKeys.Cancel}
	switch m.session.Mode {
	case onboarding.ModeOAuth:
		if m.session.AuthorizationURL != "" {
			bindings = append(bindings, OnboardingKeys.Copy, OnboardingKeys.Open)
		}
	case onboarding.ModeImport:
		bindings = append(bindings, OnboardingKeys.ManagedDB, OnboardingKeys.Legacy)
	}

	parts := make([]string, len(bindings))
	for i, b := range bindings {
		parts[i] = hint(b)
	}
	return strings.Join(parts, "  ")
}

// wrapURL hard-wraps a URL, which has no spaces to break on
func wrapURL(url string, width int) string {
	if width <= 0 || len(url) <= width {
		return url
	}
	var lines []string
	for len(url) > width {
		lines = append(lines, url[:width])
		url = url[width:]
	}
	return strings.Join(append(lines, url), "\n")
}
