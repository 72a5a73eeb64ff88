// Package onboarding drives the add-account workflow.
package onboarding

// Mode is the add-account method a session is using
type Mode string

const (
	ModeOAuth  Mode = "oauth"
	ModeToken  Mode = "token"
	ModeImport Mode = "import"
)

// Modes lists every mode in display order
var Modes = []Mode{ModeOAuth, ModeToken, ModeImport}

// Label returns the tab title for the mode
func (m Mode) Label() string {
	switch m {
	case ModeOAuth:
		return "OAuth"
	case ModeToken:
		return "Refresh Token"
	case ModeImport:
		return "Import"
	default:
		return string(m)
	}
}

// Status is where a session is in its lifecycle
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Session is the state of the open add-account surface.
type Session struct {
	Mode             Mode
	Status           Status
	Message          string
	AuthorizationURL string // oauth only; set when the backend publishes it
}

// Busy reports whether the session is waiting on the backend
func (s Session) Busy() bool {
	return s.Status == StatusLoading
}

// Observer receives the session whenever it changes. open is false once the
// surface has closed; session is then the zero value.
type Observer interface {
	OnSessionChanged(session Session, open bool)
}

type noopObserver struct{}

func (noopObserver) OnSessionChanged(Session, bool) {}
