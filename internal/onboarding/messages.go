package onboarding

import (
	"errors"

	"github.com/mmcdole/roster/internal/domain"
)

// MsgMissingToken is shown when a token submission is empty
const MsgMissingToken = "Please enter a refresh token"

// Action names shown in status messages
const (
	actionOAuth          = "OAuth login"
	actionAddToken       = "Add account"
	actionImportDB       = "Import from database"
	actionImportLegacy   = "Import legacy accounts"
	actionImportCustomDB = "Import from file"
)

func loadingMessage(action string) string {
	return action + "..."
}

func successMessage(action string) string {
	return action + " succeeded!"
}

// errorMessage renders err for display according to its kind
func errorMessage(action string, err error) string {
	msg := domain.ErrorMessage(err)
	switch domain.KindOf(err) {
	case domain.KindCredentialMissing:
		// The backend's message carries the remediation steps
		return msg
	case domain.KindEnvironment:
		return "Environment error: " + msg
	case domain.KindValidation:
		if errors.Is(err, domain.ErrEmptyToken) {
			return MsgMissingToken
		}
		return msg
	default:
		return action + " failed: " + msg
	}
}
