package command

import "strings"

const (
	TypeHandleRedirect = "hawkauth.command.redirect.handle"
	TypeActivate       = "hawkauth.command.activate"
	TypeLogout         = "hawkauth.command.logout"
)

// HandleRedirectMessage carries the raw query string of the redirect URL,
// with or without the leading "?".
type HandleRedirectMessage struct {
	Query string
}

func (HandleRedirectMessage) Type() string { return TypeHandleRedirect }

func (m HandleRedirectMessage) Validate() error {
	if strings.ContainsAny(m.Query, "\r\n") {
		return commandValidationError("query", "must not contain line breaks")
	}
	return nil
}

type ActivateMessage struct{}

func (ActivateMessage) Type() string { return TypeActivate }

type LogoutMessage struct{}

func (LogoutMessage) Type() string { return TypeLogout }
