package query

import (
	"net/url"
	"strings"
)

const (
	TypeStatus              = "hawkauth.query.status"
	TypeCredentialState     = "hawkauth.query.credential_state"
	TypeAuthorizationHeader = "hawkauth.query.authorization_header"
	TypeLoginURL            = "hawkauth.query.login_url"
)

type StatusMessage struct{}

func (StatusMessage) Type() string { return TypeStatus }

type CredentialStateMessage struct{}

func (CredentialStateMessage) Type() string { return TypeCredentialState }

// AuthorizationHeaderMessage asks for a signed header for one outgoing
// request. An empty method means GET.
type AuthorizationHeaderMessage struct {
	URL    string
	Method string
}

func (AuthorizationHeaderMessage) Type() string { return TypeAuthorizationHeader }

func (m AuthorizationHeaderMessage) Validate() error {
	raw := strings.TrimSpace(m.URL)
	if raw == "" {
		return queryValidationError("url", "is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return queryValidationError("url", "must be an absolute url")
	}
	return nil
}

type LoginURLMessage struct{}

func (LoginURLMessage) Type() string { return TypeLoginURL }
