package core

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	RecordKeyOAuthToken         = "auth"
	RecordKeyServiceCredentials = "tc_auth"
)

type FlowState string

const (
	FlowStateLoggedOut       FlowState = "logged_out"
	FlowStatePendingExchange FlowState = "pending_exchange"
	FlowStateAuthorized      FlowState = "authorized"
	FlowStateExpired         FlowState = "expired"
)

func (s FlowState) String() string { return string(s) }

// AuthorizationCode is the one-time code carried by the authorization
// server redirect.
type AuthorizationCode struct {
	Code  string
	State string
}

// OAuthToken is the result of the code exchange. Fields other than
// access_token are preserved in Extra so the record persists verbatim.
type OAuthToken struct {
	AccessToken string         `json:"access_token"`
	Extra       map[string]any `json:"-"`
}

func (t OAuthToken) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Extra)+1)
	for key, value := range t.Extra {
		out[key] = value
	}
	out["access_token"] = t.AccessToken
	return json.Marshal(out)
}

func (t *OAuthToken) UnmarshalJSON(data []byte) error {
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	token, _ := raw["access_token"].(string)
	delete(raw, "access_token")
	t.AccessToken = token
	t.Extra = nil
	if len(raw) > 0 {
		t.Extra = raw
	}
	return nil
}

func (t OAuthToken) Valid() bool {
	return strings.TrimSpace(t.AccessToken) != ""
}

// CredentialMaterial is the id/key/certificate triple used for signing.
type CredentialMaterial struct {
	ClientID    string `json:"clientId"`
	AccessToken string `json:"accessToken"`
	Certificate string `json:"certificate,omitempty"`
}

// ServiceCredentials mirrors the credentials endpoint response body and is
// persisted in that shape.
type ServiceCredentials struct {
	Credentials CredentialMaterial `json:"credentials"`
	Expires     time.Time          `json:"expires"`
}

func (c ServiceCredentials) ClientID() string {
	return strings.TrimSpace(c.Credentials.ClientID)
}

func (c ServiceCredentials) HasCertificate() bool {
	return strings.TrimSpace(c.Credentials.Certificate) != ""
}

// Usable reports whether the credentials carry the material required to sign.
func (c ServiceCredentials) Usable() bool {
	return strings.TrimSpace(c.Credentials.ClientID) != "" &&
		strings.TrimSpace(c.Credentials.AccessToken) != ""
}

type SignedHeader struct {
	Field string
}

func (h SignedHeader) Empty() bool {
	return strings.TrimSpace(h.Field) == ""
}

func (h SignedHeader) String() string {
	return h.Field
}

type FailureKind string

const (
	FailureRedirectDenied FailureKind = "redirect_denied"
	FailureExchange       FailureKind = "exchange_failed"
)

// Failure is the user-visible message handed to the UI collaborator.
type Failure struct {
	Kind    FailureKind
	Message string
	Detail  string
	Err     error
}

type RedirectOutcome string

const (
	RedirectOutcomeNone       RedirectOutcome = "none"
	RedirectOutcomeIgnored    RedirectOutcome = "ignored"
	RedirectOutcomeDenied     RedirectOutcome = "denied"
	RedirectOutcomeAuthorized RedirectOutcome = "authorized"
	RedirectOutcomeFailed     RedirectOutcome = "failed"
	RedirectOutcomeDiscarded  RedirectOutcome = "discarded"
)

type RedirectResult struct {
	Outcome     RedirectOutcome
	State       FlowState
	Credentials *ServiceCredentials
}

type StateChange struct {
	From FlowState
	To   FlowState
	At   time.Time
}

// Status is the plain snapshot handed to UI glue.
type Status struct {
	State      FlowState
	Authorized bool
	ClientID   string
	Expires    *time.Time
}

func cloneServiceCredentials(in *ServiceCredentials) *ServiceCredentials {
	if in == nil {
		return nil
	}
	out := *in
	out.Expires = in.Expires.UTC()
	return &out
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
