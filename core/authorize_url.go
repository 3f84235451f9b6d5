package core

import (
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

// OAuth2Config projects the flow configuration onto an oauth2.Config. No
// client secret is involved: client_id travels in the request parameters.
func (c Config) OAuth2Config() oauth2.Config {
	return oauth2.Config{
		ClientID:    strings.TrimSpace(c.ClientID),
		RedirectURL: strings.TrimSpace(c.RedirectURI),
		Scopes:      append([]string(nil), c.Scopes...),
		Endpoint: oauth2.Endpoint{
			AuthURL:   strings.TrimSpace(c.Endpoints.AuthorizeURL),
			TokenURL:  strings.TrimSpace(c.Endpoints.TokenURL),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// BuildAuthorizeURL returns the authorization server URL the user is sent to
// on login: client_id, redirect_uri, response_type=code, scope, state and
// expires.
func BuildAuthorizeURL(cfg Config) (string, error) {
	if err := validateAbsoluteURL("endpoints.authorize_url", cfg.Endpoints.AuthorizeURL); err != nil {
		return "", err
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return "", fmt.Errorf("core: client_id is required")
	}
	oauthCfg := cfg.OAuth2Config()
	var opts []oauth2.AuthCodeOption
	if expires := strings.TrimSpace(cfg.Expires); expires != "" {
		opts = append(opts, oauth2.SetAuthURLParam("expires", expires))
	}
	return oauthCfg.AuthCodeURL(strings.TrimSpace(cfg.ExpectedState), opts...), nil
}
