package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	defaultExpectedState = "5"
	defaultExpires       = "5 minutes"
)

// EndpointsConfig holds the authorization server URLs.
type EndpointsConfig struct {
	AuthorizeURL   string `koanf:"authorize_url" mapstructure:"authorize_url"`
	TokenURL       string `koanf:"token_url" mapstructure:"token_url"`
	CredentialsURL string `koanf:"credentials_url" mapstructure:"credentials_url"`
}

type Config struct {
	ServiceName        string          `koanf:"service_name" mapstructure:"service_name"`
	ClientID           string          `koanf:"client_id" mapstructure:"client_id"`
	RedirectURI        string          `koanf:"redirect_uri" mapstructure:"redirect_uri"`
	Scopes             []string        `koanf:"scopes" mapstructure:"scopes"`
	ExpectedState      string          `koanf:"expected_state" mapstructure:"expected_state"`
	Expires            string          `koanf:"expires" mapstructure:"expires"`
	ExpiringSoonWindow time.Duration   `koanf:"expiring_soon_window" mapstructure:"expiring_soon_window"`
	CodeTTL            time.Duration   `koanf:"code_ttl" mapstructure:"code_ttl"`
	Endpoints          EndpointsConfig `koanf:"endpoints" mapstructure:"endpoints"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:        "hawkauth",
		ClientID:           "releng-tooltool-localdev",
		RedirectURI:        "https://localhost:8010/static/login.html",
		Scopes:             []string{"project:releng:services/tooltool/*"},
		ExpectedState:      defaultExpectedState,
		Expires:            defaultExpires,
		ExpiringSoonWindow: DefaultExpiringSoonWindow,
		CodeTTL:            defaultCodeTTL,
		Endpoints: EndpointsConfig{
			AuthorizeURL:   "https://firefox-ci-tc.services.mozilla.com/login/oauth/authorize",
			TokenURL:       "https://firefox-ci-tc.services.mozilla.com/login/oauth/token",
			CredentialsURL: "https://firefox-ci-tc.services.mozilla.com/login/oauth/credentials",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("core: client_id is required")
	}
	if strings.TrimSpace(c.ExpectedState) == "" {
		return fmt.Errorf("core: expected_state is required")
	}
	urls := [][2]string{
		{"redirect_uri", c.RedirectURI},
		{"endpoints.authorize_url", c.Endpoints.AuthorizeURL},
		{"endpoints.token_url", c.Endpoints.TokenURL},
		{"endpoints.credentials_url", c.Endpoints.CredentialsURL},
	}
	for _, entry := range urls {
		if err := validateAbsoluteURL(entry[0], entry[1]); err != nil {
			return err
		}
	}
	return nil
}

func validateAbsoluteURL(name string, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("core: %s is required", name)
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("core: invalid %s: must be an absolute url", name)
	}
	return nil
}
