package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewController_AppliesLoadedAndRuntimeLayers(t *testing.T) {
	loader := StaticConfigLoader{Values: map[string]any{
		"client_id":      "loaded-client",
		"expected_state": "loaded-state",
		"endpoints": map[string]any{
			"token_url": "https://auth.example/token",
		},
	}}
	controller, err := NewController(
		Config{ExpectedState: "runtime-state"},
		WithConfigProvider(NewCfgxConfigProvider(loader)),
	)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	cfg := controller.Config()
	if cfg.ClientID != "loaded-client" {
		t.Fatalf("expected loaded client id, got %q", cfg.ClientID)
	}
	if cfg.ExpectedState != "runtime-state" {
		t.Fatalf("expected runtime to override loaded state, got %q", cfg.ExpectedState)
	}
	if cfg.Endpoints.TokenURL != "https://auth.example/token" {
		t.Fatalf("expected loaded token url, got %q", cfg.Endpoints.TokenURL)
	}
	if cfg.Endpoints.AuthorizeURL != DefaultConfig().Endpoints.AuthorizeURL {
		t.Fatalf("expected default authorize url, got %q", cfg.Endpoints.AuthorizeURL)
	}
	if cfg.CodeTTL != 15*time.Minute {
		t.Fatalf("expected default code ttl, got %s", cfg.CodeTTL)
	}
}

func TestNewController_RejectsInvalidConfig(t *testing.T) {
	_, err := NewController(Config{RedirectURI: "not a url"})
	if err == nil {
		t.Fatalf("expected invalid redirect uri to fail")
	}
	if !IsTextCode(err, AuthErrorBadInput) {
		t.Fatalf("expected %s, got %v", AuthErrorBadInput, err)
	}
}

type failingLoader struct{}

func (failingLoader) LoadRaw(context.Context) (map[string]any, error) {
	return nil, errors.New("config source unavailable")
}

func TestNewController_PropagatesLoaderFailure(t *testing.T) {
	if _, err := NewController(Config{}, WithConfigProvider(NewCfgxConfigProvider(failingLoader{}))); err == nil {
		t.Fatalf("expected loader failure")
	}
}

func TestNewController_UsesInjectedLogger(t *testing.T) {
	logger := &capturingLogger{}
	controller, err := NewController(Config{}, WithLogger(logger))
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	if controller.Logger() != logger {
		t.Fatalf("expected injected logger")
	}
	if !logger.has("info", "activate succeeded") {
		t.Fatalf("expected activation to be logged")
	}
}

func TestBuildAuthorizeURL_RequiresEndpoint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Endpoints.AuthorizeURL = ""
	if _, err := BuildAuthorizeURL(cfg); err == nil {
		t.Fatalf("expected missing authorize url to fail")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("expected default config to validate: %v", err)
	}
	cfg := DefaultConfig()
	cfg.ExpectedState = " "
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected blank expected_state to fail")
	}
}

func TestResolveConfig_MatchesControllerConfig(t *testing.T) {
	runtime := Config{Endpoints: EndpointsConfig{TokenURL: "https://auth.example/token"}}
	resolved, err := ResolveConfig(runtime)
	if err != nil {
		t.Fatalf("resolve config: %v", err)
	}
	if resolved.Endpoints.TokenURL != "https://auth.example/token" {
		t.Fatalf("expected runtime token url, got %q", resolved.Endpoints.TokenURL)
	}
	if resolved.ClientID != DefaultConfig().ClientID {
		t.Fatalf("expected default client id, got %q", resolved.ClientID)
	}

	controller, err := NewController(runtime)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	if controller.Config().Endpoints.TokenURL != resolved.Endpoints.TokenURL {
		t.Fatalf("expected controller and resolved config to agree")
	}
}

func TestResolveConfig_RejectsInvalidRuntimeURL(t *testing.T) {
	_, err := ResolveConfig(Config{Endpoints: EndpointsConfig{CredentialsURL: "not-a-url"}})
	if err == nil {
		t.Fatalf("expected invalid credentials url to fail")
	}
}
