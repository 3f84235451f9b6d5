package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-hawkauth/core"
	glog "github.com/goliatone/go-logger/glog"
	"golang.org/x/oauth2"
)

var passthroughTokenFields = []string{"scope", "expires_in", "id_token"}

// HTTPExchanger performs the code and token exchanges against the
// authorization server.
type HTTPExchanger struct {
	config core.Config
	client *http.Client
	rest   *RESTAdapter
	logger core.Logger
}

type ExchangerOption func(*HTTPExchanger)

func WithHTTPClient(client *http.Client) ExchangerOption {
	return func(e *HTTPExchanger) {
		if client != nil {
			e.client = client
		}
	}
}

func WithExchangerLogger(logger core.Logger) ExchangerOption {
	return func(e *HTTPExchanger) {
		e.logger = glog.Ensure(logger)
	}
}

func NewHTTPExchanger(cfg core.Config, opts ...ExchangerOption) *HTTPExchanger {
	exchanger := &HTTPExchanger{
		config: cfg,
		client: &http.Client{Timeout: defaultRESTClientTimeout},
		logger: glog.Nop(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(exchanger)
	}
	exchanger.rest = NewRESTAdapter(exchanger.client)
	return exchanger
}

// ExchangeCode posts the authorization code to the token endpoint as a form
// body carrying grant_type, code, redirect_uri and client_id.
func (e *HTTPExchanger) ExchangeCode(ctx context.Context, req core.CodeExchangeRequest) (core.OAuthToken, error) {
	if e == nil {
		return core.OAuthToken{}, transportError("transport: exchanger is nil", goerrors.CategoryInternal, http.StatusInternalServerError, nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return core.OAuthToken{}, transportError("transport: authorization code is required", goerrors.CategoryBadInput, http.StatusBadRequest, nil)
	}

	oauthCfg := e.config.OAuth2Config()
	if value := strings.TrimSpace(req.ClientID); value != "" {
		oauthCfg.ClientID = value
	}
	if value := strings.TrimSpace(req.RedirectURI); value != "" {
		oauthCfg.RedirectURL = value
	}
	if value := strings.TrimSpace(req.TokenURL); value != "" {
		oauthCfg.Endpoint.TokenURL = value
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.client)
	startedAt := time.Now()
	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		metadata := map[string]any{"token_url": oauthCfg.Endpoint.TokenURL}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			metadata["status_code"] = retrieveErr.Response.StatusCode
			if retrieveErr.ErrorCode != "" {
				metadata["error_code"] = retrieveErr.ErrorCode
			}
		}
		return core.OAuthToken{}, transportWrapError(err, goerrors.CategoryExternal, "transport: code exchange failed", http.StatusBadGateway, metadata)
	}
	e.logger.Debug("code exchanged", "token_url", oauthCfg.Endpoint.TokenURL, "duration_ms", time.Since(startedAt).Milliseconds())
	return tokenFromOAuth2(token), nil
}

// ExchangeToken trades the OAuth access token for service credentials.
func (e *HTTPExchanger) ExchangeToken(ctx context.Context, token core.OAuthToken) (core.ServiceCredentials, error) {
	if e == nil {
		return core.ServiceCredentials{}, transportError("transport: exchanger is nil", goerrors.CategoryInternal, http.StatusInternalServerError, nil)
	}
	if !token.Valid() {
		return core.ServiceCredentials{}, transportError("transport: access_token is required", goerrors.CategoryBadInput, http.StatusBadRequest, nil)
	}

	credentialsURL := strings.TrimSpace(e.config.Endpoints.CredentialsURL)
	res, err := e.rest.Do(ctx, Request{
		Method: http.MethodGet,
		URL:    credentialsURL,
		Headers: map[string]string{
			"Authorization": "Bearer " + token.AccessToken,
			"Content-Type":  "application/json",
		},
	})
	if err != nil {
		return core.ServiceCredentials{}, err
	}
	if !res.OK() {
		return core.ServiceCredentials{}, transportError(
			fmt.Sprintf("transport: credentials endpoint returned status %d", res.StatusCode),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			map[string]any{"status_code": res.StatusCode, "credentials_url": credentialsURL},
		)
	}

	var creds core.ServiceCredentials
	if err := json.Unmarshal(res.Body, &creds); err != nil {
		return core.ServiceCredentials{}, transportWrapError(err, goerrors.CategoryExternal, "transport: decode credentials response", http.StatusBadGateway, nil)
	}
	if !creds.Usable() {
		return core.ServiceCredentials{}, transportError("transport: credentials response missing clientId or accessToken", goerrors.CategoryExternal, http.StatusBadGateway, nil)
	}
	e.logger.Debug("token exchanged", "client_id", creds.ClientID(), "duration_ms", res.Duration.Milliseconds())
	return creds, nil
}

func tokenFromOAuth2(token *oauth2.Token) core.OAuthToken {
	if token == nil {
		return core.OAuthToken{}
	}
	extra := map[string]any{}
	if token.TokenType != "" {
		extra["token_type"] = token.TokenType
	}
	if token.RefreshToken != "" {
		extra["refresh_token"] = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		extra["expiry"] = token.Expiry.UTC().Format(time.RFC3339)
	}
	for _, key := range passthroughTokenFields {
		if value := token.Extra(key); value != nil {
			extra[key] = value
		}
	}
	out := core.OAuthToken{AccessToken: token.AccessToken}
	if len(extra) > 0 {
		out.Extra = extra
	}
	return out
}

var _ core.Exchanger = (*HTTPExchanger)(nil)
