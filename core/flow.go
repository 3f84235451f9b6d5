package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const loginFailedMessage = "Login failed"

// HandleRedirect processes the query string the authorization server
// redirected back with. An error redirect notifies the failure sink and
// persists nothing. A code whose state matches the configured state is
// exchanged for an OAuth token and then for service credentials; both records
// are persisted only when both exchanges succeed.
func (c *Controller) HandleRedirect(ctx context.Context, query string) (RedirectResult, error) {
	if c == nil {
		return RedirectResult{}, fmt.Errorf("core: controller is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := time.Now()

	params := ParseQuery(query)
	if len(params) == 0 {
		return RedirectResult{Outcome: RedirectOutcomeNone, State: c.State()}, nil
	}

	if errorValue, ok := params["error"]; ok {
		detail := strings.TrimSpace(errorValue)
		if description := strings.TrimSpace(params["error_description"]); description != "" {
			detail = detail + ": " + description
		}
		c.notify(ctx, Failure{
			Kind:    FailureRedirectDenied,
			Message: loginFailedMessage,
			Detail:  detail,
			Err:     ErrRedirectDenied,
		})
		err := wrapAuthError(ErrRedirectDenied, goerrors.CategoryAuth, AuthErrorRedirectDenied, "core: authorization was denied").
			WithMetadata(map[string]any{"error": errorValue})
		state := c.State()
		c.observeOperation(ctx, startedAt, "handle_redirect", err, map[string]any{
			"outcome": RedirectOutcomeDenied,
			"state":   state,
		})
		return RedirectResult{Outcome: RedirectOutcomeDenied, State: state}, err
	}

	code, ok := AuthorizationCodeFromQuery(params)
	if !ok || code.State != c.config.ExpectedState {
		c.logDebug(ctx, "redirect ignored", map[string]any{
			"has_code":       ok,
			"state_matches":  ok && code.State == c.config.ExpectedState,
			"expected_state": c.config.ExpectedState,
		})
		return RedirectResult{Outcome: RedirectOutcomeIgnored, State: c.State()}, nil
	}

	if c.exchanger == nil {
		err := newAuthError("core: exchanger is not configured", goerrors.CategoryInternal, AuthErrorInternal)
		c.observeOperation(ctx, startedAt, "handle_redirect", err, nil)
		return RedirectResult{Outcome: RedirectOutcomeFailed, State: c.State()}, err
	}

	if err := c.codeLedger.Consume(ctx, code); err != nil {
		mapped := c.mapError(err)
		state := c.State()
		c.observeOperation(ctx, startedAt, "handle_redirect", mapped, map[string]any{
			"outcome": RedirectOutcomeFailed,
			"state":   state,
		})
		return RedirectResult{Outcome: RedirectOutcomeFailed, State: state}, mapped
	}

	c.mu.Lock()
	c.generation++
	generation := c.generation
	change, changed := c.transitionLocked(FlowStatePendingExchange)
	c.mu.Unlock()
	c.emit(changed, change)

	token, err := c.exchanger.ExchangeCode(ctx, CodeExchangeRequest{
		Code:        code.Code,
		RedirectURI: c.config.RedirectURI,
		ClientID:    c.config.ClientID,
		TokenURL:    c.config.Endpoints.TokenURL,
	})
	if err == nil && !token.Valid() {
		err = fmt.Errorf("core: token response missing access_token")
	}
	if err != nil {
		return c.failExchange(ctx, startedAt, generation, "code", err)
	}

	creds, err := c.exchanger.ExchangeToken(ctx, token)
	if err == nil && !creds.Usable() {
		err = fmt.Errorf("core: credentials response missing clientId or accessToken")
	}
	if err == nil && IsExpired(creds, c.clock()) {
		err = fmt.Errorf("core: credentials response already expired")
	}
	if err != nil {
		return c.failExchange(ctx, startedAt, generation, "token", err)
	}

	c.mu.Lock()
	if c.generation != generation {
		state := c.state
		c.mu.Unlock()
		err := newAuthError(ErrStaleResult.Error(), goerrors.CategoryConflict, AuthErrorStaleResult)
		c.observeOperation(ctx, startedAt, "handle_redirect", err, map[string]any{
			"outcome": RedirectOutcomeDiscarded,
			"state":   state,
		})
		return RedirectResult{Outcome: RedirectOutcomeDiscarded, State: state}, err
	}
	if err := c.persistLocked(ctx, token, creds); err != nil {
		change, changed := c.transitionLocked(FlowStateLoggedOut)
		c.mu.Unlock()
		c.emit(changed, change)
		return c.reportExchangeFailure(ctx, startedAt, "persist", err)
	}
	c.credentials = cloneServiceCredentials(&creds)
	change, changed = c.transitionLocked(FlowStateAuthorized)
	c.mu.Unlock()
	c.emit(changed, change)

	c.observeOperation(ctx, startedAt, "handle_redirect", nil, map[string]any{
		"outcome":   RedirectOutcomeAuthorized,
		"state":     FlowStateAuthorized,
		"client_id": creds.ClientID(),
	})
	return RedirectResult{
		Outcome:     RedirectOutcomeAuthorized,
		State:       FlowStateAuthorized,
		Credentials: cloneServiceCredentials(&creds),
	}, nil
}

func (c *Controller) persistLocked(ctx context.Context, token OAuthToken, creds ServiceCredentials) error {
	if err := c.store.SaveToken(ctx, token); err != nil {
		return err
	}
	if err := c.store.SaveCredentials(ctx, creds); err != nil {
		if clearErr := c.store.ClearAll(ctx); clearErr != nil {
			c.logError(ctx, "rollback after partial persist failed", map[string]any{"error": clearErr.Error()})
		}
		return err
	}
	return nil
}

func (c *Controller) failExchange(
	ctx context.Context,
	startedAt time.Time,
	generation uint64,
	stage string,
	cause error,
) (RedirectResult, error) {
	c.mu.Lock()
	if c.generation != generation {
		state := c.state
		c.mu.Unlock()
		err := newAuthError(ErrStaleResult.Error(), goerrors.CategoryConflict, AuthErrorStaleResult)
		c.observeOperation(ctx, startedAt, "handle_redirect", err, map[string]any{
			"outcome": RedirectOutcomeDiscarded,
			"state":   state,
			"stage":   stage,
		})
		return RedirectResult{Outcome: RedirectOutcomeDiscarded, State: state}, err
	}
	if err := c.store.ClearAll(ctx); err != nil {
		c.logError(ctx, "clear after failed exchange failed", map[string]any{"error": err.Error()})
	}
	c.credentials = nil
	change, changed := c.transitionLocked(FlowStateLoggedOut)
	c.mu.Unlock()
	c.emit(changed, change)
	return c.reportExchangeFailure(ctx, startedAt, stage, cause)
}

func (c *Controller) reportExchangeFailure(
	ctx context.Context,
	startedAt time.Time,
	stage string,
	cause error,
) (RedirectResult, error) {
	c.notify(ctx, Failure{
		Kind:    FailureExchange,
		Message: loginFailedMessage,
		Detail:  cause.Error(),
		Err:     cause,
	})
	err := wrapAuthError(cause, goerrors.CategoryExternal, AuthErrorExchangeFailed, "core: "+stage+" exchange failed").
		WithMetadata(map[string]any{"stage": stage})
	c.observeOperation(ctx, startedAt, "handle_redirect", err, map[string]any{
		"outcome": RedirectOutcomeFailed,
		"state":   FlowStateLoggedOut,
		"stage":   stage,
	})
	return RedirectResult{Outcome: RedirectOutcomeFailed, State: FlowStateLoggedOut}, err
}

// Activate derives the flow state from the persisted records. Expired
// credentials are cleared. An OAuth token persisted without credentials is
// removed since it cannot sign anything on its own.
func (c *Controller) Activate(ctx context.Context) FlowState {
	if c == nil {
		return FlowStateLoggedOut
	}
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := time.Now()

	c.mu.Lock()
	if c.state == FlowStatePendingExchange {
		state := c.state
		c.mu.Unlock()
		return state
	}

	var next FlowState
	creds, ok := c.store.LoadCredentials(ctx)
	switch {
	case ok && !IsExpired(creds, c.clock()):
		c.credentials = cloneServiceCredentials(&creds)
		next = FlowStateAuthorized
	case ok:
		c.clearLocked(ctx)
		next = FlowStateExpired
	default:
		if _, hasToken := c.store.LoadToken(ctx); hasToken {
			c.logDebug(ctx, "dropping token persisted without credentials", nil)
		}
		c.clearLocked(ctx)
		next = FlowStateLoggedOut
		if c.state == FlowStateExpired {
			next = FlowStateExpired
		}
	}
	change, changed := c.transitionLocked(next)
	c.mu.Unlock()
	c.emit(changed, change)

	c.observeOperation(ctx, startedAt, "activate", nil, map[string]any{"state": next})
	return next
}

// Logout clears both records and returns to LoggedOut. Any exchange still in
// flight is discarded when it completes. Calling Logout repeatedly is safe.
func (c *Controller) Logout(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("core: controller is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := time.Now()

	c.mu.Lock()
	c.generation++
	err := c.store.ClearAll(ctx)
	c.credentials = nil
	change, changed := c.transitionLocked(FlowStateLoggedOut)
	c.mu.Unlock()
	c.emit(changed, change)

	var mapped error
	if err != nil {
		mapped = c.mapError(err)
	}
	c.observeOperation(ctx, startedAt, "logout", mapped, map[string]any{"state": FlowStateLoggedOut})
	return mapped
}

func (c *Controller) State() FlowState {
	if c == nil {
		return FlowStateLoggedOut
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsAuthorized reports whether usable, unexpired credentials are held.
func (c *Controller) IsAuthorized() bool {
	_, ok := c.Credentials()
	return ok
}

// Credentials returns a copy of the held credentials while they are
// unexpired.
func (c *Controller) Credentials() (ServiceCredentials, bool) {
	if c == nil {
		return ServiceCredentials{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != FlowStateAuthorized || c.credentials == nil {
		return ServiceCredentials{}, false
	}
	if IsExpired(*c.credentials, c.clock()) {
		return ServiceCredentials{}, false
	}
	return *cloneServiceCredentials(c.credentials), true
}

func (c *Controller) Status() Status {
	if c == nil {
		return Status{State: FlowStateLoggedOut}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	status := Status{State: c.state}
	if c.credentials != nil {
		status.ClientID = c.credentials.ClientID()
		expires := c.credentials.Expires.UTC()
		status.Expires = &expires
		status.Authorized = c.state == FlowStateAuthorized && !IsExpired(*c.credentials, c.clock())
	}
	return status
}

// CredentialState reports freshness of the held credentials.
func (c *Controller) CredentialState() CredentialState {
	if c == nil {
		return CredentialState{IsExpired: true}
	}
	c.mu.Lock()
	var creds ServiceCredentials
	if c.credentials != nil {
		creds = *cloneServiceCredentials(c.credentials)
	}
	c.mu.Unlock()
	return ResolveCredentialState(c.clock(), creds, c.config.ExpiringSoonWindow)
}

// AuthorizationHeader signs one outbound request. Expiry is checked at call
// time: expired credentials are cleared, the state moves to Expired and the
// returned header is empty. Outside the Authorized state the header is
// always empty.
func (c *Controller) AuthorizationHeader(ctx context.Context, url string, method string) (SignedHeader, error) {
	if c == nil {
		return SignedHeader{}, fmt.Errorf("core: controller is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	var creds *ServiceCredentials
	if c.state == FlowStateAuthorized {
		creds = cloneServiceCredentials(c.credentials)
	}
	var (
		change  StateChange
		changed bool
	)
	if creds != nil && IsExpired(*creds, c.clock()) {
		c.clearLocked(ctx)
		change, changed = c.transitionLocked(FlowStateExpired)
		creds = nil
	}
	c.mu.Unlock()
	c.emit(changed, change)
	if changed {
		c.logInfo(ctx, "credentials expired", map[string]any{"state": FlowStateExpired})
	}

	header, err := c.signer.Sign(creds, url, method)
	if err != nil {
		return SignedHeader{}, c.mapError(err)
	}
	return header, nil
}

// LoginURL returns the authorization server URL that starts a login.
func (c *Controller) LoginURL() (string, error) {
	if c == nil {
		return "", fmt.Errorf("core: controller is nil")
	}
	loginURL, err := BuildAuthorizeURL(c.config)
	if err != nil {
		return "", c.mapError(err)
	}
	return loginURL, nil
}

// Subscribe registers fn for state changes and returns a function that
// removes it. Observers run outside the controller lock.
func (c *Controller) Subscribe(fn func(StateChange)) func() {
	if c == nil || fn == nil {
		return func() {}
	}
	c.mu.Lock()
	id := c.nextObsID
	c.nextObsID++
	c.observers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

func (c *Controller) clearLocked(ctx context.Context) {
	if err := c.store.ClearAll(ctx); err != nil {
		c.logError(ctx, "clearing records failed", map[string]any{"error": err.Error()})
	}
	c.credentials = nil
}

func (c *Controller) transitionLocked(next FlowState) (StateChange, bool) {
	if c.state == next {
		return StateChange{}, false
	}
	change := StateChange{From: c.state, To: next, At: c.clock()}
	c.state = next
	return change, true
}

func (c *Controller) emit(changed bool, change StateChange) {
	if !changed {
		return
	}
	c.mu.Lock()
	observers := make([]func(StateChange), 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	c.mu.Unlock()
	for _, fn := range observers {
		fn(change)
	}
}

func (c *Controller) notify(ctx context.Context, failure Failure) {
	if c.notifier == nil {
		return
	}
	c.notifier.NotifyFailure(ctx, failure)
}
