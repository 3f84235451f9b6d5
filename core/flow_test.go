package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestHandleRedirect_ErrorQueryNotifiesOnceAndPersistsNothing(t *testing.T) {
	fx := newControllerFixture(t, nil)

	result, err := fx.controller.HandleRedirect(context.Background(), "?error=access_denied&state=5")
	if err == nil {
		t.Fatalf("expected denied redirect error")
	}
	if !IsTextCode(err, AuthErrorRedirectDenied) {
		t.Fatalf("expected %s, got %v", AuthErrorRedirectDenied, err)
	}
	if result.Outcome != RedirectOutcomeDenied {
		t.Fatalf("expected denied outcome, got %q", result.Outcome)
	}
	failures := fx.notifier.all()
	if len(failures) != 1 {
		t.Fatalf("expected exactly one failure notification, got %d", len(failures))
	}
	if failures[0].Kind != FailureRedirectDenied || failures[0].Message != "Login failed" {
		t.Fatalf("unexpected failure payload: %#v", failures[0])
	}
	if failures[0].Detail != "access_denied" {
		t.Fatalf("expected error detail, got %q", failures[0].Detail)
	}
	if fx.records.Len() != 0 {
		t.Fatalf("expected no persisted records, got %d", fx.records.Len())
	}
	if fx.exchanger.codeCallCount() != 0 {
		t.Fatalf("expected no exchange attempt")
	}
	if fx.controller.State() != FlowStateLoggedOut {
		t.Fatalf("expected logged out, got %q", fx.controller.State())
	}
}

func TestHandleRedirect_CodeExchangePersistsBothRecords(t *testing.T) {
	fx := newControllerFixture(t, nil)

	var (
		mu      sync.Mutex
		changes []StateChange
	)
	fx.controller.Subscribe(func(change StateChange) {
		mu.Lock()
		changes = append(changes, change)
		mu.Unlock()
	})

	result, err := fx.controller.HandleRedirect(context.Background(), "?code=abc123&state=5")
	if err != nil {
		t.Fatalf("handle redirect: %v", err)
	}
	if result.Outcome != RedirectOutcomeAuthorized || result.State != FlowStateAuthorized {
		t.Fatalf("unexpected result: %#v", result)
	}
	if result.Credentials == nil || result.Credentials.ClientID() != testCredentials(testNow).ClientID() {
		t.Fatalf("expected credentials in result")
	}

	calls := fx.exchanger.codeCalls
	if len(calls) != 1 {
		t.Fatalf("expected one code exchange, got %d", len(calls))
	}
	defaults := DefaultConfig()
	if calls[0].Code != "abc123" || calls[0].ClientID != defaults.ClientID || calls[0].RedirectURI != defaults.RedirectURI {
		t.Fatalf("unexpected code exchange request: %#v", calls[0])
	}
	if calls[0].TokenURL != defaults.Endpoints.TokenURL {
		t.Fatalf("expected token url %q, got %q", defaults.Endpoints.TokenURL, calls[0].TokenURL)
	}

	token, ok := fx.store.LoadToken(context.Background())
	if !ok || token.AccessToken != "oauth-access-token" {
		t.Fatalf("expected persisted oauth token, got %#v ok=%v", token, ok)
	}
	if token.Extra["token_type"] != "Bearer" {
		t.Fatalf("expected extra token fields to persist, got %#v", token.Extra)
	}
	creds, ok := fx.store.LoadCredentials(context.Background())
	if !ok || creds.Credentials.AccessToken != "secret-access-token" {
		t.Fatalf("expected persisted credentials, got %#v ok=%v", creds, ok)
	}
	if !fx.controller.IsAuthorized() {
		t.Fatalf("expected authorized controller")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(changes) != 2 {
		t.Fatalf("expected two state changes, got %#v", changes)
	}
	if changes[0].To != FlowStatePendingExchange || changes[1].To != FlowStateAuthorized {
		t.Fatalf("unexpected state changes: %#v", changes)
	}
}

func TestHandleRedirect_IgnoresMismatchedStateAndEmptyQuery(t *testing.T) {
	fx := newControllerFixture(t, nil)

	result, err := fx.controller.HandleRedirect(context.Background(), "code=abc&state=6")
	if err != nil {
		t.Fatalf("expected mismatched state to be ignored, got %v", err)
	}
	if result.Outcome != RedirectOutcomeIgnored {
		t.Fatalf("expected ignored outcome, got %q", result.Outcome)
	}

	result, err = fx.controller.HandleRedirect(context.Background(), "")
	if err != nil {
		t.Fatalf("expected empty query to be a no-op, got %v", err)
	}
	if result.Outcome != RedirectOutcomeNone {
		t.Fatalf("expected none outcome, got %q", result.Outcome)
	}
	if fx.exchanger.codeCallCount() != 0 {
		t.Fatalf("expected no exchange attempts")
	}
	if len(fx.notifier.all()) != 0 {
		t.Fatalf("expected no failure notifications")
	}
}

func TestHandleRedirect_RejectsReusedCode(t *testing.T) {
	fx := newControllerFixture(t, nil)
	ctx := context.Background()

	if _, err := fx.controller.HandleRedirect(ctx, "code=once&state=5"); err != nil {
		t.Fatalf("first redirect: %v", err)
	}
	result, err := fx.controller.HandleRedirect(ctx, "code=once&state=5")
	if !IsTextCode(err, AuthErrorCodeConsumed) {
		t.Fatalf("expected %s, got %v", AuthErrorCodeConsumed, err)
	}
	if result.Outcome != RedirectOutcomeFailed {
		t.Fatalf("expected failed outcome, got %q", result.Outcome)
	}
	if fx.exchanger.codeCallCount() != 1 {
		t.Fatalf("expected code to be exchanged once, got %d", fx.exchanger.codeCallCount())
	}
	if fx.controller.State() != FlowStateAuthorized {
		t.Fatalf("expected state to stay authorized, got %q", fx.controller.State())
	}
}

func TestHandleRedirect_CodeExchangeFailureLeavesNoRecords(t *testing.T) {
	fx := newControllerFixture(t, nil)
	fx.exchanger.tokenErr = errors.New("token endpoint returned 400")

	result, err := fx.controller.HandleRedirect(context.Background(), "code=abc&state=5")
	if !IsTextCode(err, AuthErrorExchangeFailed) {
		t.Fatalf("expected %s, got %v", AuthErrorExchangeFailed, err)
	}
	if result.Outcome != RedirectOutcomeFailed || result.State != FlowStateLoggedOut {
		t.Fatalf("unexpected result: %#v", result)
	}
	if fx.exchanger.tokenCallCount() != 0 {
		t.Fatalf("expected token exchange to be skipped")
	}
	failures := fx.notifier.all()
	if len(failures) != 1 || failures[0].Kind != FailureExchange {
		t.Fatalf("expected one exchange failure, got %#v", failures)
	}
	if fx.records.Len() != 0 {
		t.Fatalf("expected no records, got %d", fx.records.Len())
	}
	if fx.controller.State() != FlowStateLoggedOut {
		t.Fatalf("expected logged out, got %q", fx.controller.State())
	}
}

func TestHandleRedirect_TokenExchangeFailureDoesNotPersistToken(t *testing.T) {
	fx := newControllerFixture(t, nil)
	fx.exchanger.credsErr = errors.New("credentials endpoint returned 500")

	_, err := fx.controller.HandleRedirect(context.Background(), "code=abc&state=5")
	if !IsTextCode(err, AuthErrorExchangeFailed) {
		t.Fatalf("expected %s, got %v", AuthErrorExchangeFailed, err)
	}
	if _, ok := fx.store.LoadToken(context.Background()); ok {
		t.Fatalf("expected oauth token not to be persisted")
	}
	if len(fx.notifier.all()) != 1 {
		t.Fatalf("expected one failure notification")
	}
}

func TestHandleRedirect_RejectsAlreadyExpiredCredentials(t *testing.T) {
	fx := newControllerFixture(t, nil)
	fx.exchanger.creds = testCredentials(testNow.Add(-time.Minute))

	_, err := fx.controller.HandleRedirect(context.Background(), "code=abc&state=5")
	if !IsTextCode(err, AuthErrorExchangeFailed) {
		t.Fatalf("expected %s, got %v", AuthErrorExchangeFailed, err)
	}
	if fx.records.Len() != 0 {
		t.Fatalf("expected no records")
	}
}

func TestHandleRedirect_PartialPersistRollsBack(t *testing.T) {
	records := newFailingRecordStore()
	records.putErr[RecordKeyServiceCredentials] = errors.New("disk full")
	exchanger := newStubExchanger(testCredentials(testNow.Add(time.Hour)))
	notifier := &recordingNotifier{}
	clock := newTestClock(testNow)

	controller, err := NewController(Config{},
		WithRecordStore(records),
		WithExchanger(exchanger),
		WithFailureNotifier(notifier),
		WithClock(clock.Now),
	)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}

	_, err = controller.HandleRedirect(context.Background(), "code=abc&state=5")
	if !IsTextCode(err, AuthErrorExchangeFailed) {
		t.Fatalf("expected %s, got %v", AuthErrorExchangeFailed, err)
	}
	if records.Len() != 0 {
		t.Fatalf("expected rollback to remove the token record, have %d records", records.Len())
	}
	if controller.State() != FlowStateLoggedOut {
		t.Fatalf("expected logged out, got %q", controller.State())
	}
}

func TestLogoutDuringExchangeDiscardsResult(t *testing.T) {
	fx := newControllerFixture(t, nil)
	fx.exchanger.started = make(chan struct{})
	fx.exchanger.release = make(chan struct{})

	type outcome struct {
		result RedirectResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := fx.controller.HandleRedirect(context.Background(), "code=abc&state=5")
		done <- outcome{result: result, err: err}
	}()

	<-fx.exchanger.started
	if fx.controller.State() != FlowStatePendingExchange {
		t.Fatalf("expected pending exchange, got %q", fx.controller.State())
	}
	if err := fx.controller.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	close(fx.exchanger.release)

	got := <-done
	if !IsTextCode(got.err, AuthErrorStaleResult) {
		t.Fatalf("expected %s, got %v", AuthErrorStaleResult, got.err)
	}
	if got.result.Outcome != RedirectOutcomeDiscarded {
		t.Fatalf("expected discarded outcome, got %q", got.result.Outcome)
	}
	if fx.records.Len() != 0 {
		t.Fatalf("expected logout to win, found %d records", fx.records.Len())
	}
	if fx.controller.State() != FlowStateLoggedOut {
		t.Fatalf("expected logged out, got %q", fx.controller.State())
	}
	if len(fx.notifier.all()) != 0 {
		t.Fatalf("expected discarded result not to notify")
	}
}

func TestActivate_ExpiredCredentialsAreCleared(t *testing.T) {
	fx := newControllerFixture(t, mustSeedCredentials(testCredentials(testNow.Add(-time.Second))))

	if fx.controller.State() != FlowStateExpired {
		t.Fatalf("expected expired, got %q", fx.controller.State())
	}
	if fx.records.Len() != 0 {
		t.Fatalf("expected expired records to be cleared, got %d", fx.records.Len())
	}
	if fx.controller.IsAuthorized() {
		t.Fatalf("expected not authorized")
	}
}

func TestActivate_ValidCredentialsAuthorize(t *testing.T) {
	creds := testCredentials(testNow.Add(time.Hour))
	fx := newControllerFixture(t, mustSeedCredentials(creds))

	if fx.controller.State() != FlowStateAuthorized {
		t.Fatalf("expected authorized, got %q", fx.controller.State())
	}
	header, err := fx.controller.AuthorizationHeader(context.Background(), "https://tooltool.example/upload", "POST")
	if err != nil {
		t.Fatalf("authorization header: %v", err)
	}
	if !strings.HasPrefix(header.Field, "Hawk ") {
		t.Fatalf("expected hawk header, got %q", header.Field)
	}
	if err := VerifyHeader(header.Field, creds, "https://tooltool.example/upload", "POST", testNow); err != nil {
		t.Fatalf("verify header: %v", err)
	}

	status := fx.controller.Status()
	if !status.Authorized || status.ClientID != creds.ClientID() {
		t.Fatalf("unexpected status: %#v", status)
	}
	if status.Expires == nil || !status.Expires.Equal(creds.Expires) {
		t.Fatalf("expected expires in status")
	}
}

func TestActivate_TokenWithoutCredentialsIsNotAuthorized(t *testing.T) {
	fx := newControllerFixture(t, func(store *CredentialStore) {
		if err := store.SaveToken(context.Background(), OAuthToken{AccessToken: "orphan"}); err != nil {
			t.Fatalf("seed token: %v", err)
		}
	})

	if fx.controller.State() != FlowStateLoggedOut {
		t.Fatalf("expected logged out, got %q", fx.controller.State())
	}
	if _, ok := fx.store.LoadToken(context.Background()); ok {
		t.Fatalf("expected orphan token to be removed")
	}
}

func TestActivate_MalformedCredentialsAreAbsent(t *testing.T) {
	fx := newControllerFixture(t, func(store *CredentialStore) {
		if err := store.records.Put(context.Background(), RecordKeyServiceCredentials, "{not json"); err != nil {
			t.Fatalf("seed malformed record: %v", err)
		}
	})
	if fx.controller.State() != FlowStateLoggedOut {
		t.Fatalf("expected logged out, got %q", fx.controller.State())
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	fx := newControllerFixture(t, mustSeedCredentials(testCredentials(testNow.Add(time.Hour))))

	var (
		mu      sync.Mutex
		changes []StateChange
	)
	unsubscribe := fx.controller.Subscribe(func(change StateChange) {
		mu.Lock()
		changes = append(changes, change)
		mu.Unlock()
	})
	defer unsubscribe()

	for i := 0; i < 2; i++ {
		if err := fx.controller.Logout(context.Background()); err != nil {
			t.Fatalf("logout %d: %v", i, err)
		}
	}
	if fx.controller.State() != FlowStateLoggedOut {
		t.Fatalf("expected logged out, got %q", fx.controller.State())
	}
	if fx.records.Len() != 0 {
		t.Fatalf("expected records cleared")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(changes) != 1 || changes[0].From != FlowStateAuthorized || changes[0].To != FlowStateLoggedOut {
		t.Fatalf("expected a single authorized->logged_out change, got %#v", changes)
	}
}

func TestAuthorizationHeader_ExpiresAtCallTime(t *testing.T) {
	fx := newControllerFixture(t, mustSeedCredentials(testCredentials(testNow.Add(time.Minute))))
	if fx.controller.State() != FlowStateAuthorized {
		t.Fatalf("expected authorized, got %q", fx.controller.State())
	}

	fx.clock.Advance(2 * time.Minute)
	header, err := fx.controller.AuthorizationHeader(context.Background(), "https://tooltool.example/", "GET")
	if err != nil {
		t.Fatalf("authorization header: %v", err)
	}
	if !header.Empty() {
		t.Fatalf("expected empty header after expiry, got %q", header.Field)
	}
	if fx.controller.State() != FlowStateExpired {
		t.Fatalf("expected expired, got %q", fx.controller.State())
	}
	if fx.records.Len() != 0 {
		t.Fatalf("expected expired records to be cleared")
	}
}

func TestAuthorizationHeader_EmptyWhenLoggedOut(t *testing.T) {
	fx := newControllerFixture(t, nil)
	header, err := fx.controller.AuthorizationHeader(context.Background(), "https://tooltool.example/", "GET")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !header.Empty() {
		t.Fatalf("expected empty header, got %q", header.Field)
	}
}

func TestLoginURLCarriesAuthorizeParameters(t *testing.T) {
	fx := newControllerFixture(t, nil)
	loginURL, err := fx.controller.LoginURL()
	if err != nil {
		t.Fatalf("login url: %v", err)
	}
	for _, fragment := range []string{
		"client_id=releng-tooltool-localdev",
		"response_type=code",
		"state=5",
		"expires=5+minutes",
	} {
		if !strings.Contains(loginURL, fragment) {
			t.Fatalf("expected %q in %q", fragment, loginURL)
		}
	}
}

func TestHandleRedirect_WithoutExchangerFails(t *testing.T) {
	controller, err := NewController(Config{}, WithClock(newTestClock(testNow).Now))
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	_, err = controller.HandleRedirect(context.Background(), "code=abc&state=5")
	if !IsTextCode(err, AuthErrorInternal) {
		t.Fatalf("expected %s, got %v", AuthErrorInternal, err)
	}
}

func TestHandleRedirect_RecordsMetrics(t *testing.T) {
	metrics := &recordingMetrics{}
	fx := newControllerFixture(t, nil, WithMetricsRecorder(metrics))

	if _, err := fx.controller.HandleRedirect(context.Background(), "code=abc&state=5"); err != nil {
		t.Fatalf("handle redirect: %v", err)
	}
	call, ok := metrics.counter("hawkauth.handle_redirect.total")
	if !ok {
		t.Fatalf("expected handle_redirect counter")
	}
	if call.tags["status"] != "success" || call.tags["state"] != string(FlowStateAuthorized) {
		t.Fatalf("unexpected tags: %#v", call.tags)
	}
}

func TestCredentialState_LoggedOutAndAuthorized(t *testing.T) {
	fx := newControllerFixture(t, nil)
	state := fx.controller.CredentialState()
	if !state.IsExpired || state.HasMaterial || state.HasCertificate {
		t.Fatalf("expected empty expired state while logged out, got %#v", state)
	}

	if _, err := fx.controller.HandleRedirect(context.Background(), "code=abc&state=5"); err != nil {
		t.Fatalf("handle redirect: %v", err)
	}
	state = fx.controller.CredentialState()
	if state.IsExpired || !state.HasMaterial || !state.HasCertificate {
		t.Fatalf("expected fresh credentials, got %#v", state)
	}
	if state.ExpiresIn != time.Hour {
		t.Fatalf("expected one hour left, got %s", state.ExpiresIn)
	}
	if state.IsExpiringSoon {
		t.Fatalf("expected credentials outside the expiring soon window")
	}
}

func TestAuthorizationHeader_EmptyWhilePendingExchange(t *testing.T) {
	fx := newControllerFixture(t, mustSeedCredentials(testCredentials(testNow.Add(time.Hour))))
	if fx.controller.State() != FlowStateAuthorized {
		t.Fatalf("expected authorized, got %q", fx.controller.State())
	}
	fx.exchanger.started = make(chan struct{})
	fx.exchanger.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := fx.controller.HandleRedirect(context.Background(), "code=again&state=5")
		done <- err
	}()
	<-fx.exchanger.started

	header, err := fx.controller.AuthorizationHeader(context.Background(), "https://tooltool.example/", "GET")
	if err != nil {
		t.Fatalf("authorization header: %v", err)
	}
	if !header.Empty() {
		t.Fatalf("expected empty header while pending, got %q", header.Field)
	}
	if fx.controller.IsAuthorized() {
		t.Fatalf("expected not authorized while pending")
	}

	close(fx.exchanger.release)
	if err := <-done; err != nil {
		t.Fatalf("handle redirect: %v", err)
	}
	header, err = fx.controller.AuthorizationHeader(context.Background(), "https://tooltool.example/", "GET")
	if err != nil || header.Empty() {
		t.Fatalf("expected signed header after exchange, got %q err=%v", header.Field, err)
	}
}

func TestHandleRedirect_ConcurrentSameCodeExchangesOnce(t *testing.T) {
	fx := newControllerFixture(t, nil)
	fx.exchanger.started = make(chan struct{})
	fx.exchanger.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := fx.controller.HandleRedirect(context.Background(), "code=shared&state=5")
		done <- err
	}()
	<-fx.exchanger.started

	result, err := fx.controller.HandleRedirect(context.Background(), "code=shared&state=5")
	if !IsTextCode(err, AuthErrorCodeConsumed) {
		t.Fatalf("expected %s, got %v", AuthErrorCodeConsumed, err)
	}
	if result.State != FlowStatePendingExchange {
		t.Fatalf("expected in-flight exchange to keep pending state, got %q", result.State)
	}

	close(fx.exchanger.release)
	if err := <-done; err != nil {
		t.Fatalf("first redirect: %v", err)
	}
	if fx.exchanger.codeCallCount() != 1 {
		t.Fatalf("expected a single code exchange, got %d", fx.exchanger.codeCallCount())
	}
	if fx.controller.State() != FlowStateAuthorized {
		t.Fatalf("expected authorized, got %q", fx.controller.State())
	}
	if len(fx.notifier.all()) != 0 {
		t.Fatalf("expected no failure notifications")
	}
}

func TestHandleRedirect_NewerRedirectSupersedesInFlightExchange(t *testing.T) {
	fx := newControllerFixture(t, nil)
	fx.exchanger.started = make(chan struct{})
	fx.exchanger.release = make(chan struct{})
	firstRelease := fx.exchanger.release

	type outcome struct {
		result RedirectResult
		err    error
	}
	firstDone := make(chan outcome, 1)
	go func() {
		result, err := fx.controller.HandleRedirect(context.Background(), "code=first&state=5")
		firstDone <- outcome{result: result, err: err}
	}()
	<-fx.exchanger.started

	newer := testCredentials(testNow.Add(2 * time.Hour))
	newer.Credentials.ClientID = "newer-client"
	fx.exchanger.mu.Lock()
	fx.exchanger.started = nil
	fx.exchanger.release = nil
	fx.exchanger.creds = newer
	fx.exchanger.mu.Unlock()

	result, err := fx.controller.HandleRedirect(context.Background(), "code=second&state=5")
	if err != nil {
		t.Fatalf("second redirect: %v", err)
	}
	if result.Outcome != RedirectOutcomeAuthorized {
		t.Fatalf("expected second redirect to authorize, got %q", result.Outcome)
	}

	close(firstRelease)
	got := <-firstDone
	if !IsTextCode(got.err, AuthErrorStaleResult) {
		t.Fatalf("expected %s, got %v", AuthErrorStaleResult, got.err)
	}
	if got.result.Outcome != RedirectOutcomeDiscarded {
		t.Fatalf("expected discarded outcome, got %q", got.result.Outcome)
	}

	creds, ok := fx.controller.Credentials()
	if !ok || creds.ClientID() != "newer-client" {
		t.Fatalf("expected newer credentials to be held, got %#v ok=%v", creds, ok)
	}
	stored, ok := fx.store.LoadCredentials(context.Background())
	if !ok || stored.ClientID() != "newer-client" {
		t.Fatalf("expected newer credentials to be persisted, got %#v ok=%v", stored, ok)
	}
	if len(fx.notifier.all()) != 0 {
		t.Fatalf("expected superseded exchange not to notify")
	}
}
