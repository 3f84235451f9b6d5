package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock {
	return &testClock{now: now}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testCredentials(expires time.Time) ServiceCredentials {
	return ServiceCredentials{
		Credentials: CredentialMaterial{
			ClientID:    "mozilla-auth0/ad|Mozilla-LDAP|jdoe/tooltool",
			AccessToken: "secret-access-token",
			Certificate: `{"version":1,"scopes":["project:releng:services/tooltool/*"],"start":1,"expiry":2,"seed":"seed","signature":"sig","issuer":"static/taskcluster/login"}`,
		},
		Expires: expires,
	}
}

type stubExchanger struct {
	mu         sync.Mutex
	token      OAuthToken
	tokenErr   error
	creds      ServiceCredentials
	credsErr   error
	codeCalls  []CodeExchangeRequest
	tokenCalls []OAuthToken
	started    chan struct{}
	release    chan struct{}
}

func newStubExchanger(creds ServiceCredentials) *stubExchanger {
	return &stubExchanger{
		token: OAuthToken{AccessToken: "oauth-access-token", Extra: map[string]any{"token_type": "Bearer"}},
		creds: creds,
	}
}

func (s *stubExchanger) ExchangeCode(_ context.Context, req CodeExchangeRequest) (OAuthToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codeCalls = append(s.codeCalls, req)
	if s.tokenErr != nil {
		return OAuthToken{}, s.tokenErr
	}
	return s.token, nil
}

func (s *stubExchanger) ExchangeToken(ctx context.Context, token OAuthToken) (ServiceCredentials, error) {
	s.mu.Lock()
	s.tokenCalls = append(s.tokenCalls, token)
	started, release := s.started, s.release
	creds, err := s.creds, s.credsErr
	s.mu.Unlock()

	if started != nil {
		close(started)
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return ServiceCredentials{}, ctx.Err()
		}
	}
	if err != nil {
		return ServiceCredentials{}, err
	}
	return creds, nil
}

func (s *stubExchanger) codeCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codeCalls)
}

func (s *stubExchanger) tokenCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokenCalls)
}

type recordingNotifier struct {
	mu       sync.Mutex
	failures []Failure
}

func (n *recordingNotifier) NotifyFailure(_ context.Context, failure Failure) {
	n.mu.Lock()
	n.failures = append(n.failures, failure)
	n.mu.Unlock()
}

func (n *recordingNotifier) all() []Failure {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Failure(nil), n.failures...)
}

type failingRecordStore struct {
	*MemoryRecordStore
	putErr map[string]error
	getErr error
}

func newFailingRecordStore() *failingRecordStore {
	return &failingRecordStore{
		MemoryRecordStore: NewMemoryRecordStore(),
		putErr:            map[string]error{},
	}
}

func (s *failingRecordStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.getErr != nil {
		return "", false, s.getErr
	}
	return s.MemoryRecordStore.Get(ctx, key)
}

func (s *failingRecordStore) Put(ctx context.Context, key string, value string) error {
	if err := s.putErr[key]; err != nil {
		return err
	}
	return s.MemoryRecordStore.Put(ctx, key, value)
}

type metricCall struct {
	name  string
	value float64
	tags  map[string]string
}

type recordingMetrics struct {
	mu         sync.Mutex
	counters   []metricCall
	histograms []metricCall
}

func (m *recordingMetrics) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	m.counters = append(m.counters, metricCall{name: name, value: float64(value), tags: tags})
	m.mu.Unlock()
}

func (m *recordingMetrics) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	m.histograms = append(m.histograms, metricCall{name: name, value: value, tags: tags})
	m.mu.Unlock()
}

func (m *recordingMetrics) counter(name string) (metricCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.counters) - 1; i >= 0; i-- {
		if m.counters[i].name == name {
			return m.counters[i], true
		}
	}
	return metricCall{}, false
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

type capturingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *capturingLogger) record(level string, msg string, args ...any) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: append([]any(nil), args...)})
	l.mu.Unlock()
}

func (l *capturingLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *capturingLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *capturingLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *capturingLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *capturingLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *capturingLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *capturingLogger) WithContext(context.Context) glog.Logger { return l }

func (l *capturingLogger) has(level string, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range l.entries {
		if entry.level == level && entry.msg == msg {
			return true
		}
	}
	return false
}

var _ glog.Logger = (*capturingLogger)(nil)

type controllerFixture struct {
	controller *Controller
	records    *MemoryRecordStore
	store      *CredentialStore
	exchanger  *stubExchanger
	notifier   *recordingNotifier
	clock      *testClock
}

func newControllerFixture(t *testing.T, seed func(*CredentialStore), opts ...Option) controllerFixture {
	t.Helper()
	clock := newTestClock(testNow)
	records := NewMemoryRecordStore()
	store := NewCredentialStore(records, nil)
	if seed != nil {
		seed(store)
	}
	exchanger := newStubExchanger(testCredentials(testNow.Add(time.Hour)))
	notifier := &recordingNotifier{}

	base := []Option{
		WithRecordStore(records),
		WithExchanger(exchanger),
		WithFailureNotifier(notifier),
		WithClock(clock.Now),
	}
	controller, err := NewController(Config{}, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return controllerFixture{
		controller: controller,
		records:    records,
		store:      store,
		exchanger:  exchanger,
		notifier:   notifier,
		clock:      clock,
	}
}

func mustSeedCredentials(creds ServiceCredentials) func(*CredentialStore) {
	return func(store *CredentialStore) {
		if err := store.SaveToken(context.Background(), OAuthToken{AccessToken: "seeded"}); err != nil {
			panic(fmt.Sprintf("seed token: %v", err))
		}
		if err := store.SaveCredentials(context.Background(), creds); err != nil {
			panic(fmt.Sprintf("seed credentials: %v", err))
		}
	}
}
