package hawkauth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-hawkauth/adapters/gologger"
	"github.com/goliatone/go-hawkauth/core"
	"github.com/goliatone/go-hawkauth/security"
	sqlstore "github.com/goliatone/go-hawkauth/store/sql"
	"github.com/goliatone/go-hawkauth/transport"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

// StackOptions selects the collaborators NewStack wires around a controller.
// A nil DB keeps records in memory.
type StackOptions struct {
	DB             *bun.DB
	Namespace      string
	SecretKey      string
	RetiredKeys    []string
	Cache          repositorycache.CacheService
	HTTPClient     *http.Client
	Logger         core.Logger
	LoggerProvider core.LoggerProvider
}

// Stack is a controller composed with durable storage, the HTTP exchanger and
// the go-command facade.
type Stack struct {
	Controller *Controller
	Records    RecordStore
	Exchanger  *transport.HTTPExchanger
	Facade     *Facade
}

func NewStack(cfg Config, in StackOptions, opts ...Option) (*Stack, error) {
	base := append([]Option{
		WithLogger(in.Logger),
		WithLoggerProvider(in.LoggerProvider),
	}, opts...)

	resolved, err := core.ResolveConfig(cfg, base...)
	if err != nil {
		return nil, err
	}

	records, err := buildRecordStore(in)
	if err != nil {
		return nil, err
	}

	exchangerOpts := []transport.ExchangerOption{
		transport.WithExchangerLogger(gologger.ForComponent("transport", in.LoggerProvider, in.Logger)),
	}
	if in.HTTPClient != nil {
		exchangerOpts = append(exchangerOpts, transport.WithHTTPClient(in.HTTPClient))
	}
	exchanger := transport.NewHTTPExchanger(resolved, exchangerOpts...)

	controllerOpts := append([]Option{
		WithRecordStore(records),
		WithExchanger(exchanger),
	}, base...)
	controller, err := core.NewController(resolved, controllerOpts...)
	if err != nil {
		return nil, err
	}
	facade, err := NewFacade(controller)
	if err != nil {
		return nil, err
	}
	return &Stack{
		Controller: controller,
		Records:    records,
		Exchanger:  exchanger,
		Facade:     facade,
	}, nil
}

// SigningClient returns an http.Client that signs every request with the
// stack's current credentials.
func (s *Stack) SigningClient(base http.RoundTripper) *http.Client {
	if s == nil {
		return transport.NewSigningClient(nil, base)
	}
	return transport.NewSigningClient(s.Controller, base)
}

func buildRecordStore(in StackOptions) (RecordStore, error) {
	if in.DB == nil {
		return core.NewMemoryRecordStore(), nil
	}
	storeOpts := []sqlstore.RecordStoreOption{
		sqlstore.WithNamespace(in.Namespace),
		sqlstore.WithLogger(gologger.ForComponent("store", in.LoggerProvider, in.Logger)),
	}
	secrets, err := buildSecretProvider(in.SecretKey, in.RetiredKeys)
	if err != nil {
		return nil, err
	}
	if secrets != nil {
		storeOpts = append(storeOpts, sqlstore.WithSecretProvider(secrets))
	}
	store, err := sqlstore.NewRecordStoreFromDB(in.DB, storeOpts...)
	if err != nil {
		return nil, err
	}
	if in.Cache == nil {
		return store, nil
	}
	return sqlstore.NewCachedRecordStore(store, in.Cache)
}

// buildSecretProvider versions the active key after the retired ones, so
// retired key i is version i+1 and the active key is len(retired)+1.
func buildSecretProvider(activeKey string, retiredKeys []string) (core.SecretProvider, error) {
	if strings.TrimSpace(activeKey) == "" {
		if len(retiredKeys) > 0 {
			return nil, fmt.Errorf("hawkauth: retired keys require an active secret key")
		}
		return nil, nil
	}
	retired := make([]*security.AppKeySecretProvider, 0, len(retiredKeys))
	for i, key := range retiredKeys {
		provider, err := security.NewAppKeySecretProviderFromString(key, security.WithVersion(i+1))
		if err != nil {
			return nil, fmt.Errorf("hawkauth: retired key %d: %w", i+1, err)
		}
		retired = append(retired, provider)
	}
	active, err := security.NewAppKeySecretProviderFromString(activeKey, security.WithVersion(len(retiredKeys)+1))
	if err != nil {
		return nil, err
	}
	return security.NewKeyRing(active, retired...)
}
