package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type controllerBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	recordStore     RecordStore
	signer          Signer
	exchanger       Exchanger
	clock           Clock
	notifier        FailureNotifier
	codeLedger      CodeLedger
}

type Option func(*controllerBuilder)

func WithLogger(logger Logger) Option {
	return func(b *controllerBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *controllerBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *controllerBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *controllerBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *controllerBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *controllerBuilder) {
		b.optionsResolver = resolver
	}
}

func WithRecordStore(store RecordStore) Option {
	return func(b *controllerBuilder) {
		b.recordStore = store
	}
}

func WithSigner(signer Signer) Option {
	return func(b *controllerBuilder) {
		b.signer = signer
	}
}

func WithExchanger(exchanger Exchanger) Option {
	return func(b *controllerBuilder) {
		b.exchanger = exchanger
	}
}

func WithClock(clock Clock) Option {
	return func(b *controllerBuilder) {
		b.clock = clock
	}
}

func WithFailureNotifier(notifier FailureNotifier) Option {
	return func(b *controllerBuilder) {
		b.notifier = notifier
	}
}

func WithCodeLedger(ledger CodeLedger) Option {
	return func(b *controllerBuilder) {
		b.codeLedger = ledger
	}
}

func defaultControllerBuilder(runtime Config) controllerBuilder {
	return controllerBuilder{
		runtimeConfig:   runtime,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     MapError,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		clock:           systemClock,
	}
}

type StaticConfigLoader struct {
	Values map[string]any
}

func (l StaticConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	return copyAnyMap(l.Values), nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver layers defaults < loaded config < runtime config.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	setString := func(key string, value string) {
		if includeZero || strings.TrimSpace(value) != "" {
			layer[key] = strings.TrimSpace(value)
		}
	}
	setString("service_name", cfg.ServiceName)
	setString("client_id", cfg.ClientID)
	setString("redirect_uri", cfg.RedirectURI)
	setString("expected_state", cfg.ExpectedState)
	setString("expires", cfg.Expires)

	if includeZero || len(cfg.Scopes) > 0 {
		layer["scopes"] = append([]string(nil), cfg.Scopes...)
	}
	if includeZero || cfg.ExpiringSoonWindow > 0 {
		layer["expiring_soon_window"] = cfg.ExpiringSoonWindow
	}
	if includeZero || cfg.CodeTTL > 0 {
		layer["code_ttl"] = cfg.CodeTTL
	}

	endpoints := map[string]any{}
	for key, value := range map[string]string{
		"authorize_url":   cfg.Endpoints.AuthorizeURL,
		"token_url":       cfg.Endpoints.TokenURL,
		"credentials_url": cfg.Endpoints.CredentialsURL,
	} {
		if includeZero || strings.TrimSpace(value) != "" {
			endpoints[key] = strings.TrimSpace(value)
		}
	}
	if len(endpoints) > 0 {
		layer["endpoints"] = endpoints
	}
	return layer
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
