package core

import (
	"context"
	"fmt"
	"sync"

	glog "github.com/goliatone/go-logger/glog"
)

// Controller drives the authorization-code flow and owns every piece of flow
// state. It is safe for concurrent use; its lock is never held across an
// exchange call.
type Controller struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	store           *CredentialStore
	signer          Signer
	exchanger       Exchanger
	clock           Clock
	notifier        FailureNotifier
	codeLedger      CodeLedger

	mu          sync.Mutex
	state       FlowState
	generation  uint64
	credentials *ServiceCredentials
	observers   map[int]func(StateChange)
	nextObsID   int
}

// ControllerDependencies lists the collaborators a Controller can be built
// from; zero values fall back to defaults.
type ControllerDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	RecordStore     RecordStore
	Signer          Signer
	Exchanger       Exchanger
	Clock           Clock
	FailureNotifier FailureNotifier
	CodeLedger      CodeLedger
}

// NewController resolves configuration, wires dependencies and derives the
// initial state from persisted records.
func NewController(cfg Config, opts ...Option) (*Controller, error) {
	builder := defaultControllerBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("hawkauth", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.clock == nil {
		builder.clock = systemClock
	}

	finalConfig, err := resolveBuilderConfig(&builder)
	if err != nil {
		return nil, err
	}

	if builder.signer == nil {
		builder.signer = NewHawkSigner(WithSignerClock(builder.clock))
	}
	if builder.codeLedger == nil {
		builder.codeLedger = NewMemoryCodeLedger(finalConfig.CodeTTL)
	}
	if builder.notifier == nil {
		builder.notifier = logFailureNotifier{logger: logger}
	}

	controller := &Controller{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		store:           NewCredentialStore(builder.recordStore, logger),
		signer:          builder.signer,
		exchanger:       builder.exchanger,
		clock:           builder.clock,
		notifier:        builder.notifier,
		codeLedger:      builder.codeLedger,
		state:           FlowStateLoggedOut,
		observers:       map[int]func(StateChange){},
	}
	controller.Activate(context.Background())
	return controller, nil
}

// ResolveConfig layers defaults, loaded configuration and cfg exactly as
// NewController does, without building a controller. Collaborators created
// ahead of the controller use it to see the same endpoints.
func ResolveConfig(cfg Config, opts ...Option) (Config, error) {
	builder := defaultControllerBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}
	return resolveBuilderConfig(&builder)
}

func resolveBuilderConfig(builder *controllerBuilder) (Config, error) {
	if builder.errorMapper == nil {
		builder.errorMapper = MapError
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return Config{}, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return Config{}, mapBuildError(builder.errorMapper, err)
	}
	return finalConfig, nil
}

// NewControllerFromDependencies builds a Controller from a dependency struct.
func NewControllerFromDependencies(cfg Config, deps ControllerDependencies) (*Controller, error) {
	return NewController(cfg,
		WithLogger(deps.Logger),
		WithLoggerProvider(deps.LoggerProvider),
		WithMetricsRecorder(deps.MetricsRecorder),
		WithErrorMapper(deps.ErrorMapper),
		WithConfigProvider(deps.ConfigProvider),
		WithOptionsResolver(deps.OptionsResolver),
		WithRecordStore(deps.RecordStore),
		WithSigner(deps.Signer),
		WithExchanger(deps.Exchanger),
		WithClock(deps.Clock),
		WithFailureNotifier(deps.FailureNotifier),
		WithCodeLedger(deps.CodeLedger),
	)
}

func (c *Controller) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.config
}

func (c *Controller) Logger() Logger {
	if c == nil {
		return glog.Nop()
	}
	return c.logger
}

// Store exposes the typed record store backing the controller.
func (c *Controller) Store() *CredentialStore {
	if c == nil {
		return nil
	}
	return c.store
}

func (c *Controller) mapError(err error) error {
	if err == nil {
		return nil
	}
	if c == nil || c.errorMapper == nil {
		return err
	}
	mapped := c.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

type logFailureNotifier struct {
	logger Logger
}

func (n logFailureNotifier) NotifyFailure(_ context.Context, failure Failure) {
	if n.logger == nil {
		return
	}
	n.logger.Warn(fmt.Sprintf("%s: %s", failure.Kind, failure.Message), "detail", failure.Detail)
}
