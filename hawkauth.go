package hawkauth

import "github.com/goliatone/go-hawkauth/core"

type Config = core.Config

type EndpointsConfig = core.EndpointsConfig

type Option = core.Option

type Controller = core.Controller

type ControllerDependencies = core.ControllerDependencies

type RecordStore = core.RecordStore
type Exchanger = core.Exchanger
type Signer = core.Signer
type SecretProvider = core.SecretProvider
type FailureNotifier = core.FailureNotifier
type CodeLedger = core.CodeLedger

type FlowState = core.FlowState
type ServiceCredentials = core.ServiceCredentials
type OAuthToken = core.OAuthToken
type SignedHeader = core.SignedHeader
type RedirectResult = core.RedirectResult
type StateChange = core.StateChange
type Status = core.Status
type Failure = core.Failure

const (
	FlowStateLoggedOut       = core.FlowStateLoggedOut
	FlowStatePendingExchange = core.FlowStatePendingExchange
	FlowStateAuthorized      = core.FlowStateAuthorized
	FlowStateExpired         = core.FlowStateExpired
)

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithRecordStore     = core.WithRecordStore
	WithSigner          = core.WithSigner
	WithExchanger       = core.WithExchanger
	WithClock           = core.WithClock
	WithFailureNotifier = core.WithFailureNotifier
	WithCodeLedger      = core.WithCodeLedger
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewController(cfg Config, opts ...Option) (*Controller, error) {
	return core.NewController(cfg, opts...)
}

func NewControllerFromDependencies(cfg Config, deps ControllerDependencies) (*Controller, error) {
	return core.NewControllerFromDependencies(cfg, deps)
}
