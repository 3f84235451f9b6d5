package core

import (
	"context"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// RecordStore persists raw string records under stable keys. Get reports
// ok=false for absent keys.
type RecordStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Put(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}

// Exchanger performs the two network exchanges of the flow.
type Exchanger interface {
	ExchangeCode(ctx context.Context, req CodeExchangeRequest) (OAuthToken, error)
	ExchangeToken(ctx context.Context, token OAuthToken) (ServiceCredentials, error)
}

type CodeExchangeRequest struct {
	Code        string
	RedirectURI string
	ClientID    string
	TokenURL    string
}

// Signer produces per-request authorization headers.
type Signer interface {
	Sign(creds *ServiceCredentials, url string, method string) (SignedHeader, error)
}

type RequestSigner interface {
	Signer
	SignRequest(ctx context.Context, req *http.Request, creds *ServiceCredentials) error
}

// FailureNotifier receives user-visible failures.
type FailureNotifier interface {
	NotifyFailure(ctx context.Context, failure Failure)
}

type FailureNotifierFunc func(ctx context.Context, failure Failure)

func (f FailureNotifierFunc) NotifyFailure(ctx context.Context, failure Failure) {
	if f != nil {
		f(ctx, failure)
	}
}

// CodeLedger marks authorization codes as consumed.
type CodeLedger interface {
	Consume(ctx context.Context, code AuthorizationCode) error
}

type Clock func() time.Time

type NonceSource func() (string, error)

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

func systemClock() time.Time {
	return time.Now().UTC()
}
