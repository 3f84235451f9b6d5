package transport

import (
	"context"
	"net/http"

	"github.com/goliatone/go-hawkauth/core"
)

// HeaderSource yields the Authorization header for one request.
type HeaderSource interface {
	AuthorizationHeader(ctx context.Context, url string, method string) (core.SignedHeader, error)
}

// SigningRoundTripper sets a freshly signed Authorization header on every
// outbound request. Requests go out unsigned while no credentials are held.
type SigningRoundTripper struct {
	Base   http.RoundTripper
	Source HeaderSource
}

func NewSigningClient(source HeaderSource, base http.RoundTripper) *http.Client {
	return &http.Client{
		Timeout:   defaultRESTClientTimeout,
		Transport: &SigningRoundTripper{Base: base, Source: source},
	}
}

func (t *SigningRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Source == nil {
		return base.RoundTrip(req)
	}
	header, err := t.Source.AuthorizationHeader(req.Context(), req.URL.String(), req.Method)
	if err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, err
	}
	if header.Empty() {
		return base.RoundTrip(req)
	}
	signed := req.Clone(req.Context())
	signed.Header.Set("Authorization", header.Field)
	return base.RoundTrip(signed)
}
