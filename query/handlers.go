package query

import (
	"context"

	"github.com/goliatone/go-hawkauth/core"
)

type StatusReader interface {
	Status() core.Status
	CredentialState() core.CredentialState
}

type HeaderSource interface {
	AuthorizationHeader(ctx context.Context, url string, method string) (core.SignedHeader, error)
}

type LoginURLSource interface {
	LoginURL() (string, error)
}

type StatusQuery struct {
	reader StatusReader
}

func NewStatusQuery(reader StatusReader) *StatusQuery {
	return &StatusQuery{reader: reader}
}

func (q *StatusQuery) Query(_ context.Context, _ StatusMessage) (core.Status, error) {
	if q == nil || q.reader == nil {
		return core.Status{}, queryDependencyError("query: status reader is required")
	}
	return q.reader.Status(), nil
}

type CredentialStateQuery struct {
	reader StatusReader
}

func NewCredentialStateQuery(reader StatusReader) *CredentialStateQuery {
	return &CredentialStateQuery{reader: reader}
}

func (q *CredentialStateQuery) Query(_ context.Context, _ CredentialStateMessage) (core.CredentialState, error) {
	if q == nil || q.reader == nil {
		return core.CredentialState{}, queryDependencyError("query: status reader is required")
	}
	return q.reader.CredentialState(), nil
}

type AuthorizationHeaderQuery struct {
	source HeaderSource
}

func NewAuthorizationHeaderQuery(source HeaderSource) *AuthorizationHeaderQuery {
	return &AuthorizationHeaderQuery{source: source}
}

func (q *AuthorizationHeaderQuery) Query(ctx context.Context, msg AuthorizationHeaderMessage) (core.SignedHeader, error) {
	if q == nil || q.source == nil {
		return core.SignedHeader{}, queryDependencyError("query: header source is required")
	}
	return q.source.AuthorizationHeader(ctx, msg.URL, msg.Method)
}

type LoginURLQuery struct {
	source LoginURLSource
}

func NewLoginURLQuery(source LoginURLSource) *LoginURLQuery {
	return &LoginURLQuery{source: source}
}

func (q *LoginURLQuery) Query(_ context.Context, _ LoginURLMessage) (string, error) {
	if q == nil || q.source == nil {
		return "", queryDependencyError("query: login url source is required")
	}
	return q.source.LoginURL()
}
