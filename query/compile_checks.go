package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-hawkauth/core"
)

var (
	_ gocmd.Querier[StatusMessage, core.Status]                    = (*StatusQuery)(nil)
	_ gocmd.Querier[CredentialStateMessage, core.CredentialState]  = (*CredentialStateQuery)(nil)
	_ gocmd.Querier[AuthorizationHeaderMessage, core.SignedHeader] = (*AuthorizationHeaderQuery)(nil)
	_ gocmd.Querier[LoginURLMessage, string]                       = (*LoginURLQuery)(nil)
	_ StatusReader                                                 = (*core.Controller)(nil)
	_ HeaderSource                                                 = (*core.Controller)(nil)
	_ LoginURLSource                                               = (*core.Controller)(nil)
)
