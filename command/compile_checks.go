package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-hawkauth/core"
)

var (
	_ gocmd.Commander[HandleRedirectMessage] = (*HandleRedirectCommand)(nil)
	_ gocmd.Commander[ActivateMessage]       = (*ActivateCommand)(nil)
	_ gocmd.Commander[LogoutMessage]         = (*LogoutCommand)(nil)
	_ FlowService                            = (*core.Controller)(nil)
)
