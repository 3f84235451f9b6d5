package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-hawkauth/core"
)

type FlowService interface {
	HandleRedirect(ctx context.Context, query string) (core.RedirectResult, error)
	Activate(ctx context.Context) core.FlowState
	Logout(ctx context.Context) error
}

type HandleRedirectCommand struct {
	service FlowService
}

func NewHandleRedirectCommand(service FlowService) *HandleRedirectCommand {
	return &HandleRedirectCommand{service: service}
}

// Execute stores the RedirectResult in the context result collector even
// when the redirect fails, so callers can read the outcome.
func (c *HandleRedirectCommand) Execute(ctx context.Context, msg HandleRedirectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: flow service is required")
	}
	out, err := c.service.HandleRedirect(ctx, msg.Query)
	storeResult(ctx, out)
	return err
}

type ActivateCommand struct {
	service FlowService
}

func NewActivateCommand(service FlowService) *ActivateCommand {
	return &ActivateCommand{service: service}
}

func (c *ActivateCommand) Execute(ctx context.Context, _ ActivateMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: flow service is required")
	}
	storeResult(ctx, c.service.Activate(ctx))
	return nil
}

type LogoutCommand struct {
	service FlowService
}

func NewLogoutCommand(service FlowService) *LogoutCommand {
	return &LogoutCommand{service: service}
}

func (c *LogoutCommand) Execute(ctx context.Context, _ LogoutMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: flow service is required")
	}
	return c.service.Logout(ctx)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
