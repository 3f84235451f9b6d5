package hawkauth

import (
	"fmt"

	"github.com/goliatone/go-hawkauth/adapters/gocommand"
	hawkcommand "github.com/goliatone/go-hawkauth/command"
	hawkquery "github.com/goliatone/go-hawkauth/query"
)

type FlowController interface {
	hawkcommand.FlowService
	hawkquery.StatusReader
	hawkquery.HeaderSource
	hawkquery.LoginURLSource
}

type Commands struct {
	HandleRedirect *hawkcommand.HandleRedirectCommand
	Activate       *hawkcommand.ActivateCommand
	Logout         *hawkcommand.LogoutCommand
}

type Queries struct {
	Status              *hawkquery.StatusQuery
	CredentialState     *hawkquery.CredentialStateQuery
	AuthorizationHeader *hawkquery.AuthorizationHeaderQuery
	LoginURL            *hawkquery.LoginURLQuery
}

// Facade exposes the controller as go-command handlers.
type Facade struct {
	controller FlowController
	commands   Commands
	queries    Queries
}

func NewFacade(controller FlowController) (*Facade, error) {
	if controller == nil {
		return nil, fmt.Errorf("hawkauth: flow controller is required")
	}
	return &Facade{
		controller: controller,
		commands: Commands{
			HandleRedirect: hawkcommand.NewHandleRedirectCommand(controller),
			Activate:       hawkcommand.NewActivateCommand(controller),
			Logout:         hawkcommand.NewLogoutCommand(controller),
		},
		queries: Queries{
			Status:              hawkquery.NewStatusQuery(controller),
			CredentialState:     hawkquery.NewCredentialStateQuery(controller),
			AuthorizationHeader: hawkquery.NewAuthorizationHeaderQuery(controller),
			LoginURL:            hawkquery.NewLoginURLQuery(controller),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Controller() FlowController {
	if f == nil {
		return nil
	}
	return f.controller
}

// RegisterHandlers registers every command and query with the registry and
// subscribes them to the dispatcher. On error, handlers registered so far are
// unsubscribed.
func (f *Facade) RegisterHandlers(adapter *gocommand.RegistryAdapter) (*gocommand.Subscriptions, error) {
	if f == nil || f.controller == nil {
		return nil, fmt.Errorf("hawkauth: facade is not configured")
	}
	if adapter == nil {
		adapter = gocommand.NewRegistryAdapter(nil)
	}
	subs := &gocommand.Subscriptions{}
	register := []func() error{
		func() error {
			sub, err := gocommand.RegisterAndSubscribe(adapter, f.commands.HandleRedirect)
			subs.Add(sub)
			return err
		},
		func() error {
			sub, err := gocommand.RegisterAndSubscribe(adapter, f.commands.Activate)
			subs.Add(sub)
			return err
		},
		func() error {
			sub, err := gocommand.RegisterAndSubscribe(adapter, f.commands.Logout)
			subs.Add(sub)
			return err
		},
		func() error {
			sub, err := gocommand.RegisterAndSubscribeQuery(adapter, f.queries.Status)
			subs.Add(sub)
			return err
		},
		func() error {
			sub, err := gocommand.RegisterAndSubscribeQuery(adapter, f.queries.CredentialState)
			subs.Add(sub)
			return err
		},
		func() error {
			sub, err := gocommand.RegisterAndSubscribeQuery(adapter, f.queries.AuthorizationHeader)
			subs.Add(sub)
			return err
		},
		func() error {
			sub, err := gocommand.RegisterAndSubscribeQuery(adapter, f.queries.LoginURL)
			subs.Add(sub)
			return err
		},
	}
	for _, fn := range register {
		if err := fn(); err != nil {
			subs.UnsubscribeAll()
			return nil, err
		}
	}
	return subs, nil
}
