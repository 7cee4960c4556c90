package main

import (
	"go.uber.org/fx"

	"github.com/partyfleet/controller/internal/admission"
	"github.com/partyfleet/controller/internal/balancer"
	"github.com/partyfleet/controller/internal/config"
	"github.com/partyfleet/controller/internal/logging"
	"github.com/partyfleet/controller/internal/notifier"
	"github.com/partyfleet/controller/internal/provisioner"
	"github.com/partyfleet/controller/internal/query"
	"github.com/partyfleet/controller/internal/reconciler"
	"github.com/partyfleet/controller/internal/statemachine"
	"github.com/partyfleet/controller/internal/store"
	"github.com/partyfleet/controller/internal/transport"
)

var Everything = fx.Options(
	config.Module,
	logging.Module,
	store.Module,
	provisioner.Module,
	statemachine.Module,
	balancer.Module,
	reconciler.Module,
	notifier.Module,
	admission.Module,
	query.Module,
	transport.Module,
)

func main() {
	app := fx.New(Everything)
	app.Run()
}
