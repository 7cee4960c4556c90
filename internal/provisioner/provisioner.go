// Package provisioner defines the external provisioner contract of
// spec.md §6 and its implementations. The provisioner is the sole
// collaborator responsible for the physical creation and destruction of
// clusters on some underlying platform; this package only observes and
// commands it, per spec.md §1.
package provisioner

import "context"

// Status is one of the states the provisioner reports for a cluster
// address, per spec.md §6.
type Status string

const (
	StatusCreating       Status = "Creating"
	StatusReady          Status = "Ready"
	StatusDeleting       Status = "Deleting"
	StatusCreateFailed   Status = "CreateFailed"
	StatusDeleteFailed   Status = "DeleteFailed"
	StatusClusterNotFound Status = "ClusterNotFound"
)

// Provisioner is the four-call external operation surface of spec.md §6.
type Provisioner interface {
	// Create begins asynchronous provisioning and returns an opaque handle.
	Create(ctx context.Context, name string) (address string, err error)

	// Delete begins asynchronous teardown. Idempotent.
	Delete(ctx context.Context, address string) error

	// Status reports the provisioner's current view of the cluster at address.
	Status(ctx context.Context, address string) (Status, error)

	// Ports returns the ordered sequence of ports assigned to the cluster.
	Ports(ctx context.Context, address string) ([]int, error)
}

// CounterSource is an optional capability a Provisioner may implement to
// supply the Ready-state app/service counter refresh described in
// spec.md §4.1 ("may refresh app/service counters") and §9 open question 4.
// It is purely observational: its results never affect a state transition.
type CounterSource interface {
	AppCount(ctx context.Context, address string) (int, error)
	ServiceCount(ctx context.Context, address string) (int, error)
}
