// Package notifier realizes step 7 of spec.md §4.5 ("perform the
// external notification"), scoped out of the core per spec.md §1 and
// implemented here only far enough to give it a real, injectable
// contract.
package notifier

import (
	"context"

	"github.com/partyfleet/controller/internal/types"
)

// Notifier is told about a successful join after the admission
// transaction has committed.
type Notifier interface {
	NotifyJoined(ctx context.Context, clusterID types.ClusterID, user types.User)
}
