// Package query implements the read-only projection of spec.md §4.6:
// a view record for every Ready cluster.
package query

import (
	"context"
	"time"

	"github.com/partyfleet/controller/internal/store"
	"github.com/partyfleet/controller/internal/types"
)

// ClusterView is the outward projection of one Ready cluster.
type ClusterView struct {
	Name         string
	AppCount     int
	ServiceCount int
	Uptime       time.Duration
	UserCount    int
}

// Handler runs ListClusters against a ClusterStore.
type Handler struct {
	store store.ClusterStore
	now   func() time.Time
}

func New(s store.ClusterStore) *Handler {
	return &Handler{store: s, now: time.Now}
}

// ListClusters returns one ClusterView per Ready cluster, in the store's
// enumeration order.
func (h *Handler) ListClusters(ctx context.Context) ([]ClusterView, error) {
	ids, err := h.store.Enumerate(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := h.store.BeginTransaction(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Commit(ctx)

	views := make([]ClusterView, 0, len(ids))
	now := h.now()
	for _, id := range ids {
		rec, ok, err := h.store.TryGet(ctx, tx, id, store.LockNone)
		if err != nil {
			return nil, err
		}
		if !ok || rec.Status != types.StatusReady {
			continue
		}
		views = append(views, ClusterView{
			Name:         "Party Cluster " + id.String(),
			AppCount:     rec.AppCount,
			ServiceCount: rec.ServiceCount,
			Uptime:       now.Sub(rec.CreatedOn),
			UserCount:    len(rec.Users),
		})
	}
	return views, nil
}
