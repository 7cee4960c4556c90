// Package admission implements the Join transaction of spec.md §4.5:
// validate inputs, look up the target cluster under an update lock,
// re-check readiness and expiry, allocate a free port, and append the
// user.
package admission

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/partyfleet/controller/internal/config"
	"github.com/partyfleet/controller/internal/fleeterr"
	"github.com/partyfleet/controller/internal/notifier"
	"github.com/partyfleet/controller/internal/store"
	"github.com/partyfleet/controller/internal/types"
)

// Handler runs the Join operation against a ClusterStore.
type Handler struct {
	store    store.ClusterStore
	notifier notifier.Notifier
	cfg      *config.Config
	logger   *zap.Logger
	now      func() time.Time
}

func New(s store.ClusterStore, n notifier.Notifier, cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{store: s, notifier: n, cfg: cfg, logger: logger.Named("admission"), now: time.Now}
}

// Join admits username onto clusterID, per the six steps of spec.md §4.5.
// Step 7 (external notification) runs after the transaction commits.
func (h *Handler) Join(ctx context.Context, username, clusterID string) (types.User, error) {
	name, err := types.NewUserName(username)
	if err != nil {
		return types.User{}, fleeterr.Wrap(fleeterr.KindInvalidArgument, "Join", err)
	}
	if strings.TrimSpace(clusterID) == "" {
		return types.User{}, fleeterr.New(fleeterr.KindInvalidArgument, "Join", "clusterId cannot be empty")
	}
	id := types.ClusterID(clusterID)

	tx, err := h.store.BeginTransaction(ctx)
	if err != nil {
		return types.User{}, fleeterr.Wrap(fleeterr.KindStoreFailure, "Join", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Abort(ctx)
		}
	}()

	rec, ok, err := h.store.TryGet(ctx, tx, id, store.LockUpdate)
	if err != nil {
		return types.User{}, fleeterr.Wrap(fleeterr.KindStoreFailure, "Join", err)
	}
	if !ok {
		return types.User{}, fleeterr.New(fleeterr.KindNotFound, "Join", "cluster not found")
	}
	if rec.Status != types.StatusReady {
		return types.User{}, fleeterr.New(fleeterr.KindNotJoinable, "Join", "cluster not ready")
	}
	if h.now().Sub(rec.CreatedOn) > h.cfg.MaxClusterUptime-h.cfg.JoinExpiryGuard {
		return types.User{}, fleeterr.New(fleeterr.KindNotJoinable, "Join", "cluster expiring soon")
	}

	port, ok := rec.FirstFreePort()
	if !ok {
		return types.User{}, fleeterr.New(fleeterr.KindNoCapacity, "Join", "no free port")
	}

	user := types.User{Name: name, Port: port}
	rec.Users = append(rec.Users, user)

	if err := h.store.Set(ctx, tx, id, rec); err != nil {
		return types.User{}, fleeterr.Wrap(fleeterr.KindStoreFailure, "Join", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return types.User{}, fleeterr.Wrap(fleeterr.KindStoreFailure, "Join", err)
	}
	committed = true

	h.logger.Info("user joined cluster", id.ZapField(), name.ZapField(), zap.Int("port", port))
	if h.notifier != nil {
		h.notifier.NotifyJoined(ctx, id, user)
	}
	return user, nil
}
