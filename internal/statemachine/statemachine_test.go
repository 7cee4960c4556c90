package statemachine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/partyfleet/controller/internal/config"
	"github.com/partyfleet/controller/internal/provisioner"
	"github.com/partyfleet/controller/internal/types"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxClusterUptime: 2 * time.Hour,
	}
}

func TestAdvance_NewCallsCreateAndMovesToCreating(t *testing.T) {
	ctx := context.Background()
	p := provisioner.NewMockProvisioner(zaptest.NewLogger(t), time.Hour, time.Hour)
	sm := New(p, p, testConfig(), zaptest.NewLogger(t))

	rec := types.NewClusterRecord(types.ClusterID("c1"))
	next, err := sm.Advance(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, types.StatusCreating, next.Status)
	require.NotEmpty(t, next.Address)
}

func TestAdvance_CreatingToReadySetsPortsAndCreatedOn(t *testing.T) {
	ctx := context.Background()
	p := provisioner.NewMockProvisioner(zaptest.NewLogger(t), 0, 0)
	sm := New(p, p, testConfig(), zaptest.NewLogger(t))

	rec := types.NewClusterRecord(types.ClusterID("c1"))
	rec, err := sm.Advance(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, types.StatusCreating, rec.Status)

	rec, err = sm.Advance(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, types.StatusReady, rec.Status)
	require.NotEmpty(t, rec.Ports)
	require.WithinDuration(t, time.Now(), rec.CreatedOn, time.Second)
}

func TestAdvance_CreateFailedRevertsToNewWithClearedAddress(t *testing.T) {
	ctx := context.Background()
	p := provisioner.NewMockProvisioner(zaptest.NewLogger(t), time.Hour, time.Hour)
	sm := New(p, p, testConfig(), zaptest.NewLogger(t))

	rec := types.NewClusterRecord(types.ClusterID("c1"))
	rec, err := sm.Advance(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, types.StatusCreating, rec.Status)

	p.FailNextCreate(rec.Address)
	rec, err = sm.Advance(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, types.StatusNew, rec.Status)
	require.Empty(t, rec.Address)
}

func TestAdvance_ReadyExpiresByUptime(t *testing.T) {
	ctx := context.Background()
	p := provisioner.NewMockProvisioner(zaptest.NewLogger(t), 0, 0)
	cfg := testConfig()
	cfg.MaxClusterUptime = time.Millisecond

	sm := New(p, p, cfg, zaptest.NewLogger(t))
	rec := types.NewClusterRecord(types.ClusterID("c1"))
	rec, err := sm.Advance(ctx, rec)
	require.NoError(t, err)
	rec, err = sm.Advance(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, types.StatusReady, rec.Status)

	time.Sleep(2 * time.Millisecond)
	rec, err = sm.Advance(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, types.StatusDeleting, rec.Status)
}

func TestAdvance_DeletingToDeletedOnClusterNotFound(t *testing.T) {
	ctx := context.Background()
	p := provisioner.NewMockProvisioner(zaptest.NewLogger(t), 0, 50*time.Millisecond)
	sm := New(p, p, testConfig(), zaptest.NewLogger(t))

	rec := types.NewClusterRecord(types.ClusterID("c1"))
	rec, _ = sm.Advance(ctx, rec)
	rec, _ = sm.Advance(ctx, rec)
	require.Equal(t, types.StatusReady, rec.Status)

	require.NoError(t, p.Delete(ctx, rec.Address))
	rec, err := sm.Advance(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, types.StatusDeleting, rec.Status)

	// the mock reports ClusterNotFound once deletingFor has elapsed
	time.Sleep(60 * time.Millisecond)
	rec, err = sm.Advance(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, types.StatusDeleted, rec.Status)
}

func TestAdvance_DeletingWithDeleteFailedGoesToRemove(t *testing.T) {
	ctx := context.Background()
	p := provisioner.NewMockProvisioner(zaptest.NewLogger(t), 0, 0)
	sm := New(p, p, testConfig(), zaptest.NewLogger(t))

	rec := types.NewClusterRecord(types.ClusterID("c1"))
	rec, _ = sm.Advance(ctx, rec)
	rec, _ = sm.Advance(ctx, rec)
	require.NoError(t, p.Delete(ctx, rec.Address))
	rec.Status = types.StatusDeleting

	p.FailNextDelete(rec.Address)
	rec, err := sm.Advance(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, types.StatusRemove, rec.Status)
}

func TestAdvance_RemoveCallsDeleteWhenClusterStillLive(t *testing.T) {
	ctx := context.Background()
	p := provisioner.NewMockProvisioner(zaptest.NewLogger(t), time.Hour, 0)
	sm := New(p, p, testConfig(), zaptest.NewLogger(t))

	rec := types.NewClusterRecord(types.ClusterID("c1"))
	rec, _ = sm.Advance(ctx, rec) // New -> Creating
	rec.Status = types.StatusRemove

	rec, err := sm.Advance(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, types.StatusDeleting, rec.Status)
}

func TestAdvance_DeletedRecordIsUntouched(t *testing.T) {
	ctx := context.Background()
	p := provisioner.NewMockProvisioner(zaptest.NewLogger(t), 0, 0)
	sm := New(p, p, testConfig(), zaptest.NewLogger(t))

	rec := types.NewClusterRecord(types.ClusterID("c1"))
	rec.Status = types.StatusDeleted

	next, err := sm.Advance(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, types.StatusDeleted, next.Status)
}
