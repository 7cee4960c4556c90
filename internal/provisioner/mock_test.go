package provisioner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMockProvisioner_CreateSettlesToReady(t *testing.T) {
	ctx := context.Background()
	p := NewMockProvisioner(zaptest.NewLogger(t), 0, 0)

	addr, err := p.Create(ctx, "party-cluster-1")
	require.NoError(t, err)
	require.Equal(t, "party-cluster-1", addr)

	status, err := p.Status(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, StatusReady, status)
}

func TestMockProvisioner_CreateStaysCreatingUntilElapsed(t *testing.T) {
	ctx := context.Background()
	p := NewMockProvisioner(zaptest.NewLogger(t), 50*time.Millisecond, 0)

	addr, err := p.Create(ctx, "party-cluster-1")
	require.NoError(t, err)

	status, err := p.Status(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, StatusCreating, status)

	time.Sleep(60 * time.Millisecond)
	status, err = p.Status(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, StatusReady, status)
}

func TestMockProvisioner_DeleteThenNotFound(t *testing.T) {
	ctx := context.Background()
	p := NewMockProvisioner(zaptest.NewLogger(t), 0, 0)

	addr, err := p.Create(ctx, "party-cluster-1")
	require.NoError(t, err)
	require.NoError(t, p.Delete(ctx, addr))

	status, err := p.Status(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, StatusClusterNotFound, status)
}

func TestMockProvisioner_DeleteUnknownIsIdempotent(t *testing.T) {
	p := NewMockProvisioner(zaptest.NewLogger(t), 0, 0)
	require.NoError(t, p.Delete(context.Background(), "does-not-exist"))
}

func TestMockProvisioner_FailNextCreate(t *testing.T) {
	ctx := context.Background()
	p := NewMockProvisioner(zaptest.NewLogger(t), 0, 0)

	addr, err := p.Create(ctx, "party-cluster-1")
	require.NoError(t, err)
	p.FailNextCreate(addr)

	status, err := p.Status(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, StatusCreateFailed, status)

	// the failure is one-shot: the following status call sees the real state.
	status, err = p.Status(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, StatusReady, status)
}

func TestMockProvisioner_FailNextDelete(t *testing.T) {
	ctx := context.Background()
	p := NewMockProvisioner(zaptest.NewLogger(t), 0, 0)

	addr, err := p.Create(ctx, "party-cluster-1")
	require.NoError(t, err)
	require.NoError(t, p.Delete(ctx, addr))
	p.FailNextDelete(addr)

	status, err := p.Status(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, StatusDeleteFailed, status)
}

func TestMockProvisioner_Ports(t *testing.T) {
	ctx := context.Background()
	p := NewMockProvisioner(zaptest.NewLogger(t), 0, 0)

	addr, err := p.Create(ctx, "party-cluster-1")
	require.NoError(t, err)

	ports, err := p.Ports(ctx, addr)
	require.NoError(t, err)
	require.NotEmpty(t, ports)
}
