package provisioner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// mockCluster tracks the simulated lifecycle of one address in
// mockProvisioner, grounded on the teacher's k8sclient/mock.go but
// extended into a full state simulator (create -> Creating -> Ready,
// delete -> Deleting -> ClusterNotFound) so it can drive the state
// machine's tests end to end without a real backend.
type mockCluster struct {
	status      Status
	createdAt   time.Time
	deletedAt   time.Time
	ports       []int
	failCreate  bool
	failDelete  bool
}

// MockProvisioner is an in-memory simulation of the provisioner contract,
// used by unit tests and local runs (Config.ProvisionerBackend == "mock",
// the default).
type MockProvisioner struct {
	mu             sync.Mutex
	clusters       map[string]*mockCluster
	creatingFor    time.Duration
	deletingFor    time.Duration
	defaultPorts   []int
	logger         *zap.Logger
}

// NewMockProvisioner creates a MockProvisioner. creatingFor/deletingFor
// control how long, by the wall clock, a cluster simulates being in transit
// before settling; with zero it settles on the next Status call.
func NewMockProvisioner(logger *zap.Logger, creatingFor, deletingFor time.Duration) *MockProvisioner {
	return &MockProvisioner{
		clusters:     make(map[string]*mockCluster),
		creatingFor:  creatingFor,
		deletingFor:  deletingFor,
		defaultPorts: []int{8080, 8081, 8082, 8083},
		logger:       logger.Named("mock-provisioner"),
	}
}

// FailNextCreate marks the given address (which must already exist, i.e.
// have been returned by a prior Create) to report CreateFailed on its next
// Status call, for exercising spec.md §4.1's Creating -> New revert.
func (m *MockProvisioner) FailNextCreate(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.clusters[address]; ok {
		c.failCreate = true
	}
}

// FailNextDelete marks the given address to report DeleteFailed on its next
// Status call, for exercising spec.md §4.1's Deleting -> Remove transition.
func (m *MockProvisioner) FailNextDelete(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.clusters[address]; ok {
		c.failDelete = true
	}
}

func (m *MockProvisioner) Create(_ context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.clusters[name]; exists {
		return "", fmt.Errorf("cluster %s already exists", name)
	}

	m.clusters[name] = &mockCluster{
		status:    StatusCreating,
		createdAt: time.Now(),
		ports:     append([]int(nil), m.defaultPorts...),
	}
	m.logger.Debug("create requested", zap.String("address", name))
	return name, nil
}

func (m *MockProvisioner) Delete(_ context.Context, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clusters[address]
	if !ok {
		// Idempotent: deleting an unknown/already-gone address is not an error.
		return nil
	}
	if c.status != StatusDeleting {
		c.status = StatusDeleting
		c.deletedAt = time.Now()
	}
	m.logger.Debug("delete requested", zap.String("address", address))
	return nil
}

func (m *MockProvisioner) Status(_ context.Context, address string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clusters[address]
	if !ok {
		return StatusClusterNotFound, nil
	}

	if c.failCreate {
		c.failCreate = false
		return StatusCreateFailed, nil
	}
	if c.failDelete {
		c.failDelete = false
		return StatusDeleteFailed, nil
	}

	switch c.status {
	case StatusCreating:
		if time.Since(c.createdAt) >= m.creatingFor {
			c.status = StatusReady
		}
		return c.status, nil
	case StatusDeleting:
		if time.Since(c.deletedAt) >= m.deletingFor {
			delete(m.clusters, address)
			return StatusClusterNotFound, nil
		}
		return StatusDeleting, nil
	default:
		return c.status, nil
	}
}

func (m *MockProvisioner) Ports(_ context.Context, address string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clusters[address]
	if !ok {
		return nil, fmt.Errorf("unknown cluster %s", address)
	}
	return append([]int(nil), c.ports...), nil
}

// AppCount and ServiceCount implement CounterSource with static zero
// values: the mock has no workload plane to observe.
func (m *MockProvisioner) AppCount(_ context.Context, _ string) (int, error)     { return 0, nil }
func (m *MockProvisioner) ServiceCount(_ context.Context, _ string) (int, error) { return 0, nil }

var (
	_ Provisioner   = (*MockProvisioner)(nil)
	_ CounterSource = (*MockProvisioner)(nil)
)
