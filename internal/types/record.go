package types

import "time"

// ClusterStatus is one of the states in the cluster state machine (spec.md §3, §4.1).
type ClusterStatus string

const (
	StatusNew      ClusterStatus = "New"
	StatusCreating ClusterStatus = "Creating"
	StatusReady    ClusterStatus = "Ready"
	StatusRemove   ClusterStatus = "Remove"
	StatusDeleting ClusterStatus = "Deleting"
	StatusDeleted  ClusterStatus = "Deleted"
)

// Active reports whether a record in this status counts toward the
// active-cluster set A = {New, Creating, Ready} used by the planner and
// balancer.
func (s ClusterStatus) Active() bool {
	switch s {
	case StatusNew, StatusCreating, StatusReady:
		return true
	default:
		return false
	}
}

// NoCreatedOn is the sentinel value for ClusterRecord.CreatedOn before a
// cluster reaches Ready, per spec.md §3 ("otherwise createdOn is the
// sentinel 'max'"). A far-future time plays the role of that sentinel so
// that "now - createdOn >= uptime" comparisons never misfire against it.
var NoCreatedOn = time.Unix(1<<62, 0).UTC()

// User is one admitted user of a cluster, occupying exactly one of its ports.
type User struct {
	Name UserName
	Port int
}

// ClusterRecord is the durable representation of one party cluster,
// stored under its ClusterID in the clusterDictionary (spec.md §3, §6).
type ClusterRecord struct {
	ID      ClusterID
	Status  ClusterStatus
	Address string
	Ports   []int
	Users   []User

	CreatedOn time.Time

	AppCount     int
	ServiceCount int
}

// NewClusterRecord returns a fresh record in state New with empty fields,
// as created by the fleet balancer (spec.md §3 "Lifecycle").
func NewClusterRecord(id ClusterID) ClusterRecord {
	return ClusterRecord{
		ID:        id,
		Status:    StatusNew,
		CreatedOn: NoCreatedOn,
	}
}

// Clone returns a deep copy of the record so callers holding a snapshot
// never observe or mutate another goroutine's in-flight edits, per spec.md
// §3 "Ownership": in-memory values handed out are snapshots.
func (r ClusterRecord) Clone() ClusterRecord {
	cloned := r
	if r.Ports != nil {
		cloned.Ports = append([]int(nil), r.Ports...)
	}
	if r.Users != nil {
		cloned.Users = append([]User(nil), r.Users...)
	}
	return cloned
}

// UsedPorts returns the set of ports currently occupied by users.
func (r ClusterRecord) UsedPorts() map[int]struct{} {
	used := make(map[int]struct{}, len(r.Users))
	for _, u := range r.Users {
		used[u.Port] = struct{}{}
	}
	return used
}

// FirstFreePort returns the first port in Ports not occupied by a user, and
// whether one was found (spec.md §4.5 step 5).
func (r ClusterRecord) FirstFreePort() (int, bool) {
	used := r.UsedPorts()
	for _, p := range r.Ports {
		if _, taken := used[p]; !taken {
			return p, true
		}
	}
	return 0, false
}
