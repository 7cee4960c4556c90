// Package planner implements the capacity-planning policy of spec.md
// §4.2: a pure function from a fleet snapshot and policy config to a
// target active-cluster count.
package planner

import (
	"math"

	"github.com/partyfleet/controller/internal/config"
	"github.com/partyfleet/controller/internal/types"
)

// ComputeTarget derives the target active-cluster count from fleet, the
// current snapshot of every record in the store. It is pure: no I/O, no
// clock reads, no side effects.
func ComputeTarget(fleet []types.ClusterRecord, cfg *config.Config) int {
	n := 0
	users := 0
	for _, rec := range fleet {
		if rec.Status.Active() {
			n++
		}
		// Matches source behaviour: every record's users count toward
		// load, including ones flagged Remove or already Deleting.
		users += len(rec.Users)
	}

	capacity := n * cfg.MaximumUsersPerCluster
	var load float64
	if capacity > 0 {
		load = float64(users) / float64(capacity)
	}

	high := cfg.UserCapacityHighPercentThreshold
	low := cfg.UserCapacityLowPercentThreshold

	switch {
	case load >= high:
		grow := int(math.Ceil(float64(n) * (1 - high)))
		target := n + grow
		if target > cfg.MaximumClusterCount {
			target = cfg.MaximumClusterCount
		}
		return target
	case load <= low:
		shrink := int(math.Floor(float64(n) * (high - low)))
		target := n - shrink
		if target < cfg.MinimumClusterCount {
			target = cfg.MinimumClusterCount
		}
		return target
	default:
		return n
	}
}
