// Package quota tracks per-organization usage of the audit engine so the
// external quota gateway can meter and decrement allowances. Counters are
// updated with a single atomic increment per completed call: concurrent
// audits for the same organization neither double-count nor under-count.
package quota

import (
	"sync"
	"sync/atomic"
)

// Usage is a point-in-time snapshot of an organization's consumption.
type Usage struct {
	Calls        int64 `json:"calls"`
	ProcessUnits int64 `json:"process_units"`
}

type counters struct {
	calls        int64
	processUnits int64
}

// Tracker accumulates usage per organization.
type Tracker struct {
	orgs sync.Map // organization id -> *counters
}

func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) get(orgID string) *counters {
	if c, ok := t.orgs.Load(orgID); ok {
		return c.(*counters)
	}
	c, _ := t.orgs.LoadOrStore(orgID, &counters{})
	return c.(*counters)
}

// AddCall records one completed engine invocation for the organization.
func (t *Tracker) AddCall(orgID string) {
	atomic.AddInt64(&t.get(orgID).calls, 1)
}

// AddProcessUnits records provider work consumed on the organization's behalf.
func (t *Tracker) AddProcessUnits(orgID string, units int64) {
	atomic.AddInt64(&t.get(orgID).processUnits, units)
}

// Snapshot returns the organization's current usage.
func (t *Tracker) Snapshot(orgID string) Usage {
	c := t.get(orgID)
	return Usage{
		Calls:        atomic.LoadInt64(&c.calls),
		ProcessUnits: atomic.LoadInt64(&c.processUnits),
	}
}
