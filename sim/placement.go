package sim

import (
	"fmt"

	"github.com/docker/go-units"
)

// ServerView is a read-only snapshot of a server for placement decisions.
type ServerView struct {
	Server  Handle
	Name    string
	State   PowerState
	Spec    ServerSpec
	UsedRAM uint64 // summed RAM demand of hosted VMs
	Hosted  int
}

// FreeRAM returns the RAM left after the hosted demand, never below zero.
func (s ServerView) FreeRAM() uint64 {
	if s.UsedRAM >= s.Spec.RAM {
		return 0
	}
	return s.Spec.RAM - s.UsedRAM
}

// DataCenterView is a read-only snapshot of a data center and its servers.
type DataCenterView struct {
	DataCenter Handle
	Name       string
	State      PowerState
	Servers    []ServerView
}

// PendingVM is a VM waiting for placement with its current demand.
type PendingVM struct {
	VM     Handle
	Name   string
	Demand Workload
}

// CloudView is the input of a placement policy. Pending VMs are in
// creation order; data centers and servers are in tree order.
type CloudView struct {
	Clock       int64
	Pending     []PendingVM
	DataCenters []DataCenterView
}

// Placement assigns one pending VM to a server.
type Placement struct {
	VM     Handle
	Server Handle
	Reason string
}

// PlacementPolicy decides which server hosts each pending VM.
// VMs left out of the result stay pending until a later run.
type PlacementPolicy interface {
	Place(view *CloudView) []Placement
}

// FirstAvailable places every pending VM on the first server in tree
// order that is not in FAILURE. There is no capacity or power check
// otherwise; with no failed server this is the first server of the first
// data center.
type FirstAvailable struct{}

// Place implements PlacementPolicy for FirstAvailable.
func (f *FirstAvailable) Place(view *CloudView) []Placement {
	target, ok := firstUsable(view)
	if !ok {
		return nil
	}
	out := make([]Placement, 0, len(view.Pending))
	for _, vm := range view.Pending {
		out = append(out, Placement{
			VM:     vm.VM,
			Server: target.Server,
			Reason: "first-available",
		})
	}
	return out
}

func firstUsable(view *CloudView) (ServerView, bool) {
	for _, dc := range view.DataCenters {
		for _, s := range dc.Servers {
			if s.State != PowerFailure {
				return s, true
			}
		}
	}
	return ServerView{}, false
}

// BestFit packs each VM onto the running server whose free RAM is the
// smallest that still covers the VM's demand.
// Ties are broken by first occurrence in tree order.
type BestFit struct{}

// Place implements PlacementPolicy for BestFit.
func (b *BestFit) Place(view *CloudView) []Placement {
	return placeByFreeRAM(view, "best-fit", func(candidate, best uint64) bool { return candidate < best })
}

// Spread places each VM on the running server with the most free RAM
// that covers the VM's demand.
// Ties are broken by first occurrence in tree order.
type Spread struct{}

// Place implements PlacementPolicy for Spread.
func (s *Spread) Place(view *CloudView) []Placement {
	return placeByFreeRAM(view, "spread", func(candidate, best uint64) bool { return candidate > best })
}

// placeByFreeRAM runs a capacity-aware placement, charging each decision
// against a local copy of the servers so VMs placed in the same run do not
// pile onto one server.
func placeByFreeRAM(view *CloudView, name string, better func(candidate, best uint64) bool) []Placement {
	var servers []ServerView
	for _, dc := range view.DataCenters {
		servers = append(servers, dc.Servers...)
	}

	var out []Placement
	for _, vm := range view.Pending {
		best := -1
		for i := range servers {
			s := &servers[i]
			if s.State != PowerRunning || s.FreeRAM() < vm.Demand.RAM {
				continue
			}
			if best < 0 || better(s.FreeRAM(), servers[best].FreeRAM()) {
				best = i
			}
		}
		if best < 0 {
			continue
		}
		chosen := &servers[best]
		out = append(out, Placement{
			VM:     vm.VM,
			Server: chosen.Server,
			Reason: fmt.Sprintf("%s (free=%s)", name, units.BytesSize(float64(chosen.FreeRAM()))),
		})
		chosen.UsedRAM += vm.Demand.RAM
		chosen.Hosted++
	}
	return out
}

// NewPlacementPolicy creates a placement policy by name.
// Valid names are defined in ValidPlacementPolicies (bundle.go).
// An empty string defaults to first-available.
// Panics on unrecognized names.
func NewPlacementPolicy(name string) PlacementPolicy {
	if !IsValidPlacementPolicy(name) {
		panic(fmt.Sprintf("unknown placement policy %q", name))
	}
	switch name {
	case "", "first-available":
		return &FirstAvailable{}
	case "best-fit":
		return &BestFit{}
	case "spread":
		return &Spread{}
	default:
		panic(fmt.Sprintf("unhandled placement policy %q", name))
	}
}
