package sim

import (
	"fmt"

	"github.com/cloud-sim/cloud-sim/sim/trace"
)

// Scheduler places pending VMs of one cloud onto its servers.
// It runs on a SchedulerRun event and from the world's tick-complete hook.
// It only reads other entities; every change goes out as an event.
type Scheduler struct {
	actorBase
	cloud      Handle
	registry   *Registry
	policy     PlacementPolicy
	policyName string
	trace      *trace.SimulationTrace
}

func (s *Scheduler) Kind() ActorKind { return KindScheduler }

func (s *Scheduler) Accepts(k EventKind) bool { return k == EventScheduler }

func (s *Scheduler) HandleEvent(e *Event) {
	switch e.Scheduler {
	case SchedulerRun:
		s.Run()
		s.release(e.Then)
	default:
		s.log().Errorf("unknown scheduler event %s", e.Scheduler)
	}
}

// PolicyName returns the name of the placement policy.
func (s *Scheduler) PolicyName() string { return s.policyName }

func (s *Scheduler) setup(cloud Handle, r *Registry, policy string, st *trace.SimulationTrace) {
	s.cloud = cloud
	s.registry = r
	s.policyName = policy
	s.policy = NewPlacementPolicy(policy)
	s.trace = st
}

// Run places the currently pending VMs. For each placement the table is
// told first, ahead of everything queued at this tick, so no later run can
// place the same VM twice. Returns the number of placements.
func (s *Scheduler) Run() int {
	if s.registry == nil {
		s.log().Error("scheduler is not attached to a cloud")
		return 0
	}
	cloud, err := GetActor[*Cloud](s.registry, s.cloud)
	if err != nil {
		s.log().Errorf("resolving cloud: %v", err)
		return 0
	}
	storage, err := GetActor[*VMStorage](s.registry, cloud.VMStorage())
	if err != nil {
		s.log().Errorf("resolving VM storage: %v", err)
		return 0
	}
	if storage.Failed() {
		s.log().Errorf("VM storage %s is in failure state, skipping placement", storage.Name())
		return 0
	}
	pending := storage.Pending()
	if len(pending) == 0 {
		return 0
	}

	view, err := s.snapshot(cloud, pending)
	if err != nil {
		s.log().Errorf("building cloud view: %v", err)
		return 0
	}
	placements := s.policy.Place(view)

	now := s.now()
	for i := len(placements) - 1; i >= 0; i-- {
		s.schedule(NewStorageEvent(storage.Handle(), now, StorageVMScheduled, placements[i].VM), true)
	}
	placed := make(map[Handle]bool, len(placements))
	for _, p := range placements {
		placed[p.VM] = true
		s.schedule(NewServerEvent(p.Server, now, ServerProvisionVM, p.VM), false)
		s.log().Infof("VM %s placed on server %s: %s", s.nameOf(p.VM), s.nameOf(p.Server), p.Reason)
		if s.trace.Enabled() {
			s.trace.RecordPlacement(s.record(view, p))
		}
	}
	for _, vm := range view.Pending {
		if !placed[vm.VM] {
			s.log().Debugf("VM %s stays pending: no server fits %s", vm.Name, vm.Demand)
		}
	}
	return len(placements)
}

func (s *Scheduler) snapshot(cloud *Cloud, pending []Handle) (*CloudView, error) {
	now := s.now()
	view := &CloudView{Clock: now}
	for _, h := range pending {
		vm, err := GetActor[*VM](s.registry, h)
		if err != nil {
			return nil, fmt.Errorf("pending VM: %w", err)
		}
		view.Pending = append(view.Pending, PendingVM{VM: h, Name: vm.Name(), Demand: vm.Demand(now)})
	}
	for _, dch := range cloud.DataCenters() {
		dc, err := GetActor[*DataCenter](s.registry, dch)
		if err != nil {
			return nil, fmt.Errorf("data center: %w", err)
		}
		dv := DataCenterView{DataCenter: dch, Name: dc.Name(), State: dc.PowerState()}
		for _, sh := range dc.Servers() {
			srv, err := GetActor[*Server](s.registry, sh)
			if err != nil {
				return nil, fmt.Errorf("server: %w", err)
			}
			load, err := hostedLoad(s.registry, srv, now)
			if err != nil {
				return nil, err
			}
			sv := ServerView{Server: sh, Name: srv.Name(), State: srv.PowerState(), Spec: srv.Spec(), Hosted: len(load)}
			for _, l := range load {
				sv.UsedRAM += l.Demand.RAM
			}
			dv.Servers = append(dv.Servers, sv)
		}
		view.DataCenters = append(view.DataCenters, dv)
	}
	return view, nil
}

func (s *Scheduler) record(view *CloudView, p Placement) trace.PlacementRecord {
	rec := trace.PlacementRecord{
		VM:     s.nameOf(p.VM),
		Clock:  view.Clock,
		Policy: s.policyName,
		Server: s.nameOf(p.Server),
		Reason: p.Reason,
	}
	for _, dc := range view.DataCenters {
		for _, sv := range dc.Servers {
			if sv.Server == p.Server {
				rec.DataCenter = dc.Name
				rec.FreeRAM = sv.FreeRAM()
			}
		}
	}
	return rec
}

// hostedLoad returns the current demand of every VM hosted on srv, in hosting order.
func hostedLoad(r *Registry, srv *Server, now int64) ([]HostedLoad, error) {
	hosted := srv.HostedVMs()
	out := make([]HostedLoad, 0, len(hosted))
	for _, h := range hosted {
		vm, err := GetActor[*VM](r, h)
		if err != nil {
			return nil, fmt.Errorf("VM hosted on %s: %w", srv.Name(), err)
		}
		out = append(out, HostedLoad{VM: h, Name: vm.Name(), Demand: vm.Demand(now)})
	}
	return out, nil
}
