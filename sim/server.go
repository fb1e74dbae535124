package sim

import (
	"fmt"

	"github.com/docker/go-units"
)

// ServerSpec describes the hardware of a server.
type ServerSpec struct {
	Name      string
	RAM       uint64 // bytes
	ClockRate uint64 // Hz
	Cores     uint32
}

func (s ServerSpec) String() string {
	return fmt.Sprintf("%s(ram=%s clock=%dMHz cores=%d)", s.Name, units.BytesSize(float64(s.RAM)), s.ClockRate/1_000_000, s.Cores)
}

// Server is a leaf resource that hosts VMs.
type Server struct {
	resource
	spec      ServerSpec
	hosted    []Handle
	admission AdmissionPolicy
	policy    string

	// tick of the last admission run; stale when the hosted set changed since
	admittedAt int64
	admitted   bool
}

func (s *Server) Kind() ActorKind { return KindServer }

func (s *Server) Accepts(k EventKind) bool {
	return k == EventResource || k == EventServer
}

func (s *Server) HandleEvent(e *Event) {
	switch e.Kind {
	case EventResource:
		s.handleResourceEvent(e)
	case EventServer:
		s.handleServerEvent(e)
	}
}

// Spec returns the server hardware description.
func (s *Server) Spec() ServerSpec { return s.spec }

// AdmissionPolicyName returns the name of the server-local admission policy.
func (s *Server) AdmissionPolicyName() string { return s.policy }

// HostedVMs returns the hosted VM handles in hosting order.
func (s *Server) HostedVMs() []Handle {
	out := make([]Handle, len(s.hosted))
	copy(out, s.hosted)
	return out
}

func (s *Server) setup(spec ServerSpec, policy string) {
	s.spec = spec
	s.policy = policy
	s.admission = NewAdmissionPolicy(policy)
}

func (s *Server) handleServerEvent(e *Event) {
	vm := e.Subject
	switch e.Server {
	case ServerProvisionVM:
		if s.state == PowerFailure {
			s.log().Errorf("refusing to host VM %s: server is in %s state", s.nameOf(vm), PowerFailure)
			refused := NewVMEvent(vm, s.now(), VMProvisionRefused)
			refused.Subject = s.handle
			s.schedule(refused, true)
			return
		}
		if s.hostIndex(vm) >= 0 {
			s.log().Errorf("VM %s is already hosted here", s.nameOf(vm))
			return
		}
		if s.state != PowerRunning {
			s.log().Warnf("hosting VM %s while power state is %s", s.nameOf(vm), s.state)
		}
		s.hosted = append(s.hosted, vm)
		s.admitted = false
		s.log().Infof("hosting VM %s (%d hosted)", s.nameOf(vm), len(s.hosted))

		done := NewVMEvent(vm, s.now(), VMProvisionCompleted)
		done.Subject = s.handle
		s.schedule(done, true)
		s.release(e.Then)

	case ServerUnprovisionVM:
		i := s.hostIndex(vm)
		if i < 0 {
			s.log().Errorf("cannot unprovision VM %s: not hosted here", s.nameOf(vm))
		} else {
			s.hosted = append(s.hosted[:i], s.hosted[i+1:]...)
			s.admitted = false
			s.log().Infof("released VM %s (%d hosted)", s.nameOf(vm), len(s.hosted))
		}
		s.release(e.Then)

	default:
		s.log().Errorf("unknown server event %s", e.Server)
	}
}

// needsAdmission reports whether the hosted VMs have not been classified
// at ts, or the hosted set changed after they were.
func (s *Server) needsAdmission(ts int64) bool {
	return !s.admitted || s.admittedAt != ts
}

func (s *Server) markAdmitted(ts int64) {
	s.admittedAt, s.admitted = ts, true
}

func (s *Server) hostIndex(vm Handle) int {
	for i, h := range s.hosted {
		if h == vm {
			return i
		}
	}
	return -1
}
