package sim

import (
	"fmt"
	"slices"
)

// VMStatus is the bookkeeping status of a VM as seen by the scheduler.
type VMStatus int

const (
	StatusCreated VMStatus = iota
	StatusPending
	StatusProvisioning
	StatusHosted
	StatusStopped
)

func (s VMStatus) String() string {
	switch s {
	case StatusCreated:
		return "Created"
	case StatusPending:
		return "Pending"
	case StatusProvisioning:
		return "Provisioning"
	case StatusHosted:
		return "Hosted"
	case StatusStopped:
		return "Stopped"
	default:
		return fmt.Sprintf("VMStatus(%d)", int(s))
	}
}

// VMStorage is the bookkeeping table of every VM known to a cloud.
// Rows keep creation order so scans are deterministic.
//
// Any unknown VM, duplicate creation or illegal transition puts the table
// in a sticky failure state; every later event is rejected until Reset.
// Re-entering the current status is logged and ignored.
type VMStorage struct {
	actorBase
	order  []Handle
	status map[Handle]VMStatus
	failed bool
}

func (s *VMStorage) Kind() ActorKind { return KindVMStorage }

func (s *VMStorage) Accepts(k EventKind) bool { return k == EventStorage }

// Failed reports whether the table is in its failure state.
func (s *VMStorage) Failed() bool { return s.failed }

// Reset clears the failure state. Rows are kept.
func (s *VMStorage) Reset() {
	if s.failed {
		s.log().Warn("failure state cleared")
	}
	s.failed = false
}

// Status returns the status of vm. ok is false when vm has no row.
func (s *VMStorage) Status(vm Handle) (status VMStatus, ok bool) {
	status, ok = s.status[vm]
	return status, ok
}

// Len returns the number of rows.
func (s *VMStorage) Len() int { return len(s.order) }

// WithStatus returns the VMs currently in status, in creation order.
func (s *VMStorage) WithStatus(status VMStatus) []Handle {
	var out []Handle
	for _, h := range s.order {
		if s.status[h] == status {
			out = append(out, h)
		}
	}
	return out
}

// Pending returns the VMs waiting for placement, in creation order.
func (s *VMStorage) Pending() []Handle {
	return s.WithStatus(StatusPending)
}

func (s *VMStorage) HandleEvent(e *Event) {
	if s.failed {
		s.log().Errorf("rejecting %s for VM %s: table is in failure state", e.Storage, s.nameOf(e.Subject))
		return
	}

	vm := e.Subject
	switch e.Storage {
	case StorageVMCreated:
		if _, exists := s.status[vm]; exists {
			s.fail("VM %s already exists", s.nameOf(vm))
			return
		}
		if s.status == nil {
			s.status = make(map[Handle]VMStatus)
		}
		s.order = append(s.order, vm)
		s.status[vm] = StatusCreated
		s.log().Infof("VM %s added as %s", s.nameOf(vm), StatusCreated)

	case StorageProvisionRequested:
		if s.move(vm, StatusPending, StatusCreated, StatusStopped) {
			if e.Awaiting != nil {
				accepted := NewVMEvent(vm, s.now(), VMProvisionAccepted)
				accepted.Awaiting = e.Awaiting
				s.schedule(accepted, true)
			}
			s.release(e.Then)
		}

	case StorageVMUnscheduled:
		s.move(vm, StatusPending, StatusProvisioning)

	case StorageVMScheduled:
		s.move(vm, StatusProvisioning, StatusPending)

	case StorageVMHosted:
		s.move(vm, StatusHosted, StatusProvisioning)

	case StorageVMStopped:
		s.move(vm, StatusStopped, StatusHosted)

	case StorageVMDeleted:
		cur, ok := s.status[vm]
		if !ok {
			s.fail("cannot delete unknown VM %s", s.nameOf(vm))
			return
		}
		if cur != StatusHosted && cur != StatusStopped {
			s.fail("cannot delete VM %s in status %s", s.nameOf(vm), cur)
			return
		}
		delete(s.status, vm)
		s.order = slices.DeleteFunc(s.order, func(h Handle) bool { return h == vm })
		s.log().Infof("VM %s removed", s.nameOf(vm))

	default:
		s.fail("unknown storage event %s", e.Storage)
	}
}

func (s *VMStorage) move(vm Handle, to VMStatus, from ...VMStatus) bool {
	cur, ok := s.status[vm]
	if !ok {
		s.fail("cannot move unknown VM %s to %s", s.nameOf(vm), to)
		return false
	}
	if cur == to {
		s.log().Errorf("VM %s is already %s", s.nameOf(vm), to)
		return false
	}
	if !slices.Contains(from, cur) {
		s.fail("cannot move VM %s from %s to %s", s.nameOf(vm), cur, to)
		return false
	}
	s.status[vm] = to
	s.log().Infof("VM %s: %s -> %s", s.nameOf(vm), cur, to)
	return true
}

func (s *VMStorage) fail(format string, args ...any) {
	s.log().Errorf(format, args...)
	s.log().Error("entering failure state")
	s.failed = true
}
