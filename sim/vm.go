package sim

import "fmt"

// VMState is the lifecycle state of a VM.
type VMState int

const (
	VMProvisioning VMState = iota
	VMStarting
	VMRunning
	VMRestarting
	VMStopping
	VMStopped
	VMDeleting
	VMDeleted
	VMFailure
)

func (s VMState) String() string {
	switch s {
	case VMProvisioning:
		return "PROVISIONING"
	case VMStarting:
		return "STARTING"
	case VMRunning:
		return "RUNNING"
	case VMRestarting:
		return "RESTARTING"
	case VMStopping:
		return "STOPPING"
	case VMStopped:
		return "STOPPED"
	case VMDeleting:
		return "DELETING"
	case VMDeleted:
		return "DELETED"
	case VMFailure:
		return "FAILURE"
	default:
		return fmt.Sprintf("VMState(%d)", int(s))
	}
}

// VMDelays are the lifecycle transition durations of a VM, in ticks.
type VMDelays struct {
	Start   int64
	Restart int64
	Stop    int64
	Delete  int64
}

type vmCompletion struct {
	state VMState
	event *Event
}

// VM is a virtual machine. It learns its hosting server from the
// ProvisionCompleted event and reports bookkeeping changes to its VMStorage.
type VM struct {
	actorBase
	state    VMState
	owner    Handle
	storage  Handle
	model    WorkloadModel
	delays   VMDelays
	awaiting []vmCompletion
}

func (v *VM) Kind() ActorKind { return KindVM }

func (v *VM) Accepts(k EventKind) bool { return k == EventVM }

// State returns the lifecycle state.
func (v *VM) State() VMState { return v.state }

// Owner returns the hosting server, or the zero Handle when not hosted.
func (v *VM) Owner() Handle { return v.owner }

// Delays returns the lifecycle transition durations.
func (v *VM) Delays() VMDelays { return v.delays }

// Demand returns the workload of the VM at tick now.
func (v *VM) Demand(now int64) Workload {
	if v.model == nil {
		return Workload{}
	}
	return v.model.Workload(now)
}

func (v *VM) setup(storage Handle, model WorkloadModel, delays VMDelays) {
	v.storage = storage
	v.model = model
	v.delays = delays
}

// expect registers e to be released when the VM enters state.
func (v *VM) expect(state VMState, e *Event) {
	if v.state == VMFailure {
		v.log().Errorf("dropping completion %s: VM is in %s state", e, VMFailure)
		return
	}
	v.awaiting = append(v.awaiting, vmCompletion{state: state, event: e})
}

func (v *VM) HandleEvent(e *Event) {
	if v.state == VMFailure {
		v.log().Errorf("ignoring %s: VM is in %s state", e.VM, VMFailure)
		return
	}

	now := v.now()
	switch e.VM {
	case VMProvisionCompleted:
		if !v.require(e, VMProvisioning, VMStopped) {
			return
		}
		v.owner = e.Subject
		if v.state != VMProvisioning {
			v.setState(VMProvisioning)
		}
		v.log().Infof("provisioned on server %s", v.nameOf(v.owner))
		v.schedule(NewVMEvent(v.handle, now, VMStart), true)

	case VMStart:
		if v.require(e, VMProvisioning) {
			v.setState(VMStarting)
			v.schedule(NewVMEvent(v.handle, now+v.delays.Start, VMStartCompleted), false)
		}

	case VMStartCompleted:
		if v.require(e, VMStarting) {
			v.schedule(NewStorageEvent(v.storage, now, StorageVMHosted, v.handle), false)
			v.setState(VMRunning)
		}

	case VMProvisionAccepted:
		if v.require(e, VMProvisioning, VMStopped) {
			v.await(e, VMRunning)
		}

	case VMProvisionRefused:
		if v.require(e, VMProvisioning, VMStopped) {
			v.log().Warnf("server %s refused the VM, returning it to pending", v.nameOf(e.Subject))
			v.schedule(NewStorageEvent(v.storage, now, StorageVMUnscheduled, v.handle), true)
		}

	case VMRestart:
		if v.require(e, VMRunning) {
			v.setState(VMRestarting)
			v.await(e, VMRunning)
			v.schedule(NewVMEvent(v.handle, now+v.delays.Restart, VMRestartCompleted), false)
		}

	case VMRestartCompleted:
		if v.require(e, VMRestarting) {
			v.setState(VMRunning)
		}

	case VMStop:
		if v.require(e, VMRunning) {
			v.setState(VMStopping)
			v.await(e, VMStopped)
			v.schedule(NewVMEvent(v.handle, now+v.delays.Stop, VMStopCompleted), false)
		}

	case VMStopCompleted:
		if v.require(e, VMStopping) {
			v.leave(StorageVMStopped)
			v.setState(VMStopped)
		}

	case VMDelete:
		if v.require(e, VMRunning, VMStopped) {
			v.setState(VMDeleting)
			v.await(e, VMDeleted)
			v.schedule(NewVMEvent(v.handle, now+v.delays.Delete, VMDeleteCompleted), false)
		}

	case VMDeleteCompleted:
		if v.require(e, VMDeleting) {
			v.leave(StorageVMDeleted)
			v.setState(VMDeleted)
		}

	default:
		v.log().Errorf("unknown VM event %s", e.VM)
		v.fail()
	}
}

// await registers the completion record carried by an accepted command.
func (v *VM) await(e *Event, target VMState) {
	if e.Awaiting != nil {
		v.expect(target, e.Awaiting)
	}
}

// leave reports a bookkeeping change. A hosted VM routes it through its
// server so capacity is released before the table is updated.
func (v *VM) leave(t StorageEventType) {
	now := v.now()
	update := NewStorageEvent(v.storage, now, t, v.handle)
	if v.owner.IsZero() {
		v.schedule(update, false)
		return
	}
	release := NewServerEvent(v.owner, now, ServerUnprovisionVM, v.handle)
	release.Then = update
	v.schedule(release, false)
	v.owner = Handle{}
}

func (v *VM) require(e *Event, allowed ...VMState) bool {
	for _, s := range allowed {
		if v.state == s {
			return true
		}
	}
	v.log().Errorf("%s: current state is %s but expected one of %v", e.VM, v.state, allowed)
	v.fail()
	return false
}

func (v *VM) setState(s VMState) {
	v.log().Infof("state %s -> %s", v.state, s)
	v.state = s

	kept := v.awaiting[:0]
	for _, c := range v.awaiting {
		if c.state == s {
			v.release(c.event)
		} else {
			kept = append(kept, c)
		}
	}
	v.awaiting = kept
}

func (v *VM) fail() {
	v.state = VMFailure
	if n := len(v.awaiting); n > 0 {
		v.log().Errorf("dropping %d pending completion(s)", n)
	}
	v.awaiting = nil
}
