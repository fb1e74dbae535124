package sim

import (
	"fmt"
	"strings"
)

// ResourceAction is a power command for a cloud, data center or server.
type ResourceAction int

const (
	ActionBoot ResourceAction = iota + 1
	ActionReboot
	ActionShutdown
)

func (a ResourceAction) String() string {
	switch a {
	case ActionBoot:
		return "boot"
	case ActionReboot:
		return "reboot"
	case ActionShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("ResourceAction(%d)", int(a))
	}
}

// ParseResourceAction parses "boot", "reboot" or "shutdown" (case-insensitive).
func ParseResourceAction(s string) (ResourceAction, error) {
	switch strings.ToLower(s) {
	case "boot":
		return ActionBoot, nil
	case "reboot":
		return ActionReboot, nil
	case "shutdown":
		return ActionShutdown, nil
	default:
		return 0, fmt.Errorf("unknown resource action %q", s)
	}
}

func (a ResourceAction) event() ResourceEventType {
	switch a {
	case ActionBoot:
		return ResourceBoot
	case ActionReboot:
		return ResourceReboot
	case ActionShutdown:
		return ResourceShutdown
	default:
		return 0
	}
}

type commandOptions struct {
	done   func(at int64)
	cancel func() bool
}

// CommandOption customizes a command.
type CommandOption func(*commandOptions)

// OnComplete calls fn with the tick at which the command's target state is
// reached: RUNNING for boot, reboot, provision and restart, OFF for
// shutdown, STOPPED for stop and DELETED for delete. The record is armed
// only when the command's event is accepted; it is never called if the
// event is cancelled or rejected, or if the entity fails first.
func OnComplete(fn func(at int64)) CommandOption {
	return func(o *commandOptions) { o.done = fn }
}

// CancelWhen attaches a cancellation predicate to the command's event.
func CancelWhen(pred func() bool) CommandOption {
	return func(o *commandOptions) { o.cancel = pred }
}

func collect(opts []CommandOption) commandOptions {
	var o commandOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// arm attaches the command's completion record and cancellation predicate to ev.
func (w *World) arm(ev *Event, label string, o commandOptions) *Event {
	ev.Cancelled = o.cancel
	if o.done != nil {
		ev.Awaiting = NewNotifyEvent(w.notifier, w.Now(), &Notification{Label: label, Done: o.done})
	}
	return ev
}

// CreateVM registers a VM driven by the named workload model and records
// it in the bookkeeping table. Nothing is registered if the model or its
// parameters are invalid.
func (w *World) CreateVM(name, model string, params map[string]string) error {
	if _, err := w.registry.GetActorHandle(name); err == nil {
		return fmt.Errorf("creating VM: %w: %q", ErrNameNotUnique, name)
	}
	wm, err := NewWorkloadModel(model, params, w.rng.Stream(workloadStream(name)))
	if err != nil {
		return fmt.Errorf("creating VM %q: %w", name, err)
	}
	h, err := Make[VM](w.registry, name)
	if err != nil {
		return fmt.Errorf("creating VM: %w", err)
	}
	mustGet[*VM](w.registry, h).setup(w.storage, wm, w.opts.VMDelays)
	return w.loop.Insert(NewStorageEvent(w.storage, w.Now(), StorageVMCreated, h), false)
}

// DoResourceAction sends a power command to the named cloud, data center or server.
func (w *World) DoResourceAction(name string, action ResourceAction, opts ...CommandOption) error {
	t := action.event()
	if t == 0 {
		return fmt.Errorf("unknown resource action %d", int(action))
	}
	res, err := lookupAs[Resource](w, name)
	if err != nil {
		w.Log().Errorf("%s %s: %v", action, name, err)
		return fmt.Errorf("%s: %w", action, err)
	}
	ev := w.arm(NewResourceEvent(res.Handle(), w.Now(), t), fmt.Sprintf("%s %s", action, name), collect(opts))
	return w.loop.Insert(ev, false)
}

// DoProvisionVM asks for the named VM to be placed and started. The
// bookkeeping request is queued behind a same-tick CreateVM and triggers a
// scheduler run once accepted.
func (w *World) DoProvisionVM(name string, opts ...CommandOption) error {
	vm, err := w.vmCommandTarget("provision", name)
	if err != nil {
		return err
	}
	now := w.Now()
	ev := w.arm(NewStorageEvent(w.storage, now, StorageProvisionRequested, vm.Handle()), "provision "+name, collect(opts))
	ev.Then = NewSchedulerEvent(w.scheduler, now, SchedulerRun)
	return w.loop.Insert(ev, false)
}

// DoStopVM stops the named VM and releases its server.
func (w *World) DoStopVM(name string, opts ...CommandOption) error {
	return w.vmCommand("stop", name, VMStop, opts)
}

// DoDeleteVM deletes the named VM and removes it from the bookkeeping table.
func (w *World) DoDeleteVM(name string, opts ...CommandOption) error {
	return w.vmCommand("delete", name, VMDelete, opts)
}

// DoRestartVM restarts the named VM in place.
func (w *World) DoRestartVM(name string, opts ...CommandOption) error {
	return w.vmCommand("restart", name, VMRestart, opts)
}

func (w *World) vmCommand(verb, name string, t VMEventType, opts []CommandOption) error {
	vm, err := w.vmCommandTarget(verb, name)
	if err != nil {
		return err
	}
	ev := w.arm(NewVMEvent(vm.Handle(), w.Now(), t), verb+" "+name, collect(opts))
	return w.loop.Insert(ev, false)
}

func (w *World) vmCommandTarget(verb, name string) (*VM, error) {
	vm, err := lookupAs[*VM](w, name)
	if err != nil {
		w.Log().Errorf("%s VM %s: %v", verb, name, err)
		return nil, fmt.Errorf("%s VM: %w", verb, err)
	}
	return vm, nil
}

// SimulateAll runs until no event is pending. Returns the number of events popped.
func (w *World) SimulateAll() int { return w.loop.SimulateAll() }

// SimulateSteps pops at most n events. Returns the number popped.
func (w *World) SimulateSteps(n int) int { return w.loop.SimulateSteps(n) }

// SimulateUntil runs every event at or before ts. Returns the number popped.
func (w *World) SimulateUntil(ts int64) int { return w.loop.SimulateUntil(ts) }
