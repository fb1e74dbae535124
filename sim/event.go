package sim

import "fmt"

// EventKind tags which payload of an Event is populated.
// The set is closed: actors declare the kinds they accept and the loop
// refuses to deliver anything else.
type EventKind int

const (
	EventResource EventKind = iota + 1
	EventVM
	EventServer
	EventStorage
	EventScheduler
	EventNotify
)

func (k EventKind) String() string {
	switch k {
	case EventResource:
		return "resource"
	case EventVM:
		return "vm"
	case EventServer:
		return "server"
	case EventStorage:
		return "storage"
	case EventScheduler:
		return "scheduler"
	case EventNotify:
		return "notify"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// ResourceEventType is the payload of an EventResource event.
type ResourceEventType int

const (
	ResourceBoot ResourceEventType = iota + 1
	ResourceBootFinished
	ResourceReboot
	ResourceShutdown
	ResourceShutdownFinished
)

func (t ResourceEventType) String() string {
	switch t {
	case ResourceBoot:
		return "Boot"
	case ResourceBootFinished:
		return "BootFinished"
	case ResourceReboot:
		return "Reboot"
	case ResourceShutdown:
		return "Shutdown"
	case ResourceShutdownFinished:
		return "ShutdownFinished"
	default:
		return fmt.Sprintf("ResourceEventType(%d)", int(t))
	}
}

// VMEventType is the payload of an EventVM event.
type VMEventType int

const (
	VMProvisionCompleted VMEventType = iota + 1
	VMStart
	VMStartCompleted
	VMRestart
	VMRestartCompleted
	VMStop
	VMStopCompleted
	VMDelete
	VMDeleteCompleted
	VMProvisionAccepted
	VMProvisionRefused
)

func (t VMEventType) String() string {
	switch t {
	case VMProvisionCompleted:
		return "ProvisionCompleted"
	case VMStart:
		return "Start"
	case VMStartCompleted:
		return "StartCompleted"
	case VMRestart:
		return "Restart"
	case VMRestartCompleted:
		return "RestartCompleted"
	case VMStop:
		return "Stop"
	case VMStopCompleted:
		return "StopCompleted"
	case VMDelete:
		return "Delete"
	case VMDeleteCompleted:
		return "DeleteCompleted"
	case VMProvisionAccepted:
		return "ProvisionAccepted"
	case VMProvisionRefused:
		return "ProvisionRefused"
	default:
		return fmt.Sprintf("VMEventType(%d)", int(t))
	}
}

// ServerEventType is the payload of an EventServer event.
type ServerEventType int

const (
	ServerProvisionVM ServerEventType = iota + 1
	ServerUnprovisionVM
)

func (t ServerEventType) String() string {
	switch t {
	case ServerProvisionVM:
		return "ProvisionVM"
	case ServerUnprovisionVM:
		return "UnprovisionVM"
	default:
		return fmt.Sprintf("ServerEventType(%d)", int(t))
	}
}

// StorageEventType is the payload of an EventStorage event.
type StorageEventType int

const (
	StorageVMCreated StorageEventType = iota + 1
	StorageProvisionRequested
	StorageVMScheduled
	StorageVMHosted
	StorageVMStopped
	StorageVMDeleted
	StorageVMUnscheduled
)

func (t StorageEventType) String() string {
	switch t {
	case StorageVMCreated:
		return "VMCreated"
	case StorageProvisionRequested:
		return "ProvisionRequested"
	case StorageVMScheduled:
		return "VMScheduled"
	case StorageVMHosted:
		return "VMHosted"
	case StorageVMStopped:
		return "VMStopped"
	case StorageVMDeleted:
		return "VMDeleted"
	case StorageVMUnscheduled:
		return "VMUnscheduled"
	default:
		return fmt.Sprintf("StorageEventType(%d)", int(t))
	}
}

// SchedulerEventType is the payload of an EventScheduler event.
type SchedulerEventType int

const (
	SchedulerRun SchedulerEventType = iota + 1
)

func (t SchedulerEventType) String() string {
	if t == SchedulerRun {
		return "Run"
	}
	return fmt.Sprintf("SchedulerEventType(%d)", int(t))
}

// Notification is the payload of an EventNotify event: a completion
// record handed back to whoever issued the command.
type Notification struct {
	Label string
	Done  func(at int64)
}

// Event is a unit of future work addressed to one entity.
// Kind selects which of the payload fields is meaningful.
type Event struct {
	Addressee Handle
	Time      int64 // in ticks
	// Cancelled, when set, is consulted at dispatch time; a true result
	// drops the event without touching the addressee.
	Cancelled func() bool

	Kind      EventKind
	Resource  ResourceEventType
	VM        VMEventType
	Server    ServerEventType
	Storage   StorageEventType
	Scheduler SchedulerEventType
	Subject   Handle // VM for server/storage events, server for ProvisionCompleted/Refused
	Notify    *Notification

	// Awaiting is the completion record of the command that produced this
	// event. The addressee registers it only once it accepts the event, so
	// a cancelled or rejected command never reports completion.
	Awaiting *Event

	// Then is scheduled by the addressee once it has handled this event.
	Then *Event
}

// NewResourceEvent builds a power-state event for a cloud, data center or server.
func NewResourceEvent(to Handle, at int64, t ResourceEventType) *Event {
	return &Event{Addressee: to, Time: at, Kind: EventResource, Resource: t}
}

// NewVMEvent builds a lifecycle event for a VM.
func NewVMEvent(to Handle, at int64, t VMEventType) *Event {
	return &Event{Addressee: to, Time: at, Kind: EventVM, VM: t}
}

// NewServerEvent builds a hosting event for a server about vm.
func NewServerEvent(to Handle, at int64, t ServerEventType, vm Handle) *Event {
	return &Event{Addressee: to, Time: at, Kind: EventServer, Server: t, Subject: vm}
}

// NewStorageEvent builds a bookkeeping event about vm.
func NewStorageEvent(to Handle, at int64, t StorageEventType, vm Handle) *Event {
	return &Event{Addressee: to, Time: at, Kind: EventStorage, Storage: t, Subject: vm}
}

// NewSchedulerEvent builds a scheduler event.
func NewSchedulerEvent(to Handle, at int64, t SchedulerEventType) *Event {
	return &Event{Addressee: to, Time: at, Kind: EventScheduler, Scheduler: t}
}

// NewNotifyEvent builds a completion notification.
func NewNotifyEvent(to Handle, at int64, n *Notification) *Event {
	return &Event{Addressee: to, Time: at, Kind: EventNotify, Notify: n}
}

// cancelled reports whether the event's cancellation predicate fired.
func (e *Event) cancelled() bool {
	return e.Cancelled != nil && e.Cancelled()
}

// at returns a copy of e stamped with a new time, used to release
// continuations and completion records.
func (e *Event) at(ts int64) *Event {
	c := *e
	c.Time = ts
	return &c
}

func (e *Event) String() string {
	var payload string
	switch e.Kind {
	case EventResource:
		payload = e.Resource.String()
	case EventVM:
		payload = e.VM.String()
	case EventServer:
		payload = fmt.Sprintf("%s(%s)", e.Server, e.Subject)
	case EventStorage:
		payload = fmt.Sprintf("%s(%s)", e.Storage, e.Subject)
	case EventScheduler:
		payload = e.Scheduler.String()
	case EventNotify:
		if e.Notify != nil {
			payload = e.Notify.Label
		}
	}
	return fmt.Sprintf("%s:%s@%d->%s", e.Kind, payload, e.Time, e.Addressee)
}
