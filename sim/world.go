package sim

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/cloud-sim/cloud-sim/sim/trace"
)

// Names of the entities every world starts with.
const (
	CloudName     = "cloud-1"
	StorageName   = "vm-storage-1"
	SchedulerName = "scheduler-1"
	NotifierName  = "notifier-1"
)

// Options configures a World.
type Options struct {
	// LogLevel is a logrus level name; empty means "info".
	LogLevel string
	// LogOutput receives the text log stream; nil discards it.
	LogOutput io.Writer
	// Sink receives structured log records; nil disables them.
	Sink Sink

	Seed        int64
	Placement   string // placement policy name, see ValidPlacementPolicies
	CloudDelays Delays
	VMDelays    VMDelays
	TraceLevel  trace.TraceLevel
}

// World owns the loop, the registry and the fixed entities of one
// simulation, and exposes the command surface used by drivers.
type World struct {
	opts     Options
	logger   *logrus.Logger
	loop     *Loop
	registry *Registry
	rng      *Streams
	trace    *trace.SimulationTrace

	cloud     Handle
	storage   Handle
	scheduler Handle
	notifier  Handle
}

// NewWorld builds an empty cloud with its bookkeeping table, scheduler and notifier.
func NewWorld(opts Options) (*World, error) {
	level := logrus.InfoLevel
	if opts.LogLevel != "" {
		parsed, err := logrus.ParseLevel(opts.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		level = parsed
	}
	if !IsValidPlacementPolicy(opts.Placement) {
		return nil, fmt.Errorf("%w: placement %q (valid: %v)", ErrUnknownPolicy, opts.Placement, ValidPlacementPolicyNames())
	}
	if !trace.IsValidTraceLevel(string(opts.TraceLevel)) {
		return nil, fmt.Errorf("unknown trace level %q", opts.TraceLevel)
	}

	logger := newLogger(level, opts.LogOutput, opts.Sink)
	loop := NewLoop(logger)
	reg := NewRegistry(Env{Schedule: loop.Insert, Now: loop.Now, Logger: logger})
	loop.Bind(reg)

	w := &World{
		opts:     opts,
		logger:   logger,
		loop:     loop,
		registry: reg,
		rng:      NewStreams(opts.Seed),
		trace:    trace.NewSimulationTrace(trace.TraceConfig{Level: opts.TraceLevel}),
	}

	w.storage = mustMake[VMStorage](reg, StorageName)
	w.cloud = mustMake[Cloud](reg, CloudName)
	w.scheduler = mustMake[Scheduler](reg, SchedulerName)
	w.notifier = mustMake[Notifier](reg, NotifierName)

	cloud := mustGet[*Cloud](reg, w.cloud)
	cloud.storage = w.storage
	cloud.SetDelays(opts.CloudDelays)
	mustGet[*Scheduler](reg, w.scheduler).setup(w.cloud, reg, opts.Placement, w.trace)

	loop.OnTickComplete(w.updateWorld)
	return w, nil
}

// AddDataCenter attaches a new data center to the cloud.
func (w *World) AddDataCenter(name string, d Delays) (Handle, error) {
	h, err := Make[DataCenter](w.registry, name)
	if err != nil {
		return Handle{}, fmt.Errorf("adding data center: %w", err)
	}
	mustGet[*DataCenter](w.registry, h).SetDelays(d)
	mustGet[*Cloud](w.registry, w.cloud).addChild(h)
	return h, nil
}

// SetCloudDelays replaces the cloud's own transition durations.
// Events already queued keep the delays they were scheduled with.
func (w *World) SetCloudDelays(d Delays) {
	mustGet[*Cloud](w.registry, w.cloud).SetDelays(d)
}

// AddServer attaches a new server to data center dc.
func (w *World) AddServer(dc Handle, name string, spec ServerSpec, d Delays, admission string) (Handle, error) {
	if !IsValidAdmissionPolicy(admission) {
		return Handle{}, fmt.Errorf("adding server %q: %w: admission %q (valid: %v)", name, ErrUnknownPolicy, admission, ValidAdmissionPolicyNames())
	}
	parent, err := GetActor[*DataCenter](w.registry, dc)
	if err != nil {
		return Handle{}, fmt.Errorf("adding server %q: %w", name, err)
	}
	h, err := Make[Server](w.registry, name)
	if err != nil {
		return Handle{}, fmt.Errorf("adding server: %w", err)
	}
	srv := mustGet[*Server](w.registry, h)
	srv.setup(spec, admission)
	srv.SetDelays(d)
	parent.addChild(h)
	return h, nil
}

// updateWorld is the tick-complete hook: server admission first, then the
// scheduler places whatever became pending during the tick. The hook runs
// again when the events it inserted drain; admission then only revisits
// servers whose hosted set changed.
func (w *World) updateWorld(ts int64) {
	w.runAdmission(ts)
	mustGet[*Scheduler](w.registry, w.scheduler).Run()
}

func (w *World) runAdmission(ts int64) {
	for _, srv := range w.servers() {
		if srv.admission == nil || len(srv.hosted) == 0 || !srv.needsAdmission(ts) {
			continue
		}
		srv.markAdmitted(ts)
		load, err := hostedLoad(w.registry, srv, ts)
		if err != nil {
			srv.log().Errorf("admission: %v", err)
			continue
		}
		for _, d := range srv.admission.Classify(srv.Spec(), load) {
			if d.Saturated {
				srv.log().Debugf("VM %s is saturated", d.Name)
			} else {
				srv.log().Debugf("VM %s is NOT saturated", d.Name)
			}
			w.trace.RecordAdmission(trace.AdmissionRecord{
				Server:       srv.Name(),
				VM:           d.Name,
				Clock:        ts,
				Saturated:    d.Saturated,
				RemainingRAM: d.RemainingRAM,
			})
		}
	}
}

// servers returns every server in tree order.
func (w *World) servers() []*Server {
	var out []*Server
	for _, dch := range mustGet[*Cloud](w.registry, w.cloud).DataCenters() {
		dc := mustGet[*DataCenter](w.registry, dch)
		for _, sh := range dc.Servers() {
			out = append(out, mustGet[*Server](w.registry, sh))
		}
	}
	return out
}

// Now returns the current simulated tick.
func (w *World) Now() int64 { return w.loop.Now() }

// Loop returns the event loop.
func (w *World) Loop() *Loop { return w.loop }

// Registry returns the entity arena.
func (w *World) Registry() *Registry { return w.registry }

// Trace returns the decision trace.
func (w *World) Trace() *trace.SimulationTrace { return w.trace }

// Metrics returns the loop statistics.
func (w *World) Metrics() *Metrics { return w.loop.Metrics() }

// Logger returns the world's logger.
func (w *World) Logger() *logrus.Logger { return w.logger }

// DriverName is the actor name of records logged through World.Log.
const DriverName = "driver"

// Log returns an entry stamped with the current tick for messages of
// whoever drives the world. They reach the sink alongside entity records.
func (w *World) Log() *logrus.Entry {
	return entityLog(w.logger, w.Now(), KindDriver, DriverName)
}

// Cloud returns the handle of the cloud.
func (w *World) Cloud() Handle { return w.cloud }

// Storage returns the handle of the VM bookkeeping table.
func (w *World) Storage() Handle { return w.storage }

// Scheduler returns the handle of the scheduler.
func (w *World) Scheduler() Handle { return w.scheduler }

// Lookup returns the handle registered under name.
func (w *World) Lookup(name string) (Handle, error) {
	return w.registry.GetActorHandle(name)
}

// PowerState returns the power state of the named resource.
func (w *World) PowerState(name string) (PowerState, error) {
	res, err := lookupAs[Resource](w, name)
	if err != nil {
		return PowerFailure, err
	}
	return res.PowerState(), nil
}

// VMState returns the lifecycle state of the named VM.
func (w *World) VMState(name string) (VMState, error) {
	vm, err := lookupAs[*VM](w, name)
	if err != nil {
		return VMFailure, err
	}
	return vm.State(), nil
}

// VMStatus returns the bookkeeping status of the named VM.
// ok is false when the table has no row for it.
func (w *World) VMStatus(name string) (status VMStatus, ok bool, err error) {
	h, err := w.registry.GetActorHandle(name)
	if err != nil {
		return 0, false, err
	}
	status, ok = mustGet[*VMStorage](w.registry, w.storage).Status(h)
	return status, ok, nil
}

// HostedVMs returns the names of the VMs hosted on the named server, in hosting order.
func (w *World) HostedVMs(server string) ([]string, error) {
	srv, err := lookupAs[*Server](w, server)
	if err != nil {
		return nil, err
	}
	hosted := srv.HostedVMs()
	names := make([]string, 0, len(hosted))
	for _, h := range hosted {
		names = append(names, w.registry.nameOf(h))
	}
	return names, nil
}

func lookupAs[T Actor](w *World, name string) (T, error) {
	var zero T
	h, err := w.registry.GetActorHandle(name)
	if err != nil {
		return zero, err
	}
	a, err := GetActor[T](w.registry, h)
	if err != nil {
		return zero, fmt.Errorf("%q: %w", name, err)
	}
	return a, nil
}

// mustMake registers a fixed entity; failure means the world was built twice over one registry.
func mustMake[T any, PT interface {
	*T
	Actor
}](r *Registry, name string) Handle {
	h, err := Make[T, PT](r, name)
	if err != nil {
		panic(fmt.Sprintf("registering %q: %v", name, err))
	}
	return h
}

func mustGet[T Actor](r *Registry, h Handle) T {
	a, err := GetActor[T](r, h)
	if err != nil {
		panic(fmt.Sprintf("resolving %s: %v", h, err))
	}
	return a
}
