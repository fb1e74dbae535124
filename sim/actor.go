package sim

import (
	"io"

	"github.com/sirupsen/logrus"
)

// ActorKind names the type of a simulated entity in logs and errors.
type ActorKind string

const (
	KindCloud      ActorKind = "Cloud"
	KindDataCenter ActorKind = "DataCenter"
	KindServer     ActorKind = "Server"
	KindVM         ActorKind = "VM"
	KindVMStorage  ActorKind = "VMStorage"
	KindScheduler  ActorKind = "Scheduler"
	KindNotifier   ActorKind = "Notifier"
	KindEventLoop  ActorKind = "EventLoop"
	KindDriver     ActorKind = "Driver"
)

// Env is the capability set the registry injects into every entity:
// scheduling future events, reading the clock and logging.
type Env struct {
	Schedule func(e *Event, immediate bool) error
	Now      func() int64
	Logger   *logrus.Logger
	// NameOf renders a handle for log lines. Filled in by the registry.
	NameOf func(h Handle) string
}

func (env Env) withDefaults() Env {
	if env.Now == nil {
		env.Now = func() int64 { return 0 }
	}
	if env.Logger == nil {
		env.Logger = newLogger(logrus.InfoLevel, io.Discard, nil)
	}
	if env.NameOf == nil {
		env.NameOf = Handle.String
	}
	return env
}

// Actor is a named simulated entity that reacts to events.
// Entities never touch each other directly; they only schedule events.
type Actor interface {
	Handle() Handle
	Name() string
	Kind() ActorKind
	// Accepts reports whether the entity handles events of kind k.
	Accepts(k EventKind) bool
	// HandleEvent reacts to one event. It must not panic: failures become
	// logged state transitions.
	HandleEvent(e *Event)

	attach(h Handle, name string, kind ActorKind, env Env)
}

// actorBase carries identity and the injected Env. Every concrete entity embeds it.
type actorBase struct {
	handle Handle
	name   string
	kind   ActorKind
	env    Env
}

func (a *actorBase) Handle() Handle { return a.handle }
func (a *actorBase) Name() string   { return a.name }

func (a *actorBase) attach(h Handle, name string, kind ActorKind, env Env) {
	a.handle = h
	a.name = name
	a.kind = kind
	a.env = env
}

func (a *actorBase) now() int64 {
	return a.env.Now()
}

// schedule inserts e. A past timestamp is already logged by the loop.
func (a *actorBase) schedule(e *Event, immediate bool) {
	if a.env.Schedule == nil {
		a.log().Errorf("cannot schedule %s: entity is not attached to a loop", e)
		return
	}
	_ = a.env.Schedule(e, immediate)
}

// release schedules a continuation or completion record at the current tick.
func (a *actorBase) release(e *Event) {
	if e != nil {
		a.schedule(e.at(a.now()), false)
	}
}

func (a *actorBase) nameOf(h Handle) string {
	return a.env.NameOf(h)
}

func (a *actorBase) log() *logrus.Entry {
	return entityLog(a.env.Logger, a.now(), a.kind, a.name)
}
