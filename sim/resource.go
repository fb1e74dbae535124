package sim

import "fmt"

// PowerState is the power state of a cloud, data center or server.
type PowerState int

const (
	PowerOff PowerState = iota
	PowerTurningOn
	PowerRunning
	PowerTurningOff
	PowerFailure
)

func (s PowerState) String() string {
	switch s {
	case PowerOff:
		return "OFF"
	case PowerTurningOn:
		return "TURNING_ON"
	case PowerRunning:
		return "RUNNING"
	case PowerTurningOff:
		return "TURNING_OFF"
	case PowerFailure:
		return "FAILURE"
	default:
		return fmt.Sprintf("PowerState(%d)", int(s))
	}
}

// Delays are the transition durations of a resource, in ticks.
type Delays struct {
	Startup  int64
	Reboot   int64
	Shutdown int64
}

// Resource is a power-managed entity with child resources.
type Resource interface {
	Actor
	PowerState() PowerState
	Children() []Handle
	Delays() Delays
}

type powerCompletion struct {
	state PowerState
	event *Event
}

// resource implements the power state machine shared by Cloud, DataCenter
// and Server. Boot and Shutdown cascade to children with the resource's own
// delay added; the resource itself is updated before the child events are
// inserted. FAILURE is terminal.
type resource struct {
	actorBase
	state    PowerState
	children []Handle
	delays   Delays
	awaiting []powerCompletion
}

func (r *resource) PowerState() PowerState { return r.state }
func (r *resource) Delays() Delays         { return r.delays }

// SetDelays replaces the transition durations.
func (r *resource) SetDelays(d Delays) { r.delays = d }

// Children returns a copy of the child handles in insertion order.
func (r *resource) Children() []Handle {
	out := make([]Handle, len(r.children))
	copy(out, r.children)
	return out
}

func (r *resource) addChild(h Handle) {
	r.children = append(r.children, h)
}

// expectPower registers e to be released when the resource enters state.
func (r *resource) expectPower(state PowerState, e *Event) {
	if r.state == PowerFailure {
		r.log().Errorf("dropping completion %s: resource is in %s state", e, PowerFailure)
		return
	}
	r.awaiting = append(r.awaiting, powerCompletion{state: state, event: e})
}

// await registers the completion record carried by an accepted command.
func (r *resource) await(e *Event, target PowerState) {
	if e.Awaiting != nil {
		r.expectPower(target, e.Awaiting)
	}
}

func (r *resource) handleResourceEvent(e *Event) {
	if r.state == PowerFailure {
		r.log().Errorf("ignoring %s: resource is in %s state", e.Resource, PowerFailure)
		return
	}

	switch e.Resource {
	case ResourceBoot:
		if !r.require(e, PowerOff) {
			return
		}
		r.setState(PowerTurningOn)
		r.await(e, PowerRunning)
		r.cascade(ResourceBoot, r.delays.Startup)
		r.schedule(NewResourceEvent(r.handle, r.now()+r.delays.Startup, ResourceBootFinished), false)

	case ResourceBootFinished:
		if r.require(e, PowerTurningOn) {
			r.setState(PowerRunning)
		}

	case ResourceReboot:
		if !r.require(e, PowerRunning) {
			return
		}
		r.setState(PowerTurningOn)
		r.await(e, PowerRunning)
		r.schedule(NewResourceEvent(r.handle, r.now()+r.delays.Reboot, ResourceBootFinished), false)

	case ResourceShutdown:
		if !r.require(e, PowerRunning) {
			return
		}
		r.setState(PowerTurningOff)
		r.await(e, PowerOff)
		r.cascade(ResourceShutdown, r.delays.Shutdown)
		r.schedule(NewResourceEvent(r.handle, r.now()+r.delays.Shutdown, ResourceShutdownFinished), false)

	case ResourceShutdownFinished:
		if r.require(e, PowerTurningOff) {
			r.setState(PowerOff)
		}

	default:
		r.log().Errorf("unknown resource event %s", e.Resource)
		r.fail()
	}
}

func (r *resource) cascade(t ResourceEventType, delay int64) {
	at := r.now() + delay
	for _, child := range r.children {
		r.schedule(NewResourceEvent(child, at, t), false)
	}
}

// require checks the source state of a transition and fails the resource on mismatch.
func (r *resource) require(e *Event, want PowerState) bool {
	if r.state == want {
		return true
	}
	r.log().Errorf("%s: current power state is %s but expected %s", e.Resource, r.state, want)
	r.fail()
	return false
}

func (r *resource) setState(s PowerState) {
	r.log().Infof("power state %s -> %s", r.state, s)
	r.state = s

	kept := r.awaiting[:0]
	for _, c := range r.awaiting {
		if c.state == s {
			r.release(c.event)
		} else {
			kept = append(kept, c)
		}
	}
	r.awaiting = kept
}

func (r *resource) fail() {
	r.state = PowerFailure
	if n := len(r.awaiting); n > 0 {
		r.log().Errorf("dropping %d pending completion(s)", n)
	}
	r.awaiting = nil
}
