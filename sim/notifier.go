package sim

// Notifier delivers completion records back to command issuers.
type Notifier struct {
	actorBase
	delivered int
}

func (n *Notifier) Kind() ActorKind { return KindNotifier }

func (n *Notifier) Accepts(k EventKind) bool { return k == EventNotify }

func (n *Notifier) HandleEvent(e *Event) {
	if e.Notify == nil {
		n.log().Error("notification without payload")
		return
	}
	n.delivered++
	n.log().Debugf("%s completed", e.Notify.Label)
	if e.Notify.Done != nil {
		e.Notify.Done(n.now())
	}
}

// Delivered returns the number of notifications handled.
func (n *Notifier) Delivered() int { return n.delivered }
