// Tracks run statistics of the event loop such as dispatched and dropped events.

package sim

import (
	"fmt"
	"io"
	"sort"
)

// Metrics aggregates statistics about the simulation
// for final reporting. Useful for debugging behavior over time.
type Metrics struct {
	EventsDispatched int // Events delivered to an addressee
	EventsCancelled  int // Events dropped by their cancellation predicate
	EventsRejected   int // Inserts refused for a past timestamp
	TicksCompleted   int // Distinct ticks whose bucket drained
	LastTick         int64

	DispatchedByKind map[EventKind]int
}

func newMetrics() *Metrics {
	return &Metrics{DispatchedByKind: make(map[EventKind]int)}
}

// Print writes the aggregated metrics at the end of the simulation.
func (m *Metrics) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Simulation Metrics ===")
	fmt.Fprintf(w, "Last Tick            : %d\n", m.LastTick)
	fmt.Fprintf(w, "Ticks Completed      : %d\n", m.TicksCompleted)
	fmt.Fprintf(w, "Events Dispatched    : %d\n", m.EventsDispatched)
	fmt.Fprintf(w, "Events Cancelled     : %d\n", m.EventsCancelled)
	fmt.Fprintf(w, "Events Rejected      : %d\n", m.EventsRejected)

	kinds := make([]EventKind, 0, len(m.DispatchedByKind))
	for k := range m.DispatchedByKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-18s : %d\n", k, m.DispatchedByKind[k])
	}
}
