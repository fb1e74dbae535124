package trace

// TraceLevel selects which decisions are kept.
type TraceLevel string

const (
	// TraceLevelNone keeps nothing.
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions keeps every placement and admission decision.
	TraceLevelDecisions TraceLevel = "decisions"
)

// IsValidTraceLevel reports whether level is "", "none" or "decisions".
// The empty string means none.
func IsValidTraceLevel(level string) bool {
	switch TraceLevel(level) {
	case "", TraceLevelNone, TraceLevelDecisions:
		return true
	}
	return false
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace is the decision log of one world. Records are kept in
// the order the decisions were made.
type SimulationTrace struct {
	Config     TraceConfig
	Placements []PlacementRecord
	Admissions []AdmissionRecord
}

// NewSimulationTrace creates an empty trace.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{Config: config}
}

// Enabled reports whether records should be collected. Safe on a nil trace.
func (st *SimulationTrace) Enabled() bool {
	return st != nil && st.Config.Level == TraceLevelDecisions
}

// RecordPlacement keeps a placement decision. No-op when tracing is off.
func (st *SimulationTrace) RecordPlacement(record PlacementRecord) {
	if st.Enabled() {
		st.Placements = append(st.Placements, record)
	}
}

// RecordAdmission keeps an admission decision. No-op when tracing is off.
func (st *SimulationTrace) RecordAdmission(record AdmissionRecord) {
	if st.Enabled() {
		st.Admissions = append(st.Admissions, record)
	}
}

// PlacementsFor returns the placements of one VM, oldest first.
// A VM provisioned again after a stop has one record per placement.
func (st *SimulationTrace) PlacementsFor(vm string) []PlacementRecord {
	if st == nil {
		return nil
	}
	var out []PlacementRecord
	for _, p := range st.Placements {
		if p.VM == vm {
			out = append(out, p)
		}
	}
	return out
}

// LastAdmission returns the most recent classification of vm on server.
func (st *SimulationTrace) LastAdmission(server, vm string) (AdmissionRecord, bool) {
	if st == nil {
		return AdmissionRecord{}, false
	}
	for i := len(st.Admissions) - 1; i >= 0; i-- {
		if a := st.Admissions[i]; a.Server == server && a.VM == vm {
			return a, true
		}
	}
	return AdmissionRecord{}, false
}
