package trace

// TraceSummary holds the aggregate counts of a decision trace.
type TraceSummary struct {
	TotalPlacements    int
	UniqueTargets      int
	TargetDistribution map[string]int // server name -> VMs placed there
	AdmissionChecks    int
	SaturatedCount     int
	UnderProvisioned   int
	// Starved counts, per server, the under-provisioned classifications.
	Starved map[string]int
}

// Summarize aggregates st. A nil trace gives zero counts and empty,
// non-nil maps.
func Summarize(st *SimulationTrace) *TraceSummary {
	out := &TraceSummary{
		TargetDistribution: map[string]int{},
		Starved:            map[string]int{},
	}
	if st == nil {
		return out
	}

	for _, p := range st.Placements {
		out.TargetDistribution[p.Server]++
	}
	out.TotalPlacements = len(st.Placements)
	out.UniqueTargets = len(out.TargetDistribution)

	for _, a := range st.Admissions {
		if !a.Saturated {
			out.Starved[a.Server]++
		}
	}
	out.AdmissionChecks = len(st.Admissions)
	for _, n := range out.Starved {
		out.UnderProvisioned += n
	}
	out.SaturatedCount = out.AdmissionChecks - out.UnderProvisioned
	return out
}
