// Package trace provides decision-trace recording for placement and admission analysis.
// This package has no dependencies on sim/; it stores plain data types.
package trace

// PlacementRecord captures a single placement policy decision.
type PlacementRecord struct {
	VM         string
	Clock      int64
	Policy     string
	DataCenter string
	Server     string
	Reason     string
	FreeRAM    uint64 // free RAM of the chosen server before placement, in bytes
}

// AdmissionRecord captures the classification of one hosted VM by a
// server-local admission policy.
type AdmissionRecord struct {
	Server       string
	VM           string
	Clock        int64
	Saturated    bool
	RemainingRAM uint64
}
