package sim

import "fmt"

// HostedLoad is the demand of one VM hosted on a server, in hosting order.
type HostedLoad struct {
	VM     Handle
	Name   string
	Demand Workload
}

// AdmissionDecision classifies one hosted VM.
// Saturated means the VM's RAM demand is fully covered by the server.
type AdmissionDecision struct {
	VM           Handle
	Name         string
	Saturated    bool
	RemainingRAM uint64 // server RAM left after this decision
}

// AdmissionPolicy is the server-local policy run at the end of every tick
// over the VMs a server hosts.
type AdmissionPolicy interface {
	Classify(spec ServerSpec, hosted []HostedLoad) []AdmissionDecision
}

// GreedyAdmission walks the hosted VMs in order and grants each its full
// RAM demand while the server has room. A VM that does not fit is
// under-provisioned; later, smaller VMs may still fit.
type GreedyAdmission struct{}

func (g *GreedyAdmission) Classify(spec ServerSpec, hosted []HostedLoad) []AdmissionDecision {
	remaining := spec.RAM
	decisions := make([]AdmissionDecision, 0, len(hosted))
	for _, h := range hosted {
		d := AdmissionDecision{VM: h.VM, Name: h.Name}
		if h.Demand.RAM <= remaining {
			remaining -= h.Demand.RAM
			d.Saturated = true
		}
		d.RemainingRAM = remaining
		decisions = append(decisions, d)
	}
	return decisions
}

// NoAdmission never classifies.
type NoAdmission struct{}

func (n *NoAdmission) Classify(_ ServerSpec, _ []HostedLoad) []AdmissionDecision {
	return nil
}

// NewAdmissionPolicy creates a server admission policy by name.
// Valid names are defined in ValidAdmissionPolicies (bundle.go).
// An empty string defaults to greedy.
// Panics on unrecognized names.
func NewAdmissionPolicy(name string) AdmissionPolicy {
	if !IsValidAdmissionPolicy(name) {
		panic(fmt.Sprintf("unknown admission policy %q", name))
	}
	switch name {
	case "", "greedy":
		return &GreedyAdmission{}
	case "none":
		return &NoAdmission{}
	default:
		panic(fmt.Sprintf("unhandled admission policy %q", name))
	}
}
