package sim

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"

	"github.com/docker/go-units"
)

// Workload is the resource demand of a VM at one tick.
type Workload struct {
	RAM       uint64 // bytes
	CPU       uint32 // utilization percent
	Bandwidth uint32 // MB/s
}

func (w Workload) String() string {
	return fmt.Sprintf("ram=%s cpu=%d%% bw=%dMB/s", units.BytesSize(float64(w.RAM)), w.CPU, w.Bandwidth)
}

// WorkloadModel produces the demand of a VM over time.
type WorkloadModel interface {
	Workload(now int64) Workload
}

// Workload model parameter names.
const (
	ParamRequiredRAM       = "required_ram"
	ParamRequiredCPU       = "required_cpu"
	ParamRequiredBandwidth = "required_bandwidth"
)

// ValidWorkloadModels is the set of recognized workload model names.
var ValidWorkloadModels = map[string]bool{"constant": true, "random-uniform": true}

// IsValidWorkloadModel returns true if name is a recognized workload model.
func IsValidWorkloadModel(name string) bool {
	return ValidWorkloadModels[name]
}

// WorkloadModelNames returns the recognized workload model names, sorted.
func WorkloadModelNames() []string {
	names := make([]string, 0, len(ValidWorkloadModels))
	for n := range ValidWorkloadModels {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ConstantWorkload always demands the configured resources.
type ConstantWorkload struct {
	demand Workload
}

func (c *ConstantWorkload) Workload(_ int64) Workload {
	return c.demand
}

// RandomUniformWorkload draws each resource uniformly from [0, required].
// The draw is made once per tick so every reader within a tick sees the
// same demand.
type RandomUniformWorkload struct {
	max   Workload
	rng   *rand.Rand
	drawn bool
	at    int64
	last  Workload
}

func (r *RandomUniformWorkload) Workload(now int64) Workload {
	if r.drawn && r.at == now {
		return r.last
	}
	r.last = Workload{
		RAM:       uint64(r.rng.Int63n(int64(r.max.RAM) + 1)),
		CPU:       uint32(r.rng.Int63n(int64(r.max.CPU) + 1)),
		Bandwidth: uint32(r.rng.Int63n(int64(r.max.Bandwidth) + 1)),
	}
	r.at, r.drawn = now, true
	return r.last
}

// NewWorkloadModel builds the named model from string parameters.
// required_ram is mandatory and accepts sizes such as "512" or "2GiB";
// required_cpu and required_bandwidth default to zero.
func NewWorkloadModel(name string, params map[string]string, rng *rand.Rand) (WorkloadModel, error) {
	if !IsValidWorkloadModel(name) {
		return nil, fmt.Errorf("%w %q (valid: %v)", ErrUnknownWorkloadModel, name, WorkloadModelNames())
	}
	demand, err := parseWorkloadParams(params)
	if err != nil {
		return nil, fmt.Errorf("workload model %q: %w", name, err)
	}
	switch name {
	case "constant":
		return &ConstantWorkload{demand: demand}, nil
	case "random-uniform":
		if rng == nil {
			panic("NewWorkloadModel: random-uniform requires an rng")
		}
		if demand.RAM > uint64(1<<62) {
			return nil, fmt.Errorf("workload model %q: %s too large", name, ParamRequiredRAM)
		}
		return &RandomUniformWorkload{max: demand, rng: rng}, nil
	default:
		panic(fmt.Sprintf("unhandled workload model %q", name))
	}
}

func parseWorkloadParams(params map[string]string) (Workload, error) {
	var w Workload
	for key := range params {
		switch key {
		case ParamRequiredRAM, ParamRequiredCPU, ParamRequiredBandwidth:
		default:
			return w, fmt.Errorf("unknown parameter %q", key)
		}
	}

	raw, ok := params[ParamRequiredRAM]
	if !ok {
		return w, fmt.Errorf("%s field not found", ParamRequiredRAM)
	}
	ram, err := units.RAMInBytes(raw)
	if err != nil {
		return w, fmt.Errorf("parsing %s: %w", ParamRequiredRAM, err)
	}
	if ram < 0 {
		return w, fmt.Errorf("%s must be non-negative, got %d", ParamRequiredRAM, ram)
	}
	w.RAM = uint64(ram)

	if raw, ok := params[ParamRequiredCPU]; ok {
		cpu, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return w, fmt.Errorf("parsing %s: %w", ParamRequiredCPU, err)
		}
		w.CPU = uint32(cpu)
	}
	if raw, ok := params[ParamRequiredBandwidth]; ok {
		bw, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return w, fmt.Errorf("parsing %s: %w", ParamRequiredBandwidth, err)
		}
		w.Bandwidth = uint32(bw)
	}
	return w, nil
}
