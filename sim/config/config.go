// Package config loads the resource description of a simulated cloud from
// a directory holding specs.yaml (server hardware) and cloud.yaml (the
// data center tree and simulation settings).
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"

	"github.com/cloud-sim/cloud-sim/sim"
)

// File names expected in a config directory.
const (
	SpecsFile = "specs.yaml"
	CloudFile = "cloud.yaml"
)

// Spec is one server hardware entry of specs.yaml.
type Spec struct {
	Name      string  `yaml:"name"`
	RAM       string  `yaml:"ram"`        // bytes, or a size such as "16GiB"
	ClockRate float64 `yaml:"clock-rate"` // MHz
	Cores     uint32  `yaml:"cores-count"`
}

// Delays are the power transition durations of a resource, in ticks.
type Delays struct {
	Startup  int64 `yaml:"startup-delay"`
	Reboot   int64 `yaml:"reboot-delay"`
	Shutdown int64 `yaml:"shutdown-delay"`
}

// VMDelays are the lifecycle transition durations of every VM, in ticks.
type VMDelays struct {
	Start   int64 `yaml:"start"`
	Restart int64 `yaml:"restart"`
	Stop    int64 `yaml:"stop"`
	Delete  int64 `yaml:"delete"`
}

// ServerGroup declares Count servers of the hardware entry named Spec.
type ServerGroup struct {
	Spec      string `yaml:"name"`
	Count     int    `yaml:"count"`
	Admission string `yaml:"scheduler"` // server-local admission policy
	Delays    `yaml:",inline"`
}

// DataCenter is one data center entry of cloud.yaml.
type DataCenter struct {
	Name    string        `yaml:"name"`
	Delays  `yaml:",inline"`
	Servers []ServerGroup `yaml:"servers"`
}

// Cloud is the content of cloud.yaml.
type Cloud struct {
	Scheduler   string       `yaml:"scheduler"` // placement policy
	Seed        *int64       `yaml:"seed"`
	Delays      `yaml:",inline"`
	VMDelays    VMDelays     `yaml:"vm-delays"`
	DataCenters []DataCenter `yaml:"data-centers"`
}

// Config is a parsed config directory.
type Config struct {
	Specs []Spec
	Cloud Cloud

	parsed map[string]sim.ServerSpec
}

// Load reads and validates specs.yaml and cloud.yaml from dir.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func Load(dir string) (*Config, error) {
	cfg := &Config{}
	if err := decodeFile(filepath.Join(dir, SpecsFile), &cfg.Specs); err != nil {
		return nil, err
	}
	if err := decodeFile(filepath.Join(dir, CloudFile), &cfg.Cloud); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Validate checks names, sizes, policies and delays, and resolves the
// server specs.
func (c *Config) Validate() error {
	c.parsed = make(map[string]sim.ServerSpec, len(c.Specs))
	for i, s := range c.Specs {
		spec, err := s.parse()
		if err != nil {
			return fmt.Errorf("spec[%d]: %w", i, err)
		}
		if _, dup := c.parsed[s.Name]; dup {
			return fmt.Errorf("spec[%d]: name %q is already in use", i, s.Name)
		}
		c.parsed[s.Name] = spec
	}

	if !sim.IsValidPlacementPolicy(c.Cloud.Scheduler) {
		return fmt.Errorf("cloud: unknown scheduler %q; valid: %v", c.Cloud.Scheduler, sim.ValidPlacementPolicyNames())
	}
	if err := c.Cloud.Delays.validate("cloud"); err != nil {
		return err
	}
	if err := c.Cloud.VMDelays.validate(); err != nil {
		return err
	}

	dcNames := make(map[string]bool, len(c.Cloud.DataCenters))
	for i, dc := range c.Cloud.DataCenters {
		prefix := fmt.Sprintf("data-centers[%d]", i)
		if dc.Name == "" {
			return fmt.Errorf("%s: name is required", prefix)
		}
		if dcNames[dc.Name] {
			return fmt.Errorf("%s: name %q is already in use", prefix, dc.Name)
		}
		dcNames[dc.Name] = true
		if err := dc.Delays.validate(prefix); err != nil {
			return err
		}
		for j, g := range dc.Servers {
			gp := fmt.Sprintf("%s.servers[%d]", prefix, j)
			if _, ok := c.parsed[g.Spec]; !ok {
				return fmt.Errorf("%s: unknown spec %q", gp, g.Spec)
			}
			if g.Count <= 0 {
				return fmt.Errorf("%s: count must be positive, got %d", gp, g.Count)
			}
			if !sim.IsValidAdmissionPolicy(g.Admission) {
				return fmt.Errorf("%s: unknown scheduler %q; valid: %v", gp, g.Admission, sim.ValidAdmissionPolicyNames())
			}
			if err := g.Delays.validate(gp); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s Spec) parse() (sim.ServerSpec, error) {
	if s.Name == "" {
		return sim.ServerSpec{}, fmt.Errorf("name is required")
	}
	ram, err := units.RAMInBytes(s.RAM)
	if err != nil {
		return sim.ServerSpec{}, fmt.Errorf("%s: ram: %w", s.Name, err)
	}
	if ram <= 0 {
		return sim.ServerSpec{}, fmt.Errorf("%s: ram must be positive, got %q", s.Name, s.RAM)
	}
	if s.ClockRate <= 0 {
		return sim.ServerSpec{}, fmt.Errorf("%s: clock-rate must be positive, got %f", s.Name, s.ClockRate)
	}
	if s.Cores == 0 {
		return sim.ServerSpec{}, fmt.Errorf("%s: cores-count must be positive", s.Name)
	}
	return sim.ServerSpec{
		Name:      s.Name,
		RAM:       uint64(ram),
		ClockRate: uint64(s.ClockRate * 1_000_000),
		Cores:     s.Cores,
	}, nil
}

func (d Delays) validate(where string) error {
	if d.Startup < 0 || d.Reboot < 0 || d.Shutdown < 0 {
		return fmt.Errorf("%s: delays must be non-negative, got %+v", where, d)
	}
	return nil
}

func (d VMDelays) validate() error {
	if d.Start < 0 || d.Restart < 0 || d.Stop < 0 || d.Delete < 0 {
		return fmt.Errorf("vm-delays must be non-negative, got %+v", d)
	}
	return nil
}

func (d Delays) toSim() sim.Delays {
	return sim.Delays{Startup: d.Startup, Reboot: d.Reboot, Shutdown: d.Shutdown}
}

// ServerSpec returns the parsed hardware of the named spec.
func (c *Config) ServerSpec(name string) (sim.ServerSpec, bool) {
	s, ok := c.parsed[name]
	return s, ok
}

// Options overlays the cloud-wide settings onto base.
func (c *Config) Options(base sim.Options) sim.Options {
	base.Placement = c.Cloud.Scheduler
	base.CloudDelays = c.Cloud.Delays.toSim()
	base.VMDelays = sim.VMDelays{
		Start:   c.Cloud.VMDelays.Start,
		Restart: c.Cloud.VMDelays.Restart,
		Stop:    c.Cloud.VMDelays.Stop,
		Delete:  c.Cloud.VMDelays.Delete,
	}
	if c.Cloud.Seed != nil {
		base.Seed = *c.Cloud.Seed
	}
	return base
}

// Populate creates the data centers and servers in w. Servers are named
// <spec>-<serial>, with one serial counter per spec across data centers.
func (c *Config) Populate(w *sim.World) error {
	serials := make(map[string]int, len(c.parsed))
	servers := 0
	for _, dc := range c.Cloud.DataCenters {
		dch, err := w.AddDataCenter(dc.Name, dc.Delays.toSim())
		if err != nil {
			return err
		}
		for _, g := range dc.Servers {
			spec := c.parsed[g.Spec]
			for i := 0; i < g.Count; i++ {
				serials[g.Spec]++
				name := fmt.Sprintf("%s-%d", g.Spec, serials[g.Spec])
				if _, err := w.AddServer(dch, name, spec, g.Delays.toSim(), g.Admission); err != nil {
					return err
				}
				servers++
			}
		}
	}
	w.Logger().Infof("cloud %s: %d data center(s), %d server(s)", sim.CloudName, len(c.Cloud.DataCenters), servers)
	return nil
}
