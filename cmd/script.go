package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cloud-sim/cloud-sim/sim"
)

// Step is one entry of a command script. Exactly one action field is set;
// At, when present, first advances the simulation to that tick.
type Step struct {
	At *int64 `yaml:"at"`

	Boot     string `yaml:"boot"`
	Reboot   string `yaml:"reboot"`
	Shutdown string `yaml:"shutdown"`

	CreateVM  *CreateVMStep `yaml:"create-vm"`
	Provision string        `yaml:"provision"`
	Stop      string        `yaml:"stop"`
	Delete    string        `yaml:"delete"`
	Restart   string        `yaml:"restart"`

	Simulate *SimulateStep `yaml:"simulate"`
}

// CreateVMStep declares a VM and its workload model.
type CreateVMStep struct {
	Name   string            `yaml:"name"`
	Model  string            `yaml:"model"`
	Params map[string]string `yaml:"params"`
}

// SimulateStep advances the simulation: all pending events, a number of
// steps, or up to a tick.
type SimulateStep struct {
	All   bool   `yaml:"all"`
	Steps int    `yaml:"steps"`
	Until *int64 `yaml:"until"`
}

// Script is an ordered list of commands replayed against a world.
type Script []Step

// LoadScript reads and validates a YAML command script.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadScript(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	var s Script
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that every step names exactly one action.
func (s Script) Validate() error {
	for i, st := range s {
		n := 0
		for _, set := range []bool{
			st.Boot != "", st.Reboot != "", st.Shutdown != "",
			st.CreateVM != nil, st.Provision != "", st.Stop != "", st.Delete != "", st.Restart != "",
			st.Simulate != nil,
		} {
			if set {
				n++
			}
		}
		if n != 1 {
			return fmt.Errorf("step[%d]: expected exactly one action, got %d", i, n)
		}
		if st.CreateVM != nil && (st.CreateVM.Name == "" || st.CreateVM.Model == "") {
			return fmt.Errorf("step[%d]: create-vm needs a name and a model", i)
		}
		if sm := st.Simulate; sm != nil {
			modes := 0
			if sm.All {
				modes++
			}
			if sm.Steps > 0 {
				modes++
			}
			if sm.Until != nil {
				modes++
			}
			if modes != 1 || sm.Steps < 0 {
				return fmt.Errorf("step[%d]: simulate needs exactly one of all, steps or until", i)
			}
		}
		if st.At != nil && *st.At < 0 {
			return fmt.Errorf("step[%d]: at must be non-negative, got %d", i, *st.At)
		}
	}
	return nil
}

// Run replays the script against w. Rejected commands are logged and do
// not stop the script. Returns the number of rejected commands.
func (s Script) Run(w *sim.World) int {
	rejected := 0
	for i, st := range s {
		if st.At != nil {
			if *st.At < w.Now() {
				w.Log().Warnf("step[%d]: tick %d already passed (now %d)", i, *st.At, w.Now())
			} else {
				w.SimulateUntil(*st.At)
			}
		}
		if err := st.apply(w); err != nil {
			w.Log().Errorf("step[%d]: %v", i, err)
			rejected++
		}
	}
	return rejected
}

func (st Step) apply(w *sim.World) error {
	switch {
	case st.Boot != "":
		return w.DoResourceAction(st.Boot, sim.ActionBoot, reportDone(w, "boot", st.Boot))
	case st.Reboot != "":
		return w.DoResourceAction(st.Reboot, sim.ActionReboot, reportDone(w, "reboot", st.Reboot))
	case st.Shutdown != "":
		return w.DoResourceAction(st.Shutdown, sim.ActionShutdown, reportDone(w, "shutdown", st.Shutdown))
	case st.CreateVM != nil:
		return w.CreateVM(st.CreateVM.Name, st.CreateVM.Model, st.CreateVM.Params)
	case st.Provision != "":
		return w.DoProvisionVM(st.Provision, reportDone(w, "provision", st.Provision))
	case st.Stop != "":
		return w.DoStopVM(st.Stop, reportDone(w, "stop", st.Stop))
	case st.Delete != "":
		return w.DoDeleteVM(st.Delete, reportDone(w, "delete", st.Delete))
	case st.Restart != "":
		return w.DoRestartVM(st.Restart, reportDone(w, "restart", st.Restart))
	case st.Simulate != nil:
		switch {
		case st.Simulate.All:
			w.SimulateAll()
		case st.Simulate.Until != nil:
			w.SimulateUntil(*st.Simulate.Until)
		default:
			w.SimulateSteps(st.Simulate.Steps)
		}
		return nil
	default:
		return fmt.Errorf("empty step")
	}
}

func reportDone(w *sim.World, verb, name string) sim.CommandOption {
	return sim.OnComplete(func(int64) {
		w.Log().Infof("%s %s completed", verb, name)
	})
}
