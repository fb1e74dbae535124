// Package sim provides the discrete-event engine of the cloud simulator.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - event.go: tagged Event kinds and their payloads
//   - loop.go: the clock, Insert and the SimulateAll/Steps/Until dispatch loop
//   - registry.go: the entity arena, Make/GetActor and name lookup
//   - world.go, commands.go: the command surface used by drivers
//
// # Entities
//
// Every entity is an Actor owned by the Registry and referenced by Handle:
//   - Cloud, DataCenter, Server: power state machine (resource.go), Boot and
//     Shutdown cascade down the tree
//   - VM: lifecycle state machine (vm.go) driven by a WorkloadModel
//   - VMStorage: bookkeeping table of VM statuses read by the scheduler
//   - Scheduler: places pending VMs through a PlacementPolicy
//   - Notifier: hands completion records back to command issuers
//
// Entities only interact by scheduling events. Multi-step processes are
// chains of future events; a command that wants to know when one finishes
// registers a completion record on the entity's state machine.
//
// # Key Interfaces
//
//   - PlacementPolicy: choose a server for each pending VM (placement.go)
//   - AdmissionPolicy: server-local classification of hosted VMs (admission.go)
//   - WorkloadModel: per-tick resource demand of a VM (workload.go)
//   - Sink: structured log records of a world (log.go)
package sim
