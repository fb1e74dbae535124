package sim

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloud-sim/cloud-sim/sim/trace"
)

var testServerSpec = ServerSpec{Name: "small", RAM: 1 << 30, ClockRate: 2_400_000_000, Cores: 8}

// newTestWorld builds cloud-1 -> dc-1 -> servers with the given names.
// Every resource uses d; the returned sink holds every log record.
func newTestWorld(t *testing.T, opts Options, d Delays, servers ...string) (*World, *MemorySink) {
	t.Helper()
	sink := &MemorySink{}
	opts.Sink = sink
	if opts.LogLevel == "" {
		opts.LogLevel = "debug"
	}
	opts.CloudDelays = d
	w, err := NewWorld(opts)
	require.NoError(t, err)
	dc, err := w.AddDataCenter("dc-1", d)
	require.NoError(t, err)
	for _, name := range servers {
		_, err := w.AddServer(dc, name, testServerSpec, d, "greedy")
		require.NoError(t, err)
	}
	return w, sink
}

// newRunningWorld is newTestWorld with every resource booted.
func newRunningWorld(t *testing.T, opts Options, servers ...string) (*World, *MemorySink) {
	t.Helper()
	w, sink := newTestWorld(t, opts, Delays{}, servers...)
	require.NoError(t, w.DoResourceAction(CloudName, ActionBoot))
	w.SimulateAll()
	for _, name := range append([]string{CloudName, "dc-1"}, servers...) {
		state, err := w.PowerState(name)
		require.NoError(t, err)
		require.Equal(t, PowerRunning, state, name)
	}
	return w, sink
}

// runningVM creates and provisions name and drains the loop.
func runningVM(t *testing.T, w *World, name, ram string) {
	t.Helper()
	require.NoError(t, w.CreateVM(name, "constant", map[string]string{ParamRequiredRAM: ram}))
	require.NoError(t, w.DoProvisionVM(name))
	w.SimulateAll()
	state, err := w.VMState(name)
	require.NoError(t, err)
	require.Equal(t, VMRunning, state)
}

func TestNewWorld_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"log level", Options{LogLevel: "loud"}},
		{"placement", Options{Placement: "round-robin"}},
		{"trace level", Options{TraceLevel: "everything"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWorld(tt.opts)
			assert.Error(t, err)
		})
	}
}

func TestNewWorld_FixedEntities(t *testing.T) {
	w, err := NewWorld(Options{})
	require.NoError(t, err)

	for _, name := range []string{CloudName, StorageName, SchedulerName, NotifierName} {
		_, err := w.Lookup(name)
		assert.NoError(t, err, name)
	}
	cloud, err := GetActor[*Cloud](w.Registry(), w.Cloud())
	require.NoError(t, err)
	assert.Equal(t, w.Storage(), cloud.VMStorage())

	sched, err := GetActor[*Scheduler](w.Registry(), w.Scheduler())
	require.NoError(t, err)
	assert.Equal(t, "", sched.PolicyName())
}

func TestWorld_SetCloudDelays(t *testing.T) {
	// GIVEN an empty cloud with a 4-tick startup
	w, err := NewWorld(Options{})
	require.NoError(t, err)
	w.SetCloudDelays(Delays{Startup: 4})

	// WHEN it boots
	var doneAt int64 = -1
	require.NoError(t, w.DoResourceAction(CloudName, ActionBoot, OnComplete(func(at int64) { doneAt = at })))
	w.SimulateAll()

	// THEN it reaches RUNNING after the new delay
	assert.Equal(t, int64(4), doneAt)
	state, err := w.PowerState(CloudName)
	require.NoError(t, err)
	assert.Equal(t, PowerRunning, state)
}

func TestWorld_AddServer_Errors(t *testing.T) {
	w, err := NewWorld(Options{})
	require.NoError(t, err)
	dc, err := w.AddDataCenter("dc-1", Delays{})
	require.NoError(t, err)

	_, err = w.AddServer(dc, "srv-1", testServerSpec, Delays{}, "lazy")
	assert.ErrorIs(t, err, ErrUnknownPolicy)

	_, err = w.AddServer(w.Storage(), "srv-1", testServerSpec, Delays{}, "greedy")
	assert.ErrorIs(t, err, ErrTypeMismatch, "servers attach to data centers only")

	_, err = w.AddDataCenter("dc-1", Delays{})
	assert.ErrorIs(t, err, ErrNameNotUnique)
}

func TestWorld_CreateAndProvision_EndsRunningAndHosted(t *testing.T) {
	// GIVEN a running single-server cloud
	w, _ := newRunningWorld(t, Options{VMDelays: VMDelays{Start: 2}}, "srv-1")
	start := w.Now()

	// WHEN vm1 is created with 512 bytes of RAM and provisioned
	var doneAt int64 = -1
	require.NoError(t, w.CreateVM("vm1", "constant", map[string]string{ParamRequiredRAM: "512"}))
	require.NoError(t, w.DoProvisionVM("vm1", OnComplete(func(at int64) { doneAt = at })))
	w.SimulateAll()

	// THEN vm1 is Running, Hosted and on srv-1
	state, err := w.VMState("vm1")
	require.NoError(t, err)
	assert.Equal(t, VMRunning, state)

	status, ok, err := w.VMStatus("vm1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusHosted, status)

	hosted, err := w.HostedVMs("srv-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"vm1"}, hosted)

	vm, err := lookupAs[*VM](w, "vm1")
	require.NoError(t, err)
	srv, err := w.Lookup("srv-1")
	require.NoError(t, err)
	assert.Equal(t, srv, vm.Owner())

	// AND the completion record fired when the start delay elapsed
	assert.Equal(t, start+2, doneAt)
}

func TestWorld_StopVM_ReleasesServer(t *testing.T) {
	// GIVEN vm1 running on srv-1
	w, _ := newRunningWorld(t, Options{VMDelays: VMDelays{Stop: 3}}, "srv-1")
	runningVM(t, w, "vm1", "512")
	issued := w.Now()

	// WHEN vm1 is stopped
	var doneAt int64 = -1
	require.NoError(t, w.DoStopVM("vm1", OnComplete(func(at int64) { doneAt = at })))
	w.SimulateAll()

	// THEN it is Stopped and no longer hosted
	state, err := w.VMState("vm1")
	require.NoError(t, err)
	assert.Equal(t, VMStopped, state)

	hosted, err := w.HostedVMs("srv-1")
	require.NoError(t, err)
	assert.Empty(t, hosted)

	status, ok, err := w.VMStatus("vm1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusStopped, status)

	vm, err := lookupAs[*VM](w, "vm1")
	require.NoError(t, err)
	assert.True(t, vm.Owner().IsZero())
	assert.Equal(t, issued+3, doneAt)
}

func TestWorld_DeleteVM_RemovesBookkeeping(t *testing.T) {
	tests := []struct {
		name      string
		stopFirst bool
	}{
		{"from running", false},
		{"from stopped", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN vm1 running, optionally stopped afterwards
			w, _ := newRunningWorld(t, Options{VMDelays: VMDelays{Delete: 1}}, "srv-1")
			runningVM(t, w, "vm1", "512")
			if tt.stopFirst {
				require.NoError(t, w.DoStopVM("vm1"))
				w.SimulateAll()
			}

			// WHEN vm1 is deleted
			require.NoError(t, w.DoDeleteVM("vm1"))
			w.SimulateAll()

			// THEN it is Deleted, off its server and out of the table
			state, err := w.VMState("vm1")
			require.NoError(t, err)
			assert.Equal(t, VMDeleted, state)

			_, ok, err := w.VMStatus("vm1")
			require.NoError(t, err)
			assert.False(t, ok)

			hosted, err := w.HostedVMs("srv-1")
			require.NoError(t, err)
			assert.Empty(t, hosted)

			st, err := GetActor[*VMStorage](w.Registry(), w.Storage())
			require.NoError(t, err)
			assert.Equal(t, 0, st.Len())
			assert.False(t, st.Failed())
		})
	}
}

func TestWorld_RestartVM_ReturnsToRunning(t *testing.T) {
	w, _ := newRunningWorld(t, Options{VMDelays: VMDelays{Restart: 2}}, "srv-1")
	runningVM(t, w, "vm1", "512")
	issued := w.Now()

	var doneAt int64 = -1
	require.NoError(t, w.DoRestartVM("vm1", OnComplete(func(at int64) { doneAt = at })))

	// WHEN one tick has passed the VM is still restarting
	w.SimulateUntil(issued + 1)
	state, err := w.VMState("vm1")
	require.NoError(t, err)
	assert.Equal(t, VMRestarting, state)

	// THEN after the delay it is running again and still hosted
	w.SimulateAll()
	state, err = w.VMState("vm1")
	require.NoError(t, err)
	assert.Equal(t, VMRunning, state)
	assert.Equal(t, issued+2, doneAt)

	status, _, err := w.VMStatus("vm1")
	require.NoError(t, err)
	assert.Equal(t, StatusHosted, status)
}

func TestWorld_ProvisionStoppedVM_HostsItAgain(t *testing.T) {
	// GIVEN a stopped VM
	w, _ := newRunningWorld(t, Options{}, "srv-1")
	runningVM(t, w, "vm1", "512")
	require.NoError(t, w.DoStopVM("vm1"))
	w.SimulateAll()

	// WHEN it is provisioned again
	require.NoError(t, w.DoProvisionVM("vm1"))
	w.SimulateAll()

	// THEN it runs on a server again
	state, err := w.VMState("vm1")
	require.NoError(t, err)
	assert.Equal(t, VMRunning, state)
	hosted, err := w.HostedVMs("srv-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"vm1"}, hosted)
}

func TestWorld_UnknownName_InsertsNothing(t *testing.T) {
	// GIVEN a world with nothing pending
	w, _ := newTestWorld(t, Options{}, Delays{}, "srv-1")
	now, pending := w.Now(), w.Loop().Len()

	// WHEN commands name entities that do not exist
	errs := []error{
		w.DoResourceAction("no-such-resource", ActionBoot),
		w.DoProvisionVM("ghost"),
		w.DoStopVM("ghost"),
		w.DoDeleteVM("ghost"),
		w.DoRestartVM("ghost"),
	}

	// THEN each returns an unknown-name error and the loop is untouched
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrNameNotFound)
	}
	assert.Equal(t, now, w.Now())
	assert.Equal(t, pending, w.Loop().Len())
}

func TestWorld_WrongEntityType_ReturnsTypeMismatch(t *testing.T) {
	w, _ := newTestWorld(t, Options{}, Delays{}, "srv-1")
	require.NoError(t, w.CreateVM("vm1", "constant", map[string]string{ParamRequiredRAM: "1"}))
	pending := w.Loop().Len()

	assert.ErrorIs(t, w.DoStopVM("srv-1"), ErrTypeMismatch)
	assert.ErrorIs(t, w.DoResourceAction("vm1", ActionBoot), ErrTypeMismatch)
	assert.ErrorIs(t, w.DoResourceAction(StorageName, ActionBoot), ErrTypeMismatch)
	assert.Equal(t, pending, w.Loop().Len())
}

func TestWorld_CreateVM_Errors(t *testing.T) {
	w, _ := newTestWorld(t, Options{}, Delays{}, "srv-1")
	entities := w.Registry().Len()

	err := w.CreateVM("vm1", "bursty", map[string]string{ParamRequiredRAM: "1"})
	assert.ErrorIs(t, err, ErrUnknownWorkloadModel)

	err = w.CreateVM("vm1", "constant", map[string]string{})
	assert.ErrorContains(t, err, ParamRequiredRAM)

	err = w.CreateVM("srv-1", "constant", map[string]string{ParamRequiredRAM: "1"})
	assert.ErrorIs(t, err, ErrNameNotUnique)

	assert.Equal(t, entities, w.Registry().Len(), "failed creations register nothing")
	assert.Equal(t, 0, w.Loop().Len())
}

func TestWorld_IllegalVMCommand_FailsVM(t *testing.T) {
	// GIVEN a freshly created VM that was never provisioned
	w, _ := newRunningWorld(t, Options{}, "srv-1")
	require.NoError(t, w.CreateVM("vm1", "constant", map[string]string{ParamRequiredRAM: "1"}))
	w.SimulateAll()

	// WHEN it is asked to stop
	called := false
	require.NoError(t, w.DoStopVM("vm1", OnComplete(func(int64) { called = true })))
	w.SimulateAll()

	// THEN it enters FAILURE and stays there
	state, err := w.VMState("vm1")
	require.NoError(t, err)
	assert.Equal(t, VMFailure, state)
	assert.False(t, called, "completion records are dropped on failure")

	require.NoError(t, w.DoRestartVM("vm1"))
	w.SimulateAll()
	state, _ = w.VMState("vm1")
	assert.Equal(t, VMFailure, state)
}

func TestWorld_CancelWhen_DropsCommand(t *testing.T) {
	w, _ := newRunningWorld(t, Options{}, "srv-1")
	runningVM(t, w, "vm1", "512")

	require.NoError(t, w.DoStopVM("vm1", CancelWhen(func() bool { return true })))
	w.SimulateAll()

	state, err := w.VMState("vm1")
	require.NoError(t, err)
	assert.Equal(t, VMRunning, state)
	assert.Equal(t, 1, w.Metrics().EventsCancelled)
}

func TestWorld_CancelledBoot_NeverReportsCompletion(t *testing.T) {
	// GIVEN a boot command cancelled before dispatch, with a completion record
	w, _ := newTestWorld(t, Options{}, Delays{Startup: 2}, "srv-1")
	var fired []int64
	require.NoError(t, w.DoResourceAction("srv-1", ActionBoot,
		CancelWhen(func() bool { return true }),
		OnComplete(func(at int64) { fired = append(fired, at) })))
	w.SimulateAll()
	assertPower(t, w, PowerOff, "srv-1")

	// WHEN an unrelated boot brings the server to RUNNING
	require.NoError(t, w.DoResourceAction("srv-1", ActionBoot))
	w.SimulateAll()

	// THEN the cancelled command's record never fires
	assertPower(t, w, PowerRunning, "srv-1")
	assert.Empty(t, fired)
}

func TestWorld_CancelledStop_NeverReportsCompletion(t *testing.T) {
	w, _ := newRunningWorld(t, Options{}, "srv-1")
	runningVM(t, w, "vm1", "512")

	var fired []int64
	require.NoError(t, w.DoStopVM("vm1",
		CancelWhen(func() bool { return true }),
		OnComplete(func(at int64) { fired = append(fired, at) })))
	w.SimulateAll()

	require.NoError(t, w.DoStopVM("vm1"))
	w.SimulateAll()

	state, err := w.VMState("vm1")
	require.NoError(t, err)
	assert.Equal(t, VMStopped, state)
	assert.Empty(t, fired)
}

func TestWorld_IgnoredProvision_NeverReportsCompletion(t *testing.T) {
	// GIVEN a VM already pending on a cloud that is still off
	w, _ := newTestWorld(t, Options{Placement: "best-fit"}, Delays{Startup: 1}, "srv-1")
	require.NoError(t, w.CreateVM("vm1", "constant", map[string]string{ParamRequiredRAM: "1"}))
	require.NoError(t, w.DoProvisionVM("vm1"))

	// WHEN a second provision arrives that the table ignores
	called := false
	require.NoError(t, w.DoProvisionVM("vm1", OnComplete(func(int64) { called = true })))
	w.SimulateAll()
	status, _, err := w.VMStatus("vm1")
	require.NoError(t, err)
	require.Equal(t, StatusPending, status)

	// AND the first request later brings the VM to RUNNING
	require.NoError(t, w.DoResourceAction(CloudName, ActionBoot))
	w.SimulateAll()

	// THEN only the accepted command could have reported completion
	state, err := w.VMState("vm1")
	require.NoError(t, err)
	assert.Equal(t, VMRunning, state)
	assert.False(t, called)
}

// failServer drives a running server into FAILURE with an illegal boot.
func failServer(t *testing.T, w *World, name string) {
	t.Helper()
	require.NoError(t, w.DoResourceAction(name, ActionBoot))
	w.SimulateAll()
	assertPower(t, w, PowerFailure, name)
}

func assertHostedOn(t *testing.T, w *World, vm, server string) {
	t.Helper()
	hosted, err := w.HostedVMs(server)
	require.NoError(t, err)
	assert.Equal(t, []string{vm}, hosted)
	state, err := w.VMState(vm)
	require.NoError(t, err)
	assert.Equal(t, VMRunning, state)
	status, _, err := w.VMStatus(vm)
	require.NoError(t, err)
	assert.Equal(t, StatusHosted, status)
}

func TestWorld_FirstAvailable_SkipsFailedServer(t *testing.T) {
	// GIVEN two servers, the first in FAILURE
	w, _ := newRunningWorld(t, Options{}, "srv-1", "srv-2")
	failServer(t, w, "srv-1")

	// WHEN a VM is provisioned
	require.NoError(t, w.CreateVM("vm1", "constant", map[string]string{ParamRequiredRAM: "1"}))
	require.NoError(t, w.DoProvisionVM("vm1"))
	w.SimulateAll()

	// THEN it runs on the healthy server
	assertHostedOn(t, w, "vm1", "srv-2")
	hosted, err := w.HostedVMs("srv-1")
	require.NoError(t, err)
	assert.Empty(t, hosted)
}

func TestWorld_RefusedVM_IsPlacedAgain(t *testing.T) {
	// GIVEN a VM already scheduled onto a server that has since failed
	w, _ := newRunningWorld(t, Options{}, "srv-1", "srv-2")
	failServer(t, w, "srv-1")
	require.NoError(t, w.CreateVM("vm1", "constant", map[string]string{ParamRequiredRAM: "1"}))
	w.SimulateAll()
	srv1, err := w.Lookup("srv-1")
	require.NoError(t, err)
	vm, err := w.Lookup("vm1")
	require.NoError(t, err)
	now := w.Now()
	require.NoError(t, w.Loop().Insert(NewStorageEvent(w.Storage(), now, StorageProvisionRequested, vm), false))
	require.NoError(t, w.Loop().Insert(NewStorageEvent(w.Storage(), now, StorageVMScheduled, vm), false))

	// WHEN the failed server receives it
	require.NoError(t, w.Loop().Insert(NewServerEvent(srv1, now, ServerProvisionVM, vm), false))
	w.SimulateAll()

	// THEN the row went back to Pending and the next run placed it elsewhere
	assertHostedOn(t, w, "vm1", "srv-2")
	assert.Equal(t, now, w.Now(), "re-placed within the same tick")
}

func TestWorld_ImmediateProvisionVM_HostedFirst(t *testing.T) {
	// GIVEN two created VMs on a running single-server cloud
	w, _ := newRunningWorld(t, Options{}, "srv-1")
	for _, name := range []string{"vm1", "vm2"} {
		require.NoError(t, w.CreateVM(name, "constant", map[string]string{ParamRequiredRAM: "1"}))
	}
	w.SimulateAll()
	srv, err := w.Lookup("srv-1")
	require.NoError(t, err)
	vm1, err := w.Lookup("vm1")
	require.NoError(t, err)
	vm2, err := w.Lookup("vm2")
	require.NoError(t, err)

	// WHEN both ProvisionVM events are inserted at the same tick, vm2 immediately
	now := w.Now()
	require.NoError(t, w.Loop().Insert(NewServerEvent(srv, now, ServerProvisionVM, vm1), false))
	require.NoError(t, w.Loop().Insert(NewServerEvent(srv, now, ServerProvisionVM, vm2), true))
	w.SimulateAll()

	// THEN vm2 was hosted before vm1
	hosted, err := w.HostedVMs("srv-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"vm2", "vm1"}, hosted)
}

func TestWorld_BestFit_WaitsForRunningServer(t *testing.T) {
	// GIVEN a best-fit cloud whose server boots in 5 ticks
	w, _ := newTestWorld(t, Options{Placement: "best-fit"}, Delays{Startup: 5}, "srv-1")
	require.NoError(t, w.CreateVM("vm1", "constant", map[string]string{ParamRequiredRAM: "512MiB"}))
	require.NoError(t, w.DoProvisionVM("vm1"))
	require.NoError(t, w.DoResourceAction(CloudName, ActionBoot))

	// WHEN the cloud is still booting
	w.SimulateUntil(10)

	// THEN the VM stays pending
	status, _, err := w.VMStatus("vm1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)

	// WHEN the server is running and the tick-end scheduler pass runs
	w.SimulateAll()

	// THEN the VM is placed
	status, _, err = w.VMStatus("vm1")
	require.NoError(t, err)
	assert.Equal(t, StatusHosted, status)
	assert.Equal(t, int64(15), w.Now())
}

func TestWorld_Admission_RecordsDecisions(t *testing.T) {
	// GIVEN two VMs whose demand exceeds the server's 1GiB together
	w, sink := newRunningWorld(t, Options{TraceLevel: trace.TraceLevelDecisions}, "srv-1")
	runningVM(t, w, "big", "768MiB")
	runningVM(t, w, "late", "512MiB")

	// THEN the placements and the admission classification are traced
	summary := trace.Summarize(w.Trace())
	assert.Equal(t, 2, summary.TotalPlacements)
	assert.Equal(t, 2, summary.TargetDistribution["srv-1"])
	assert.Greater(t, summary.SaturatedCount, 0)
	assert.Greater(t, summary.UnderProvisioned, 0)
	require.Len(t, w.Trace().PlacementsFor("late"), 1)
	last, ok := w.Trace().LastAdmission("srv-1", "late")
	require.True(t, ok)
	assert.False(t, last.Saturated)

	var saturated, notSaturated bool
	for _, r := range sink.Records() {
		saturated = saturated || r.Message == "VM big is saturated"
		notSaturated = notSaturated || r.Message == "VM late is NOT saturated"
	}
	assert.True(t, saturated)
	assert.True(t, notSaturated)
}

func TestWorld_Admission_OncePerTickUnlessHostingChanges(t *testing.T) {
	// GIVEN a on srv-1, b on srv-2 and c waiting for room
	w, _ := newRunningWorld(t, Options{Placement: "best-fit", TraceLevel: trace.TraceLevelDecisions}, "srv-1", "srv-2")
	runningVM(t, w, "a", "512MiB")
	runningVM(t, w, "b", "768MiB")
	require.NoError(t, w.CreateVM("c", "constant", map[string]string{ParamRequiredRAM: "768MiB"}))
	require.NoError(t, w.DoProvisionVM("c"))
	w.SimulateAll()

	// WHEN b stops at tick 5 and the hook places c in a second pass over that tick
	w.SimulateUntil(5)
	require.NoError(t, w.DoStopVM("b"))
	w.SimulateAll()
	assertHostedOn(t, w, "c", "srv-2")

	// THEN srv-1, unchanged between the passes, is classified once at tick 5
	count := func(vm string) int {
		n := 0
		for _, a := range w.Trace().Admissions {
			if a.Clock == 5 && a.VM == vm {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 1, count("a"))
	assert.Equal(t, 1, count("c"))
}

func TestWorld_RandomUniform_ReproducibleForSeed(t *testing.T) {
	demand := func(seed int64) Workload {
		w, err := NewWorld(Options{Seed: seed})
		require.NoError(t, err)
		require.NoError(t, w.CreateVM("vm1", "random-uniform", map[string]string{ParamRequiredRAM: "1GiB"}))
		vm, err := lookupAs[*VM](w, "vm1")
		require.NoError(t, err)
		return vm.Demand(0)
	}
	assert.Equal(t, demand(42), demand(42))
}

func TestWorld_LogOutput_TextStream(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWorld(Options{LogOutput: &buf})
	require.NoError(t, err)
	require.NoError(t, w.DoResourceAction(CloudName, ActionBoot))
	w.SimulateAll()

	assert.True(t, strings.Contains(buf.String(), "power state OFF -> TURNING_ON"))
}
