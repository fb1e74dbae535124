package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(name string, ram uint64) HostedLoad {
	return HostedLoad{Name: name, Demand: Workload{RAM: ram}}
}

func TestGreedyAdmission_Classify(t *testing.T) {
	tests := []struct {
		name          string
		serverRAM     uint64
		hosted        []HostedLoad
		wantSaturated []bool
		wantRemaining []uint64
	}{
		{
			name:          "everything fits",
			serverRAM:     10,
			hosted:        []HostedLoad{load("a", 3), load("b", 7)},
			wantSaturated: []bool{true, true},
			wantRemaining: []uint64{7, 0},
		},
		{
			name:          "late VM is under-provisioned",
			serverRAM:     10,
			hosted:        []HostedLoad{load("a", 8), load("b", 5)},
			wantSaturated: []bool{true, false},
			wantRemaining: []uint64{2, 2},
		},
		{
			name:          "smaller VM after an overflow still fits",
			serverRAM:     10,
			hosted:        []HostedLoad{load("a", 8), load("b", 5), load("c", 2)},
			wantSaturated: []bool{true, false, true},
			wantRemaining: []uint64{2, 2, 0},
		},
		{
			name:          "zero demand is always saturated",
			serverRAM:     0,
			hosted:        []HostedLoad{load("a", 0)},
			wantSaturated: []bool{true},
			wantRemaining: []uint64{0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := (&GreedyAdmission{}).Classify(ServerSpec{RAM: tt.serverRAM}, tt.hosted)
			require.Len(t, got, len(tt.hosted))
			for i, d := range got {
				assert.Equal(t, tt.hosted[i].Name, d.Name, "decisions keep hosting order")
				assert.Equal(t, tt.wantSaturated[i], d.Saturated, d.Name)
				assert.Equal(t, tt.wantRemaining[i], d.RemainingRAM, d.Name)
			}
		})
	}
}

func TestNoAdmission_NeverClassifies(t *testing.T) {
	got := (&NoAdmission{}).Classify(ServerSpec{RAM: 1}, []HostedLoad{load("a", 5)})
	assert.Empty(t, got)
}

func TestNewAdmissionPolicy(t *testing.T) {
	assert.IsType(t, &GreedyAdmission{}, NewAdmissionPolicy(""))
	assert.IsType(t, &GreedyAdmission{}, NewAdmissionPolicy("greedy"))
	assert.IsType(t, &NoAdmission{}, NewAdmissionPolicy("none"))
	assert.Panics(t, func() { NewAdmissionPolicy("lazy") })
}

func TestPolicyTables_NamesAndChecks(t *testing.T) {
	assert.Equal(t, []string{"best-fit", "first-available", "spread"}, ValidPlacementPolicyNames())
	assert.Equal(t, []string{"greedy", "none"}, ValidAdmissionPolicyNames())

	assert.NoError(t, CheckPolicies("", ""))
	assert.NoError(t, CheckPolicies("spread", "none"))
	assert.ErrorIs(t, CheckPolicies("random", "greedy"), ErrUnknownPolicy)
	assert.ErrorIs(t, CheckPolicies("best-fit", "lazy"), ErrUnknownPolicy)
}
