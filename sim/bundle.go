package sim

import (
	"fmt"
	"sort"
)

// ValidPlacementPolicies is the set of recognized placement policy names.
// Shared by config validation and NewPlacementPolicy() to avoid duplication.
var ValidPlacementPolicies = map[string]bool{"": true, "first-available": true, "best-fit": true, "spread": true}

// ValidAdmissionPolicies is the set of recognized server admission policy names.
var ValidAdmissionPolicies = map[string]bool{"": true, "greedy": true, "none": true}

// IsValidPlacementPolicy returns true if name is a recognized placement policy.
func IsValidPlacementPolicy(name string) bool {
	return ValidPlacementPolicies[name]
}

// IsValidAdmissionPolicy returns true if name is a recognized admission policy.
func IsValidAdmissionPolicy(name string) bool {
	return ValidAdmissionPolicies[name]
}

// ValidPlacementPolicyNames returns the non-empty placement policy names, sorted.
func ValidPlacementPolicyNames() []string {
	return sortedNames(ValidPlacementPolicies)
}

// ValidAdmissionPolicyNames returns the non-empty admission policy names, sorted.
func ValidAdmissionPolicyNames() []string {
	return sortedNames(ValidAdmissionPolicies)
}

// CheckPolicies validates a placement and admission policy pair.
func CheckPolicies(placement, admission string) error {
	if !IsValidPlacementPolicy(placement) {
		return fmt.Errorf("%w: placement %q (valid: %v)", ErrUnknownPolicy, placement, ValidPlacementPolicyNames())
	}
	if !IsValidAdmissionPolicy(admission) {
		return fmt.Errorf("%w: admission %q (valid: %v)", ErrUnknownPolicy, admission, ValidAdmissionPolicyNames())
	}
	return nil
}

func sortedNames(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for n := range set {
		if n != "" {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}
