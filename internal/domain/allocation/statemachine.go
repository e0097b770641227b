package allocation

import "github.com/ehr/inpatient/internal/domain/ward"

// adminTransitions are the bed status changes staff may make directly.
// OCCUPIED is absent on both sides: only Claim enters it and only Release
// leaves it.
var adminTransitions = map[ward.BedStatus][]ward.BedStatus{
	ward.BedAvailable:   {ward.BedReserved, ward.BedMaintenance},
	ward.BedReserved:    {ward.BedAvailable},
	ward.BedMaintenance: {ward.BedAvailable},
	ward.BedCleaning:    {ward.BedAvailable, ward.BedMaintenance},
}

// CanTransition reports whether an administrative change from -> to is allowed.
func CanTransition(from, to ward.BedStatus) bool {
	for _, s := range adminTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// validRelease lists the statuses a released bed may move to: CLEANING after
// a stay ends, AVAILABLE after a transfer or an administrative reset.
func validRelease(next ward.BedStatus) bool {
	return next == ward.BedCleaning || next == ward.BedAvailable
}
