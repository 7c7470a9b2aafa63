package initiative

import (
	"sort"

	"github.com/wfunc/initiative-tracker/internal/models"
)

// Sort returns the active entries in turn order with OrderPosition set to
// 1..N. Higher total goes first; equal totals go to the higher natural roll;
// anything still tied keeps its input order. Inactive entries are dropped and
// the input is not modified.
func Sort(entries []*models.InitiativeEntry) []*models.InitiativeEntry {
	out := make([]*models.InitiativeEntry, 0, len(entries))
	for _, entry := range entries {
		if entry == nil || !entry.IsActive {
			continue
		}
		clone := *entry
		out = append(out, &clone)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].TotalInitiative(), out[j].TotalInitiative()
		if ti != tj {
			return ti > tj
		}
		return out[i].InitiativeRoll > out[j].InitiativeRoll
	})

	for i, entry := range out {
		entry.OrderPosition = i + 1
	}
	return out
}

// resequence sorts entries read from storage. Rows are first put back in
// insertion order so ties resolve the same way on every pass.
func resequence(entries []*models.InitiativeEntry) []*models.InitiativeEntry {
	byInsertion := make([]*models.InitiativeEntry, len(entries))
	copy(byInsertion, entries)
	sort.SliceStable(byInsertion, func(i, j int) bool {
		return byInsertion[i].ID < byInsertion[j].ID
	})
	return Sort(byInsertion)
}

// changedPositions returns the sorted entries whose position differs from
// what is stored.
func changedPositions(stored, sorted []*models.InitiativeEntry) []*models.InitiativeEntry {
	previous := make(map[uint]int, len(stored))
	for _, entry := range stored {
		previous[entry.ID] = entry.OrderPosition
	}
	var changed []*models.InitiativeEntry
	for _, entry := range sorted {
		if pos, ok := previous[entry.ID]; !ok || pos != entry.OrderPosition {
			changed = append(changed, entry)
		}
	}
	return changed
}
