// Package allocation decides how demand for a part is spread across the
// stock lines that hold it. It is pure policy: callers pass the candidate
// lines and apply the resulting depletions themselves.
package allocation

import (
	"sort"

	"github.com/benchfab/circuitstock/pkg/db/models"
)

// Depletion is the quantity the plan takes from one inventory line.
type Depletion struct {
	Line     models.InventoryLine
	Quantity int
}

// Plan is the result of spreading a demand across eligible lines. When
// Unfulfilled is non-zero the available stock does not cover the demand
// and no depletion should be applied.
type Plan struct {
	Depletions  []Depletion
	Unfulfilled int
}

// Fulfilled reports whether the plan covers the whole demand.
func (p Plan) Fulfilled() bool {
	return p.Unfulfilled == 0
}

// Build spreads needed units across the given lines. Deprioritized lines
// are skipped entirely. Eligible lines are consumed smallest first so
// near-empty lines drain before large ones; each contributes
// min(remaining, quantity). Lines are never mutated.
func Build(lines []models.InventoryLine, needed int) Plan {
	if needed <= 0 {
		return Plan{}
	}

	eligible := make([]models.InventoryLine, 0, len(lines))
	for _, line := range lines {
		if line.Deprioritized || line.Quantity <= 0 {
			continue
		}
		eligible = append(eligible, line)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Quantity < eligible[j].Quantity
	})

	plan := Plan{}
	remaining := needed
	for _, line := range eligible {
		if remaining == 0 {
			break
		}
		take := line.Quantity
		if take > remaining {
			take = remaining
		}
		plan.Depletions = append(plan.Depletions, Depletion{Line: line, Quantity: take})
		remaining -= take
	}

	plan.Unfulfilled = remaining
	return plan
}
