package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Project is a circuit design tracked in a git repository.
type Project struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;size:64;not null"`
	GitURL    string    `gorm:"column:git_url;size:256;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// pcbLotSize is the lot quantity PCB fab quotes are priced for.
const pcbLotSize = 3

// ProjectVersion pins a project to a commit and BOM file. Once synced it
// owns the resolved set of project parts.
type ProjectVersion struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	ProjectID uuid.UUID        `gorm:"column:project_id;type:uuid;not null"`
	Project   *Project         `gorm:"foreignKey:ProjectID"`
	Revision  int              `gorm:"column:revision;not null;default:0"`
	CommitRef string           `gorm:"column:commit_ref;size:64;not null"`
	BOMPath   string           `gorm:"column:bom_path;size:100;not null"`
	PCBURL    *string          `gorm:"column:pcb_url;size:256"`
	PCBCost   *decimal.Decimal `gorm:"column:pcb_cost;type:numeric(6,2)"`
	Parts     []ProjectPart    `gorm:"foreignKey:VersionID;constraint:OnDelete:CASCADE"`
	SyncedAt  *time.Time       `gorm:"column:synced_at"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
}

// PCBUnitCost spreads the lot-of-three fab cost over single boards.
func (v *ProjectVersion) PCBUnitCost() decimal.Decimal {
	if v.PCBCost == nil {
		return decimal.Zero
	}
	return v.PCBCost.Div(decimal.NewFromInt(pcbLotSize))
}

// TotalCost sums the PCB unit cost and every line cost. Parts and their
// vendor SKUs must be preloaded.
func (v *ProjectVersion) TotalCost() decimal.Decimal {
	total := v.PCBUnitCost()
	for i := range v.Parts {
		total = total.Add(v.Parts[i].LineCost())
	}
	return total
}
