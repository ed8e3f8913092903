package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/benchfab/circuitstock/pkg/enums"
)

// Part is a canonical catalog entry identified by (symbol, normalized
// value, package). Vendor-specific SKUs and stock lines hang off it.
type Part struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name         string          `gorm:"column:name;size:64;not null"`
	Description  *string         `gorm:"column:description;size:256"`
	Value        *string         `gorm:"column:value;size:32"`
	Tolerance    *int16          `gorm:"column:tolerance"`
	LoadingLimit *string         `gorm:"column:loading_limit;size:16"`
	Unit         enums.Unit      `gorm:"column:unit;type:text;not null;default:'none'"`
	Symbol       *string         `gorm:"column:symbol;size:4"`
	PackageID    *uuid.UUID      `gorm:"column:package_id;type:uuid"`
	Package      *Package        `gorm:"foreignKey:PackageID"`
	VendorParts  []VendorPart    `gorm:"foreignKey:PartID;constraint:OnDelete:CASCADE"`
	Lines        []InventoryLine `gorm:"foreignKey:PartID"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// UnitCost is the lowest cost across the part's vendor SKUs, or zero when
// none carries a cost. VendorParts must be preloaded.
func (p *Part) UnitCost() decimal.Decimal {
	lowest := decimal.Zero
	found := false
	for _, vp := range p.VendorParts {
		if vp.Cost == nil {
			continue
		}
		if !found || vp.Cost.LessThan(lowest) {
			lowest = *vp.Cost
			found = true
		}
	}
	return lowest
}
