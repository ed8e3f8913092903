package models

import (
	"time"

	"github.com/google/uuid"
)

// Inventory is a named physical stock location.
type Inventory struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;size:64;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// InventoryLine is the quantity-on-hand counter for one (location, part)
// pair. Deprioritized lines are skipped by automatic allocation but remain
// open to manual adjustment.
type InventoryLine struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	InventoryID   uuid.UUID `gorm:"column:inventory_id;type:uuid;not null;index:idx_inventory_part,unique,priority:1"`
	PartID        uuid.UUID `gorm:"column:part_id;type:uuid;not null;index:idx_inventory_part,unique,priority:2"`
	Part          *Part     `gorm:"foreignKey:PartID"`
	Quantity      int       `gorm:"column:quantity;not null;default:0"`
	Deprioritized bool      `gorm:"column:deprioritized;not null;default:false"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// InventoryAction is one immutable ledger entry: a signed quantity delta
// against a line with exactly one causal reference. OrderLineID marks an
// order receipt, BuildID a build consumption; neither set means a manual
// correction. Actions are never mutated, only created or deleted as part
// of a reversal.
type InventoryAction struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	LineID      uuid.UUID        `gorm:"column:line_id;type:uuid;not null;index"`
	Line        *InventoryLine   `gorm:"foreignKey:LineID"`
	Delta       int              `gorm:"column:delta;not null"`
	OrderLineID *uuid.UUID       `gorm:"column:order_line_id;type:uuid"`
	OrderLine   *VendorOrderLine `gorm:"foreignKey:OrderLineID"`
	BuildID     *uuid.UUID       `gorm:"column:build_id;type:uuid"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
}
