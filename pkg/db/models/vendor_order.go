package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VendorOrder is a purchase placed with a vendor. Completing it folds the
// received quantities into inventory.
type VendorOrder struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	VendorID    uuid.UUID         `gorm:"column:vendor_id;type:uuid;not null"`
	Vendor      *Vendor           `gorm:"foreignKey:VendorID"`
	OrderNumber *string           `gorm:"column:order_number;size:128"`
	Lines       []VendorOrderLine `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	FulfilledAt *time.Time        `gorm:"column:fulfilled_at"`
}

// VendorOrderLine is one SKU on a vendor order, destined for a specific
// inventory location once the order arrives.
type VendorOrderLine struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	VendorPartID uuid.UUID       `gorm:"column:vendor_part_id;type:uuid;not null"`
	VendorPart   *VendorPart     `gorm:"foreignKey:VendorPartID"`
	Quantity     int             `gorm:"column:quantity;not null"`
	Cost         decimal.Decimal `gorm:"column:cost;type:numeric(8,4);not null"`
	InventoryID  uuid.UUID       `gorm:"column:inventory_id;type:uuid;not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}
