package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Vendor is a supplier with its own catalog identifiers.
type Vendor struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;size:64;not null;uniqueIndex"`
	BaseURL   string    `gorm:"column:base_url;size:256;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// VendorPart is a vendor-specific SKU for a catalog part, with the cost
// and minimum volume the vendor quotes for it.
type VendorPart struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	VendorID   uuid.UUID        `gorm:"column:vendor_id;type:uuid;not null;index:idx_vendor_item,unique,priority:1"`
	Vendor     *Vendor          `gorm:"foreignKey:VendorID"`
	PartID     uuid.UUID        `gorm:"column:part_id;type:uuid;not null"`
	Part       *Part            `gorm:"foreignKey:PartID"`
	ItemNumber string           `gorm:"column:item_number;size:64;not null;index:idx_vendor_item,unique,priority:2"`
	Cost       *decimal.Decimal `gorm:"column:cost;type:numeric(8,4)"`
	Volume     *int             `gorm:"column:volume"`
	URLPath    *string          `gorm:"column:url_path;size:128"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// URL joins the vendor base URL with the SKU's path. Vendor must be
// preloaded.
func (vp *VendorPart) URL() string {
	if vp.Vendor == nil || vp.URLPath == nil {
		return ""
	}
	return vp.Vendor.BaseURL + *vp.URLPath
}
