package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/benchfab/circuitstock/pkg/enums"
)

// Package groups the physical form of a part: a technology tag plus the
// footprints a BOM may use to refer to it, e.g. "0805" or "TO-92W".
type Package struct {
	ID         uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	Technology enums.CircuitTechnology `gorm:"column:technology;type:text;not null;default:'unknown'"`
	Name       string                  `gorm:"column:name;size:32;not null"`
	Footprints []Footprint             `gorm:"many2many:package_footprints"`
	CreatedAt  time.Time               `gorm:"column:created_at;autoCreateTime"`
}
