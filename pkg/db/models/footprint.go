package models

import (
	"time"

	"github.com/google/uuid"
)

// Footprint is a footprint name as it appears in BOM files, e.g.
// "Resistor_THT:R_Axial_DIN0207".
type Footprint struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;size:64;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
