package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProjectPart is one resolved BOM line of a project version. PartID is
// null when no catalog part matched; MissingPartDescription then records
// the raw row for a human to act on. Implicit rows are synthesized from
// package accessory rules rather than parsed from the BOM file.
type ProjectPart struct {
	ID                     uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	VersionID              uuid.UUID        `gorm:"column:version_id;type:uuid;not null;index"`
	PartID                 *uuid.UUID       `gorm:"column:part_id;type:uuid"`
	Part                   *Part            `gorm:"foreignKey:PartID"`
	MissingPartDescription *string          `gorm:"column:missing_part_description;size:256"`
	LineNumber             int              `gorm:"column:line_number;not null"`
	Quantity               int              `gorm:"column:quantity;not null"`
	IsImplicit             bool             `gorm:"column:is_implicit;not null;default:false"`
	IsOptional             bool             `gorm:"column:is_optional;not null;default:false"`
	Refs                   []ProjectPartRef `gorm:"foreignKey:ProjectPartID;constraint:OnDelete:CASCADE"`
	CreatedAt              time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// LineCost is the part's unit cost times the line quantity; zero for
// unresolved lines.
func (pp *ProjectPart) LineCost() decimal.Decimal {
	if pp.Part == nil {
		return decimal.Zero
	}
	return pp.Part.UnitCost().Mul(decimal.NewFromInt(int64(pp.Quantity)))
}

// ProjectPartRef is one schematic reference designator, e.g. "R7".
type ProjectPartRef struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProjectPartID uuid.UUID `gorm:"column:project_part_id;type:uuid;not null;index"`
	Ref           string    `gorm:"column:ref;size:8;not null"`
}

// ImplicitProjectPart declares that any part using ForPackage needs
// Quantity units of the accessory Part per unit placed, e.g. a knob per
// potentiometer.
type ImplicitProjectPart struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	PartID       uuid.UUID `gorm:"column:part_id;type:uuid;not null"`
	Part         *Part     `gorm:"foreignKey:PartID"`
	ForPackageID uuid.UUID `gorm:"column:for_package_id;type:uuid;not null;index"`
	Quantity     int       `gorm:"column:quantity;not null;default:1"`
}
